package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDataUnavailable reports a boundary or snapshot source that is missing or empty.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrFetch reports a failed remote catalog query.
	ErrFetch = errors.New("fetch failed")
	// ErrParse reports a missing or unparseable required field.
	ErrParse = errors.New("parse failed")
)

// FetchError describes a remote catalog failure: network, HTTP status or an
// undecodable body.
type FetchError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrFetch) match any FetchError.
func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// ParseError locates a bad value in a source. Line is 1-based; 0 means the
// error is not tied to a row (e.g. a missing header column).
type ParseError struct {
	Source string
	Line   int
	Column string
	Err    error
}

func (e *ParseError) Error() string {
	switch {
	case e.Line > 0 && e.Column != "":
		return fmt.Sprintf("parse %s line %d column %q: %v", e.Source, e.Line, e.Column, e.Err)
	case e.Line > 0:
		return fmt.Sprintf("parse %s line %d: %v", e.Source, e.Line, e.Err)
	case e.Column != "":
		return fmt.Sprintf("parse %s column %q: %v", e.Source, e.Column, e.Err)
	default:
		return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
	}
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrParse) match any ParseError.
func (e *ParseError) Is(target error) bool { return target == ErrParse }
