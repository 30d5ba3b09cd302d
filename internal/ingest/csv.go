package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/paulmach/orb"

	"github.com/couchcryptid/quake-data-etl/internal/domain"
)

// Rows between context checks while scanning a file.
const ctxCheckInterval = 1000

// SeismographRetention is how far back seismograph records are kept,
// counted from midnight UTC of the run date.
const SeismographRetention = 5 // years

var (
	errEmptyFile     = errors.New("empty file")
	errMissingColumn = errors.New("missing required column")
	errEmptyValue    = errors.New("empty value")
)

var seismographColumns = [...]string{"Date", "Time", "Latitude", "Longitude", "Magnitude"}

// numericDate matches dd-mm-yyyy and dd.mm.yyyy date parts.
var numericDate = regexp.MustCompile(`^(\d{1,2})[-.](\d{1,2})[-.](\d{2,4})$`)

// seismographStamp joins the date and time columns. Dash and dot separated
// day-first dates are rewritten with slashes, the form dateparse reads
// day-first; ISO yyyy-mm-dd dates are left alone.
func seismographStamp(date, clock string) string {
	date = numericDate.ReplaceAllString(strings.TrimSpace(date), "$1/$2/$3")
	return date + " " + strings.TrimSpace(clock)
}

type csvFile struct {
	path string
	f    *os.File
	r    *csv.Reader
}

func openCSV(path string) (*csvFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %w", path, domain.ErrDataUnavailable, err)
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	return &csvFile{path: path, f: f, r: r}, nil
}

func (c *csvFile) Close() error { return c.f.Close() }

func (c *csvFile) header() ([]string, error) {
	header, err := c.r.Read()
	if errors.Is(err, io.EOF) {
		return nil, &domain.ParseError{Source: c.path, Err: errEmptyFile}
	}
	if err != nil {
		return nil, c.rowError(err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	return header, nil
}

// next returns the following row, or nil at end of file.
func (c *csvFile) next() ([]string, int, error) {
	row, err := c.r.Read()
	if errors.Is(err, io.EOF) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, c.rowError(err)
	}
	line, _ := c.r.FieldPos(0)
	return row, line, nil
}

func (c *csvFile) rowError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &domain.ParseError{Source: c.path, Line: pe.Line, Err: pe.Err}
	}
	return &domain.ParseError{Source: c.path, Err: err}
}

// readSeismograph parses the positional seismograph export and keeps the
// records dated within SeismographRetention years of now.
func readSeismograph(ctx context.Context, path string, now time.Time) ([]domain.Record, error) {
	c, err := openCSV(path)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	header, err := c.header()
	if err != nil {
		return nil, err
	}
	if len(header) < len(seismographColumns) {
		return nil, &domain.ParseError{Source: path, Line: 1,
			Err: fmt.Errorf("want at least %d columns, got %d", len(seismographColumns), len(header))}
	}
	names := seismographColumns
	copy(names[:], header[:len(names)])

	cutoff := retentionCutoff(now)
	var records []domain.Record
	for n := 0; ; n++ {
		if n%ctxCheckInterval == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		row, line, err := c.next()
		if err != nil {
			return nil, err
		}
		if row == nil {
			break
		}
		if len(row) < len(names) {
			return nil, &domain.ParseError{Source: path, Line: line,
				Err: fmt.Errorf("want at least %d fields, got %d", len(names), len(row))}
		}

		ts, err := dateparse.ParseIn(seismographStamp(row[0], row[1]), time.UTC, dateparse.PreferMonthFirst(false))
		if err != nil {
			return nil, &domain.ParseError{Source: path, Line: line, Column: names[0], Err: err}
		}
		var vals [3]float64
		for i := range vals {
			v, err := parseFloat(row[2+i], 64)
			if err != nil {
				return nil, &domain.ParseError{Source: path, Line: line, Column: names[2+i], Err: err}
			}
			vals[i] = v
		}

		if ts.Before(cutoff) {
			continue
		}
		lat, lon, mag := vals[0], vals[1], vals[2]
		records = append(records, domain.Record{
			Time:      ts.UTC(),
			Magnitude: mag,
			Point:     orb.Point{lon, lat},
		})
	}
	return records, nil
}

// retentionCutoff is midnight UTC of now's date, SeismographRetention years back.
func retentionCutoff(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(-SeismographRetention, 0, 0)
}

// readCatalogCSV parses a named-column catalog export. Numeric columns are
// read at single precision.
func readCatalogCSV(ctx context.Context, path string) ([]domain.Record, error) {
	c, err := openCSV(path)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	header, err := c.header()
	if err != nil {
		return nil, err
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		if _, dup := idx[strings.ToLower(name)]; !dup {
			idx[strings.ToLower(name)] = i
		}
	}
	col := func(name string) (int, error) {
		i, ok := idx[name]
		if !ok {
			return 0, &domain.ParseError{Source: path, Column: name, Err: errMissingColumn}
		}
		return i, nil
	}

	var cols struct{ time, lat, lon, depth, mag int }
	for _, f := range []struct {
		name string
		dst  *int
	}{
		{"time", &cols.time},
		{"latitude", &cols.lat},
		{"longitude", &cols.lon},
		{"depth", &cols.depth},
		{"mag", &cols.mag},
	} {
		if *f.dst, err = col(f.name); err != nil {
			return nil, err
		}
	}
	placeCol, hasPlace := idx["place"]

	var records []domain.Record
	for n := 0; ; n++ {
		if n%ctxCheckInterval == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		row, line, err := c.next()
		if err != nil {
			return nil, err
		}
		if row == nil {
			break
		}
		field := func(i int) string {
			if i < len(row) {
				return row[i]
			}
			return ""
		}
		fail := func(column string, err error) error {
			return &domain.ParseError{Source: path, Line: line, Column: column, Err: err}
		}

		ts, err := parseTimestamp(field(cols.time))
		if err != nil {
			return nil, fail("time", err)
		}
		lat, err := parseFloat(field(cols.lat), 32)
		if err != nil {
			return nil, fail("latitude", err)
		}
		lon, err := parseFloat(field(cols.lon), 32)
		if err != nil {
			return nil, fail("longitude", err)
		}
		mag, err := parseFloat(field(cols.mag), 32)
		if err != nil {
			return nil, fail("mag", err)
		}
		var depth *float64
		if raw := strings.TrimSpace(field(cols.depth)); raw != "" {
			d, err := parseFloat(raw, 32)
			if err != nil {
				return nil, fail("depth", err)
			}
			depth = &d
		}

		rec := domain.Record{Time: ts, Magnitude: mag, Depth: depth, Point: orb.Point{lon, lat}}
		if hasPlace {
			rec.Place = strings.TrimSpace(field(placeCol))
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseFloat(s string, bitSize int) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errEmptyValue
	}
	return strconv.ParseFloat(s, bitSize)
}

// parseTimestamp reads an RFC 3339 timestamp, falling back to the mixed
// layouts dateparse understands. Times without a zone are UTC.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errEmptyValue
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts.UTC(), nil
	}
	ts, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}
