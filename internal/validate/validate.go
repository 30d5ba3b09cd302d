// Package validate checks a prepared event table for integrity: ordering,
// spatial containment, display zone and field sanity.
package validate

import (
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/quake-data-etl/internal/domain"
)

// Phase collects the failures of one group of checks.
type Phase struct {
	Name   string
	Errors []string
}

func (p *Phase) errorf(format string, args ...any) {
	p.Errors = append(p.Errors, fmt.Sprintf(format, args...))
}

// Passed reports whether the phase found no problems.
func (p *Phase) Passed() bool { return len(p.Errors) == 0 }

// Report is the outcome of Table.
type Report struct {
	Events int
	Phases []*Phase
}

// Passed reports whether every phase passed.
func (r Report) Passed() bool {
	for _, p := range r.Phases {
		if !p.Passed() {
			return false
		}
	}
	return true
}

// Table runs all checks. region is the buffered boundary events must lie in;
// loc is the expected display zone. A snapshot read from disk is already
// converted to the reader's zone, so the display zone phase only catches
// mistakes in tables built in memory or read with another location.
func Table(table domain.Table, region domain.Region, loc *time.Location) Report {
	events := table.Events()
	return Report{
		Events: len(events),
		Phases: []*Phase{
			checkOrdering(events),
			checkContainment(events, region),
			checkTimezone(events, loc),
			checkFields(events),
		},
	}
}

func checkOrdering(events []domain.Event) *Phase {
	p := &Phase{Name: "Time ordering"}
	for i := 1; i < len(events); i++ {
		if events[i].Time.Before(events[i-1].Time) {
			p.errorf("row %d (%s) precedes row %d (%s)", i, events[i].Time.Format(time.RFC3339), i-1, events[i-1].Time.Format(time.RFC3339))
		}
	}
	return p
}

func checkContainment(events []domain.Event, region domain.Region) *Phase {
	p := &Phase{Name: "Buffered boundary containment"}
	for i, e := range events {
		if !region.Contains(orb.Point{e.Longitude, e.Latitude}) {
			p.errorf("row %d %s at (%.4f, %.4f) is outside the buffered boundary", i, e.ID, e.Longitude, e.Latitude)
		}
	}
	return p
}

func checkTimezone(events []domain.Event, loc *time.Location) *Phase {
	p := &Phase{Name: "Display timezone"}
	if loc == nil {
		return p
	}
	for i, e := range events {
		_, got := e.Time.Zone()
		_, want := e.Time.In(loc).Zone()
		if got != want {
			p.errorf("row %d %s has offset %s, want %s (%s)", i, e.ID, e.Time.Format("-07:00"), e.Time.In(loc).Format("-07:00"), loc)
		}
	}
	return p
}

func checkFields(events []domain.Event) *Phase {
	p := &Phase{Name: "Field sanity"}
	seen := make(map[string]int, len(events))
	repeats := make(map[string]int, len(events))
	for i, e := range events {
		base := domain.NewEvent(e.Time, e.Magnitude, e.Depth, e.Longitude, e.Latitude, e.Place).ID
		want := base
		if n := repeats[base]; n > 0 {
			want = domain.OccurrenceID(base, n)
		}
		repeats[base]++

		if prev, ok := seen[e.ID]; ok {
			p.errorf("row %d duplicates id %s of row %d", i, e.ID, prev)
		} else if e.ID != want {
			p.errorf("row %d id %s does not match its fields (want %s)", i, e.ID, want)
		}
		seen[e.ID] = i

		if math.IsNaN(e.Magnitude) || math.IsInf(e.Magnitude, 0) {
			p.errorf("row %d %s has non-finite magnitude", i, e.ID)
		}
		if e.Latitude < -90 || e.Latitude > 90 || e.Longitude < -180 || e.Longitude > 180 {
			p.errorf("row %d %s has out-of-range coordinates (%.4f, %.4f)", i, e.ID, e.Longitude, e.Latitude)
		}
		if e.Depth != nil && (math.IsNaN(*e.Depth) || math.IsInf(*e.Depth, 0)) {
			p.errorf("row %d %s has non-finite depth", i, e.ID)
		}
		if e.Time.IsZero() {
			p.errorf("row %d %s has no time", i, e.ID)
		}
	}
	return p
}
