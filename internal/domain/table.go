package domain

import (
	"sort"
	"time"
)

// Table is an immutable collection of events sorted ascending by time.
// Events sharing a timestamp are all kept, in source order, and every row has
// a distinct ID.
type Table struct {
	events []Event
}

// Summary describes the extent of a table, as used to seed a date slider and
// a magnitude colour scale.
type Summary struct {
	Count        int       `json:"count"`
	Earliest     time.Time `json:"earliest,omitzero"`
	Latest       time.Time `json:"latest,omitzero"`
	MinMagnitude float64   `json:"min_mag"`
	MaxMagnitude float64   `json:"max_mag"`
}

// NewTable copies events and sorts them by time. Repeated IDs are
// disambiguated in time order: the first keeps its ID, later ones get
// OccurrenceID suffixes.
func NewTable(events []Event) Table {
	out := make([]Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})
	uniqueIDs(out)
	return Table{events: out}
}

func uniqueIDs(events []Event) {
	taken := make(map[string]bool, len(events))
	for i := range events {
		base := events[i].ID
		if base == "" {
			continue
		}
		id := base
		for n := 1; taken[id]; n++ {
			id = OccurrenceID(base, n)
		}
		events[i].ID = id
		taken[id] = true
	}
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.events) }

// Empty reports whether the table has no rows.
func (t Table) Empty() bool { return len(t.events) == 0 }

// Events returns a copy of the rows in time order.
func (t Table) Events() []Event {
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

// Between returns the rows with start <= time <= end. A zero start or end
// leaves that side open.
func (t Table) Between(start, end time.Time) Table {
	lo := 0
	if !start.IsZero() {
		lo = sort.Search(len(t.events), func(i int) bool {
			return !t.events[i].Time.Before(start)
		})
	}
	hi := len(t.events)
	if !end.IsZero() {
		hi = sort.Search(len(t.events), func(i int) bool {
			return t.events[i].Time.After(end)
		})
	}
	if lo >= hi {
		return Table{}
	}
	// The backing array is never mutated, so sharing it is safe.
	return Table{events: t.events[lo:hi:hi]}
}

// Summary computes the table extent.
func (t Table) Summary() Summary {
	s := Summary{Count: len(t.events)}
	if s.Count == 0 {
		return s
	}
	s.Earliest = t.events[0].Time
	s.Latest = t.events[len(t.events)-1].Time
	s.MinMagnitude = t.events[0].Magnitude
	s.MaxMagnitude = t.events[0].Magnitude
	for _, e := range t.events[1:] {
		if e.Magnitude < s.MinMagnitude {
			s.MinMagnitude = e.Magnitude
		}
		if e.Magnitude > s.MaxMagnitude {
			s.MaxMagnitude = e.Magnitude
		}
	}
	return s
}
