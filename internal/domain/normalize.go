package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// Normalize filters records to the region, converts their times to loc and
// returns them as a time-sorted table. A nil loc keeps times in UTC.
func Normalize(records []Record, region Region, loc *time.Location) Table {
	if loc == nil {
		loc = time.UTC
	}
	events := make([]Event, 0, len(records))
	for _, rec := range records {
		if !region.Contains(rec.Point) {
			continue
		}
		events = append(events, NewEvent(rec.Time.In(loc), rec.Magnitude, rec.Depth, rec.Point.Lon(), rec.Point.Lat(), rec.Place))
	}
	return NewTable(events)
}

// NewEvent builds an event and assigns its deterministic ID.
func NewEvent(t time.Time, mag float64, depth *float64, lon, lat float64, place string) Event {
	return Event{
		ID:        generateID(t, lat, lon, mag, depth, place),
		Time:      t,
		Magnitude: mag,
		Depth:     depth,
		Latitude:  lat,
		Longitude: lon,
		Place:     place,
	}
}

// generateID hashes every stored field of the event at full precision. The
// time is reduced to UTC microseconds, the snapshot's resolution, so the same
// instant in another location hashes equally. Rows with equal IDs are exact
// duplicates; NewTable tells them apart with OccurrenceID.
func generateID(t time.Time, lat, lon, mag float64, depth *float64, place string) string {
	d := "-"
	if depth != nil {
		d = strconv.FormatFloat(*depth, 'g', -1, 64)
	}
	input := fmt.Sprintf("%d|%g|%g|%g|%s|%s", t.UTC().UnixMicro(), lat, lon, mag, d, place)
	hash := sha256.Sum256([]byte(input))
	return "eq-" + hex.EncodeToString(hash[:8])
}

// OccurrenceID is the ID of the nth repeat (n >= 1) of an event whose first
// occurrence has ID base.
func OccurrenceID(base string, n int) string {
	return base + "-" + strconv.Itoa(n)
}
