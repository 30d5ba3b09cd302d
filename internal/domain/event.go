package domain

import (
	"context"
	"time"

	"github.com/paulmach/orb"
)

// Record is a parsed source row before spatial filtering. The point geometry
// only exists here; normalized events carry explicit longitude/latitude.
type Record struct {
	Time      time.Time
	Magnitude float64
	Depth     *float64 // kilometres, nil when the source has no depth column
	Place     string
	Point     orb.Point // [lon, lat]
}

// Event is one normalized earthquake observation.
type Event struct {
	ID        string    `json:"id"`
	Time      time.Time `json:"time"`
	Magnitude float64   `json:"mag"`
	Depth     *float64  `json:"depth,omitempty"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Place     string    `json:"place,omitempty"`
}

// CatalogQuery describes a bounded request against a seismic event catalog.
type CatalogQuery struct {
	Start        time.Time
	End          time.Time
	Bound        orb.Bound
	MinMagnitude float64
	EventType    string
	OrderBy      string
}

// Catalog fetches raw event records from a remote seismic catalog.
type Catalog interface {
	QueryEvents(ctx context.Context, q CatalogQuery) ([]Record, error)
}

// Region reports whether a geographic point is accepted by the spatial filter.
type Region interface {
	Contains(p orb.Point) bool
}
