// Package ingest turns a raw earthquake source into a normalized event table:
// the remote catalog, a seismograph CSV export or a catalog CSV export.
package ingest

import (
	"time"

	"github.com/couchcryptid/quake-data-etl/internal/domain"
)

// Source is one of RemoteCatalog, SeismographCSV or CatalogCSV. The set is
// closed; Ingest dispatches on the concrete type.
type Source interface {
	Name() string
	isSource()
}

// Catalog query defaults.
const (
	DefaultMinMagnitude = 3.0
	EventTypeEarthquake = "earthquake"
	OrderByTime         = "time"
)

// DefaultCatalogStart is the first day requested from the remote catalog.
var DefaultCatalogStart = time.Date(2010, time.October, 7, 0, 0, 0, 0, time.UTC)

// RemoteCatalog queries a seismic catalog over the boundary's bounding box.
type RemoteCatalog struct {
	Catalog domain.Catalog
	// Start is the first requested day; zero selects DefaultCatalogStart.
	Start time.Time
	// End is the last requested day; zero selects the run date.
	End time.Time
	// MinMagnitude filters small events server-side; zero selects DefaultMinMagnitude.
	MinMagnitude float64
}

// SeismographCSV is a seismograph network export: Date, Time, Latitude,
// Longitude and Magnitude in the first five columns. Dates are day-first.
type SeismographCSV struct {
	Path string
}

// CatalogCSV is a catalog export with named columns time, latitude,
// longitude, depth and mag, plus an optional place column.
type CatalogCSV struct {
	Path string
}

func (RemoteCatalog) Name() string    { return "catalog" }
func (s SeismographCSV) Name() string { return s.Path }
func (s CatalogCSV) Name() string     { return s.Path }

func (RemoteCatalog) isSource()  {}
func (SeismographCSV) isSource() {}
func (CatalogCSV) isSource()     {}
