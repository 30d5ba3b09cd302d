package geo

import (
	"context"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/couchcryptid/quake-data-etl/internal/domain"
)

// DefaultBufferMeters is the tolerance band kept around the boundary so that
// events located just across the border are still retained.
const DefaultBufferMeters = 20000.0

// ErrNegativeBuffer is returned when a buffer distance below zero is requested.
var ErrNegativeBuffer = errors.New("buffer distance must not be negative")

// GeometrySource yields the raw boundary geometries in geographic lon/lat.
type GeometrySource interface {
	ReadGeometries(ctx context.Context) ([]orb.Geometry, error)
}

// BoundaryOptions controls how the buffered region is derived.
type BoundaryOptions struct {
	// Projection is the planar CRS in which the buffer is measured.
	// Nil selects DefaultProjection.
	Projection Projection
	// BufferMeters is the buffer distance in projected units.
	BufferMeters float64
}

// DefaultBoundaryOptions returns UTM zone 45N with a 20 km buffer.
func DefaultBoundaryOptions() BoundaryOptions {
	return BoundaryOptions{Projection: UTM{Zone: 45, North: true}, BufferMeters: DefaultBufferMeters}
}

// Boundary is the dissolved country region. It is immutable once loaded.
type Boundary struct {
	region   orb.MultiPolygon
	bound    orb.Bound
	buffered *Buffered
}

// LoadBoundary reads every geometry from src, keeps the polygonal ones and
// dissolves them into a single region with a derived buffered copy.
func LoadBoundary(ctx context.Context, src GeometrySource, opts BoundaryOptions) (*Boundary, error) {
	if opts.BufferMeters < 0 {
		return nil, fmt.Errorf("load boundary: %w: %v", ErrNegativeBuffer, opts.BufferMeters)
	}
	geoms, err := src.ReadGeometries(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrDataUnavailable) {
			return nil, fmt.Errorf("load boundary: %w", err)
		}
		return nil, fmt.Errorf("load boundary: %w: %w", domain.ErrDataUnavailable, err)
	}
	return NewBoundary(geoms, opts)
}

// NewBoundary builds a boundary from in-memory geometries.
func NewBoundary(geoms []orb.Geometry, opts BoundaryOptions) (*Boundary, error) {
	if opts.BufferMeters < 0 {
		return nil, fmt.Errorf("new boundary: %w: %v", ErrNegativeBuffer, opts.BufferMeters)
	}
	if opts.Projection == nil {
		opts.Projection = UTM{Zone: 45, North: true}
	}

	region := dissolve(geoms)
	if len(region) == 0 {
		return nil, fmt.Errorf("new boundary: %w: no polygon geometries", domain.ErrDataUnavailable)
	}

	buffered, err := NewBuffered(region, opts.Projection, opts.BufferMeters)
	if err != nil {
		return nil, fmt.Errorf("new boundary: %w", err)
	}
	return &Boundary{region: region, bound: region.Bound(), buffered: buffered}, nil
}

// dissolve collects the polygonal parts of geoms into one multipolygon.
// Containment over the result is the union of its parts.
func dissolve(geoms []orb.Geometry) orb.MultiPolygon {
	var out orb.MultiPolygon
	for _, g := range geoms {
		switch g := g.(type) {
		case orb.Polygon:
			if len(g) > 0 && len(g[0]) >= 4 {
				out = append(out, orb.Clone(g).(orb.Polygon))
			}
		case orb.MultiPolygon:
			for _, p := range g {
				if len(p) > 0 && len(p[0]) >= 4 {
					out = append(out, orb.Clone(p).(orb.Polygon))
				}
			}
		case orb.Collection:
			out = append(out, dissolve(g)...)
		}
	}
	return out
}

// Region returns a copy of the dissolved region.
func (b *Boundary) Region() orb.MultiPolygon {
	return orb.Clone(b.region).(orb.MultiPolygon)
}

// Bound returns the bounding box of the unbuffered region.
func (b *Boundary) Bound() orb.Bound { return b.bound }

// BBox returns the region extent as (minX, minY, maxX, maxY) in degrees.
func (b *Boundary) BBox() (minX, minY, maxX, maxY float64) {
	return b.bound.Min.X(), b.bound.Min.Y(), b.bound.Max.X(), b.bound.Max.Y()
}

// Contains reports whether p lies in the unbuffered region.
func (b *Boundary) Contains(p orb.Point) bool {
	if !b.bound.Contains(p) {
		return false
	}
	return planar.MultiPolygonContains(b.region, p)
}

// Buffered returns the region expanded by the configured buffer distance.
func (b *Boundary) Buffered() *Buffered { return b.buffered }
