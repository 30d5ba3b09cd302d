package geo

import (
	"fmt"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"
)

// R-tree node fan-out for the edge index.
const (
	edgeIndexMinChildren = 25
	edgeIndexMaxChildren = 50
)

// Buffered is a region expanded outward by a fixed distance measured in a
// planar projection. A point is inside when its projection falls within the
// projected region or within the distance of any projected edge.
type Buffered struct {
	proj     Projection
	distance float64
	region   orb.MultiPolygon // projected
	bound    orb.Bound        // projected, padded by distance
	envelope orb.Bound        // geographic prefilter
	edges    *rtreego.Rtree
}

// edge is one projected ring segment stored in the R-tree.
type edge struct {
	a, b orb.Point
	rect rtreego.Rect
}

func (e *edge) Bounds() rtreego.Rect { return e.rect }

// NewBuffered projects region with proj and indexes its edges.
func NewBuffered(region orb.MultiPolygon, proj Projection, meters float64) (*Buffered, error) {
	if meters < 0 {
		return nil, fmt.Errorf("%w: %v", ErrNegativeBuffer, meters)
	}

	projected := project.MultiPolygon(orb.Clone(region).(orb.MultiPolygon), proj.Forward)

	var objs []rtreego.Spatial
	for _, poly := range projected {
		for _, ring := range poly {
			n := len(ring)
			for i := 0; i < n; i++ {
				j := (i + 1) % n
				if i == n-1 && ring.Closed() {
					break
				}
				e, err := newEdge(ring[i], ring[j])
				if err != nil {
					return nil, fmt.Errorf("index edge: %w", err)
				}
				objs = append(objs, e)
			}
		}
	}

	// The geographic prefilter is padded generously: it only has to keep every
	// candidate, the exact test runs in projected space.
	envelope := geo.BoundPad(region.Bound(), 2*meters+1000)

	return &Buffered{
		proj:     proj,
		distance: meters,
		region:   projected,
		bound:    projected.Bound().Pad(meters),
		envelope: envelope,
		edges:    rtreego.NewTree(2, edgeIndexMinChildren, edgeIndexMaxChildren, objs...),
	}, nil
}

func newEdge(a, b orb.Point) (*edge, error) {
	rect, err := rtreego.NewRectFromPoints(rtreego.Point{a.X(), a.Y()}, rtreego.Point{b.X(), b.Y()})
	if err != nil {
		return nil, err
	}
	return &edge{a: a, b: b, rect: rect}, nil
}

// Projection returns the CRS the buffer is measured in.
func (b *Buffered) Projection() Projection { return b.proj }

// Distance returns the buffer distance in projected units.
func (b *Buffered) Distance() float64 { return b.distance }

// Contains reports whether the geographic point p lies in the buffered region.
func (b *Buffered) Contains(p orb.Point) bool {
	if !b.envelope.Contains(p) {
		return false
	}
	pp := b.proj.Forward(p)
	if !b.bound.Contains(pp) {
		return false
	}
	if planar.MultiPolygonContains(b.region, pp) {
		return true
	}
	if b.distance == 0 {
		return false
	}
	return b.nearEdge(pp)
}

func (b *Buffered) nearEdge(pp orb.Point) bool {
	query := rtreego.Point{pp.X(), pp.Y()}.ToRect(b.distance)
	for _, obj := range b.edges.SearchIntersect(query) {
		e := obj.(*edge)
		if planar.DistanceFromSegment(e.a, e.b, pp) <= b.distance {
			return true
		}
	}
	return false
}
