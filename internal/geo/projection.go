// Package geo loads the country boundary and answers the spatial questions the
// ingestion pipeline asks of it: bounding box and buffered point inclusion.
package geo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/wroge/wgs84"
)

// Projection maps geographic lon/lat to a planar metric CRS and back.
type Projection interface {
	Name() string
	Forward(p orb.Point) orb.Point
	Inverse(p orb.Point) orb.Point
}

// DefaultProjection is UTM zone 45N, which covers Nepal with sub-percent
// scale error, so buffer distances are close to true ground metres.
const DefaultProjection = "EPSG:32645"

// ProjectionByName resolves an EPSG code. Supported: EPSG:3857 and the
// WGS 84 UTM zones EPSG:32601-32660 (north) and EPSG:32701-32760 (south).
func ProjectionByName(name string) (Projection, error) {
	code, ok := strings.CutPrefix(strings.ToUpper(strings.TrimSpace(name)), "EPSG:")
	if !ok {
		return nil, fmt.Errorf("unsupported projection %q: want EPSG:<code>", name)
	}
	n, err := strconv.Atoi(code)
	if err != nil {
		return nil, fmt.Errorf("unsupported projection %q: %w", name, err)
	}
	switch {
	case n == 3857:
		return WebMercator{}, nil
	case n >= 32601 && n <= 32660:
		return UTM{Zone: n - 32600, North: true}, nil
	case n >= 32701 && n <= 32760:
		return UTM{Zone: n - 32700}, nil
	default:
		return nil, fmt.Errorf("unsupported projection %q", name)
	}
}

// WebMercator is the spherical pseudo-Mercator (EPSG:3857). Its metres are
// only true at the equator; at Nepal's latitude one projected metre is about
// 0.88 ground metres.
type WebMercator struct{}

func (WebMercator) Name() string                  { return "EPSG:3857" }
func (WebMercator) Forward(p orb.Point) orb.Point { return project.WGS84.ToMercator(p) }
func (WebMercator) Inverse(p orb.Point) orb.Point { return project.Mercator.ToWGS84(p) }

// UTM is a WGS 84 Universal Transverse Mercator zone. The zone is fixed, so
// points outside it are still projected in its grid.
type UTM struct {
	Zone  int
	North bool
}

func (u UTM) Name() string {
	if u.North {
		return fmt.Sprintf("EPSG:%d", 32600+u.Zone)
	}
	return fmt.Sprintf("EPSG:%d", 32700+u.Zone)
}

func (u UTM) Forward(p orb.Point) orb.Point {
	x, y, _ := wgs84.LonLat().To(wgs84.UTM(float64(u.Zone), u.North))(p.Lon(), p.Lat(), 0)
	return orb.Point{x, y}
}

func (u UTM) Inverse(p orb.Point) orb.Point {
	lon, lat, _ := wgs84.UTM(float64(u.Zone), u.North).To(wgs84.LonLat())(p.X(), p.Y(), 0)
	return orb.Point{lon, lat}
}
