package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/quake-data-etl/internal/domain"
)

// GeoJSONFile reads boundary geometries from a GeoJSON document holding a
// FeatureCollection, a single Feature or a bare geometry.
type GeoJSONFile struct {
	Path string
}

func (f GeoJSONFile) String() string { return f.Path }

// ReadGeometries implements GeometrySource.
func (f GeoJSONFile) ReadGeometries(_ context.Context) ([]orb.Geometry, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w: %w", f.Path, domain.ErrDataUnavailable, err)
	}
	geoms, err := decodeGeoJSON(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w: %w", f.Path, domain.ErrDataUnavailable, err)
	}
	return geoms, nil
}

func decodeGeoJSON(data []byte) ([]orb.Geometry, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}

	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, err
		}
		geoms := make([]orb.Geometry, 0, len(fc.Features))
		for _, feat := range fc.Features {
			if feat.Geometry != nil {
				geoms = append(geoms, feat.Geometry)
			}
		}
		return geoms, nil
	case "Feature":
		feat, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, err
		}
		if feat.Geometry == nil {
			return nil, nil
		}
		return []orb.Geometry{feat.Geometry}, nil
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, err
		}
		return []orb.Geometry{g.Geometry()}, nil
	}
}
