package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/quake-data-etl/internal/domain"
	"github.com/couchcryptid/quake-data-etl/internal/geo"
)

// Query builds the catalog request for a boundary extent on the given run date.
func (s RemoteCatalog) Query(bound orb.Bound, now time.Time) domain.CatalogQuery {
	start := s.Start
	if start.IsZero() {
		start = DefaultCatalogStart
	}
	end := s.End
	if end.IsZero() {
		y, m, d := now.UTC().Date()
		end = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	minMag := s.MinMagnitude
	if minMag == 0 {
		minMag = DefaultMinMagnitude
	}
	return domain.CatalogQuery{
		Start:        start,
		End:          end,
		Bound:        bound,
		MinMagnitude: minMag,
		EventType:    EventTypeEarthquake,
		OrderBy:      OrderByTime,
	}
}

func (s RemoteCatalog) fetch(ctx context.Context, boundary *geo.Boundary, opts Options) ([]domain.Record, error) {
	if s.Catalog == nil {
		return nil, errors.New("remote catalog: no client configured")
	}
	q := s.Query(boundary.Bound(), opts.Clock.Now())
	opts.Logger.Debug("querying catalog",
		"start", q.Start.Format(time.DateOnly),
		"end", q.End.Format(time.DateOnly),
		"min_magnitude", q.MinMagnitude,
		"bbox", []float64{q.Bound.Min.X(), q.Bound.Min.Y(), q.Bound.Max.X(), q.Bound.Max.Y()},
	)
	return s.Catalog.QueryEvents(ctx, q)
}
