//go:build usgs

package usgs

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/quake-data-etl/internal/domain"
	"github.com/couchcryptid/quake-data-etl/internal/observability"
)

// These tests hit the real USGS event service.
// Run with: go test -tags=usgs ./internal/adapter/usgs/ -v -count=1

func smokeClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    DefaultBaseURL,
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestSmoke_QueryEvents_GorkhaSequence(t *testing.T) {
	q := domain.CatalogQuery{
		Start:        time.Date(2015, 4, 25, 0, 0, 0, 0, time.UTC),
		End:          time.Date(2015, 4, 26, 0, 0, 0, 0, time.UTC),
		Bound:        orb.Bound{Min: orb.Point{80.0, 26.0}, Max: orb.Point{88.5, 30.5}},
		MinMagnitude: 3,
		EventType:    "earthquake",
		OrderBy:      "time",
	}

	records, err := smokeClient().QueryEvents(context.Background(), q)
	require.NoError(t, err)
	require.NotEmpty(t, records)

	for _, r := range records {
		assert.GreaterOrEqual(t, r.Magnitude, 3.0)
		assert.True(t, q.Bound.Contains(r.Point), "event %v outside query bbox", r.Point)
	}
}
