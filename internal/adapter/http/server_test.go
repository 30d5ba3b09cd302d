package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/quake-data-etl/internal/adapter/http"
	"github.com/couchcryptid/quake-data-etl/internal/domain"
)

type stubDataset struct {
	table domain.Table
	err   error
}

func (s *stubDataset) CheckReadiness(_ context.Context) error { return s.err }
func (s *stubDataset) Current() domain.Table                 { return s.table }

func kathmandu(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kathmandu")
	require.NoError(t, err)
	return loc
}

// testTable holds four events whose Kathmandu calendar days differ from
// their UTC ones near midnight.
func testTable(loc *time.Location) domain.Table {
	at := func(y int, m time.Month, d, h, min int) time.Time {
		return time.Date(y, m, d, h, min, 0, 0, time.UTC).In(loc)
	}
	return domain.NewTable([]domain.Event{
		domain.NewEvent(at(2015, 4, 24, 20, 0), 4.1, nil, 85.3, 27.7, ""),         // 2015-04-25 01:45 local
		domain.NewEvent(at(2015, 4, 25, 6, 11), 7.8, nil, 84.73, 28.23, "Gorkha"), // 2015-04-25 11:56 local
		domain.NewEvent(at(2015, 4, 25, 18, 30), 5.0, nil, 85.9, 27.9, ""),        // 2015-04-26 00:15 local
		domain.NewEvent(at(2015, 5, 12, 7, 5), 7.3, nil, 86.07, 27.81, "Dolakha"), // 2015-05-12 12:50 local
	})
}

func newTestServer(t *testing.T, data *stubDataset) *httpadapter.Server {
	t.Helper()
	return httpadapter.NewServer(":0", data, kathmandu(t), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func get(t *testing.T, srv http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestEvents_DateRange(t *testing.T) {
	loc := kathmandu(t)
	srv := newTestServer(t, &stubDataset{table: testTable(loc)})

	tests := []struct {
		name     string
		query    string
		wantMags []float64
	}{
		{"no bounds", "", []float64{4.1, 7.8, 5.0, 7.3}},
		{"single local day", "?start=2015-04-25&end=2015-04-25", []float64{4.1, 7.8}},
		{"start only", "?start=2015-04-26", []float64{5.0, 7.3}},
		{"end only", "?end=2015-04-26", []float64{4.1, 7.8, 5.0}},
		{"no matches", "?start=2020-01-01", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, srv, "/events"+tt.query)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body httpadapter.EventsResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

			var mags []float64
			for _, e := range body.Events {
				mags = append(mags, e.Magnitude)
			}
			assert.Equal(t, tt.wantMags, mags)
			assert.Equal(t, len(tt.wantMags), body.Summary.Count)
		})
	}
}

func TestEvents_EmptySummaryOmitsBounds(t *testing.T) {
	srv := newTestServer(t, &stubDataset{table: testTable(kathmandu(t))})

	rec := get(t, srv, "/events?start=2020-01-01")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Summary map[string]any `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotContains(t, body.Summary, "earliest")
	assert.NotContains(t, body.Summary, "latest")
	assert.InDelta(t, 0, body.Summary["count"], 0)
}

func TestEvents_Summary(t *testing.T) {
	loc := kathmandu(t)
	srv := newTestServer(t, &stubDataset{table: testTable(loc)})

	rec := get(t, srv, "/events?start=2015-04-25&end=2015-05-31")
	require.Equal(t, http.StatusOK, rec.Code)

	var body httpadapter.EventsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 4, body.Summary.Count)
	assert.InDelta(t, 4.1, body.Summary.MinMagnitude, 1e-9)
	assert.InDelta(t, 7.8, body.Summary.MaxMagnitude, 1e-9)
	assert.True(t, body.Summary.Earliest.Equal(time.Date(2015, 4, 24, 20, 0, 0, 0, time.UTC)))
	assert.True(t, body.Summary.Latest.Equal(time.Date(2015, 5, 12, 7, 5, 0, 0, time.UTC)))
	assert.Contains(t, rec.Body.String(), "+05:45", "times are rendered in the display zone")
}

func TestEvents_BadRequest(t *testing.T) {
	srv := newTestServer(t, &stubDataset{table: testTable(kathmandu(t))})

	tests := []struct {
		name    string
		query   string
		wantErr string
	}{
		{"bad start", "?start=25/04/2015", "invalid start"},
		{"bad end", "?end=2015-02-30", "invalid end"},
		{"start after end", "?start=2015-05-01&end=2015-04-01", "is after end"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, srv, "/events"+tt.query)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Contains(t, body["error"], tt.wantErr)
		})
	}
}

func TestEvents_NotReady(t *testing.T) {
	srv := newTestServer(t, &stubDataset{err: errors.New("no dataset loaded")})

	rec := get(t, srv, "/events")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "no dataset loaded")
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(t, newTestServer(t, &stubDataset{}), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := get(t, newTestServer(t, &stubDataset{}), "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := get(t, newTestServer(t, &stubDataset{err: errors.New("not ready yet")}), "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, newTestServer(t, &stubDataset{}), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
