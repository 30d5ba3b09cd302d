// Package usgs queries the USGS FDSN event web service for earthquakes.
package usgs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/quake-data-etl/internal/domain"
	"github.com/couchcryptid/quake-data-etl/internal/observability"
)

// DefaultBaseURL is the FDSN event query endpoint returning GeoJSON.
const DefaultBaseURL = "https://earthquake.usgs.gov/fdsnws/event/1/query.geojson"

// Error bodies are truncated to this many bytes.
const maxErrorBody = 512

// Client implements domain.Catalog using the USGS FDSN event service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a catalog client. A zero timeout leaves requests bounded
// only by the caller's context.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		logger:  logger,
		metrics: metrics,
	}
}

// QueryEvents fetches every event matching q.
func (c *Client) QueryEvents(ctx context.Context, q domain.CatalogQuery) ([]domain.Record, error) {
	fullURL := c.baseURL + "?" + queryParams(q).Encode()

	start := time.Now()
	records, err := c.doRequest(ctx, fullURL)
	c.metrics.CatalogAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.CatalogRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	c.metrics.CatalogRequests.WithLabelValues("success").Inc()

	c.logger.Debug("catalog query complete", "events", len(records), "duration", time.Since(start))
	return records, nil
}

func queryParams(q domain.CatalogQuery) url.Values {
	params := url.Values{
		"starttime":    {q.Start.Format(time.DateOnly)},
		"endtime":      {q.End.Format(time.DateOnly)},
		"minlatitude":  {formatFloat(q.Bound.Min.Lat())},
		"maxlatitude":  {formatFloat(q.Bound.Max.Lat())},
		"minlongitude": {formatFloat(q.Bound.Min.Lon())},
		"maxlongitude": {formatFloat(q.Bound.Max.Lon())},
		"minmagnitude": {formatFloat(q.MinMagnitude)},
	}
	if q.EventType != "" {
		params.Set("eventtype", q.EventType)
	}
	if q.OrderBy != "" {
		params.Set("orderby", q.OrderBy)
	}
	return params
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]domain.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.FetchError{URL: c.baseURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &domain.FetchError{URL: c.baseURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("catalog API error: %s", body)}
	}

	var catalogResp response
	if err := json.NewDecoder(resp.Body).Decode(&catalogResp); err != nil {
		return nil, &domain.FetchError{URL: c.baseURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}

	records := make([]domain.Record, 0, len(catalogResp.Features))
	for i, f := range catalogResp.Features {
		rec, err := f.record()
		if err != nil {
			return nil, &domain.ParseError{Source: c.baseURL, Line: i + 1, Column: featureColumn(err), Err: err}
		}
		records = append(records, rec)
	}
	return records, nil
}

// USGS GeoJSON response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	ID         string     `json:"id"`
	Properties properties `json:"properties"`
	Geometry   *geometry  `json:"geometry"`
}

type properties struct {
	Mag   *float64 `json:"mag"`
	Place string   `json:"place"`
	Time  *int64   `json:"time"` // epoch milliseconds, UTC
}

type geometry struct {
	Coordinates []float64 `json:"coordinates"` // [lon, lat, depth?]
}

// fieldError names the feature member that could not be used.
type fieldError struct {
	field string
	err   error
}

func (e *fieldError) Error() string { return e.field + ": " + e.err.Error() }
func (e *fieldError) Unwrap() error { return e.err }

var errMissing = errors.New("missing")

func featureColumn(err error) string {
	var fe *fieldError
	if errors.As(err, &fe) {
		return fe.field
	}
	return ""
}

func (f feature) record() (domain.Record, error) {
	if f.Properties.Time == nil {
		return domain.Record{}, &fieldError{field: "time", err: errMissing}
	}
	if f.Properties.Mag == nil {
		return domain.Record{}, &fieldError{field: "mag", err: errMissing}
	}
	if f.Geometry == nil || len(f.Geometry.Coordinates) < 2 {
		return domain.Record{}, &fieldError{field: "geometry", err: errMissing}
	}

	coords := f.Geometry.Coordinates
	rec := domain.Record{
		Time:      time.UnixMilli(*f.Properties.Time).UTC(),
		Magnitude: *f.Properties.Mag,
		Place:     f.Properties.Place,
		Point:     orb.Point{coords[0], coords[1]},
	}
	if len(coords) > 2 {
		depth := coords[2]
		rec.Depth = &depth
	}
	return rec, nil
}
