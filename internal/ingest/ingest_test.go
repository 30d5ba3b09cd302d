package ingest_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/quake-data-etl/internal/domain"
	"github.com/couchcryptid/quake-data-etl/internal/geo"
	"github.com/couchcryptid/quake-data-etl/internal/ingest"
)

// --- helpers ---

var runDate = time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

func testBoundary(t *testing.T) *geo.Boundary {
	t.Helper()
	nepalBox := orb.Polygon{{{80.0, 26.4}, {88.2, 26.4}, {88.2, 30.4}, {80.0, 30.4}, {80.0, 26.4}}}
	b, err := geo.NewBoundary([]orb.Geometry{nepalBox}, geo.DefaultBoundaryOptions())
	require.NoError(t, err)
	return b
}

func testOptions(t *testing.T) ingest.Options {
	t.Helper()
	loc, err := time.LoadLocation(ingest.DefaultTimezone)
	require.NoError(t, err)
	return ingest.Options{
		Location: loc,
		Clock:    clockwork.NewFakeClockAt(runDate),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

type stubCatalog struct {
	records []domain.Record
	err     error
	query   domain.CatalogQuery
	calls   int
}

func (s *stubCatalog) QueryEvents(_ context.Context, q domain.CatalogQuery) ([]domain.Record, error) {
	s.calls++
	s.query = q
	return s.records, s.err
}

// --- remote catalog ---

func TestIngest_RemoteCatalog(t *testing.T) {
	depth := 8.2
	cat := &stubCatalog{records: []domain.Record{
		{Time: time.Date(2015, 5, 12, 7, 5, 19, 730e6, time.UTC), Magnitude: 7.3, Point: orb.Point{86.0655, 27.8087}, Place: "19 km SE of Kodari, Nepal"},
		{Time: time.Date(2015, 4, 25, 6, 11, 26, 0, time.UTC), Magnitude: 7.8, Depth: &depth, Point: orb.Point{84.73, 28.23}, Place: "36 km E of Khudi, Nepal"},
		{Time: time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC), Magnitude: 5.0, Point: orb.Point{0, 0}},
	}}
	b := testBoundary(t)
	opts := testOptions(t)

	res, err := ingest.Run(context.Background(), ingest.RemoteCatalog{Catalog: cat}, b, opts)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Read)
	assert.Equal(t, 1, res.Dropped)
	require.Equal(t, 2, res.Table.Len())

	events := res.Table.Events()
	assert.Equal(t, "36 km E of Khudi, Nepal", events[0].Place)
	assert.Equal(t, 84.73, events[0].Longitude)
	assert.Equal(t, 28.23, events[0].Latitude)
	assert.Equal(t, "2015-04-25T11:56:26+05:45", events[0].Time.Format(time.RFC3339))
	assert.Equal(t, "19 km SE of Kodari, Nepal", events[1].Place)

	t.Run("query parameters", func(t *testing.T) {
		q := cat.query
		assert.Equal(t, b.Bound(), q.Bound)
		assert.Equal(t, 3.0, q.MinMagnitude)
		assert.Equal(t, "earthquake", q.EventType)
		assert.Equal(t, "time", q.OrderBy)
		assert.Equal(t, ingest.DefaultCatalogStart, q.Start)
		assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), q.End)
	})
}

func TestIngest_RemoteCatalogExplicitQuery(t *testing.T) {
	cat := &stubCatalog{}
	src := ingest.RemoteCatalog{
		Catalog:      cat,
		Start:        time.Date(2015, 4, 1, 0, 0, 0, 0, time.UTC),
		End:          time.Date(2015, 6, 1, 0, 0, 0, 0, time.UTC),
		MinMagnitude: 4.5,
	}

	table, err := ingest.Ingest(context.Background(), src, testBoundary(t), testOptions(t))
	require.NoError(t, err)
	assert.True(t, table.Empty())
	assert.Equal(t, src.Start, cat.query.Start)
	assert.Equal(t, src.End, cat.query.End)
	assert.Equal(t, 4.5, cat.query.MinMagnitude)
}

func TestIngest_RemoteCatalogFetchError(t *testing.T) {
	cat := &stubCatalog{err: &domain.FetchError{URL: "http://catalog", StatusCode: 503, Err: errors.New("service unavailable")}}

	_, err := ingest.Ingest(context.Background(), ingest.RemoteCatalog{Catalog: cat}, testBoundary(t), testOptions(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetch)
	assert.Equal(t, 1, cat.calls, "ingestion does not retry")
}

func TestIngest_RemoteCatalogWithoutClient(t *testing.T) {
	_, err := ingest.Ingest(context.Background(), ingest.RemoteCatalog{}, testBoundary(t), testOptions(t))
	assert.Error(t, err)
}

// --- seismograph CSV ---

func TestIngest_SeismographCSV(t *testing.T) {
	src := ingest.SeismographCSV{Path: filepath.Join("testdata", "seismograph.csv")}

	res, err := ingest.Run(context.Background(), src, testBoundary(t), testOptions(t))
	require.NoError(t, err)

	assert.Equal(t, 5, res.Read, "the 2019-05-31 row is outside the retention window")
	assert.Equal(t, 1, res.Dropped, "the (0, 0) row is outside the boundary")
	require.Equal(t, 4, res.Table.Len())

	events := res.Table.Events()
	var stamps []string
	for _, e := range events {
		stamps = append(stamps, e.Time.UTC().Format(time.DateTime))
		assert.Nil(t, e.Depth)
		assert.Empty(t, e.Place)
	}
	assert.Equal(t, []string{
		"2019-06-01 00:00:00",
		"2023-03-15 14:20:05",
		"2023-11-03 18:02:54",
		"2024-03-02 06:30:00",
	}, stamps)

	assert.Equal(t, 85.30, events[0].Longitude)
	assert.Equal(t, 27.70, events[0].Latitude)
	assert.Equal(t, 4.2, events[0].Magnitude)
	assert.Equal(t, "2024-03-02T12:15:00+05:45", events[3].Time.Format(time.RFC3339))
}

func TestIngest_SeismographDayFirstSeparators(t *testing.T) {
	path := writeCSV(t, "Date,Time,Latitude,Longitude,Magnitude\n"+
		"04/05/2024,10:00:00,27.7,85.3,4.0\n"+
		"05-04-2024,10:00:00,27.7,85.3,4.1\n"+
		"06.04.2024,10:00:00,27.7,85.3,4.2\n"+
		"7-4-2024,10:00:00,27.7,85.3,4.3\n"+
		"2024-04-08,10:00:00,27.7,85.3,4.4\n")

	table, err := ingest.Ingest(context.Background(), ingest.SeismographCSV{Path: path}, testBoundary(t), testOptions(t))
	require.NoError(t, err)

	var days []string
	for _, e := range table.Events() {
		days = append(days, e.Time.UTC().Format(time.DateOnly))
	}
	assert.Equal(t, []string{"2024-05-04", "2024-04-05", "2024-04-06", "2024-04-07", "2024-04-08"}, days)
}

func TestIngest_SeismographRetentionFollowsClock(t *testing.T) {
	path := writeCSV(t, "Date,Time,Latitude,Longitude,Magnitude\n"+
		"10/01/2020,08:00:00,27.7,85.3,4.0\n")

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"within five years", time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), 1},
		{"exactly five years after the day", time.Date(2025, 1, 10, 23, 0, 0, 0, time.UTC), 1},
		{"more than five years", time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions(t)
			opts.Clock = clockwork.NewFakeClockAt(tt.now)
			table, err := ingest.Ingest(context.Background(), ingest.SeismographCSV{Path: path}, testBoundary(t), opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, table.Len())
		})
	}
}

func TestIngest_SeismographErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		line    int
		column  string
	}{
		{"too few header columns", "Date,Time,Latitude\n", 1, ""},
		{"short row", "Date,Time,Latitude,Longitude,Magnitude\n01/01/2024,00:00:00,27.7\n", 2, ""},
		{"bad date", "Date,Time,Latitude,Longitude,Magnitude\n2024-13-45,25:61:00,27.7,85.3,4.0\n", 2, "Date"},
		{"day-first dashed month out of range", "Date,Time,Latitude,Longitude,Magnitude\n05-13-2024,10:00:00,27.7,85.3,4.0\n", 2, "Date"},
		{"day-first dotted month out of range", "Date,Time,Latitude,Longitude,Magnitude\n05.13.2024,10:00:00,27.7,85.3,4.0\n", 2, "Date"},
		{"bad latitude", "Date,Time,Latitude,Longitude,Magnitude\n01/01/2024,00:00:00,north,85.3,4.0\n", 2, "Latitude"},
		{"empty magnitude", "Date,Time,Latitude,Longitude,Magnitude\n01/01/2024,00:00:00,27.7,85.3,\n", 2, "Magnitude"},
		{"empty file", "", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeCSV(t, tt.content)
			_, err := ingest.Ingest(context.Background(), ingest.SeismographCSV{Path: path}, testBoundary(t), testOptions(t))
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrParse)

			var pe *domain.ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.line, pe.Line)
			assert.Equal(t, tt.column, pe.Column)
		})
	}
}

// --- catalog CSV ---

func TestIngest_CatalogCSV(t *testing.T) {
	src := ingest.CatalogCSV{Path: filepath.Join("testdata", "catalog.csv")}

	res, err := ingest.Run(context.Background(), src, testBoundary(t), testOptions(t))
	require.NoError(t, err)
	assert.Equal(t, 4, res.Read)
	require.Equal(t, 3, res.Table.Len())

	events := res.Table.Events()
	gorkha := events[0]
	assert.InDelta(t, 84.73, gorkha.Longitude, 1e-5)
	assert.InDelta(t, 28.23, gorkha.Latitude, 1e-5)
	assert.InDelta(t, 7.8, gorkha.Magnitude, 1e-5)
	require.NotNil(t, gorkha.Depth)
	assert.InDelta(t, 8.2, *gorkha.Depth, 1e-5)
	assert.Equal(t, "36 km E of Khudi, Nepal", gorkha.Place)
	assert.Equal(t, "2015-04-25T11:56:26+05:45", gorkha.Time.Format(time.RFC3339))

	// Values are single precision.
	assert.Equal(t, float64(float32(84.73)), gorkha.Longitude)

	assert.Equal(t, "19 km SE of Kodari, Nepal", events[1].Place)
	assert.Equal(t, 730*time.Millisecond, time.Duration(events[1].Time.Nanosecond()))

	assert.Nil(t, events[2].Depth, "empty depth is absent")
	assert.Equal(t, "Jajarkot, Nepal", events[2].Place)

	for _, e := range events {
		assert.NotEqual(t, orb.Point{0, 0}, orb.Point{e.Longitude, e.Latitude})
	}
}

func TestIngest_CatalogCSVWithoutPlace(t *testing.T) {
	path := writeCSV(t, "mag,depth,longitude,latitude,time\n4.1,10,85.3,27.7,2021-02-03 04:05:06\n")

	table, err := ingest.Ingest(context.Background(), ingest.CatalogCSV{Path: path}, testBoundary(t), testOptions(t))
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())

	e := table.Events()[0]
	assert.Empty(t, e.Place)
	assert.Equal(t, "2021-02-03T04:05:06Z", e.Time.UTC().Format(time.RFC3339))
}

func TestIngest_CatalogCSVErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		line    int
		column  string
	}{
		{"missing mag column", "time,latitude,longitude,depth\n", 0, "mag"},
		{"missing depth column", "time,latitude,longitude,mag\n", 0, "depth"},
		{"bad time", "time,latitude,longitude,depth,mag\n2021-02-30T00:00:00Z,27.7,85.3,10,4\n", 2, "time"},
		{"bad longitude", "time,latitude,longitude,depth,mag\n2021-01-01T00:00:00Z,27.7,east,10,4\n", 2, "longitude"},
		{"empty mag", "time,latitude,longitude,depth,mag\n2021-01-01T00:00:00Z,27.7,85.3,10,\n", 2, "mag"},
		{"bad depth", "time,latitude,longitude,depth,mag\n2021-01-01T00:00:00Z,27.7,85.3,deep,4\n", 2, "depth"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeCSV(t, tt.content)
			_, err := ingest.Ingest(context.Background(), ingest.CatalogCSV{Path: path}, testBoundary(t), testOptions(t))
			require.Error(t, err)

			var pe *domain.ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.line, pe.Line)
			assert.Equal(t, tt.column, pe.Column)
		})
	}
}

// --- common ---

func TestIngest_MissingFile(t *testing.T) {
	srcs := []ingest.Source{
		ingest.SeismographCSV{Path: filepath.Join("testdata", "missing.csv")},
		ingest.CatalogCSV{Path: filepath.Join("testdata", "missing.csv")},
	}
	for _, src := range srcs {
		_, err := ingest.Ingest(context.Background(), src, testBoundary(t), testOptions(t))
		assert.ErrorIs(t, err, domain.ErrDataUnavailable)
	}
}

func TestIngest_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ingest.Ingest(ctx, ingest.CatalogCSV{Path: filepath.Join("testdata", "catalog.csv")}, testBoundary(t), testOptions(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIngest_NullIslandAlwaysExcluded(t *testing.T) {
	seismo := writeCSV(t, "Date,Time,Latitude,Longitude,Magnitude\n01/01/2024,00:00:00,0.0,0.0,6.0\n")
	catalog := writeCSV(t, "time,latitude,longitude,depth,mag\n2024-01-01T00:00:00Z,0,0,10,6\n")
	remote := &stubCatalog{records: []domain.Record{{Time: runDate, Magnitude: 6, Point: orb.Point{0, 0}}}}

	for _, src := range []ingest.Source{
		ingest.SeismographCSV{Path: seismo},
		ingest.CatalogCSV{Path: catalog},
		ingest.RemoteCatalog{Catalog: remote},
	} {
		table, err := ingest.Ingest(context.Background(), src, testBoundary(t), testOptions(t))
		require.NoError(t, err)
		assert.True(t, table.Empty(), src.Name())
	}
}

func TestIngest_DefaultOptions(t *testing.T) {
	path := writeCSV(t, "time,latitude,longitude,depth,mag\n2015-04-25T06:11:26Z,28.23,84.73,8.2,7.8\n")

	table, err := ingest.Ingest(context.Background(), ingest.CatalogCSV{Path: path}, testBoundary(t), ingest.Options{})
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())
	assert.Equal(t, ingest.DefaultTimezone, table.Events()[0].Time.Location().String())
}
