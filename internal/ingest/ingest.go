package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	_ "time/tzdata" // display zone must resolve on hosts without a zoneinfo database

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/quake-data-etl/internal/domain"
	"github.com/couchcryptid/quake-data-etl/internal/geo"
)

// DefaultTimezone is the display zone for event times (UTC+5:45, no DST).
const DefaultTimezone = "Asia/Kathmandu"

// Options carries the run parameters. Zero fields take defaults.
type Options struct {
	// Location is the display zone; nil selects DefaultTimezone.
	Location *time.Location
	// Clock supplies the run date; nil selects the real clock.
	Clock clockwork.Clock
	// Logger receives progress messages; nil selects slog.Default.
	Logger *slog.Logger
}

func (o Options) withDefaults() (Options, error) {
	if o.Location == nil {
		loc, err := time.LoadLocation(DefaultTimezone)
		if err != nil {
			return o, fmt.Errorf("load timezone %s: %w", DefaultTimezone, err)
		}
		o.Location = loc
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o, nil
}

// Result is a normalized table with the counts needed for reporting.
type Result struct {
	Table domain.Table
	// Read is the number of records the source produced before spatial filtering.
	Read int
	// Dropped is the number of records outside the buffered boundary.
	Dropped int
}

// ErrUnknownSource is returned for a Source implementation outside this package.
var ErrUnknownSource = errors.New("unknown source")

// Ingest reads src, filters it to the buffered boundary and returns the
// normalized table. An empty table is a valid result.
func Ingest(ctx context.Context, src Source, boundary *geo.Boundary, opts Options) (domain.Table, error) {
	res, err := Run(ctx, src, boundary, opts)
	if err != nil {
		return domain.Table{}, err
	}
	return res.Table, nil
}

// Run is Ingest with read and drop counts.
func Run(ctx context.Context, src Source, boundary *geo.Boundary, opts Options) (Result, error) {
	if src == nil || boundary == nil {
		return Result{}, errors.New("ingest: source and boundary are required")
	}
	opts, err := opts.withDefaults()
	if err != nil {
		return Result{}, err
	}

	records, err := read(ctx, src, boundary, opts)
	if err != nil {
		return Result{}, fmt.Errorf("ingest %s: %w", src.Name(), err)
	}

	table := domain.Normalize(records, boundary.Buffered(), opts.Location)
	res := Result{Table: table, Read: len(records), Dropped: len(records) - table.Len()}

	opts.Logger.Info("ingested events",
		"source", src.Name(),
		"read", res.Read,
		"retained", table.Len(),
		"dropped", res.Dropped,
	)
	return res, nil
}

func read(ctx context.Context, src Source, boundary *geo.Boundary, opts Options) ([]domain.Record, error) {
	switch s := src.(type) {
	case RemoteCatalog:
		return s.fetch(ctx, boundary, opts)
	case SeismographCSV:
		return readSeismograph(ctx, s.Path, opts.Clock.Now())
	case CatalogCSV:
		return readCatalogCSV(ctx, s.Path)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownSource, src)
	}
}
