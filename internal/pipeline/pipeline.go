package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/quake-data-etl/internal/domain"
	"github.com/couchcryptid/quake-data-etl/internal/geo"
	"github.com/couchcryptid/quake-data-etl/internal/ingest"
	"github.com/couchcryptid/quake-data-etl/internal/observability"
)

// Backoff defaults between catalog fetch attempts.
const (
	DefaultInitialBackoff = 2 * time.Second
	DefaultMaxBackoff     = 30 * time.Second
)

// SnapshotStore persists prepared tables.
type SnapshotStore interface {
	Write(ctx context.Context, path string, table domain.Table) error
	Read(ctx context.Context, path string, loc *time.Location) (domain.Table, error)
}

// Uploader copies a written snapshot file to remote storage.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// Publisher forwards prepared events downstream.
type Publisher interface {
	Publish(ctx context.Context, table domain.Table) error
}

// Settings describes one preparation run.
type Settings struct {
	Boundary        geo.GeometrySource
	BoundaryOptions geo.BoundaryOptions
	Source          ingest.Source
	// Location is the display zone; nil selects ingest.DefaultTimezone.
	Location     *time.Location
	SnapshotPath string
	// FetchAttempts bounds catalog fetches per run; values below 1 mean 1.
	FetchAttempts  int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Option configures optional pipeline collaborators.
type Option func(*Pipeline)

// WithUploader uploads each written snapshot.
func WithUploader(u Uploader) Option { return func(p *Pipeline) { p.uploader = u } }

// WithPublisher publishes each prepared table.
func WithPublisher(pub Publisher) Option { return func(p *Pipeline) { p.publisher = pub } }

// WithClock replaces the real clock, which supplies the run date.
func WithClock(c clockwork.Clock) Option { return func(p *Pipeline) { p.clock = c } }

// Pipeline runs boundary loading, ingestion, snapshotting and publication.
type Pipeline struct {
	settings  Settings
	snapshot  SnapshotStore
	uploader  Uploader
	publisher Publisher
	dataset   *Dataset
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates a Pipeline. Sinks are optional and added with options.
func New(settings Settings, snapshot SnapshotStore, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	if settings.FetchAttempts < 1 {
		settings.FetchAttempts = 1
	}
	if settings.InitialBackoff <= 0 {
		settings.InitialBackoff = DefaultInitialBackoff
	}
	if settings.MaxBackoff < settings.InitialBackoff {
		settings.MaxBackoff = max(DefaultMaxBackoff, settings.InitialBackoff)
	}
	p := &Pipeline{
		settings: settings,
		snapshot: snapshot,
		dataset:  &Dataset{},
		clock:    clockwork.NewRealClock(),
		logger:   logger,
		metrics:  metrics,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Dataset returns the table holder updated by Run and LoadSnapshot.
func (p *Pipeline) Dataset() *Dataset { return p.dataset }

// CheckReadiness returns nil once a table has been prepared or loaded.
func (p *Pipeline) CheckReadiness(ctx context.Context) error {
	return p.dataset.CheckReadiness(ctx)
}

// Run performs one preparation pass and returns the prepared table.
//
// Catalog fetch failures are retried up to FetchAttempts times. If every
// attempt fails and a previous snapshot is readable, that snapshot is served
// instead and no new one is written. Sink failures are reported after the
// snapshot is safely on disk.
func (p *Pipeline) Run(ctx context.Context) (domain.Table, error) {
	start := p.clock.Now()
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	loc, err := p.location()
	if err != nil {
		return domain.Table{}, err
	}

	boundary, err := geo.LoadBoundary(ctx, p.settings.Boundary, p.settings.BoundaryOptions)
	if err != nil {
		return domain.Table{}, fmt.Errorf("load boundary: %w", err)
	}
	minX, minY, maxX, maxY := boundary.BBox()
	p.logger.Info("boundary loaded",
		"bbox", []float64{minX, minY, maxX, maxY},
		"projection", boundary.Buffered().Projection().Name(),
		"buffer_m", boundary.Buffered().Distance(),
	)

	res, err := p.ingestWithRetry(ctx, boundary, loc)
	if err != nil {
		if !errors.Is(err, domain.ErrFetch) || ctx.Err() != nil {
			return domain.Table{}, err
		}
		return p.fallback(ctx, loc, err)
	}

	p.metrics.EventsRead.Add(float64(res.Read))
	p.metrics.EventsRetained.Add(float64(res.Table.Len()))
	p.metrics.EventsDropped.Add(float64(res.Dropped))

	if err := p.snapshot.Write(ctx, p.settings.SnapshotPath, res.Table); err != nil {
		return domain.Table{}, fmt.Errorf("write snapshot: %w", err)
	}
	p.store(res.Table)

	sinkErr := p.publish(ctx, res.Table)

	p.metrics.RunDuration.Observe(p.clock.Since(start).Seconds())
	if sinkErr == nil {
		p.metrics.LastSuccess.Set(float64(p.clock.Now().Unix()))
	}
	p.logger.Info("pipeline run complete", "events", res.Table.Len(), "duration", p.clock.Since(start))
	return res.Table, sinkErr
}

// LoadSnapshot serves the snapshot on disk without running ingestion.
func (p *Pipeline) LoadSnapshot(ctx context.Context) (domain.Table, error) {
	loc, err := p.location()
	if err != nil {
		return domain.Table{}, err
	}
	table, err := p.snapshot.Read(ctx, p.settings.SnapshotPath, loc)
	if err != nil {
		return domain.Table{}, fmt.Errorf("load snapshot: %w", err)
	}
	p.store(table)
	p.logger.Info("snapshot loaded", "path", p.settings.SnapshotPath, "events", table.Len())
	return table, nil
}

func (p *Pipeline) location() (*time.Location, error) {
	if p.settings.Location != nil {
		return p.settings.Location, nil
	}
	loc, err := time.LoadLocation(ingest.DefaultTimezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", ingest.DefaultTimezone, err)
	}
	return loc, nil
}

// ingestWithRetry retries only fetch failures; parse and data errors are
// returned immediately.
func (p *Pipeline) ingestWithRetry(ctx context.Context, boundary *geo.Boundary, loc *time.Location) (ingest.Result, error) {
	opts := ingest.Options{Location: loc, Clock: p.clock, Logger: p.logger}
	backoff := p.settings.InitialBackoff

	for attempt := 1; ; attempt++ {
		res, err := ingest.Run(ctx, p.settings.Source, boundary, opts)
		if err == nil || !errors.Is(err, domain.ErrFetch) || attempt >= p.settings.FetchAttempts {
			return res, err
		}

		p.logger.Warn("catalog fetch failed, retrying",
			"error", err,
			"attempt", attempt,
			"max_attempts", p.settings.FetchAttempts,
			"backoff", backoff,
		)
		p.metrics.FetchRetries.Inc()
		if !retry.SleepWithContext(ctx, backoff) {
			return ingest.Result{}, fmt.Errorf("retry catalog fetch: %w", ctx.Err())
		}
		backoff = retry.NextBackoff(backoff, p.settings.MaxBackoff)
	}
}

func (p *Pipeline) fallback(ctx context.Context, loc *time.Location, fetchErr error) (domain.Table, error) {
	table, err := p.snapshot.Read(ctx, p.settings.SnapshotPath, loc)
	if err != nil {
		p.logger.Error("catalog unavailable and no snapshot to fall back on",
			"error", fetchErr, "snapshot_error", err)
		return domain.Table{}, fetchErr
	}

	p.logger.Warn("catalog unavailable, serving previous snapshot",
		"error", fetchErr,
		"path", p.settings.SnapshotPath,
		"events", table.Len(),
	)
	p.metrics.SnapshotFallbacks.Inc()
	p.store(table)
	return table, nil
}

func (p *Pipeline) store(table domain.Table) {
	p.dataset.Store(table)
	p.metrics.DatasetEventsTotal.Set(float64(table.Len()))
}

// publish runs every configured sink and joins their errors.
func (p *Pipeline) publish(ctx context.Context, table domain.Table) error {
	var errs []error
	if p.uploader != nil {
		if _, err := p.uploader.Upload(ctx, p.settings.SnapshotPath); err != nil {
			p.logger.Error("snapshot upload failed", "error", err)
			p.metrics.SinkErrors.WithLabelValues("s3").Inc()
			errs = append(errs, fmt.Errorf("upload snapshot: %w", err))
		}
	}
	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, table); err != nil {
			p.logger.Error("event publish failed", "error", err)
			p.metrics.SinkErrors.WithLabelValues("kafka").Inc()
			errs = append(errs, fmt.Errorf("publish events: %w", err))
		} else {
			p.metrics.EventsPublished.Add(float64(table.Len()))
		}
	}
	return errors.Join(errs...)
}
