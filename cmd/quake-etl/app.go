package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/quake-data-etl/internal/adapter/duckdb"
	kafkaadapter "github.com/couchcryptid/quake-data-etl/internal/adapter/kafka"
	s3adapter "github.com/couchcryptid/quake-data-etl/internal/adapter/s3"
	"github.com/couchcryptid/quake-data-etl/internal/adapter/usgs"
	"github.com/couchcryptid/quake-data-etl/internal/config"
	"github.com/couchcryptid/quake-data-etl/internal/geo"
	"github.com/couchcryptid/quake-data-etl/internal/ingest"
	"github.com/couchcryptid/quake-data-etl/internal/observability"
	"github.com/couchcryptid/quake-data-etl/internal/pipeline"
)

// app holds the process-wide dependencies built from configuration.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	loc     *time.Location
}

func newApp() (*app, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}
	return &app{
		cfg:     cfg,
		logger:  observability.NewLogger(cfg.LogLevel, cfg.LogFormat),
		metrics: observability.NewMetrics(),
		loc:     loc,
	}, nil
}

// boundarySource picks the reader by file extension; anything that is not
// GeoJSON is read as GeoParquet.
func boundarySource(path, column string) geo.GeometrySource {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return geo.GeoJSONFile{Path: path}
	default:
		return duckdb.GeoParquetFile{Path: path, Column: column}
	}
}

func (a *app) boundaryOptions() (geo.BoundaryOptions, error) {
	proj, err := geo.ProjectionByName(a.cfg.Projection)
	if err != nil {
		return geo.BoundaryOptions{}, err
	}
	return geo.BoundaryOptions{Projection: proj, BufferMeters: a.cfg.BufferMeters}, nil
}

func (a *app) source() ingest.Source {
	switch a.cfg.Source {
	case config.SourceSeismograph:
		return ingest.SeismographCSV{Path: a.cfg.SourcePath}
	case config.SourceCatalogCSV:
		return ingest.CatalogCSV{Path: a.cfg.SourcePath}
	default:
		return ingest.RemoteCatalog{
			Catalog:      usgs.NewClient(a.cfg.CatalogURL, a.cfg.CatalogTimeout, a.logger, a.metrics),
			Start:        a.cfg.CatalogStart,
			End:          a.cfg.CatalogEnd,
			MinMagnitude: a.cfg.CatalogMinMagnitude,
		}
	}
}

// pipeline wires the configured sinks. The returned func releases them.
func (a *app) pipeline(ctx context.Context) (*pipeline.Pipeline, func(), error) {
	opts, err := a.boundaryOptions()
	if err != nil {
		return nil, nil, err
	}
	settings := pipeline.Settings{
		Boundary:        boundarySource(a.cfg.BoundaryPath, a.cfg.BoundaryGeometryColumn),
		BoundaryOptions: opts,
		Source:          a.source(),
		Location:        a.loc,
		SnapshotPath:    a.cfg.SnapshotPath,
		FetchAttempts:   a.cfg.FetchAttempts,
	}

	var (
		pipeOpts []pipeline.Option
		closers  []func() error
	)
	if a.cfg.S3Bucket != "" {
		up, err := s3adapter.NewUploader(ctx, s3adapter.Config{
			Bucket:          a.cfg.S3Bucket,
			Prefix:          a.cfg.S3Prefix,
			Region:          a.cfg.S3Region,
			Endpoint:        a.cfg.S3Endpoint,
			AccessKeyID:     a.cfg.S3AccessKeyID,
			SecretAccessKey: a.cfg.S3SecretAccessKey,
		}, a.logger)
		if err != nil {
			return nil, nil, err
		}
		pipeOpts = append(pipeOpts, pipeline.WithUploader(up))
		a.logger.Info("s3 upload enabled", "bucket", a.cfg.S3Bucket, "prefix", a.cfg.S3Prefix)
	}
	if a.cfg.KafkaEnabled {
		w := kafkaadapter.NewWriter(kafkaadapter.Config{
			Brokers:   a.cfg.KafkaBrokers,
			Topic:     a.cfg.KafkaSinkTopic,
			BatchSize: a.cfg.BatchSize,
		}, a.logger)
		pipeOpts = append(pipeOpts, pipeline.WithPublisher(w))
		closers = append(closers, w.Close)
		a.logger.Info("kafka publishing enabled", "brokers", a.cfg.KafkaBrokers, "topic", a.cfg.KafkaSinkTopic)
	}

	release := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				a.logger.Error("sink close error", "error", err)
			}
		}
	}
	p := pipeline.New(settings, duckdb.NewSnapshot(a.logger), a.logger, a.metrics, pipeOpts...)
	return p, release, nil
}
