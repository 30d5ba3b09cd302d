package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/quake-data-etl/internal/geo"
)

// Source kinds accepted by SOURCE.
const (
	SourceCatalog     = "catalog"
	SourceSeismograph = "seismograph-csv"
	SourceCatalogCSV  = "catalog-csv"
)

const dateLayout = "2006-01-02"

// Config holds all service settings, populated from environment variables.
type Config struct {
	BoundaryPath           string
	BoundaryGeometryColumn string
	BufferMeters           float64
	Projection             string
	Timezone               string

	Source     string
	SourcePath string

	CatalogURL          string
	CatalogStart        time.Time
	CatalogEnd          time.Time // zero means the run date
	CatalogMinMagnitude float64
	CatalogTimeout      time.Duration
	FetchAttempts       int

	SnapshotPath    string
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaSinkTopic string
	BatchSize      int

	S3Bucket          string
	S3Prefix          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// LoadDotEnv reads variables from .env files into the environment without
// overriding ones already set. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	bufferMeters, err := parseFloat("BUFFER_METERS", "20000")
	if err != nil {
		return nil, err
	}
	if bufferMeters < 0 {
		return nil, errors.New("invalid BUFFER_METERS: must not be negative")
	}

	minMagnitude, err := parseFloat("CATALOG_MIN_MAGNITUDE", "3")
	if err != nil {
		return nil, err
	}

	catalogStart, err := parseDate("CATALOG_START_DATE", "2010-10-07")
	if err != nil {
		return nil, err
	}
	catalogEnd, err := parseDate("CATALOG_END_DATE", "")
	if err != nil {
		return nil, err
	}

	catalogTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("CATALOG_TIMEOUT", "0s"))
	if err != nil || catalogTimeout < 0 {
		return nil, errors.New("invalid CATALOG_TIMEOUT")
	}

	fetchAttempts, err := strconv.Atoi(sharedcfg.EnvOrDefault("FETCH_ATTEMPTS", "3"))
	if err != nil || fetchAttempts < 1 || fetchAttempts > 10 {
		return nil, errors.New("invalid FETCH_ATTEMPTS: must be between 1 and 10")
	}

	kafkaEnabled, err := strconv.ParseBool(sharedcfg.EnvOrDefault("KAFKA_ENABLED", "false"))
	if err != nil {
		return nil, errors.New("invalid KAFKA_ENABLED")
	}

	cfg := &Config{
		BoundaryPath:           sharedcfg.EnvOrDefault("BOUNDARY_PATH", "data/nepal.parq"),
		BoundaryGeometryColumn: sharedcfg.EnvOrDefault("BOUNDARY_GEOMETRY_COLUMN", "geometry"),
		BufferMeters:           bufferMeters,
		Projection:             sharedcfg.EnvOrDefault("PROJECTION", geo.DefaultProjection),
		Timezone:               sharedcfg.EnvOrDefault("TIMEZONE", "Asia/Kathmandu"),

		Source:     strings.ToLower(sharedcfg.EnvOrDefault("SOURCE", SourceCatalog)),
		SourcePath: os.Getenv("SOURCE_PATH"),

		CatalogURL:          sharedcfg.EnvOrDefault("CATALOG_URL", "https://earthquake.usgs.gov/fdsnws/event/1/query.geojson"),
		CatalogStart:        catalogStart,
		CatalogEnd:          catalogEnd,
		CatalogMinMagnitude: minMagnitude,
		CatalogTimeout:      catalogTimeout,
		FetchAttempts:       fetchAttempts,

		SnapshotPath:    sharedcfg.EnvOrDefault("SNAPSHOT_PATH", "data/quakes.parquet"),
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaEnabled:   kafkaEnabled,
		KafkaBrokers:   sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "earthquake-events"),
		BatchSize:      batchSize,

		S3Bucket:          os.Getenv("S3_BUCKET"),
		S3Prefix:          os.Getenv("S3_PREFIX"),
		S3Region:          os.Getenv("S3_REGION"),
		S3Endpoint:        os.Getenv("S3_ENDPOINT"),
		S3AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.BoundaryPath == "" {
		return errors.New("BOUNDARY_PATH is required")
	}
	if c.SnapshotPath == "" {
		return errors.New("SNAPSHOT_PATH is required")
	}
	if _, err := geo.ProjectionByName(c.Projection); err != nil {
		return fmt.Errorf("invalid PROJECTION: %w", err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	switch c.Source {
	case SourceCatalog:
		if c.CatalogURL == "" {
			return errors.New("CATALOG_URL is required")
		}
	case SourceSeismograph, SourceCatalogCSV:
		if c.SourcePath == "" {
			return fmt.Errorf("SOURCE_PATH is required for SOURCE=%s", c.Source)
		}
	default:
		return fmt.Errorf("invalid SOURCE %q: must be %s, %s or %s", c.Source, SourceCatalog, SourceSeismograph, SourceCatalogCSV)
	}
	if !c.CatalogEnd.IsZero() && c.CatalogEnd.Before(c.CatalogStart) {
		return errors.New("CATALOG_END_DATE is before CATALOG_START_DATE")
	}
	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required")
		}
		if c.KafkaSinkTopic == "" {
			return errors.New("KAFKA_SINK_TOPIC is required")
		}
	}
	if (c.S3AccessKeyID == "") != (c.S3SecretAccessKey == "") {
		return errors.New("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY must be set together")
	}
	return nil
}

func parseFloat(name, fallback string) (float64, error) {
	v, err := strconv.ParseFloat(sharedcfg.EnvOrDefault(name, fallback), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return v, nil
}

// parseDate reads a YYYY-MM-DD day as midnight UTC. An empty fallback makes
// the variable optional.
func parseDate(name, fallback string) (time.Time, error) {
	s := sharedcfg.EnvOrDefault(name, fallback)
	if s == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %w", name, err)
	}
	return d, nil
}
