// Package duckdb reads and writes Parquet files through an embedded DuckDB
// engine: the normalized event snapshot and GeoParquet boundary files.
package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // registers the "duckdb" driver

	"github.com/couchcryptid/quake-data-etl/internal/domain"
)

const createEvents = `CREATE TABLE quakes (
	time      TIMESTAMPTZ NOT NULL,
	mag       DOUBLE NOT NULL,
	depth     DOUBLE,
	latitude  DOUBLE NOT NULL,
	longitude DOUBLE NOT NULL,
	place     VARCHAR
)`

// Snapshot persists event tables as Parquet files.
type Snapshot struct {
	logger *slog.Logger
}

// NewSnapshot creates a snapshot store.
func NewSnapshot(logger *slog.Logger) *Snapshot {
	return &Snapshot{logger: logger}
}

// open returns a single connection to a fresh in-memory database.
func open(ctx context.Context) (*sql.DB, *sql.Conn, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, nil, fmt.Errorf("open duckdb: %w", err)
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("duckdb connection: %w", err)
	}
	return db, conn, nil
}

// Write stores table at path, replacing any previous snapshot. The file is
// written next to path and renamed into place so readers never see a
// partial snapshot.
func (s *Snapshot) Write(ctx context.Context, path string, table domain.Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	db, conn, err := open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, createEvents); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	if err := insertEvents(ctx, conn, table.Events()); err != nil {
		return err
	}

	tmp := path + ".tmp"
	copyStmt := fmt.Sprintf("COPY (SELECT * FROM quakes ORDER BY time) TO %s (FORMAT PARQUET)", quoteLiteral(tmp))
	if _, err := conn.ExecContext(ctx, copyStmt); err != nil {
		return fmt.Errorf("copy to parquet: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}

	s.logger.Info("snapshot written", "path", path, "events", table.Len())
	return nil
}

func insertEvents(ctx context.Context, conn *sql.Conn, events []domain.Event) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO quakes VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		depth := sql.NullFloat64{}
		if e.Depth != nil {
			depth = sql.NullFloat64{Float64: *e.Depth, Valid: true}
		}
		place := sql.NullString{String: e.Place, Valid: e.Place != ""}
		if _, err := stmt.ExecContext(ctx, e.Time.UTC(), e.Magnitude, depth, e.Latitude, e.Longitude, place); err != nil {
			return fmt.Errorf("insert event %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

// Read loads the snapshot at path with times in loc. IDs are derived from
// the stored fields, so they match the ones assigned at ingestion.
func (s *Snapshot) Read(ctx context.Context, path string, loc *time.Location) (domain.Table, error) {
	if loc == nil {
		loc = time.UTC
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.Table{}, fmt.Errorf("read snapshot %s: %w", path, domain.ErrDataUnavailable)
		}
		return domain.Table{}, fmt.Errorf("read snapshot %s: %w: %w", path, domain.ErrDataUnavailable, err)
	}

	db, conn, err := open(ctx)
	if err != nil {
		return domain.Table{}, err
	}
	defer db.Close()
	defer conn.Close()

	query := fmt.Sprintf(
		"SELECT time, mag, depth, latitude, longitude, place FROM read_parquet(%s) ORDER BY time",
		quoteLiteral(path),
	)
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return domain.Table{}, fmt.Errorf("read snapshot %s: %w: %w", path, domain.ErrDataUnavailable, err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var (
			ts       time.Time
			mag      float64
			depth    sql.NullFloat64
			lat, lon float64
			place    sql.NullString
		)
		if err := rows.Scan(&ts, &mag, &depth, &lat, &lon, &place); err != nil {
			return domain.Table{}, fmt.Errorf("scan snapshot row: %w", err)
		}
		var d *float64
		if depth.Valid {
			d = &depth.Float64
		}
		events = append(events, domain.NewEvent(ts.In(loc), mag, d, lon, lat, place.String))
	}
	if err := rows.Err(); err != nil {
		return domain.Table{}, fmt.Errorf("read snapshot rows: %w", err)
	}

	s.logger.Debug("snapshot loaded", "path", path, "events", len(events))
	return domain.NewTable(events), nil
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
