package duckdb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/couchcryptid/quake-data-etl/internal/domain"
)

// DefaultGeometryColumn is the GeoParquet primary geometry column name.
const DefaultGeometryColumn = "geometry"

// GeoParquetFile reads WKB-encoded boundary geometries from a GeoParquet file.
type GeoParquetFile struct {
	Path string
	// Column holds the WKB geometry; empty selects DefaultGeometryColumn.
	Column string
}

func (f GeoParquetFile) String() string { return f.Path }

// ReadGeometries implements geo.GeometrySource.
func (f GeoParquetFile) ReadGeometries(ctx context.Context) ([]orb.Geometry, error) {
	if _, err := os.Stat(f.Path); err != nil {
		return nil, fmt.Errorf("read %s: %w: %w", f.Path, domain.ErrDataUnavailable, err)
	}
	column := f.Column
	if column == "" {
		column = DefaultGeometryColumn
	}

	db, conn, err := open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	defer conn.Close()

	query := fmt.Sprintf("SELECT %s FROM read_parquet(%s)", quoteIdent(column), quoteLiteral(f.Path))
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w: %w", f.Path, domain.ErrDataUnavailable, err)
	}
	defer rows.Close()

	var geoms []orb.Geometry
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan geometry: %w", err)
		}
		if len(raw) == 0 {
			continue
		}
		g, err := wkb.Unmarshal(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s geometry: %w: %w", f.Path, domain.ErrDataUnavailable, err)
		}
		geoms = append(geoms, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s rows: %w", f.Path, err)
	}
	return geoms, nil
}

// WriteGeoParquet stores geoms as WKB in column of a new Parquet file at path.
// Only the geometry column is written; GeoParquet file metadata is omitted,
// which ReadGeometries does not need.
func WriteGeoParquet(ctx context.Context, path, column string, geoms []orb.Geometry) error {
	if column == "" {
		column = DefaultGeometryColumn
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create boundary directory: %w", err)
	}

	db, conn, err := open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "CREATE TABLE boundary ("+quoteIdent(column)+" BLOB NOT NULL)"); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	for i, g := range geoms {
		raw, err := wkb.Marshal(g)
		if err != nil {
			return fmt.Errorf("encode geometry %d: %w", i, err)
		}
		if _, err := conn.ExecContext(ctx, "INSERT INTO boundary VALUES (?)", raw); err != nil {
			return fmt.Errorf("insert geometry %d: %w", i, err)
		}
	}

	copyStmt := fmt.Sprintf("COPY boundary TO %s (FORMAT PARQUET)", quoteLiteral(path))
	if _, err := conn.ExecContext(ctx, copyStmt); err != nil {
		return fmt.Errorf("copy to parquet: %w", err)
	}
	return nil
}
