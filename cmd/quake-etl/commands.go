package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/quake-data-etl/internal/adapter/duckdb"
	httpadapter "github.com/couchcryptid/quake-data-etl/internal/adapter/http"
	"github.com/couchcryptid/quake-data-etl/internal/geo"
	"github.com/couchcryptid/quake-data-etl/internal/validate"
)

func runPrepare(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, release, err := a.pipeline(ctx)
	if err != nil {
		return err
	}
	defer release()

	table, err := p.Run(ctx)
	if err != nil {
		return err
	}
	s := table.Summary()
	a.logger.Info("dataset prepared",
		"path", a.cfg.SnapshotPath,
		"events", s.Count,
		"earliest", s.Earliest,
		"latest", s.Latest,
		"min_mag", s.MinMagnitude,
		"max_mag", s.MaxMagnitude,
	)
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, release, err := a.pipeline(ctx)
	if err != nil {
		return err
	}
	defer release()

	// A missing dataset is not fatal: /readyz reports it until one exists.
	if prepareFirst {
		if _, err := p.Run(ctx); err != nil {
			a.logger.Error("pipeline error", "error", err)
		}
	} else if _, err := p.LoadSnapshot(ctx); err != nil {
		a.logger.Warn("no snapshot to serve", "error", err)
	}

	srv := httpadapter.NewServer(a.cfg.HTTPAddr, p.Dataset(), a.loc, a.logger)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", "error", err)
	}

	a.logger.Info("shutdown complete")
	return nil
}

func runValidate(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	opts, err := a.boundaryOptions()
	if err != nil {
		return err
	}
	boundary, err := geo.LoadBoundary(ctx, boundarySource(a.cfg.BoundaryPath, a.cfg.BoundaryGeometryColumn), opts)
	if err != nil {
		return fmt.Errorf("load boundary: %w", err)
	}
	table, err := duckdb.NewSnapshot(a.logger).Read(ctx, a.cfg.SnapshotPath, a.loc)
	if err != nil {
		return err
	}

	report := validate.Table(table, boundary.Buffered(), a.loc)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "=== Snapshot Integrity Validation: %s ===\n\n", a.cfg.SnapshotPath)
	for _, ph := range report.Phases {
		status := "\033[32mPASS\033[0m"
		if !ph.Passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(ph.Errors))
		}
		fmt.Fprintf(out, "  %-36s %s\n", ph.Name, status)
	}
	fmt.Fprintf(out, "\nEvents: %d\n", report.Events)

	for _, ph := range report.Phases {
		if ph.Passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", ph.Name)
		for i, e := range ph.Errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if !report.Passed() {
		return errors.New("validation failed")
	}
	fmt.Fprintln(out, "\nAll validations passed.")
	return nil
}

func runBoundary(cmd *cobra.Command, args []string) error {
	in, out := args[0], args[1]
	geoms, err := geo.GeoJSONFile{Path: in}.ReadGeometries(cmd.Context())
	if err != nil {
		return err
	}
	// Validate before writing so an unusable file is never produced.
	if _, err := geo.NewBoundary(geoms, geo.DefaultBoundaryOptions()); err != nil {
		return fmt.Errorf("%s: %w", in, err)
	}
	if err := duckdb.WriteGeoParquet(cmd.Context(), out, geometryColumn, geoms); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d geometries to %s\n", len(geoms), out)
	return nil
}
