// Command quake-etl prepares the Nepal earthquake dataset and serves it.
//
// Usage:
//
//	quake-etl prepare             # one pass: boundary, ingest, snapshot, sinks
//	quake-etl serve [--prepare]   # serve the snapshot over HTTP
//	quake-etl validate            # integrity checks on the snapshot
//	quake-etl boundary in.geojson out.parq
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:           "quake-etl",
	Short:         "Nepal earthquake data preparation service",
	Long:          `Fetches or reads earthquake events, filters them to the buffered Nepal boundary, and writes a time-sorted Parquet snapshot for the dashboard.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Run one preparation pass",
	Long:  `Load the boundary, ingest the configured source, write the snapshot and publish to the configured sinks.`,
	Args:  cobra.NoArgs,
	RunE:  runPrepare,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the prepared table over HTTP",
	Long:  `Serve /events, /healthz, /readyz and /metrics from the snapshot until interrupted.`,
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the snapshot for integrity",
	Args:  cobra.NoArgs,
	RunE:  runValidate,
}

var boundaryCmd = &cobra.Command{
	Use:   "boundary <in.geojson> <out.parq>",
	Short: "Convert a GeoJSON boundary to a WKB Parquet file",
	Args:  cobra.ExactArgs(2),
	RunE:  runBoundary,
}

var (
	prepareFirst   bool
	geometryColumn string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional file of environment variables")

	serveCmd.Flags().BoolVar(&prepareFirst, "prepare", false, "Run a preparation pass before serving")
	boundaryCmd.Flags().StringVar(&geometryColumn, "column", "geometry", "Geometry column name")

	rootCmd.AddCommand(prepareCmd, serveCmd, validateCmd, boundaryCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
