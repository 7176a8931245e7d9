package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/CMCFame/parseteamsapifb/internal/batch"
	"github.com/CMCFame/parseteamsapifb/internal/telemetry"
)

var (
	batchIn      string
	batchOut     string
	batchColumn  string
	batchFormat  string
	batchDelay   time.Duration
	batchWorkers int
)

var batchCmd = &cobra.Command{
	Use:   "batch --in matches.csv --out resolved.csv",
	Short: "Resolve every row of a CSV file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if batchFormat != batch.FormatCSV && batchFormat != batch.FormatJSONL {
			return fmt.Errorf("unknown format %q (use csv or jsonl)", batchFormat)
		}

		in, err := os.Open(batchIn)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer in.Close()

		var out io.Writer = os.Stdout
		if batchOut != "" && batchOut != "-" {
			if dir := filepath.Dir(batchOut); dir != "" {
				os.MkdirAll(dir, 0o755)
			}
			f, err := os.Create(batchOut)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			defer f.Close()
			out = f
		}

		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		runner := batch.NewRunner(a.Resolver, a.Bus, batch.Options{
			Column:  batchColumn,
			Format:  batchFormat,
			Delay:   batchDelay,
			Workers: batchWorkers,
			Name:    strings.TrimSuffix(filepath.Base(batchIn), filepath.Ext(batchIn)),
		})
		sum, err := runner.Run(ctx, in, out)
		if err != nil {
			return err
		}

		sum.Print(os.Stderr)
		m := &telemetry.Metrics
		telemetry.Infof("Batch complete  fetches=%d  cache_hits=%d  upstream_errors=%d  tie_breaks=%d",
			m.UpstreamFetches.Value(), m.CacheHits.Value(), m.UpstreamErrors.Value(), m.TieBreaks.Value())
		return nil
	},
}

func init() {
	f := batchCmd.Flags()
	f.StringVar(&batchIn, "in", "", "input CSV file")
	f.StringVar(&batchOut, "out", "", "output file (default stdout)")
	f.StringVar(&batchColumn, "column", batch.DefaultColumn, "header of the column holding match descriptions")
	f.StringVar(&batchFormat, "format", batch.FormatCSV, "output format: csv or jsonl")
	f.DurationVar(&batchDelay, "delay", 0, "pause between rows, e.g. 800ms")
	f.IntVar(&batchWorkers, "workers", 1, "rows resolved concurrently")
	batchCmd.MarkFlagRequired("in")
}
