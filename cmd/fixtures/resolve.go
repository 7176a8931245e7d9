package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/CMCFame/parseteamsapifb/internal/core/resolver"
	"github.com/CMCFame/parseteamsapifb/internal/events"
)

var resolveOutput string

var resolveCmd = &cobra.Command{
	Use:   `resolve "<text>" ["<text>" ...]`,
	Short: "Resolve one or more match descriptions",
	Long: `Resolve each argument, e.g.

  fixtures resolve "Fecha: 4/5 17:10, Partido: América vs Pachuca"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		results := make([]resolver.Result, 0, len(args))
		for _, text := range args {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			res := a.Resolver.Resolve(ctx, text)
			a.Bus.Publish(events.NewResolution(events.OriginCLI, events.ResolutionEvent{Result: res}))
			results = append(results, res)
		}

		if resolveOutput == "table" {
			printTable(results)
			return nil
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if len(results) == 1 {
			return enc.Encode(results[0])
		}
		return enc.Encode(results)
	},
}

func init() {
	resolveCmd.Flags().StringVarP(&resolveOutput, "output", "o", "json", "output format: json or table")
}

func printTable(results []resolver.Result) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tFIXTURE\tKICKOFF\tLEAGUE\tHOME\tAWAY\tSCORE\tREVIEW")
	for _, r := range results {
		if !r.OK() {
			fmt.Fprintf(w, "%s (%s)\t-\t-\t-\t-\t-\t-\tyes\n", r.Status, r.Reason)
			continue
		}
		score := "-"
		if r.Debug != nil {
			score = fmt.Sprintf("%.3f", r.Debug.Score)
		}
		review := "no"
		if r.NeedsReview {
			review = "yes"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s (%d)\t%s (%d)\t%s\t%s\n",
			r.Status, r.FixtureID, r.Kickoff, r.LeagueName,
			r.HomeName, r.HomeID, r.AwayName, r.AwayID, score, review)
	}
	w.Flush()
}
