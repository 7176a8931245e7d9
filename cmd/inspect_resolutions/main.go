package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/CMCFame/parseteamsapifb/internal/adapters/outbound/result_store"
)

func main() {
	dbPath := flag.String("db", "data/resolutions.db", "results database")
	n := flag.Int("n", 20, "number of recent rows to display")
	review := flag.Bool("review", false, "only rows that need review (low score, tie or not found)")
	verbose := flag.Bool("v", false, "also show the input text and score breakdown")
	flag.Parse()

	if _, err := os.Stat(*dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "cannot open %s: %v\n", *dbPath, err)
		os.Exit(1)
	}
	store, err := result_store.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	printCounts(store)
	fmt.Println()

	title := "Recent"
	rows, err := store.Recent(*n)
	if *review {
		title = "Needs review"
		rows, err = store.NeedsReview(*n)
	}
	if err != nil {
		fmt.Printf("  (query error: %v)\n", err)
		return
	}
	fmt.Printf("=== %s (last %d) ===\n", title, len(rows))
	if len(rows) == 0 {
		fmt.Println("(no data)")
		return
	}
	printRows(rows, *verbose)
}

func printCounts(store *result_store.Store) {
	counts, err := store.CountByStatus()
	if err != nil {
		fmt.Printf("  (cannot count rows: %v)\n", err)
		return
	}
	keys := make([]string, 0, len(counts))
	total := 0
	for k, v := range counts {
		keys = append(keys, k)
		total += v
	}
	sort.Strings(keys)

	fmt.Printf("=== Resolutions: %d ===\n", total)
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%d\n", k, counts[k])
	}
	w.Flush()
}

func printRows(rows []result_store.Row, verbose bool) {
	cols := []string{"id", "ts", "origin", "status", "fixture", "league", "home", "away", "score", "review"}
	if verbose {
		cols = append(cols, "mins", "s_home", "s_away", "tie", "text")
	}
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(cols, "\t"))
	fmt.Fprintln(w, strings.Repeat("----\t", len(cols)))

	// oldest first, like a log
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		status := string(r.Status)
		if r.Reason != "" {
			status += "/" + r.Reason
		}
		cells := []string{
			fmt.Sprintf("%d", r.ID),
			r.TS.Local().Format("01-02 15:04:05"),
			r.Origin,
			status,
			dash(r.FixtureID),
			orDash(r.LeagueName),
			orDash(r.HomeName),
			orDash(r.AwayName),
			"-",
			yesNo(r.NeedsReview || !r.OK()),
		}
		if r.Debug != nil {
			cells[8] = fmt.Sprintf("%.3f", r.Debug.Score)
		}
		if verbose {
			if d := r.Debug; d != nil {
				cells = append(cells, fmt.Sprintf("%d", d.MinsDiff),
					fmt.Sprintf("%.3f", d.SHome), fmt.Sprintf("%.3f", d.SAway), orDash(d.TieBreak))
			} else {
				cells = append(cells, "-", "-", "-", "-")
			}
			cells = append(cells, r.Text)
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	w.Flush()
}

func dash(id int) string {
	if id == 0 {
		return "-"
	}
	return fmt.Sprintf("%d", id)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
