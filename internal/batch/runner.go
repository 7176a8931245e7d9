package batch

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/CMCFame/parseteamsapifb/internal/core/resolver"
	"github.com/CMCFame/parseteamsapifb/internal/events"
	"github.com/CMCFame/parseteamsapifb/internal/telemetry"
)

const (
	DefaultColumn = "Match text"
	FormatCSV     = "csv"
	FormatJSONL   = "jsonl"
)

// ErrMissingColumn is returned when the input header lacks the text column.
var ErrMissingColumn = errors.New("text column not found in header")

// Resolver is the single call the runner needs. Satisfied by *resolver.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, text string) resolver.Result
}

type Options struct {
	Column  string        // header of the column holding match descriptions
	Format  string        // csv or jsonl
	Delay   time.Duration // pause between row starts
	Workers int           // rows resolved concurrently; <=1 is serial
	Name    string        // batch name attached to published events
}

// resultColumns are appended to every CSV row.
var resultColumns = []string{
	"status", "reason", "fixture_id", "kickoff", "league_id", "league_name", "season",
	"home_id", "home_name", "away_id", "away_name", "score", "needs_review",
}

// Runner resolves every row of a CSV file and writes the annotated rows out
// in input order.
type Runner struct {
	resolver Resolver
	bus      *events.Bus
	opts     Options
}

func NewRunner(r Resolver, bus *events.Bus, opts Options) *Runner {
	if opts.Column == "" {
		opts.Column = DefaultColumn
	}
	if opts.Format == "" {
		opts.Format = FormatCSV
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Runner{resolver: r, bus: bus, opts: opts}
}

func (r *Runner) Run(ctx context.Context, in io.Reader, out io.Writer) (Summary, error) {
	start := time.Now()

	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return Summary{}, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return Summary{}, fmt.Errorf("read csv: empty input")
	}

	header := records[0]
	col := columnIndex(header, r.opts.Column)
	if col < 0 {
		return Summary{}, fmt.Errorf("%w: %q (have %s)", ErrMissingColumn, r.opts.Column, strings.Join(header, ", "))
	}
	rows := records[1:]
	telemetry.Infof("batch: %d rows, column %q, workers=%d delay=%s", len(rows), r.opts.Column, r.opts.Workers, r.opts.Delay)

	results := make([]resolver.Result, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)

	for i, row := range rows {
		if i > 0 && r.opts.Delay > 0 {
			select {
			case <-gctx.Done():
			case <-time.After(r.opts.Delay):
			}
		}
		if gctx.Err() != nil {
			break
		}

		text := ""
		if col < len(row) {
			text = strings.TrimSpace(row[col])
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := r.resolver.Resolve(gctx, text)
			results[i] = res
			r.publish(i+1, res)
			logRow(i+1, len(rows), res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, fmt.Errorf("batch cancelled: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Summary{}, fmt.Errorf("batch cancelled: %w", err)
	}

	switch r.opts.Format {
	case FormatJSONL:
		err = writeJSONL(out, results)
	default:
		err = writeCSV(out, header, rows, results)
	}
	if err != nil {
		return Summary{}, err
	}

	sum := Summarize(results)
	sum.Elapsed = time.Since(start)
	return sum, nil
}

func (r *Runner) publish(row int, res resolver.Result) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(events.NewResolution(events.OriginBatch, events.ResolutionEvent{
		Result: res,
		Row:    row,
		Batch:  r.opts.Name,
	}))
}

func logRow(row, total int, res resolver.Result) {
	switch {
	case !res.OK():
		telemetry.Warnf("batch: row %d/%d %s (%s): %q", row, total, res.Status, res.Reason, res.Text)
	case res.NeedsReview:
		telemetry.Warnf("batch: row %d/%d fixture %d needs review (score %.3f): %q",
			row, total, res.FixtureID, res.Debug.Score, res.Text)
	default:
		telemetry.Debugf("batch: row %d/%d fixture %d %s vs %s", row, total, res.FixtureID, res.HomeName, res.AwayName)
	}
}

func columnIndex(header []string, name string) int {
	want := strings.ToLower(strings.TrimSpace(name))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		if strings.ToLower(strings.TrimSpace(h)) == want {
			return i
		}
	}
	return -1
}

func writeCSV(out io.Writer, header []string, rows [][]string, results []resolver.Result) error {
	// Rows longer than the header keep their extra cells under blank header
	// names so the result columns stay aligned.
	width := len(header)
	for _, row := range rows {
		width = max(width, len(row))
	}
	head := make([]string, width, width+len(resultColumns))
	copy(head, header)

	w := csv.NewWriter(out)
	if err := w.Write(append(head, resultColumns...)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		rec := make([]string, width, width+len(resultColumns))
		copy(rec, row)
		rec = append(rec, resultFields(results[i])...)
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	w.Flush()
	return w.Error()
}

func resultFields(res resolver.Result) []string {
	if !res.OK() {
		fields := make([]string, len(resultColumns))
		fields[0], fields[1] = string(res.Status), res.Reason
		fields[len(fields)-1] = "true"
		return fields
	}
	score := ""
	if res.Debug != nil {
		score = strconv.FormatFloat(res.Debug.Score, 'f', 4, 64)
	}
	return []string{
		string(res.Status), res.Reason,
		strconv.Itoa(res.FixtureID), res.Kickoff,
		strconv.Itoa(res.LeagueID), res.LeagueName, strconv.Itoa(res.Season),
		strconv.Itoa(res.HomeID), res.HomeName,
		strconv.Itoa(res.AwayID), res.AwayName,
		score, strconv.FormatBool(res.NeedsReview),
	}
}

type jsonlRecord struct {
	Row    int             `json:"row"`
	Result resolver.Result `json:"result"`
}

func writeJSONL(out io.Writer, results []resolver.Result) error {
	enc := json.NewEncoder(out)
	for i, res := range results {
		if err := enc.Encode(jsonlRecord{Row: i + 1, Result: res}); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	return nil
}
