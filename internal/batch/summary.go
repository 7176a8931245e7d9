package batch

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/CMCFame/parseteamsapifb/internal/core/resolver"
)

// Summary counts the outcomes of one batch run.
type Summary struct {
	Total       int            `json:"total"`
	OK          int            `json:"ok"`
	NotFound    int            `json:"not_found"`
	NeedsReview int            `json:"needs_review"`
	ByReason    map[string]int `json:"by_reason"`
	Elapsed     time.Duration  `json:"elapsed"`
}

func Summarize(results []resolver.Result) Summary {
	s := Summary{Total: len(results), ByReason: map[string]int{}}
	for _, r := range results {
		if r.OK() {
			s.OK++
			if r.NeedsReview {
				s.NeedsReview++
			}
			continue
		}
		s.NotFound++
		s.ByReason[r.Reason]++
	}
	return s
}

// SuccessRate is the share of ok results, in percent.
func (s Summary) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.OK) / float64(s.Total) * 100
}

func (s Summary) Print(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "total\t%d\n", s.Total)
	fmt.Fprintf(tw, "ok\t%d\t(%.1f%%)\n", s.OK, s.SuccessRate())
	fmt.Fprintf(tw, "needs review\t%d\n", s.NeedsReview)
	fmt.Fprintf(tw, "not found\t%d\n", s.NotFound)

	reasons := make([]string, 0, len(s.ByReason))
	for r := range s.ByReason {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fmt.Fprintf(tw, "  %s\t%d\n", r, s.ByReason[r])
	}
	fmt.Fprintf(tw, "elapsed\t%s\n", s.Elapsed.Round(time.Millisecond))
	tw.Flush()
}
