package resolver

import (
	"errors"
	"fmt"
	"math"

	"github.com/CMCFame/parseteamsapifb/internal/core/matchtext"
)

type Status string

const (
	StatusOK       Status = "ok"
	StatusNotFound Status = "not_found"
)

// Reasons carried by a not_found Result.
const (
	ReasonUnparsable    = "unparsable"
	ReasonNoFixtures    = "no_fixtures_for_date"
	ReasonNoCandidates  = "no_candidates_in_window"
	ReasonBelowMinScore = "below_min_score"
)

// ErrNotFound is wrapped by Result.Err for every not_found reason except
// unparsable input.
var ErrNotFound = errors.New("fixture not found")

// Debug explains how the winning candidate was scored.
type Debug struct {
	Score      float64 `json:"score"`
	MinsDiff   int     `json:"mins_diff"`
	SHome      float64 `json:"s_home"`
	SAway      float64 `json:"s_away"`
	LocalNorm  string  `json:"local_norm"`
	VisitaNorm string  `json:"visita_norm"`
	Candidates int     `json:"candidates"`
	TieBreak   string  `json:"tie_break,omitempty"`
	Swapped    bool    `json:"swapped,omitempty"`
}

// Result is either fully populated (ok) or carries only status, reason and
// the input text.
type Result struct {
	Status      Status `json:"status"`
	Reason      string `json:"reason,omitempty"`
	Text        string `json:"text"`
	FixtureID   int    `json:"fixture_id,omitempty"`
	Kickoff     string `json:"kickoff,omitempty"`
	LeagueID    int    `json:"league_id,omitempty"`
	LeagueName  string `json:"league_name,omitempty"`
	Season      int    `json:"season,omitempty"`
	HomeID      int    `json:"home_id,omitempty"`
	HomeName    string `json:"home_name,omitempty"`
	AwayID      int    `json:"away_id,omitempty"`
	AwayName    string `json:"away_name,omitempty"`
	NeedsReview bool   `json:"needs_review,omitempty"`
	Debug       *Debug `json:"score_debug,omitempty"`
}

func (r Result) OK() bool { return r.Status == StatusOK }

// Err maps a not_found result to a typed error; nil when ok.
func (r Result) Err() error {
	switch {
	case r.Status == StatusOK:
		return nil
	case r.Reason == ReasonUnparsable:
		return fmt.Errorf("%w: %q", matchtext.ErrUnparsable, r.Text)
	default:
		return fmt.Errorf("%w: %s", ErrNotFound, r.Reason)
	}
}

func notFound(text, reason string) Result {
	return Result{Status: StatusNotFound, Reason: reason, Text: text}
}

func round(x float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(x*p) / p
}
