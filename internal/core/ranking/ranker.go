package ranking

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/CMCFame/parseteamsapifb/internal/core/fixtures"
	"github.com/CMCFame/parseteamsapifb/internal/core/league"
	"github.com/CMCFame/parseteamsapifb/internal/core/teamname"
	"github.com/CMCFame/parseteamsapifb/internal/telemetry"
)

// Tie-break outcomes.
const (
	TieNone       = ""
	TieConfirmed  = "confirmed"
	TieUnresolved = "unresolved"
)

// floatSlack absorbs rounding when comparing score gaps against TieEpsilon.
const floatSlack = 1e-9

// Target is what the caller is looking for: a local kick-off instant and the
// two normalized team names in board order.
type Target struct {
	Kickoff time.Time
	TeamA   string
	TeamB   string
}

// Scored is a fixture that survived filtering, with its sub-scores.
type Scored struct {
	Fixture     fixtures.Fixture
	HomeScore   float64
	AwayScore   float64
	MinutesDiff int
	Score       float64
	Curated     bool
	Swapped     bool // TeamA matched the away side
}

// Ranking is the outcome of scoring one date's fixtures.
type Ranking struct {
	Candidates  []Scored // best first
	Suppressed  int
	OutOfWindow int
}

// Ranker scores fixtures against a Target.
type Ranker struct {
	policy     Policy
	filter     *league.Filter
	normalizer *teamname.Normalizer
	tokenizer  *teamname.Tokenizer
	h2h        fixtures.H2HFetcher
	h2hTimeout time.Duration
}

func NewRanker(p Policy, f *league.Filter, n *teamname.Normalizer, tok *teamname.Tokenizer) *Ranker {
	return &Ranker{policy: p, filter: f, normalizer: n, tokenizer: tok}
}

// WithHeadToHead enables the tie-break lookup when the policy asks for it.
func (r *Ranker) WithHeadToHead(h2h fixtures.H2HFetcher, timeout time.Duration) *Ranker {
	r.h2h = h2h
	r.h2hTimeout = timeout
	return r
}

func (r *Ranker) Policy() Policy { return r.policy }

// Rank filters list by league, team markers and kick-off window, then scores
// and sorts the survivors.
func (r *Ranker) Rank(target Target, list []fixtures.Fixture) Ranking {
	var out Ranking
	tokA := r.tokenizer.Tokenize(target.TeamA)
	tokB := r.tokenizer.Tokenize(target.TeamB)

	for _, fx := range list {
		verdict := r.filter.Check(fx)
		if verdict.Suppressed {
			out.Suppressed++
			telemetry.Metrics.Suppressed.Inc()
			continue
		}

		mins := minutesBetween(fx.Kickoff, target.Kickoff)
		if mins > r.policy.WindowMinutes {
			out.OutOfWindow++
			continue
		}

		home := r.tokenizer.Tokenize(r.normalizer.Normalize(fx.Home.Name))
		away := r.tokenizer.Tokenize(r.normalizer.Normalize(fx.Away.Name))

		sc := Scored{
			Fixture:     fx,
			MinutesDiff: mins,
			Curated:     verdict.Curated,
			HomeScore:   teamname.Score(home, tokA),
			AwayScore:   teamname.Score(away, tokB),
		}
		names := r.nameScore(sc.HomeScore, sc.AwayScore)

		if r.policy.Orientation == OrientationEither {
			swHome := teamname.Score(home, tokB)
			swAway := teamname.Score(away, tokA)
			if swapped := r.nameScore(swHome, swAway) * r.policy.SwapFactor; swapped > names {
				names = swapped
				sc.HomeScore, sc.AwayScore, sc.Swapped = swHome, swAway, true
			}
		}

		sc.Score = names - r.policy.TimePenalty*float64(mins)
		if sc.Curated {
			sc.Score += r.policy.CuratedBonus
		}
		out.Candidates = append(out.Candidates, sc)
	}

	slices.SortFunc(out.Candidates, func(a, b Scored) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.MinutesDiff, b.MinutesDiff); c != 0 {
			return c
		}
		return cmp.Compare(a.Fixture.ID, b.Fixture.ID)
	})
	return out
}

func (r *Ranker) nameScore(home, away float64) float64 {
	s := r.policy.HomeWeight*home + r.policy.AwayWeight*away
	if home >= r.policy.BothHighMin && away >= r.policy.BothHighMin {
		s += r.policy.BothHighBonus
	}
	return s
}

// Tied returns the leading candidates whose score is within TieEpsilon of
// the best. A single element means there is no tie.
func (r *Ranker) Tied(ranked []Scored) []Scored {
	if len(ranked) == 0 {
		return nil
	}
	n := 1
	for n < len(ranked) && ranked[0].Score-ranked[n].Score <= r.policy.TieEpsilon+floatSlack {
		n++
	}
	return ranked[:n]
}

// Pick returns the winner of a ranking and the tie-break outcome. When the
// tie-break is enabled and the top candidates are tied, the first one whose
// head-to-head history has a match on the target's local date wins.
func (r *Ranker) Pick(ctx context.Context, target Target, ranked []Scored) (Scored, string) {
	tied := r.Tied(ranked)
	if len(tied) < 2 {
		return ranked[0], TieNone
	}
	if !r.policy.TieBreak || r.h2h == nil {
		return ranked[0], TieNone
	}

	telemetry.Metrics.TieBreaks.Inc()
	day := target.Kickoff.Format("2006-01-02")
	loc := target.Kickoff.Location()
	for _, c := range tied {
		if r.playedOn(ctx, c.Fixture, day, loc) {
			telemetry.Infof("ranking: tie-break confirmed fixture %d (%s vs %s) among %d tied",
				c.Fixture.ID, c.Fixture.Home.Name, c.Fixture.Away.Name, len(tied))
			return c, TieConfirmed
		}
	}
	telemetry.Warnf("ranking: tie-break found no head-to-head on %s among %d tied, keeping fixture %d",
		day, len(tied), tied[0].Fixture.ID)
	return tied[0], TieUnresolved
}

func (r *Ranker) playedOn(ctx context.Context, fx fixtures.Fixture, day string, loc *time.Location) bool {
	if r.h2hTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.h2hTimeout)
		defer cancel()
	}
	telemetry.Metrics.H2HCalls.Inc()
	history, err := r.h2h.HeadToHead(ctx, fx.Home.ID, fx.Away.ID)
	if err != nil {
		telemetry.Warnf("ranking: head-to-head %d-%d: %v", fx.Home.ID, fx.Away.ID, err)
		return false
	}
	for _, h := range history {
		if h.Kickoff.In(loc).Format("2006-01-02") == day {
			return true
		}
	}
	return false
}

// minutesBetween is the absolute difference in whole minutes, truncated.
func minutesBetween(a, b time.Time) int {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return int(d / time.Minute)
}
