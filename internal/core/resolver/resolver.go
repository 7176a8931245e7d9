package resolver

import (
	"context"
	"errors"
	"time"

	"github.com/CMCFame/parseteamsapifb/internal/core/fixtures"
	"github.com/CMCFame/parseteamsapifb/internal/core/matchtext"
	"github.com/CMCFame/parseteamsapifb/internal/core/ranking"
	"github.com/CMCFame/parseteamsapifb/internal/core/teamname"
	"github.com/CMCFame/parseteamsapifb/internal/telemetry"
)

// Resolver turns one free-text match description into fixture and team ids.
// Safe for concurrent use; the only shared state is the fixture cache.
type Resolver struct {
	parser     *matchtext.Parser
	normalizer *teamname.Normalizer
	source     *fixtures.Source
	ranker     *ranking.Ranker
}

func New(parser *matchtext.Parser, normalizer *teamname.Normalizer, source *fixtures.Source, ranker *ranking.Ranker) *Resolver {
	return &Resolver{
		parser:     parser,
		normalizer: normalizer,
		source:     source,
		ranker:     ranker,
	}
}

func (r *Resolver) Resolve(ctx context.Context, text string) Result {
	start := time.Now()
	telemetry.Metrics.ResolveCalls.Inc()

	d, err := r.parser.Parse(text)
	var res Result
	if err != nil {
		if errors.Is(err, matchtext.ErrUnparsable) {
			telemetry.Metrics.ParseErrors.Inc()
			telemetry.Debugf("resolver: %v", err)
		}
		res = notFound(text, ReasonUnparsable)
	} else {
		res = r.resolve(ctx, d)
	}

	r.record(res, time.Since(start))
	return res
}

// ResolveParsed skips the text parser for callers with structured input.
func (r *Resolver) ResolveParsed(ctx context.Context, d matchtext.Description) Result {
	start := time.Now()
	telemetry.Metrics.ResolveCalls.Inc()
	res := r.resolve(ctx, d)
	r.record(res, time.Since(start))
	return res
}

func (r *Resolver) resolve(ctx context.Context, d matchtext.Description) Result {
	list := r.source.ForDate(ctx, d.Date())
	if len(list) == 0 {
		if prev, ok := r.parser.YearBefore(d); ok {
			if older := r.source.ForDate(ctx, prev.Date()); len(older) > 0 {
				telemetry.Infof("resolver: no fixtures on %s, using %s", d.Date(), prev.Date())
				d, list = prev, older
			}
		}
	}
	if len(list) == 0 {
		return notFound(d.Text, ReasonNoFixtures)
	}

	target := ranking.Target{
		Kickoff: d.Kickoff,
		TeamA:   r.normalizer.Normalize(d.TeamA),
		TeamB:   r.normalizer.Normalize(d.TeamB),
	}
	ranked := r.ranker.Rank(target, list)
	if len(ranked.Candidates) == 0 {
		telemetry.Debugf("resolver: %s vs %s on %s: %d fixtures, %d suppressed, %d outside window",
			target.TeamA, target.TeamB, d.Date(), len(list), ranked.Suppressed, ranked.OutOfWindow)
		return notFound(d.Text, ReasonNoCandidates)
	}

	best, tie := r.ranker.Pick(ctx, target, ranked.Candidates)
	policy := r.ranker.Policy()
	if best.Score < policy.MinScore {
		return notFound(d.Text, ReasonBelowMinScore)
	}

	fx := best.Fixture
	return Result{
		Status:      StatusOK,
		Text:        d.Text,
		FixtureID:   fx.ID,
		Kickoff:     fx.Kickoff.In(d.Kickoff.Location()).Format(time.RFC3339),
		LeagueID:    fx.League.ID,
		LeagueName:  fx.League.Name,
		Season:      fx.League.Season,
		HomeID:      fx.Home.ID,
		HomeName:    fx.Home.Name,
		AwayID:      fx.Away.ID,
		AwayName:    fx.Away.Name,
		NeedsReview: best.Score < policy.ReviewThreshold || tie == ranking.TieUnresolved,
		Debug: &Debug{
			Score:      round(best.Score, 4),
			MinsDiff:   best.MinutesDiff,
			SHome:      round(best.HomeScore, 3),
			SAway:      round(best.AwayScore, 3),
			LocalNorm:  target.TeamA,
			VisitaNorm: target.TeamB,
			Candidates: len(ranked.Candidates),
			TieBreak:   tie,
			Swapped:    best.Swapped,
		},
	}
}

func (r *Resolver) record(res Result, elapsed time.Duration) {
	telemetry.Metrics.ResolveLatency.Record(elapsed)
	if !res.OK() {
		telemetry.Metrics.ResolveNotFound.Inc()
		return
	}
	telemetry.Metrics.ResolveOK.Inc()
	if res.NeedsReview {
		telemetry.Metrics.NeedsReview.Inc()
	}
}
