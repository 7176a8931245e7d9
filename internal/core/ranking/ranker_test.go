package ranking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CMCFame/parseteamsapifb/internal/config"
	"github.com/CMCFame/parseteamsapifb/internal/core/fixtures"
	"github.com/CMCFame/parseteamsapifb/internal/core/league"
	"github.com/CMCFame/parseteamsapifb/internal/core/teamname"
)

const (
	ligaMX    = 262
	otherLiga = 9001
)

var mexico = mustLoad("America/Mexico_City")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

func newRanker(t *testing.T, tweak func(*Policy)) *Ranker {
	t.Helper()
	tables, err := config.DefaultTables()
	require.NoError(t, err)
	n, err := teamname.NewNormalizer(tables.Aliases, tables.Expansions)
	require.NoError(t, err)
	f, err := league.NewFilter(tables)
	require.NoError(t, err)

	p := PolicyFrom(tables.Policy)
	if tweak != nil {
		tweak(&p)
	}
	return NewRanker(p, f, n, teamname.NewTokenizer(tables.Stopwords))
}

func fixture(id, leagueID int, leagueName, home, away string, kickoff time.Time) fixtures.Fixture {
	return fixtures.Fixture{
		ID:      id,
		Kickoff: kickoff.UTC(),
		League:  fixtures.League{ID: leagueID, Name: leagueName, Season: 2025},
		Home:    fixtures.Team{ID: id*10 + 1, Name: home},
		Away:    fixtures.Team{ID: id*10 + 2, Name: away},
	}
}

func target(kickoff time.Time, a, b string) Target {
	return Target{Kickoff: kickoff, TeamA: a, TeamB: b}
}

func TestRankWindowBoundary(t *testing.T) {
	r := newRanker(t, nil)
	at := time.Date(2025, 4, 5, 17, 0, 0, 0, mexico)

	inside := fixture(1, otherLiga, "Liga Uno", "Pachuca", "America", at.Add(90*time.Minute))
	outside := fixture(2, otherLiga, "Liga Uno", "Pachuca", "America", at.Add(91*time.Minute))
	early := fixture(3, otherLiga, "Liga Uno", "Pachuca", "America", at.Add(-90*time.Minute-59*time.Second))

	got := r.Rank(target(at, "pachuca", "america"), []fixtures.Fixture{inside, outside, early})

	ids := []int{}
	for _, c := range got.Candidates {
		ids = append(ids, c.Fixture.ID)
	}
	assert.ElementsMatch(t, []int{1, 3}, ids)
	assert.Equal(t, 1, got.OutOfWindow)
	for _, c := range got.Candidates {
		assert.Equal(t, 90, c.MinutesDiff)
	}
}

func TestRankScoreFormula(t *testing.T) {
	r := newRanker(t, nil)
	at := time.Date(2025, 4, 5, 17, 0, 0, 0, mexico)

	fx := fixture(1, otherLiga, "Liga Uno", "C.F. Pachuca", "Club América", at.Add(10*time.Minute))
	got := r.Rank(target(at, "pachuca", "america"), []fixtures.Fixture{fx})

	require.Len(t, got.Candidates, 1)
	c := got.Candidates[0]
	assert.Equal(t, 1.0, c.HomeScore)
	assert.Equal(t, 1.0, c.AwayScore)
	assert.Equal(t, 10, c.MinutesDiff)
	// 0.7 + 0.7 + 0.2 both-high bonus - 0.01*10
	assert.InDelta(t, 1.5, c.Score, 1e-9)
	assert.False(t, c.Curated)
}

func TestRankNeverSelectsBlockedLeague(t *testing.T) {
	r := newRanker(t, nil)
	at := time.Date(2025, 4, 5, 17, 0, 0, 0, mexico)

	u23 := fixture(1, 500, "Liga MX U23", "Pachuca", "America", at)
	youthTeams := fixture(2, otherLiga, "Liga Uno", "Pachuca U20", "America U20", at)
	women := fixture(3, 673, "Liga MX Femenil", "Pachuca", "America", at)

	got := r.Rank(target(at, "pachuca", "america"), []fixtures.Fixture{u23, youthTeams, women})
	assert.Empty(t, got.Candidates)
	assert.Equal(t, 3, got.Suppressed)
}

func TestRankCuratedLeagueRanksHigher(t *testing.T) {
	r := newRanker(t, nil)
	at := time.Date(2025, 4, 5, 17, 0, 0, 0, mexico)

	plain := fixture(1, otherLiga, "Liga Uno", "Santos", "Leon", at.Add(5*time.Minute))
	curated := fixture(2, ligaMX, "Liga MX", "Santos", "Leon", at.Add(5*time.Minute))

	got := r.Rank(target(at, "santos laguna", "leon"), []fixtures.Fixture{plain, curated})
	require.Len(t, got.Candidates, 2)
	assert.Equal(t, 2, got.Candidates[0].Fixture.ID)
	assert.True(t, got.Candidates[0].Curated)
	assert.Greater(t, got.Candidates[0].Score, got.Candidates[1].Score)
	assert.InDelta(t, 0.05, got.Candidates[0].Score-got.Candidates[1].Score, 1e-9)
}

func TestRankOrientation(t *testing.T) {
	at := time.Date(2025, 4, 5, 17, 0, 0, 0, mexico)
	reversed := fixture(1, ligaMX, "Liga MX", "Club America", "Pachuca", at)

	strict := newRanker(t, nil).Rank(target(at, "pachuca", "america"), []fixtures.Fixture{reversed})
	require.Len(t, strict.Candidates, 1)
	assert.False(t, strict.Candidates[0].Swapped)
	assert.Equal(t, 0.0, strict.Candidates[0].HomeScore)

	either := newRanker(t, func(p *Policy) { p.Orientation = OrientationEither }).
		Rank(target(at, "pachuca", "america"), []fixtures.Fixture{reversed})
	require.Len(t, either.Candidates, 1)
	c := either.Candidates[0]
	assert.True(t, c.Swapped)
	// (0.7 + 0.7 + 0.2) * 0.9 + 0.05 curated
	assert.InDelta(t, 1.49, c.Score, 1e-9)
}

func TestRankOrdersDeterministically(t *testing.T) {
	r := newRanker(t, nil)
	at := time.Date(2025, 4, 5, 17, 0, 0, 0, mexico)

	a := fixture(7, otherLiga, "Liga Uno", "Toluca", "Necaxa", at)
	b := fixture(3, otherLiga, "Liga Uno", "Toluca", "Necaxa", at)

	got := r.Rank(target(at, "toluca", "necaxa"), []fixtures.Fixture{a, b})
	require.Len(t, got.Candidates, 2)
	assert.Equal(t, 3, got.Candidates[0].Fixture.ID)
	assert.Equal(t, 7, got.Candidates[1].Fixture.ID)
}

type fakeH2H struct {
	byPair map[[2]int][]fixtures.Fixture
	err    error
	calls  int
}

func (f *fakeH2H) HeadToHead(ctx context.Context, homeID, awayID int) ([]fixtures.Fixture, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.byPair[[2]int{homeID, awayID}], nil
}

func tiedPair(at time.Time) (fixtures.Fixture, fixtures.Fixture) {
	first := fixture(1, otherLiga, "Liga Uno", "Toluca", "Necaxa", at)
	second := fixture(2, otherLiga, "Liga Uno", "Toluca", "Necaxa", at.Add(3*time.Minute))
	return first, second
}

func TestPickTieBreakConfirmsByHeadToHead(t *testing.T) {
	at := time.Date(2025, 4, 5, 17, 0, 0, 0, mexico)
	first, second := tiedPair(at)

	h2h := &fakeH2H{byPair: map[[2]int][]fixtures.Fixture{
		{first.Home.ID, first.Away.ID}:   {{ID: 100, Kickoff: at.AddDate(0, 0, -7).UTC()}},
		{second.Home.ID, second.Away.ID}: {{ID: 200, Kickoff: at.Add(3 * time.Minute).UTC()}},
	}}
	r := newRanker(t, func(p *Policy) { p.TieBreak = true }).WithHeadToHead(h2h, time.Second)

	tgt := target(at, "toluca", "necaxa")
	ranked := r.Rank(tgt, []fixtures.Fixture{first, second})
	require.Len(t, r.Tied(ranked.Candidates), 2)

	winner, outcome := r.Pick(context.Background(), tgt, ranked.Candidates)
	assert.Equal(t, TieConfirmed, outcome)
	assert.Equal(t, 2, winner.Fixture.ID)
	assert.Equal(t, 2, h2h.calls)
}

func TestPickTieBreakUnresolvedKeepsBest(t *testing.T) {
	at := time.Date(2025, 4, 5, 17, 0, 0, 0, mexico)
	first, second := tiedPair(at)

	h2h := &fakeH2H{err: errors.New("timeout")}
	r := newRanker(t, func(p *Policy) { p.TieBreak = true }).WithHeadToHead(h2h, time.Second)

	tgt := target(at, "toluca", "necaxa")
	ranked := r.Rank(tgt, []fixtures.Fixture{first, second})
	winner, outcome := r.Pick(context.Background(), tgt, ranked.Candidates)
	assert.Equal(t, TieUnresolved, outcome)
	assert.Equal(t, 1, winner.Fixture.ID)
}

func TestPickWithoutTieBreak(t *testing.T) {
	at := time.Date(2025, 4, 5, 17, 0, 0, 0, mexico)
	first, second := tiedPair(at)

	h2h := &fakeH2H{}
	r := newRanker(t, nil).WithHeadToHead(h2h, time.Second)

	tgt := target(at, "toluca", "necaxa")
	ranked := r.Rank(tgt, []fixtures.Fixture{first, second})
	winner, outcome := r.Pick(context.Background(), tgt, ranked.Candidates)
	assert.Equal(t, TieNone, outcome)
	assert.Equal(t, 1, winner.Fixture.ID)
	assert.Zero(t, h2h.calls)
}

func TestTiedRespectsEpsilon(t *testing.T) {
	r := newRanker(t, nil)
	ranked := []Scored{{Score: 1.0}, {Score: 0.95}, {Score: 0.949}}
	assert.Len(t, r.Tied(ranked), 2)
	assert.Len(t, r.Tied(ranked[:1]), 1)
	assert.Empty(t, r.Tied(nil))
}
