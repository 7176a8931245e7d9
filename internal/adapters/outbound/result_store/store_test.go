package result_store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CMCFame/parseteamsapifb/internal/core/resolver"
	"github.com/CMCFame/parseteamsapifb/internal/events"
)

func okResult(text string, fixtureID int, review bool) resolver.Result {
	return resolver.Result{
		Status:      resolver.StatusOK,
		Text:        text,
		FixtureID:   fixtureID,
		Kickoff:     "2025-04-05T17:10:00-06:00",
		LeagueID:    262,
		LeagueName:  "Liga MX",
		Season:      2024,
		HomeID:      2287,
		HomeName:    "Club America",
		AwayID:      2292,
		AwayName:    "Pachuca",
		NeedsReview: review,
		Debug:       &resolver.Debug{Score: 1.55, MinsDiff: 10, SHome: 1, SAway: 1, LocalNorm: "america", VisitaNorm: "pachuca", Candidates: 1},
	}
}

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "resolutions.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestInsertAndQuery(t *testing.T) {
	s, _ := openTemp(t)

	require.NoError(t, s.Insert(events.OriginCLI, okResult("first", 1, false)))
	require.NoError(t, s.Insert(events.OriginBatch, okResult("second", 2, true)))
	require.NoError(t, s.Insert(events.OriginBatch, resolver.Result{
		Status: resolver.StatusNotFound, Reason: resolver.ReasonNoCandidates, Text: "third",
	}))

	recent, err := s.Recent(10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "third", recent[0].Text)
	assert.Equal(t, "first", recent[2].Text)
	assert.Equal(t, "cli", recent[2].Origin)
	assert.Equal(t, resolver.StatusOK, recent[2].Status)
	require.NotNil(t, recent[2].Debug)
	assert.Equal(t, 1.55, recent[2].Debug.Score)
	assert.Equal(t, "america", recent[2].Debug.LocalNorm)
	assert.Nil(t, recent[0].Debug)
	assert.False(t, recent[0].TS.IsZero())

	review, err := s.NeedsReview(10)
	require.NoError(t, err)
	require.Len(t, review, 2)
	assert.Equal(t, "third", review[0].Text)
	assert.Equal(t, "second", review[1].Text)
	assert.True(t, review[1].NeedsReview)

	counts, err := s.CountByStatus()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"ok": 2, resolver.ReasonNoCandidates: 1}, counts)

	limited, err := s.Recent(1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSubscribePersistsBusEvents(t *testing.T) {
	s, _ := openTemp(t)
	bus := events.NewBus()
	s.Subscribe(bus)

	bus.Publish(events.NewResolution(events.OriginHTTP, events.ResolutionEvent{Result: okResult("via bus", 9, false)}))

	rows, err := s.Recent(5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "http", rows[0].Origin)
	assert.Equal(t, 9, rows[0].FixtureID)
}

func TestReopenKeepsRows(t *testing.T) {
	s, path := openTemp(t)
	require.NoError(t, s.Insert(events.OriginCLI, okResult("kept", 1, false)))
	require.NoError(t, s.Close())

	again, err := Open(path)
	require.NoError(t, err)
	defer again.Close()
	assert.EqualValues(t, 1, again.rowCount)
}
