package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CMCFame/parseteamsapifb/internal/config"
	"github.com/CMCFame/parseteamsapifb/internal/core/ranking"
	"github.com/CMCFame/parseteamsapifb/internal/core/resolver"
	"github.com/CMCFame/parseteamsapifb/internal/events"
)

const dayPayload = `{
  "errors": [],
  "response": [
    {
      "fixture": {"id": 1001, "date": "2025-04-05T17:10:00-06:00", "status": {"short": "FT"}},
      "league": {"id": 262, "name": "Liga MX", "country": "Mexico", "season": 2024},
      "teams": {"home": {"id": 2287, "name": "Club America"}, "away": {"id": 2292, "name": "Pachuca"}}
    },
    {
      "fixture": {"id": 1002, "date": "2025-04-05T17:00:00-06:00", "status": {"short": "FT"}},
      "league": {"id": 896, "name": "Liga MX U20", "country": "Mexico", "season": 2024},
      "teams": {"home": {"id": 9001, "name": "America U20"}, "away": {"id": 9002, "name": "Pachuca U20"}}
    }
  ]
}`

func provider(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("date") == "2025-04-05" {
			_, _ = w.Write([]byte(dayPayload))
			return
		}
		_, _ = w.Write([]byte(`{"errors": [], "response": []}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL, dbPath string) *config.Config {
	return &config.Config{
		APIKey:        "test",
		APIBaseURL:    baseURL,
		FetchTimeout:  5 * time.Second,
		H2HTimeout:    time.Second,
		Timezone:      "America/Mexico_City",
		ResultsDBPath: dbPath,
	}
}

func TestBuildResolvesEndToEnd(t *testing.T) {
	var calls atomic.Int32
	srv := provider(t, &calls)

	a, err := Build(testConfig(srv.URL, filepath.Join(t.TempDir(), "res.db")))
	require.NoError(t, err)
	defer a.Close()
	require.NotNil(t, a.Store)
	a.Parser.Now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, a.Parser.Location) }

	res := a.Resolver.Resolve(context.Background(), "Fecha: 4/5 17:10, Partido: América vs Pachuca")
	require.True(t, res.OK(), "reason=%s", res.Reason)
	assert.Equal(t, 1001, res.FixtureID)
	assert.Equal(t, 2287, res.HomeID)
	assert.Equal(t, 2292, res.AwayID)
	assert.Equal(t, "2025-04-05T17:10:00-06:00", res.Kickoff)

	again := a.Resolver.Resolve(context.Background(), "Fecha: 4/5 17:00, Partido: America vs Pachuca")
	assert.Equal(t, 1001, again.FixtureID)
	assert.Equal(t, int32(1), calls.Load())

	a.Bus.Publish(events.NewResolution(events.OriginCLI, events.ResolutionEvent{Result: res}))
	rows, err := a.Store.Recent(10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1001, rows[0].FixtureID)
}

func TestBuildNoFixtures(t *testing.T) {
	var calls atomic.Int32
	srv := provider(t, &calls)

	a, err := Build(testConfig(srv.URL, StoreDisabled))
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.Store)
	a.Parser.Now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, a.Parser.Location) }

	res := a.Resolver.Resolve(context.Background(), "Fecha: 3/3, Partido: Leon vs Atlas")
	assert.Equal(t, resolver.StatusNotFound, res.Status)
	assert.Equal(t, resolver.ReasonNoFixtures, res.Reason)
	// 2025-03-03 and the year-back retry on 2024-03-03
	assert.Equal(t, int32(2), calls.Load())
}

func TestPolicyOverrides(t *testing.T) {
	tables, err := config.DefaultTables()
	require.NoError(t, err)

	p, err := policyFor(&config.Config{WindowMinutes: 120, Orientation: "either", TieBreak: true}, tables)
	require.NoError(t, err)
	assert.Equal(t, 120, p.WindowMinutes)
	assert.Equal(t, ranking.OrientationEither, p.Orientation)
	assert.True(t, p.TieBreak)

	p, err = policyFor(&config.Config{}, tables)
	require.NoError(t, err)
	assert.Equal(t, tables.Policy.WindowMinutes, p.WindowMinutes)
	assert.Equal(t, ranking.OrientationStrict, p.Orientation)
	assert.False(t, p.TieBreak)

	_, err = policyFor(&config.Config{Orientation: "sideways"}, tables)
	assert.Error(t, err)

	_, err = policyFor(&config.Config{WindowMinutes: -30}, tables)
	assert.ErrorContains(t, err, "must not be negative")
}

func TestBuildRejectsBadInputs(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1", StoreDisabled)
	cfg.Timezone = "Mars/Olympus_Mons"
	_, err := Build(cfg)
	assert.Error(t, err)

	cfg = testConfig("http://127.0.0.1:1", StoreDisabled)
	cfg.TablesPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = Build(cfg)
	assert.Error(t, err)
}
