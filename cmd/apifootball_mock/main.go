// apifootball_mock serves a fake API-Football v3 API locally so the
// resolver, batch runner and HTTP API can be exercised without a key or
// quota.
//
// Every requested date gets the same synthetic slate (Liga MX, Liga MX U20,
// Liga MX Femenil, Premier League, MLS) with ids derived from the date, so
// repeated runs are reproducible. A JSON file keyed by date can replace the
// slate for specific days.
//
// Usage:
//
//	go run ./cmd/apifootball_mock -addr :8788
//
// Then:
//
//	APIFOOTBALL_BASE_URL=http://localhost:8788 go run ./cmd/fixtures resolve \
//	    "Fecha: 4/5 17:10, Partido: América vs Pachuca"
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/CMCFame/parseteamsapifb/internal/telemetry"
)

type slateEntry struct {
	hhmm     string
	leagueID int
	league   string
	country  string
	homeID   int
	home     string
	awayID   int
	away     string
}

var slate = []slateEntry{
	{"17:00", 262, "Liga MX", "Mexico", 2287, "Club America", 2292, "Pachuca"},
	{"19:05", 262, "Liga MX", "Mexico", 2278, "Guadalajara Chivas", 2283, "Atlas"},
	{"21:10", 262, "Liga MX", "Mexico", 2289, "Cruz Azul", 2282, "U.N.A.M. - Pumas"},
	{"17:00", 896, "Liga MX U20", "Mexico", 9001, "America U20", 9002, "Pachuca U20"},
	{"12:00", 673, "Liga MX Femenil", "Mexico", 9101, "America W", 9102, "Pachuca W"},
	{"09:30", 39, "Premier League", "England", 42, "Arsenal", 49, "Chelsea"},
	{"18:30", 253, "Major League Soccer", "USA", 9568, "Inter Miami", 1616, "Los Angeles Galaxy"},
}

type mock struct {
	loc      *time.Location
	override map[string]json.RawMessage
	latency  time.Duration
	failing  bool
	requests atomic.Int64
}

func main() {
	addr := flag.String("addr", ":8788", "listen address")
	tz := flag.String("tz", "America/Mexico_City", "timezone of the synthetic kick-off times")
	file := flag.String("file", "", `JSON file {"YYYY-MM-DD": [provider fixture records]} overriding the slate`)
	latency := flag.Duration("latency", 0, "artificial delay per request")
	failing := flag.Bool("errors", false, "answer every call with a provider error payload")
	flag.Parse()
	telemetry.Init(telemetry.ParseLogLevel("info"))

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		telemetry.Errorf("timezone: %v", err)
		os.Exit(1)
	}
	m := &mock{loc: loc, latency: *latency, failing: *failing, override: map[string]json.RawMessage{}}
	if *file != "" {
		data, err := os.ReadFile(*file)
		if err != nil {
			telemetry.Errorf("read %s: %v", *file, err)
			os.Exit(1)
		}
		if err := json.Unmarshal(data, &m.override); err != nil {
			telemetry.Errorf("parse %s: %v", *file, err)
			os.Exit(1)
		}
		telemetry.Infof("Loaded %d override dates from %s", len(m.override), *file)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /fixtures", m.handleFixtures)
	mux.HandleFunc("GET /fixtures/headtohead", m.handleHeadToHead)
	mux.HandleFunc("GET /status", m.handleStatus)

	telemetry.Infof("API-Football mock listening on %s (tz=%s)", *addr, *tz)
	if err := http.ListenAndServe(*addr, m.logged(mux)); err != nil {
		telemetry.Errorf("listen: %v", err)
		os.Exit(1)
	}
}

func (m *mock) logged(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := m.requests.Add(1)
		telemetry.Infof("#%d %s %s key=%t", n, r.URL.Path, r.URL.RawQuery, r.Header.Get("x-apisports-key") != "")
		if m.latency > 0 {
			time.Sleep(m.latency)
		}
		if m.failing {
			writeJSON(w, map[string]any{"errors": map[string]string{"requests": "You have reached the request limit for the day"}, "response": []any{}})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *mock) handleFixtures(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	day, err := time.ParseInLocation("2006-01-02", date, m.loc)
	if err != nil {
		writeJSON(w, map[string]any{"errors": map[string]string{"date": "The Date field must contain a valid date (YYYY-MM-DD)"}, "response": []any{}})
		return
	}
	if raw, ok := m.override[date]; ok {
		writeJSON(w, map[string]any{"errors": []any{}, "response": raw})
		return
	}
	writeJSON(w, map[string]any{"errors": []any{}, "results": len(slate), "response": m.slateFor(day)})
}

// handleHeadToHead returns one meeting per day for the last three days,
// enough for the tie-break to find a match on a recent date.
func (m *mock) handleHeadToHead(w http.ResponseWriter, r *http.Request) {
	home, away, ok := strings.Cut(r.URL.Query().Get("h2h"), "-")
	homeID, err1 := strconv.Atoi(home)
	awayID, err2 := strconv.Atoi(away)
	if !ok || err1 != nil || err2 != nil {
		writeJSON(w, map[string]any{"errors": map[string]string{"h2h": "The H2h field must contain 2 team ids"}, "response": []any{}})
		return
	}

	today := time.Now().In(m.loc)
	var out []map[string]any
	for back := 0; back < 3; back++ {
		day := today.AddDate(0, 0, -back)
		for _, f := range m.slateFor(day) {
			teams := f["teams"].(map[string]any)
			h := teams["home"].(map[string]any)["id"].(int)
			a := teams["away"].(map[string]any)["id"].(int)
			if (h == homeID && a == awayID) || (h == awayID && a == homeID) {
				out = append(out, f)
			}
		}
	}
	writeJSON(w, map[string]any{"errors": []any{}, "results": len(out), "response": out})
}

func (m *mock) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"errors": []any{},
		"response": map[string]any{
			"subscription": map[string]any{"plan": "Mock", "active": true},
			"requests":     map[string]any{"current": m.requests.Load(), "limit_day": 100},
		},
	})
}

func (m *mock) slateFor(day time.Time) []map[string]any {
	base, _ := strconv.Atoi(day.Format("060102"))
	season := day.Year()
	if day.Month() < time.July {
		season--
	}

	out := make([]map[string]any, 0, len(slate))
	for i, e := range slate {
		clock, _ := time.Parse("15:04", e.hhmm)
		kickoff := time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, m.loc)
		status := "NS"
		if kickoff.Before(time.Now()) {
			status = "FT"
		}
		out = append(out, map[string]any{
			"fixture": map[string]any{
				"id":     base*100 + i,
				"date":   kickoff.Format(time.RFC3339),
				"status": map[string]any{"short": status},
			},
			"league": map[string]any{"id": e.leagueID, "name": e.league, "country": e.country, "season": season},
			"teams": map[string]any{
				"home": map[string]any{"id": e.homeID, "name": e.home},
				"away": map[string]any{"id": e.awayID, "name": e.away},
			},
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
	}
}
