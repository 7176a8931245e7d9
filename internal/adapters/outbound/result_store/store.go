package result_store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/CMCFame/parseteamsapifb/internal/core/resolver"
	"github.com/CMCFame/parseteamsapifb/internal/events"
	"github.com/CMCFame/parseteamsapifb/internal/telemetry"

	_ "modernc.org/sqlite"
)

const (
	maxRows        = 500_000
	evictBatchSize = 1000
)

// Row is one stored resolution.
type Row struct {
	ID     int64     `json:"id"`
	TS     time.Time `json:"ts"`
	Origin string    `json:"origin"`
	resolver.Result
}

// Store keeps an audit trail of every resolution in SQLite, oldest rows
// evicted once maxRows is exceeded.
type Store struct {
	db       *sql.DB
	mu       sync.Mutex
	rowCount int64
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS resolutions (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			ts           TEXT    NOT NULL,
			origin       TEXT    NOT NULL DEFAULT '',
			text         TEXT    NOT NULL,
			status       TEXT    NOT NULL,
			reason       TEXT    NOT NULL DEFAULT '',
			fixture_id   INTEGER NOT NULL DEFAULT 0,
			kickoff      TEXT    NOT NULL DEFAULT '',
			league_id    INTEGER NOT NULL DEFAULT 0,
			league_name  TEXT    NOT NULL DEFAULT '',
			season       INTEGER NOT NULL DEFAULT 0,
			home_id      INTEGER NOT NULL DEFAULT 0,
			home_name    TEXT    NOT NULL DEFAULT '',
			away_id      INTEGER NOT NULL DEFAULT 0,
			away_name    TEXT    NOT NULL DEFAULT '',
			score        REAL,
			needs_review INTEGER NOT NULL DEFAULT 0,
			debug_json   TEXT    NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_res_ts ON resolutions(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_res_review ON resolutions(needs_review, id)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init schema (%s): %w", stmt, err)
		}
	}

	var count int64
	if err := db.QueryRow(`SELECT COUNT(*) FROM resolutions`).Scan(&count); err != nil {
		db.Close()
		return nil, fmt.Errorf("count rows: %w", err)
	}

	telemetry.Infof("result store: opened %s  rows=%d", path, count)
	return &Store{db: db, rowCount: count}, nil
}

// Insert stores one result.
func (s *Store) Insert(origin events.Origin, res resolver.Result) error {
	var score sql.NullFloat64
	debugJSON := ""
	if res.Debug != nil {
		score = sql.NullFloat64{Float64: res.Debug.Score, Valid: true}
		data, err := json.Marshal(res.Debug)
		if err != nil {
			return fmt.Errorf("encode debug: %w", err)
		}
		debugJSON = string(data)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO resolutions (ts, origin, text, status, reason, fixture_id, kickoff,
			league_id, league_name, season, home_id, home_name, away_id, away_name,
			score, needs_review, debug_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano),
		string(origin), res.Text, string(res.Status), res.Reason, res.FixtureID, res.Kickoff,
		res.LeagueID, res.LeagueName, res.Season, res.HomeID, res.HomeName, res.AwayID, res.AwayName,
		score, boolToInt(res.NeedsReview), debugJSON,
	)
	if err != nil {
		return fmt.Errorf("insert resolution: %w", err)
	}

	s.rowCount++
	if s.rowCount > maxRows {
		s.evict()
	}
	return nil
}

// evict removes oldest rows until the table is under maxRows.
// Must be called with s.mu held.
func (s *Store) evict() {
	for s.rowCount > maxRows {
		res, err := s.db.Exec(
			`DELETE FROM resolutions WHERE id IN (SELECT id FROM resolutions ORDER BY id ASC LIMIT ?)`,
			evictBatchSize,
		)
		if err != nil {
			telemetry.Warnf("result store: evict failed: %v", err)
			return
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return
		}
		s.rowCount -= n
	}
}

// Subscribe persists every resolution published on the bus.
func (s *Store) Subscribe(bus *events.Bus) {
	bus.SubscribeNamed(events.EventResolution, "result_store", func(e events.Event) error {
		ev, ok := events.Resolution(e)
		if !ok {
			return nil
		}
		return s.Insert(e.Origin, ev.Result)
	})
}

// Recent returns the newest n rows, newest first.
func (s *Store) Recent(n int) ([]Row, error) {
	return s.query(`SELECT `+rowColumns+` FROM resolutions ORDER BY id DESC LIMIT ?`, n)
}

// NeedsReview returns the newest n rows flagged for review or not found.
func (s *Store) NeedsReview(n int) ([]Row, error) {
	return s.query(`SELECT `+rowColumns+` FROM resolutions
		WHERE needs_review = 1 OR status != 'ok' ORDER BY id DESC LIMIT ?`, n)
}

// CountByStatus groups rows by status ("ok") or by reason for not_found.
func (s *Store) CountByStatus() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT CASE WHEN status = 'ok' THEN 'ok' ELSE reason END, COUNT(*)
		FROM resolutions GROUP BY 1`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[key] = n
	}
	return out, rows.Err()
}

const rowColumns = `id, ts, origin, text, status, reason, fixture_id, kickoff, league_id, league_name,
	season, home_id, home_name, away_id, away_name, needs_review, debug_json`

func (s *Store) query(q string, n int) ([]Row, error) {
	rows, err := s.db.Query(q, n)
	if err != nil {
		return nil, fmt.Errorf("query resolutions: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			r         Row
			ts        string
			status    string
			review    int
			debugJSON string
		)
		if err := rows.Scan(&r.ID, &ts, &r.Origin, &r.Text, &status, &r.Reason, &r.FixtureID, &r.Kickoff,
			&r.LeagueID, &r.LeagueName, &r.Season, &r.HomeID, &r.HomeName, &r.AwayID, &r.AwayName,
			&review, &debugJSON); err != nil {
			return nil, fmt.Errorf("scan resolution: %w", err)
		}
		r.TS, _ = time.Parse(time.RFC3339Nano, ts)
		r.Status = resolver.Status(status)
		r.NeedsReview = review == 1
		if debugJSON != "" {
			var d resolver.Debug
			if err := json.Unmarshal([]byte(debugJSON), &d); err == nil {
				r.Debug = &d
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
