package fixtures

import (
	"context"
	"errors"
	"time"
)

// ErrUpstream wraps every provider failure: timeouts, non-2xx statuses,
// malformed payloads and provider-reported errors.
var ErrUpstream = errors.New("fixture provider unavailable")

// Fetcher abstracts the per-date fixture listing of a provider.
// Satisfied by *apifootball.Client.
type Fetcher interface {
	FixturesByDate(ctx context.Context, date, timezone string) ([]Fixture, error)
}

// H2HFetcher abstracts the head-to-head history of a team pair.
// Satisfied by *apifootball.Client.
type H2HFetcher interface {
	HeadToHead(ctx context.Context, homeID, awayID int) ([]Fixture, error)
}

// Persistent is an optional second-level cache shared across processes.
// Get returns ok=false on a miss.
type Persistent interface {
	Get(ctx context.Context, date string) (list []Fixture, ok bool, err error)
	Set(ctx context.Context, date string, list []Fixture) error
}

type Team struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type League struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country,omitempty"`
	Season  int    `json:"season"`
}

// Fixture is one scheduled match as reported by the provider.
type Fixture struct {
	ID      int       `json:"id"`
	Kickoff time.Time `json:"kickoff"` // UTC
	Status  string    `json:"status,omitempty"`
	League  League    `json:"league"`
	Home    Team      `json:"home"`
	Away    Team      `json:"away"`
}
