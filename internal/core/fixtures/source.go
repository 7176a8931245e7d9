package fixtures

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/CMCFame/parseteamsapifb/internal/telemetry"
)

// Source serves the fixture list of a calendar date, caching each date for
// the life of the process. Concurrent misses for the same date share one
// upstream call.
type Source struct {
	fetcher  Fetcher
	timezone string
	l2       Persistent

	mu      sync.RWMutex
	byDate  map[string][]Fixture
	sfGroup singleflight.Group
}

func NewSource(fetcher Fetcher, timezone string) *Source {
	return &Source{
		fetcher:  fetcher,
		timezone: timezone,
		byDate:   make(map[string][]Fixture),
	}
}

// WithPersistent adds a second-level cache consulted on in-memory misses.
func (s *Source) WithPersistent(p Persistent) *Source {
	s.l2 = p
	return s
}

// ForDate returns every fixture on date (YYYY-MM-DD, local calendar).
// Provider failures are logged and yield an empty list; they are not cached.
func (s *Source) ForDate(ctx context.Context, date string) []Fixture {
	s.mu.RLock()
	list, ok := s.byDate[date]
	s.mu.RUnlock()
	if ok {
		telemetry.Metrics.CacheHits.Inc()
		return list
	}

	// The shared load outlives any single caller; the fetcher has its own
	// timeout. A caller whose context ends stops waiting and gets nothing.
	shared := context.WithoutCancel(ctx)
	ch := s.sfGroup.DoChan(date, func() (any, error) {
		return s.load(shared, date), nil
	})
	select {
	case res := <-ch:
		return res.Val.([]Fixture)
	case <-ctx.Done():
		return nil
	}
}

// Cached reports whether date is already in memory.
func (s *Source) Cached(date string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byDate[date]
	return ok
}

func (s *Source) load(ctx context.Context, date string) []Fixture {
	// A caller that lost the race to the lock may find the date already loaded.
	s.mu.RLock()
	list, ok := s.byDate[date]
	s.mu.RUnlock()
	if ok {
		telemetry.Metrics.CacheHits.Inc()
		return list
	}
	telemetry.Metrics.CacheMisses.Inc()

	if s.l2 != nil {
		cached, hit, err := s.l2.Get(ctx, date)
		if err != nil {
			telemetry.Warnf("fixtures: persistent cache get %s: %v", date, err)
		} else if hit {
			telemetry.Debugf("fixtures: %s served from persistent cache (%d fixtures)", date, len(cached))
			s.store(date, cached)
			return cached
		}
	}

	telemetry.Metrics.UpstreamFetches.Inc()
	list, err := s.fetcher.FixturesByDate(ctx, date, s.timezone)
	if err != nil {
		telemetry.Metrics.UpstreamErrors.Inc()
		telemetry.Warnf("fixtures: fetch %s failed: %v", date, err)
		return nil
	}
	if list == nil {
		list = []Fixture{}
	}
	s.store(date, list)
	telemetry.Infof("fixtures: fetched %d fixtures for %s", len(list), date)

	if s.l2 != nil {
		if err := s.l2.Set(ctx, date, list); err != nil {
			telemetry.Warnf("fixtures: persistent cache set %s: %v", date, err)
		}
	}
	return list
}

func (s *Source) store(date string, list []Fixture) {
	s.mu.Lock()
	s.byDate[date] = list
	s.mu.Unlock()
}
