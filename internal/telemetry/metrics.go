package telemetry

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type Counter struct {
	val atomic.Int64
}

func (c *Counter) Inc()         { c.val.Add(1) }
func (c *Counter) Add(n int64)  { c.val.Add(n) }
func (c *Counter) Value() int64 { return c.val.Load() }

type Gauge struct {
	val atomic.Int64
}

func (g *Gauge) Set(v int64)    { g.val.Store(v) }
func (g *Gauge) Inc()           { g.val.Add(1) }
func (g *Gauge) Dec()           { g.val.Add(-1) }
func (g *Gauge) Value() int64   { return g.val.Load() }

type LatencyTracker struct {
	mu      sync.Mutex
	samples []time.Duration
	maxKeep int
}

func NewLatencyTracker(maxKeep int) *LatencyTracker {
	return &LatencyTracker{maxKeep: maxKeep}
}

func (lt *LatencyTracker) Record(d time.Duration) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	lt.samples = append(lt.samples, d)
	if len(lt.samples) > lt.maxKeep {
		lt.samples = lt.samples[len(lt.samples)-lt.maxKeep:]
	}
}

func (lt *LatencyTracker) P50() time.Duration { return lt.percentile(0.50) }
func (lt *LatencyTracker) P99() time.Duration { return lt.percentile(0.99) }

func (lt *LatencyTracker) percentile(p float64) time.Duration {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	if len(lt.samples) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(lt.samples))
	copy(sorted, lt.samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

// Metrics is the global metrics registry.
var Metrics = struct {
	ResolveCalls    Counter
	ResolveOK       Counter
	ResolveNotFound Counter
	NeedsReview     Counter
	ParseErrors     Counter
	UpstreamFetches Counter
	UpstreamErrors  Counter
	CacheHits       Counter
	CacheMisses     Counter
	H2HCalls        Counter
	TieBreaks       Counter
	Suppressed      Counter
	ReviewClients   Gauge
	ResolveLatency  *LatencyTracker
	UpstreamLatency *LatencyTracker
	RateLimiterWait *LatencyTracker
}{
	ResolveLatency:  NewLatencyTracker(1000),
	UpstreamLatency: NewLatencyTracker(1000),
	RateLimiterWait: NewLatencyTracker(1000),
}

// Snapshot is a point-in-time copy of Metrics suitable for JSON output.
type Snapshot struct {
	ResolveCalls    int64  `json:"resolve_calls"`
	ResolveOK       int64  `json:"resolve_ok"`
	ResolveNotFound int64  `json:"resolve_not_found"`
	NeedsReview     int64  `json:"needs_review"`
	ParseErrors     int64  `json:"parse_errors"`
	UpstreamFetches int64  `json:"upstream_fetches"`
	UpstreamErrors  int64  `json:"upstream_errors"`
	CacheHits       int64  `json:"cache_hits"`
	CacheMisses     int64  `json:"cache_misses"`
	H2HCalls        int64  `json:"h2h_calls"`
	TieBreaks       int64  `json:"tie_breaks"`
	Suppressed      int64  `json:"suppressed_fixtures"`
	ReviewClients   int64  `json:"review_clients"`
	ResolveP50      string `json:"resolve_p50"`
	ResolveP99      string `json:"resolve_p99"`
	UpstreamP50     string `json:"upstream_p50"`
	UpstreamP99     string `json:"upstream_p99"`
	RateWaitP99     string `json:"rate_wait_p99"`
}

func TakeSnapshot() Snapshot {
	m := &Metrics
	return Snapshot{
		ResolveCalls:    m.ResolveCalls.Value(),
		ResolveOK:       m.ResolveOK.Value(),
		ResolveNotFound: m.ResolveNotFound.Value(),
		NeedsReview:     m.NeedsReview.Value(),
		ParseErrors:     m.ParseErrors.Value(),
		UpstreamFetches: m.UpstreamFetches.Value(),
		UpstreamErrors:  m.UpstreamErrors.Value(),
		CacheHits:       m.CacheHits.Value(),
		CacheMisses:     m.CacheMisses.Value(),
		H2HCalls:        m.H2HCalls.Value(),
		TieBreaks:       m.TieBreaks.Value(),
		Suppressed:      m.Suppressed.Value(),
		ReviewClients:   m.ReviewClients.Value(),
		ResolveP50:      m.ResolveLatency.P50().String(),
		ResolveP99:      m.ResolveLatency.P99().String(),
		UpstreamP50:     m.UpstreamLatency.P50().String(),
		UpstreamP99:     m.UpstreamLatency.P99().String(),
		RateWaitP99:     m.RateLimiterWait.P99().String(),
	}
}
