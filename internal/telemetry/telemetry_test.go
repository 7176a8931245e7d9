package telemetry

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLatencyTracker(t *testing.T) {
	lt := NewLatencyTracker(3)
	assert.Equal(t, time.Duration(0), lt.P99())

	for _, ms := range []int{100, 1, 2, 3} {
		lt.Record(time.Duration(ms) * time.Millisecond)
	}
	// only the last three samples are kept
	assert.Equal(t, 2*time.Millisecond, lt.P50())
	assert.Equal(t, 2*time.Millisecond, lt.P99())
}

func TestCounterAndGauge(t *testing.T) {
	var c Counter
	c.Inc()
	c.Add(4)
	assert.Equal(t, int64(5), c.Value())

	var g Gauge
	g.Inc()
	g.Inc()
	g.Dec()
	assert.Equal(t, int64(1), g.Value())
	g.Set(7)
	assert.Equal(t, int64(7), g.Value())
}

func TestPrettyHandlerLevels(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, slog.LevelInfo)
	defer Init(slog.LevelInfo)

	Debugf("hidden %d", 1)
	Infof("resolved %d", 1001)
	Warnf("needs review")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "] resolved 1001")
	assert.Contains(t, out, "WARN: needs review")
	assert.Equal(t, 2, strings.Count(out, "\n"))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLogLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLogLevel("nonsense"))
}

func TestSnapshotReflectsMetrics(t *testing.T) {
	before := TakeSnapshot().CacheHits
	Metrics.CacheHits.Inc()
	assert.Equal(t, before+1, TakeSnapshot().CacheHits)
}
