package discord

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CMCFame/parseteamsapifb/internal/core/resolver"
	"github.com/CMCFame/parseteamsapifb/internal/events"
)

type hook struct {
	mu     sync.Mutex
	embeds []Embed
	posts  int
}

func (h *hook) handler(w http.ResponseWriter, r *http.Request) {
	var p webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	h.mu.Lock()
	h.embeds = append(h.embeds, p.Embeds...)
	h.posts++
	h.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (h *hook) titles() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.embeds))
	for i, e := range h.embeds {
		out[i] = e.Title
	}
	return out
}

func TestPostSetsTimestamp(t *testing.T) {
	h := &hook{}
	srv := httptest.NewServer(http.HandlerFunc(h.handler))
	defer srv.Close()

	require.NoError(t, NewNotifier(srv.URL).Post(context.Background(), Embed{Title: "x"}))
	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.embeds, 1)
	assert.NotEmpty(t, h.embeds[0].Timestamp)
}

func TestPostDisabledAndLimits(t *testing.T) {
	n := NewNotifier("")
	assert.False(t, n.Enabled())
	assert.NoError(t, n.Post(context.Background(), Embed{Title: "ignored"}))

	n = NewNotifier("http://127.0.0.1:1")
	assert.Error(t, n.Post(context.Background(), make([]Embed, maxEmbedsPerPost+1)...))
}

func TestPostRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "0.25")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewNotifier(srv.URL).Post(context.Background(), Embed{Title: "x"})
	wait, ok := IsRateLimited(err)
	require.True(t, ok)
	assert.Equal(t, 250*time.Millisecond, wait)

	_, ok = IsRateLimited(assert.AnError)
	assert.False(t, ok)
	assert.Equal(t, time.Second, retryAfter(""))
}

func TestReviewAlertsOnlyFlaggedResults(t *testing.T) {
	h := &hook{}
	srv := httptest.NewServer(http.HandlerFunc(h.handler))
	defer srv.Close()

	bus := events.NewBus()
	alerts := NewReviewAlerts(NewNotifier(srv.URL))
	alerts.Subscribe(bus)

	publish := func(res resolver.Result) {
		bus.Publish(events.NewResolution(events.OriginBatch, events.ResolutionEvent{Result: res, Row: 3, Batch: "nightly"}))
	}
	publish(resolver.Result{Status: resolver.StatusOK, FixtureID: 1})
	publish(resolver.Result{Status: resolver.StatusNotFound, Reason: resolver.ReasonNoCandidates, Text: "missing"})
	publish(resolver.Result{Status: resolver.StatusOK, FixtureID: 2, NeedsReview: true,
		Debug: &resolver.Debug{Score: 0.42, TieBreak: "unresolved"}})

	alerts.Close(2 * time.Second)

	assert.ElementsMatch(t, []string{"Fixture not found (no_candidates_in_window)", "Match needs review"}, h.titles())

	// after Close further events are ignored
	publish(resolver.Result{Status: resolver.StatusNotFound, Reason: resolver.ReasonUnparsable})
	assert.Len(t, h.titles(), 2)
}

func TestReviewAlertsRetriesAfter429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0.05")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	bus := events.NewBus()
	alerts := NewReviewAlerts(NewNotifier(srv.URL))
	alerts.Subscribe(bus)
	bus.Publish(events.NewResolution(events.OriginHTTP, events.ResolutionEvent{
		Result: resolver.Result{Status: resolver.StatusNotFound, Reason: resolver.ReasonUnparsable},
	}))
	alerts.Close(2 * time.Second)

	assert.Equal(t, int32(2), calls.Load())
}

func TestReviewEmbed(t *testing.T) {
	e := reviewEmbed(alert{
		origin: events.OriginBatch,
		ev: events.ResolutionEvent{Batch: "abril", Row: 7, Result: resolver.Result{
			Status: resolver.StatusOK, Text: "Fecha: 4/5, Partido: America vs Pachuca",
			FixtureID: 1001, HomeName: "Club America", HomeID: 2287, AwayName: "Pachuca", AwayID: 2292,
			NeedsReview: true, Debug: &resolver.Debug{Score: 0.4567, TieBreak: "unresolved"},
		}},
	})
	assert.Equal(t, ColorYellow, e.Color)
	fields := map[string]string{}
	for _, f := range e.Fields {
		fields[f.Name] = f.Value
	}
	assert.Equal(t, "1001", fields["Fixture"])
	assert.Equal(t, "Club America (2287)", fields["Home"])
	assert.Equal(t, "0.457 (tie unresolved)", fields["Score"])
	assert.Equal(t, "batch abril row 7", fields["Origin"])
}
