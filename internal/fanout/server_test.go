package fanout

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CMCFame/parseteamsapifb/internal/core/resolver"
	"github.com/CMCFame/parseteamsapifb/internal/events"
)

func httpHandler(s *Server) http.Handler {
	return http.HandlerFunc(s.HandleWS)
}

func publish(bus *events.Bus, res resolver.Result) {
	bus.Publish(events.NewResolution(events.OriginBatch, events.ResolutionEvent{Result: res}))
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readResult(t *testing.T, conn *websocket.Conn) resolver.Result {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	evt, err := UnmarshalEvent(msg)
	require.NoError(t, err)
	ev, ok := events.Resolution(evt)
	require.True(t, ok)
	assert.Equal(t, events.OriginBatch, evt.Origin)
	return ev.Result
}

func TestServerFansOutWithReviewFilter(t *testing.T) {
	bus := events.NewBus()
	s := NewServer(bus)
	srv := httptest.NewServer(httpHandler(s))
	defer srv.Close()

	all := dial(t, srv, "")
	review := dial(t, srv, "?only=review")
	require.Eventually(t, func() bool { return s.Clients() == 2 }, 2*time.Second, 10*time.Millisecond)

	publish(bus, resolver.Result{Status: resolver.StatusOK, Text: "clean", FixtureID: 1})
	publish(bus, resolver.Result{Status: resolver.StatusNotFound, Reason: resolver.ReasonNoCandidates, Text: "missing"})
	publish(bus, resolver.Result{Status: resolver.StatusOK, Text: "shaky", FixtureID: 2, NeedsReview: true})

	assert.Equal(t, "clean", readResult(t, all).Text)
	assert.Equal(t, "missing", readResult(t, all).Text)
	assert.Equal(t, "shaky", readResult(t, all).Text)

	assert.Equal(t, "missing", readResult(t, review).Text)
	got := readResult(t, review)
	assert.Equal(t, "shaky", got.Text)
	assert.True(t, got.NeedsReview)
}

func TestServerRemovesClosedClients(t *testing.T) {
	bus := events.NewBus()
	s := NewServer(bus)
	srv := httptest.NewServer(httpHandler(s))
	defer srv.Close()

	conn := dial(t, srv, "")
	require.Eventually(t, func() bool { return s.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return s.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestClientRepublishesOnLocalBus(t *testing.T) {
	remote := events.NewBus()
	s := NewServer(remote)
	srv := httptest.NewServer(httpHandler(s))
	defer srv.Close()

	local := events.NewBus()
	var mu sync.Mutex
	var texts []string
	local.Subscribe(events.EventResolution, func(e events.Event) error {
		ev, _ := events.Resolution(e)
		mu.Lock()
		texts = append(texts, ev.Result.Text)
		mu.Unlock()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := NewClient(strings.TrimPrefix(srv.URL, "http://"), true, local)
	done := make(chan struct{})
	go func() {
		c.ConnectWithRetry(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return s.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	publish(remote, resolver.Result{Status: resolver.StatusOK, Text: "clean"})
	publish(remote, resolver.Result{Status: resolver.StatusNotFound, Reason: resolver.ReasonUnparsable, Text: "garbage"})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(texts) == 1
	}, 2*time.Second, 10*time.Millisecond)
	mu.Lock()
	assert.Equal(t, []string{"garbage"}, texts)
	mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("client did not stop after cancel")
	}
}

func TestUnmarshalEventRejectsUnknownType(t *testing.T) {
	_, err := UnmarshalEvent([]byte(`{"type":"score_change","payload":{}}`))
	assert.Error(t, err)
	_, err = UnmarshalEvent([]byte(`not json`))
	assert.Error(t, err)
}
