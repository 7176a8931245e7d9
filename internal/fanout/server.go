package fanout

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/CMCFame/parseteamsapifb/internal/events"
	"github.com/CMCFame/parseteamsapifb/internal/telemetry"
)

const (
	clientSendBuf = 256
	writeDeadline = 5 * time.Second
	pongWait      = 30 * time.Second
	pingInterval  = 20 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

type reviewClient struct {
	onlyReview bool
	conn       *websocket.Conn
	send       chan []byte
	done       chan struct{}
}

// Server fans out resolution events to connected reviewer WebSocket clients.
type Server struct {
	mu      sync.Mutex
	clients map[*reviewClient]struct{}
}

func NewServer(bus *events.Bus) *Server {
	s := &Server{
		clients: make(map[*reviewClient]struct{}),
	}
	bus.SubscribeNamed(events.EventResolution, "fanout", s.forward)
	return s
}

// forward is called on the publisher's goroutine. It serializes the event
// and enqueues it to matching clients' send channels (non-blocking).
func (s *Server) forward(evt events.Event) error {
	data, err := MarshalEvent(evt)
	if err != nil {
		telemetry.Warnf("fanout: marshal error: %v", err)
		return nil
	}
	flagged := needsAttention(evt)

	s.mu.Lock()
	defer s.mu.Unlock()

	for c := range s.clients {
		if c.onlyReview && !flagged {
			continue
		}
		select {
		case c.send <- data:
		default:
			telemetry.Warnf("fanout: dropping message for slow reviewer")
		}
	}
	return nil
}

// needsAttention is true for results a human should look at.
func needsAttention(evt events.Event) bool {
	ev, ok := events.Resolution(evt)
	if !ok {
		return false
	}
	return !ev.Result.OK() || ev.Result.NeedsReview
}

// HandleWS is the HTTP handler for WebSocket upgrade requests.
// Reviewers connect with ?only=review to receive flagged results only.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	onlyReview := r.URL.Query().Get("only") == "review"

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		telemetry.Warnf("fanout: upgrade failed: %v", err)
		return
	}

	c := &reviewClient{
		onlyReview: onlyReview,
		conn:       conn,
		send:       make(chan []byte, clientSendBuf),
		done:       make(chan struct{}),
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	telemetry.Metrics.ReviewClients.Inc()

	telemetry.Infof("fanout: reviewer connected from %s (only_review=%v)", r.RemoteAddr, onlyReview)

	go s.writePump(c)
	go s.readPump(c)
}

// Clients is the number of connected reviewers.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// writePump drains the client's send channel and writes to the WS connection.
// It owns the client lifecycle: on exit it removes the client from the map
// (so forward never sends to a stale channel) and closes the connection.
func (s *Server) writePump(c *reviewClient) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.removeClient(c)
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				telemetry.Warnf("fanout: write error: %v", err)
				return
			}
		case <-c.done:
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump keeps the connection alive by reading pongs / close frames.
// Reviewers send nothing upstream.
// On exit it signals writePump via c.done (never closes c.send).
func (s *Server) readPump(c *reviewClient) {
	defer close(c.done)

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
	}
}

func (s *Server) removeClient(c *reviewClient) {
	s.mu.Lock()
	_, present := s.clients[c]
	delete(s.clients, c)
	s.mu.Unlock()
	if present {
		telemetry.Metrics.ReviewClients.Dec()
		telemetry.Infof("fanout: reviewer disconnected")
	}
}
