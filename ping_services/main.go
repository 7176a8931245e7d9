// Ping API-Football (and optionally a running review feed) to measure
// network latency and show today's request quota.
//
// Usage:
//
//	go run ./ping_services                       # default: 10 requests
//	go run ./ping_services -n 30                 # 30 requests per endpoint
//	go run ./ping_services --ws localhost:8787   # also WebSocket ping/pong to the feed
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/CMCFame/parseteamsapifb/internal/adapters/outbound/apifootball_http"
	"github.com/CMCFame/parseteamsapifb/internal/config"
)

const httpTimeout = 10 * time.Second

func main() {
	n := flag.Int("n", 10, "number of requests per endpoint")
	wsAddr := flag.String("ws", "", "host:port of a running review feed to ping over WebSocket")
	flag.Parse()

	cfg := config.Load()

	pingProvider(cfg, *n)
	if *wsAddr != "" {
		pingFeed(*wsAddr, *n)
	}
	fmt.Println()
}

func pingProvider(cfg *config.Config, n int) {
	banner("API-FOOTBALL — " + cfg.APIBaseURL)

	// /status does not count against the daily quota.
	statusURL := strings.TrimRight(cfg.APIBaseURL, "/") + "/status"
	header := http.Header{"X-Apisports-Key": []string{cfg.APIKey}}

	fmt.Println("\n  Cold-start request (DNS + TLS + HTTP):")
	if ms, code, err := measureHTTP(statusURL, header, nil); err != nil {
		fmt.Printf("    FAILED — %v\n", err)
	} else {
		fmt.Printf("    %.1f ms  (HTTP %d)\n", ms, code)
	}

	fmt.Printf("\n  Warm HTTP latency (%d requests, keep-alive):\n", n)
	client := &http.Client{Timeout: httpTimeout}
	if _, _, err := measureHTTP(statusURL, header, client); err != nil {
		fmt.Printf("  [!] Warm-up request failed: %v\n", err)
		return
	}
	latencies := make([]float64, 0, n)
	pad := len(fmt.Sprintf("%d", n))
	for i := 1; i <= n; i++ {
		ms, code, err := measureHTTP(statusURL, header, client)
		if err != nil {
			fmt.Printf("  [%*d/%d]  FAILED — %v\n", pad, i, n, err)
			continue
		}
		latencies = append(latencies, ms)
		fmt.Printf("  [%*d/%d]  %7.1f ms  (HTTP %d)\n", pad, i, n, ms, code)
	}
	printStats(latencies, "API-Football HTTP")

	if cfg.APIKey == "" {
		fmt.Println("\n  [!] APIFOOTBALL_KEY not set, skipping quota check")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), httpTimeout)
	defer cancel()
	st, err := apifootball_http.NewClient(cfg.APIBaseURL, cfg.APIKey, 0, httpTimeout).Status(ctx)
	if err != nil {
		fmt.Printf("\n  [!] Quota check failed: %v\n", err)
		return
	}
	fmt.Printf("\n  Plan: %s (active=%v)  |  Requests today: %d / %d\n",
		st.Plan, st.Active, st.RequestsUsed, st.RequestsCap)
}

func pingFeed(addr string, n int) {
	wsURL := "ws://" + addr + "/ws"
	banner("REVIEW FEED — " + wsURL)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		fmt.Printf("  [!] WebSocket dial failed: %v\n", err)
		return
	}
	defer conn.Close()

	pongCh := make(chan struct{}, 1)
	conn.SetPongHandler(func(string) error {
		select {
		case pongCh <- struct{}{}:
		default:
		}
		return nil
	})

	// control frames are only processed while reading
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	fmt.Printf("\n  WebSocket ping/pong latency (%d pings):\n", n)
	latencies := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		start := time.Now()
		if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
			fmt.Printf("  [!] WS ping failed: %v\n", err)
			break
		}
		select {
		case <-pongCh:
			latencies = append(latencies, float64(time.Since(start).Microseconds())/1000)
		case <-time.After(5 * time.Second):
			fmt.Printf("  [!] WS pong timeout\n")
			printStats(latencies, "Review feed WebSocket")
			return
		}
	}
	printStats(latencies, "Review feed WebSocket")
}

func banner(title string) {
	fmt.Printf("\n%s\n", strings.Repeat("=", 55))
	fmt.Printf("  %s\n", title)
	fmt.Printf("%s\n", strings.Repeat("=", 55))
}

func measureHTTP(url string, header http.Header, client *http.Client) (ms float64, statusCode int, err error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return 0, 0, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	c := client
	if c == nil {
		c = &http.Client{Timeout: httpTimeout}
	}
	start := time.Now()
	resp, err := c.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	return float64(elapsed.Microseconds()) / 1000, resp.StatusCode, nil
}

func printStats(latencies []float64, label string) {
	if len(latencies) < 2 {
		fmt.Printf("\n  Not enough %s samples for statistics.\n", label)
		return
	}
	sorted := make([]float64, len(latencies))
	copy(sorted, latencies)
	sort.Float64s(sorted)

	mean := 0.0
	for _, v := range latencies {
		mean += v
	}
	mean /= float64(len(latencies))

	variance := 0.0
	for _, v := range latencies {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(latencies) - 1)

	pct := func(p float64) float64 {
		return sorted[min(int(float64(len(sorted))*p), len(sorted)-1)]
	}

	fmt.Printf("\n  --- %s Stats (%d samples) ---\n", label, len(latencies))
	fmt.Printf("  Min:    %7.1f ms\n", sorted[0])
	fmt.Printf("  Max:    %7.1f ms\n", sorted[len(sorted)-1])
	fmt.Printf("  Mean:   %7.1f ms\n", mean)
	fmt.Printf("  Median: %7.1f ms\n", sorted[len(sorted)/2])
	fmt.Printf("  Stdev:  %7.1f ms\n", math.Sqrt(variance))
	fmt.Printf("  p95:    %7.1f ms\n", pct(0.95))
	fmt.Printf("  p99:    %7.1f ms\n", pct(0.99))
}
