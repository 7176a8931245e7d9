package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const (
	ColorRed    = 0xE74C3C
	ColorYellow = 0xF1C40F

	maxEmbedsPerPost = 10
)

// RateLimitedError is returned on HTTP 429; RetryAfter comes from the
// Retry-After header (seconds, may be fractional).
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("discord rate limited, retry after %s", e.RetryAfter)
}

// Notifier posts embeds to one Discord channel webhook.
type Notifier struct {
	webhookURL string
	httpClient *http.Client
}

func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *Notifier) Enabled() bool { return n.webhookURL != "" }

type Embed struct {
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Color       int     `json:"color,omitempty"`
	Fields      []Field `json:"fields,omitempty"`
	Timestamp   string  `json:"timestamp,omitempty"`
}

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type webhookPayload struct {
	Embeds []Embed `json:"embeds"`
}

// Post sends up to maxEmbedsPerPost embeds in one message. Missing
// timestamps are set to now.
func (n *Notifier) Post(ctx context.Context, embeds ...Embed) error {
	if !n.Enabled() || len(embeds) == 0 {
		return nil
	}
	if len(embeds) > maxEmbedsPerPost {
		return fmt.Errorf("discord: %d embeds, at most %d per post", len(embeds), maxEmbedsPerPost)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	for i := range embeds {
		if embeds[i].Timestamp == "" {
			embeds[i].Timestamp = now
		}
	}

	data, err := json.Marshal(webhookPayload{Embeds: embeds})
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitedError{RetryAfter: retryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode >= 300:
		return fmt.Errorf("discord webhook: status=%d", resp.StatusCode)
	}
	return nil
}

func retryAfter(h string) time.Duration {
	secs, err := strconv.ParseFloat(h, 64)
	if err != nil || secs <= 0 {
		return time.Second
	}
	return time.Duration(secs * float64(time.Second))
}

// IsRateLimited reports whether err is a 429 and for how long to back off.
func IsRateLimited(err error) (time.Duration, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}
