package discord

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/CMCFame/parseteamsapifb/internal/events"
	"github.com/CMCFame/parseteamsapifb/internal/telemetry"
)

const (
	alertQueueSize = 256
	// Discord allows roughly five webhook posts per two seconds.
	alertRate  = 2.5
	alertBurst = 5
)

type alert struct {
	origin events.Origin
	ev     events.ResolutionEvent
}

// ReviewAlerts posts every result that needs a human look to a Discord
// channel. The bus handler only enqueues; one worker does the HTTP calls,
// packing queued alerts into a single post.
type ReviewAlerts struct {
	notifier *Notifier
	limiter  *rate.Limiter

	mu     sync.Mutex
	closed bool
	queue  chan alert
	done   chan struct{}
	cancel context.CancelFunc
}

func NewReviewAlerts(n *Notifier) *ReviewAlerts {
	ctx, cancel := context.WithCancel(context.Background())
	a := &ReviewAlerts{
		notifier: n,
		limiter:  rate.NewLimiter(alertRate, alertBurst),
		queue:    make(chan alert, alertQueueSize),
		done:     make(chan struct{}),
		cancel:   cancel,
	}
	go a.run(ctx)
	return a
}

func (a *ReviewAlerts) Subscribe(bus *events.Bus) {
	bus.SubscribeNamed(events.EventResolution, "discord", func(e events.Event) error {
		ev, ok := events.Resolution(e)
		if !ok || (ev.Result.OK() && !ev.Result.NeedsReview) {
			return nil
		}
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.closed {
			return nil
		}
		select {
		case a.queue <- alert{origin: e.Origin, ev: ev}:
		default:
			telemetry.Warnf("discord: alert queue full, dropping %q", ev.Result.Text)
		}
		return nil
	})
}

func (a *ReviewAlerts) run(ctx context.Context) {
	defer close(a.done)
	for al := range a.queue {
		embeds := []Embed{reviewEmbed(al)}
	drain:
		for len(embeds) < maxEmbedsPerPost {
			select {
			case more, ok := <-a.queue:
				if !ok {
					break drain
				}
				embeds = append(embeds, reviewEmbed(more))
			default:
				break drain
			}
		}
		if err := a.limiter.Wait(ctx); err != nil {
			return
		}
		a.post(ctx, embeds)
	}
}

// post retries once after a 429.
func (a *ReviewAlerts) post(ctx context.Context, embeds []Embed) {
	for attempt := 0; attempt < 2; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := a.notifier.Post(sendCtx, embeds...)
		cancel()
		if err == nil {
			return
		}
		wait, limited := IsRateLimited(err)
		if !limited || attempt == 1 {
			telemetry.Warnf("discord: dropping %d alerts: %v", len(embeds), err)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// Close stops accepting alerts and waits up to timeout for queued ones to
// be delivered.
func (a *ReviewAlerts) Close(timeout time.Duration) {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
	case <-time.After(timeout):
		telemetry.Warnf("discord: %d alerts undelivered at shutdown", len(a.queue))
	}
	a.cancel()
}

func reviewEmbed(al alert) Embed {
	res := al.ev.Result
	origin := string(al.origin)
	if al.ev.Batch != "" {
		origin = fmt.Sprintf("%s %s row %d", al.origin, al.ev.Batch, al.ev.Row)
	}

	if !res.OK() {
		return Embed{
			Title:       fmt.Sprintf("Fixture not found (%s)", res.Reason),
			Description: res.Text,
			Color:       ColorRed,
			Fields:      []Field{{Name: "Origin", Value: origin, Inline: true}},
		}
	}

	score := "-"
	if res.Debug != nil {
		score = fmt.Sprintf("%.3f", res.Debug.Score)
		if res.Debug.TieBreak != "" {
			score += " (tie " + res.Debug.TieBreak + ")"
		}
	}
	return Embed{
		Title:       "Match needs review",
		Description: res.Text,
		Color:       ColorYellow,
		Fields: []Field{
			{Name: "Fixture", Value: fmt.Sprintf("%d", res.FixtureID), Inline: true},
			{Name: "League", Value: res.LeagueName, Inline: true},
			{Name: "Kick-off", Value: res.Kickoff, Inline: true},
			{Name: "Home", Value: fmt.Sprintf("%s (%d)", res.HomeName, res.HomeID), Inline: true},
			{Name: "Away", Value: fmt.Sprintf("%s (%d)", res.AwayName, res.AwayID), Inline: true},
			{Name: "Score", Value: score, Inline: true},
			{Name: "Origin", Value: origin, Inline: false},
		},
	}
}
