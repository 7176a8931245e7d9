package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/CMCFame/parseteamsapifb/internal/adapters/outbound/apifootball_http"
	"github.com/CMCFame/parseteamsapifb/internal/adapters/outbound/discord"
	"github.com/CMCFame/parseteamsapifb/internal/adapters/outbound/redis_cache"
	"github.com/CMCFame/parseteamsapifb/internal/adapters/outbound/result_store"
	"github.com/CMCFame/parseteamsapifb/internal/config"
	"github.com/CMCFame/parseteamsapifb/internal/core/fixtures"
	"github.com/CMCFame/parseteamsapifb/internal/core/league"
	"github.com/CMCFame/parseteamsapifb/internal/core/matchtext"
	"github.com/CMCFame/parseteamsapifb/internal/core/ranking"
	"github.com/CMCFame/parseteamsapifb/internal/core/resolver"
	"github.com/CMCFame/parseteamsapifb/internal/core/teamname"
	"github.com/CMCFame/parseteamsapifb/internal/events"
	"github.com/CMCFame/parseteamsapifb/internal/fanout"
	"github.com/CMCFame/parseteamsapifb/internal/telemetry"
)

// StoreDisabled turns the audit store off when used as RESULTS_DB_PATH.
const StoreDisabled = "off"

// App holds the wired resolver and the infrastructure around it. Every
// entry point (one-shot, batch, HTTP) builds one and closes it on exit.
type App struct {
	Config   *config.Config
	Tables   config.Tables
	Policy   ranking.Policy
	Parser   *matchtext.Parser
	Source   *fixtures.Source
	Resolver *resolver.Resolver
	Bus      *events.Bus
	Store    *result_store.Store // nil when disabled
	Feed     *fanout.Server
	Alerts   *discord.ReviewAlerts // nil when no webhook is configured

	cache *redis_cache.FixtureCache
}

// Build wires every component from cfg. Optional pieces (Redis, the
// audit store) are skipped with a warning when they cannot be opened.
func Build(cfg *config.Config) (*App, error) {
	tables, err := config.LoadTables(cfg.TablesPath)
	if err != nil {
		return nil, err
	}

	normalizer, err := teamname.NewNormalizer(tables.Aliases, tables.Expansions)
	if err != nil {
		return nil, fmt.Errorf("normalizer: %w", err)
	}
	tokenizer := teamname.NewTokenizer(tables.Stopwords)
	filter, err := league.NewFilter(tables)
	if err != nil {
		return nil, fmt.Errorf("league filter: %w", err)
	}

	policy, err := policyFor(cfg, tables)
	if err != nil {
		return nil, err
	}

	parser, err := matchtext.NewParser(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	if cfg.APIKey == "" {
		telemetry.Warnf("APIFOOTBALL_KEY is empty; provider calls will be rejected")
	}
	client := apifootball_http.NewClient(cfg.APIBaseURL, cfg.APIKey, cfg.RatePerSec, cfg.FetchTimeout)

	a := &App{
		Config: cfg,
		Tables: tables,
		Policy: policy,
		Parser: parser,
		Bus:    events.NewBus(),
	}

	// ── Fixture source (L1 in-process, optional L2 Redis) ─────
	a.Source = fixtures.NewSource(client, cfg.Timezone)
	if cfg.RedisURL != "" {
		cache, err := redis_cache.Open(cfg.RedisURL, "", cfg.RedisTTL)
		if err != nil {
			telemetry.Warnf("Redis cache disabled: %v", err)
		} else {
			a.cache = cache
			a.Source.WithPersistent(cache)
			telemetry.Infof("Redis fixture cache on (ttl=%s)", cfg.RedisTTL)
		}
	}

	ranker := ranking.NewRanker(policy, filter, normalizer, tokenizer)
	if policy.TieBreak {
		ranker.WithHeadToHead(client, cfg.H2HTimeout)
	}
	a.Resolver = resolver.New(parser, normalizer, a.Source, ranker)

	// ── Audit store + review feed ──────────────────────────────
	if path := cfg.ResultsDBPath; path != "" && !strings.EqualFold(path, StoreDisabled) {
		store, err := result_store.Open(path)
		if err != nil {
			telemetry.Warnf("Result store disabled: %v", err)
		} else {
			a.Store = store
			store.Subscribe(a.Bus)
		}
	}
	a.Feed = fanout.NewServer(a.Bus)

	if cfg.DiscordWebhookURL != "" {
		a.Alerts = discord.NewReviewAlerts(discord.NewNotifier(cfg.DiscordWebhookURL))
		a.Alerts.Subscribe(a.Bus)
		telemetry.Infof("Discord review alerts on")
	}

	telemetry.Infof("Resolver ready  tz=%s  window=%dm  orientation=%s  tie_break=%v  aliases=%d",
		cfg.Timezone, policy.WindowMinutes, policy.Orientation, policy.TieBreak, len(tables.Aliases))
	return a, nil
}

// policyFor applies the environment and flag overrides on top of the tables.
func policyFor(cfg *config.Config, tables config.Tables) (ranking.Policy, error) {
	policy := ranking.PolicyFrom(tables.Policy)
	if cfg.WindowMinutes < 0 {
		return ranking.Policy{}, fmt.Errorf("window %d minutes: must not be negative", cfg.WindowMinutes)
	}
	if cfg.WindowMinutes > 0 {
		policy.WindowMinutes = cfg.WindowMinutes
	}
	if cfg.Orientation != "" {
		switch cfg.Orientation {
		case ranking.OrientationStrict, ranking.OrientationEither:
			policy.Orientation = cfg.Orientation
		default:
			return ranking.Policy{}, fmt.Errorf("orientation %q: want %q or %q",
				cfg.Orientation, ranking.OrientationStrict, ranking.OrientationEither)
		}
	}
	policy.TieBreak = cfg.TieBreak
	return policy, nil
}

// Close flushes pending alerts and releases the optional stores.
func (a *App) Close() {
	if a.Alerts != nil {
		a.Alerts.Close(5 * time.Second)
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			telemetry.Warnf("close result store: %v", err)
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			telemetry.Warnf("close redis: %v", err)
		}
	}
}
