package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// API-Football
	APIKey       string
	APIBaseURL   string
	RatePerSec   float64
	FetchTimeout time.Duration
	H2HTimeout   time.Duration

	// Resolver
	Timezone      string
	WindowMinutes int // 0 keeps the value from the tables
	TieBreak      bool
	Orientation   string // empty keeps the value from the tables
	TablesPath    string

	// Second-level fixture cache
	RedisURL string
	RedisTTL time.Duration

	// Audit store
	ResultsDBPath string

	// HTTP API / review feed
	HTTPHost string
	HTTPPort int

	// Review alerts; empty disables them
	DiscordWebhookURL string

	// Telemetry
	LogLevel string
	LogFile  string
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		// RAPIDAPI_KEY is the name the spreadsheets tooling always used.
		APIKey:       envStr("APIFOOTBALL_KEY", envStr("RAPIDAPI_KEY", "")),
		APIBaseURL:   envStr("APIFOOTBALL_BASE_URL", "https://v3.football.api-sports.io"),
		RatePerSec:   envFloat("PROVIDER_RATE_PER_SEC", 2),
		FetchTimeout: time.Duration(envInt("PROVIDER_TIMEOUT_SEC", 30)) * time.Second,
		H2HTimeout:   time.Duration(envInt("H2H_TIMEOUT_SEC", 10)) * time.Second,

		Timezone:      envStr("RESOLVER_TIMEZONE", "America/Mexico_City"),
		WindowMinutes: envInt("RESOLVER_WINDOW_MINUTES", 0),
		TieBreak:      envBool("RESOLVER_TIE_BREAK", false),
		Orientation:   envStr("RESOLVER_ORIENTATION", ""),
		TablesPath:    envStr("RESOLVER_TABLES_PATH", ""),

		RedisURL: envStr("REDIS_URL", ""),
		RedisTTL: time.Duration(envInt("REDIS_TTL_HOURS", 0)) * time.Hour,

		ResultsDBPath: envStr("RESULTS_DB_PATH", "data/resolutions.db"),

		HTTPHost: envStr("HTTP_HOST", "0.0.0.0"),
		HTTPPort: envInt("HTTP_PORT", 8787),

		DiscordWebhookURL: envStr("DISCORD_WEBHOOK_URL", ""),

		LogLevel: envStr("LOG_LEVEL", "info"),
		LogFile:  envStr("LOG_FILE", ""),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}
