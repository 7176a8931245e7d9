package config

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var defaultTablesData []byte

// ExpansionRule rewrites a whole-word abbreviation into its full form.
type ExpansionRule struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// PolicyConfig holds the scoring weights and thresholds of the ranker.
type PolicyConfig struct {
	WindowMinutes   int      `yaml:"window_minutes"`
	HomeWeight      float64  `yaml:"home_weight"`
	AwayWeight      float64  `yaml:"away_weight"`
	TimePenalty     float64  `yaml:"time_penalty"`
	BothHighMin     float64  `yaml:"both_high_min"`
	BothHighBonus   float64  `yaml:"both_high_bonus"`
	CuratedBonus    float64  `yaml:"curated_bonus"`
	TieEpsilon      float64  `yaml:"tie_epsilon"`
	Orientation     string   `yaml:"orientation"` // "strict" or "either"
	SwapFactor      float64  `yaml:"swap_factor"`
	ReviewThreshold float64  `yaml:"review_threshold"`
	MinScore        *float64 `yaml:"min_score"` // nil disables the floor
}

// Tables is the curated, read-only matching data: aliases, abbreviations,
// stopwords, league and team filters, and the scoring policy.
type Tables struct {
	Aliases            map[string]string `yaml:"aliases"`
	Expansions         []ExpansionRule   `yaml:"expansions"`
	Stopwords          []string          `yaml:"stopwords"`
	LeagueBlockPattern string            `yaml:"league_block_pattern"`
	TeamBlockPattern   string            `yaml:"team_block_pattern"`
	AllowedLeagues     []int             `yaml:"allowed_leagues"`
	CuratedLeagues     []int             `yaml:"curated_leagues"`
	Policy             PolicyConfig      `yaml:"policy"`
}

// DefaultTables returns the embedded tables.
func DefaultTables() (Tables, error) {
	return parseTables(defaultTablesData)
}

// LoadTables reads tables from path, or the embedded defaults when path is empty.
func LoadTables(path string) (Tables, error) {
	if path == "" {
		return DefaultTables()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Tables{}, fmt.Errorf("read tables: %w", err)
	}
	return parseTables(data)
}

func parseTables(data []byte) (Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tables{}, fmt.Errorf("parse tables: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Tables{}, err
	}
	return t, nil
}

// Validate checks the parts of the tables that do not need the normalizer.
// Alias/expansion fixed-point checks live in teamname.NewNormalizer.
func (t Tables) Validate() error {
	if _, err := regexp.Compile(t.LeagueBlockPattern); err != nil {
		return fmt.Errorf("league_block_pattern: %w", err)
	}
	if _, err := regexp.Compile(t.TeamBlockPattern); err != nil {
		return fmt.Errorf("team_block_pattern: %w", err)
	}
	for i, e := range t.Expansions {
		if e.From == "" || e.To == "" {
			return fmt.Errorf("expansions[%d]: from and to are required", i)
		}
	}
	p := t.Policy
	if p.WindowMinutes <= 0 {
		return fmt.Errorf("policy.window_minutes must be positive, got %d", p.WindowMinutes)
	}
	switch p.Orientation {
	case "", "strict", "either":
	default:
		return fmt.Errorf("policy.orientation must be strict or either, got %q", p.Orientation)
	}
	if p.TieEpsilon < 0 {
		return fmt.Errorf("policy.tie_epsilon must not be negative")
	}
	if p.SwapFactor < 0 || p.SwapFactor > 1 {
		return fmt.Errorf("policy.swap_factor must be within [0,1], got %v", p.SwapFactor)
	}
	return nil
}
