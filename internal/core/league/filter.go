package league

import (
	"fmt"
	"regexp"

	"github.com/CMCFame/parseteamsapifb/internal/config"
	"github.com/CMCFame/parseteamsapifb/internal/core/fixtures"
	"github.com/CMCFame/parseteamsapifb/internal/core/teamname"
)

// Suppression reasons reported in a Verdict.
const (
	ReasonBlockedLeague = "blocked_league"
	ReasonNotAllowed    = "league_not_allowed"
	ReasonYouthTeam     = "youth_team"
)

// Verdict is the outcome of checking one fixture.
type Verdict struct {
	Suppressed bool
	Reason     string
	Curated    bool
}

// Filter classifies leagues and teams as blocked, allowed or curated.
// Immutable once built.
type Filter struct {
	leagueBlock *regexp.Regexp
	teamBlock   *regexp.Regexp
	allowed     map[int]struct{}
	curated     map[int]struct{}
}

func NewFilter(t config.Tables) (*Filter, error) {
	f := &Filter{
		allowed: toSet(t.AllowedLeagues),
		curated: toSet(t.CuratedLeagues),
	}
	var err error
	if t.LeagueBlockPattern != "" {
		if f.leagueBlock, err = regexp.Compile(t.LeagueBlockPattern); err != nil {
			return nil, fmt.Errorf("league block pattern: %w", err)
		}
	}
	if t.TeamBlockPattern != "" {
		if f.teamBlock, err = regexp.Compile(t.TeamBlockPattern); err != nil {
			return nil, fmt.Errorf("team block pattern: %w", err)
		}
	}
	return f, nil
}

// BlockedLeague reports whether the league name looks like a youth, women's
// or reserve competition.
func (f *Filter) BlockedLeague(name string) bool {
	return f.leagueBlock != nil && f.leagueBlock.MatchString(name)
}

// Allowed is true for every id when no allow-list is configured.
func (f *Filter) Allowed(id int) bool {
	if len(f.allowed) == 0 {
		return true
	}
	_, ok := f.allowed[id]
	return ok
}

func (f *Filter) Curated(id int) bool {
	_, ok := f.curated[id]
	return ok
}

// YouthTeam reports whether a team name carries a youth/reserve marker
// (U20, Sub-23, II, Reserves, ...).
func (f *Filter) YouthTeam(name string) bool {
	return f.teamBlock != nil && f.teamBlock.MatchString(teamname.Clean(name))
}

func (f *Filter) Check(fx fixtures.Fixture) Verdict {
	switch {
	case f.BlockedLeague(fx.League.Name):
		return Verdict{Suppressed: true, Reason: ReasonBlockedLeague}
	case !f.Allowed(fx.League.ID):
		return Verdict{Suppressed: true, Reason: ReasonNotAllowed}
	case f.YouthTeam(fx.Home.Name) || f.YouthTeam(fx.Away.Name):
		return Verdict{Suppressed: true, Reason: ReasonYouthTeam}
	}
	return Verdict{Curated: f.Curated(fx.League.ID)}
}

func toSet(ids []int) map[int]struct{} {
	s := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}
