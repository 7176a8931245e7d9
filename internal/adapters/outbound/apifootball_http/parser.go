package apifootball_http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/CMCFame/parseteamsapifb/internal/core/fixtures"
	"github.com/CMCFame/parseteamsapifb/internal/telemetry"
)

// --- JSON response parsing ---

type afResponse struct {
	Errors   json.RawMessage `json:"errors"`
	Results  int             `json:"results"`
	Response []afFixture     `json:"response"`
}

type afFixture struct {
	Fixture struct {
		ID     int    `json:"id"`
		Date   string `json:"date"`
		Status struct {
			Short string `json:"short"`
		} `json:"status"`
	} `json:"fixture"`
	League struct {
		ID      int    `json:"id"`
		Name    string `json:"name"`
		Country string `json:"country"`
		Season  int    `json:"season"`
	} `json:"league"`
	Teams struct {
		Home afTeam `json:"home"`
		Away afTeam `json:"away"`
	} `json:"teams"`
}

type afTeam struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func parseFixtures(data []byte) ([]fixtures.Fixture, error) {
	var top afResponse
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: parse: %v", fixtures.ErrUpstream, err)
	}
	if hasErrors(top.Errors) {
		return nil, fmt.Errorf("%w: provider errors: %s", fixtures.ErrUpstream, string(top.Errors))
	}

	out := make([]fixtures.Fixture, 0, len(top.Response))
	for _, r := range top.Response {
		kickoff, err := parseKickoff(r.Fixture.Date)
		if err != nil || r.Fixture.ID == 0 {
			telemetry.Warnf("apifootball_http: skipping malformed fixture %d (date %q)", r.Fixture.ID, r.Fixture.Date)
			continue
		}
		out = append(out, fixtures.Fixture{
			ID:      r.Fixture.ID,
			Kickoff: kickoff,
			Status:  r.Fixture.Status.Short,
			League: fixtures.League{
				ID:      r.League.ID,
				Name:    r.League.Name,
				Country: r.League.Country,
				Season:  r.League.Season,
			},
			Home: fixtures.Team{ID: r.Teams.Home.ID, Name: r.Teams.Home.Name},
			Away: fixtures.Team{ID: r.Teams.Away.ID, Name: r.Teams.Away.Name},
		})
	}
	return out, nil
}

// hasErrors treats "", null, [] and {} as no error. The provider sends an
// empty array on success and an object keyed by field on failure.
func hasErrors(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	switch string(trimmed) {
	case "", "null", "[]", "{}":
		return false
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(trimmed, &arr); err == nil {
		return len(arr) > 0
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err == nil {
		return len(obj) > 0
	}
	return true
}

// parseKickoff accepts RFC3339 with an offset or a trailing Z.
func parseKickoff(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

type afStatus struct {
	Subscription struct {
		Plan   string `json:"plan"`
		Active bool   `json:"active"`
	} `json:"subscription"`
	Requests struct {
		Current  int `json:"current"`
		LimitDay int `json:"limit_day"`
	} `json:"requests"`
}

// parseStatus checks errors before decoding the response, which the
// provider sends as [] when the key is rejected.
func parseStatus(data []byte) (AccountStatus, error) {
	var top struct {
		Errors   json.RawMessage `json:"errors"`
		Response json.RawMessage `json:"response"`
	}
	if err := json.Unmarshal(data, &top); err != nil {
		return AccountStatus{}, fmt.Errorf("%w: parse status: %v", fixtures.ErrUpstream, err)
	}
	if hasErrors(top.Errors) {
		return AccountStatus{}, fmt.Errorf("%w: provider errors: %s", fixtures.ErrUpstream, string(top.Errors))
	}
	var st afStatus
	if err := json.Unmarshal(top.Response, &st); err != nil {
		return AccountStatus{}, fmt.Errorf("%w: parse status: %v", fixtures.ErrUpstream, err)
	}
	return AccountStatus{
		Plan:         st.Subscription.Plan,
		Active:       st.Subscription.Active,
		RequestsUsed: st.Requests.Current,
		RequestsCap:  st.Requests.LimitDay,
	}, nil
}
