package matchtext

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// ErrUnparsable is wrapped by every Parse failure.
var ErrUnparsable = errors.New("unparsable match description")

var descriptionRe = regexp.MustCompile(`Fecha:\s*(\d+/\d+)\s*(\d+:\d+)?,\s*Partido:\s*(.+?)\s*vs\.?\s*(.+)`)

const (
	defaultHour   = 12
	defaultMinute = 0
)

// Description is one parsed line: the local kick-off instant and the two raw
// team texts in board order.
type Description struct {
	Text    string
	Kickoff time.Time // in the parser's Location
	HasTime bool
	TeamA   string
	TeamB   string
}

// Date is the local calendar date of the kick-off.
func (d Description) Date() string {
	return d.Kickoff.Format("2006-01-02")
}

// Parser turns "Fecha: M/D [HH:MM], Partido: A vs B" lines into Descriptions.
type Parser struct {
	Location *time.Location
	Now      func() time.Time
}

// NewParser builds a parser for the named IANA zone.
func NewParser(tz string) (*Parser, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	return &Parser{Location: loc, Now: time.Now}, nil
}

func (p *Parser) Parse(text string) (Description, error) {
	m := descriptionRe.FindStringSubmatch(text)
	if m == nil {
		return Description{}, fmt.Errorf("%w: %q", ErrUnparsable, text)
	}

	month, day, ok := splitPair(m[1], "/")
	if !ok {
		return Description{}, fmt.Errorf("%w: bad date %q", ErrUnparsable, m[1])
	}

	hour, minute, hasTime := defaultHour, defaultMinute, false
	if m[2] != "" {
		hour, minute, ok = splitPair(m[2], ":")
		if !ok || hour > 23 || minute > 59 {
			return Description{}, fmt.Errorf("%w: bad time %q", ErrUnparsable, m[2])
		}
		hasTime = true
	}

	teamA, teamB := strings.TrimSpace(m[3]), strings.TrimSpace(m[4])
	if teamA == "" || teamB == "" {
		return Description{}, fmt.Errorf("%w: missing team in %q", ErrUnparsable, text)
	}

	year := p.now().Year()
	kickoff, ok := p.localDate(year, month, day, hour, minute)
	if !ok {
		kickoff, ok = p.localDate(year-1, month, day, hour, minute)
	}
	if !ok {
		return Description{}, fmt.Errorf("%w: no valid year for %d/%d", ErrUnparsable, month, day)
	}

	return Description{
		Text:    text,
		Kickoff: kickoff,
		HasTime: hasTime,
		TeamA:   teamA,
		TeamB:   teamB,
	}, nil
}

// YearBefore returns d moved one calendar year back, keeping the wall clock.
// False when the month/day does not exist in that year.
func (p *Parser) YearBefore(d Description) (Description, bool) {
	k := d.Kickoff
	prev, ok := p.localDate(k.Year()-1, int(k.Month()), k.Day(), k.Hour(), k.Minute())
	if !ok {
		return Description{}, false
	}
	d.Kickoff = prev
	return d, true
}

// localDate rejects dates that time.Date would silently normalize (4/31, 2/29
// in a non-leap year).
func (p *Parser) localDate(year, month, day, hour, minute int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, p.location())
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func (p *Parser) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

func (p *Parser) now() time.Time {
	if p.Now == nil {
		return time.Now().In(p.location())
	}
	return p.Now().In(p.location())
}

func splitPair(s, sep string) (int, int, bool) {
	left, right, found := strings.Cut(s, sep)
	if !found {
		return 0, 0, false
	}
	a, err := strconv.Atoi(left)
	if err != nil {
		return 0, 0, false
	}
	b, err := strconv.Atoi(right)
	if err != nil {
		return 0, 0, false
	}
	return a, b, true
}
