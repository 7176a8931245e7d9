package teamname

import (
	"slices"
	"strings"
)

const (
	firstTokenBonus = 0.2
	substringBonus  = 0.1
	// Tokens must be longer than this to earn the substring bonus.
	substringMinLen = 3
)

// DefaultStopwords are dropped by a Tokenizer built with no explicit list.
var DefaultStopwords = []string{"cf", "fc", "ac", "bk", "if", "club", "de", "del", "la", "el", "los", "las"}

// TokenSet is a sorted, de-duplicated list of significant tokens.
type TokenSet []string

// Tokenizer splits normalized names into TokenSets.
type Tokenizer struct {
	stop map[string]struct{}
}

func NewTokenizer(stopwords []string) *Tokenizer {
	if len(stopwords) == 0 {
		stopwords = DefaultStopwords
	}
	stop := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		stop[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return &Tokenizer{stop: stop}
}

// Tokenize splits on whitespace, '.' and '-', dropping one-character tokens
// and stopwords.
func (t *Tokenizer) Tokenize(normalized string) TokenSet {
	fields := strings.FieldsFunc(normalized, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '.' || r == '-'
	})
	out := make(TokenSet, 0, len(fields))
	for _, f := range fields {
		if len(f) <= 1 {
			continue
		}
		if _, ok := t.stop[f]; ok {
			continue
		}
		out = append(out, f)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Similarity tokenizes both names and scores them.
func (t *Tokenizer) Similarity(a, b string) float64 {
	return Score(t.Tokenize(a), t.Tokenize(b))
}

// Score is the Jaccard index of a and b plus the first-token and substring
// bonuses, clamped to [0,1]. Empty sets score 0.
func Score(a, b TokenSet) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	inter := 0
	for _, tok := range a {
		if b.Contains(tok) {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	score := float64(inter) / float64(union)

	ra, rb := a.Representative(), b.Representative()
	if ra == rb || strings.HasPrefix(ra, rb) || strings.HasPrefix(rb, ra) {
		score += firstTokenBonus
	}
	if hasSubstringOverlap(a, b) {
		score += substringBonus
	}

	return min(max(score, 0), 1)
}

// Contains reports whether tok is in the set.
func (s TokenSet) Contains(tok string) bool {
	_, found := slices.BinarySearch(s, tok)
	return found
}

// Representative is the shortest token, ties broken lexicographically.
func (s TokenSet) Representative() string {
	if len(s) == 0 {
		return ""
	}
	best := s[0]
	for _, tok := range s[1:] {
		if len(tok) < len(best) {
			best = tok
		}
	}
	return best
}

func hasSubstringOverlap(a, b TokenSet) bool {
	for _, ta := range a {
		if len(ta) <= substringMinLen {
			continue
		}
		for _, tb := range b {
			if len(tb) <= substringMinLen {
				continue
			}
			if strings.Contains(ta, tb) || strings.Contains(tb, ta) {
				return true
			}
		}
	}
	return false
}
