package teamname

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/unicode/norm"

	"github.com/CMCFame/parseteamsapifb/internal/config"
)

// maxExpansionPasses bounds the rewrite loop for a single rule.
const maxExpansionPasses = 8

// Normalizer canonicalizes team names through a fixed alias table and a list
// of whole-word abbreviation expansions. It is immutable after construction
// and safe for concurrent use.
type Normalizer struct {
	aliases    map[string]string
	expansions []config.ExpansionRule
}

// NewNormalizer cleans the table keys and verifies that every alias target and
// every expansion output is already canonical, which is what makes Normalize
// idempotent.
func NewNormalizer(aliases map[string]string, expansions []config.ExpansionRule) (*Normalizer, error) {
	n := &Normalizer{aliases: make(map[string]string, len(aliases))}

	for _, e := range expansions {
		from, to := Clean(e.From), Clean(e.To)
		if from == "" || to == "" {
			return nil, fmt.Errorf("expansion %q -> %q is empty after cleaning", e.From, e.To)
		}
		n.expansions = append(n.expansions, config.ExpansionRule{From: from, To: to})
	}

	for k, v := range aliases {
		key, target := Clean(k), Clean(v)
		if key == "" || target == "" {
			return nil, fmt.Errorf("alias %q -> %q is empty after cleaning", k, v)
		}
		if target != v {
			return nil, fmt.Errorf("alias target %q is not in canonical form (want %q)", v, target)
		}
		if prev, ok := n.aliases[key]; ok && prev != target {
			return nil, fmt.Errorf("alias %q maps to both %q and %q", key, prev, target)
		}
		n.aliases[key] = target
	}

	for _, e := range n.expansions {
		for _, other := range n.expansions {
			if containsWord(e.To, other.From) {
				return nil, fmt.Errorf("expansion output %q contains abbreviation %q", e.To, other.From)
			}
		}
	}
	for key, target := range n.aliases {
		if next, ok := n.aliases[target]; ok && next != target {
			return nil, fmt.Errorf("alias chain %q -> %q -> %q", key, target, next)
		}
		for _, e := range n.expansions {
			if containsWord(target, e.From) {
				return nil, fmt.Errorf("alias target %q contains abbreviation %q", target, e.From)
			}
		}
	}
	return n, nil
}

// Normalize lowercases, strips diacritics and punctuation, collapses
// whitespace, then resolves through the alias table and abbreviation list.
func (n *Normalizer) Normalize(s string) string {
	s = Clean(s)
	if s == "" {
		return ""
	}
	if canonical, ok := n.aliases[s]; ok {
		return canonical
	}
	for _, e := range n.expansions {
		s = replaceWord(s, e.From, e.To)
	}
	if canonical, ok := n.aliases[s]; ok {
		return canonical
	}
	return s
}

// Clean is the table-independent half of normalization: trim, lowercase,
// ASCII-fold, keep only [a-z0-9 .-], collapse whitespace.
func Clean(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	s = foldASCII(stripDiacritics(s))
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return collapseWhitespace(b.String())
}

func stripDiacritics(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range norm.NFD.String(s) {
		if !unicode.Is(unicode.Mn, r) { // Mn = Mark, Nonspacing (combining accents)
			b.WriteRune(r)
		}
	}
	return b.String()
}

// foldASCII transliterates what NFD cannot decompose (ø, ß, ł, æ).
func foldASCII(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return unidecode.Unidecode(s)
		}
	}
	return s
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func containsWord(s, word string) bool {
	return strings.Contains(" "+s+" ", " "+word+" ")
}

func replaceWord(s, from, to string) string {
	padded := " " + s + " "
	needle, repl := " "+from+" ", " "+to+" "
	for i := 0; i < maxExpansionPasses && strings.Contains(padded, needle); i++ {
		padded = strings.ReplaceAll(padded, needle, repl)
	}
	return strings.TrimSpace(padded)
}
