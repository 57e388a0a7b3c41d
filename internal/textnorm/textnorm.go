// Package textnorm holds the caller-side normalization policies applied to
// transcripts before they reach the engine. The engine compares tokens
// exactly as given; choosing a policy here is how a caller opts into
// case-insensitive or punctuation-insensitive scoring.
package textnorm

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Policy names.
const (
	None     = "none"
	Lower    = "lower"
	Standard = "standard"
)

// Func normalizes one text.
type Func func(string) string

var policies = map[string]Func{
	None:     func(s string) string { return s },
	Lower:    lower,
	Standard: standard,
}

// Lookup returns the policy registered under name. An empty name is None.
func Lookup(name string) (Func, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = None
	}
	fn, ok := policies[key]
	if !ok {
		return nil, fmt.Errorf("unknown normalization policy %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return fn, nil
}

// Names lists the registered policies.
func Names() []string {
	names := make([]string, 0, len(policies))
	for name := range policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lower(s string) string {
	return cases.Lower(language.Und).String(s)
}

// standard applies NFKC, full case folding, drops punctuation and collapses
// whitespace. Apostrophes inside words are kept so contractions stay one
// token.
func standard(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range runes {
		switch {
		case r == '\'' || r == '’':
			if i > 0 && i < len(runes)-1 && unicode.IsLetter(runes[i-1]) && unicode.IsLetter(runes[i+1]) {
				b.WriteRune('\'')
			} else {
				b.WriteRune(' ')
			}
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
