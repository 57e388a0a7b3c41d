package aligner

import (
	"github.com/texttheater/golang-levenshtein/levenshtein"
)

var unitCost = levenshtein.Options{
	InsCost: 1,
	DelCost: 1,
	SubCost: 1,
	Matches: levenshtein.IdenticalRunes,
}

// Distance returns the unit-cost edit distance between ref and hyp without
// building an alignment. Tokens are interned to runes so any comparable
// token type can be fed to the rune-based levenshtein implementation.
func Distance[T comparable](ref, hyp []T) int {
	if len(ref) == 0 {
		return len(hyp)
	}
	if len(hyp) == 0 {
		return len(ref)
	}

	ids := make(map[T]rune, len(ref)+len(hyp))
	return levenshtein.DistanceForStrings(intern(ids, ref), intern(ids, hyp), unitCost)
}

func intern[T comparable](ids map[T]rune, tokens []T) []rune {
	out := make([]rune, len(tokens))
	for i, tok := range tokens {
		id, ok := ids[tok]
		if !ok {
			id = rune(len(ids))
			ids[tok] = id
		}
		out[i] = id
	}
	return out
}
