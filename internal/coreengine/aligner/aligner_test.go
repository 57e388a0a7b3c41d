package aligner

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(s ...string) []string { return s }

func kinds[T comparable](a Alignment[T]) []OpKind {
	out := make([]OpKind, len(a.Ops))
	for i, op := range a.Ops {
		out[i] = op.Kind
	}
	return out
}

func TestAlignEdgeCases(t *testing.T) {
	t.Run("both_empty", func(t *testing.T) {
		a := Align([]string{}, []string{})
		assert.Empty(t, a.Ops)
		assert.Equal(t, 0, a.Cost())
	})

	t.Run("empty_reference", func(t *testing.T) {
		a := Align(nil, words("a", "b"))
		assert.Equal(t, []OpKind{Insertion, Insertion}, kinds(a))
		assert.Equal(t, NoIndex, a.Ops[0].RefIndex)
		assert.Equal(t, 0, a.Ops[0].HypIndex)
		assert.Equal(t, 1, a.Ops[1].HypIndex)
		assert.Equal(t, 2, a.Cost())
	})

	t.Run("empty_hypothesis", func(t *testing.T) {
		a := Align(words("a", "b", "c"), nil)
		assert.Equal(t, []OpKind{Deletion, Deletion, Deletion}, kinds(a))
		assert.Equal(t, NoIndex, a.Ops[2].HypIndex)
		assert.Equal(t, 3, a.Cost())
	})
}

func TestAlignSubstitution(t *testing.T) {
	a := Align(words("a", "b", "c"), words("a", "x", "c"))
	require.Equal(t, []OpKind{Match, Substitution, Match}, kinds(a))
	assert.Equal(t, "b", a.Ops[1].Ref)
	assert.Equal(t, "x", a.Ops[1].Hyp)
	assert.Equal(t, 1, a.Cost())
}

func TestAlignTieBreak(t *testing.T) {
	tests := []struct {
		name string
		ref  []string
		hyp  []string
		want []OpKind
	}{
		{
			// delete "a" + insert "c" costs the same as two substitutions
			name: "substitution_before_delete_insert",
			ref:  words("a", "b"),
			hyp:  words("b", "c"),
			want: []OpKind{Substitution, Substitution},
		},
		{
			name: "match_taken_at_latest_position",
			ref:  words("a"),
			hyp:  words("a", "a"),
			want: []OpKind{Insertion, Match},
		},
		{
			name: "substitution_kept_at_the_end",
			ref:  words("a", "b"),
			hyp:  words("c"),
			want: []OpKind{Deletion, Substitution},
		},
		{
			name: "repeated_reference_token",
			ref:  words("a", "a"),
			hyp:  words("a"),
			want: []OpKind{Deletion, Match},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Align(tt.ref, tt.hyp)
			assert.Equal(t, tt.want, kinds(a))
			// Deterministic across calls.
			assert.Equal(t, a, Align(tt.ref, tt.hyp))
		})
	}
}

func TestAlignDeletionIndices(t *testing.T) {
	a := Align(words("the", "cat", "sat", "on", "the", "mat"), words("the", "cat", "on", "the", "mat"))
	require.Equal(t, []OpKind{Match, Match, Deletion, Match, Match, Match}, kinds(a))
	assert.Equal(t, 2, a.Ops[2].RefIndex)
	assert.Equal(t, NoIndex, a.Ops[2].HypIndex)
	assert.Equal(t, 2, a.Ops[3].HypIndex)
}

func TestAlignCharacters(t *testing.T) {
	a := Align([]rune("kitten"), []rune("sitting"))
	assert.Equal(t, 3, a.Cost())
}

func randomTokens(rng *rand.Rand) []string {
	alphabet := []string{"a", "b", "c", "d"}
	n := rng.Intn(9)
	out := make([]string, n)
	for i := range out {
		out[i] = alphabet[rng.Intn(len(alphabet))]
	}
	return out
}

func countKinds[T comparable](a Alignment[T]) map[OpKind]int {
	out := map[OpKind]int{}
	for _, op := range a.Ops {
		out[op.Kind]++
	}
	return out
}

func TestAlignProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for iter := 0; iter < 500; iter++ {
		ref := randomTokens(rng)
		hyp := randomTokens(rng)

		a := Align(ref, hyp)

		// Minimal: agrees with an independent edit-distance implementation.
		require.Equal(t, Distance(ref, hyp), a.Cost(), "ref=%v hyp=%v", ref, hyp)

		// Round trip.
		assert.Equal(t, ref, a.ReferenceTokens(), "ref=%v hyp=%v", ref, hyp)
		assert.Equal(t, hyp, a.HypothesisTokens(), "ref=%v hyp=%v", ref, hyp)

		// Monotonic indices covering both sequences.
		nextRef, nextHyp := 0, 0
		for _, op := range a.Ops {
			if op.Kind != Insertion {
				require.Equal(t, nextRef, op.RefIndex)
				nextRef++
			}
			if op.Kind != Deletion {
				require.Equal(t, nextHyp, op.HypIndex)
				nextHyp++
			}
		}
		assert.Equal(t, len(ref), nextRef)
		assert.Equal(t, len(hyp), nextHyp)

		// Swapping operands keeps the cost and exchanges deletions with insertions.
		b := Align(hyp, ref)
		assert.Equal(t, a.Cost(), b.Cost())
		ca, cb := countKinds(a), countKinds(b)
		assert.Equal(t, ca[Deletion]-ca[Insertion], cb[Insertion]-cb[Deletion])

		// Self alignment is all matches.
		self := Align(ref, ref)
		assert.Equal(t, 0, self.Cost())
		for _, op := range self.Ops {
			require.Equal(t, Match, op.Kind)
		}
	}
}

func TestDistance(t *testing.T) {
	assert.Equal(t, 0, Distance([]string{}, []string{}))
	assert.Equal(t, 2, Distance(nil, words("a", "b")))
	assert.Equal(t, 3, Distance(words("a", "b", "c"), nil))
	assert.Equal(t, 1, Distance(words("a", "b", "c"), words("a", "x", "c")))
	assert.Equal(t, 3, Distance([]rune("kitten"), []rune("sitting")))
}

func TestOpKindString(t *testing.T) {
	assert.Equal(t, "match", Match.String())
	assert.Equal(t, "insertion", Insertion.String())
	text, err := Deletion.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "deletion", string(text))
}
