// Package aligner computes global minimum-edit-distance alignments between a
// reference and a hypothesis token sequence.
//
// Substitutions, insertions and deletions cost 1; an exact match costs 0.
// When several operations reach the same minimum cost during the backtrace
// the choice is fixed: Match, then Substitution, then Deletion, then
// Insertion. Diffs rendered from an Alignment depend on that order, so it
// must not change.
//
// Align keeps the full (|ref|+1)×(|hyp|+1) cost table for the backtrace; for
// very long utterances that table dominates memory. Distance only needs the
// cost and never builds an Alignment.
package aligner

import "fmt"

// OpKind tags an edit operation.
type OpKind uint8

const (
	Match OpKind = iota
	Substitution
	Deletion
	Insertion
)

// String returns the lower-case operation name.
func (k OpKind) String() string {
	switch k {
	case Match:
		return "match"
	case Substitution:
		return "substitution"
	case Deletion:
		return "deletion"
	case Insertion:
		return "insertion"
	default:
		return fmt.Sprintf("op(%d)", uint8(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k OpKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// NoIndex marks the missing side of an insertion or deletion.
const NoIndex = -1

// Operation is one step of an alignment. RefIndex is NoIndex for
// insertions and HypIndex is NoIndex for deletions; the corresponding token
// field holds the zero value.
type Operation[T comparable] struct {
	Kind     OpKind `json:"kind"`
	RefIndex int    `json:"ref_index"`
	HypIndex int    `json:"hyp_index"`
	Ref      T      `json:"ref"`
	Hyp      T      `json:"hyp"`
}

// Cost is 0 for a match and 1 otherwise.
func (op Operation[T]) Cost() int {
	if op.Kind == Match {
		return 0
	}
	return 1
}

// Alignment is the ordered list of operations that turns Reference into
// Hypothesis.
type Alignment[T comparable] struct {
	Ops        []Operation[T] `json:"ops"`
	Reference  []T            `json:"reference"`
	Hypothesis []T            `json:"hypothesis"`
}

// Cost returns the edit distance represented by the alignment.
func (a Alignment[T]) Cost() int {
	cost := 0
	for _, op := range a.Ops {
		cost += op.Cost()
	}
	return cost
}

// ReferenceTokens rebuilds the reference from every non-insertion operation.
func (a Alignment[T]) ReferenceTokens() []T {
	out := make([]T, 0, len(a.Reference))
	for _, op := range a.Ops {
		if op.Kind != Insertion {
			out = append(out, op.Ref)
		}
	}
	return out
}

// HypothesisTokens rebuilds the hypothesis from every non-deletion operation.
func (a Alignment[T]) HypothesisTokens() []T {
	out := make([]T, 0, len(a.Hypothesis))
	for _, op := range a.Ops {
		if op.Kind != Deletion {
			out = append(out, op.Hyp)
		}
	}
	return out
}

// Align returns a minimum-cost alignment of hyp against ref.
func Align[T comparable](ref, hyp []T) Alignment[T] {
	n, m := len(ref), len(hyp)
	out := Alignment[T]{Reference: ref, Hypothesis: hyp}
	if n == 0 && m == 0 {
		out.Ops = []Operation[T]{}
		return out
	}

	d := costTable(ref, hyp)

	ops := make([]Operation[T], 0, max(n, m))
	i, j := n, m
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && ref[i-1] == hyp[j-1] && d[i][j] == d[i-1][j-1]:
			ops = append(ops, Operation[T]{Kind: Match, RefIndex: i - 1, HypIndex: j - 1, Ref: ref[i-1], Hyp: hyp[j-1]})
			i--
			j--
		case i > 0 && j > 0 && ref[i-1] != hyp[j-1] && d[i][j] == d[i-1][j-1]+1:
			ops = append(ops, Operation[T]{Kind: Substitution, RefIndex: i - 1, HypIndex: j - 1, Ref: ref[i-1], Hyp: hyp[j-1]})
			i--
			j--
		case i > 0 && d[i][j] == d[i-1][j]+1:
			var zero T
			ops = append(ops, Operation[T]{Kind: Deletion, RefIndex: i - 1, HypIndex: NoIndex, Ref: ref[i-1], Hyp: zero})
			i--
		default:
			var zero T
			ops = append(ops, Operation[T]{Kind: Insertion, RefIndex: NoIndex, HypIndex: j - 1, Ref: zero, Hyp: hyp[j-1]})
			j--
		}
	}

	for l, r := 0, len(ops)-1; l < r; l, r = l+1, r-1 {
		ops[l], ops[r] = ops[r], ops[l]
	}
	out.Ops = ops
	return out
}

// costTable fills the full DP table. d[i][j] is the distance between
// ref[:i] and hyp[:j].
func costTable[T comparable](ref, hyp []T) [][]int {
	n, m := len(ref), len(hyp)
	cells := make([]int, (n+1)*(m+1))
	d := make([][]int, n+1)
	for i := range d {
		d[i] = cells[i*(m+1) : (i+1)*(m+1)]
		d[i][0] = i
	}
	for j := 0; j <= m; j++ {
		d[0][j] = j
	}

	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			sub := d[i-1][j-1]
			if ref[i-1] != hyp[j-1] {
				sub++
			}
			d[i][j] = min(sub, d[i-1][j]+1, d[i][j-1]+1)
		}
	}
	return d
}
