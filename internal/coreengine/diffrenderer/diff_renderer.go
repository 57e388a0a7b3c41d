// Package diffrenderer regroups an alignment into display segments.
//
// Runs of matches collapse into one Equal segment; every substitution is its
// own Replace segment carrying a character-level diff of the two words;
// insertions and deletions map one to one. Rendering makes no alignment
// decisions of its own, so the same alignment always renders the same way
// and no token is lost.
package diffrenderer

import (
	"fmt"
	"strings"

	"speech-data-explorer/backend/internal/coreengine/aligner"
	"speech-data-explorer/backend/internal/coreengine/tokenizer"
)

// SegmentKind tags a diff segment.
type SegmentKind uint8

const (
	Equal SegmentKind = iota
	Replace
	Insert
	Delete
)

func (k SegmentKind) String() string {
	switch k {
	case Equal:
		return "equal"
	case Replace:
		return "replace"
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	default:
		return fmt.Sprintf("segment(%d)", uint8(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k SegmentKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *SegmentKind) UnmarshalText(text []byte) error {
	for _, kind := range []SegmentKind{Equal, Replace, Insert, Delete} {
		if kind.String() == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown segment kind %q", text)
}

// Segment is a span of the diff. RefStart and HypStart are the positions in
// the reference and hypothesis where the span begins; for an Insert,
// RefStart is the index of the next reference token, and likewise HypStart
// for a Delete.
type Segment struct {
	Kind       SegmentKind `json:"kind"`
	RefStart   int         `json:"ref_start"`
	HypStart   int         `json:"hyp_start"`
	Reference  []string    `json:"reference"`
	Hypothesis []string    `json:"hypothesis"`
	// Characters is the character-level diff inside a word-level Replace.
	Characters []Segment `json:"characters,omitempty"`
}

// Render converts a word alignment into segments, with a nested code point
// diff inside each Replace.
func Render(a aligner.Alignment[string]) []Segment {
	return RenderWith(a, tokenizer.Char)
}

// RenderWith is Render with the nested diff tokenized at charGranularity
// (Char or Grapheme). Any other granularity falls back to Char.
func RenderWith(a aligner.Alignment[string], charGranularity tokenizer.Granularity) []Segment {
	if charGranularity != tokenizer.Grapheme {
		charGranularity = tokenizer.Char
	}
	return render(a, true, charGranularity)
}

// RenderFlat converts an alignment into segments without nesting. It is used
// for character alignments.
func RenderFlat(a aligner.Alignment[string]) []Segment {
	return render(a, false, tokenizer.Char)
}

func render(a aligner.Alignment[string], nested bool, g tokenizer.Granularity) []Segment {
	segments := make([]Segment, 0, len(a.Ops))
	refPos, hypPos := 0, 0
	for _, op := range a.Ops {
		switch op.Kind {
		case aligner.Match:
			if n := len(segments); n > 0 && segments[n-1].Kind == Equal {
				last := &segments[n-1]
				last.Reference = append(last.Reference, op.Ref)
				last.Hypothesis = append(last.Hypothesis, op.Hyp)
			} else {
				segments = append(segments, Segment{
					Kind:       Equal,
					RefStart:   refPos,
					HypStart:   hypPos,
					Reference:  []string{op.Ref},
					Hypothesis: []string{op.Hyp},
				})
			}
			refPos++
			hypPos++
		case aligner.Substitution:
			seg := Segment{
				Kind:       Replace,
				RefStart:   refPos,
				HypStart:   hypPos,
				Reference:  []string{op.Ref},
				Hypothesis: []string{op.Hyp},
			}
			if nested {
				seg.Characters = RenderFlat(aligner.Align(
					tokenizer.Tokenize(op.Ref, g),
					tokenizer.Tokenize(op.Hyp, g),
				))
			}
			segments = append(segments, seg)
			refPos++
			hypPos++
		case aligner.Deletion:
			segments = append(segments, Segment{
				Kind:       Delete,
				RefStart:   refPos,
				HypStart:   hypPos,
				Reference:  []string{op.Ref},
				Hypothesis: []string{},
			})
			refPos++
		case aligner.Insertion:
			segments = append(segments, Segment{
				Kind:       Insert,
				RefStart:   refPos,
				HypStart:   hypPos,
				Reference:  []string{},
				Hypothesis: []string{op.Hyp},
			})
			hypPos++
		}
	}
	return segments
}

// ReferenceTokens concatenates the reference side of segments.
func ReferenceTokens(segments []Segment) []string {
	var out []string
	for _, s := range segments {
		out = append(out, s.Reference...)
	}
	return out
}

// HypothesisTokens concatenates the hypothesis side of segments.
func HypothesisTokens(segments []Segment) []string {
	var out []string
	for _, s := range segments {
		out = append(out, s.Hypothesis...)
	}
	return out
}

// Format renders segments as a single line in wdiff style:
// equal text as is, [-deleted-], {+inserted+} and [-old-]{+new+} for
// replacements. sep joins tokens (" " for words, "" for characters).
func Format(segments []Segment, sep string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		ref := strings.Join(s.Reference, sep)
		hyp := strings.Join(s.Hypothesis, sep)
		switch s.Kind {
		case Equal:
			parts = append(parts, ref)
		case Delete:
			parts = append(parts, "[-"+ref+"-]")
		case Insert:
			parts = append(parts, "{+"+hyp+"+}")
		case Replace:
			parts = append(parts, "[-"+ref+"-]{+"+hyp+"+}")
		}
	}
	return strings.Join(parts, sep)
}
