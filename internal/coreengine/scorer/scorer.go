// Package scorer runs the tokenize, align, measure and render pipeline for
// one reference/hypothesis pair.
package scorer

import (
	"speech-data-explorer/backend/internal/coreengine/aligner"
	"speech-data-explorer/backend/internal/coreengine/diffrenderer"
	"speech-data-explorer/backend/internal/coreengine/metricscalculator"
	"speech-data-explorer/backend/internal/coreengine/tokenizer"
)

// AlignFunc produces the alignment of two texts at a granularity. It must
// return the same result as AlignText for the same input.
type AlignFunc func(reference, hypothesis string, g tokenizer.Granularity) aligner.Alignment[string]

// AlignText tokenizes both texts and aligns them.
func AlignText(reference, hypothesis string, g tokenizer.Granularity) aligner.Alignment[string] {
	return aligner.Align(tokenizer.Tokenize(reference, g), tokenizer.Tokenize(hypothesis, g))
}

// Scorecard is everything computed for one utterance.
type Scorecard struct {
	Word metricscalculator.UtteranceMetrics `json:"word"`
	Char metricscalculator.UtteranceMetrics `json:"char"`
	Diff []diffrenderer.Segment             `json:"diff"`
}

// DistanceResult is the outcome of a distance-only score.
type DistanceResult struct {
	Granularity      tokenizer.Granularity  `json:"granularity"`
	Distance         int                    `json:"distance"`
	ReferenceLength  int                    `json:"reference_length"`
	HypothesisLength int                    `json:"hypothesis_length"`
	ErrorRate        metricscalculator.Rate `json:"error_rate"`
}

// Scorer is safe for concurrent use when its AlignFunc is.
type Scorer struct {
	align           AlignFunc
	charGranularity tokenizer.Granularity
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithAligner replaces the alignment step, typically with a cache in front
// of AlignText.
func WithAligner(fn AlignFunc) Option {
	return func(s *Scorer) {
		if fn != nil {
			s.align = fn
		}
	}
}

// WithCharGranularity selects Char (code points, the default) or Grapheme
// for the character-level metrics.
func WithCharGranularity(g tokenizer.Granularity) Option {
	return func(s *Scorer) {
		if g == tokenizer.Char || g == tokenizer.Grapheme {
			s.charGranularity = g
		}
	}
}

// New returns a Scorer.
func New(opts ...Option) *Scorer {
	s := &Scorer{align: AlignText, charGranularity: tokenizer.Char}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score computes word and character metrics and the word diff.
func (s *Scorer) Score(reference, hypothesis string) Scorecard {
	words := s.align(reference, hypothesis, tokenizer.Word)
	chars := s.align(reference, hypothesis, s.charGranularity)
	return Scorecard{
		Word: metricscalculator.Compute(words, tokenizer.Word),
		Char: metricscalculator.Compute(chars, s.charGranularity),
		Diff: diffrenderer.RenderWith(words, s.charGranularity),
	}
}

// Distance returns the edit distance and error rate at g without building
// an alignment.
func (s *Scorer) Distance(reference, hypothesis string, g tokenizer.Granularity) DistanceResult {
	ref := tokenizer.Tokenize(reference, g)
	hyp := tokenizer.Tokenize(hypothesis, g)
	d := aligner.Distance(ref, hyp)
	return DistanceResult{
		Granularity:      g,
		Distance:         d,
		ReferenceLength:  len(ref),
		HypothesisLength: len(hyp),
		ErrorRate:        metricscalculator.NewErrorRate(d, len(ref), len(hyp)),
	}
}
