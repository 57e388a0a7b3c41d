package metricscalculator

import (
	"fmt"

	"speech-data-explorer/backend/internal/coreengine/aligner"
	"speech-data-explorer/backend/internal/coreengine/tokenizer"
)

// Counts are the raw tallies of an alignment.
type Counts struct {
	Matches          int `json:"matches"`
	Substitutions    int `json:"substitutions"`
	Insertions       int `json:"insertions"`
	Deletions        int `json:"deletions"`
	ReferenceLength  int `json:"reference_length"`
	HypothesisLength int `json:"hypothesis_length"`
}

// Errors returns S + D + I.
func (c Counts) Errors() int {
	return c.Substitutions + c.Deletions + c.Insertions
}

// Add returns the field-wise sum of c and o.
func (c Counts) Add(o Counts) Counts {
	return Counts{
		Matches:          c.Matches + o.Matches,
		Substitutions:    c.Substitutions + o.Substitutions,
		Insertions:       c.Insertions + o.Insertions,
		Deletions:        c.Deletions + o.Deletions,
		ReferenceLength:  c.ReferenceLength + o.ReferenceLength,
		HypothesisLength: c.HypothesisLength + o.HypothesisLength,
	}
}

// UtteranceMetrics holds the counts and derived rates of one utterance at
// one granularity.
//
// ErrorRate is the WER for word alignments and the CER for character
// alignments. MatchRate is M / N: the WMR for words, and the character
// match rate (code points or grapheme clusters) otherwise. Accuracy is
// 1 - ErrorRate clamped to [0, 1], the MWA for words.
type UtteranceMetrics struct {
	Granularity tokenizer.Granularity `json:"granularity"`
	Counts
	ErrorRate Rate `json:"error_rate"`
	MatchRate Rate `json:"match_rate"`
	Accuracy  Rate `json:"accuracy"`
}

// FromCounts derives the rates for c.
func FromCounts(g tokenizer.Granularity, c Counts) UtteranceMetrics {
	errorRate := newRate(c.Errors(), c.ReferenceLength, c.HypothesisLength)
	return UtteranceMetrics{
		Granularity: g,
		Counts:      c,
		ErrorRate:   errorRate,
		MatchRate:   newRate(c.Matches, c.ReferenceLength, c.HypothesisLength),
		Accuracy:    accuracy(errorRate),
	}
}

// accuracy clamps 1 - errorRate to [0, 1].
func accuracy(errorRate Rate) Rate {
	if errorRate.Undefined {
		return UndefinedRate
	}
	if errorRate.Denominator == 0 {
		return Rate{Numerator: 1, Denominator: 1}
	}
	return Rate{Numerator: max(errorRate.Denominator-errorRate.Numerator, 0), Denominator: errorRate.Denominator}
}

// Compute tallies the operations of a and derives the rates.
func Compute[T comparable](a aligner.Alignment[T], g tokenizer.Granularity) UtteranceMetrics {
	c := Counts{
		ReferenceLength:  len(a.Reference),
		HypothesisLength: len(a.Hypothesis),
	}
	for _, op := range a.Ops {
		switch op.Kind {
		case aligner.Match:
			c.Matches++
		case aligner.Substitution:
			c.Substitutions++
		case aligner.Insertion:
			c.Insertions++
		case aligner.Deletion:
			c.Deletions++
		}
	}
	return FromCounts(g, c)
}

// CalculateWER tokenizes both texts into words, aligns them and returns the
// word-level metrics. The texts are used as given.
func CalculateWER(groundTruth, recognizedText string) UtteranceMetrics {
	return calculate(groundTruth, recognizedText, tokenizer.Word)
}

// CalculateCER is CalculateWER at character granularity.
func CalculateCER(groundTruth, recognizedText string) UtteranceMetrics {
	return calculate(groundTruth, recognizedText, tokenizer.Char)
}

func calculate(groundTruth, recognizedText string, g tokenizer.Granularity) UtteranceMetrics {
	ref := tokenizer.Tokenize(groundTruth, g)
	hyp := tokenizer.Tokenize(recognizedText, g)
	return Compute(aligner.Align(ref, hyp), g)
}

// DatasetMetrics aggregates utterances by summing their counts; every rate
// is derived from the sums, never averaged from per-utterance rates.
//
// SentenceErrorRate is the fraction of utterances with at least one error.
type DatasetMetrics struct {
	Granularity tokenizer.Granularity `json:"granularity"`
	Counts
	Utterances           int  `json:"utterances"`
	UtterancesWithErrors int  `json:"utterances_with_errors"`
	ErrorRate            Rate `json:"error_rate"`
	MatchRate            Rate `json:"match_rate"`
	Accuracy             Rate `json:"accuracy"`
	SentenceErrorRate    Rate `json:"sentence_error_rate"`
}

// Accumulator folds UtteranceMetrics of a single granularity. The zero
// value is not usable; call NewAccumulator.
type Accumulator struct {
	granularity tokenizer.Granularity
	counts      Counts
	utterances  int
	withErrors  int
}

// NewAccumulator returns an empty accumulator for g.
func NewAccumulator(g tokenizer.Granularity) *Accumulator {
	return &Accumulator{granularity: g}
}

// Check reports whether m can be folded into the accumulator without
// changing it.
func (a *Accumulator) Check(m UtteranceMetrics) error {
	if m.Granularity != a.granularity {
		return fmt.Errorf("cannot aggregate %s metrics into %s dataset", m.Granularity, a.granularity)
	}
	return nil
}

// Add folds m into the accumulator. A rejected m leaves it unchanged.
func (a *Accumulator) Add(m UtteranceMetrics) error {
	if err := a.Check(m); err != nil {
		return err
	}
	a.counts = a.counts.Add(m.Counts)
	a.utterances++
	if m.Errors() > 0 {
		a.withErrors++
	}
	return nil
}

// Metrics derives the dataset rates from the sums folded so far.
func (a *Accumulator) Metrics() DatasetMetrics {
	u := FromCounts(a.granularity, a.counts)
	return DatasetMetrics{
		Granularity:          a.granularity,
		Counts:               a.counts,
		Utterances:           a.utterances,
		UtterancesWithErrors: a.withErrors,
		ErrorRate:            u.ErrorRate,
		MatchRate:            u.MatchRate,
		Accuracy:             u.Accuracy,
		SentenceErrorRate:    Rate{Numerator: a.withErrors, Denominator: a.utterances},
	}
}

// Aggregate folds metrics into a DatasetMetrics at granularity g. The
// result does not depend on the order of metrics.
func Aggregate(g tokenizer.Granularity, metrics []UtteranceMetrics) (DatasetMetrics, error) {
	acc := NewAccumulator(g)
	for i, m := range metrics {
		if err := acc.Add(m); err != nil {
			return DatasetMetrics{}, fmt.Errorf("utterance %d: %w", i, err)
		}
	}
	return acc.Metrics(), nil
}
