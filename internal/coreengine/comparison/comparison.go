// Package comparison scores two competing hypotheses against the same
// reference and classifies which model did better.
//
// The two pipelines never share intermediate state: each alignment is
// computed from its own reference/hypothesis pair, so the result for model
// A cannot depend on model B's output.
package comparison

import (
	"fmt"

	"speech-data-explorer/backend/internal/coreengine/metricscalculator"
	"speech-data-explorer/backend/internal/coreengine/scorer"
	"speech-data-explorer/backend/internal/coreengine/tokenizer"
)

// Classification names the outcome of one utterance.
type Classification string

const (
	ABetter Classification = "a_better"
	BBetter Classification = "b_better"
	Tie     Classification = "tie"
)

// Record pairs the scorecards of both models for one utterance. Key is the
// caller's opaque identifier and is never interpreted.
type Record struct {
	Key            string           `json:"key"`
	A              scorer.Scorecard `json:"a"`
	B              scorer.Scorecard `json:"b"`
	Classification Classification   `json:"classification"`
}

// Coordinator runs paired scoring.
type Coordinator struct {
	scorer *scorer.Scorer
}

// New returns a Coordinator using s, or a default scorer when s is nil.
func New(s *scorer.Scorer) *Coordinator {
	if s == nil {
		s = scorer.New()
	}
	return &Coordinator{scorer: s}
}

// Compare scores hypothesisA and hypothesisB against reference.
func (c *Coordinator) Compare(key, reference, hypothesisA, hypothesisB string) Record {
	a := c.scorer.Score(reference, hypothesisA)
	b := c.scorer.Score(reference, hypothesisB)
	return Record{
		Key:            key,
		A:              a,
		B:              b,
		Classification: Classify(a.Word, b.Word),
	}
}

// Classify compares the word error rates exactly. The lower rate wins; a
// defined rate beats an undefined one and equal rates tie.
func Classify(a, b metricscalculator.UtteranceMetrics) Classification {
	switch a.ErrorRate.Cmp(b.ErrorRate) {
	case -1:
		return ABetter
	case 1:
		return BBetter
	default:
		return Tie
	}
}

// ModelSummary holds one model's dataset metrics.
type ModelSummary struct {
	Word metricscalculator.DatasetMetrics `json:"word"`
	Char metricscalculator.DatasetMetrics `json:"char"`
}

// DatasetComparison is the fold of many records.
//
// WERDelta and CERDelta are A minus B, so a negative delta means model A
// made fewer errors.
type DatasetComparison struct {
	Utterances int                    `json:"utterances"`
	ABetter    int                    `json:"a_better"`
	BBetter    int                    `json:"b_better"`
	Ties       int                    `json:"ties"`
	A          ModelSummary           `json:"a"`
	B          ModelSummary           `json:"b"`
	WERDelta   metricscalculator.Rate `json:"wer_delta"`
	CERDelta   metricscalculator.Rate `json:"cer_delta"`
}

// Accumulator folds records in any order.
type Accumulator struct {
	utterances int
	aBetter    int
	bBetter    int
	ties       int

	aWord, aChar *metricscalculator.Accumulator
	bWord, bChar *metricscalculator.Accumulator
}

// NewAccumulator returns an empty accumulator. charGranularity must match
// the character granularity of the records that will be added.
func NewAccumulator(charGranularity tokenizer.Granularity) *Accumulator {
	return &Accumulator{
		aWord: metricscalculator.NewAccumulator(tokenizer.Word),
		aChar: metricscalculator.NewAccumulator(charGranularity),
		bWord: metricscalculator.NewAccumulator(tokenizer.Word),
		bChar: metricscalculator.NewAccumulator(charGranularity),
	}
}

// Add folds r. Either every part of r is folded or, on error, none is.
func (acc *Accumulator) Add(r Record) error {
	steps := []struct {
		into *metricscalculator.Accumulator
		m    metricscalculator.UtteranceMetrics
	}{
		{acc.aWord, r.A.Word},
		{acc.aChar, r.A.Char},
		{acc.bWord, r.B.Word},
		{acc.bChar, r.B.Char},
	}
	for _, step := range steps {
		if err := step.into.Check(step.m); err != nil {
			return fmt.Errorf("record %q: %w", r.Key, err)
		}
	}
	for _, step := range steps {
		if err := step.into.Add(step.m); err != nil {
			return fmt.Errorf("record %q: %w", r.Key, err)
		}
	}
	acc.utterances++
	switch r.Classification {
	case ABetter:
		acc.aBetter++
	case BBetter:
		acc.bBetter++
	default:
		acc.ties++
	}
	return nil
}

// Result derives the dataset comparison from everything added so far.
func (acc *Accumulator) Result() DatasetComparison {
	a := ModelSummary{Word: acc.aWord.Metrics(), Char: acc.aChar.Metrics()}
	b := ModelSummary{Word: acc.bWord.Metrics(), Char: acc.bChar.Metrics()}
	return DatasetComparison{
		Utterances: acc.utterances,
		ABetter:    acc.aBetter,
		BBetter:    acc.bBetter,
		Ties:       acc.ties,
		A:          a,
		B:          b,
		WERDelta:   a.Word.ErrorRate.Sub(b.Word.ErrorRate),
		CERDelta:   a.Char.ErrorRate.Sub(b.Char.ErrorRate),
	}
}

// Summarize folds records whose character metrics use code points.
func Summarize(records []Record) (DatasetComparison, error) {
	acc := NewAccumulator(tokenizer.Char)
	for _, r := range records {
		if err := acc.Add(r); err != nil {
			return DatasetComparison{}, err
		}
	}
	return acc.Result(), nil
}
