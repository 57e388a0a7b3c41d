package evaluationengine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"speech-data-explorer/backend/internal/coreengine/aligner"
	"speech-data-explorer/backend/internal/coreengine/comparison"
	"speech-data-explorer/backend/internal/coreengine/scorer"
	"speech-data-explorer/backend/internal/coreengine/tokenizer"
)

func text(s string) *string { return &s }

func TestEvaluateDatasetPartialFailure(t *testing.T) {
	e := New(Options{Workers: 2, Logger: zap.NewNop()})
	report, err := e.EvaluateDataset(context.Background(), []Utterance{
		{Key: "a", Reference: "a b c", Hypothesis: text("a b c")},
		{Key: "b", Reference: "a b c", Hypothesis: nil},
		{Key: "c", Reference: "a b c", Hypothesis: text("a x c")},
	})
	require.NoError(t, err)

	require.Len(t, report.Utterances, 3)
	assert.Equal(t, 2, report.Scored)
	assert.Equal(t, 1, report.Failed)

	for i, key := range []string{"a", "b", "c"} {
		assert.Equal(t, key, report.Utterances[i].Key)
		assert.Equal(t, i, report.Utterances[i].Index)
	}

	failed := report.Utterances[1]
	assert.Nil(t, failed.Scorecard)
	var inputErr *InputError
	require.True(t, errors.As(failed.Err, &inputErr))
	assert.Equal(t, "hypothesis", inputErr.Field)
	assert.True(t, errors.Is(failed.Err, ErrMissingHypothesis))
	assert.Contains(t, failed.Error, "hypothesis text is missing")

	assert.Equal(t, 6, report.Word.ReferenceLength)
	assert.Equal(t, 1, report.Word.Errors())
	assert.Equal(t, 2, report.Word.Utterances)
	assert.Equal(t, tokenizer.Char, report.Char.Granularity)
}

func TestEvaluateDatasetEmptyHypothesisIsNotAnError(t *testing.T) {
	e := New(Options{})
	report, err := e.EvaluateDataset(context.Background(), []Utterance{
		{Key: "silence", Reference: "", Hypothesis: text("")},
		{Key: "noise", Reference: "", Hypothesis: text("uh")},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Failed)
	assert.False(t, report.Utterances[0].Scorecard.Word.ErrorRate.IsUndefined())
	assert.True(t, report.Utterances[1].Scorecard.Word.ErrorRate.IsUndefined())
	assert.True(t, report.Word.ErrorRate.IsUndefined())
}

func TestEvaluateDatasetNormalizes(t *testing.T) {
	e := New(Options{Normalize: strings.ToLower})
	report, err := e.EvaluateDataset(context.Background(), []Utterance{
		{Key: "1", Reference: "The Cat", Hypothesis: text("the cat")},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Word.Errors())
	assert.Equal(t, "the cat", e.Normalize("The Cat"))
}

func TestEvaluateDatasetUsesAligner(t *testing.T) {
	var calls atomic.Int64
	e := New(Options{
		Workers: 4,
		Aligner: func(reference, hypothesis string, g tokenizer.Granularity) aligner.Alignment[string] {
			calls.Add(1)
			return scorer.AlignText(reference, hypothesis, g)
		},
	})
	utterances := make([]Utterance, 50)
	for i := range utterances {
		utterances[i] = Utterance{Key: fmt.Sprint(i), Reference: "a b c", Hypothesis: text("a b d")}
	}
	report, err := e.EvaluateDataset(context.Background(), utterances)
	require.NoError(t, err)
	assert.Equal(t, int64(100), calls.Load())
	assert.Equal(t, 50, report.Word.Substitutions)
}

func TestEvaluateDatasetMatchesSequentialFold(t *testing.T) {
	var utterances []Utterance
	for i := 0; i < 40; i++ {
		ref := strings.Repeat("w ", i%7) + "end"
		hyp := strings.Repeat("w ", (i*3)%5) + "end"
		utterances = append(utterances, Utterance{Key: fmt.Sprint(i), Reference: ref, Hypothesis: text(hyp)})
	}

	parallel, err := New(Options{Workers: 8}).EvaluateDataset(context.Background(), utterances)
	require.NoError(t, err)
	serial, err := New(Options{Workers: 1}).EvaluateDataset(context.Background(), utterances)
	require.NoError(t, err)
	assert.Equal(t, serial.Word, parallel.Word)
	assert.Equal(t, serial.Char, parallel.Char)
}

func TestEvaluateDatasetCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Options{}).EvaluateDataset(ctx, []Utterance{{Key: "1", Reference: "a", Hypothesis: text("a")}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompareDataset(t *testing.T) {
	e := New(Options{Workers: 3})
	report, err := e.CompareDataset(context.Background(), []ComparisonUtterance{
		{Key: "tie", Reference: "the cat sat", HypothesisA: text("the cat sits"), HypothesisB: text("a cat sat")},
		{Key: "a", Reference: "a b c", HypothesisA: text("a b c"), HypothesisB: text("a b")},
		{Key: "missing_b", Reference: "a b c", HypothesisA: text("a b c")},
		{Key: "missing_a", Reference: "a b c", HypothesisB: text("a b c")},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Scored)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, comparison.Tie, report.Utterances[0].Record.Classification)
	assert.Equal(t, comparison.ABetter, report.Utterances[1].Record.Classification)

	var inputErr *InputError
	require.True(t, errors.As(report.Utterances[2].Err, &inputErr))
	assert.Equal(t, "hypothesis_b", inputErr.Field)
	require.True(t, errors.As(report.Utterances[3].Err, &inputErr))
	assert.Equal(t, "hypothesis_a", inputErr.Field)

	assert.Equal(t, 1, report.Summary.ABetter)
	assert.Equal(t, 1, report.Summary.Ties)
	assert.Equal(t, 2, report.Summary.Utterances)
	// A: 1 error / 6 words, B: 2 errors / 6 words.
	assert.Equal(t, -1, report.Summary.WERDelta.Numerator)
	assert.Equal(t, 6, report.Summary.WERDelta.Denominator)
}

func TestCompareDatasetGrapheme(t *testing.T) {
	e := New(Options{CharGranularity: tokenizer.Grapheme})
	report, err := e.CompareDataset(context.Background(), []ComparisonUtterance{
		{Key: "1", Reference: "café", HypothesisA: text("cafe"), HypothesisB: text("café")},
	})
	require.NoError(t, err)
	assert.Equal(t, tokenizer.Grapheme, report.Summary.A.Char.Granularity)
	assert.Equal(t, 1, report.Summary.A.Char.Substitutions)
	assert.Equal(t, comparison.BBetter, report.Utterances[0].Record.Classification)
}
