package evaluationengine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"speech-data-explorer/backend/internal/coreengine/comparison"
	"speech-data-explorer/backend/internal/coreengine/metricscalculator"
	"speech-data-explorer/backend/internal/coreengine/scorer"
	"speech-data-explorer/backend/internal/coreengine/tokenizer"
	"speech-data-explorer/backend/internal/metrics"
)

// ErrMissingHypothesis marks an utterance that has no hypothesis text.
var ErrMissingHypothesis = errors.New("hypothesis text is missing")

// InputError is the per-utterance failure recorded when a required text is
// absent. It never aborts the rest of a batch.
type InputError struct {
	Key   string
	Index int
	Field string
	Err   error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("utterance %d (%q): %s: %v", e.Index, e.Key, e.Field, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// Utterance is one reference with an optional hypothesis. A nil Hypothesis
// is an input error; an empty string is a valid, empty transcript.
type Utterance struct {
	Key        string  `json:"key"`
	Reference  string  `json:"reference"`
	Hypothesis *string `json:"hypothesis"`
}

// ComparisonUtterance is one reference with the outputs of two models.
type ComparisonUtterance struct {
	Key         string  `json:"key"`
	Reference   string  `json:"reference"`
	HypothesisA *string `json:"hypothesis_a"`
	HypothesisB *string `json:"hypothesis_b"`
}

// UtteranceResult holds either a scorecard or the error for one utterance.
type UtteranceResult struct {
	Key       string            `json:"key"`
	Index     int               `json:"index"`
	Scorecard *scorer.Scorecard `json:"scorecard,omitempty"`
	Error     string            `json:"error,omitempty"`
	Err       error             `json:"-"`
}

// DatasetReport is the outcome of EvaluateDataset. Utterances keeps the
// input order.
type DatasetReport struct {
	Utterances []UtteranceResult                `json:"utterances"`
	Word       metricscalculator.DatasetMetrics `json:"word"`
	Char       metricscalculator.DatasetMetrics `json:"char"`
	Scored     int                              `json:"scored"`
	Failed     int                              `json:"failed"`
}

// ComparisonResult holds either a comparison record or the error for one
// utterance.
type ComparisonResult struct {
	Key    string             `json:"key"`
	Index  int                `json:"index"`
	Record *comparison.Record `json:"record,omitempty"`
	Error  string             `json:"error,omitempty"`
	Err    error              `json:"-"`
}

// ComparisonReport is the outcome of CompareDataset.
type ComparisonReport struct {
	Utterances []ComparisonResult           `json:"utterances"`
	Summary    comparison.DatasetComparison `json:"summary"`
	Scored     int                          `json:"scored"`
	Failed     int                          `json:"failed"`
}

// Options configures an Engine.
type Options struct {
	// Workers bounds the number of utterances aligned at once, and with it
	// the number of live DP tables. Zero means GOMAXPROCS.
	Workers int
	// Normalize, when set, is applied to every text before tokenization.
	Normalize func(string) string
	// CharGranularity is Char (default) or Grapheme.
	CharGranularity tokenizer.Granularity
	// Aligner replaces the alignment step (for example with a cache).
	Aligner scorer.AlignFunc
	Logger  *zap.Logger
}

// Engine evaluates datasets of utterances.
type Engine struct {
	scorer          *scorer.Scorer
	coordinator     *comparison.Coordinator
	charGranularity tokenizer.Granularity
	workers         int
	normalize       func(string) string
	logger          *zap.Logger
}

// New builds an Engine.
func New(opts Options) *Engine {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	charGranularity := opts.CharGranularity
	if charGranularity != tokenizer.Grapheme {
		charGranularity = tokenizer.Char
	}
	normalize := opts.Normalize
	if normalize == nil {
		normalize = func(s string) string { return s }
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := scorer.New(scorer.WithAligner(opts.Aligner), scorer.WithCharGranularity(charGranularity))
	return &Engine{
		scorer:          s,
		coordinator:     comparison.New(s),
		charGranularity: charGranularity,
		workers:         workers,
		normalize:       normalize,
		logger:          logger,
	}
}

// Normalize applies the engine's normalization policy.
func (e *Engine) Normalize(s string) string { return e.normalize(s) }

// EvaluateDataset scores every utterance. Utterances without a hypothesis
// are reported as InputErrors and left out of the dataset metrics. The only
// error returned is the context's, when it is cancelled before every
// utterance was scheduled.
func (e *Engine) EvaluateDataset(ctx context.Context, utterances []Utterance) (*DatasetReport, error) {
	start := time.Now()
	results := make([]UtteranceResult, len(utterances))

	err := e.forEach(ctx, len(utterances), func(i int) {
		u := utterances[i]
		res := UtteranceResult{Key: u.Key, Index: i}
		if u.Hypothesis == nil {
			res.Err = &InputError{Key: u.Key, Index: i, Field: "hypothesis", Err: ErrMissingHypothesis}
			res.Error = res.Err.Error()
		} else {
			card := e.scorer.Score(e.normalize(u.Reference), e.normalize(*u.Hypothesis))
			res.Scorecard = &card
		}
		results[i] = res
	})
	if err != nil {
		return nil, err
	}

	report := &DatasetReport{Utterances: results}
	word := metricscalculator.NewAccumulator(tokenizer.Word)
	char := metricscalculator.NewAccumulator(e.charGranularity)
	for _, res := range results {
		if res.Err != nil {
			report.Failed++
			e.logger.Debug("utterance skipped", zap.String("key", res.Key), zap.Int("index", res.Index), zap.Error(res.Err))
			continue
		}
		if err := word.Add(res.Scorecard.Word); err != nil {
			return nil, err
		}
		if err := char.Add(res.Scorecard.Char); err != nil {
			return nil, err
		}
		if res.Scorecard.Word.ErrorRate.IsUndefined() {
			metrics.UndefinedRates.Inc()
		}
		report.Scored++
	}
	report.Word = word.Metrics()
	report.Char = char.Metrics()

	metrics.UtterancesScored.WithLabelValues("single").Add(float64(report.Scored))
	metrics.InputErrors.WithLabelValues("single").Add(float64(report.Failed))
	metrics.BatchDuration.WithLabelValues("single").Observe(time.Since(start).Seconds())
	e.logger.Info("dataset evaluated",
		zap.Int("utterances", len(utterances)),
		zap.Int("scored", report.Scored),
		zap.Int("failed", report.Failed),
		zap.String("wer", report.Word.ErrorRate.String()),
		zap.String("cer", report.Char.ErrorRate.String()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return report, nil
}

// CompareDataset scores both hypotheses of every utterance and folds the
// records into a DatasetComparison. An utterance missing either hypothesis
// is an InputError.
func (e *Engine) CompareDataset(ctx context.Context, utterances []ComparisonUtterance) (*ComparisonReport, error) {
	start := time.Now()
	results := make([]ComparisonResult, len(utterances))

	err := e.forEach(ctx, len(utterances), func(i int) {
		u := utterances[i]
		res := ComparisonResult{Key: u.Key, Index: i}
		switch {
		case u.HypothesisA == nil:
			res.Err = &InputError{Key: u.Key, Index: i, Field: "hypothesis_a", Err: ErrMissingHypothesis}
		case u.HypothesisB == nil:
			res.Err = &InputError{Key: u.Key, Index: i, Field: "hypothesis_b", Err: ErrMissingHypothesis}
		default:
			rec := e.coordinator.Compare(u.Key, e.normalize(u.Reference), e.normalize(*u.HypothesisA), e.normalize(*u.HypothesisB))
			res.Record = &rec
		}
		if res.Err != nil {
			res.Error = res.Err.Error()
		}
		results[i] = res
	})
	if err != nil {
		return nil, err
	}

	report := &ComparisonReport{Utterances: results}
	acc := comparison.NewAccumulator(e.charGranularity)
	for _, res := range results {
		if res.Err != nil {
			report.Failed++
			e.logger.Debug("utterance skipped", zap.String("key", res.Key), zap.Int("index", res.Index), zap.Error(res.Err))
			continue
		}
		if err := acc.Add(*res.Record); err != nil {
			return nil, err
		}
		report.Scored++
	}
	report.Summary = acc.Result()

	metrics.UtterancesScored.WithLabelValues("compare").Add(float64(report.Scored))
	metrics.InputErrors.WithLabelValues("compare").Add(float64(report.Failed))
	metrics.BatchDuration.WithLabelValues("compare").Observe(time.Since(start).Seconds())
	e.logger.Info("dataset compared",
		zap.Int("utterances", len(utterances)),
		zap.Int("scored", report.Scored),
		zap.Int("failed", report.Failed),
		zap.Int("a_better", report.Summary.ABetter),
		zap.Int("b_better", report.Summary.BBetter),
		zap.Int("ties", report.Summary.Ties),
		zap.String("wer_delta", report.Summary.WERDelta.String()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return report, nil
}

// forEach runs fn for every index on at most e.workers goroutines. fn must
// only write to its own index.
func (e *Engine) forEach(ctx context.Context, n int, fn func(i int)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			fn(i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
