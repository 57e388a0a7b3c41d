package jobmanagement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"speech-data-explorer/backend/internal/coreengine/evaluationengine"
	"speech-data-explorer/backend/internal/coreengine/metricscalculator"
	"speech-data-explorer/backend/internal/coreengine/scorer"
	"speech-data-explorer/backend/internal/coreengine/tokenizer"
	"speech-data-explorer/backend/internal/datastore"
	"speech-data-explorer/backend/internal/metrics"
	"speech-data-explorer/backend/internal/textnorm"
)

// ErrInvalidRequest wraps every validation failure of a job request.
var ErrInvalidRequest = errors.New("invalid job request")

// ErrArchiveDisabled is returned when a report is requested but no archive
// is configured.
var ErrArchiveDisabled = errors.New("report archive disabled")

// JobStore is the persistence the service needs; *datastore.Store
// implements it.
type JobStore interface {
	CreateEvaluationJob(ctx context.Context, job *datastore.EvaluationJob) (int64, error)
	MarkEvaluationJobRunning(ctx context.Context, id int64) error
	FinishEvaluationJob(ctx context.Context, id int64, outcome datastore.JobOutcome) error
	GetEvaluationJob(ctx context.Context, id int64) (*datastore.EvaluationJob, error)
	ListEvaluationJobs(ctx context.Context, jobType string, limit int) ([]*datastore.EvaluationJob, error)
	CreateASREvaluationResults(ctx context.Context, results []*datastore.ASREvaluationResult) error
	GetASREvaluationResultsForJob(ctx context.Context, jobID int64) ([]*datastore.ASREvaluationResult, error)
}

// ReportArchive stores finished job reports; *objectstore.MinioClient
// implements it.
type ReportArchive interface {
	PutReport(ctx context.Context, report any) (string, error)
	GetReportReader(ctx context.Context, objectName string) (io.ReadCloser, int64, error)
	DeleteReport(ctx context.Context, objectName string) error
}

// CreateJobRequest describes a batch job. Single jobs read Utterances,
// compare jobs read Comparisons.
type CreateJobRequest struct {
	JobName         string                                 `json:"job_name"`
	JobType         string                                 `json:"job_type"`
	Normalization   string                                 `json:"normalization"`
	CharGranularity string                                 `json:"char_granularity"`
	Utterances      []evaluationengine.Utterance           `json:"utterances"`
	Comparisons     []evaluationengine.ComparisonUtterance `json:"comparisons"`
}

// ServiceOptions configures a JobService.
type ServiceOptions struct {
	Workers              int
	CharGranularity      tokenizer.Granularity
	DefaultNormalization string
	Aligner              scorer.AlignFunc
	MaxUtterances        int
	Logger               *zap.Logger
}

// JobService creates evaluation jobs and runs them synchronously.
type JobService struct {
	store   JobStore
	archive ReportArchive
	opts    ServiceOptions
	logger  *zap.Logger
}

// NewJobService creates a new JobService. archive may be nil, in which
// case reports are not archived.
func NewJobService(store JobStore, archive ReportArchive, opts ServiceOptions) *JobService {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.CharGranularity != tokenizer.Grapheme {
		opts.CharGranularity = tokenizer.Char
	}
	return &JobService{store: store, archive: archive, opts: opts, logger: logger}
}

type archivedReport struct {
	JobID   int64  `json:"job_id"`
	JobType string `json:"job_type"`
	Report  any    `json:"report"`
}

type singleSummary struct {
	Word metricscalculator.DatasetMetrics `json:"word"`
	Char metricscalculator.DatasetMetrics `json:"char"`
}

type plan struct {
	jobType         string
	normalization   string
	normalize       textnorm.Func
	charGranularity tokenizer.Granularity
	utterances      int
}

func (s *JobService) validate(req *CreateJobRequest) (plan, error) {
	p := plan{jobType: req.JobType}
	if p.jobType == "" {
		p.jobType = datastore.JobTypeSingle
	}

	switch p.jobType {
	case datastore.JobTypeSingle:
		p.utterances = len(req.Utterances)
		if len(req.Comparisons) > 0 {
			return p, fmt.Errorf("%w: comparisons given for a single job", ErrInvalidRequest)
		}
	case datastore.JobTypeCompare:
		p.utterances = len(req.Comparisons)
		if len(req.Utterances) > 0 {
			return p, fmt.Errorf("%w: utterances given for a compare job", ErrInvalidRequest)
		}
	default:
		return p, fmt.Errorf("%w: unknown job_type %q", ErrInvalidRequest, req.JobType)
	}
	if p.utterances == 0 {
		return p, fmt.Errorf("%w: no utterances", ErrInvalidRequest)
	}
	if s.opts.MaxUtterances > 0 && p.utterances > s.opts.MaxUtterances {
		return p, fmt.Errorf("%w: %d utterances exceeds the limit of %d", ErrInvalidRequest, p.utterances, s.opts.MaxUtterances)
	}

	p.normalization = req.Normalization
	if p.normalization == "" {
		p.normalization = s.opts.DefaultNormalization
	}
	if p.normalization == "" {
		p.normalization = textnorm.None
	}
	normalize, err := textnorm.Lookup(p.normalization)
	if err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	p.normalize = normalize

	p.charGranularity = s.opts.CharGranularity
	if req.CharGranularity != "" {
		g, err := tokenizer.ParseGranularity(req.CharGranularity)
		if err != nil || g == tokenizer.Word {
			return p, fmt.Errorf("%w: char_granularity must be char or grapheme", ErrInvalidRequest)
		}
		p.charGranularity = g
	}
	return p, nil
}

// CreateAndRunJob validates req, stores a PENDING job, runs it and records
// the outcome. The returned job is the final stored state. When the run
// itself fails the job is still returned, with status FAILED, alongside
// the error.
func (s *JobService) CreateAndRunJob(ctx context.Context, req CreateJobRequest) (*datastore.EvaluationJob, error) {
	start := time.Now()
	p, err := s.validate(&req)
	if err != nil {
		return nil, err
	}

	job := &datastore.EvaluationJob{
		JobName:         req.JobName,
		JobType:         p.jobType,
		Status:          datastore.StatusPending,
		Normalization:   p.normalization,
		CharGranularity: p.charGranularity.String(),
		Utterances:      p.utterances,
	}
	jobID, err := s.store.CreateEvaluationJob(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("failed to create evaluation job in datastore: %w", err)
	}
	logger := s.logger.With(zap.Int64("job_id", jobID), zap.String("job_type", p.jobType))
	logger.Info("job created", zap.Int("utterances", p.utterances), zap.String("normalization", p.normalization))

	if err := s.store.MarkEvaluationJobRunning(ctx, jobID); err != nil {
		s.fail(ctx, logger, jobID, err)
		return s.finalState(ctx, job, fmt.Errorf("failed to update job status to RUNNING: %w", err))
	}

	outcome, runErr := s.run(ctx, jobID, p, req)
	if runErr != nil {
		s.fail(ctx, logger, jobID, runErr)
		return s.finalState(ctx, job, runErr)
	}

	if err := s.store.FinishEvaluationJob(context.WithoutCancel(ctx), jobID, outcome); err != nil {
		logger.Error("failed to record job outcome", zap.Error(err))
		s.discardReport(ctx, logger, outcome.ReportObject)
		return s.finalState(ctx, job, fmt.Errorf("failed to record job outcome: %w", err))
	}
	metrics.JobsFinished.WithLabelValues(datastore.StatusCompleted).Inc()
	logger.Info("job completed",
		zap.Int("scored", outcome.Scored),
		zap.Int("failed", outcome.Failed),
		zap.String("report_object", outcome.ReportObject),
		zap.Duration("elapsed", time.Since(start)),
	)
	return s.finalState(ctx, job, nil)
}

func (s *JobService) run(ctx context.Context, jobID int64, p plan, req CreateJobRequest) (datastore.JobOutcome, error) {
	engine := evaluationengine.New(evaluationengine.Options{
		Workers:         s.opts.Workers,
		Normalize:       p.normalize,
		CharGranularity: p.charGranularity,
		Aligner:         s.opts.Aligner,
		Logger:          s.logger,
	})

	var (
		report  any
		summary any
		rows    []*datastore.ASREvaluationResult
		outcome = datastore.JobOutcome{Status: datastore.StatusCompleted}
	)
	switch p.jobType {
	case datastore.JobTypeCompare:
		r, err := engine.CompareDataset(ctx, req.Comparisons)
		if err != nil {
			return outcome, fmt.Errorf("comparison run: %w", err)
		}
		report, summary = r, r.Summary
		outcome.Scored, outcome.Failed = r.Scored, r.Failed
		rows, err = comparisonRows(jobID, req.Comparisons, r)
		if err != nil {
			return outcome, err
		}
	default:
		r, err := engine.EvaluateDataset(ctx, req.Utterances)
		if err != nil {
			return outcome, fmt.Errorf("evaluation run: %w", err)
		}
		report, summary = r, singleSummary{Word: r.Word, Char: r.Char}
		outcome.Scored, outcome.Failed = r.Scored, r.Failed
		rows, err = singleRows(jobID, req.Utterances, r)
		if err != nil {
			return outcome, err
		}
	}

	if err := s.store.CreateASREvaluationResults(ctx, rows); err != nil {
		return outcome, fmt.Errorf("failed to store results: %w", err)
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return outcome, fmt.Errorf("failed to encode summary: %w", err)
	}
	outcome.Summary = data

	if s.archive != nil {
		name, err := s.archive.PutReport(ctx, archivedReport{JobID: jobID, JobType: p.jobType, Report: report})
		if err != nil {
			// the results are already stored; a missing archive copy does not fail the job
			s.logger.Warn("failed to archive report", zap.Int64("job_id", jobID), zap.Error(err))
		} else {
			outcome.ReportObject = name
		}
	}
	return outcome, nil
}

// discardReport removes an archived report that no job row points to.
func (s *JobService) discardReport(ctx context.Context, logger *zap.Logger, objectName string) {
	if s.archive == nil || objectName == "" {
		return
	}
	if err := s.archive.DeleteReport(context.WithoutCancel(ctx), objectName); err != nil {
		logger.Warn("failed to delete orphaned report", zap.String("report_object", objectName), zap.Error(err))
	}
}

func (s *JobService) fail(ctx context.Context, logger *zap.Logger, jobID int64, cause error) {
	logger.Error("job failed", zap.Error(cause))
	metrics.JobsFinished.WithLabelValues(datastore.StatusFailed).Inc()
	err := s.store.FinishEvaluationJob(context.WithoutCancel(ctx), jobID, datastore.JobOutcome{
		Status:       datastore.StatusFailed,
		ErrorMessage: cause.Error(),
	})
	if err != nil {
		logger.Error("failed to mark job FAILED", zap.Error(err))
	}
}

// finalState re-reads the job, falling back to the local copy when the
// read fails.
func (s *JobService) finalState(ctx context.Context, job *datastore.EvaluationJob, runErr error) (*datastore.EvaluationJob, error) {
	finalJob, err := s.store.GetEvaluationJob(context.WithoutCancel(ctx), job.ID)
	if err != nil {
		s.logger.Warn("failed to fetch final job state", zap.Int64("job_id", job.ID), zap.Error(err))
		if runErr != nil {
			job.Status = datastore.StatusFailed
		}
		return job, runErr
	}
	return finalJob, runErr
}

// GetJob returns one job.
func (s *JobService) GetJob(ctx context.Context, id int64) (*datastore.EvaluationJob, error) {
	return s.store.GetEvaluationJob(ctx, id)
}

// ListJobs lists jobs newest first.
func (s *JobService) ListJobs(ctx context.Context, jobType string, limit int) ([]*datastore.EvaluationJob, error) {
	return s.store.ListEvaluationJobs(ctx, jobType, limit)
}

// GetJobResults returns the per-utterance rows of an existing job.
func (s *JobService) GetJobResults(ctx context.Context, id int64) ([]*datastore.ASREvaluationResult, error) {
	if _, err := s.store.GetEvaluationJob(ctx, id); err != nil {
		return nil, err
	}
	return s.store.GetASREvaluationResultsForJob(ctx, id)
}

// OpenJobReport opens the archived report of a job.
func (s *JobService) OpenJobReport(ctx context.Context, id int64) (io.ReadCloser, int64, error) {
	if s.archive == nil {
		return nil, 0, ErrArchiveDisabled
	}
	job, err := s.store.GetEvaluationJob(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	if job.ReportObject == "" {
		return nil, 0, fmt.Errorf("job %d has no archived report: %w", id, datastore.ErrNotFound)
	}
	return s.archive.GetReportReader(ctx, job.ReportObject)
}

func rateColumns(r metricscalculator.Rate) datastore.RateColumns {
	return datastore.RateColumns{Numerator: r.Numerator, Denominator: r.Denominator, Undefined: r.Undefined}
}

func scorecardRow(jobID int64, index int, key, model, reference string, hypothesis *string, card *scorer.Scorecard) (*datastore.ASREvaluationResult, error) {
	wordCounts, err := json.Marshal(card.Word.Counts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode word counts: %w", err)
	}
	charCounts, err := json.Marshal(card.Char.Counts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode char counts: %w", err)
	}
	return &datastore.ASREvaluationResult{
		JobID:          jobID,
		UtteranceIndex: index,
		UtteranceKey:   key,
		Model:          model,
		ReferenceText:  reference,
		RecognizedText: hypothesis,
		WordCounts:     wordCounts,
		CharCounts:     charCounts,
		WER:            rateColumns(card.Word.ErrorRate),
		CER:            rateColumns(card.Char.ErrorRate),
	}, nil
}

func singleRows(jobID int64, utterances []evaluationengine.Utterance, report *evaluationengine.DatasetReport) ([]*datastore.ASREvaluationResult, error) {
	rows := make([]*datastore.ASREvaluationResult, 0, len(report.Utterances))
	for _, res := range report.Utterances {
		u := utterances[res.Index]
		if res.Err != nil {
			rows = append(rows, &datastore.ASREvaluationResult{
				JobID:          jobID,
				UtteranceIndex: res.Index,
				UtteranceKey:   res.Key,
				ReferenceText:  u.Reference,
				RecognizedText: u.Hypothesis,
				ErrorMessage:   res.Error,
			})
			continue
		}
		row, err := scorecardRow(jobID, res.Index, res.Key, datastore.ModelSingle, u.Reference, u.Hypothesis, res.Scorecard)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func comparisonRows(jobID int64, utterances []evaluationengine.ComparisonUtterance, report *evaluationengine.ComparisonReport) ([]*datastore.ASREvaluationResult, error) {
	rows := make([]*datastore.ASREvaluationResult, 0, 2*len(report.Utterances))
	for _, res := range report.Utterances {
		u := utterances[res.Index]
		if res.Err != nil {
			rows = append(rows, &datastore.ASREvaluationResult{
				JobID:          jobID,
				UtteranceIndex: res.Index,
				UtteranceKey:   res.Key,
				ReferenceText:  u.Reference,
				ErrorMessage:   res.Error,
			})
			continue
		}
		for _, side := range []struct {
			model      string
			hypothesis *string
			card       *scorer.Scorecard
		}{
			{datastore.ModelA, u.HypothesisA, &res.Record.A},
			{datastore.ModelB, u.HypothesisB, &res.Record.B},
		} {
			row, err := scorecardRow(jobID, res.Index, res.Key, side.model, u.Reference, side.hypothesis, side.card)
			if err != nil {
				return nil, err
			}
			row.Classification = string(res.Record.Classification)
			rows = append(rows, row)
		}
	}
	return rows, nil
}
