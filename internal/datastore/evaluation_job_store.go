package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const jobColumns = `id, job_name, job_type, status, normalization, char_granularity, utterances, scored, failed,
	summary, report_object, error_message, created_at, updated_at, started_at, completed_at`

// CreateEvaluationJob inserts a new evaluation job and sets its ID and
// timestamps. An empty status becomes PENDING.
func (s *Store) CreateEvaluationJob(ctx context.Context, job *EvaluationJob) (int64, error) {
	if job.Status == "" {
		job.Status = StatusPending
	}
	now := s.now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	query := s.rebind(`
		INSERT INTO evaluation_jobs (job_name, job_type, status, normalization, char_granularity, utterances,
			scored, failed, summary, report_object, error_message, created_at, updated_at, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)
	var id int64
	err := s.db.QueryRowContext(ctx, query,
		job.JobName,
		job.JobType,
		job.Status,
		job.Normalization,
		job.CharGranularity,
		job.Utterances,
		job.Scored,
		job.Failed,
		string(job.Summary),
		job.ReportObject,
		job.ErrorMessage,
		toMillis(job.CreatedAt),
		toMillis(job.UpdatedAt),
		nullMillis(job.StartedAt),
		nullMillis(job.CompletedAt),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create evaluation job: %w", err)
	}
	job.ID = id
	return id, nil
}

// GetEvaluationJob retrieves an evaluation job by ID.
func (s *Store) GetEvaluationJob(ctx context.Context, id int64) (*EvaluationJob, error) {
	query := s.rebind(`SELECT ` + jobColumns + ` FROM evaluation_jobs WHERE id = ?`)
	job, err := scanJob(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("evaluation job %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get evaluation job: %w", err)
	}
	return job, nil
}

// MarkEvaluationJobRunning moves a job to RUNNING and stamps started_at.
func (s *Store) MarkEvaluationJobRunning(ctx context.Context, id int64) error {
	now := toMillis(s.now())
	query := s.rebind(`UPDATE evaluation_jobs SET status = ?, started_at = ?, updated_at = ? WHERE id = ?`)
	return s.execJobUpdate(ctx, id, "status", query, StatusRunning, now, now, id)
}

// FinishEvaluationJob records the outcome of a run and stamps completed_at.
func (s *Store) FinishEvaluationJob(ctx context.Context, id int64, outcome JobOutcome) error {
	if outcome.Status != StatusCompleted && outcome.Status != StatusFailed {
		return fmt.Errorf("job %d: %q is not a terminal status", id, outcome.Status)
	}
	now := toMillis(s.now())
	query := s.rebind(`
		UPDATE evaluation_jobs
		SET status = ?, scored = ?, failed = ?, summary = ?, report_object = ?, error_message = ?,
			completed_at = ?, updated_at = ?
		WHERE id = ?
	`)
	return s.execJobUpdate(ctx, id, "outcome", query,
		outcome.Status,
		outcome.Scored,
		outcome.Failed,
		string(outcome.Summary),
		outcome.ReportObject,
		outcome.ErrorMessage,
		now,
		now,
		id,
	)
}

func (s *Store) execJobUpdate(ctx context.Context, id int64, what, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s for job %d: %w", what, id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected when updating %s for job %d: %w", what, id, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("evaluation job %d: %w", id, ErrNotFound)
	}
	return nil
}

// ListEvaluationJobs lists evaluation jobs newest first, optionally
// filtered by job_type. A limit of zero or less means no limit.
func (s *Store) ListEvaluationJobs(ctx context.Context, jobType string, limit int) ([]*EvaluationJob, error) {
	query := `SELECT ` + jobColumns + ` FROM evaluation_jobs`
	var args []any
	if jobType != "" {
		query += ` WHERE job_type = ?`
		args = append(args, jobType)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluation jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*EvaluationJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evaluation job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration for evaluation jobs: %w", err)
	}
	return jobs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*EvaluationJob, error) {
	job := &EvaluationJob{}
	var summary string
	var createdAt, updatedAt int64
	var startedAt, completedAt sql.NullInt64
	if err := row.Scan(
		&job.ID,
		&job.JobName,
		&job.JobType,
		&job.Status,
		&job.Normalization,
		&job.CharGranularity,
		&job.Utterances,
		&job.Scored,
		&job.Failed,
		&summary,
		&job.ReportObject,
		&job.ErrorMessage,
		&createdAt,
		&updatedAt,
		&startedAt,
		&completedAt,
	); err != nil {
		return nil, err
	}
	if summary != "" {
		job.Summary = []byte(summary)
	}
	job.CreatedAt = fromMillis(createdAt)
	job.UpdatedAt = fromMillis(updatedAt)
	job.StartedAt = fromNullMillis(startedAt)
	job.CompletedAt = fromNullMillis(completedAt)
	return job, nil
}
