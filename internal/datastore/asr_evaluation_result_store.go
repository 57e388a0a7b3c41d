package datastore

import (
	"context"
	"fmt"
)

// CreateASREvaluationResults inserts the rows of one job in a single
// transaction and sets their IDs.
func (s *Store) CreateASREvaluationResults(ctx context.Context, results []*ASREvaluationResult) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin result transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.rebind(`
		INSERT INTO asr_evaluation_results (
			job_id, utterance_index, utterance_key, model,
			reference_text, recognized_text, word_counts, char_counts,
			wer_numerator, wer_denominator, wer_undefined,
			cer_numerator, cer_denominator, cer_undefined,
			classification, error_message, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`))
	if err != nil {
		return fmt.Errorf("failed to prepare result insert: %w", err)
	}
	defer stmt.Close()

	now := s.now().UTC()
	for _, result := range results {
		result.CreatedAt = now
		var id int64
		err := stmt.QueryRowContext(ctx,
			result.JobID,
			result.UtteranceIndex,
			result.UtteranceKey,
			result.Model,
			result.ReferenceText,
			result.RecognizedText,
			string(result.WordCounts),
			string(result.CharCounts),
			result.WER.Numerator,
			result.WER.Denominator,
			boolToInt(result.WER.Undefined),
			result.CER.Numerator,
			result.CER.Denominator,
			boolToInt(result.CER.Undefined),
			result.Classification,
			result.ErrorMessage,
			toMillis(now),
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("failed to create ASR evaluation result for utterance %d: %w", result.UtteranceIndex, err)
		}
		result.ID = id
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit results: %w", err)
	}
	return nil
}

// GetASREvaluationResultsForJob retrieves the results of a job in
// utterance order. Comparison rows for model a precede model b.
func (s *Store) GetASREvaluationResultsForJob(ctx context.Context, jobID int64) ([]*ASREvaluationResult, error) {
	query := s.rebind(`
		SELECT id, job_id, utterance_index, utterance_key, model,
		       reference_text, recognized_text, word_counts, char_counts,
		       wer_numerator, wer_denominator, wer_undefined,
		       cer_numerator, cer_denominator, cer_undefined,
		       classification, error_message, created_at
		FROM asr_evaluation_results
		WHERE job_id = ?
		ORDER BY utterance_index ASC, model ASC
	`)
	rows, err := s.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ASR evaluation results for job %d: %w", jobID, err)
	}
	defer rows.Close()

	results := []*ASREvaluationResult{}
	for rows.Next() {
		res := &ASREvaluationResult{}
		var wordCounts, charCounts string
		var werUndefined, cerUndefined int
		var createdAt int64
		if err := rows.Scan(
			&res.ID,
			&res.JobID,
			&res.UtteranceIndex,
			&res.UtteranceKey,
			&res.Model,
			&res.ReferenceText,
			&res.RecognizedText,
			&wordCounts,
			&charCounts,
			&res.WER.Numerator,
			&res.WER.Denominator,
			&werUndefined,
			&res.CER.Numerator,
			&res.CER.Denominator,
			&cerUndefined,
			&res.Classification,
			&res.ErrorMessage,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ASR evaluation result row: %w", err)
		}
		if wordCounts != "" {
			res.WordCounts = []byte(wordCounts)
		}
		if charCounts != "" {
			res.CharCounts = []byte(charCounts)
		}
		res.WER.Undefined = werUndefined != 0
		res.CER.Undefined = cerUndefined != 0
		res.CreatedAt = fromMillis(createdAt)
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration for ASR evaluation results: %w", err)
	}
	return results, nil
}
