package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Job is a row in the background job queue.
type Job struct {
	ID           uuid.UUID
	JobType      string
	Payload      []byte
	Status       string
	Priority     int32
	Attempts     int32
	MaxAttempts  int32
	ScheduledAt  time.Time
	StartedAt    sql.NullTime
	CompletedAt  sql.NullTime
	ErrorMessage sql.NullString
	CreatedAt    time.Time
}

// EnqueueJobParams are the parameters for queuing a new job.
type EnqueueJobParams struct {
	JobType     string
	Payload     []byte
	Priority    int32
	MaxAttempts int32
	ScheduledAt time.Time
}

// EnqueueJob inserts a pending job and returns it.
func (s *Store) EnqueueJob(ctx context.Context, params EnqueueJobParams) (Job, error) {
	const q = `
		INSERT INTO jobs (id, job_type, payload, status, priority, max_attempts, scheduled_at)
		VALUES ($1, $2, $3, 'pending', $4, $5, $6)
		RETURNING id, job_type, payload, status, priority, attempts, max_attempts,
		          scheduled_at, started_at, completed_at, error_message, created_at`

	row := s.db.QueryRowContext(ctx, q,
		uuid.New(), params.JobType, params.Payload,
		params.Priority, params.MaxAttempts, params.ScheduledAt,
	)
	return scanJob(row)
}

// DequeueJob claims the next runnable job. SKIP LOCKED lets concurrent
// workers claim different rows without blocking each other. Returns
// sql.ErrNoRows when nothing is runnable.
func (s *Store) DequeueJob(ctx context.Context) (Job, error) {
	const q = `
		SELECT id, job_type, payload, status, priority, attempts, max_attempts,
		       scheduled_at, started_at, completed_at, error_message, created_at
		FROM jobs
		WHERE status = 'pending' AND scheduled_at <= NOW()
		ORDER BY priority DESC, scheduled_at
		LIMIT 1
		FOR UPDATE SKIP LOCKED`

	return scanJob(s.db.QueryRowContext(ctx, q))
}

// UpdateJobStarted marks a claimed job as running and counts the attempt.
func (s *Store) UpdateJobStarted(ctx context.Context, id uuid.UUID) error {
	const q = `
		UPDATE jobs
		SET status = 'running', started_at = NOW(), attempts = attempts + 1
		WHERE id = $1`

	if _, err := s.db.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("update job started: %w", err)
	}
	return nil
}

// UpdateJobCompleted marks a job as completed.
func (s *Store) UpdateJobCompleted(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE jobs SET status = 'completed', completed_at = NOW() WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("update job completed: %w", err)
	}
	return nil
}

// UpdateJobFailedParams carries the failure outcome.
type UpdateJobFailedParams struct {
	ID           uuid.UUID
	ErrorMessage sql.NullString
	// Permanent skips the retry reschedule even if attempts remain.
	Permanent bool
}

// UpdateJobFailed marks a job failed or reschedules it with exponential
// backoff while attempts remain.
func (s *Store) UpdateJobFailed(ctx context.Context, params UpdateJobFailedParams) error {
	const q = `
		UPDATE jobs
		SET status = CASE
				WHEN $3 OR attempts >= max_attempts THEN 'failed'
				ELSE 'pending'
			END,
			scheduled_at = CASE
				WHEN $3 OR attempts >= max_attempts THEN scheduled_at
				ELSE NOW() + (INTERVAL '30 seconds' * POWER(2, attempts))
			END,
			error_message = $2
		WHERE id = $1`

	if _, err := s.db.ExecContext(ctx, q, params.ID, params.ErrorMessage, params.Permanent); err != nil {
		return fmt.Errorf("update job failed: %w", err)
	}
	return nil
}

// RecoverStaleJobs resets running jobs older than the threshold (in seconds)
// back to pending. Handles workers that crashed mid-job.
func (s *Store) RecoverStaleJobs(ctx context.Context, thresholdSeconds float64) (int64, error) {
	const q = `
		UPDATE jobs
		SET status = 'pending', started_at = NULL
		WHERE status = 'running'
		  AND started_at < NOW() - ($1 * INTERVAL '1 second')`

	res, err := s.db.ExecContext(ctx, q, thresholdSeconds)
	if err != nil {
		return 0, fmt.Errorf("recover stale jobs: %w", err)
	}
	return res.RowsAffected()
}

func scanJob(row *sql.Row) (Job, error) {
	var j Job
	err := row.Scan(
		&j.ID, &j.JobType, &j.Payload, &j.Status, &j.Priority,
		&j.Attempts, &j.MaxAttempts, &j.ScheduledAt,
		&j.StartedAt, &j.CompletedAt, &j.ErrorMessage, &j.CreatedAt,
	)
	if err != nil {
		return Job{}, err
	}
	return j, nil
}
