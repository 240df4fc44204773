package db

import (
	"context"
	"fmt"
	"time"
)

// JobRecord is the orchestrator's view of one processing job row.
type JobRecord struct {
	JobID        int64
	JobUUID      string
	EventID      int64
	State        string
	AttemptCount int
	ErrorClass   *string
	LastError    *string
	QueuedAt     time.Time
	StartedAt    *time.Time
	FinishedAt   *time.Time
}

const jobSelectColumns = `
job_id, job_uuid::text, event_id, state::text, attempt_count,
error_class, last_error, queued_at, started_at, finished_at
`

// InsertJob queues a new processing job for an event. The partial unique index
// on active jobs makes a second concurrent insert fail with a unique violation.
func (p *Pool) InsertJob(ctx context.Context, eventID int64) (JobRecord, error) {
	const q = `
INSERT INTO convene.processing_jobs (event_id, state, queued_at, updated_at)
VALUES ($1, 'queued', now(), now())
RETURNING ` + jobSelectColumns

	return scanJobRecord(p.QueryRow(ctx, q, eventID))
}

// GetJobByUUID loads one job by its public identifier.
func (p *Pool) GetJobByUUID(ctx context.Context, jobUUID string) (JobRecord, error) {
	const q = `
SELECT ` + jobSelectColumns + `
FROM convene.processing_jobs
WHERE job_uuid = $1::uuid
`

	return scanJobRecord(p.QueryRow(ctx, q, jobUUID))
}

// GetActiveJobForEvent returns the single non-terminal job for an event, if any.
func (p *Pool) GetActiveJobForEvent(ctx context.Context, eventID int64) (JobRecord, bool, error) {
	const q = `
SELECT ` + jobSelectColumns + `
FROM convene.processing_jobs
WHERE event_id = $1
  AND state NOT IN ('persisted', 'failed', 'cancelled')
`

	rec, err := scanJobRecord(p.QueryRow(ctx, q, eventID))
	if err != nil {
		if IsNoRows(err) {
			return JobRecord{}, false, nil
		}
		return JobRecord{}, false, err
	}
	return rec, true, nil
}

// ClaimQueuedJobs atomically moves up to limit queued jobs into the
// extracting state and returns them. SKIP LOCKED keeps concurrent dispatchers
// from claiming the same job twice.
func (p *Pool) ClaimQueuedJobs(ctx context.Context, limit int) ([]JobRecord, error) {
	if limit <= 0 {
		return nil, nil
	}

	const q = `
UPDATE convene.processing_jobs
SET state = 'extracting',
    started_at = COALESCE(started_at, now()),
    updated_at = now()
WHERE job_id IN (
    SELECT job_id
    FROM convene.processing_jobs
    WHERE state = 'queued'
    ORDER BY queued_at, job_id
    LIMIT $1
    FOR UPDATE SKIP LOCKED
)
RETURNING ` + jobSelectColumns

	rows, err := p.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("claim queued jobs: %w", err)
	}
	defer rows.Close()

	var jobs []JobRecord
	for rows.Next() {
		var rec JobRecord
		if err := rows.Scan(
			&rec.JobID,
			&rec.JobUUID,
			&rec.EventID,
			&rec.State,
			&rec.AttemptCount,
			&rec.ErrorClass,
			&rec.LastError,
			&rec.QueuedAt,
			&rec.StartedAt,
			&rec.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan claimed job: %w", err)
		}
		jobs = append(jobs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claimed jobs: %w", err)
	}
	return jobs, nil
}

// AdvanceJobState moves a job into a non-terminal working state.
func (p *Pool) AdvanceJobState(ctx context.Context, jobID int64, state string) error {
	const q = `
UPDATE convene.processing_jobs
SET state = $2::convene.job_state,
    started_at = COALESCE(started_at, now()),
    updated_at = now()
WHERE job_id = $1
  AND state NOT IN ('persisted', 'failed', 'cancelled')
`

	tag, err := p.Exec(ctx, q, jobID, state)
	if err != nil {
		return fmt.Errorf("advance job %d to %s: %w", jobID, state, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("advance job %d to %s: job is terminal or missing", jobID, state)
	}
	return nil
}

// MarkJobPersisted finishes a job successfully.
func (p *Pool) MarkJobPersisted(ctx context.Context, jobID int64) error {
	const q = `
UPDATE convene.processing_jobs
SET state = 'persisted',
    finished_at = now(),
    updated_at = now()
WHERE job_id = $1
  AND state NOT IN ('persisted', 'failed', 'cancelled')
`

	tag, err := p.Exec(ctx, q, jobID)
	if err != nil {
		return fmt.Errorf("mark job %d persisted: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark job %d persisted: job is terminal or missing", jobID)
	}
	return nil
}

// MarkJobFailed finishes a job with an error class and trimmed message.
func (p *Pool) MarkJobFailed(ctx context.Context, jobID int64, errorClass, message string) error {
	const maxErrorLength = 4000
	if len(message) > maxErrorLength {
		message = message[:maxErrorLength]
	}

	const q = `
UPDATE convene.processing_jobs
SET state = 'failed',
    error_class = $2,
    last_error = $3,
    finished_at = now(),
    updated_at = now()
WHERE job_id = $1
  AND state NOT IN ('persisted', 'failed', 'cancelled')
`

	tag, err := p.Exec(ctx, q, jobID, errorClass, message)
	if err != nil {
		return fmt.Errorf("mark job %d failed: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark job %d failed: job is terminal or missing", jobID)
	}
	return nil
}

// CancelJob cancels a job if and only if it is still queued.
func (p *Pool) CancelJob(ctx context.Context, jobUUID string) (bool, error) {
	const q = `
UPDATE convene.processing_jobs
SET state = 'cancelled',
    finished_at = now(),
    updated_at = now()
WHERE job_uuid = $1::uuid
  AND state = 'queued'
`

	tag, err := p.Exec(ctx, q, jobUUID)
	if err != nil {
		return false, fmt.Errorf("cancel job %s: %w", jobUUID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// IncrementJobAttempt bumps the attempt counter and returns the new value.
func (p *Pool) IncrementJobAttempt(ctx context.Context, jobID int64) (int, error) {
	const q = `
UPDATE convene.processing_jobs
SET attempt_count = attempt_count + 1,
    updated_at = now()
WHERE job_id = $1
RETURNING attempt_count
`

	var attempts int
	if err := p.QueryRow(ctx, q, jobID).Scan(&attempts); err != nil {
		return 0, fmt.Errorf("increment job %d attempt: %w", jobID, err)
	}
	return attempts, nil
}

// RequeueJob returns a non-terminal job to the queued state after a worker
// crash so it can be picked up exactly once more.
func (p *Pool) RequeueJob(ctx context.Context, jobID int64) error {
	const q = `
UPDATE convene.processing_jobs
SET state = 'queued',
    updated_at = now()
WHERE job_id = $1
  AND state NOT IN ('persisted', 'failed', 'cancelled')
`

	tag, err := p.Exec(ctx, q, jobID)
	if err != nil {
		return fmt.Errorf("requeue job %d: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("requeue job %d: job is terminal or missing", jobID)
	}
	return nil
}

func scanJobRecord(row *Row) (JobRecord, error) {
	var rec JobRecord
	err := row.Scan(
		&rec.JobID,
		&rec.JobUUID,
		&rec.EventID,
		&rec.State,
		&rec.AttemptCount,
		&rec.ErrorClass,
		&rec.LastError,
		&rec.QueuedAt,
		&rec.StartedAt,
		&rec.FinishedAt,
	)
	if err != nil {
		return JobRecord{}, err
	}
	return rec, nil
}
