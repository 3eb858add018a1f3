package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/signflowhq/signflow/internal/core/domain"
)

// Job queue with lease semantics: workers claim the oldest pending job
// for a bounded lease, so a crashed worker's job becomes claimable again
// once the lease expires.

const jobColumns = `id, job_type, payload, status, error_message, leased_until, created_at, updated_at`

func (r *Repository) Enqueue(ctx context.Context, jobType string, args domain.SigningJobArgs) (domain.JobID, error) {
	payload, err := domain.EncodeArgs(args)
	if err != nil {
		return "", fmt.Errorf("encode job args: %w", err)
	}

	id := domain.JobID(uuid.New().String())
	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO signing_jobs (id, job_type, payload, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(id), jobType, payload, string(domain.JobStatusPending), now, now)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repository) Lease(ctx context.Context, leaseFor time.Duration) (domain.Job, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Job{}, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	row := tx.QueryRowContext(ctx, `
		SELECT `+jobColumns+`
		FROM signing_jobs
		WHERE status = ? AND (leased_until IS NULL OR leased_until < ?)
		ORDER BY created_at
		LIMIT 1
	`, string(domain.JobStatusPending), now)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return domain.Job{}, domain.ErrJobNotFound
	}
	if err != nil {
		return domain.Job{}, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE signing_jobs SET leased_until = ?, updated_at = ? WHERE id = ?
	`, now.Add(leaseFor), now, string(job.ID))
	if err != nil {
		return domain.Job{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Job{}, err
	}
	return job, nil
}

func (r *Repository) Complete(ctx context.Context, id domain.JobID) error {
	return r.setJobStatus(ctx, id, domain.JobStatusCompleted, "")
}

func (r *Repository) Fail(ctx context.Context, id domain.JobID, reason string) error {
	return r.setJobStatus(ctx, id, domain.JobStatusFailed, reason)
}

func (r *Repository) setJobStatus(ctx context.Context, id domain.JobID, status domain.JobStatus, errMsg string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE signing_jobs SET status = ?, error_message = ?, updated_at = ? WHERE id = ?
	`, string(status), errMsg, time.Now().UTC(), string(id))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}
