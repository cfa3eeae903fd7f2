// Package pgqueue implements queue.Queue over PostgreSQL using
// SELECT ... FOR UPDATE SKIP LOCKED to claim jobs without a broker,
// the straightforward dependency-free default the gateway falls back to.
package pgqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Priya8975/leadgateway/internal/queue"
)

type Queue struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Queue {
	return &Queue{pool: pool}
}

func (q *Queue) Enqueue(ctx context.Context, leadID string, attempt int, runAfter time.Time) error {
	_, err := q.pool.Exec(ctx, `
		INSERT INTO jobs (id, lead_id, state, attempt, run_after, created_at)
		VALUES (gen_random_uuid(), $1, 'pending', $2, $3, NOW())
	`, leadID, attempt, runAfter)
	if err != nil {
		return fmt.Errorf("enqueuing job for lead %s: %w", leadID, err)
	}
	return nil
}

// Dequeue atomically claims the oldest ready job. Jobs currently locked by
// another dispatcher (SKIP LOCKED) are invisible to this call, so two
// dispatchers racing on the same table never claim the same row.
func (q *Queue) Dequeue(ctx context.Context) (*queue.Job, error) {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning claim transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var job queue.Job
	err = tx.QueryRow(ctx, `
		SELECT id, lead_id, attempt, run_after
		FROM jobs
		WHERE state = 'pending' AND run_after <= NOW()
		ORDER BY run_after
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`).Scan(&job.ID, &job.LeadID, &job.Attempt, &job.RunAfter)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claiming job: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE jobs SET state = 'processing' WHERE id = $1`, job.ID); err != nil {
		return nil, fmt.Errorf("marking job %s processing: %w", job.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}
	return &job, nil
}

func (q *Queue) Complete(ctx context.Context, jobID string) error {
	_, err := q.pool.Exec(ctx, `UPDATE jobs SET state = 'completed' WHERE id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("completing job %s: %w", jobID, err)
	}
	return nil
}

func (q *Queue) Retry(ctx context.Context, jobID string, nextAttempt int, runAfter time.Time) error {
	_, err := q.pool.Exec(ctx, `
		UPDATE jobs SET state = 'pending', attempt = $2, run_after = $3 WHERE id = $1
	`, jobID, nextAttempt, runAfter)
	if err != nil {
		return fmt.Errorf("rescheduling job %s: %w", jobID, err)
	}
	return nil
}

func (q *Queue) Fail(ctx context.Context, jobID string) error {
	_, err := q.pool.Exec(ctx, `UPDATE jobs SET state = 'failed' WHERE id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("failing job %s: %w", jobID, err)
	}
	return nil
}

func (q *Queue) Health(ctx context.Context) error {
	return q.pool.Ping(ctx)
}
