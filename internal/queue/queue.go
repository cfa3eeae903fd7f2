// Package queue defines the job-queue contract the delivery pipeline runs
// against. Two transports implement it: pgqueue (PostgreSQL, SELECT ...
// FOR UPDATE SKIP LOCKED) and redisqueue (a Redis sorted set), selected at
// startup by configuration.
package queue

import (
	"context"
	"time"
)

// Job is the queue's view of a unit of work: enough to claim, deliver, and
// either complete, retry, or fail it. It is distinct from domain.Job,
// which is the persisted record — a transport may carry extra bookkeeping
// fields domain.Job doesn't need.
type Job struct {
	ID       string
	LeadID   string
	Attempt  int
	RunAfter time.Time
}

// Queue is the contract the processor's dispatcher polls. Implementations
// must make Dequeue safe for concurrent callers: two dispatchers polling
// the same queue must never receive the same ready job.
type Queue interface {
	// Enqueue schedules lead for delivery no earlier than runAfter, at the
	// given attempt number.
	Enqueue(ctx context.Context, leadID string, attempt int, runAfter time.Time) error

	// Dequeue claims up to one ready job (RunAfter <= now) and marks it
	// in-flight. It returns (nil, nil) when no job is ready.
	Dequeue(ctx context.Context) (*Job, error)

	// Complete closes out a job whose processing finished: the lead was
	// delivered, or screening ended it. The job is never dispatched again.
	Complete(ctx context.Context, jobID string) error

	// Retry re-schedules job for a later attempt.
	Retry(ctx context.Context, jobID string, nextAttempt int, runAfter time.Time) error

	// Fail closes out a job that cannot succeed: its lead is missing, its
	// delivery failed non-retriably, or its attempts are exhausted. The job
	// is never dispatched again.
	Fail(ctx context.Context, jobID string) error

	// Health reports whether the transport backing this queue is reachable.
	Health(ctx context.Context) error
}
