// Package redisqueue implements queue.Queue over a Redis sorted set: jobs
// ready to run sit in a ZSET scored by their run-after timestamp, claimed
// by removing them (ZREM returning 0 means another dispatcher already
// claimed it). This is the alternate transport behind the same interface
// pgqueue implements, for deployments that already run Redis for other
// purposes and would rather not add SKIP LOCKED polling load to Postgres.
package redisqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Priya8975/leadgateway/internal/queue"
)

const (
	pendingKey    = "leadgateway:jobs:pending"
	processingKey = "leadgateway:jobs:processing"
)

type wireJob struct {
	ID       string    `json:"id"`
	LeadID   string    `json:"lead_id"`
	Attempt  int       `json:"attempt"`
	RunAfter time.Time `json:"run_after"`
}

type Queue struct {
	client *redis.Client
}

func New(client *redis.Client) *Queue {
	return &Queue{client: client}
}

func (q *Queue) Enqueue(ctx context.Context, leadID string, attempt int, runAfter time.Time) error {
	job := wireJob{
		ID:       uuid.NewString(),
		LeadID:   leadID,
		Attempt:  attempt,
		RunAfter: runAfter,
	}
	encoded, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding job for lead %s: %w", leadID, err)
	}
	if err := q.client.ZAdd(ctx, pendingKey, redis.Z{
		Score:  float64(runAfter.UnixMicro()),
		Member: string(encoded),
	}).Err(); err != nil {
		return fmt.Errorf("enqueuing job for lead %s: %w", leadID, err)
	}
	return nil
}

// Dequeue claims the oldest ready job by removing it from the pending
// ZSET and parking it in a processing hash, keyed by job ID, so Complete
// / Retry / Fail can locate it afterward.
func (q *Queue) Dequeue(ctx context.Context) (*queue.Job, error) {
	now := float64(time.Now().UnixMicro())

	results, err := q.client.ZRangeByScoreWithScores(ctx, pendingKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%.0f", now),
		Count: 1,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("polling pending jobs: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	member := results[0].Member.(string)
	removed, err := q.client.ZRem(ctx, pendingKey, member).Result()
	if err != nil {
		return nil, fmt.Errorf("claiming job: %w", err)
	}
	if removed == 0 {
		// another dispatcher already claimed this member between the range
		// query and the removal; the caller will poll again next tick.
		return nil, nil
	}

	var wj wireJob
	if err := json.Unmarshal([]byte(member), &wj); err != nil {
		return nil, fmt.Errorf("decoding claimed job: %w", err)
	}

	if err := q.client.HSet(ctx, processingKey, wj.ID, member).Err(); err != nil {
		return nil, fmt.Errorf("parking claimed job %s: %w", wj.ID, err)
	}

	return &queue.Job{ID: wj.ID, LeadID: wj.LeadID, Attempt: wj.Attempt, RunAfter: wj.RunAfter}, nil
}

func (q *Queue) Complete(ctx context.Context, jobID string) error {
	if err := q.client.HDel(ctx, processingKey, jobID).Err(); err != nil {
		return fmt.Errorf("completing job %s: %w", jobID, err)
	}
	return nil
}

func (q *Queue) Retry(ctx context.Context, jobID string, nextAttempt int, runAfter time.Time) error {
	raw, err := q.client.HGet(ctx, processingKey, jobID).Result()
	if err != nil {
		return fmt.Errorf("looking up job %s to retry: %w", jobID, err)
	}
	var wj wireJob
	if err := json.Unmarshal([]byte(raw), &wj); err != nil {
		return fmt.Errorf("decoding job %s to retry: %w", jobID, err)
	}
	wj.Attempt = nextAttempt
	wj.RunAfter = runAfter

	encoded, err := json.Marshal(wj)
	if err != nil {
		return fmt.Errorf("encoding retried job %s: %w", jobID, err)
	}

	pipe := q.client.TxPipeline()
	pipe.ZAdd(ctx, pendingKey, redis.Z{Score: float64(runAfter.UnixMicro()), Member: string(encoded)})
	pipe.HDel(ctx, processingKey, jobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rescheduling job %s: %w", jobID, err)
	}
	return nil
}

func (q *Queue) Fail(ctx context.Context, jobID string) error {
	if err := q.client.HDel(ctx, processingKey, jobID).Err(); err != nil {
		return fmt.Errorf("failing job %s: %w", jobID, err)
	}
	return nil
}

func (q *Queue) Health(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}
