package redisqueue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestQueue(t *testing.T) *Queue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client)
}

func TestEnqueueDequeue_RoundTrips(t *testing.T) {
	q := setupTestQueue(t)
	ctx := context.Background()

	if err := q.Enqueue(ctx, "lead-1", 1, time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	job, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue failed: %v", err)
	}
	if job == nil {
		t.Fatal("expected a job, got nil")
	}
	if job.LeadID != "lead-1" || job.Attempt != 1 {
		t.Errorf("unexpected job contents: %+v", job)
	}
}

func TestDequeue_NotYetReadyJobIsNotClaimed(t *testing.T) {
	q := setupTestQueue(t)
	ctx := context.Background()

	if err := q.Enqueue(ctx, "lead-1", 1, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	job, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue failed: %v", err)
	}
	if job != nil {
		t.Errorf("expected no ready job, got %+v", job)
	}
}

func TestDequeue_EmptyQueueReturnsNil(t *testing.T) {
	q := setupTestQueue(t)
	job, err := q.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("dequeue failed: %v", err)
	}
	if job != nil {
		t.Errorf("expected nil job on empty queue, got %+v", job)
	}
}

func TestComplete_RemovesFromProcessing(t *testing.T) {
	q := setupTestQueue(t)
	ctx := context.Background()

	q.Enqueue(ctx, "lead-1", 1, time.Now().Add(-time.Second))
	job, _ := q.Dequeue(ctx)

	if err := q.Complete(ctx, job.ID); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	// retrying a completed job should fail since it's no longer parked.
	if err := q.Retry(ctx, job.ID, 2, time.Now()); err == nil {
		t.Error("expected retry of a completed job to fail")
	}
}

func TestRetry_ReschedulesWithNewAttempt(t *testing.T) {
	q := setupTestQueue(t)
	ctx := context.Background()

	q.Enqueue(ctx, "lead-1", 1, time.Now().Add(-time.Second))
	job, _ := q.Dequeue(ctx)

	if err := q.Retry(ctx, job.ID, 2, time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("retry failed: %v", err)
	}

	next, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue after retry failed: %v", err)
	}
	if next == nil {
		t.Fatal("expected retried job to be ready")
	}
	if next.Attempt != 2 {
		t.Errorf("expected attempt 2, got %d", next.Attempt)
	}
}

func TestFail_RemovesFromProcessingWithoutRescheduling(t *testing.T) {
	q := setupTestQueue(t)
	ctx := context.Background()

	q.Enqueue(ctx, "lead-1", 1, time.Now().Add(-time.Second))
	job, _ := q.Dequeue(ctx)

	if err := q.Fail(ctx, job.ID); err != nil {
		t.Fatalf("fail failed: %v", err)
	}

	next, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue failed: %v", err)
	}
	if next != nil {
		t.Errorf("expected no job after fail, got %+v", next)
	}
}

func TestHealth_PingsRedis(t *testing.T) {
	q := setupTestQueue(t)
	if err := q.Health(context.Background()); err != nil {
		t.Errorf("expected healthy redis, got %v", err)
	}
}
