package processor

import (
	"context"
	"log/slog"
	"time"

	"github.com/Priya8975/leadgateway/internal/queue"
)

// Dispatcher polls the job queue on a fixed interval and submits whatever
// it claims to the worker pool. It is transport-agnostic: the same loop
// drives pgqueue or redisqueue interchangeably.
type Dispatcher struct {
	q            queue.Queue
	pool         *Pool
	logger       *slog.Logger
	pollInterval time.Duration
}

func NewDispatcher(q queue.Queue, pool *Pool, logger *slog.Logger, pollInterval time.Duration) *Dispatcher {
	if pollInterval <= 0 {
		pollInterval = 250 * time.Millisecond
	}
	return &Dispatcher{q: q, pool: pool, logger: logger, pollInterval: pollInterval}
}

func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("dispatcher started", "poll_interval", d.pollInterval)

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopping")
			return
		case <-ticker.C:
			d.poll(ctx)
		}
	}
}

func (d *Dispatcher) poll(ctx context.Context) {
	for {
		job, err := d.q.Dequeue(ctx)
		if err != nil {
			d.logger.Error("failed to dequeue job", "error", err)
			return
		}
		if job == nil {
			return
		}
		d.pool.Submit(*job)
	}
}
