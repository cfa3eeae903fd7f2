// Package sweeper reclaims leads stuck in RECEIVED status — ingested but
// never got a process_lead job onto the queue, typically because the
// enqueue call at ingest time failed after the lead row was already
// persisted.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/Priya8975/leadgateway/internal/store"
)

// Enqueuer matches queue.Queue.Enqueue.
type Enqueuer interface {
	Enqueue(ctx context.Context, leadID string, attempt int, runAfter time.Time) error
}

type Sweeper struct {
	store     *store.PostgresStore
	queue     Enqueuer
	logger    *slog.Logger
	interval  time.Duration
	orphanAge time.Duration
}

func New(s *store.PostgresStore, q Enqueuer, logger *slog.Logger, interval, orphanAge time.Duration) *Sweeper {
	return &Sweeper{store: s, queue: q, logger: logger, interval: interval, orphanAge: orphanAge}
}

// Run polls on a ticker until ctx is cancelled, re-enqueuing a
// process_lead job for any lead that has sat in RECEIVED longer than
// orphanAge.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	orphans, err := s.store.ListOrphanedReceivedLeads(ctx, int(s.orphanAge.Seconds()))
	if err != nil {
		s.logger.Error("failed to list orphaned leads", "error", err)
		return
	}
	for _, lead := range orphans {
		s.logger.Warn("reclaiming orphaned lead", "lead_id", lead.ID, "received_at", lead.ReceivedAt)
		if err := s.queue.Enqueue(ctx, lead.ID, 1, time.Now()); err != nil {
			s.logger.Error("failed to re-enqueue orphaned lead", "lead_id", lead.ID, "error", err)
		}
	}
}
