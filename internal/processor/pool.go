package processor

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Priya8975/leadgateway/internal/queue"
)

// Pool manages a fixed number of worker goroutines that deliver jobs
// pulled off the queue by a Dispatcher.
type Pool struct {
	numWorkers int
	jobs       chan queue.Job
	processor  *Processor
	logger     *slog.Logger
	wg         sync.WaitGroup
}

func NewPool(numWorkers int, p *Processor, logger *slog.Logger) *Pool {
	return &Pool{
		numWorkers: numWorkers,
		jobs:       make(chan queue.Job, numWorkers*2),
		processor:  p,
		logger:     logger,
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.logger.Info("delivery worker pool started", "num_workers", p.numWorkers)
}

// Submit sends a job to the pool. It blocks if every worker is busy and
// the channel buffer (2x the worker count) is full.
func (p *Pool) Submit(job queue.Job) {
	p.jobs <- job
}

func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
	p.logger.Info("delivery worker pool stopped")
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for job := range p.jobs {
		select {
		case <-ctx.Done():
			return
		default:
			p.processor.ProcessJob(ctx, job)
		}
	}
}
