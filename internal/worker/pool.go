// Package worker runs the background engines that move claimed charges and
// refunds through the gateway: the capture engine and the refund submitter.
// Both poll the store for eligible records, claim each one through the
// conditional status update, and only then talk to the gateway, so a record
// is never submitted twice no matter how many workers or processes run.
package worker

import (
	"context"
	"log/slog"
	"sync"
)

// Pool is a fixed set of workers draining a channel of record ids. The
// owning engine supplies the processing function.
type Pool struct {
	jobs   chan int64
	run    func(ctx context.Context, id int64)
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewPool creates a pool with the given queue size.
func NewPool(queueSize int, run func(ctx context.Context, id int64), logger *slog.Logger) *Pool {
	return &Pool{
		jobs:   make(chan int64, queueSize),
		run:    run,
		logger: logger,
	}
}

// Start launches workerCount workers. They exit when Shutdown closes the
// queue.
func (p *Pool) Start(ctx context.Context, workerCount int) {
	for i := 0; i < workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for id := range p.jobs {
		p.run(ctx, id)
	}
}

// Submit queues an id without blocking. A full queue drops the submission;
// the next poll picks the record up again.
func (p *Pool) Submit(id int64) bool {
	select {
	case p.jobs <- id:
		return true
	default:
		return false
	}
}

// Shutdown closes the queue and waits for in-flight jobs to finish.
func (p *Pool) Shutdown() {
	close(p.jobs)
	p.wg.Wait()
}
