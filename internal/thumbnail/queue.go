package thumbnail

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"caprev/internal/review"
)

// queueDepth is how many jobs may wait before Schedule blocks.
const queueDepth = 256

type queuedJob struct {
	name string
	run  func(ctx context.Context) error
}

// Queue runs scheduled jobs on a fixed number of workers. Job errors are
// logged and never reach the scheduler.
type Queue struct {
	jobs   chan queuedJob
	group  errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
	logger review.Logger

	mu     sync.Mutex
	closed bool
}

// NewQueue starts workers goroutines.
func NewQueue(workers int, logger review.Logger) *Queue {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		jobs:   make(chan queuedJob, queueDepth),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
	q.group.SetLimit(workers)
	for i := 0; i < workers; i++ {
		q.group.Go(q.work)
	}
	return q
}

func (q *Queue) work() error {
	for j := range q.jobs {
		if err := j.run(q.ctx); err != nil {
			q.logger.Warn("background job failed", "job", j.name, "error", err)
			continue
		}
		q.logger.Debug("background job done", "job", j.name)
	}
	return nil
}

// Schedule queues a job. Jobs scheduled after Shutdown are dropped.
func (q *Queue) Schedule(name string, job func(ctx context.Context) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("queue closed, dropping job", "job", name)
		return
	}
	q.jobs <- queuedJob{name: name, run: job}
}

// Shutdown stops accepting jobs and waits for queued ones to finish. If ctx
// ends first, running jobs are cancelled and Shutdown returns ctx.Err() once
// the workers exit.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return ctx.Err()
	}
}

// Compile-time check that Queue implements review.ThumbnailScheduler.
var _ review.ThumbnailScheduler = (*Queue)(nil)
