package thumbnail

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"caprev/internal/review"
)

func TestQueue_RunsAllJobs(t *testing.T) {
	q := NewQueue(3, review.NewNopLogger())

	var ran atomic.Int32
	for i := 0; i < 50; i++ {
		q.Schedule("job", func(ctx context.Context) error {
			ran.Add(1)
			if i%7 == 0 {
				return errors.New("boom")
			}
			return nil
		})
	}

	if err := q.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if got := ran.Load(); got != 50 {
		t.Errorf("ran %d jobs, want 50", got)
	}
}

func TestQueue_BoundsConcurrency(t *testing.T) {
	const workers = 2
	q := NewQueue(workers, review.NewNopLogger())

	var (
		mu      sync.Mutex
		running int
		peak    int
	)
	for i := 0; i < 10; i++ {
		q.Schedule("job", func(ctx context.Context) error {
			mu.Lock()
			running++
			if running > peak {
				peak = running
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			running--
			mu.Unlock()
			return nil
		})
	}

	if err := q.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if peak > workers {
		t.Errorf("peak concurrency = %d, want <= %d", peak, workers)
	}
}

func TestQueue_DropsAfterShutdown(t *testing.T) {
	q := NewQueue(1, review.NewNopLogger())
	if err := q.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	ran := false
	q.Schedule("late", func(ctx context.Context) error {
		ran = true
		return nil
	})
	if ran {
		t.Error("job scheduled after shutdown should not run")
	}
	if err := q.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
}

func TestQueue_ShutdownDeadlineCancelsJobs(t *testing.T) {
	q := NewQueue(1, review.NewNopLogger())

	started := make(chan struct{})
	var cancelled atomic.Bool
	q.Schedule("slow", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := q.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Shutdown() error = %v, want deadline exceeded", err)
	}
	if !cancelled.Load() {
		t.Error("running job was not cancelled")
	}
}
