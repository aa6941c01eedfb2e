package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func count(counter *atomic.Int32) Job {
	return func(context.Context) error {
		counter.Add(1)
		return nil
	}
}

func TestNewWorkerPool(t *testing.T) {
	pool := NewPool(4)
	if pool.NumWorkers() != 4 {
		t.Errorf("expected 4 workers, got %d", pool.NumWorkers())
	}

	// Zero should default to CPU count
	pool2 := NewPool(0)
	if pool2.NumWorkers() != runtime.NumCPU() {
		t.Errorf("expected %d workers, got %d", runtime.NumCPU(), pool2.NumWorkers())
	}

	// Negative workers should default to CPU count
	pool3 := NewPool(-5)
	if pool3.NumWorkers() != runtime.NumCPU() {
		t.Errorf("expected %d workers for negative input, got %d", runtime.NumCPU(), pool3.NumWorkers())
	}
}

func TestWorkerPoolQueueSizeConfig(t *testing.T) {
	pool := NewPoolWithConfig(PoolConfig{NumWorkers: 2, QueueSize: 3})
	if cap(pool.jobs) != 3 {
		t.Errorf("expected queue capacity 3, got %d", cap(pool.jobs))
	}

	pool2 := NewPoolWithConfig(PoolConfig{NumWorkers: 2})
	if cap(pool2.jobs) != 200 {
		t.Errorf("expected default queue capacity 200, got %d", cap(pool2.jobs))
	}
}

func TestWorkerPoolStartStop(t *testing.T) {
	pool := NewPool(2)
	ctx := context.Background()

	pool.Start(ctx)
	// Double start should be no-op
	pool.Start(ctx)

	pool.Stop()
	// Double stop should be no-op
	pool.Stop()

	// A stopped pool stays stopped
	pool.Start(ctx)
	if pool.Submit(func(context.Context) error { return nil }) {
		t.Error("expected restarted pool to reject jobs")
	}
}

func TestWorkerPoolSubmit(t *testing.T) {
	pool := NewPool(2)
	pool.Start(context.Background())
	defer pool.Stop()

	var counter atomic.Int32
	for range 10 {
		if !pool.Submit(count(&counter)) {
			t.Fatal("expected Submit to succeed")
		}
	}

	deadline := time.After(time.Second)
	for counter.Load() < 10 {
		select {
		case <-deadline:
			t.Fatalf("timeout waiting for jobs, completed %d", counter.Load())
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestWorkerPoolStopDrainsQueue(t *testing.T) {
	pool := NewPoolWithConfig(PoolConfig{NumWorkers: 1, QueueSize: 100})
	pool.Start(context.Background())

	var counter atomic.Int32
	for range 50 {
		pool.Submit(count(&counter))
	}
	pool.Stop()

	if counter.Load() != 50 {
		t.Errorf("expected all 50 queued jobs to run before Stop returns, got %d", counter.Load())
	}
	if got := pool.Stats().Completed; got != 50 {
		t.Errorf("expected 50 completed, got %d", got)
	}
}

func TestWorkerPoolSubmitAfterStop(t *testing.T) {
	pool := NewPool(2)
	pool.Start(context.Background())
	pool.Stop()

	if pool.Submit(func(context.Context) error { return nil }) {
		t.Error("expected Submit to return false after stop")
	}
	if pool.TrySubmit(func(context.Context) error { return nil }) {
		t.Error("expected TrySubmit to return false after stop")
	}
	if pool.Stats().Rejected != 2 {
		t.Errorf("expected 2 rejected, got %d", pool.Stats().Rejected)
	}
}

func TestWorkerPoolSubmitBeforeStart(t *testing.T) {
	pool := NewPool(1)
	if pool.Submit(func(context.Context) error { return nil }) {
		t.Error("expected Submit to fail before Start")
	}
}

func TestWorkerPoolTrySubmitFull(t *testing.T) {
	pool := NewPoolWithConfig(PoolConfig{NumWorkers: 1, QueueSize: 1})
	pool.Start(context.Background())

	started := make(chan struct{})
	blocker := make(chan struct{})
	pool.Submit(func(context.Context) error {
		close(started)
		<-blocker
		return nil
	})
	<-started

	// The worker is busy and one slot remains
	if !pool.TrySubmit(func(context.Context) error { return nil }) {
		t.Fatal("expected first TrySubmit to fit")
	}
	if pool.TrySubmit(func(context.Context) error { return nil }) {
		t.Error("expected TrySubmit to fail on a full queue")
	}
	if pool.QueueSize() != 1 {
		t.Errorf("expected queue size 1, got %d", pool.QueueSize())
	}

	close(blocker)
	pool.Stop()
}

func TestWorkerPoolStopReleasesBlockedSubmit(t *testing.T) {
	pool := NewPoolWithConfig(PoolConfig{NumWorkers: 1, QueueSize: 1})
	pool.Start(context.Background())

	started := make(chan struct{})
	blocker := make(chan struct{})
	pool.Submit(func(context.Context) error {
		close(started)
		<-blocker
		return nil
	})
	<-started
	pool.Submit(func(context.Context) error { return nil })

	result := make(chan bool)
	go func() {
		result <- pool.Submit(func(context.Context) error { return nil })
	}()

	stopped := make(chan struct{})
	go func() {
		pool.Stop()
		close(stopped)
	}()

	select {
	case ok := <-result:
		if ok {
			t.Error("expected blocked Submit to fail once Stop begins")
		}
	case <-time.After(time.Second):
		t.Fatal("blocked Submit was not released")
	}

	close(blocker)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestWorkerPoolContextCancel(t *testing.T) {
	pool := NewPool(2)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	var seen atomic.Bool
	done := make(chan struct{})
	pool.Submit(func(jobCtx context.Context) error {
		<-jobCtx.Done()
		seen.Store(true)
		close(done)
		return jobCtx.Err()
	})

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job did not observe cancellation")
	}
	if !seen.Load() {
		t.Error("expected job context to be canceled")
	}

	if pool.Submit(func(context.Context) error { return nil }) {
		t.Error("expected Submit to return false after context cancel")
	}

	pool.Stop()
}

func TestWorkerPoolFailures(t *testing.T) {
	pool := NewPool(1)
	pool.Start(context.Background())

	pool.Submit(func(context.Context) error { return errors.New("disk full") })
	pool.Submit(func(context.Context) error { panic("boom") })
	pool.Submit(func(context.Context) error { return nil })
	pool.Stop()

	stats := pool.Stats()
	if stats.Failed != 2 {
		t.Errorf("expected 2 failed jobs, got %d", stats.Failed)
	}
	if stats.Completed != 1 {
		t.Errorf("expected 1 completed job, got %d", stats.Completed)
	}
}

func TestWorkerPoolConcurrentSubmit(t *testing.T) {
	pool := NewPool(4)
	pool.Start(context.Background())

	var counter atomic.Int32
	const numGoroutines = 10
	const jobsPerGoroutine = 100

	var wg sync.WaitGroup
	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobsPerGoroutine {
				pool.Submit(count(&counter))
			}
		}()
	}
	wg.Wait()
	pool.Stop()

	expected := int32(numGoroutines * jobsPerGoroutine)
	if counter.Load() != expected {
		t.Errorf("expected %d jobs completed, got %d", expected, counter.Load())
	}
}
