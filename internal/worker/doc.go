// Package worker provides a goroutine pool for concurrent job execution.
//
// The Pool manages a fixed number of worker goroutines that process jobs
// from a bounded queue. Jobs receive a context tied to the pool and may
// return an error; failures and panics are counted and logged, never
// propagated.
//
// # Basic Usage
//
//	pool := worker.NewPool(4) // 4 workers
//	pool.Start(ctx)
//	defer pool.Stop()
//
//	pool.Submit(func(ctx context.Context) error {
//	    return store.Append(ctx, sample)
//	})
//
// TrySubmit never blocks and reports false when the queue is full, which
// suits producers that must not stall, such as event bus consumers.
//
// # Configuration
//
//	pool := worker.NewPoolWithConfig(worker.PoolConfig{
//	    Name:       "history",
//	    NumWorkers: 2,
//	    QueueSize:  1024,
//	})
//
// # Graceful Shutdown
//
// Stop rejects new jobs, releases blocked submitters and waits until every
// queued job has run. Canceling the context passed to Start abandons the
// queue instead.
package worker
