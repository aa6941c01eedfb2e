package history

import (
	"context"
	"sync"
	"sync/atomic"

	"uaspace/internal/events"
	"uaspace/internal/logger"
	"uaspace/internal/ua"
	"uaspace/internal/worker"
)

const logScope = "history"

// RecorderConfig configures a Recorder.
type RecorderConfig struct {
	Workers   int
	QueueSize int
}

// Recorder stores every value write of a historizing variable. It reads
// the event bus and hands inserts to a worker pool, so a slow disk never
// blocks writers; when the queue is full the sample is dropped and
// counted.
type Recorder struct {
	store *Store
	bus   *events.Bus
	pool  *worker.Pool

	mu      sync.Mutex
	ch      <-chan events.Event
	stopped chan struct{}

	recorded atomic.Uint64
	dropped  atomic.Uint64
}

// NewRecorder creates a Recorder. Call Start to begin recording.
func NewRecorder(store *Store, bus *events.Bus, config RecorderConfig) *Recorder {
	return &Recorder{
		store: store,
		bus:   bus,
		pool: worker.NewPoolWithConfig(worker.PoolConfig{
			Name:       "history",
			NumWorkers: config.Workers,
			QueueSize:  config.QueueSize,
		}),
	}
}

// Start subscribes to the bus and starts the workers.
func (r *Recorder) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ch != nil {
		return
	}

	r.pool.Start(ctx)
	r.ch = r.bus.Subscribe()
	r.stopped = make(chan struct{})
	go r.loop(r.ch, r.stopped)

	logger.Info(logScope, "Recorder started (%d workers)", r.pool.NumWorkers())
}

// loop runs until the subscription is closed, by Stop or by Bus.Close.
// Events already buffered are still handled.
func (r *Recorder) loop(ch <-chan events.Event, stopped chan struct{}) {
	defer close(stopped)
	for e := range ch {
		r.handle(e)
	}
}

func (r *Recorder) handle(e events.Event) {
	if e.Type != events.EventValueWritten || !e.Data.Historizing || e.Data.Value == nil {
		return
	}
	id, err := ua.ParseNodeID(e.NodeID)
	if err != nil {
		logger.Warn(logScope, "ignoring event with bad node id %q: %v", e.NodeID, err)
		return
	}

	sample := Sample{NodeID: id, Value: *e.Data.Value, Timestamp: e.Timestamp, EventID: e.ID}
	ok := r.pool.TrySubmit(func(ctx context.Context) error {
		if err := r.store.Append(ctx, sample); err != nil {
			return err
		}
		r.recorded.Add(1)
		return nil
	})
	if !ok {
		r.dropped.Add(1)
	}
}

// Stop unsubscribes, then waits for buffered events and queued samples to
// be written. A stopped Recorder cannot be started again.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ch == nil {
		return
	}

	r.bus.Unsubscribe(r.ch)
	<-r.stopped
	r.pool.Stop()
	r.ch = nil

	logger.Info(logScope, "Recorder stopped (recorded=%d dropped=%d)", r.recorded.Load(), r.dropped.Load())
}

// Recorded returns the number of samples written.
func (r *Recorder) Recorded() uint64 {
	return r.recorded.Load()
}

// Dropped returns the number of samples lost to a full queue.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Store returns the underlying store.
func (r *Recorder) Store() *Store {
	return r.store
}
