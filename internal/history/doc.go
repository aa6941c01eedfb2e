// Package history records the values written to historizing variables.
//
// Store keeps samples in a SQLite database (modernc.org/sqlite, no cgo).
// Recorder subscribes to the address space event bus and appends one
// sample per value_written event whose variable has Historizing set:
//
//	store, err := history.Open("history.db")
//	rec := history.NewRecorder(store, bus, history.RecorderConfig{Workers: 2})
//	rec.Start(ctx)
//	defer rec.Stop()
//
//	samples, err := store.Query(ctx, history.Query{NodeID: id, Limit: 100})
//
// Inserts run on a worker pool. Event delivery never blocks writers, so
// under sustained overload samples can be lost; Recorder.Dropped counts
// them.
package history
