// Package snapshot persists the address space in badger.
//
// Save exports the space and writes it as a new generation of keys; the
// current generation pointer is switched only after the whole generation
// is on disk, then the previous one is dropped. Restore imports the
// current generation, keeping nodes that already exist:
//
//	store, err := snapshot.Open(snapshot.Options{Path: "data/snapshot"})
//	defer store.Close()
//
//	if _, ok, err := store.Restore(space); err != nil {
//	    return err
//	} else if !ok {
//	    // first start
//	}
//	go store.Run(ctx, space, time.Minute)
//
// Backup and LoadBackup move a full copy of the store through badger's
// backup stream format.
package snapshot
