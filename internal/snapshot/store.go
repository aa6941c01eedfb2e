package snapshot

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"uaspace/internal/addrspace"
	"uaspace/internal/logger"
)

const logScope = "snapshot"

// ErrClosed is returned by every operation on a closed Store.
var ErrClosed = errors.New("snapshot store closed")

var keyCurrent = []byte("meta/current")

// Options configures a Store.
type Options struct {
	// Path is the badger directory. Ignored when InMemory is set.
	Path string
	// InMemory keeps everything in RAM.
	InMemory bool
	// SyncWrites fsyncs every commit.
	SyncWrites bool
}

// Info describes a saved snapshot.
type Info struct {
	Generation uint64    `json:"generation"`
	SavedAt    time.Time `json:"saved_at"`
	Namespaces int       `json:"namespaces"`
	Nodes      int       `json:"nodes"`
	References int       `json:"references"`
}

// Store persists address space snapshots in badger. Every Save writes a
// new generation and then switches the current pointer, so a crash during
// Save leaves the previous snapshot readable.
type Store struct {
	mu     sync.RWMutex
	db     *badger.DB
	closed bool
}

// Open opens or creates a Store.
func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Path == "" {
		return nil, errors.New("snapshot path is required")
	}

	bopts := badger.DefaultOptions(opts.Path)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts = bopts.WithSyncWrites(opts.SyncWrites).WithLogger(badgerLogger{})

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}
	return &Store{db: db}, nil
}

func genPrefix(gen uint64) []byte {
	k := fmt.Appendf(nil, "g/%016x/", gen)
	return k[:len(k):len(k)]
}

func entryKey(gen uint64, kind byte, i int) []byte {
	k := append(genPrefix(gen), kind, '/')
	return binary.BigEndian.AppendUint64(k, uint64(i))
}

func (s *Store) withView(fn func(txn *badger.Txn) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return s.db.View(fn)
}

func currentGen(txn *badger.Txn) (uint64, bool, error) {
	item, err := txn.Get(keyCurrent)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	var gen uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("corrupt generation pointer (%d bytes)", len(val))
		}
		gen = binary.BigEndian.Uint64(val)
		return nil
	})
	return gen, true, err
}

// Save writes the current content of space as a new generation.
func (s *Store) Save(space *addrspace.Space) (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Info{}, ErrClosed
	}

	var prev uint64
	var hasPrev bool
	if err := s.db.View(func(txn *badger.Txn) error {
		var err error
		prev, hasPrev, err = currentGen(txn)
		return err
	}); err != nil {
		return Info{}, fmt.Errorf("failed to read current generation: %w", err)
	}

	snap := space.Export()
	info := Info{
		Generation: prev + 1,
		SavedAt:    time.Now().UTC(),
		Namespaces: len(snap.Namespaces),
		Nodes:      len(snap.Nodes),
		References: len(snap.References),
	}
	gen := info.Generation

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	put := func(key []byte, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", key, err)
		}
		return wb.Set(key, data)
	}

	if err := put(append(genPrefix(gen), "info"...), info); err != nil {
		return Info{}, err
	}
	if err := put(append(genPrefix(gen), "ns"...), snap.Namespaces); err != nil {
		return Info{}, err
	}
	for i, n := range snap.Nodes {
		if err := put(entryKey(gen, 'n', i), n); err != nil {
			return Info{}, err
		}
	}
	for i, r := range snap.References {
		if err := put(entryKey(gen, 'r', i), r); err != nil {
			return Info{}, err
		}
	}
	if err := wb.Flush(); err != nil {
		return Info{}, fmt.Errorf("failed to write snapshot: %w", err)
	}

	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyCurrent, binary.BigEndian.AppendUint64(nil, gen))
	}); err != nil {
		return Info{}, fmt.Errorf("failed to switch generation: %w", err)
	}

	if hasPrev {
		if err := s.db.DropPrefix(genPrefix(prev)); err != nil {
			logger.Warn(logScope, "failed to drop generation %d: %v", prev, err)
		}
	}

	logger.Info(logScope, "saved generation %d (%d nodes, %d references)", gen, info.Nodes, info.References)
	return info, nil
}

// Load reads the current snapshot. ok is false when nothing was saved yet.
func (s *Store) Load() (snap addrspace.Snapshot, info Info, ok bool, err error) {
	err = s.withView(func(txn *badger.Txn) error {
		gen, found, err := currentGen(txn)
		if err != nil || !found {
			return err
		}
		ok = true

		prefix := genPrefix(gen)
		if err := getJSON(txn, append(prefix, "info"...), &info); err != nil {
			return err
		}
		if err := getJSON(txn, append(prefix, "ns"...), &snap.Namespaces); err != nil {
			return err
		}

		snap.Nodes = make([]addrspace.NodeView, 0, info.Nodes)
		if err := scan(txn, append(prefix, 'n', '/'), func(val []byte) error {
			var n addrspace.NodeView
			if err := json.Unmarshal(val, &n); err != nil {
				return fmt.Errorf("failed to decode node: %w", err)
			}
			snap.Nodes = append(snap.Nodes, n)
			return nil
		}); err != nil {
			return err
		}

		snap.References = make([]addrspace.Reference, 0, info.References)
		return scan(txn, append(prefix, 'r', '/'), func(val []byte) error {
			var r addrspace.Reference
			if err := json.Unmarshal(val, &r); err != nil {
				return fmt.Errorf("failed to decode reference: %w", err)
			}
			snap.References = append(snap.References, r)
			return nil
		})
	})
	return snap, info, ok, err
}

// Restore imports the current snapshot into space. Nodes already present
// in space are kept as they are. ok is false when nothing was saved yet.
func (s *Store) Restore(space *addrspace.Space) (stats addrspace.ImportStats, ok bool, err error) {
	snap, info, ok, err := s.Load()
	if err != nil || !ok {
		return stats, ok, err
	}
	stats, err = space.Import(snap)
	if err != nil {
		return stats, true, fmt.Errorf("failed to restore generation %d: %w", info.Generation, err)
	}
	logger.Info(logScope, "restored generation %d (%d nodes, %d references, %d skipped)",
		info.Generation, stats.Nodes, stats.References, stats.Skipped)
	return stats, true, nil
}

// Info returns metadata of the current snapshot.
func (s *Store) Info() (info Info, ok bool, err error) {
	err = s.withView(func(txn *badger.Txn) error {
		gen, found, err := currentGen(txn)
		if err != nil || !found {
			return err
		}
		ok = true
		return getJSON(txn, append(genPrefix(gen), "info"...), &info)
	})
	return info, ok, err
}

// Backup streams a full badger backup to w.
func (s *Store) Backup(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	if _, err := s.db.Backup(w, 0); err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	return nil
}

// BackupFile writes a full backup to path.
func (s *Store) BackupFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer f.Close()

	buf := bufio.NewWriter(f)
	if err := s.Backup(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush backup: %w", err)
	}
	return f.Sync()
}

// LoadBackup loads a backup written by Backup into the store.
func (s *Store) LoadBackup(r io.Reader) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.db.Load(r, 256); err != nil {
		return fmt.Errorf("failed to load backup: %w", err)
	}
	return nil
}

// Run saves space every interval until ctx is done.
func (s *Store) Run(ctx context.Context, space *addrspace.Space, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Save(space); err != nil {
				if errors.Is(err, ErrClosed) {
					return nil
				}
				logger.Error(logScope, "periodic save failed: %v", err)
			}
		}
	}
}

// Close closes the store. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func scan(txn *badger.Txn, prefix []byte, fn func(val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}
