// Package store implements the ordered byte-key/byte-value storage engine
// that the spatial index and trajectory store build their composite-key
// schemes on top of. It is backed by Badger as an embedded LSM engine, used
// as a raw byte-store: the engine owns Record encoding, TTL bookkeeping and
// operation counters itself rather than delegating expiry to Badger.
package store

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/sitan2008/spatio/internal/logger"
)

// errKeyNotFound is Badger's not-found error, checked internally when a
// lookup finds no entry; it never escapes the package, callers see a
// found == false result instead.
var errKeyNotFound = badger.ErrKeyNotFound

// Engine is a single open handle onto the storage layer. Exactly one
// sync.RWMutex guards the store and its counters; writes take the
// exclusive side, reads take the shared side and upgrade only to reap an
// expired record found in their path. The uid sequence is the sole field
// mutated without holding the lock.
type Engine struct {
	db          *badger.DB
	mu          sync.RWMutex
	compression CompressionType
	syncWrites  bool

	uid uint64 // atomic

	keyCount      int64
	operations    int64
	expiredCount  int64

	closed bool
}

// Options configures an Engine at open time.
type Options struct {
	Compression CompressionType
	SyncWrites  bool
	InMemory    bool
	Path        string
}

// Open creates or opens an Engine backed by Badger at path.
func Open(path string, opts Options) (*Engine, error) {
	bopts := badger.DefaultOptions(path)
	bopts.SyncWrites = opts.SyncWrites
	bopts.Logger = nil

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("spatio: open engine at %q: %w", path, err)
	}

	e := &Engine{db: db, compression: opts.Compression, syncWrites: opts.SyncWrites}
	logger.Logger.Debug().Str("path", path).Msg("storage engine opened")
	return e, nil
}

// Memory creates an Engine with Badger's in-memory mode; nothing survives
// process exit and Sync is a no-op.
func Memory(opts Options) (*Engine, error) {
	bopts := badger.DefaultOptions("").WithInMemory(true)
	bopts.Logger = nil

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("spatio: open in-memory engine: %w", err)
	}

	e := &Engine{db: db, compression: opts.Compression}
	logger.Logger.Debug().Msg("in-memory storage engine opened")
	return e, nil
}

// NextUID returns the next value of the per-engine monotonically increasing
// uid sequence, used by the spatial index to disambiguate points sharing a
// geohash cell.
func (e *Engine) NextUID() uint64 {
	return atomic.AddUint64(&e.uid, 1)
}

// Insert writes rec under key, overwriting any existing record atomically.
// key_count only increments when the overwritten record was not already
// live; operations_count always increments on a successful insert.
func (e *Engine) Insert(key []byte, rec Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrDatabaseClosed
	}

	wasLive, err := e.isLiveLocked(key)
	if err != nil {
		return err
	}

	encoded, err := encodeRecord(rec, e.compression)
	if err != nil {
		return err
	}

	if err := e.db.Update(func(txn *badger.Txn) error {
		return txn.Set(append([]byte{}, key...), encoded)
	}); err != nil {
		return fmt.Errorf("spatio: insert: %w", err)
	}

	if !wasLive {
		e.keyCount++
	}
	e.operations++
	return nil
}

// isLiveLocked reports whether key currently names a non-expired record. It
// must be called with e.mu held.
func (e *Engine) isLiveLocked(key []byte) (bool, error) {
	var raw []byte
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			raw = append([]byte{}, v...)
			return nil
		})
	})
	if err == errKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("spatio: read during insert: %w", err)
	}

	rec, err := decodeRecord(raw)
	if err != nil {
		return false, err
	}
	return !rec.Expired(time.Now()), nil
}

// Get returns the payload and kind for key if a live record exists. The
// found-but-expired case reaps the record (adjusting key_count and
// expired_count) and returns (nil, 0, false, nil); get never touches
// operations_count.
func (e *Engine) Get(key []byte) ([]byte, Kind, bool, error) {
	e.mu.RLock()
	rec, found, expired, err := e.readLocked(key)
	e.mu.RUnlock()
	if err != nil {
		return nil, 0, false, err
	}
	if !found {
		return nil, 0, false, nil
	}
	if !expired {
		return rec.Payload, rec.Kind, true, nil
	}

	// Double-checked reap: another goroutine may have already removed this
	// key between the RUnlock above and the Lock below.
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, found, expired, err = e.readLocked(key)
	if err != nil || !found {
		return nil, 0, false, err
	}
	if !expired {
		return rec.Payload, rec.Kind, true, nil
	}
	if err := e.removeLocked(key); err != nil {
		return nil, 0, false, err
	}
	e.keyCount--
	e.expiredCount++
	return nil, 0, false, nil
}

func (e *Engine) readLocked(key []byte) (Record, bool, bool, error) {
	if e.closed {
		return Record{}, false, false, ErrDatabaseClosed
	}

	var raw []byte
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			raw = append([]byte{}, v...)
			return nil
		})
	})
	if err == errKeyNotFound {
		return Record{}, false, false, nil
	}
	if err != nil {
		return Record{}, false, false, fmt.Errorf("spatio: get: %w", err)
	}

	rec, err := decodeRecord(raw)
	if err != nil {
		return Record{}, false, false, err
	}
	return rec, true, rec.Expired(time.Now()), nil
}

func (e *Engine) removeLocked(key []byte) error {
	if err := e.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	}); err != nil {
		return fmt.Errorf("spatio: reap: %w", err)
	}
	return nil
}

// Delete removes key if a live record is present and returns its payload.
// Absent or already-expired keys return (nil, false, nil). operations_count
// always increments on a call to Delete; key_count decrements only when a
// live record was removed.
func (e *Engine) Delete(key []byte) ([]byte, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, false, ErrDatabaseClosed
	}

	rec, found, expired, err := e.readLocked(key)
	if err != nil {
		return nil, false, err
	}
	e.operations++
	if !found {
		return nil, false, nil
	}
	if expired {
		if err := e.removeLocked(key); err != nil {
			return nil, false, err
		}
		e.keyCount--
		e.expiredCount++
		return nil, false, nil
	}

	if err := e.removeLocked(key); err != nil {
		return nil, false, err
	}
	e.keyCount--
	return rec.Payload, true, nil
}

// ScanEntry is one result of a ScanPrefix call.
type ScanEntry struct {
	Key   []byte
	Value []byte
	Kind  Kind
}

// ScanPrefix returns every live record whose key starts with prefix, in
// ascending key order. The read lock is held for the iteration itself so
// callers observe a consistent snapshot; any expired entries crossed during
// that iteration are reaped afterward under the exclusive lock, via the same
// double-checked upgrade Get uses, rather than mutating key_count/
// expired_count while only the shared lock is held.
func (e *Engine) ScanPrefix(prefix []byte) ([]ScanEntry, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, ErrDatabaseClosed
	}

	var results []ScanEntry
	var expiredKeys [][]byte
	now := time.Now()

	err := e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := txn.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(prefix); iter.ValidForPrefix(prefix); iter.Next() {
			item := iter.Item()
			var raw []byte
			if err := item.Value(func(v []byte) error {
				raw = append([]byte{}, v...)
				return nil
			}); err != nil {
				return err
			}

			rec, err := decodeRecord(raw)
			if err != nil {
				return err
			}

			key := item.KeyCopy(nil)
			if rec.Expired(now) {
				expiredKeys = append(expiredKeys, key)
				continue
			}
			results = append(results, ScanEntry{Key: key, Value: rec.Payload, Kind: rec.Kind})
		}
		return nil
	})
	e.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("spatio: scan_prefix: %w", err)
	}

	if len(expiredKeys) > 0 {
		if err := e.reapExpired(expiredKeys); err != nil {
			return nil, err
		}
	}

	return results, nil
}

// reapExpired upgrades to the exclusive lock and re-checks each key found
// expired during a ScanPrefix iteration before deleting it: another
// goroutine may have already reaped or overwritten it between the RUnlock
// in ScanPrefix and this Lock, the same race Get's double-checked reap
// guards against.
func (e *Engine) reapExpired(keys [][]byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}

	var stillExpired [][]byte
	for _, k := range keys {
		_, found, expired, err := e.readLocked(k)
		if err != nil {
			return err
		}
		if found && expired {
			stillExpired = append(stillExpired, k)
		}
	}
	if len(stillExpired) == 0 {
		return nil
	}
	return e.reapLocked(stillExpired)
}

// reapLocked removes a batch of expired keys and adjusts the counters.
// Callers must hold e.mu exclusively.
func (e *Engine) reapLocked(keys [][]byte) error {
	err := e.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("spatio: reap batch: %w", err)
	}
	e.keyCount -= int64(len(keys))
	e.expiredCount += int64(len(keys))
	return nil
}

// Stats returns a snapshot of the three operation counters.
func (e *Engine) Stats() (keyCount, operations, expired int64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.keyCount, e.operations, e.expiredCount
}

// IncrementOperations bumps operations_count without a corresponding store
// mutation, used by callers (e.g. an empty insert_trajectory batch) that
// must still count as an accepted write per the operation's contract.
func (e *Engine) IncrementOperations() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.operations++
}

// Sync flushes pending durable state; a no-op for in-memory handles since
// Badger's Sync on an in-memory instance has nothing to flush.
func (e *Engine) Sync() error {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return ErrDatabaseClosed
	}
	if err := e.db.Sync(); err != nil {
		return fmt.Errorf("spatio: sync: %w", err)
	}
	return nil
}

// Close transitions the engine to closed, releasing Badger's file
// resources. Idempotent.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if err := e.db.Close(); err != nil {
		return fmt.Errorf("spatio: close: %w", err)
	}
	logger.Logger.Debug().Msg("storage engine closed")
	return nil
}
