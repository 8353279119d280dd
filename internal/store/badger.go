// Affinity - User Interest Vector Engine
// Copyright 2026 M. Bellwood (mbellwood)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mbellwood/affinity

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/mbellwood/affinity/internal/interest"
	"github.com/mbellwood/affinity/internal/vector"
)

// Key prefixes for BadgerDB storage.
const (
	interestKeyPrefix = "interest:"
	snapshotKeyPrefix = "snapshot:"

	// snapshotSeqKey backs the monotonic sequence used to order snapshot
	// keys lexicographically by append time.
	snapshotSeqKey = "seq:snapshots"

	// snapshotSeqBandwidth is the badger.Sequence lease size. Restarts
	// may skip leased numbers; ordering is all that matters here.
	snapshotSeqBandwidth = 128
)

// BadgerStore is a BadgerDB-backed Repository suitable for durable
// single-node deployments. Vectors and snapshots are stored as JSON
// values; the persisted layout is an implementation detail and only the
// Repository contract is stable.
type BadgerStore struct {
	db  *badger.DB
	seq *badger.Sequence

	// locks serializes read-modify-write per user. A single-process
	// service owns the DB exclusively, so in-process locking is
	// sufficient and avoids optimistic-transaction conflict retries.
	locks sync.Map // userID -> *sync.Mutex

	maxHistory int
}

// NewBadgerStore wraps an open badger DB. maxHistory bounds the snapshot
// log per user (0 = unbounded).
func NewBadgerStore(db *badger.DB, maxHistory int) (*BadgerStore, error) {
	seq, err := db.GetSequence([]byte(snapshotSeqKey), snapshotSeqBandwidth)
	if err != nil {
		return nil, fmt.Errorf("snapshot sequence: %w", err)
	}
	return &BadgerStore{db: db, seq: seq, maxHistory: maxHistory}, nil
}

func (s *BadgerStore) userLock(userID string) *sync.Mutex {
	l, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	return l.(*sync.Mutex)
}

func interestKey(userID string) []byte {
	return []byte(interestKeyPrefix + userID)
}

func snapshotPrefix(userID string) []byte {
	return []byte(snapshotKeyPrefix + userID + ":")
}

func snapshotKey(userID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%016x", snapshotKeyPrefix, userID, seq))
}

// Get returns the user's current vector, ok=false for cold start.
func (s *BadgerStore) Get(_ context.Context, userID string) (vector.Embedding, bool, error) {
	var vec vector.Embedding
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(interestKey(userID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &vec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get interest vector: %w", err)
	}
	return vec, true, nil
}

// Upsert overwrites the stored vector for the user.
func (s *BadgerStore) Upsert(_ context.Context, userID string, vec vector.Embedding) error {
	data, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("marshal interest vector: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(interestKey(userID), data)
	})
	if err != nil {
		return fmt.Errorf("upsert interest vector: %w", err)
	}
	return nil
}

// Update atomically applies fn to the user's vector under the per-user
// lock, so two concurrent events for one user always observe each
// other's result.
func (s *BadgerStore) Update(ctx context.Context, userID string, fn UpdateFunc) (vector.Embedding, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	old, ok, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	next, err := fn(old, ok)
	if err != nil {
		return nil, err
	}
	if err := s.Upsert(ctx, userID, next); err != nil {
		return nil, err
	}
	return next, nil
}

// AppendSnapshot appends to the user's history and trims entries beyond
// maxHistory in the same transaction.
func (s *BadgerStore) AppendSnapshot(_ context.Context, userID string, snap interest.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	seq, err := s.seq.Next()
	if err != nil {
		return fmt.Errorf("snapshot sequence: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(snapshotKey(userID, seq), data); err != nil {
			return err
		}
		if s.maxHistory <= 0 {
			return nil
		}

		// Walk newest-to-oldest and delete everything past the bound.
		opts := badger.DefaultIteratorOptions
		opts.Prefix = snapshotPrefix(userID)
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		kept := 0
		// Reverse iteration must seek to the end of the prefix range.
		seekKey := append(snapshotPrefix(userID), 0xff)
		for it.Seek(seekKey); it.ValidForPrefix(snapshotPrefix(userID)); it.Next() {
			kept++
			if kept <= s.maxHistory {
				continue
			}
			key := it.Item().KeyCopy(nil)
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("append snapshot: %w", err)
	}
	return nil
}

// History returns up to limit most recent snapshots, oldest first.
func (s *BadgerStore) History(_ context.Context, userID string, limit int) ([]interest.Snapshot, error) {
	var out []interest.Snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = snapshotPrefix(userID)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(snapshotPrefix(userID)); it.ValidForPrefix(snapshotPrefix(userID)); it.Next() {
			var snap interest.Snapshot
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &snap)
			})
			if err != nil {
				return err
			}
			out = append(out, snap)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// Close releases the snapshot sequence. The badger DB itself is owned by
// the caller that opened it.
func (s *BadgerStore) Close() error {
	return s.seq.Release()
}
