// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package findings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	dgbadger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/adfuzz/services/adfuzz/storage/badger"
)

// Store persists findings.
type Store interface {
	// Put stores f, or bumps the hit count of the finding with the same
	// fingerprint. It returns the stored finding and whether it is new.
	Put(ctx context.Context, f Finding) (Finding, bool, error)

	// Get returns the finding with the given ID or ErrNotFound.
	Get(ctx context.Context, id string) (Finding, error)

	// List returns up to limit findings, newest first. limit <= 0 means
	// all of them.
	List(ctx context.Context, limit int) ([]Finding, error)

	// Count returns the number of distinct findings.
	Count(ctx context.Context) (int, error)

	Close() error
}

const (
	findingPrefix     = "finding:"
	fingerprintPrefix = "finding-fp:"
	indexPrefix       = "finding-idx:"
)

func findingKey(id string) []byte { return []byte(findingPrefix + id) }

func fingerprintKey(fp string) []byte { return []byte(fingerprintPrefix + fp) }

// indexKey orders findings by creation time, then ID.
func indexKey(f Finding) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", indexPrefix, f.CreatedAt.UnixNano(), f.ID))
}

// BadgerStore is a Store backed by BadgerDB.
//
// Thread Safety: Safe for concurrent use. Put runs in a single
// read-write transaction, so concurrent Puts of one fingerprint resolve
// to one finding (the loser retries on conflict).
type BadgerStore struct {
	db     *badger.DB
	owned  bool
	closed atomic.Bool
}

// NewBadgerStore wraps an open database. Close leaves db open.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// OpenBadgerStore opens the database described by cfg and owns it.
func OpenBadgerStore(cfg badger.Config) (*BadgerStore, error) {
	db, err := badger.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open findings store: %w", err)
	}
	return &BadgerStore{db: db, owned: true}, nil
}

// Put implements Store.
func (s *BadgerStore) Put(ctx context.Context, f Finding) (Finding, bool, error) {
	if s.closed.Load() {
		return Finding{}, false, ErrClosed
	}
	if f.ID == "" || f.Fingerprint == "" {
		return Finding{}, false, errors.New("finding needs an ID and a fingerprint")
	}
	var (
		stored  Finding
		created bool
	)
	put := func() error {
		return s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
			stored, created = f, true
			item, err := txn.Get(fingerprintKey(f.Fingerprint))
			switch {
			case err == nil:
				id, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				existing, err := get(txn, string(id))
				if err != nil {
					return err
				}
				existing.Hits++
				stored, created = existing, false
				return set(txn, existing)
			case !errors.Is(err, dgbadger.ErrKeyNotFound):
				return err
			}
			if err := set(txn, f); err != nil {
				return err
			}
			if err := txn.Set(fingerprintKey(f.Fingerprint), []byte(f.ID)); err != nil {
				return err
			}
			return txn.Set(indexKey(f), []byte(f.ID))
		})
	}
	err := put()
	if errors.Is(err, dgbadger.ErrConflict) {
		err = put()
	}
	if err != nil {
		return Finding{}, false, fmt.Errorf("put finding: %w", err)
	}
	return stored, created, nil
}

// Get implements Store.
func (s *BadgerStore) Get(ctx context.Context, id string) (Finding, error) {
	if s.closed.Load() {
		return Finding{}, ErrClosed
	}
	var f Finding
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		var err error
		f, err = get(txn, id)
		return err
	})
	return f, err
}

// List implements Store.
func (s *BadgerStore) List(ctx context.Context, limit int) ([]Finding, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	var out []Finding
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(indexPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(indexPrefix)
		// 0xFF sorts after every digit, so this lands on the newest entry.
		for it.Seek(append([]byte(indexPrefix), 0xFF)); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(out) >= limit {
				return nil
			}
			id, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			f, err := get(txn, string(id))
			if err != nil {
				return err
			}
			out = append(out, f)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list findings: %w", err)
	}
	return out, nil
}

// Count implements Store.
func (s *BadgerStore) Count(ctx context.Context) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	n := 0
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(indexPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Close implements Store. Only a database opened by OpenBadgerStore is
// closed.
func (s *BadgerStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.owned {
		return s.db.Close()
	}
	return nil
}

func get(txn *dgbadger.Txn, id string) (Finding, error) {
	var f Finding
	if id == "" || strings.ContainsAny(id, ":") {
		return f, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	item, err := txn.Get(findingKey(id))
	if errors.Is(err, dgbadger.ErrKeyNotFound) {
		return f, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return f, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &f)
	})
	return f, err
}

func set(txn *dgbadger.Txn, f Finding) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal finding %s: %w", f.ID, err)
	}
	return txn.Set(findingKey(f.ID), data)
}
