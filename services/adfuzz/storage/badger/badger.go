// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger opens the embedded BadgerDB instance that holds recorded
// findings across fuzzing sessions.
//
// A persistent database lives under a directory and runs value log GC in
// the background. The in-memory variant backs tests and one-shot runs
// where nothing should outlive the process.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrPathRequired is returned when a persistent database has no path.
	ErrPathRequired = errors.New("path is required for persistent database")

	// ErrInvalidGC is returned for a missing database, a non-positive GC
	// interval or a discard ratio outside (0, 1).
	ErrInvalidGC = errors.New("invalid GC settings")
)

// Config holds configuration for the findings database.
type Config struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string `yaml:"path"`

	// InMemory keeps everything in RAM.
	InMemory bool `yaml:"in_memory"`

	// SyncWrites fsyncs every commit so a crash cannot lose a finding.
	SyncWrites bool `yaml:"sync_writes"`

	// GCInterval is how often value log GC runs. Zero disables it.
	GCInterval time.Duration `yaml:"gc_interval"`

	// GCDiscardRatio is the minimum garbage ratio that triggers a rewrite.
	GCDiscardRatio float64 `yaml:"gc_discard_ratio"`

	// Logger receives BadgerDB's own log lines. Nil silences them.
	Logger *slog.Logger `yaml:"-"`
}

// DefaultConfig returns the configuration used for a findings directory.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration with no disk I/O and GC disabled.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// slogAdapter forwards BadgerDB's printf-style logging to slog.
type slogAdapter struct {
	logger *slog.Logger
}

func (l slogAdapter) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l slogAdapter) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l slogAdapter) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l slogAdapter) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// options translates cfg into badger.Options, creating the directory of a
// persistent database.
func options(cfg Config) (badger.Options, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return opts, ErrPathRequired
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return opts, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(slogAdapter{logger: cfg.Logger.With(slog.String("component", "badger"))})
	} else {
		opts = opts.WithLogger(nil)
	}
	return opts, nil
}

// -----------------------------------------------------------------------------
// GC
// -----------------------------------------------------------------------------

// maxRewritesPerSweep bounds how many value log files one sweep rewrites.
const maxRewritesPerSweep = 16

// GCRunner reclaims value log space on a fixed interval. A findings
// database mostly grows by appending, so each tick sweeps until badger
// reports there is nothing left worth rewriting.
//
// Thread Safety: Run and Sweep are safe to call concurrently with
// database use. Rewrites reports progress from any goroutine.
type GCRunner struct {
	db       *badger.DB
	interval time.Duration
	ratio    float64
	logger   *slog.Logger
	rewrites atomic.Int64
}

// NewGCRunner validates the schedule and returns a runner.
func NewGCRunner(db *badger.DB, interval time.Duration, ratio float64, logger *slog.Logger) (*GCRunner, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: nil database", ErrInvalidGC)
	}
	if interval <= 0 || !(ratio > 0 && ratio < 1) {
		return nil, fmt.Errorf("%w: interval %s, ratio %g", ErrInvalidGC, interval, ratio)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &GCRunner{
		db:       db,
		interval: interval,
		ratio:    ratio,
		logger:   logger.With(slog.String("component", "findings_gc")),
	}, nil
}

// Run sweeps once per interval until ctx is done.
func (r *GCRunner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Debug("value log rewritten", slog.Int("files", n))
			}
		}
	}
}

// Sweep rewrites value log files until none qualifies and returns how many
// were rewritten.
func (r *GCRunner) Sweep() int {
	n := 0
	for n < maxRewritesPerSweep {
		err := r.db.RunValueLogGC(r.ratio)
		if err != nil {
			if !errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrRejected) {
				r.logger.Warn("value log GC failed", slog.String("error", err.Error()))
			}
			break
		}
		n++
	}
	r.rewrites.Add(int64(n))
	return n
}

// Rewrites is the total number of value log files rewritten so far.
func (r *GCRunner) Rewrites() int64 { return r.rewrites.Load() }

// -----------------------------------------------------------------------------
// DB
// -----------------------------------------------------------------------------

// DB is an open database plus its GC runner.
type DB struct {
	*badger.DB
	path     string
	inMemory bool

	gc     *GCRunner
	stopGC context.CancelFunc
	gcDone chan struct{}
}

// Open opens the database described by cfg.
//
// Description:
//
//	Creates the directory of a persistent database if needed, opens it
//	and starts value log GC when GCInterval is positive. In-memory
//	databases never run GC.
//
// Inputs:
//
//	cfg - Database configuration. Path is required unless InMemory.
//
// Outputs:
//
//	*DB - The open database. Call Close when done.
//	error - ErrPathRequired, ErrInvalidGC or an open failure.
//
// Thread Safety: The returned DB is safe for concurrent use.
func Open(cfg Config) (*DB, error) {
	opts, err := options(cfg)
	if err != nil {
		return nil, err
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	out := &DB{DB: db, path: cfg.Path, inMemory: cfg.InMemory}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		runner, err := NewGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		ctx, cancel := context.WithCancel(context.Background())
		out.gc = runner
		out.stopGC = cancel
		out.gcDone = make(chan struct{})
		go func() {
			defer close(out.gcDone)
			runner.Run(ctx)
		}()
	}
	return out, nil
}

// OpenInMemory opens an empty in-memory database.
func OpenInMemory() (*DB, error) {
	return Open(InMemoryConfig())
}

// Close stops GC and closes the database.
func (d *DB) Close() error {
	if d.stopGC != nil {
		d.stopGC()
		<-d.gcDone
	}
	return d.DB.Close()
}

// GC returns the value log GC runner, or nil when GC is disabled.
func (d *DB) GC() *GCRunner { return d.gc }

// Path returns the database directory, empty for in-memory databases.
func (d *DB) Path() string { return d.path }

// InMemory reports whether the database lives only in RAM.
func (d *DB) InMemory() bool { return d.inMemory }

// WithTxn runs fn in a read-write transaction and commits when fn
// returns nil.
func (d *DB) WithTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	txn := d.DB.NewTransaction(true)
	defer txn.Discard()
	if err := fn(txn); err != nil {
		return err
	}
	return txn.Commit()
}

// WithReadTxn runs fn in a read-only transaction.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	txn := d.DB.NewTransaction(false)
	defer txn.Discard()
	return fn(txn)
}
