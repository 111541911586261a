// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package replay feeds stored fuzz inputs back through a harness driver,
// either as a one-shot batch over files and directories or continuously
// as an external fuzzer drops new files into a directory.
package replay

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/adfuzz/services/adfuzz/findings"
	"github.com/AleutianAI/adfuzz/services/adfuzz/harness"
)

// Escalation is one input whose iteration escalated.
type Escalation struct {
	Path string
	Err  error
}

// Summary is the outcome of a batch replay.
type Summary struct {
	Files       int
	Unreadable  int
	Escalations []Escalation
}

// Replayer runs inputs through a driver.
type Replayer struct {
	Driver *harness.Driver

	// Workers bounds concurrent iterations. Values below 1 mean 1.
	Workers int

	Logger *slog.Logger
}

func (r *Replayer) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

// Collect expands paths into a sorted list of regular files. Directories
// are walked recursively; hidden files and directories are skipped.
func Collect(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			hidden := path != p && strings.HasPrefix(d.Name(), ".")
			if d.IsDir() {
				if hidden {
					return filepath.SkipDir
				}
				return nil
			}
			if !hidden && d.Type().IsRegular() {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", p, err)
		}
	}
	sort.Strings(out)
	return out, nil
}

// ReplayFile runs one file. It returns the driver's escalation error, or
// a read error.
func (r *Replayer) ReplayFile(ctx context.Context, path string) (*harness.Iteration, error) {
	data, err := findings.ReadCorpusFile(path)
	if err != nil {
		return nil, err
	}
	return r.Driver.Run(ctx, data)
}

// Run replays every file under paths.
//
// Description:
//
//	Files are processed by up to Workers goroutines. Unreadable files are
//	logged and counted. Escalating iterations are collected rather than
//	aborting the batch, so one run reports every crasher in a corpus.
//
// Outputs:
//
//	Summary - Counts and escalations, sorted by path.
//	error - Non-nil when paths cannot be walked or ctx is cancelled.
func (r *Replayer) Run(ctx context.Context, paths []string) (Summary, error) {
	files, err := Collect(paths)
	if err != nil {
		return Summary{}, err
	}
	var (
		mu  sync.Mutex
		sum = Summary{Files: len(files)}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.Workers, 1))
	for _, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			_, err := r.ReplayFile(gctx, path)
			if err == nil {
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			var f *harness.Failure
			if errors.As(err, &f) {
				sum.Escalations = append(sum.Escalations, Escalation{Path: path, Err: err})
				return nil
			}
			sum.Unreadable++
			r.logger().Warn("skipping unreadable input",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return sum, err
	}
	sort.Slice(sum.Escalations, func(i, j int) bool {
		return sum.Escalations[i].Path < sum.Escalations[j].Path
	})
	return sum, nil
}
