// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package replay

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/adfuzz/services/adfuzz/backend"
	"github.com/AleutianAI/adfuzz/services/adfuzz/backend/reverse"
	"github.com/AleutianAI/adfuzz/services/adfuzz/findings"
	"github.com/AleutianAI/adfuzz/services/adfuzz/harness"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// sumInput decodes to the point (a, b) and the program x_0 + x_1.
func sumInput(a, b float64) []byte {
	return append(harness.EncodePoint([]float64{a, b}), 2, 0, 0, 0, 0, 1, 0)
}

// skewed breaks the reverse engine so that every checked program fails.
type skewed struct{ backend.Differentiator }

func (s skewed) Jacobian(fn backend.Function, point []float64) ([]float64, error) {
	jac, err := s.Differentiator.Jacobian(fn, point)
	if err == nil && len(jac) > 0 {
		jac[0] += 1
	}
	return jac, err
}

func newReplayer(broken bool) *Replayer {
	opts := harness.DefaultOptions()
	opts.Logger = discard
	opts.ReportWriter = io.Discard
	if broken {
		opts.Reverse = skewed{reverse.New()}
	}
	return &Replayer{Driver: harness.New(opts), Workers: 4, Logger: discard}
}

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, content, 0o640))
}

func TestCollect(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b"), []byte{1})
	writeFile(t, filepath.Join(dir, "sub", "a"), []byte{1})
	writeFile(t, filepath.Join(dir, ".hidden"), []byte{1})
	writeFile(t, filepath.Join(dir, ".git", "c"), []byte{1})
	single := filepath.Join(t.TempDir(), "single")
	writeFile(t, single, []byte{1})

	files, err := Collect([]string{dir, single})
	require.NoError(t, err)
	assert.Len(t, files, 3)
	assert.Contains(t, files, filepath.Join(dir, "b"))
	assert.Contains(t, files, filepath.Join(dir, "sub", "a"))
	assert.Contains(t, files, single)

	_, err = Collect([]string{filepath.Join(dir, "missing")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRun_PassingCorpus(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 6; i++ {
		data := sumInput(float64(i+1), 2)
		writeFile(t, filepath.Join(dir, findings.CorpusName(data)), findings.EncodeCorpus(data))
	}
	writeFile(t, filepath.Join(dir, "raw"), sumInput(9, 9))

	r := newReplayer(false)
	sum, err := r.Run(context.Background(), []string{dir})
	require.NoError(t, err)
	assert.Equal(t, 7, sum.Files)
	assert.Empty(t, sum.Escalations)
	assert.Zero(t, sum.Unreadable)
	assert.Equal(t, int64(7), r.Driver.Stats().Passed)
}

func TestRun_CollectsEscalations(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "one"), sumInput(1, 2))
	writeFile(t, filepath.Join(dir, "two"), sumInput(3, 4))
	writeFile(t, filepath.Join(dir, "bad"), []byte("go test fuzz v1\nint(3)\n"))

	sum, err := newReplayer(true).Run(context.Background(), []string{dir})
	require.NoError(t, err)
	require.Len(t, sum.Escalations, 2)
	assert.Equal(t, filepath.Join(dir, "one"), sum.Escalations[0].Path)
	assert.Equal(t, 1, sum.Unreadable)

	var f *harness.Failure
	assert.ErrorAs(t, sum.Escalations[1].Err, &f)
}

func TestRun_Cancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "one"), sumInput(1, 2))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newReplayer(false).Run(ctx, []string{dir})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "existing"), sumInput(1, 1))

	var (
		mu   sync.Mutex
		seen []string
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	r := newReplayer(false)
	go func() {
		done <- r.Watch(ctx, dir, func(path string, it *harness.Iteration, err error) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, filepath.Base(path))
		})
	}()

	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(seen)
	}
	require.Eventually(t, func() bool { return count() == 1 }, 2*time.Second, 10*time.Millisecond)

	writeFile(t, filepath.Join(dir, "fresh"), findings.EncodeCorpus(sumInput(2, 5)))
	require.Eventually(t, func() bool { return count() == 2 }, 5*time.Second, 10*time.Millisecond)

	// same content under another name is not replayed again
	writeFile(t, filepath.Join(dir, "copy"), sumInput(1, 1))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 2, count())

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, int64(2), r.Driver.Stats().Iterations)
}
