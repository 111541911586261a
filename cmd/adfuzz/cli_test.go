// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/adfuzz/services/adfuzz/findings"
	"github.com/AleutianAI/adfuzz/services/adfuzz/harness"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "debug", "json")
	require.NoError(t, err)
	logger.Debug("hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	_, err = newLogger(&buf, "loud", "text")
	assert.Error(t, err)
	_, err = newLogger(&buf, "info", "xml")
	assert.Error(t, err)
}

func TestGenerate_Reproducible(t *testing.T) {
	first, err := execute(t, "generate", "--count", "3", "--seed", "42")
	require.NoError(t, err)
	second, err := execute(t, "generate", "--count", "3", "--seed", "42")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Contains(t, first, "# seed 42")
	assert.Equal(t, 3, strings.Count(first, "### program"))

	_, err = execute(t, "generate", "--count", "0")
	assert.Error(t, err)
}

func TestExample(t *testing.T) {
	out, err := execute(t, "example")
	require.NoError(t, err)
	assert.Equal(t, 6, strings.Count(out, "PASS"))
	assert.Contains(t, out, "=== x_0 + x_1 ===")
	assert.Contains(t, out, "Infix:  (x_0 + x_1)")
	assert.Contains(t, out, "tensor:")
	assert.Contains(t, out, "symbolic:")
}

func TestRunAndFindings(t *testing.T) {
	corpus := t.TempDir()
	data := append(harness.EncodePoint([]float64{3, 4}), 2, 0, 0, 0, 0, 1, 0)
	require.NoError(t, os.WriteFile(filepath.Join(corpus, findings.CorpusName(data)), findings.EncodeCorpus(data), 0o640))
	db := filepath.Join(t.TempDir(), "findings")

	out, err := execute(t, "run", corpus, "--workers", "2", "--findings-db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "replayed 1 files")
	assert.Contains(t, out, "passed: 1")

	out, err = execute(t, "findings", "list", "--findings-db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "0 of 0 findings")

	_, err = execute(t, "findings", "show", "00000000-0000-0000-0000-000000000000", "--findings-db", db)
	assert.ErrorIs(t, err, findings.ErrNotFound)
}

func TestRun_RequiresPath(t *testing.T) {
	_, err := execute(t, "run")
	assert.Error(t, err)
}

func TestRun_MetricsNeedExporter(t *testing.T) {
	_, err := execute(t, "run", t.TempDir(), "--metrics-addr", "127.0.0.1:0")
	assert.Error(t, err)
}
