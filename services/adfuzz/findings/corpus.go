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
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// corpusHeader opens every file in the go test fuzz corpus format.
const corpusHeader = "go test fuzz v1\n"

// ErrMalformedCorpus is returned for a corpus file whose body is not a
// single []byte literal.
var ErrMalformedCorpus = errors.New("malformed corpus file")

// EncodeCorpus renders data as a go test fuzz corpus entry.
func EncodeCorpus(data []byte) []byte {
	return []byte(fmt.Sprintf("%s[]byte(%q)\n", corpusHeader, data))
}

// DecodeCorpus accepts either a corpus entry or raw bytes. Raw files, as
// written by other fuzzing engines, are returned unchanged.
func DecodeCorpus(content []byte) ([]byte, error) {
	if !bytes.HasPrefix(content, []byte(corpusHeader)) {
		return content, nil
	}
	body := strings.TrimSpace(string(content[len(corpusHeader):]))
	if !strings.HasPrefix(body, "[]byte(") || !strings.HasSuffix(body, ")") {
		return nil, fmt.Errorf("%w: expected one []byte value", ErrMalformedCorpus)
	}
	lit := strings.TrimSuffix(strings.TrimPrefix(body, "[]byte("), ")")
	s, err := strconv.Unquote(lit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCorpus, err)
	}
	return []byte(s), nil
}

// ReadCorpusFile reads one input from path.
func ReadCorpusFile(path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeCorpus(content)
}

// CorpusName is the file name of data in a corpus directory.
func CorpusName(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))[:16]
}

// CorpusWriter writes reproducers into a directory, typically
// testdata/fuzz/FuzzDifferential so that go test replays them.
type CorpusWriter struct {
	Dir string
}

// Write stores data and returns its path. Writing the same input twice
// is a no-op.
func (w CorpusWriter) Write(data []byte) (string, error) {
	if w.Dir == "" {
		return "", errors.New("corpus directory is not set")
	}
	if err := os.MkdirAll(w.Dir, 0o750); err != nil {
		return "", fmt.Errorf("create corpus directory: %w", err)
	}
	path := filepath.Join(w.Dir, CorpusName(data))
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := os.WriteFile(path, EncodeCorpus(data), 0o640); err != nil {
		return "", fmt.Errorf("write corpus file: %w", err)
	}
	return path, nil
}
