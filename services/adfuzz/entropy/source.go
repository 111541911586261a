// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package entropy turns a finite byte buffer into a stream of decisions.
//
// Bytes are consumed strictly left to right and never reinterpreted.
// Running out of bytes is always reported as ErrExhausted; there is no
// silent fallback value, so a fuzzer's coverage feedback maps directly
// onto the bytes that shaped each decision.
package entropy

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrExhausted is returned when a draw needs more bytes than remain.
	ErrExhausted = errors.New("entropy exhausted")

	// ErrInvalidRange is returned for an empty range or zero denominator.
	ErrInvalidRange = errors.New("invalid range")
)

// Source is a byte-buffer-backed decision source.
//
// Thread Safety: Not safe for concurrent use.
type Source struct {
	data []byte
	pos  int
}

// New returns a Source reading from data. The slice is not copied.
func New(data []byte) *Source {
	return &Source{data: data}
}

// Remaining returns the number of unread bytes.
func (s *Source) Remaining() int { return len(s.data) - s.pos }

// Consumed returns the number of bytes read so far.
func (s *Source) Consumed() int { return s.pos }

// Bytes reads exactly n bytes.
func (s *Source) Bytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrInvalidRange, n)
	}
	if s.Remaining() < n {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrExhausted, n, s.Remaining())
	}
	b := s.data[s.pos : s.pos+n]
	s.pos += n
	return b, nil
}

// Byte reads one byte.
func (s *Source) Byte() (byte, error) {
	b, err := s.Bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Bool reads one byte and returns its low bit.
func (s *Source) Bool() (bool, error) {
	b, err := s.Byte()
	if err != nil {
		return false, err
	}
	return b&1 == 1, nil
}

// Float64 reads 8 bytes as a little-endian IEEE-754 double. Any bit
// pattern is accepted, including NaN and infinities.
func (s *Source) Float64() (float64, error) {
	b, err := s.Bytes(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

// IntInRange draws an integer in [lo, hi].
//
// Description:
//
//	Reads the minimal number of big-endian bytes able to represent the
//	span hi-lo and reduces the result modulo span+1. A degenerate range
//	(lo == hi) consumes nothing.
//
// Outputs:
//
//	int - A value in [lo, hi].
//	error - ErrInvalidRange if hi < lo, ErrExhausted if bytes run out.
func (s *Source) IntInRange(lo, hi int) (int, error) {
	if hi < lo {
		return 0, fmt.Errorf("%w: [%d, %d]", ErrInvalidRange, lo, hi)
	}
	span := uint64(hi - lo)
	if span == 0 {
		return lo, nil
	}
	n := 0
	for v := span; v > 0; v >>= 8 {
		n++
	}
	b, err := s.Bytes(n)
	if err != nil {
		return 0, err
	}
	var acc uint64
	for _, c := range b {
		acc = acc<<8 | uint64(c)
	}
	if span == math.MaxUint64 {
		return lo + int(acc), nil
	}
	return lo + int(acc%(span+1)), nil
}

// Choose draws an index in [0, n).
func (s *Source) Choose(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("%w: choose from %d", ErrInvalidRange, n)
	}
	return s.IntInRange(0, n-1)
}

// Ratio returns true with probability num/den: it draws k in [1, den] and
// reports k <= num.
func (s *Source) Ratio(num, den int) (bool, error) {
	if den <= 0 || num < 0 {
		return false, fmt.Errorf("%w: ratio %d/%d", ErrInvalidRange, num, den)
	}
	k, err := s.IntInRange(1, den)
	if err != nil {
		return false, err
	}
	return k <= num, nil
}

// RandomBytes fills a fresh buffer of n bytes from rng. It backs the
// non-reproducible convenience generator; fuzz inputs never go through it.
func RandomBytes(rng *rand.Rand, n int) []byte {
	out := make([]byte, n)
	for i := 0; i < n; i += 8 {
		var word [8]byte
		binary.LittleEndian.PutUint64(word[:], rng.Uint64())
		copy(out[i:], word[:])
	}
	return out
}
