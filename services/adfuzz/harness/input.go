// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package harness

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/AleutianAI/adfuzz/services/adfuzz/expr"
)

// WindowStride is the offset between generation windows of consecutive
// programs drawn from one input.
const WindowStride = 32

// Mode selects how oracle failures escalate.
type Mode int

const (
	// PanicOnFirstError aborts on the first failure so the fuzzing engine
	// records the triggering input.
	PanicOnFirstError Mode = iota

	// Continuous logs failures and keeps going.
	Continuous
)

// ParseMode returns Continuous for "continuous" in any case and
// PanicOnFirstError for anything else.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), "continuous") {
		return Continuous
	}
	return PanicOnFirstError
}

// String returns the mode name.
func (m Mode) String() string {
	if m == Continuous {
		return "continuous"
	}
	return "panic"
}

// DecodePoint reads n little-endian doubles from the front of data and
// returns them with the remaining bytes.
func DecodePoint(data []byte, n int) ([]float64, []byte, error) {
	need := n * 8
	if n < 0 || len(data) < need {
		return nil, nil, fmt.Errorf("%w: need %d bytes, have %d", ErrInsufficientData, need, len(data))
	}
	point := make([]float64, n)
	for i := range point {
		point[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return point, data[need:], nil
}

// EncodePoint is the inverse of DecodePoint.
func EncodePoint(point []float64) []byte {
	out := make([]byte, 8*len(point))
	for i, x := range point {
		binary.LittleEndian.PutUint64(out[i*8:], math.Float64bits(x))
	}
	return out
}

// Windows returns the generation window of each of n programs. Window i
// starts WindowStride*i bytes into rest; a start past the end falls back
// to the whole of rest.
func Windows(rest []byte, n int) [][]byte {
	out := make([][]byte, 0, max(n, 0))
	for i := 0; i < n; i++ {
		off := i * WindowStride
		if off < len(rest) {
			out = append(out, rest[off:])
		} else {
			out = append(out, rest)
		}
	}
	return out
}

// Sanitizer rejects points and programs the engines cannot be compared on.
type Sanitizer struct {
	// MaxMagnitude bounds |x_i| for every decoded input.
	MaxMagnitude float64

	// PositiveDomain requires the inputs a program uses to be > 0 when it
	// contains sqrt, log or pow.
	PositiveDomain bool
}

// DefaultSanitizer returns the default magnitude band with the positive
// domain check enabled.
func DefaultSanitizer() Sanitizer {
	return Sanitizer{MaxMagnitude: 1e10, PositiveDomain: true}
}

// CheckPoint rejects non-finite inputs and inputs outside the band.
func (s Sanitizer) CheckPoint(point []float64) error {
	for i, x := range point {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%w: x_%d is %v", ErrRejected, i, x)
		}
		if s.MaxMagnitude > 0 && math.Abs(x) > s.MaxMagnitude {
			return fmt.Errorf("%w: |x_%d| = %g exceeds %g", ErrRejected, i, math.Abs(x), s.MaxMagnitude)
		}
	}
	return nil
}

// CheckProgram applies the domain precondition of e to the inputs it
// uses.
func (s Sanitizer) CheckProgram(e expr.Simple, inputs []float64) error {
	if !s.PositiveDomain {
		return nil
	}
	if !expr.ContainsOp1(e, expr.Sqrt, expr.Log) && !expr.ContainsOp2(e, expr.Pow) {
		return nil
	}
	for i, x := range inputs {
		if x <= 0 {
			return fmt.Errorf("%w: x_%d = %g outside the positive domain", ErrRejected, i, x)
		}
	}
	return nil
}
