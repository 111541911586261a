// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package entropy

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntInRange_ConsumesMinimalBytes(t *testing.T) {
	s := New([]byte{7, 0x01, 0x02})

	v, err := s.IntInRange(0, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, v) // 7 % 3
	assert.Equal(t, 1, s.Consumed())

	v, err = s.IntInRange(0, 1000)
	require.NoError(t, err)
	assert.Equal(t, 258%1001, v)
	assert.Equal(t, 0, s.Remaining())
}

func TestIntInRange_DegenerateConsumesNothing(t *testing.T) {
	s := New(nil)
	v, err := s.IntInRange(5, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, v)
	assert.Equal(t, 0, s.Consumed())
}

func TestIntInRange_Errors(t *testing.T) {
	_, err := New([]byte{1}).IntInRange(3, 1)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = New(nil).IntInRange(0, 4)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestFailedDrawConsumesNothing(t *testing.T) {
	s := New([]byte{1, 2})
	_, err := s.Float64()
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 2, s.Remaining())
}

func TestRatio(t *testing.T) {
	// k = 1 + (b % 5); true iff k <= 2.
	tests := []struct {
		b    byte
		want bool
	}{
		{0, true}, {1, true}, {2, false}, {3, false}, {4, false}, {5, true},
	}
	for _, tt := range tests {
		got, err := New([]byte{tt.b}).Ratio(2, 5)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "byte %d", tt.b)
	}

	_, err := New([]byte{1}).Ratio(1, 0)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestFloat64_LittleEndian(t *testing.T) {
	s := New([]byte{0, 0, 0, 0, 0, 0, 0xf0, 0x3f})
	v, err := s.Float64()
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	nan := New([]byte{1, 0, 0, 0, 0, 0, 0xf8, 0x7f})
	v, err = nan.Float64()
	require.NoError(t, err)
	assert.True(t, math.IsNaN(v))
}

func TestChooseAndBool(t *testing.T) {
	s := New([]byte{9, 3})
	i, err := s.Choose(4)
	require.NoError(t, err)
	assert.Equal(t, 1, i)

	b, err := s.Bool()
	require.NoError(t, err)
	assert.True(t, b)

	_, err = s.Choose(0)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestRandomBytes_Deterministic(t *testing.T) {
	a := RandomBytes(rand.New(rand.NewPCG(1, 2)), 13)
	b := RandomBytes(rand.New(rand.NewPCG(1, 2)), 13)
	assert.Len(t, a, 13)
	assert.Equal(t, a, b)
}
