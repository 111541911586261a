// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package oracle

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nan = math.NaN()

func TestTolerance_Compare(t *testing.T) {
	tol := DefaultTolerance()
	tests := []struct {
		name  string
		value float64
		ref   float64
		want  Verdict
	}{
		{"exact", 1.5, 1.5, Pass},
		{"zero ref within abs", 5e-13, 0, Pass},
		{"zero ref beyond abs", 2e-12, 0, Fail},
		{"large ref within rel", 1e6 + 9e-4, 1e6, Pass},
		{"large ref beyond rel", 1e6 + 2e-3, 1e6, Fail},
		{"nan ref only", 1, nan, Skip},
		{"nan value only", nan, 1, Fail},
		{"both nan", nan, nan, Skip},
		{"inf ref", 3, math.Inf(1), Skip},
		{"nan value inf ref", nan, math.Inf(-1), Skip},
		{"inf value finite ref", math.Inf(-1), 2, Fail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tol.Compare(tt.value, tt.ref).Verdict)
		})
	}
}

func TestTolerance_ComparePeer(t *testing.T) {
	tol := DefaultTolerance()
	tests := []struct {
		name  string
		value float64
		ref   float64
		want  Verdict
	}{
		{"exact", 1.5, 1.5, Pass},
		{"beyond rel", 1e6 + 2e-3, 1e6, Fail},
		{"nan ref only", 1, nan, Fail},
		{"nan value only", nan, 1, Fail},
		{"nan value inf ref", nan, math.Inf(1), Fail},
		{"both nan", nan, nan, Skip},
		{"inf ref", 3, math.Inf(1), Skip},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tol.ComparePeer(tt.value, tt.ref)
			assert.Equal(t, tt.want, out.Verdict)
			assert.Equal(t, tt.want == Fail && math.IsNaN(tt.value) != math.IsNaN(tt.ref), out.NaNMismatch)
		})
	}
}

func TestTolerance_ThresholdBoundary(t *testing.T) {
	tol := DefaultTolerance()
	assert.Equal(t, 1e-12, tol.Threshold(0))
	assert.InDelta(t, 1e-3, tol.Threshold(1e6), 1e-18)
	assert.InDelta(t, 1e-3, tol.Threshold(-1e6), 1e-18)
}

func TestOutcome_PercentDiffCapped(t *testing.T) {
	out := DefaultTolerance().Compare(10, 1)
	assert.Equal(t, 9.0, out.RelDiff)
	assert.Equal(t, 100.0, out.PercentDiff())

	out = DefaultTolerance().Compare(1, 0)
	// reference near zero: relative figure falls back to the absolute one
	assert.Equal(t, 1.0, out.RelDiff)
}

func TestOutcome_NaNMismatchFlag(t *testing.T) {
	out := DefaultTolerance().Compare(nan, 0)
	assert.True(t, out.NaNMismatch)
	assert.False(t, DefaultTolerance().Compare(1, 2).NaNMismatch)
}

func TestCoarseAgree(t *testing.T) {
	assert.True(t, CoarseAgree(1, 1+5e-7))
	assert.False(t, CoarseAgree(1, 1+2e-6))
	assert.True(t, CoarseAgree(nan, nan))
	assert.False(t, CoarseAgree(nan, 0))
	assert.True(t, CoarseAgree(math.Inf(1), math.Inf(1)))
}

func TestParseSelection(t *testing.T) {
	tests := []struct {
		in   string
		want Selection
	}{
		{"all", SelectAll},
		{"ALL", SelectAll},
		{"rev_fwd", SelectRevFwd},
		{"Rev_Fwd", SelectRevFwd},
		{"rev_gt", SelectRevGT},
		{"FWD_GT", SelectFwdGT},
		{"gt_gt", SelectGTGT},
		{"", SelectAll},
		{"bogus", SelectAll},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			sel := ParseSelection(tt.in)
			assert.Equal(t, tt.want, sel)
			assert.Equal(t, sel, ParseSelection(sel.String()))
		})
	}
}

func TestReverseVsForward_MessageCarriesBreakdown(t *testing.T) {
	engine := &EngineResults{Reverse: []float64{1}, Forward: []float64{2}}
	err := ReverseVsForward{Tolerance: DefaultTolerance()}.Check(engine, nil, 0)
	require.Error(t, err)

	var me *MismatchError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, SourceReverse, me.ValueSource)
	assert.Equal(t, SourceForward, me.ReferenceSource)
	assert.Equal(t, 1.0, me.Outcome.AbsDiff)
	assert.InDelta(t, 2e-9, me.Outcome.Threshold, 1e-20)

	msg := err.Error()
	assert.Contains(t, msg, "Reverse AD: 1.0000000000e+00")
	assert.Contains(t, msg, "Forward AD: 2.0000000000e+00")
	assert.Contains(t, msg, "Absolute Diff")
	assert.Contains(t, msg, "Relative Diff: 5.0000000000e-01 (50%)")
	assert.Contains(t, msg, "Tolerance Threshold")
}

func TestMismatchError_NaNReferenceReportsAbsFloor(t *testing.T) {
	engine := &EngineResults{Reverse: []float64{1}, Forward: []float64{nan}}
	err := ReverseVsForward{Tolerance: DefaultTolerance()}.Check(engine, nil, 0)
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "Tolerance Threshold: 1.0000000000e-12")
	assert.NotContains(t, msg, "Tolerance Threshold: NaN")
}

func TestADVsGroundTruth(t *testing.T) {
	engine := &EngineResults{Reverse: []float64{1}, Forward: []float64{3}}
	gt := &GroundTruth{Name: "tensor", Jacobian: []float64{3}}

	assert.Error(t, ADVsGroundTruth{Mode: ModeReverse, Tolerance: DefaultTolerance()}.Check(engine, gt, 0))
	assert.NoError(t, ADVsGroundTruth{Mode: ModeForward, Tolerance: DefaultTolerance()}.Check(engine, gt, 0))

	err := ADVsGroundTruth{Mode: ModeForward}.Check(engine, nil, 0)
	assert.ErrorIs(t, err, ErrMissingGroundTruth)
}

func TestGroundTruthAgreement(t *testing.T) {
	gts := []GroundTruth{
		{Name: "tensor", Jacobian: []float64{1, 2}},
		{Name: "symbolic", Jacobian: []float64{1, 2.5}},
	}
	o := GroundTruthAgreement{Tolerance: DefaultTolerance()}
	assert.NoError(t, o.Check(gts, 0))

	var me *MismatchError
	require.True(t, errors.As(o.Check(gts, 1), &me))
	assert.Equal(t, "tensor", me.ValueSource)
	assert.Equal(t, "symbolic", me.ReferenceSource)

	assert.NoError(t, o.Check(gts[:1], 1))
}

func TestSet_CheckAll(t *testing.T) {
	agree := &EngineResults{Inputs: []float64{1}, Reverse: []float64{-0.1}, Forward: []float64{-0.1}}

	t.Run("passes", func(t *testing.T) {
		gts := []GroundTruth{{Name: "tensor", Jacobian: []float64{-0.1}}}
		assert.NoError(t, NewSet("all").CheckAll(agree, gts))
	})

	t.Run("dimension mismatch precedes comparison", func(t *testing.T) {
		e := &EngineResults{Reverse: []float64{1, 2}, Forward: []float64{100}}
		err := NewSet("rev_gt").CheckAll(e, nil)
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("ground truth dimension mismatch", func(t *testing.T) {
		gts := []GroundTruth{{Name: "tensor", Jacobian: []float64{1, 2}}}
		assert.ErrorIs(t, NewSet("all").CheckAll(agree, gts), ErrDimensionMismatch)
	})

	t.Run("selection limits oracles", func(t *testing.T) {
		gts := []GroundTruth{{Name: "tensor", Jacobian: []float64{5}}}
		assert.NoError(t, NewSet("rev_fwd").CheckAll(agree, gts))
		assert.Error(t, NewSet("rev_gt").CheckAll(agree, gts))
		assert.Error(t, NewSet("FWD_GT").CheckAll(agree, gts))
	})

	t.Run("first failure wins and carries inputs", func(t *testing.T) {
		e := &EngineResults{Inputs: []float64{3, 4}, Reverse: []float64{1, 9}, Forward: []float64{2, 8}}
		err := NewSet("all").CheckAll(e, nil)
		var me *MismatchError
		require.True(t, errors.As(err, &me))
		assert.Equal(t, 0, me.Index)
		assert.Equal(t, "rev_fwd", me.Oracle)
		assert.Equal(t, []float64{3, 4}, me.Inputs)
		assert.Contains(t, err.Error(), "Inputs: [3 4]")
	})

	t.Run("reverse checked before forward per ground truth", func(t *testing.T) {
		e := &EngineResults{Reverse: []float64{1}, Forward: []float64{1}}
		gts := []GroundTruth{
			{Name: "a", Jacobian: []float64{1}},
			{Name: "b", Jacobian: []float64{7}},
		}
		var me *MismatchError
		require.True(t, errors.As(NewSet("all").CheckAll(e, gts), &me))
		assert.Equal(t, "rev_gt", me.Oracle)
		assert.Equal(t, "b", me.ReferenceSource)
	})

	t.Run("skips non-finite ground truth", func(t *testing.T) {
		for _, ref := range []float64{math.Inf(1), math.Inf(-1), nan} {
			gts := []GroundTruth{{Name: "tensor", Jacobian: []float64{ref}}}
			assert.NoError(t, NewSet("rev_gt").CheckAll(agree, gts), "%v", ref)
			assert.NoError(t, NewSet("fwd_gt").CheckAll(agree, gts), "%v", ref)
		}
	})

	t.Run("one-sided nan between modes fails either way round", func(t *testing.T) {
		for _, e := range []*EngineResults{
			{Reverse: []float64{nan}, Forward: []float64{1}},
			{Reverse: []float64{1}, Forward: []float64{nan}},
		} {
			err := NewSet("rev_fwd").CheckAll(e, nil)
			var me *MismatchError
			require.True(t, errors.As(err, &me))
			assert.True(t, me.Outcome.NaNMismatch)
			assert.Contains(t, err.Error(), "NaN mismatch")
		}
	})

	t.Run("empty jacobian", func(t *testing.T) {
		assert.NoError(t, NewSet("all").CheckAll(&EngineResults{}, nil))
	})
}
