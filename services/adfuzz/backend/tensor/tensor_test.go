// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tensor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/adfuzz/services/adfuzz/backend"
	"github.com/AleutianAI/adfuzz/services/adfuzz/expr"
)

func TestBackward_AccumulatesSharedLeaf(t *testing.T) {
	var alg Algebra
	x := Scalar(3, true)
	y := alg.Mul(x, x) // x used twice
	require.NoError(t, y.Backward())
	require.NotNil(t, x.Grad())
	assert.Equal(t, 6.0, *x.Grad())
}

func TestBackward_GraphConsumed(t *testing.T) {
	var alg Algebra
	x := Scalar(2, true)
	y := alg.Exp(x)
	require.NoError(t, y.Backward())
	assert.ErrorIs(t, y.Backward(), ErrGraphConsumed)
	assert.False(t, y.IsLeaf())
	assert.True(t, x.IsLeaf())
}

func TestBackward_NoGrad(t *testing.T) {
	var alg Algebra
	c := alg.Add(alg.Const(1), alg.Const(2))
	assert.False(t, c.RequiresGrad())
	assert.ErrorIs(t, c.Backward(), ErrNoGrad)
}

func TestBackward_LeafGradAccumulatesAcrossGraphs(t *testing.T) {
	var alg Algebra
	x := Scalar(1, true)
	require.NoError(t, alg.Mul(x, alg.Const(2)).Backward())
	require.NoError(t, alg.Mul(x, alg.Const(5)).Backward())
	assert.Equal(t, 7.0, *x.Grad())

	x.ZeroGrad()
	assert.Nil(t, x.Grad())
}

func TestBackward_VanishingGradientIsNotSkipped(t *testing.T) {
	// d/dx sqrt(x*0) at x=1: sqrt'(0) is +Inf, times 0 is NaN.
	var alg Algebra
	x := Scalar(1, true)
	y := alg.Sqrt(alg.Mul(x, alg.Const(0)))
	require.NoError(t, y.Backward())
	assert.True(t, math.IsNaN(*x.Grad()))
}

func TestPow_ConstantExponentNegativeBase(t *testing.T) {
	var alg Algebra
	x := Scalar(-2, true)
	y := alg.Pow(x, alg.Const(2))
	require.NoError(t, y.Backward())
	assert.Equal(t, -4.0, *x.Grad())
}

func TestGroundTruth_Calculate(t *testing.T) {
	gt := NewGroundTruth()
	assert.Equal(t, Name, gt.Name())

	fn, err := backend.NewFunctionWithArity(expr.MulOf(expr.Var(0), expr.CosOf(expr.Var(0))), 2)
	require.NoError(t, err)
	jac, err := gt.Calculate(fn, []float64{0.5, 9})
	require.NoError(t, err)
	assert.InDelta(t, math.Cos(0.5)-0.5*math.Sin(0.5), jac[0], 1e-15)
	assert.Equal(t, 0.0, jac[1])

	// Each call builds a fresh graph, so repeated calls agree.
	again, err := gt.Calculate(fn, []float64{0.5, 9})
	require.NoError(t, err)
	assert.Equal(t, jac, again)
}

func TestGroundTruth_EvaluationError(t *testing.T) {
	fn := backend.Function{Expr: expr.Named("y"), NumInputs: 0}
	_, err := NewGroundTruth().Calculate(fn, nil)
	assert.Error(t, err)
}
