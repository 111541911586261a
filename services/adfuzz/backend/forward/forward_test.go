// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package forward

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/adfuzz/services/adfuzz/backend"
	"github.com/AleutianAI/adfuzz/services/adfuzz/expr"
)

func TestEvaluate_SeedsOneDirection(t *testing.T) {
	fn := backend.NewFunction(expr.MulOf(expr.Var(0), expr.Var(1)))
	e := New()

	d, err := e.Evaluate(fn, []float64{3, 5}, 0)
	require.NoError(t, err)
	assert.Equal(t, Dual{Val: 15, Tan: 5, Dep: true}, d)

	d, err = e.Evaluate(fn, []float64{3, 5}, 1)
	require.NoError(t, err)
	assert.Equal(t, Dual{Val: 15, Tan: 3, Dep: true}, d)

	d, err = e.Evaluate(fn, []float64{3, 5}, -1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, d.Tan)
	assert.False(t, d.Dep)
}

func TestPow_ConstantExponentOfNegativeBase(t *testing.T) {
	var alg Algebra
	d := alg.Pow(Seed(-2), alg.Const(3))
	assert.Equal(t, -8.0, d.Val)
	assert.Equal(t, 12.0, d.Tan)
}

func TestPow_VariableExponentOfNegativeBaseIsNaN(t *testing.T) {
	var alg Algebra
	d := alg.Pow(alg.Const(-2), Seed(2))
	assert.True(t, math.IsNaN(d.Tan))
}

func TestConstantSubtermCarriesNoTangent(t *testing.T) {
	// sqrt of a constant zero has an infinite local derivative but does not
	// depend on the input.
	var alg Algebra
	d := alg.Add(Seed(1), alg.Sqrt(alg.Const(0)))
	assert.Equal(t, 1.0, d.Tan)

	// Same for an infinite constant factor.
	d = alg.Add(Seed(1), alg.Mul(alg.Const(math.Inf(1)), alg.Const(2)))
	assert.Equal(t, 1.0, d.Tan)
}

func TestVanishingTangentIsNotAStructuralZero(t *testing.T) {
	var alg Algebra
	x := Seed(2)

	// sqrt(x - x): the inner tangent is 0, sqrt'(0) is +Inf.
	d := alg.Sqrt(alg.Sub(x, x))
	assert.Equal(t, 0.0, d.Val)
	assert.True(t, math.IsNaN(d.Tan))

	// pow(-x, x - x): the exponent depends on x, so ln(-2) enters.
	d = alg.Pow(alg.Neg(x), alg.Sub(x, x))
	assert.Equal(t, 1.0, d.Val)
	assert.True(t, math.IsNaN(d.Tan))
}

func TestAbsAtZero(t *testing.T) {
	var alg Algebra
	assert.Equal(t, 0.0, alg.Abs(Seed(0)).Tan)
	assert.Equal(t, -1.0, alg.Abs(Seed(-4)).Tan)
}

func TestJacobian_PropagatesEvaluationErrors(t *testing.T) {
	fn := backend.Function{Expr: expr.AddOf(expr.Var(0), expr.Named("z")), NumInputs: 1}
	_, err := New().Jacobian(fn, []float64{1})
	assert.ErrorIs(t, err, backend.ErrDerivative)
}
