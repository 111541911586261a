// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reverse

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/adfuzz/services/adfuzz/backend"
	"github.com/AleutianAI/adfuzz/services/adfuzz/expr"
)

func TestTape_RecordsEveryOperation(t *testing.T) {
	fn := backend.NewFunction(expr.AddOf(expr.MulOf(expr.Var(0), expr.Var(1)), expr.Num(2)))
	tape, inputs, out, err := New().Record(fn, []float64{3, 4})
	require.NoError(t, err)
	// two inputs, mul, const, add
	assert.Equal(t, 5, tape.Len())
	assert.Len(t, inputs, 2)
	assert.Equal(t, 14.0, out.Value)

	adj, err := tape.Backward(out)
	require.NoError(t, err)
	assert.Equal(t, 4.0, adj[inputs[0].index])
	assert.Equal(t, 3.0, adj[inputs[1].index])
}

func TestTape_ForeignVar(t *testing.T) {
	a, b := &Tape{}, &Tape{}
	v := b.Input(1)
	_, err := a.Backward(v)
	assert.ErrorIs(t, err, ErrForeignVar)
}

func TestJacobian_OutputIsInput(t *testing.T) {
	fn, err := backend.NewFunctionWithArity(expr.Var(0), 3)
	require.NoError(t, err)
	jac, err := New().Jacobian(fn, []float64{7, 8, 9})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0}, jac)
}

func TestJacobian_ConstantSubtermReceivesNoAdjoint(t *testing.T) {
	// x_0 + sqrt(0): sqrt'(0) is +Inf but the constant does not depend on
	// an input.
	fn := backend.NewFunction(expr.AddOf(expr.Var(0), expr.SqrtOf(expr.Num(0))))
	jac, err := New().Jacobian(fn, []float64{1})
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, jac)
}

func TestJacobian_VanishingAdjointIsNotSkipped(t *testing.T) {
	// 0 * sqrt(x_0 - x_0): the adjoint reaching sqrt is 0 and its partial
	// is +Inf, so the gradient is NaN.
	fn := backend.NewFunction(expr.MulOf(expr.Num(0), expr.SqrtOf(expr.SubOf(expr.Var(0), expr.Var(0)))))
	jac, err := New().Jacobian(fn, []float64{2})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(jac[0]))
}

func TestBackward_SweepsOnlyWhatOutputDependsOn(t *testing.T) {
	// sqrt(x - x) is recorded before out but out is not computed from it.
	tape := &Tape{}
	alg := Algebra{Tape: tape}
	x := tape.Input(2)
	_ = alg.Sqrt(alg.Sub(x, x))
	out := alg.Mul(x, alg.Const(3))

	adj, err := tape.Backward(out)
	require.NoError(t, err)
	assert.Equal(t, 3.0, adj[x.index])
}

func TestPow_ConstantExponentRecordsNoLogPartial(t *testing.T) {
	tape := &Tape{}
	alg := Algebra{Tape: tape}
	x := tape.Input(-2)
	out := alg.Pow(x, alg.Const(2))
	assert.Equal(t, 0.0, tape.nodes[out.index].partials[1])

	adj, err := tape.Backward(out)
	require.NoError(t, err)
	assert.Equal(t, -4.0, adj[x.index])
}

func TestJacobian_PropagatesEvaluationErrors(t *testing.T) {
	fn := backend.Function{Expr: expr.Do(expr.Bool(false)), NumInputs: 0}
	_, err := New().Jacobian(fn, nil)
	assert.ErrorIs(t, err, backend.ErrDerivative)
}
