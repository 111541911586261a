// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package backend_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/adfuzz/services/adfuzz/backend"
	"github.com/AleutianAI/adfuzz/services/adfuzz/backend/forward"
	"github.com/AleutianAI/adfuzz/services/adfuzz/backend/reverse"
	"github.com/AleutianAI/adfuzz/services/adfuzz/backend/symbolic"
	"github.com/AleutianAI/adfuzz/services/adfuzz/backend/tensor"
	"github.com/AleutianAI/adfuzz/services/adfuzz/expr"
)

// jacobianFunc lets engines and ground-truth calculators share one table.
type jacobianFunc struct {
	name string
	fn   func(backend.Function, []float64) ([]float64, error)
}

func allEngines() []jacobianFunc {
	fwd, rev := forward.New(), reverse.New()
	ten, sym := tensor.NewGroundTruth(), symbolic.NewGroundTruth()
	return []jacobianFunc{
		{fwd.Name(), fwd.Jacobian},
		{rev.Name(), rev.Jacobian},
		{ten.Name(), ten.Calculate},
		{sym.Name(), sym.Calculate},
	}
}

func TestScenarios_AllEnginesAgree(t *testing.T) {
	tests := []struct {
		name  string
		e     expr.Simple
		point []float64
		want  []float64
	}{
		{
			name:  "scaled input",
			e:     expr.MulOf(expr.Num(-0.1), expr.Var(0)),
			point: []float64{1},
			want:  []float64{-0.1},
		},
		{
			name:  "sum",
			e:     expr.AddOf(expr.Var(0), expr.Var(1)),
			point: []float64{3, 4},
			want:  []float64{1, 1},
		},
		{
			name: "polynomial",
			e: expr.AddOf(
				expr.AddOf(expr.PowOf(expr.Var(0), expr.Num(2)), expr.MulOf(expr.Num(2), expr.Var(1))),
				expr.Num(3),
			),
			point: []float64{2, 1},
			want:  []float64{4, 2},
		},
		{
			name:  "product rule",
			e:     expr.MulOf(expr.SinOf(expr.Var(0)), expr.ExpOf(expr.Var(1))),
			point: []float64{0.5, 0.25},
			want:  []float64{math.Cos(0.5) * math.Exp(0.25), math.Sin(0.5) * math.Exp(0.25)},
		},
		{
			name:  "quotient",
			e:     expr.DivOf(expr.Var(0), expr.Var(1)),
			point: []float64{3, 2},
			want:  []float64{0.5, -0.75},
		},
		{
			name:  "variable exponent",
			e:     expr.PowOf(expr.Var(0), expr.Var(1)),
			point: []float64{2, 3},
			want:  []float64{12, 8 * math.Log(2)},
		},
		{
			name:  "sqrt log abs chain",
			e:     expr.SqrtOf(expr.LogOf(expr.AbsOf(expr.Var(0)))),
			point: []float64{-math.E},
			want:  []float64{-1 / (2 * math.E)},
		},
	}
	for _, tt := range tests {
		for _, eng := range allEngines() {
			t.Run(tt.name+"/"+eng.name, func(t *testing.T) {
				jac, err := eng.fn(backend.NewFunction(tt.e), tt.point)
				require.NoError(t, err)
				require.Len(t, jac, len(tt.want))
				for i := range tt.want {
					assert.InDelta(t, tt.want[i], jac[i], 1e-12, "index %d", i)
				}
			})
		}
	}
}

// Degenerate subterms must not split the engines: a vanishing but
// input-dependent derivative propagates as IEEE arithmetic everywhere, and
// a constant subterm contributes nothing anywhere.
func TestDegenerateSubterms_AllEnginesAgree(t *testing.T) {
	x := expr.Var(0)
	tests := []struct {
		name string
		e    expr.Simple
		want float64 // NaN means every engine must yield NaN
	}{
		{"sqrt of x minus x", expr.SqrtOf(expr.SubOf(x, x)), math.NaN()},
		{"pow with vanishing exponent", expr.PowOf(expr.NegOf(x), expr.SubOf(x, x)), math.NaN()},
		{"zero times sqrt of x minus x", expr.MulOf(expr.Num(0), expr.SqrtOf(expr.SubOf(x, x))), math.NaN()},
		{"constant sqrt of zero", expr.AddOf(x, expr.SqrtOf(expr.Num(0))), 1},
		{"constant exponent of negative base", expr.PowOf(expr.NegOf(x), expr.Num(2)), 4},
		{"divide by x minus x", expr.DivOf(expr.Num(1), expr.SubOf(x, x)), math.NaN()},
	}
	for _, tt := range tests {
		for _, eng := range allEngines() {
			t.Run(tt.name+"/"+eng.name, func(t *testing.T) {
				jac, err := eng.fn(backend.NewFunction(tt.e), []float64{2})
				require.NoError(t, err)
				require.Len(t, jac, 1)
				if math.IsNaN(tt.want) {
					assert.True(t, math.IsNaN(jac[0]), "got %v", jac[0])
					return
				}
				assert.Equal(t, tt.want, jac[0])
			})
		}
	}
}

func TestUnusedInputHasZeroDerivative(t *testing.T) {
	fn, err := backend.NewFunctionWithArity(expr.SinOf(expr.Var(0)), 3)
	require.NoError(t, err)
	for _, eng := range allEngines() {
		t.Run(eng.name, func(t *testing.T) {
			jac, err := eng.fn(fn, []float64{0, 5, 6})
			require.NoError(t, err)
			assert.Equal(t, []float64{1, 0, 0}, jac)
		})
	}
}

func TestConstantFunctionHasZeroJacobian(t *testing.T) {
	fn, err := backend.NewFunctionWithArity(expr.AddOf(expr.Num(1), expr.Num(2)), 2)
	require.NoError(t, err)
	for _, eng := range allEngines() {
		t.Run(eng.name, func(t *testing.T) {
			jac, err := eng.fn(fn, []float64{1, 1})
			require.NoError(t, err)
			assert.Equal(t, []float64{0, 0}, jac)
		})
	}
}

func TestArityMismatch(t *testing.T) {
	fn := backend.NewFunction(expr.AddOf(expr.Var(0), expr.Var(1)))
	for _, eng := range allEngines() {
		t.Run(eng.name, func(t *testing.T) {
			_, err := eng.fn(fn, []float64{1})
			assert.ErrorIs(t, err, backend.ErrArityMismatch)
			_, err = eng.fn(fn, []float64{1, 2, 3})
			assert.ErrorIs(t, err, backend.ErrArityMismatch)
		})
	}

	_, err := backend.NewFunctionWithArity(expr.Var(2), 2)
	assert.ErrorIs(t, err, backend.ErrArityMismatch)
}

func TestValueAgreesAcrossEngines(t *testing.T) {
	fn := backend.NewFunction(expr.DivOf(expr.CosOf(expr.Var(0)), expr.AddOf(expr.Var(1), expr.Num(2))))
	point := []float64{0.7, 1.3}
	want := math.Cos(point[0]) / (point[1] + 2)

	fv, err := forward.New().Value(fn, point)
	require.NoError(t, err)
	rv, err := reverse.New().Value(fn, point)
	require.NoError(t, err)
	tv, err := tensor.NewGroundTruth().Value(fn, point)
	require.NoError(t, err)

	assert.Equal(t, want, fv)
	assert.Equal(t, want, rv)
	assert.Equal(t, want, tv)
}

func TestSign(t *testing.T) {
	assert.Equal(t, 1.0, backend.Sign(2))
	assert.Equal(t, -1.0, backend.Sign(-0.5))
	assert.Equal(t, 0.0, backend.Sign(0))
	assert.True(t, math.IsNaN(backend.Sign(math.NaN())))
}
