// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package catalog holds hand-built expressions with known derivatives. They
// serve as smoke tests for the engines and as the programs behind the
// example command.
package catalog

import (
	"context"

	"github.com/AleutianAI/adfuzz/services/adfuzz/expr"
	"github.com/AleutianAI/adfuzz/services/adfuzz/generator"
	"github.com/AleutianAI/adfuzz/services/adfuzz/harness"
)

// Example is one expression evaluated at a fixed point.
type Example struct {
	Name      string
	Expr      expr.Simple
	NumInputs int
	Inputs    []float64

	// Jacobian is the analytic gradient at Inputs.
	Jacobian []float64
}

// Program wraps the example as a generated program would look.
func (e Example) Program() *generator.Program {
	used := make([]int, e.NumInputs)
	for i := range used {
		used[i] = i
	}
	return &generator.Program{Expr: e.Expr, UsedVariables: used, NumInputs: e.NumInputs}
}

// Examples returns the built-in examples. Every call builds fresh trees.
func Examples() []Example {
	x0, x1 := expr.Var(0), expr.Var(1)
	return []Example{
		{
			Name:      "-0.1 * x_0",
			Expr:      expr.MulOf(expr.Num(-0.1), x0),
			NumInputs: 2,
			Inputs:    []float64{1, 2},
			Jacobian:  []float64{-0.1, 0},
		},
		{
			Name:      "x_0 + x_1",
			Expr:      expr.AddOf(x0, x1),
			NumInputs: 2,
			Inputs:    []float64{3, 4},
			Jacobian:  []float64{1, 1},
		},
		{
			Name:      "sin(x_0) * cos(x_1)",
			Expr:      expr.MulOf(expr.SinOf(expr.Var(0)), expr.CosOf(expr.Var(1))),
			NumInputs: 2,
			Inputs:    []float64{0.5, 1},
			// cos(0.5)cos(1), -sin(0.5)sin(1)
			Jacobian: []float64{0.4741598817790379, -0.4034226801113349},
		},
		{
			Name:      "(x_0 + x_1) * (x_0 - x_1)",
			Expr:      expr.MulOf(expr.AddOf(expr.Var(0), expr.Var(1)), expr.SubOf(expr.Var(0), expr.Var(1))),
			NumInputs: 2,
			Inputs:    []float64{5, 3},
			Jacobian:  []float64{10, -6},
		},
		{
			Name:      "exp(x_0 / 10)",
			Expr:      expr.ExpOf(expr.DivOf(expr.Var(0), expr.Num(10))),
			NumInputs: 2,
			Inputs:    []float64{2, 3},
			// exp(0.2) / 10
			Jacobian: []float64{0.12214027581601698, 0},
		},
		{
			Name:      "x_0^2 + 2*x_1 + 3",
			Expr:      expr.AddOf(expr.AddOf(expr.PowOf(expr.Var(0), expr.Num(2)), expr.MulOf(expr.Num(2), expr.Var(1))), expr.Num(3)),
			NumInputs: 2,
			Inputs:    []float64{2, 1},
			Jacobian:  []float64{4, 2},
		},
	}
}

// Run checks every example with d and returns one result per example, in
// order. The driver's mode still decides whether a failure escalates; the
// first escalating error stops the run.
func Run(ctx context.Context, d *harness.Driver) ([]harness.ProgramResult, error) {
	examples := Examples()
	out := make([]harness.ProgramResult, 0, len(examples))
	for _, ex := range examples {
		res, err := d.RunProgram(ctx, ex.Program(), ex.Inputs, harness.EncodePoint(ex.Inputs))
		out = append(out, res)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}
