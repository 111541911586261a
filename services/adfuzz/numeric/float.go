// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package numeric

import (
	"math"

	"github.com/AleutianAI/adfuzz/services/adfuzz/expr"
)

// Float is the plain float64 algebra. Domain errors follow IEEE-754:
// sqrt(-1) and log(-1) are NaN, log(0) is -Inf.
type Float struct{}

func (Float) Const(c float64) float64 { return c }
func (Float) Zero() float64           { return 0 }
func (Float) One() float64            { return 1 }

func (Float) Neg(a float64) float64  { return -a }
func (Float) Sin(a float64) float64  { return math.Sin(a) }
func (Float) Cos(a float64) float64  { return math.Cos(a) }
func (Float) Tan(a float64) float64  { return math.Tan(a) }
func (Float) Exp(a float64) float64  { return math.Exp(a) }
func (Float) Log(a float64) float64  { return math.Log(a) }
func (Float) Sqrt(a float64) float64 { return math.Sqrt(a) }
func (Float) Abs(a float64) float64  { return math.Abs(a) }

func (Float) Add(a, b float64) float64 { return a + b }
func (Float) Sub(a, b float64) float64 { return a - b }
func (Float) Mul(a, b float64) float64 { return a * b }
func (Float) Div(a, b float64) float64 { return a / b }
func (Float) Pow(a, b float64) float64 { return math.Pow(a, b) }

// EvaluateFloat evaluates e with point[i] bound to x_i.
func EvaluateFloat[T any](e expr.Expr[T], point []float64) (float64, error) {
	return Evaluate[float64](Float{}, e, Bind(point))
}
