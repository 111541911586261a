// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package forward implements forward-mode differentiation with dual
// numbers. Each pass seeds one input direction, so a full Jacobian costs
// one evaluation per input.
package forward

import (
	"fmt"
	"math"

	"github.com/AleutianAI/adfuzz/services/adfuzz/backend"
	"github.com/AleutianAI/adfuzz/services/adfuzz/numeric"
)

// Name is the engine name used in diagnostics.
const Name = "forward"

// Dual is a primal value and its tangent along the seeded direction. Dep
// marks values that depend on the seeded input; only those carry a tangent
// into the operations that consume them.
type Dual struct {
	Val float64
	Tan float64
	Dep bool
}

// Seed returns an input seeded with a unit tangent.
func Seed(x float64) Dual { return Dual{Val: x, Tan: 1, Dep: true} }

// term is partial times the tangent of a, or an exact zero when a does not
// depend on the seeded input.
func term(partial float64, a Dual) float64 {
	if !a.Dep {
		return 0
	}
	return partial * a.Tan
}

func unary(v, partial float64, a Dual) Dual {
	return Dual{Val: v, Tan: term(partial, a), Dep: a.Dep}
}

// Algebra is the dual-number capability set.
type Algebra struct{}

var _ numeric.Algebra[Dual] = Algebra{}

func (Algebra) Const(c float64) Dual { return Dual{Val: c} }
func (Algebra) Zero() Dual           { return Dual{} }
func (Algebra) One() Dual            { return Dual{Val: 1} }

func (Algebra) Neg(a Dual) Dual { return unary(-a.Val, -1, a) }
func (Algebra) Sin(a Dual) Dual { return unary(math.Sin(a.Val), math.Cos(a.Val), a) }
func (Algebra) Cos(a Dual) Dual { return unary(math.Cos(a.Val), -math.Sin(a.Val), a) }

func (Algebra) Tan(a Dual) Dual {
	c := math.Cos(a.Val)
	return unary(math.Tan(a.Val), 1/(c*c), a)
}

func (Algebra) Exp(a Dual) Dual {
	e := math.Exp(a.Val)
	return unary(e, e, a)
}

func (Algebra) Log(a Dual) Dual { return unary(math.Log(a.Val), 1/a.Val, a) }

func (Algebra) Sqrt(a Dual) Dual {
	s := math.Sqrt(a.Val)
	return unary(s, 1/(2*s), a)
}

func (Algebra) Abs(a Dual) Dual { return unary(math.Abs(a.Val), backend.Sign(a.Val), a) }

func (Algebra) Add(a, b Dual) Dual {
	return Dual{Val: a.Val + b.Val, Tan: term(1, a) + term(1, b), Dep: a.Dep || b.Dep}
}

func (Algebra) Sub(a, b Dual) Dual {
	return Dual{Val: a.Val - b.Val, Tan: term(1, a) + term(-1, b), Dep: a.Dep || b.Dep}
}

func (Algebra) Mul(a, b Dual) Dual {
	return Dual{
		Val: a.Val * b.Val,
		Tan: term(b.Val, a) + term(a.Val, b),
		Dep: a.Dep || b.Dep,
	}
}

func (Algebra) Div(a, b Dual) Dual {
	return Dual{
		Val: a.Val / b.Val,
		Tan: term(1/b.Val, a) + term(-a.Val/(b.Val*b.Val), b),
		Dep: a.Dep || b.Dep,
	}
}

// Pow differentiates a^b. The a^b*ln(a) term is only formed when b depends
// on the seeded input, so constant exponents of negative bases stay finite.
func (Algebra) Pow(a, b Dual) Dual {
	v := math.Pow(a.Val, b.Val)
	return Dual{
		Val: v,
		Tan: term(b.Val*math.Pow(a.Val, b.Val-1), a) + term(v*math.Log(a.Val), b),
		Dep: a.Dep || b.Dep,
	}
}

// Engine is the forward-mode adapter.
type Engine struct{}

// New returns a forward-mode adapter.
func New() *Engine { return &Engine{} }

// Name implements backend.Differentiator.
func (*Engine) Name() string { return Name }

// Evaluate evaluates fn at point with the tangent seeded along direction.
// A negative direction seeds nothing.
func (*Engine) Evaluate(fn backend.Function, point []float64, direction int) (Dual, error) {
	if err := fn.CheckArity(point); err != nil {
		return Dual{}, err
	}
	inputs := make([]Dual, len(point))
	for i, x := range point {
		inputs[i] = Dual{Val: x}
		if i == direction {
			inputs[i] = Seed(x)
		}
	}
	return numeric.Evaluate[Dual](Algebra{}, fn.Expr, numeric.Bind(inputs))
}

// Value implements backend.Differentiator.
func (e *Engine) Value(fn backend.Function, point []float64) (float64, error) {
	d, err := e.Evaluate(fn, point, -1)
	if err != nil {
		return 0, err
	}
	return d.Val, nil
}

// Jacobian implements backend.Differentiator.
func (e *Engine) Jacobian(fn backend.Function, point []float64) ([]float64, error) {
	if err := fn.CheckArity(point); err != nil {
		return nil, err
	}
	jac := make([]float64, len(point))
	for i := range point {
		d, err := e.Evaluate(fn, point, i)
		if err != nil {
			return nil, fmt.Errorf("%w: %s direction %d: %w", backend.ErrDerivative, Name, i, err)
		}
		jac[i] = d.Tan
	}
	return jac, nil
}
