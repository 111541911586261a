// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package reverse implements reverse-mode differentiation on a Wengert
// tape. The forward evaluation records every operation with its local
// partials; one backward sweep then yields the whole gradient.
package reverse

import (
	"errors"
	"fmt"
	"math"

	"github.com/AleutianAI/adfuzz/services/adfuzz/backend"
	"github.com/AleutianAI/adfuzz/services/adfuzz/numeric"
)

// Name is the engine name used in diagnostics.
const Name = "reverse"

// ErrForeignVar is returned when Backward is given a Var from another tape.
var ErrForeignVar = errors.New("variable belongs to a different tape")

// node is one tape entry. Up to two parents with their local partials. dep
// marks nodes that depend on some input leaf.
type node struct {
	parents  [2]int
	partials [2]float64
	arity    int
	dep      bool
}

// Tape records operations. The zero value is ready to use.
//
// Thread Safety: Not safe for concurrent use.
type Tape struct {
	nodes []node
}

// Var is a value recorded on a tape.
type Var struct {
	tape  *Tape
	index int
	Value float64
}

// Len returns the number of recorded nodes.
func (t *Tape) Len() int { return len(t.nodes) }

func (t *Tape) push(value float64, n node) Var {
	t.nodes = append(t.nodes, n)
	return Var{tape: t, index: len(t.nodes) - 1, Value: value}
}

func (t *Tape) dep(v Var) bool { return t.nodes[v.index].dep }

func (t *Tape) unary(value float64, a Var, partial float64) Var {
	return t.push(value, node{
		parents:  [2]int{a.index},
		partials: [2]float64{partial},
		arity:    1,
		dep:      t.dep(a),
	})
}

func (t *Tape) binary(value float64, a Var, pa float64, b Var, pb float64) Var {
	return t.push(value, node{
		parents:  [2]int{a.index, b.index},
		partials: [2]float64{pa, pb},
		arity:    2,
		dep:      t.dep(a) || t.dep(b),
	})
}

// Input records a leaf that gradients flow into.
func (t *Tape) Input(x float64) Var { return t.push(x, node{dep: true}) }

// Constant records a leaf that no gradient flows into.
func (t *Tape) Constant(c float64) Var { return t.push(c, node{}) }

// Backward propagates a unit adjoint from out and returns the adjoint of
// every node recorded before it.
//
// Only nodes out is computed from are swept, and adjoints only flow into
// parents that depend on an input. Everything else is plain IEEE
// arithmetic: a zero adjoint times an infinite partial is NaN.
func (t *Tape) Backward(out Var) ([]float64, error) {
	if out.tape != t {
		return nil, ErrForeignVar
	}
	adj := make([]float64, out.index+1)
	live := make([]bool, out.index+1)
	adj[out.index] = 1
	live[out.index] = true
	for i := out.index; i >= 0; i-- {
		if !live[i] {
			continue
		}
		n := t.nodes[i]
		for k := 0; k < n.arity; k++ {
			p := n.parents[k]
			if !t.nodes[p].dep {
				continue
			}
			live[p] = true
			adj[p] += n.partials[k] * adj[i]
		}
	}
	return adj, nil
}

// Algebra records operations on a Tape. Values are Vars.
type Algebra struct {
	Tape *Tape
}

var _ numeric.Algebra[Var] = Algebra{}

func (a Algebra) Const(c float64) Var { return a.Tape.Constant(c) }
func (a Algebra) Zero() Var           { return a.Tape.Constant(0) }
func (a Algebra) One() Var            { return a.Tape.Constant(1) }

func (a Algebra) Neg(x Var) Var { return a.Tape.unary(-x.Value, x, -1) }
func (a Algebra) Sin(x Var) Var { return a.Tape.unary(math.Sin(x.Value), x, math.Cos(x.Value)) }
func (a Algebra) Cos(x Var) Var { return a.Tape.unary(math.Cos(x.Value), x, -math.Sin(x.Value)) }

func (a Algebra) Tan(x Var) Var {
	c := math.Cos(x.Value)
	return a.Tape.unary(math.Tan(x.Value), x, 1/(c*c))
}

func (a Algebra) Exp(x Var) Var {
	e := math.Exp(x.Value)
	return a.Tape.unary(e, x, e)
}

func (a Algebra) Log(x Var) Var { return a.Tape.unary(math.Log(x.Value), x, 1/x.Value) }

func (a Algebra) Sqrt(x Var) Var {
	s := math.Sqrt(x.Value)
	return a.Tape.unary(s, x, 1/(2*s))
}

func (a Algebra) Abs(x Var) Var { return a.Tape.unary(math.Abs(x.Value), x, backend.Sign(x.Value)) }

func (a Algebra) Add(x, y Var) Var { return a.Tape.binary(x.Value+y.Value, x, 1, y, 1) }
func (a Algebra) Sub(x, y Var) Var { return a.Tape.binary(x.Value-y.Value, x, 1, y, -1) }
func (a Algebra) Mul(x, y Var) Var { return a.Tape.binary(x.Value*y.Value, x, y.Value, y, x.Value) }

func (a Algebra) Div(x, y Var) Var {
	return a.Tape.binary(x.Value/y.Value, x, 1/y.Value, y, -x.Value/(y.Value*y.Value))
}

// Pow records the a^b*ln(a) partial only when the exponent depends on an
// input.
func (a Algebra) Pow(x, y Var) Var {
	v := math.Pow(x.Value, y.Value)
	var py float64
	if a.Tape.dep(y) {
		py = v * math.Log(x.Value)
	}
	return a.Tape.binary(v, x, y.Value*math.Pow(x.Value, y.Value-1), y, py)
}

// Engine is the reverse-mode adapter.
type Engine struct{}

// New returns a reverse-mode adapter.
func New() *Engine { return &Engine{} }

// Name implements backend.Differentiator.
func (*Engine) Name() string { return Name }

// Record evaluates fn on a fresh tape and returns the tape, the input
// leaves and the output.
func (*Engine) Record(fn backend.Function, point []float64) (*Tape, []Var, Var, error) {
	if err := fn.CheckArity(point); err != nil {
		return nil, nil, Var{}, err
	}
	tape := &Tape{}
	inputs := make([]Var, len(point))
	for i, x := range point {
		inputs[i] = tape.Input(x)
	}
	out, err := numeric.Evaluate[Var](Algebra{Tape: tape}, fn.Expr, numeric.Bind(inputs))
	if err != nil {
		return nil, nil, Var{}, err
	}
	return tape, inputs, out, nil
}

// Value implements backend.Differentiator.
func (e *Engine) Value(fn backend.Function, point []float64) (float64, error) {
	_, _, out, err := e.Record(fn, point)
	if err != nil {
		return 0, err
	}
	return out.Value, nil
}

// Jacobian implements backend.Differentiator.
func (e *Engine) Jacobian(fn backend.Function, point []float64) ([]float64, error) {
	tape, inputs, out, err := e.Record(fn, point)
	if err != nil {
		if errors.Is(err, backend.ErrArityMismatch) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", backend.ErrDerivative, Name, err)
	}
	adj, err := tape.Backward(out)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", backend.ErrDerivative, Name, err)
	}
	jac := make([]float64, len(inputs))
	for i, in := range inputs {
		if in.index < len(adj) {
			jac[i] = adj[in.index]
		}
	}
	return jac, nil
}
