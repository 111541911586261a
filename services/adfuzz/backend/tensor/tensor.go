// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tensor is a scalar autograd engine modelled on tensor libraries:
// tensors record a grad function when any operand requires grad, Backward
// accumulates into leaf grad buffers, and the graph is released after one
// Backward call.
//
// Gradients reach only operands that require grad, and a zero upstream
// gradient times an infinite local partial is NaN, as in the libraries it
// stands in for.
package tensor

import (
	"errors"
	"math"

	"github.com/AleutianAI/adfuzz/services/adfuzz/backend"
	"github.com/AleutianAI/adfuzz/services/adfuzz/numeric"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrGraphConsumed is returned by a second Backward on the same graph.
	ErrGraphConsumed = errors.New("graph already consumed by backward")

	// ErrNoGrad is returned by Backward on a tensor that does not require grad.
	ErrNoGrad = errors.New("tensor does not require grad")
)

// gradFn maps the upstream gradient to one gradient per input.
type gradFn struct {
	inputs   []*Tensor
	backward func(g float64) []float64
}

// Tensor is a 0-d tensor.
//
// Thread Safety: Not safe for concurrent use.
type Tensor struct {
	data         float64
	requiresGrad bool
	grad         *float64
	fn           *gradFn
	released     bool
}

// Scalar returns a leaf tensor.
func Scalar(v float64, requiresGrad bool) *Tensor {
	return &Tensor{data: v, requiresGrad: requiresGrad}
}

// Item returns the stored value.
func (t *Tensor) Item() float64 { return t.data }

// RequiresGrad reports whether gradients flow through t.
func (t *Tensor) RequiresGrad() bool { return t.requiresGrad }

// IsLeaf reports whether t was created directly rather than by an op.
func (t *Tensor) IsLeaf() bool { return t.fn == nil && !t.released }

// Grad returns the accumulated gradient, or nil if none was accumulated.
func (t *Tensor) Grad() *float64 { return t.grad }

// ZeroGrad clears the accumulated gradient.
func (t *Tensor) ZeroGrad() { t.grad = nil }

// Backward computes gradients of t with respect to every leaf that
// requires grad, accumulating into their grad buffers, then releases the
// graph.
func (t *Tensor) Backward() error {
	if t.released {
		return ErrGraphConsumed
	}
	if !t.requiresGrad {
		return ErrNoGrad
	}

	order := topo(t)
	grads := make(map[*Tensor]float64, len(order))
	grads[t] = 1
	for i := len(order) - 1; i >= 0; i-- {
		n := order[i]
		g := grads[n]
		if n.fn == nil {
			acc := g
			if n.grad != nil {
				acc += *n.grad
			}
			n.grad = &acc
			continue
		}
		parts := n.fn.backward(g)
		for k, in := range n.fn.inputs {
			if in.requiresGrad {
				grads[in] += parts[k]
			}
		}
	}

	for _, n := range order {
		if n.fn != nil {
			n.fn = nil
			n.released = true
		}
	}
	return nil
}

// topo returns the grad-requiring subgraph of root in topological order,
// inputs before outputs.
func topo(root *Tensor) []*Tensor {
	var order []*Tensor
	seen := make(map[*Tensor]bool)
	var visit func(*Tensor)
	visit = func(n *Tensor) {
		if seen[n] || !n.requiresGrad {
			return
		}
		seen[n] = true
		if n.fn != nil {
			for _, in := range n.fn.inputs {
				visit(in)
			}
		}
		order = append(order, n)
	}
	visit(root)
	return order
}

// -----------------------------------------------------------------------------
// Operations
// -----------------------------------------------------------------------------

func op(v float64, backward func(g float64) []float64, inputs ...*Tensor) *Tensor {
	out := &Tensor{data: v}
	for _, in := range inputs {
		if in.requiresGrad {
			out.requiresGrad = true
		}
	}
	if out.requiresGrad {
		out.fn = &gradFn{inputs: inputs, backward: backward}
	}
	return out
}

// Algebra builds tensor graphs. Constants never require grad.
type Algebra struct{}

var _ numeric.Algebra[*Tensor] = Algebra{}

func (Algebra) Const(c float64) *Tensor { return Scalar(c, false) }
func (Algebra) Zero() *Tensor           { return Scalar(0, false) }
func (Algebra) One() *Tensor            { return Scalar(1, false) }

func (Algebra) Neg(a *Tensor) *Tensor {
	return op(-a.data, func(g float64) []float64 { return []float64{-g} }, a)
}

func (Algebra) Sin(a *Tensor) *Tensor {
	x := a.data
	return op(math.Sin(x), func(g float64) []float64 { return []float64{g * math.Cos(x)} }, a)
}

func (Algebra) Cos(a *Tensor) *Tensor {
	x := a.data
	return op(math.Cos(x), func(g float64) []float64 { return []float64{-g * math.Sin(x)} }, a)
}

func (Algebra) Tan(a *Tensor) *Tensor {
	x := a.data
	y := math.Tan(x)
	return op(y, func(g float64) []float64 { return []float64{g * (1 + y*y)} }, a)
}

func (Algebra) Exp(a *Tensor) *Tensor {
	y := math.Exp(a.data)
	return op(y, func(g float64) []float64 { return []float64{g * y} }, a)
}

func (Algebra) Log(a *Tensor) *Tensor {
	x := a.data
	return op(math.Log(x), func(g float64) []float64 { return []float64{g / x} }, a)
}

func (Algebra) Sqrt(a *Tensor) *Tensor {
	y := math.Sqrt(a.data)
	return op(y, func(g float64) []float64 { return []float64{g / (2 * y)} }, a)
}

func (Algebra) Abs(a *Tensor) *Tensor {
	x := a.data
	return op(math.Abs(x), func(g float64) []float64 { return []float64{g * backend.Sign(x)} }, a)
}

func (Algebra) Add(a, b *Tensor) *Tensor {
	return op(a.data+b.data, func(g float64) []float64 { return []float64{g, g} }, a, b)
}

func (Algebra) Sub(a, b *Tensor) *Tensor {
	return op(a.data-b.data, func(g float64) []float64 { return []float64{g, -g} }, a, b)
}

func (Algebra) Mul(a, b *Tensor) *Tensor {
	x, y := a.data, b.data
	return op(x*y, func(g float64) []float64 { return []float64{g * y, g * x} }, a, b)
}

func (Algebra) Div(a, b *Tensor) *Tensor {
	x, y := a.data, b.data
	return op(x/y, func(g float64) []float64 { return []float64{g / y, -g * x / (y * y)} }, a, b)
}

// Pow only forms the log term when the exponent requires grad.
func (Algebra) Pow(a, b *Tensor) *Tensor {
	x, y := a.data, b.data
	v := math.Pow(x, y)
	expGrad := b.requiresGrad
	return op(v, func(g float64) []float64 {
		ga := g * y * math.Pow(x, y-1)
		if !expGrad {
			return []float64{ga, 0}
		}
		return []float64{ga, g * v * math.Log(x)}
	}, a, b)
}
