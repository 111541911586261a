// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package symbolic is a just-in-time symbolic differentiation backend.
//
// It consumes the infix rendering of an expression rather than the tree
// itself, so a disagreement with the other engines also catches printer
// and precedence bugs. The text is parsed, differentiated symbolically,
// simplified, and compiled to closures.
package symbolic

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/AleutianAI/adfuzz/services/adfuzz/backend"
	"github.com/AleutianAI/adfuzz/services/adfuzz/printer"
)

// Name is the ground-truth source name used in diagnostics.
const Name = "symbolic"

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrSyntax indicates malformed infix text.
	ErrSyntax = errors.New("syntax error")

	// ErrUnknownIdentifier indicates a name that is neither x_i nor a
	// known function.
	ErrUnknownIdentifier = errors.New("unknown identifier")

	// ErrRender indicates the expression could not be printed as infix.
	ErrRender = errors.New("cannot render expression")
)

// Equation is a parsed and compiled expression over NumInputs inputs.
// Derivatives are built on first use and cached.
//
// Thread Safety: Safe for concurrent use.
type Equation struct {
	source    string
	parsed    Node
	root      Node
	eval      compiled
	numInputs int

	mu     sync.Mutex
	derivs map[int]derivative
}

type derivative struct {
	node Node
	eval compiled
}

// NewEquation parses src and compiles it for numInputs inputs.
func NewEquation(src string, numInputs int) (*Equation, error) {
	parsed, err := Parse(src)
	if err != nil {
		return nil, err
	}
	// Differentiate the tree as parsed: x^0 folds to 1 for the value, but
	// its base may still carry an input.
	root := Simplify(parsed)
	if hi := maxVar(root); hi >= numInputs {
		return nil, fmt.Errorf("%w: references x_%d with %d inputs", backend.ErrArityMismatch, hi, numInputs)
	}
	eval, err := compile(root)
	if err != nil {
		return nil, err
	}
	return &Equation{
		source:    src,
		parsed:    parsed,
		root:      root,
		eval:      eval,
		numInputs: numInputs,
		derivs:    make(map[int]derivative),
	}, nil
}

// Source returns the text the equation was parsed from.
func (e *Equation) Source() string { return e.source }

// Root returns the simplified expression.
func (e *Equation) Root() Node { return e.root }

// Eval evaluates the equation at point.
func (e *Equation) Eval(point []float64) (float64, error) {
	if len(point) != e.numInputs {
		return 0, fmt.Errorf("%w: expected %d inputs, got %d", backend.ErrArityMismatch, e.numInputs, len(point))
	}
	return e.eval(point), nil
}

// Derivative returns the simplified symbolic partial with respect to x_i.
func (e *Equation) Derivative(i int) (Node, error) {
	d, err := e.derivative(i)
	if err != nil {
		return nil, err
	}
	return d.node, nil
}

func (e *Equation) derivative(i int) (derivative, error) {
	if i < 0 || i >= e.numInputs {
		return derivative{}, fmt.Errorf("%w: no input x_%d", backend.ErrArityMismatch, i)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if d, ok := e.derivs[i]; ok {
		return d, nil
	}
	node, err := Diff(e.parsed, i)
	if err != nil {
		return derivative{}, err
	}
	eval, err := compile(node)
	if err != nil {
		return derivative{}, err
	}
	d := derivative{node: node, eval: eval}
	e.derivs[i] = d
	return d, nil
}

// Gradient evaluates every partial at point.
func (e *Equation) Gradient(point []float64) ([]float64, error) {
	if len(point) != e.numInputs {
		return nil, fmt.Errorf("%w: expected %d inputs, got %d", backend.ErrArityMismatch, e.numInputs, len(point))
	}
	grad := make([]float64, e.numInputs)
	for i := range grad {
		d, err := e.derivative(i)
		if err != nil {
			return nil, fmt.Errorf("%w: %s x_%d: %w", backend.ErrDerivative, Name, i, err)
		}
		grad[i] = d.eval(point)
	}
	return grad, nil
}

// GroundTruth differentiates the infix rendering of each Function.
type GroundTruth struct{}

// NewGroundTruth returns the symbolic ground-truth calculator.
func NewGroundTruth() *GroundTruth { return &GroundTruth{} }

// Name implements backend.GroundTruthCalculator.
func (*GroundTruth) Name() string { return Name }

// Equation renders fn as infix text and compiles it.
func (*GroundTruth) Equation(fn backend.Function) (*Equation, error) {
	src := printer.Infix(fn.Expr, fn.NumInputs)
	if strings.HasPrefix(src, "<error") {
		return nil, fmt.Errorf("%w: %s", ErrRender, src)
	}
	return NewEquation(src, fn.NumInputs)
}

// Calculate implements backend.GroundTruthCalculator.
func (g *GroundTruth) Calculate(fn backend.Function, point []float64) ([]float64, error) {
	if err := fn.CheckArity(point); err != nil {
		return nil, err
	}
	eq, err := g.Equation(fn)
	if err != nil {
		return nil, err
	}
	return eq.Gradient(point)
}
