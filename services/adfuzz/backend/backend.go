// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package backend defines the contract every differentiation engine adapter
// satisfies.
//
// An adapter evaluates a Function at a point through the shared evaluator
// instantiated at its own value type, and extracts a Jacobian whose length
// equals the Function's input arity. Subpackages provide the adapters:
//
//	forward  - dual-number tangent propagation, one direction per pass
//	reverse  - tape recording plus a single adjoint sweep
//	tensor   - scalar autograd graph, consumed by one Backward call
//	symbolic - parse, differentiate, simplify and compile the infix form
//
// All four follow one chain rule. A derivative flows only through operands
// that depend on the input being differentiated, so a constant subterm such
// as sqrt(0) contributes nothing and a constant exponent never forms the
// ln(base) term. Along dependent paths the arithmetic is plain IEEE: a zero
// tangent or adjoint times an infinite local partial is NaN, as in
// sqrt(x_0 - x_0).
package backend

import (
	"errors"
	"fmt"
	"math"

	"github.com/AleutianAI/adfuzz/services/adfuzz/expr"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrArityMismatch is returned when a point's length differs from the
	// Function's input arity.
	ErrArityMismatch = errors.New("arity mismatch")

	// ErrDerivative wraps a failure to extract a derivative. It is never
	// replaced by a zero, since a silent zero would hide a mismatch.
	ErrDerivative = errors.New("derivative extraction failed")
)

// Function is an expression together with the number of inputs it is
// evaluated over.
type Function struct {
	Expr      expr.Simple
	NumInputs int
}

// NewFunction wraps e with the arity implied by its highest x_i reference.
func NewFunction(e expr.Simple) Function {
	return Function{Expr: e, NumInputs: expr.InputArity(e)}
}

// NewFunctionWithArity wraps e with an explicit arity. The arity may exceed
// what e references; inputs e ignores get zero derivatives.
func NewFunctionWithArity(e expr.Simple, numInputs int) (Function, error) {
	if need := expr.InputArity(e); numInputs < need {
		return Function{}, fmt.Errorf("%w: expression references %d inputs, arity %d", ErrArityMismatch, need, numInputs)
	}
	return Function{Expr: e, NumInputs: numInputs}, nil
}

// CheckArity fails fast when point does not match the arity.
func (f Function) CheckArity(point []float64) error {
	if len(point) != f.NumInputs {
		return fmt.Errorf("%w: expected %d inputs, got %d", ErrArityMismatch, f.NumInputs, len(point))
	}
	return nil
}

// Differentiator is an automatic-differentiation engine adapter.
type Differentiator interface {
	// Name identifies the engine in diagnostics.
	Name() string

	// Value evaluates fn at point through the engine's value type.
	Value(fn Function, point []float64) (float64, error)

	// Jacobian returns d fn / d x_i for every input i.
	Jacobian(fn Function, point []float64) ([]float64, error)
}

// GroundTruthCalculator computes reference gradients independently of the
// engines under test. An error means "no ground truth for this point".
type GroundTruthCalculator interface {
	Name() string
	Calculate(fn Function, point []float64) ([]float64, error)
}

// Sign returns -1, 0 or 1. It is the derivative of abs used by every
// adapter; NaN stays NaN.
func Sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	case x == 0:
		return 0
	default:
		return math.NaN()
	}
}
