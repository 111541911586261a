// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package numeric defines the capability set a value type must provide to
// be computed from an expression tree, and the single tree-walking
// evaluator written against it.
//
// Every backend (plain floats, dual numbers, tape variables, tensors,
// strings for the printers) supplies an Algebra; none of them re-implement
// the walk.
package numeric

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/adfuzz/services/adfuzz/expr"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrUnboundVariable is returned when an identifier has no binding.
	ErrUnboundVariable = errors.New("unbound variable")

	// ErrBooleanInNumericContext is returned for boolean literals.
	ErrBooleanInNumericContext = errors.New("boolean in numeric context")

	// ErrUnsupportedNode is returned for control-flow and cast nodes.
	ErrUnsupportedNode = errors.New("unsupported node")
)

// Algebra is the numeric capability set over values of type V.
//
// Implementations carry whatever context the values need (a tape, a
// tangent direction); the evaluator only ever calls these methods.
type Algebra[V any] interface {
	Const(c float64) V
	Zero() V
	One() V

	Neg(a V) V
	Sin(a V) V
	Cos(a V) V
	Tan(a V) V
	Exp(a V) V
	Log(a V) V
	Sqrt(a V) V
	Abs(a V) V

	Add(a, b V) V
	Sub(a, b V) V
	Mul(a, b V) V
	Div(a, b V) V
	Pow(a, b V) V
}

// Env maps identifier names to values.
type Env[V any] map[string]V

// Bind returns an environment with values[i] bound to x_i.
func Bind[V any](values []V) Env[V] {
	env := make(Env[V], len(values))
	for i, v := range values {
		env[expr.VarName(i)] = v
	}
	return env
}

// Evaluate computes e over alg.
//
// Description:
//
//	Literals map to Const. Identifiers are looked up in env. Let bindings
//	are evaluated against the enclosing environment and are visible only
//	in the body. A block yields its last value, or Zero when empty.
//
// Inputs:
//
//	alg - The value algebra.
//	e - The expression. Must not be nil.
//	env - Variable bindings. Not modified.
//
// Outputs:
//
//	V - The computed value.
//	error - ErrUnboundVariable, ErrBooleanInNumericContext or
//	        ErrUnsupportedNode, wrapped with the offending detail.
//
// Thread Safety: Safe for concurrent use if alg is.
func Evaluate[V, T any](alg Algebra[V], e expr.Expr[T], env Env[V]) (V, error) {
	var zero V
	switch n := e.(type) {
	case *expr.Number[T]:
		return alg.Const(n.Value), nil

	case *expr.Boolean[T]:
		return zero, fmt.Errorf("%w: %t", ErrBooleanInNumericContext, n.Value)

	case *expr.Ident[T]:
		v, ok := env[n.Name]
		if !ok {
			return zero, fmt.Errorf("%w: %s", ErrUnboundVariable, n.Name)
		}
		return v, nil

	case *expr.Let[T]:
		inner := make(Env[V], len(env)+len(n.Bindings))
		for k, v := range env {
			inner[k] = v
		}
		for _, b := range n.Bindings {
			v, err := Evaluate(alg, b.Value, env)
			if err != nil {
				return zero, err
			}
			inner[b.Name] = v
		}
		return Evaluate(alg, n.Body, inner)

	case *expr.UnOp[T]:
		a, err := Evaluate(alg, n.Arg, env)
		if err != nil {
			return zero, err
		}
		return apply1(alg, n.Op, a)

	case *expr.BinOp[T]:
		a, err := Evaluate(alg, n.Left, env)
		if err != nil {
			return zero, err
		}
		b, err := Evaluate(alg, n.Right, env)
		if err != nil {
			return zero, err
		}
		return apply2(alg, n.Op, a, b)

	case *expr.Block[T]:
		last := alg.Zero()
		for _, sub := range n.Exprs {
			v, err := Evaluate(alg, sub, env)
			if err != nil {
				return zero, err
			}
			last = v
		}
		return last, nil

	case *expr.If[T], *expr.Loop[T], *expr.Break[T], *expr.Set[T], *expr.Cast[T]:
		return zero, fmt.Errorf("%w: %T", ErrUnsupportedNode, e)

	default:
		return zero, fmt.Errorf("%w: %T", ErrUnsupportedNode, e)
	}
}

func apply1[V any](alg Algebra[V], op expr.Op1, a V) (V, error) {
	switch op {
	case expr.Neg:
		return alg.Neg(a), nil
	case expr.Sin:
		return alg.Sin(a), nil
	case expr.Cos:
		return alg.Cos(a), nil
	case expr.Tan:
		return alg.Tan(a), nil
	case expr.Exp:
		return alg.Exp(a), nil
	case expr.Log:
		return alg.Log(a), nil
	case expr.Sqrt:
		return alg.Sqrt(a), nil
	case expr.Abs:
		return alg.Abs(a), nil
	}
	var zero V
	return zero, fmt.Errorf("%w: unary %s", ErrUnsupportedNode, op)
}

func apply2[V any](alg Algebra[V], op expr.Op2, a, b V) (V, error) {
	switch op {
	case expr.Add:
		return alg.Add(a, b), nil
	case expr.Sub:
		return alg.Sub(a, b), nil
	case expr.Mul:
		return alg.Mul(a, b), nil
	case expr.Div:
		return alg.Div(a, b), nil
	case expr.Pow:
		return alg.Pow(a, b), nil
	}
	var zero V
	return zero, fmt.Errorf("%w: binary %s", ErrUnsupportedNode, op)
}
