// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package printer renders expressions as text by evaluating them over
// string-building algebras.
//
// Three forms are provided:
//
//	SExpr: (+ (pow x_0 2) 3)
//	Infix: ((x_0 ^ 2) + 3)
//	SSA:   t0 = x_0 ** 2
//	       t1 = t0 + 3
//	       return t1
//
// The infix form parenthesizes every binary node, so it parses back to the
// same tree under any precedence table in which unary minus binds tightest.
package printer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/AleutianAI/adfuzz/services/adfuzz/expr"
	"github.com/AleutianAI/adfuzz/services/adfuzz/numeric"
)

// FormatLiteral renders a float the way every printer does.
func FormatLiteral(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// SExpr renders e in prefix form with x_0..x_{numInputs-1} in scope.
func SExpr[T any](e expr.Expr[T], numInputs int) string {
	return render(sexprAlgebra{}, e, numInputs)
}

// Infix renders e in fully parenthesized infix form. log prints as ln and
// pow as ^.
func Infix[T any](e expr.Expr[T], numInputs int) string {
	return render(infixAlgebra{}, e, numInputs)
}

// SSA renders e as a sequence of three-address statements followed by a
// return. A tree with no operators renders as its single operand.
func SSA[T any](e expr.Expr[T], numInputs int) string {
	alg := &ssaAlgebra{}
	env := make(numeric.Env[string], numInputs)
	for i := 0; i < numInputs; i++ {
		env[expr.VarName(i)] = expr.VarName(i)
	}
	result, err := numeric.Evaluate[string](alg, e, env)
	if err != nil {
		return errorText(err)
	}
	if len(alg.stmts) == 0 {
		return result
	}
	return strings.Join(append(alg.stmts, "return "+result), "\n")
}

func render[T any](alg numeric.Algebra[string], e expr.Expr[T], numInputs int) string {
	env := make(numeric.Env[string], numInputs)
	for i := 0; i < numInputs; i++ {
		env[expr.VarName(i)] = expr.VarName(i)
	}
	out, err := numeric.Evaluate(alg, e, env)
	if err != nil {
		return errorText(err)
	}
	return out
}

func errorText(err error) string {
	return fmt.Sprintf("<error: %v>", err)
}

// -----------------------------------------------------------------------------
// S-expression
// -----------------------------------------------------------------------------

type sexprAlgebra struct{}

func (sexprAlgebra) Const(c float64) string { return FormatLiteral(c) }
func (sexprAlgebra) Zero() string           { return "0" }
func (sexprAlgebra) One() string            { return "1" }

func (sexprAlgebra) Neg(a string) string  { return "(neg " + a + ")" }
func (sexprAlgebra) Sin(a string) string  { return "(sin " + a + ")" }
func (sexprAlgebra) Cos(a string) string  { return "(cos " + a + ")" }
func (sexprAlgebra) Tan(a string) string  { return "(tan " + a + ")" }
func (sexprAlgebra) Exp(a string) string  { return "(exp " + a + ")" }
func (sexprAlgebra) Log(a string) string  { return "(log " + a + ")" }
func (sexprAlgebra) Sqrt(a string) string { return "(sqrt " + a + ")" }
func (sexprAlgebra) Abs(a string) string  { return "(abs " + a + ")" }

func (sexprAlgebra) Add(a, b string) string { return "(+ " + a + " " + b + ")" }
func (sexprAlgebra) Sub(a, b string) string { return "(- " + a + " " + b + ")" }
func (sexprAlgebra) Mul(a, b string) string { return "(* " + a + " " + b + ")" }
func (sexprAlgebra) Div(a, b string) string { return "(/ " + a + " " + b + ")" }
func (sexprAlgebra) Pow(a, b string) string { return "(pow " + a + " " + b + ")" }

// -----------------------------------------------------------------------------
// Infix
// -----------------------------------------------------------------------------

type infixAlgebra struct{}

func (infixAlgebra) Const(c float64) string { return FormatLiteral(c) }
func (infixAlgebra) Zero() string           { return "0" }
func (infixAlgebra) One() string            { return "1" }

func (infixAlgebra) Neg(a string) string  { return "-(" + a + ")" }
func (infixAlgebra) Sin(a string) string  { return "sin(" + a + ")" }
func (infixAlgebra) Cos(a string) string  { return "cos(" + a + ")" }
func (infixAlgebra) Tan(a string) string  { return "tan(" + a + ")" }
func (infixAlgebra) Exp(a string) string  { return "exp(" + a + ")" }
func (infixAlgebra) Log(a string) string  { return "ln(" + a + ")" }
func (infixAlgebra) Sqrt(a string) string { return "sqrt(" + a + ")" }
func (infixAlgebra) Abs(a string) string  { return "abs(" + a + ")" }

func (infixAlgebra) Add(a, b string) string { return "(" + a + " + " + b + ")" }
func (infixAlgebra) Sub(a, b string) string { return "(" + a + " - " + b + ")" }
func (infixAlgebra) Mul(a, b string) string { return "(" + a + " * " + b + ")" }
func (infixAlgebra) Div(a, b string) string { return "(" + a + " / " + b + ")" }
func (infixAlgebra) Pow(a, b string) string { return "(" + a + " ^ " + b + ")" }

// -----------------------------------------------------------------------------
// SSA
// -----------------------------------------------------------------------------

// ssaAlgebra values are operand names; every operation appends a statement
// and returns the fresh temporary it assigned.
type ssaAlgebra struct {
	stmts []string
}

func (s *ssaAlgebra) emit(rhs string) string {
	name := "t" + strconv.Itoa(len(s.stmts))
	s.stmts = append(s.stmts, name+" = "+rhs)
	return name
}

func (s *ssaAlgebra) Const(c float64) string { return FormatLiteral(c) }
func (s *ssaAlgebra) Zero() string           { return "0" }
func (s *ssaAlgebra) One() string            { return "1" }

func (s *ssaAlgebra) Neg(a string) string  { return s.emit("-" + a) }
func (s *ssaAlgebra) Sin(a string) string  { return s.emit("sin(" + a + ")") }
func (s *ssaAlgebra) Cos(a string) string  { return s.emit("cos(" + a + ")") }
func (s *ssaAlgebra) Tan(a string) string  { return s.emit("tan(" + a + ")") }
func (s *ssaAlgebra) Exp(a string) string  { return s.emit("exp(" + a + ")") }
func (s *ssaAlgebra) Log(a string) string  { return s.emit("log(" + a + ")") }
func (s *ssaAlgebra) Sqrt(a string) string { return s.emit("sqrt(" + a + ")") }
func (s *ssaAlgebra) Abs(a string) string  { return s.emit("abs(" + a + ")") }

func (s *ssaAlgebra) Add(a, b string) string { return s.emit(a + " + " + b) }
func (s *ssaAlgebra) Sub(a, b string) string { return s.emit(a + " - " + b) }
func (s *ssaAlgebra) Mul(a, b string) string { return s.emit(a + " * " + b) }
func (s *ssaAlgebra) Div(a, b string) string { return s.emit(a + " / " + b) }
func (s *ssaAlgebra) Pow(a, b string) string { return s.emit(a + " ** " + b) }
