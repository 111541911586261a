// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package expr

// Simple is an expression carrying no metadata. The generator emits Simple
// trees and hand-written scenarios use the constructors below.
type Simple = Expr[Unit]

// Num returns a numeric literal.
func Num(v float64) Simple { return &Number[Unit]{Value: v} }

// Bool returns a boolean literal.
func Bool(v bool) Simple { return &Boolean[Unit]{Value: v} }

// Var returns a reference to x_i.
func Var(i int) Simple { return &Ident[Unit]{Name: VarName(i)} }

// Named returns a reference to an arbitrary identifier.
func Named(name string) Simple { return &Ident[Unit]{Name: name} }

// Unary applies op to a.
func Unary(op Op1, a Simple) Simple { return &UnOp[Unit]{Op: op, Arg: a} }

// Binary applies op to a and b.
func Binary(op Op2, a, b Simple) Simple { return &BinOp[Unit]{Op: op, Left: a, Right: b} }

func AddOf(a, b Simple) Simple { return Binary(Add, a, b) }
func SubOf(a, b Simple) Simple { return Binary(Sub, a, b) }
func MulOf(a, b Simple) Simple { return Binary(Mul, a, b) }
func DivOf(a, b Simple) Simple { return Binary(Div, a, b) }
func PowOf(a, b Simple) Simple { return Binary(Pow, a, b) }

func NegOf(a Simple) Simple  { return Unary(Neg, a) }
func SinOf(a Simple) Simple  { return Unary(Sin, a) }
func CosOf(a Simple) Simple  { return Unary(Cos, a) }
func TanOf(a Simple) Simple  { return Unary(Tan, a) }
func ExpOf(a Simple) Simple  { return Unary(Exp, a) }
func LogOf(a Simple) Simple  { return Unary(Log, a) }
func SqrtOf(a Simple) Simple { return Unary(Sqrt, a) }
func AbsOf(a Simple) Simple  { return Unary(Abs, a) }

// LetIn binds a single name for the body.
func LetIn(name string, value, body Simple) Simple {
	return &Let[Unit]{Bindings: []Binding[Unit]{{Name: name, Value: value}}, Body: body}
}

// Do sequences expressions into a Block.
func Do(exprs ...Simple) Simple { return &Block[Unit]{Exprs: exprs} }
