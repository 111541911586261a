// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package expr defines the expression tree shared by the generator, the
// evaluator, the printers, and every differentiation backend.
//
// The tree is a closed set of node types parameterized by a tag type T.
// Every node carries one tag value; generated programs use Unit.
//
// Thread Safety: Trees are immutable after construction and may be shared
// freely between goroutines.
package expr

import "fmt"

// -----------------------------------------------------------------------------
// Operators
// -----------------------------------------------------------------------------

// Op1 is a unary operator.
type Op1 int

const (
	Neg Op1 = iota
	Sin
	Cos
	Tan
	Exp
	Log
	Sqrt
	Abs
)

var op1Names = [...]string{
	Neg:  "neg",
	Sin:  "sin",
	Cos:  "cos",
	Tan:  "tan",
	Exp:  "exp",
	Log:  "log",
	Sqrt: "sqrt",
	Abs:  "abs",
}

// String returns the lower-case operator name used by the printers.
func (o Op1) String() string {
	if o < 0 || int(o) >= len(op1Names) {
		return fmt.Sprintf("Op1(%d)", int(o))
	}
	return op1Names[o]
}

// AllOp1 lists every unary operator in declaration order.
func AllOp1() []Op1 {
	return []Op1{Neg, Sin, Cos, Tan, Exp, Log, Sqrt, Abs}
}

// Op2 is a binary operator.
type Op2 int

const (
	Add Op2 = iota
	Sub
	Mul
	Div
	Pow
)

var op2Names = [...]string{
	Add: "+",
	Sub: "-",
	Mul: "*",
	Div: "/",
	Pow: "pow",
}

// String returns the operator symbol ("+", "-", "*", "/") or "pow".
func (o Op2) String() string {
	if o < 0 || int(o) >= len(op2Names) {
		return fmt.Sprintf("Op2(%d)", int(o))
	}
	return op2Names[o]
}

// AllOp2 lists every binary operator in declaration order.
func AllOp2() []Op2 {
	return []Op2{Add, Sub, Mul, Div, Pow}
}

// Type is the target of a Cast node.
type Type int

const (
	TypeFloat Type = iota
	TypeInt
	TypeBool
)

// String returns the type name.
func (t Type) String() string {
	switch t {
	case TypeFloat:
		return "float"
	case TypeInt:
		return "int"
	case TypeBool:
		return "bool"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Unit is the empty tag used by generated programs.
type Unit struct{}
