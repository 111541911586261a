// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package symbolic

import (
	"github.com/AleutianAI/adfuzz/services/adfuzz/expr"
	"github.com/AleutianAI/adfuzz/services/adfuzz/printer"
)

// Node is a symbolic expression. Implementations are immutable.
type Node interface {
	String() string
	isNode()
}

// Num is a constant.
type Num struct{ Value float64 }

// Var is the input x_Index.
type Var struct{ Index int }

// Call applies a named function: neg, sin, cos, tan, exp, ln, sqrt, abs,
// or sign.
type Call struct {
	Fn  string
	Arg Node
}

// Bin applies one of + - * / ^.
type Bin struct {
	Op    byte
	Left  Node
	Right Node
}

func (Num) isNode()  {}
func (Var) isNode()  {}
func (Call) isNode() {}
func (Bin) isNode()  {}

func (n Num) String() string { return printer.FormatLiteral(n.Value) }
func (v Var) String() string { return expr.VarName(v.Index) }

func (c Call) String() string {
	if c.Fn == fnNeg {
		return "-(" + c.Arg.String() + ")"
	}
	return c.Fn + "(" + c.Arg.String() + ")"
}

func (b Bin) String() string {
	return "(" + b.Left.String() + " " + string(b.Op) + " " + b.Right.String() + ")"
}

const (
	fnNeg  = "neg"
	fnSin  = "sin"
	fnCos  = "cos"
	fnTan  = "tan"
	fnExp  = "exp"
	fnLn   = "ln"
	fnSqrt = "sqrt"
	fnAbs  = "abs"
	fnSign = "sign"
)

// callable lists the function names the parser accepts. "log" is an alias
// of "ln".
var callable = map[string]string{
	fnSin:  fnSin,
	fnCos:  fnCos,
	fnTan:  fnTan,
	fnExp:  fnExp,
	fnLn:   fnLn,
	"log":  fnLn,
	fnSqrt: fnSqrt,
	fnAbs:  fnAbs,
	fnSign: fnSign,
}

func isConst(n Node, v float64) bool {
	c, ok := n.(Num)
	return ok && c.Value == v
}
