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
	"fmt"
	"math"

	"github.com/AleutianAI/adfuzz/services/adfuzz/backend"
)

// Diff returns the simplified partial derivative of n with respect to x_i.
//
// Subterms that do not mention x_i differentiate to nothing rather than to
// a zero factor, so sqrt(0) or a constant exponent add no term. Terms that
// do mention x_i are kept even when they vanish numerically.
func Diff(n Node, i int) (Node, error) {
	d, err := diff(n, i)
	if err != nil {
		return nil, err
	}
	return Simplify(d), nil
}

func diff(n Node, i int) (Node, error) {
	if !depends(n, i) {
		return Num{0}, nil
	}
	switch n := n.(type) {
	case Var:
		return Num{1}, nil

	case Call:
		da, err := diff(n.Arg, i)
		if err != nil {
			return nil, err
		}
		a := n.Arg
		switch n.Fn {
		case fnNeg:
			return neg(da), nil
		case fnSin:
			return mul(call(fnCos, a), da), nil
		case fnCos:
			return mul(neg(call(fnSin, a)), da), nil
		case fnTan:
			return mul(div(Num{1}, mul(call(fnCos, a), call(fnCos, a))), da), nil
		case fnExp:
			return mul(call(fnExp, a), da), nil
		case fnLn:
			return mul(div(Num{1}, a), da), nil
		case fnSqrt:
			return mul(div(Num{1}, mul(Num{2}, call(fnSqrt, a))), da), nil
		case fnAbs:
			return mul(call(fnSign, a), da), nil
		case fnSign:
			return mul(Num{0}, da), nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownIdentifier, n.Fn)

	case Bin:
		a, b := n.Left, n.Right
		da, err := diff(a, i)
		if err != nil {
			return nil, err
		}
		db, err := diff(b, i)
		if err != nil {
			return nil, err
		}
		var left, right Node
		switch n.Op {
		case '+':
			left, right = da, db
		case '-':
			left, right = da, neg(db)
		case '*':
			left, right = mul(b, da), mul(a, db)
		case '/':
			left, right = mul(div(Num{1}, b), da), mul(neg(div(a, mul(b, b))), db)
		case '^':
			left = mul(mul(b, pow(a, sub(b, Num{1}))), da)
			right = mul(mul(pow(a, b), call(fnLn, a)), db)
		default:
			return nil, fmt.Errorf("%w: operator %q", ErrSyntax, n.Op)
		}
		return chain(depends(a, i), left, depends(b, i), right), nil
	}
	return nil, fmt.Errorf("%w: node %T", ErrSyntax, n)
}

// chain sums the terms of the operands that depend on the variable.
func chain(aDep bool, left Node, bDep bool, right Node) Node {
	switch {
	case aDep && bDep:
		return add(left, right)
	case aDep:
		return left
	default:
		return right
	}
}

// depends reports whether n mentions x_i.
func depends(n Node, i int) bool {
	switch n := n.(type) {
	case Var:
		return n.Index == i
	case Call:
		return depends(n.Arg, i)
	case Bin:
		return depends(n.Left, i) || depends(n.Right, i)
	}
	return false
}

func call(fn string, a Node) Node { return Call{Fn: fn, Arg: a} }
func neg(a Node) Node             { return Call{Fn: fnNeg, Arg: a} }
func add(a, b Node) Node          { return Bin{Op: '+', Left: a, Right: b} }
func sub(a, b Node) Node          { return Bin{Op: '-', Left: a, Right: b} }
func mul(a, b Node) Node          { return Bin{Op: '*', Left: a, Right: b} }
func div(a, b Node) Node          { return Bin{Op: '/', Left: a, Right: b} }
func pow(a, b Node) Node          { return Bin{Op: '^', Left: a, Right: b} }

// Simplify folds constants and removes the identities that hold for NaN
// and the infinities, up to the sign of zero: x+0, x-0, 0-x, x*1, x/1, x^1,
// x^0 and double negation. 0*x and 0/x are kept, since they are NaN when x
// is infinite or NaN.
func Simplify(n Node) Node {
	switch n := n.(type) {
	case Call:
		a := Simplify(n.Arg)
		if c, ok := a.(Num); ok {
			return Num{apply(n.Fn, c.Value)}
		}
		if n.Fn == fnNeg {
			if inner, ok := a.(Call); ok && inner.Fn == fnNeg {
				return inner.Arg
			}
		}
		return Call{Fn: n.Fn, Arg: a}

	case Bin:
		a, b := Simplify(n.Left), Simplify(n.Right)
		ca, aConst := a.(Num)
		cb, bConst := b.(Num)
		if aConst && bConst {
			return Num{applyBin(n.Op, ca.Value, cb.Value)}
		}
		switch n.Op {
		case '+':
			if isConst(a, 0) {
				return b
			}
			if isConst(b, 0) {
				return a
			}
		case '-':
			if isConst(b, 0) {
				return a
			}
			if isConst(a, 0) {
				return Simplify(neg(b))
			}
		case '*':
			if isConst(a, 1) {
				return b
			}
			if isConst(b, 1) {
				return a
			}
		case '/':
			if isConst(b, 1) {
				return a
			}
		case '^':
			if isConst(b, 0) {
				return Num{1}
			}
			if isConst(b, 1) {
				return a
			}
		}
		return Bin{Op: n.Op, Left: a, Right: b}
	}
	return n
}

func apply(fn string, x float64) float64 {
	switch fn {
	case fnNeg:
		return -x
	case fnSin:
		return math.Sin(x)
	case fnCos:
		return math.Cos(x)
	case fnTan:
		return math.Tan(x)
	case fnExp:
		return math.Exp(x)
	case fnLn:
		return math.Log(x)
	case fnSqrt:
		return math.Sqrt(x)
	case fnAbs:
		return math.Abs(x)
	case fnSign:
		return backend.Sign(x)
	}
	return math.NaN()
}

func applyBin(op byte, a, b float64) float64 {
	switch op {
	case '+':
		return a + b
	case '-':
		return a - b
	case '*':
		return a * b
	case '/':
		return a / b
	case '^':
		return math.Pow(a, b)
	}
	return math.NaN()
}

// compiled is an expression lowered to nested closures.
type compiled func(x []float64) float64

// Compile lowers n to a closure. Variable indices must be below the length
// of the slice passed at call time.
func Compile(n Node) (func(x []float64) float64, error) {
	c, err := compile(n)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func compile(n Node) (compiled, error) {
	switch n := n.(type) {
	case Num:
		v := n.Value
		return func([]float64) float64 { return v }, nil

	case Var:
		i := n.Index
		return func(x []float64) float64 { return x[i] }, nil

	case Call:
		a, err := compile(n.Arg)
		if err != nil {
			return nil, err
		}
		fn := n.Fn
		if _, ok := callable[fn]; !ok && fn != fnNeg {
			return nil, fmt.Errorf("%w: %s", ErrUnknownIdentifier, fn)
		}
		return func(x []float64) float64 { return apply(fn, a(x)) }, nil

	case Bin:
		a, err := compile(n.Left)
		if err != nil {
			return nil, err
		}
		b, err := compile(n.Right)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case '+':
			return func(x []float64) float64 { return a(x) + b(x) }, nil
		case '-':
			return func(x []float64) float64 { return a(x) - b(x) }, nil
		case '*':
			return func(x []float64) float64 { return a(x) * b(x) }, nil
		case '/':
			return func(x []float64) float64 { return a(x) / b(x) }, nil
		case '^':
			return func(x []float64) float64 { return math.Pow(a(x), b(x)) }, nil
		}
		return nil, fmt.Errorf("%w: operator %q", ErrSyntax, n.Op)
	}
	return nil, fmt.Errorf("%w: node %T", ErrSyntax, n)
}

// maxVar returns the highest variable index in n, or -1.
func maxVar(n Node) int {
	switch n := n.(type) {
	case Var:
		return n.Index
	case Call:
		return maxVar(n.Arg)
	case Bin:
		return max(maxVar(n.Left), maxVar(n.Right))
	}
	return -1
}
