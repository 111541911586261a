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

// Expr is a node in an expression tree tagged with T.
//
// The set of implementations is closed: only the node types declared in
// this file satisfy Expr. Consumers type-switch on the pointer types.
type Expr[T any] interface {
	// Tag returns the metadata attached to this node.
	Tag() T

	isExpr()
}

// Number is a floating-point literal.
type Number[T any] struct {
	Value float64
	Meta  T
}

// Boolean is a boolean literal. It has no numeric meaning.
type Boolean[T any] struct {
	Value bool
	Meta  T
}

// Ident is a reference to a named variable.
type Ident[T any] struct {
	Name string
	Meta T
}

// Binding is one name = value pair of a Let node.
type Binding[T any] struct {
	Name  string
	Value Expr[T]
}

// Let introduces bindings visible in Body. Binding order is preserved.
type Let[T any] struct {
	Bindings []Binding[T]
	Body     Expr[T]
	Meta     T
}

// UnOp applies a unary operator.
type UnOp[T any] struct {
	Op   Op1
	Arg  Expr[T]
	Meta T
}

// BinOp applies a binary operator.
type BinOp[T any] struct {
	Op    Op2
	Left  Expr[T]
	Right Expr[T]
	Meta  T
}

// If is a conditional. Else may be nil.
type If[T any] struct {
	Cond Expr[T]
	Then Expr[T]
	Else Expr[T]
	Meta T
}

// Loop repeats Body until a Break.
type Loop[T any] struct {
	Body Expr[T]
	Meta T
}

// Break exits the innermost Loop. Value may be nil.
type Break[T any] struct {
	Value Expr[T]
	Meta  T
}

// Set assigns Value to an existing variable.
type Set[T any] struct {
	Name  string
	Value Expr[T]
	Meta  T
}

// Block evaluates Exprs in order; its value is the last one.
type Block[T any] struct {
	Exprs []Expr[T]
	Meta  T
}

// Cast converts Value to the To type.
type Cast[T any] struct {
	Value Expr[T]
	To    Type
	Meta  T
}

func (n *Number[T]) Tag() T  { return n.Meta }
func (n *Boolean[T]) Tag() T { return n.Meta }
func (n *Ident[T]) Tag() T   { return n.Meta }
func (n *Let[T]) Tag() T     { return n.Meta }
func (n *UnOp[T]) Tag() T    { return n.Meta }
func (n *BinOp[T]) Tag() T   { return n.Meta }
func (n *If[T]) Tag() T      { return n.Meta }
func (n *Loop[T]) Tag() T    { return n.Meta }
func (n *Break[T]) Tag() T   { return n.Meta }
func (n *Set[T]) Tag() T     { return n.Meta }
func (n *Block[T]) Tag() T   { return n.Meta }
func (n *Cast[T]) Tag() T    { return n.Meta }

func (*Number[T]) isExpr()  {}
func (*Boolean[T]) isExpr() {}
func (*Ident[T]) isExpr()   {}
func (*Let[T]) isExpr()     {}
func (*UnOp[T]) isExpr()    {}
func (*BinOp[T]) isExpr()   {}
func (*If[T]) isExpr()      {}
func (*Loop[T]) isExpr()    {}
func (*Break[T]) isExpr()   {}
func (*Set[T]) isExpr()     {}
func (*Block[T]) isExpr()   {}
func (*Cast[T]) isExpr()    {}
