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

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// VarPrefix is the prefix shared by every input variable name.
const VarPrefix = "x_"

// VarName returns the canonical name of input i ("x_0", "x_1", ...).
func VarName(i int) string {
	return fmt.Sprintf("%s%d", VarPrefix, i)
}

// VarIndex parses an input variable name.
//
// Outputs:
//
//	int - The index i for "x_i".
//	bool - False if name is not an input variable.
func VarIndex(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, VarPrefix)
	if !ok || rest == "" {
		return 0, false
	}
	i, err := strconv.Atoi(rest)
	if err != nil || i < 0 || strconv.Itoa(i) != rest {
		return 0, false
	}
	return i, true
}

// Children returns the direct sub-expressions of e in evaluation order.
// Nil optional children are omitted.
func Children[T any](e Expr[T]) []Expr[T] {
	var out []Expr[T]
	add := func(c Expr[T]) {
		if c != nil {
			out = append(out, c)
		}
	}
	switch n := e.(type) {
	case *Let[T]:
		for _, b := range n.Bindings {
			add(b.Value)
		}
		add(n.Body)
	case *UnOp[T]:
		add(n.Arg)
	case *BinOp[T]:
		add(n.Left)
		add(n.Right)
	case *If[T]:
		add(n.Cond)
		add(n.Then)
		add(n.Else)
	case *Loop[T]:
		add(n.Body)
	case *Break[T]:
		add(n.Value)
	case *Set[T]:
		add(n.Value)
	case *Block[T]:
		for _, c := range n.Exprs {
			add(c)
		}
	case *Cast[T]:
		add(n.Value)
	}
	return out
}

// Walk visits e and its descendants in pre-order. Returning false from fn
// skips the children of the current node.
func Walk[T any](e Expr[T], fn func(Expr[T]) bool) {
	if e == nil || !fn(e) {
		return
	}
	for _, c := range Children(e) {
		Walk(c, fn)
	}
}

// Depth returns the number of edges on the longest root-to-leaf path.
// A leaf has depth 0.
func Depth[T any](e Expr[T]) int {
	best := -1
	for _, c := range Children(e) {
		if d := Depth(c); d > best {
			best = d
		}
	}
	return best + 1
}

// Size returns the number of nodes in e.
func Size[T any](e Expr[T]) int {
	n := 0
	Walk(e, func(Expr[T]) bool {
		n++
		return true
	})
	return n
}

// Identifiers returns the sorted set of identifier names referenced by e.
func Identifiers[T any](e Expr[T]) []string {
	seen := make(map[string]struct{})
	Walk(e, func(n Expr[T]) bool {
		if id, ok := n.(*Ident[T]); ok {
			seen[id.Name] = struct{}{}
		}
		return true
	})
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InputArity returns one more than the highest x_i index referenced by e,
// or 0 when e references no input variable.
func InputArity[T any](e Expr[T]) int {
	arity := 0
	Walk(e, func(n Expr[T]) bool {
		if id, ok := n.(*Ident[T]); ok {
			if i, ok := VarIndex(id.Name); ok && i+1 > arity {
				arity = i + 1
			}
		}
		return true
	})
	return arity
}

// ContainsOp1 reports whether any UnOp in e uses one of ops.
func ContainsOp1[T any](e Expr[T], ops ...Op1) bool {
	found := false
	Walk(e, func(n Expr[T]) bool {
		if found {
			return false
		}
		if u, ok := n.(*UnOp[T]); ok {
			for _, op := range ops {
				if u.Op == op {
					found = true
				}
			}
		}
		return !found
	})
	return found
}

// ContainsOp2 reports whether any BinOp in e uses one of ops.
func ContainsOp2[T any](e Expr[T], ops ...Op2) bool {
	found := false
	Walk(e, func(n Expr[T]) bool {
		if found {
			return false
		}
		if b, ok := n.(*BinOp[T]); ok {
			for _, op := range ops {
				if b.Op == op {
					found = true
				}
			}
		}
		return !found
	})
	return found
}
