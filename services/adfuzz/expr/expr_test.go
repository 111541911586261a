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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarNameRoundTrip(t *testing.T) {
	for i := 0; i < 12; i++ {
		got, ok := VarIndex(VarName(i))
		require.True(t, ok)
		assert.Equal(t, i, got)
	}
}

func TestVarIndex_Rejects(t *testing.T) {
	for _, name := range []string{"", "x", "x_", "y_0", "x_-1", "x_01", "x_a"} {
		t.Run(name, func(t *testing.T) {
			_, ok := VarIndex(name)
			assert.False(t, ok)
		})
	}
}

func TestDepth(t *testing.T) {
	tests := []struct {
		name string
		e    Simple
		want int
	}{
		{"leaf", Num(1), 0},
		{"unary", SinOf(Var(0)), 1},
		{"binary", AddOf(Var(0), Var(1)), 1},
		{"lopsided", AddOf(Num(1), MulOf(Var(0), NegOf(Var(1)))), 3},
		{"empty block", Do(), 0},
		{"let", LetIn("y", Num(2), MulOf(Named("y"), Var(0))), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Depth(tt.e))
		})
	}
}

func TestSizeAndIdentifiers(t *testing.T) {
	e := AddOf(PowOf(Var(0), Num(2)), AddOf(MulOf(Num(2), Var(1)), Num(3)))
	assert.Equal(t, 9, Size(e))
	assert.Equal(t, []string{"x_0", "x_1"}, Identifiers(e))
	assert.Equal(t, 2, InputArity(e))
}

func TestInputArity_Gap(t *testing.T) {
	assert.Equal(t, 4, InputArity(AddOf(Var(3), Named("y"))))
	assert.Equal(t, 0, InputArity(Num(5)))
}

func TestContainsOps(t *testing.T) {
	e := MulOf(SqrtOf(Var(0)), CosOf(Var(1)))
	assert.True(t, ContainsOp1(e, Log, Sqrt))
	assert.False(t, ContainsOp1(e, Log, Exp))
	assert.True(t, ContainsOp2(e, Mul))
	assert.False(t, ContainsOp2(e, Pow, Div))
}

func TestWalk_SkipsChildren(t *testing.T) {
	e := AddOf(SinOf(Var(0)), Var(1))
	var seen []string
	Walk(e, func(n Simple) bool {
		if id, ok := n.(*Ident[Unit]); ok {
			seen = append(seen, id.Name)
		}
		_, isUn := n.(*UnOp[Unit])
		return !isUn
	})
	assert.Equal(t, []string{"x_1"}, seen)
}

func TestDump_CoversControlFlow(t *testing.T) {
	e := &Block[Unit]{Exprs: []Simple{
		&If[Unit]{Cond: Bool(true), Then: Num(1)},
		&Loop[Unit]{Body: &Break[Unit]{}},
		&Set[Unit]{Name: "x_0", Value: Num(2)},
		&Cast[Unit]{Value: Var(0), To: TypeInt},
	}}
	out := Dump[Unit](e)
	for _, want := range []string{"Block (4)", "If", "Boolean true", "Loop", "Break", "Set x_0", "Cast int", "Ident x_0"} {
		assert.Contains(t, out, want)
	}
}

func TestOpStrings(t *testing.T) {
	assert.Equal(t, "log", Log.String())
	assert.Equal(t, "pow", Pow.String())
	assert.Equal(t, "+", Add.String())
	assert.Equal(t, "Op1(99)", Op1(99).String())
	assert.Equal(t, "bool", TypeBool.String())
	assert.Len(t, AllOp1(), 8)
	assert.Len(t, AllOp2(), 5)
}
