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
	"strconv"
	"strings"

	"github.com/AleutianAI/adfuzz/services/adfuzz/expr"
)

const (
	precLowest = iota
	precAdd
	precMul
	precPow
	precPrefix
)

func precedence(op string) int {
	switch op {
	case "+", "-":
		return precAdd
	case "*", "/":
		return precMul
	case "^":
		return precPow
	}
	return precLowest
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) cur() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.typ != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(typ tokenType, what string) error {
	if t := p.next(); t.typ != typ {
		return fmt.Errorf("%w: expected %s, found %s", ErrSyntax, what, t)
	}
	return nil
}

// Parse reads an infix expression. Binary operators associate left except
// ^, which associates right. Prefix minus binds tighter than every binary
// operator, so "-2 ^ 2" is 4.
func Parse(src string) (Node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, err := p.parseExpression(precLowest)
	if err != nil {
		return nil, err
	}
	if t := p.cur(); t.typ != tokEOF {
		return nil, fmt.Errorf("%w: unexpected %s", ErrSyntax, t)
	}
	return n, nil
}

func (p *parser) parseExpression(minPrec int) (Node, error) {
	left, err := p.parsePrefix()
	if err != nil {
		return nil, err
	}
	for {
		t := p.cur()
		if t.typ != tokOp {
			return left, nil
		}
		prec := precedence(t.lit)
		if prec <= minPrec {
			return left, nil
		}
		p.next()
		rightPrec := prec
		if t.lit == "^" {
			rightPrec = prec - 1
		}
		right, err := p.parseExpression(rightPrec)
		if err != nil {
			return nil, err
		}
		left = Bin{Op: t.lit[0], Left: left, Right: right}
	}
}

func (p *parser) parsePrefix() (Node, error) {
	t := p.next()
	switch t.typ {
	case tokNum:
		v, err := strconv.ParseFloat(t.lit, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: number %s: %w", ErrSyntax, t, err)
		}
		return Num{Value: v}, nil

	case tokOp:
		if t.lit != "-" && t.lit != "+" {
			return nil, fmt.Errorf("%w: unexpected %s", ErrSyntax, t)
		}
		arg, err := p.parseExpression(precPrefix)
		if err != nil {
			return nil, err
		}
		if t.lit == "+" {
			return arg, nil
		}
		return Call{Fn: fnNeg, Arg: arg}, nil

	case tokLParen:
		inner, err := p.parseExpression(precLowest)
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return inner, nil

	case tokIdent:
		return p.parseIdent(t)
	}
	return nil, fmt.Errorf("%w: unexpected %s", ErrSyntax, t)
}

func (p *parser) parseIdent(t token) (Node, error) {
	if fn, ok := callable[t.lit]; ok && p.cur().typ == tokLParen {
		p.next()
		arg, err := p.parseExpression(precLowest)
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return Call{Fn: fn, Arg: arg}, nil
	}
	switch strings.ToLower(t.lit) {
	case "nan":
		return Num{Value: math.NaN()}, nil
	case "inf", "infinity":
		return Num{Value: math.Inf(1)}, nil
	}
	if i, ok := expr.VarIndex(t.lit); ok {
		return Var{Index: i}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownIdentifier, t)
}
