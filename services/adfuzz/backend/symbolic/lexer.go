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
)

type tokenType int

const (
	tokEOF tokenType = iota
	tokNum
	tokIdent
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	typ tokenType
	lit string
	pos int
}

func (t token) String() string {
	if t.typ == tokEOF {
		return "end of input"
	}
	return fmt.Sprintf("%q at %d", t.lit, t.pos)
}

// lex splits src into tokens. Numbers accept a fraction and an exponent;
// identifiers are letters, digits and underscores.
func lex(src string) ([]token, error) {
	var out []token
	i, n := 0, len(src)
	for i < n {
		ch := src[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++
		case ch == '(':
			out = append(out, token{tokLParen, "(", i})
			i++
		case ch == ')':
			out = append(out, token{tokRParen, ")", i})
			i++
		case ch == '+' || ch == '-' || ch == '*' || ch == '/' || ch == '^':
			out = append(out, token{tokOp, string(ch), i})
			i++
		case isDigit(ch) || (ch == '.' && i+1 < n && isDigit(src[i+1])):
			start := i
			for i < n && isDigit(src[i]) {
				i++
			}
			if i < n && src[i] == '.' {
				i++
				for i < n && isDigit(src[i]) {
					i++
				}
			}
			if i < n && (src[i] == 'e' || src[i] == 'E') {
				j := i + 1
				if j < n && (src[j] == '+' || src[j] == '-') {
					j++
				}
				if j < n && isDigit(src[j]) {
					i = j
					for i < n && isDigit(src[i]) {
						i++
					}
				}
			}
			out = append(out, token{tokNum, src[start:i], start})
		case isIdentStart(ch):
			start := i
			for i < n && (isIdentStart(src[i]) || isDigit(src[i])) {
				i++
			}
			out = append(out, token{tokIdent, src[start:i], start})
		default:
			return nil, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, ch, i)
		}
	}
	out = append(out, token{typ: tokEOF, pos: n})
	return out, nil
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}
