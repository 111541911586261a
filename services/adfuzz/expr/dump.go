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
	"strconv"
	"strings"
)

// Dump renders e as an indented structural listing. Unlike the printers it
// covers every node type, so it is what crash reports attach as the debug
// form of a failing tree.
func Dump[T any](e Expr[T]) string {
	var sb strings.Builder
	dump(&sb, e, 0)
	return sb.String()
}

func dump[T any](sb *strings.Builder, e Expr[T], indent int) {
	pad := strings.Repeat("  ", indent)
	if e == nil {
		sb.WriteString(pad + "<nil>\n")
		return
	}
	switch n := e.(type) {
	case *Number[T]:
		fmt.Fprintf(sb, "%sNumber %s\n", pad, strconv.FormatFloat(n.Value, 'g', -1, 64))
		return
	case *Boolean[T]:
		fmt.Fprintf(sb, "%sBoolean %t\n", pad, n.Value)
		return
	case *Ident[T]:
		fmt.Fprintf(sb, "%sIdent %s\n", pad, n.Name)
		return
	case *Let[T]:
		fmt.Fprintf(sb, "%sLet\n", pad)
		for _, b := range n.Bindings {
			fmt.Fprintf(sb, "%s  %s =\n", pad, b.Name)
			dump(sb, b.Value, indent+2)
		}
		fmt.Fprintf(sb, "%s  in\n", pad)
		dump(sb, n.Body, indent+2)
		return
	case *UnOp[T]:
		fmt.Fprintf(sb, "%sUnOp %s\n", pad, n.Op)
	case *BinOp[T]:
		fmt.Fprintf(sb, "%sBinOp %s\n", pad, n.Op)
	case *If[T]:
		fmt.Fprintf(sb, "%sIf\n", pad)
	case *Loop[T]:
		fmt.Fprintf(sb, "%sLoop\n", pad)
	case *Break[T]:
		fmt.Fprintf(sb, "%sBreak\n", pad)
	case *Set[T]:
		fmt.Fprintf(sb, "%sSet %s\n", pad, n.Name)
	case *Block[T]:
		fmt.Fprintf(sb, "%sBlock (%d)\n", pad, len(n.Exprs))
	case *Cast[T]:
		fmt.Fprintf(sb, "%sCast %s\n", pad, n.To)
	default:
		fmt.Fprintf(sb, "%s%T\n", pad, e)
		return
	}
	for _, c := range Children(e) {
		dump(sb, c, indent+1)
	}
}
