// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package harness

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/AleutianAI/adfuzz/services/adfuzz/expr"
	"github.com/AleutianAI/adfuzz/services/adfuzz/oracle"
	"github.com/AleutianAI/adfuzz/services/adfuzz/printer"
)

// Kind classifies a Failure.
type Kind string

const (
	// KindMismatch is an oracle disagreement.
	KindMismatch Kind = "mismatch"

	// KindDimension is a Jacobian length disagreement. It always escalates.
	KindDimension Kind = "dimension"

	// KindBackend is a derivative that could not be extracted.
	KindBackend Kind = "backend"
)

// Failure is one program that failed its checks, with every rendering
// needed to reproduce it by hand.
type Failure struct {
	Kind Kind

	// Oracle names the failing oracle for KindMismatch, or the engine
	// for KindBackend.
	Oracle string

	Expr      expr.Simple
	NumInputs int
	Inputs    []float64

	// Data is the complete fuzz input that produced the program.
	Data []byte

	Infix string
	SExpr string
	SSA   string
	Dump  string

	Err error
}

func newFailure(kind Kind, source string, e expr.Simple, numInputs int, inputs []float64, data []byte, err error) *Failure {
	return &Failure{
		Kind:      kind,
		Oracle:    source,
		Expr:      e,
		NumInputs: numInputs,
		Inputs:    inputs,
		Data:      data,
		Infix:     printer.Infix(e, numInputs),
		SExpr:     printer.SExpr(e, numInputs),
		SSA:       printer.SSA(e, numInputs),
		Dump:      expr.Dump(e),
		Err:       err,
	}
}

// Error implements error.
func (f *Failure) Error() string {
	return fmt.Sprintf("%s failure in %s: %v", f.Kind, f.Infix, f.Err)
}

// Unwrap returns the underlying error.
func (f *Failure) Unwrap() error { return f.Err }

// Mismatch returns the oracle breakdown when the failure is a mismatch.
func (f *Failure) Mismatch() (*oracle.MismatchError, bool) {
	var me *oracle.MismatchError
	ok := errors.As(f.Err, &me)
	return me, ok
}

// WriteReport writes the crash report. ANSI emphasis is used when color
// is true.
func (f *Failure) WriteReport(w io.Writer, color bool) error {
	bold, red, reset := "", "", ""
	if color {
		bold, red, reset = "\x1b[1m", "\x1b[31m", "\x1b[0m"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "\n%s=== CRASH DETECTED ===%s\n", red+bold, reset)
	sb.WriteString("Expression that caused the crash:\n")
	fmt.Fprintf(&sb, "\n%sInfix notation:%s\n%s\n", bold, reset, f.Infix)
	fmt.Fprintf(&sb, "\n%sS-expression format:%s\n%s\n", bold, reset, f.SExpr)
	fmt.Fprintf(&sb, "\n%sSSA format:%s\n%s\n", bold, reset, f.SSA)
	fmt.Fprintf(&sb, "\n%sDebug format:%s\n%s\n", bold, reset, f.Dump)
	fmt.Fprintf(&sb, "\n%sInputs:%s\n", bold, reset)
	for i, x := range f.Inputs {
		fmt.Fprintf(&sb, "%s: %v\n", expr.VarName(i), x)
	}
	fmt.Fprintf(&sb, "%sError:%s %v\n", red, reset, f.Err)
	sb.WriteString("======================\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

// Report renders the crash report as plain text.
func (f *Failure) Report() string {
	var sb strings.Builder
	_ = f.WriteReport(&sb, false)
	return sb.String()
}

// isTerminal reports whether w is a terminal that accepts ANSI escapes.
func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}
