// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package oracle decides whether Jacobians computed by different engines
// agree.
//
// Every comparison uses the hybrid tolerance max(1e-12, |ref|*1e-9). A
// non-finite ground truth skips the check. Between the two AD modes a NaN
// on exactly one side fails whichever side it is on. Set runs the
// selected oracles over every Jacobian index and stops at the first
// mismatch.
package oracle

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrDimensionMismatch is returned when the engine Jacobians differ in
	// length. It is a contract violation, never a tolerance question.
	ErrDimensionMismatch = errors.New("AD derivative dimension mismatch")

	// ErrMissingGroundTruth is returned when a ground-truth oracle is run
	// without one.
	ErrMissingGroundTruth = errors.New("ground truth required")
)

// Source names used in diagnostics.
const (
	SourceReverse = "Reverse AD"
	SourceForward = "Forward AD"
)

// EngineResults holds the AD Jacobians under test and the point they were
// computed at.
type EngineResults struct {
	Inputs  []float64 `json:"inputs"`
	Reverse []float64 `json:"reverse"`
	Forward []float64 `json:"forward"`
}

// GroundTruth is one independently computed reference Jacobian.
type GroundTruth struct {
	Name     string    `json:"name"`
	Jacobian []float64 `json:"jacobian"`
}

// MismatchError describes a failed comparison with everything needed to
// triage it without re-running.
type MismatchError struct {
	Oracle          string
	Index           int
	ValueSource     string
	ReferenceSource string
	Outcome         Outcome
	Tolerance       Tolerance
	Inputs          []float64
}

// Error renders the tolerance breakdown.
func (e *MismatchError) Error() string {
	var sb strings.Builder
	o := e.Outcome
	if o.NaNMismatch {
		fmt.Fprintf(&sb, "%s vs %s failed at x_%d: NaN mismatch\n", e.ValueSource, e.ReferenceSource, e.Index)
	} else {
		fmt.Fprintf(&sb, "%s vs %s failed at x_%d (hybrid tolerance)\n", e.ValueSource, e.ReferenceSource, e.Index)
	}
	fmt.Fprintf(&sb, "%s: %.10e, %s: %.10e\n", e.ValueSource, o.Value, e.ReferenceSource, o.Reference)
	fmt.Fprintf(&sb, "Absolute Diff: %.10e\n", o.AbsDiff)
	fmt.Fprintf(&sb, "Relative Diff: %.10e (%g%%)\n", o.RelDiff, o.PercentDiff())
	// A NaN reference scales to a NaN threshold; only the absolute floor
	// still means anything.
	threshold := o.Threshold
	if math.IsNaN(threshold) {
		threshold = e.Tolerance.Abs
	}
	fmt.Fprintf(&sb, "Tolerance Threshold: %.10e (max of Abs:%.10e or Rel:%.10e)", threshold, e.Tolerance.Abs, o.ScaledRel)
	if e.Inputs != nil {
		fmt.Fprintf(&sb, "\nInputs: %v", e.Inputs)
	}
	return sb.String()
}

// Oracle is one comparison kind, checked at a single Jacobian index.
// gt is nil for oracles that do not need a ground truth.
type Oracle interface {
	Name() string
	Check(engine *EngineResults, gt *GroundTruth, i int) error
}

// ReverseVsForward compares the two AD modes, with forward as reference.
type ReverseVsForward struct {
	Tolerance Tolerance
}

// Name implements Oracle.
func (ReverseVsForward) Name() string { return "rev_fwd" }

// Check implements Oracle.
func (o ReverseVsForward) Check(engine *EngineResults, _ *GroundTruth, i int) error {
	out := o.Tolerance.ComparePeer(engine.Reverse[i], engine.Forward[i])
	if out.Verdict != Fail {
		return nil
	}
	return &MismatchError{
		Oracle:          o.Name(),
		Index:           i,
		ValueSource:     SourceReverse,
		ReferenceSource: SourceForward,
		Outcome:         out,
		Tolerance:       o.Tolerance,
	}
}

// ADMode selects which AD Jacobian a ground-truth oracle checks.
type ADMode int

const (
	// ModeReverse checks the reverse-mode Jacobian.
	ModeReverse ADMode = iota
	// ModeForward checks the forward-mode Jacobian.
	ModeForward
)

// ADVsGroundTruth compares one AD mode against a ground truth.
type ADVsGroundTruth struct {
	Mode      ADMode
	Tolerance Tolerance
}

// Name implements Oracle.
func (o ADVsGroundTruth) Name() string {
	if o.Mode == ModeForward {
		return "fwd_gt"
	}
	return "rev_gt"
}

// Check implements Oracle.
func (o ADVsGroundTruth) Check(engine *EngineResults, gt *GroundTruth, i int) error {
	if gt == nil {
		return fmt.Errorf("%s: %w", o.Name(), ErrMissingGroundTruth)
	}
	value, source := engine.Reverse[i], SourceReverse
	if o.Mode == ModeForward {
		value, source = engine.Forward[i], SourceForward
	}
	out := o.Tolerance.Compare(value, gt.Jacobian[i])
	if out.Verdict != Fail {
		return nil
	}
	return &MismatchError{
		Oracle:          o.Name(),
		Index:           i,
		ValueSource:     source,
		ReferenceSource: gt.Name,
		Outcome:         out,
		Tolerance:       o.Tolerance,
	}
}

// GroundTruthAgreement cross-checks every pair of ground truths, the
// first-named of a pair being the value and the second the reference.
// It does not implement Oracle because it compares ground truths with
// each other rather than with the engines.
type GroundTruthAgreement struct {
	Tolerance Tolerance
}

// Name returns the selector name.
func (GroundTruthAgreement) Name() string { return "gt_gt" }

// Check compares gts pairwise at index i.
func (o GroundTruthAgreement) Check(gts []GroundTruth, i int) error {
	for a := 0; a < len(gts); a++ {
		for b := a + 1; b < len(gts); b++ {
			out := o.Tolerance.Compare(gts[a].Jacobian[i], gts[b].Jacobian[i])
			if out.Verdict != Fail {
				continue
			}
			return &MismatchError{
				Oracle:          o.Name(),
				Index:           i,
				ValueSource:     gts[a].Name,
				ReferenceSource: gts[b].Name,
				Outcome:         out,
				Tolerance:       o.Tolerance,
			}
		}
	}
	return nil
}
