// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package oracle

import (
	"fmt"
	"math"
)

const (
	// AbsTolerance bounds the comparison when the reference is near zero.
	AbsTolerance = 1e-12

	// RelTolerance is one part per billion of the reference magnitude.
	RelTolerance = 1e-9

	// CoarseTolerance is the looser legacy gate. It is only usable as an
	// outer pre-filter through CoarseAgree and never decides a verdict.
	CoarseTolerance = 1e-6
)

// Verdict is the result class of a single comparison.
type Verdict int

const (
	// Pass means the value is within the threshold of the reference.
	Pass Verdict = iota

	// Skip means the reference is not finite and cannot bound anything.
	Skip

	// Fail means the values disagree.
	Fail
)

// String returns the lowercase verdict name.
func (v Verdict) String() string {
	switch v {
	case Pass:
		return "pass"
	case Skip:
		return "skip"
	case Fail:
		return "fail"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Tolerance is a hybrid absolute/relative comparison profile.
type Tolerance struct {
	Abs float64 `json:"abs" yaml:"abs"`
	Rel float64 `json:"rel" yaml:"rel"`
}

// DefaultTolerance returns the canonical hybrid profile.
func DefaultTolerance() Tolerance {
	return Tolerance{Abs: AbsTolerance, Rel: RelTolerance}
}

// Threshold returns max(Abs, |ref|*Rel).
func (t Tolerance) Threshold(ref float64) float64 {
	return math.Max(t.Abs, math.Abs(ref)*t.Rel)
}

// Outcome is the full breakdown of one comparison, kept for diagnostics
// whatever the verdict.
type Outcome struct {
	Verdict     Verdict
	Value       float64
	Reference   float64
	AbsDiff     float64
	RelDiff     float64
	Threshold   float64
	ScaledRel   float64
	NaNMismatch bool
}

// Compare checks value against a ground-truth reference.
//
// A non-finite reference skips the check before anything else, since it
// cannot bound a comparison. Otherwise a NaN value fails, and everything
// else fails iff |value-ref| exceeds Threshold(ref).
func (t Tolerance) Compare(value, ref float64) Outcome {
	return t.compare(value, ref, false)
}

// ComparePeer checks two engines under test against each other, ref being
// the one that sets the threshold.
//
// Exactly one NaN is a failure even when ref is the NaN. A non-finite ref
// otherwise skips the check, and everything else is judged as in Compare.
func (t Tolerance) ComparePeer(value, ref float64) Outcome {
	return t.compare(value, ref, true)
}

func (t Tolerance) compare(value, ref float64, peer bool) Outcome {
	diff := math.Abs(value - ref)
	out := Outcome{
		Verdict:   Pass,
		Value:     value,
		Reference: ref,
		AbsDiff:   diff,
		ScaledRel: math.Abs(ref) * t.Rel,
		Threshold: t.Threshold(ref),
	}
	// Near zero the relative figure is meaningless, so report the
	// absolute difference in its place.
	if math.Abs(ref) > t.Abs {
		out.RelDiff = diff / math.Abs(ref)
	} else {
		out.RelDiff = diff
	}

	finiteRef := !math.IsNaN(ref) && !math.IsInf(ref, 0)
	switch {
	case !finiteRef && !peer:
		out.Verdict = Skip
	case math.IsNaN(value) != math.IsNaN(ref):
		out.Verdict = Fail
		out.NaNMismatch = true
	case !finiteRef:
		out.Verdict = Skip
	case diff > out.Threshold:
		out.Verdict = Fail
	}
	return out
}

// PercentDiff is the relative difference as a percentage, capped at 100.
func (o Outcome) PercentDiff() float64 {
	return math.Min(o.RelDiff*100, 100)
}

// CoarseAgree reports whether a and b agree to CoarseTolerance in absolute
// terms. NaN agrees only with NaN.
func CoarseAgree(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	if a == b {
		return true
	}
	return math.Abs(a-b) <= CoarseTolerance
}
