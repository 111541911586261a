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
	"errors"
	"fmt"
	"strings"
)

// Selection is the set of oracle kinds a Set runs.
type Selection uint8

const (
	SelectRevFwd Selection = 1 << iota
	SelectRevGT
	SelectFwdGT
	SelectGTGT

	SelectAll = SelectRevFwd | SelectRevGT | SelectFwdGT | SelectGTGT
)

// ParseSelection maps a selector string to a Selection. Matching is
// case-insensitive and an unrecognized selector runs everything.
func ParseSelection(s string) Selection {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rev_fwd":
		return SelectRevFwd
	case "rev_gt":
		return SelectRevGT
	case "fwd_gt":
		return SelectFwdGT
	case "gt_gt":
		return SelectGTGT
	default:
		return SelectAll
	}
}

// Has reports whether every kind in k is selected.
func (s Selection) Has(k Selection) bool { return s&k == k }

// String returns the selector string ParseSelection accepts.
func (s Selection) String() string {
	switch s {
	case SelectRevFwd:
		return "rev_fwd"
	case SelectRevGT:
		return "rev_gt"
	case SelectFwdGT:
		return "fwd_gt"
	case SelectGTGT:
		return "gt_gt"
	case SelectAll:
		return "all"
	default:
		return fmt.Sprintf("selection(%#x)", uint8(s))
	}
}

// Set is the aggregator over all oracle kinds.
type Set struct {
	Selection Selection
	RevFwd    ReverseVsForward
	RevGT     ADVsGroundTruth
	FwdGT     ADVsGroundTruth
	GTGT      GroundTruthAgreement
}

// NewSet builds a Set for the given selector with the default tolerance.
func NewSet(selector string) *Set {
	return NewSetWithTolerance(ParseSelection(selector), DefaultTolerance())
}

// NewSetWithTolerance builds a Set with an explicit tolerance profile.
func NewSetWithTolerance(sel Selection, tol Tolerance) *Set {
	return &Set{
		Selection: sel,
		RevFwd:    ReverseVsForward{Tolerance: tol},
		RevGT:     ADVsGroundTruth{Mode: ModeReverse, Tolerance: tol},
		FwdGT:     ADVsGroundTruth{Mode: ModeForward, Tolerance: tol},
		GTGT:      GroundTruthAgreement{Tolerance: tol},
	}
}

// CheckAll runs the selected oracles over every Jacobian index.
//
// Description:
//
//	Lengths are validated first: the AD Jacobians must agree with each
//	other and with every ground truth, otherwise ErrDimensionMismatch is
//	returned before any value is compared. Per index the order is
//	rev_fwd, then rev_gt and fwd_gt for each ground truth in order, then
//	gt_gt. The first failure stops the iteration.
//
// Outputs:
//
//	error - nil, a wrapped ErrDimensionMismatch, or a *MismatchError
//	        carrying the input point.
func (s *Set) CheckAll(engine *EngineResults, gts []GroundTruth) error {
	n := len(engine.Reverse)
	if len(engine.Forward) != n {
		return fmt.Errorf("%w: reverse %d, forward %d", ErrDimensionMismatch, n, len(engine.Forward))
	}
	for _, gt := range gts {
		if len(gt.Jacobian) != n {
			return fmt.Errorf("%w: reverse %d, %s %d", ErrDimensionMismatch, n, gt.Name, len(gt.Jacobian))
		}
	}

	for i := 0; i < n; i++ {
		if err := s.checkIndex(engine, gts, i); err != nil {
			var me *MismatchError
			if errors.As(err, &me) {
				me.Inputs = engine.Inputs
			}
			return err
		}
	}
	return nil
}

func (s *Set) checkIndex(engine *EngineResults, gts []GroundTruth, i int) error {
	if s.Selection.Has(SelectRevFwd) {
		if err := s.RevFwd.Check(engine, nil, i); err != nil {
			return err
		}
	}
	for k := range gts {
		gt := &gts[k]
		if s.Selection.Has(SelectRevGT) {
			if err := s.RevGT.Check(engine, gt, i); err != nil {
				return err
			}
		}
		if s.Selection.Has(SelectFwdGT) {
			if err := s.FwdGT.Check(engine, gt, i); err != nil {
				return err
			}
		}
	}
	if s.Selection.Has(SelectGTGT) {
		return s.GTGT.Check(gts, i)
	}
	return nil
}
