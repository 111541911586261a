// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tensor

import (
	"fmt"

	"github.com/AleutianAI/adfuzz/services/adfuzz/backend"
	"github.com/AleutianAI/adfuzz/services/adfuzz/numeric"
)

// Name is the ground-truth source name used in diagnostics.
const Name = "tensor"

// GroundTruth computes reference gradients with a fresh graph per call.
type GroundTruth struct{}

// NewGroundTruth returns the tensor ground-truth calculator.
func NewGroundTruth() *GroundTruth { return &GroundTruth{} }

// Name implements backend.GroundTruthCalculator.
func (*GroundTruth) Name() string { return Name }

// Build allocates one grad-requiring leaf per input and evaluates fn over
// them. The returned leaves are owned by the caller's single Backward.
func (*GroundTruth) Build(fn backend.Function, point []float64) ([]*Tensor, *Tensor, error) {
	if err := fn.CheckArity(point); err != nil {
		return nil, nil, err
	}
	leaves := make([]*Tensor, len(point))
	for i, x := range point {
		leaves[i] = Scalar(x, true)
	}
	out, err := numeric.Evaluate[*Tensor](Algebra{}, fn.Expr, numeric.Bind(leaves))
	if err != nil {
		return nil, nil, err
	}
	return leaves, out, nil
}

// Value evaluates fn without recording gradients.
func (g *GroundTruth) Value(fn backend.Function, point []float64) (float64, error) {
	_, out, err := g.Build(fn, point)
	if err != nil {
		return 0, err
	}
	return out.Item(), nil
}

// Calculate implements backend.GroundTruthCalculator.
//
// If the output does not require grad (it depends on no input) the result
// is all zeros. A leaf that received no gradient contributes 0.
func (g *GroundTruth) Calculate(fn backend.Function, point []float64) ([]float64, error) {
	leaves, out, err := g.Build(fn, point)
	if err != nil {
		return nil, err
	}
	jac := make([]float64, len(leaves))
	if !out.RequiresGrad() {
		return jac, nil
	}
	if err := out.Backward(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", backend.ErrDerivative, Name, err)
	}
	for i, leaf := range leaves {
		if gr := leaf.Grad(); gr != nil {
			jac[i] = *gr
		}
	}
	return jac, nil
}
