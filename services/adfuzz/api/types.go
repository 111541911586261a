// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/AleutianAI/adfuzz/services/adfuzz/findings"
	"github.com/AleutianAI/adfuzz/services/adfuzz/harness"
	"github.com/AleutianAI/adfuzz/services/adfuzz/oracle"
	"github.com/AleutianAI/adfuzz/services/adfuzz/printer"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is a stable machine-readable code.
	Code string `json:"code,omitempty"`
}

// HealthResponse is returned by GET /v1/adfuzz/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Mode    string `json:"mode"`
}

// FindingsResponse is returned by GET /v1/adfuzz/findings.
type FindingsResponse struct {
	Findings []findings.Finding `json:"findings"`
	Total    int                `json:"total"`
}

// CheckRequest is the body of POST /v1/adfuzz/check. Data is the raw
// fuzz input, base64 encoded in JSON.
type CheckRequest struct {
	Data []byte `json:"data" binding:"required"`
}

// ProgramReport is one checked program.
type ProgramReport struct {
	Infix        string              `json:"infix"`
	NumInputs    int                 `json:"num_inputs"`
	Value        Number              `json:"value"`
	Skipped      bool                `json:"skipped"`
	Reverse      []Number            `json:"reverse,omitempty"`
	Forward      []Number            `json:"forward,omitempty"`
	GroundTruths map[string][]Number `json:"ground_truths,omitempty"`
	Failure      string              `json:"failure,omitempty"`
}

// CheckResponse is returned by POST /v1/adfuzz/check.
type CheckResponse struct {
	Outcome  string          `json:"outcome"`
	Inputs   []float64       `json:"inputs,omitempty"`
	Programs []ProgramReport `json:"programs"`
}

func newCheckResponse(it *harness.Iteration) CheckResponse {
	resp := CheckResponse{
		Outcome:  string(it.Outcome),
		Inputs:   it.Inputs,
		Programs: make([]ProgramReport, 0, len(it.Programs)),
	}
	for _, p := range it.Programs {
		r := ProgramReport{
			Infix:     printer.Infix(p.Program.Expr, p.Program.NumInputs),
			NumInputs: p.Program.NumInputs,
			Value:     Number(p.Value),
			Skipped:   p.Skipped,
			Reverse:   numbers(p.Engine.Reverse),
			Forward:   numbers(p.Engine.Forward),
		}
		if len(p.GroundTruths) > 0 {
			r.GroundTruths = groundTruthMap(p.GroundTruths)
		}
		if p.Failure != nil {
			r.Failure = p.Failure.Error()
		}
		resp.Programs = append(resp.Programs, r)
	}
	return resp
}

func groundTruthMap(gts []oracle.GroundTruth) map[string][]Number {
	out := make(map[string][]Number, len(gts))
	for _, gt := range gts {
		out[gt.Name] = numbers(gt.Jacobian)
	}
	return out
}

// Number is a float64 that survives JSON when it is NaN or infinite. Those
// values are written as the strings "NaN", "+Inf" and "-Inf".
type Number float64

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return json.Marshal(strconv.FormatFloat(f, 'g', -1, 64))
	}
	return json.Marshal(f)
}

func numbers(fs []float64) []Number {
	if fs == nil {
		return nil
	}
	out := make([]Number, len(fs))
	for i, f := range fs {
		out[i] = Number(f)
	}
	return out
}
