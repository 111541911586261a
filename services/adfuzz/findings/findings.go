// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package findings persists harness failures so that a Continuous run can
// be triaged after the fact.
//
// Every failure becomes a Finding in BadgerDB, deduplicated by the input
// that produced it, and optionally a reproducer file in the go test fuzz
// corpus format.
package findings

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/adfuzz/services/adfuzz/harness"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrNotFound is returned when no finding has the requested ID.
	ErrNotFound = errors.New("finding not found")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("findings store is closed")
)

// Finding is one persisted failure.
type Finding struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	// Fingerprint identifies the triggering input. Two failures with the
	// same fingerprint are the same finding.
	Fingerprint string `json:"fingerprint"`

	Mode      string    `json:"mode"`
	Kind      string    `json:"kind"`
	Oracle    string    `json:"oracle"`
	Message   string    `json:"message"`
	Infix     string    `json:"infix"`
	SExpr     string    `json:"sexpr"`
	SSA       string    `json:"ssa"`
	NumInputs int       `json:"num_inputs"`
	Inputs    []float64 `json:"inputs"`

	// Data is the complete fuzz input.
	Data []byte `json:"data"`

	// Hits counts how many times the input failed.
	Hits int `json:"hits"`
}

// Fingerprint returns the hex SHA-256 of oracle and data.
func Fingerprint(oracle string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(oracle))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// FromFailure converts a harness failure. The ID and timestamp are fresh.
func FromFailure(f *harness.Failure, mode harness.Mode) Finding {
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	inputs := make([]float64, len(f.Inputs))
	copy(inputs, f.Inputs)
	return Finding{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		Fingerprint: Fingerprint(f.Oracle, f.Data),
		Mode:        mode.String(),
		Kind:        string(f.Kind),
		Oracle:      f.Oracle,
		Message:     msg,
		Infix:       f.Infix,
		SExpr:       f.SExpr,
		SSA:         f.SSA,
		NumInputs:   f.NumInputs,
		Inputs:      inputs,
		Data:        append([]byte(nil), f.Data...),
		Hits:        1,
	}
}
