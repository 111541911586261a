// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics contains the instruments recorded by the fuzz driver.
//
// Description:
//
//	All metrics use the "adfuzz_" prefix. Recording methods accept a nil
//	*Metrics and do nothing, so callers never branch on whether
//	telemetry is configured.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// IterationsTotal counts fuzz iterations by outcome
	// (passed, mismatch, skipped, rejected).
	IterationsTotal metric.Int64Counter

	// ProgramsTotal counts generated programs that reached the backends.
	ProgramsTotal metric.Int64Counter

	// GenerationFailuresTotal counts candidate programs that failed to
	// generate.
	GenerationFailuresTotal metric.Int64Counter

	// MismatchesTotal counts oracle failures by oracle name.
	MismatchesTotal metric.Int64Counter

	// GroundTruthSkipsTotal counts ground truths that returned an error,
	// by source.
	GroundTruthSkipsTotal metric.Int64Counter

	// BackendErrorsTotal counts derivative extraction failures by engine.
	BackendErrorsTotal metric.Int64Counter

	// ProgramDuration records the time to run every backend and oracle
	// over one program, in seconds.
	ProgramDuration metric.Float64Histogram
}

// NewMetrics creates a Metrics instance with every instrument registered
// on meter.
//
// Example:
//
//	metrics, err := telemetry.NewMetrics(otel.Meter("adfuzz"))
//	if err != nil {
//	    return fmt.Errorf("create metrics: %w", err)
//	}
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.IterationsTotal, err = meter.Int64Counter(
		"adfuzz_iterations_total",
		metric.WithDescription("Total fuzz iterations by outcome"),
		metric.WithUnit("{iteration}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create iterations_total: %w", err)
	}

	m.ProgramsTotal, err = meter.Int64Counter(
		"adfuzz_programs_total",
		metric.WithDescription("Total generated programs checked"),
		metric.WithUnit("{program}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create programs_total: %w", err)
	}

	m.GenerationFailuresTotal, err = meter.Int64Counter(
		"adfuzz_generation_failures_total",
		metric.WithDescription("Total candidate programs that failed to generate"),
		metric.WithUnit("{program}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create generation_failures_total: %w", err)
	}

	m.MismatchesTotal, err = meter.Int64Counter(
		"adfuzz_mismatches_total",
		metric.WithDescription("Total oracle mismatches by oracle"),
		metric.WithUnit("{mismatch}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create mismatches_total: %w", err)
	}

	m.GroundTruthSkipsTotal, err = meter.Int64Counter(
		"adfuzz_ground_truth_skips_total",
		metric.WithDescription("Total ground truths skipped by source"),
		metric.WithUnit("{skip}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create ground_truth_skips_total: %w", err)
	}

	m.BackendErrorsTotal, err = meter.Int64Counter(
		"adfuzz_backend_errors_total",
		metric.WithDescription("Total derivative extraction failures by engine"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create backend_errors_total: %w", err)
	}

	m.ProgramDuration, err = meter.Float64Histogram(
		"adfuzz_program_duration_seconds",
		metric.WithDescription("Time to differentiate and check one program"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1),
	)
	if err != nil {
		return nil, fmt.Errorf("create program_duration: %w", err)
	}

	return m, nil
}

// RecordIteration counts one iteration with the given outcome.
func (m *Metrics) RecordIteration(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.IterationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordProgram counts one checked program and its duration.
func (m *Metrics) RecordProgram(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.ProgramsTotal.Add(ctx, 1)
	m.ProgramDuration.Record(ctx, d.Seconds())
}

// RecordGenerationFailure counts one skipped candidate program.
func (m *Metrics) RecordGenerationFailure(ctx context.Context) {
	if m == nil {
		return
	}
	m.GenerationFailuresTotal.Add(ctx, 1)
}

// RecordMismatch counts one oracle failure.
func (m *Metrics) RecordMismatch(ctx context.Context, oracle string) {
	if m == nil {
		return
	}
	m.MismatchesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("oracle", oracle)))
}

// RecordGroundTruthSkip counts one ground truth that produced no result.
func (m *Metrics) RecordGroundTruthSkip(ctx context.Context, source string) {
	if m == nil {
		return
	}
	m.GroundTruthSkipsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordBackendError counts one derivative extraction failure.
func (m *Metrics) RecordBackendError(ctx context.Context, engine string) {
	if m == nil {
		return
	}
	m.BackendErrorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("engine", engine)))
}
