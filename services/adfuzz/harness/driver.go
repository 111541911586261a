// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package harness drives one fuzz iteration end to end.
//
// An iteration decodes an evaluation point from the front of the input,
// generates programs from the rest, differentiates each program with the
// forward and reverse engines and every ground truth, and hands the
// Jacobians to the oracle set. In PanicOnFirstError mode the first failure
// aborts the process; in Continuous mode failures are logged, recorded and
// counted.
package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/adfuzz/services/adfuzz/backend"
	"github.com/AleutianAI/adfuzz/services/adfuzz/backend/forward"
	"github.com/AleutianAI/adfuzz/services/adfuzz/backend/reverse"
	"github.com/AleutianAI/adfuzz/services/adfuzz/backend/symbolic"
	"github.com/AleutianAI/adfuzz/services/adfuzz/backend/tensor"
	"github.com/AleutianAI/adfuzz/services/adfuzz/config"
	"github.com/AleutianAI/adfuzz/services/adfuzz/expr"
	"github.com/AleutianAI/adfuzz/services/adfuzz/generator"
	"github.com/AleutianAI/adfuzz/services/adfuzz/numeric"
	"github.com/AleutianAI/adfuzz/services/adfuzz/oracle"
	"github.com/AleutianAI/adfuzz/services/adfuzz/telemetry"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrInsufficientData indicates an input too short to hold a point.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrRejected indicates an input or program outside the sanitized
	// domain.
	ErrRejected = errors.New("input rejected")
)

// Recorder persists failures. Errors are logged and never escalate.
type Recorder interface {
	Record(ctx context.Context, f *Failure) error
}

// Options configures a Driver.
type Options struct {
	Mode      Mode
	Programs  int
	Generator generator.Config
	Oracles   *oracle.Set
	Sanitizer Sanitizer

	Forward      backend.Differentiator
	Reverse      backend.Differentiator
	GroundTruths []backend.GroundTruthCalculator

	// Recorder is optional.
	Recorder Recorder

	// Metrics is optional; nil disables recording.
	Metrics *telemetry.Metrics

	Logger *slog.Logger

	// ReportWriter receives the crash report before a panic. Defaults to
	// os.Stderr.
	ReportWriter io.Writer
}

// DefaultOptions wires every engine with the documented defaults.
func DefaultOptions() Options {
	return Options{
		Mode:      PanicOnFirstError,
		Programs:  1,
		Generator: generator.DefaultConfig(),
		Oracles:   oracle.NewSet("all"),
		Sanitizer: DefaultSanitizer(),
		Forward:   forward.New(),
		Reverse:   reverse.New(),
		GroundTruths: []backend.GroundTruthCalculator{
			tensor.NewGroundTruth(),
			symbolic.NewGroundTruth(),
		},
	}
}

// OptionsFromConfig maps the process configuration onto DefaultOptions.
func OptionsFromConfig(cfg config.Config) Options {
	opts := DefaultOptions()
	opts.Mode = ParseMode(cfg.Fuzz.Mode)
	opts.Programs = cfg.Fuzz.Tests
	opts.Generator = cfg.AST
	opts.Oracles = oracle.NewSet(cfg.Fuzz.Oracle)
	opts.Sanitizer = Sanitizer{
		MaxMagnitude:   cfg.Fuzz.MaxMagnitude,
		PositiveDomain: cfg.Fuzz.PositiveDomain,
	}
	return opts
}

// Outcome classifies an iteration.
type Outcome string

const (
	OutcomePassed   Outcome = "passed"
	OutcomeFailed   Outcome = "failed"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeRejected Outcome = "rejected"
)

// ProgramResult is what one program produced.
type ProgramResult struct {
	Program      *generator.Program
	Value        float64
	Engine       oracle.EngineResults
	GroundTruths []oracle.GroundTruth
	Skipped      bool
	Failure      *Failure
}

// Iteration summarizes one call to Run.
type Iteration struct {
	Outcome  Outcome
	Inputs   []float64
	Programs []ProgramResult
	Failures []*Failure
}

// Stats are cumulative counters for a Driver. Safe to copy.
type Stats struct {
	Iterations         int64            `json:"iterations"`
	Passed             int64            `json:"passed"`
	Failed             int64            `json:"failed"`
	Skipped            int64            `json:"skipped"`
	Rejected           int64            `json:"rejected"`
	Programs           int64            `json:"programs"`
	GenerationFailures int64            `json:"generation_failures"`
	ZeroVariable       int64            `json:"zero_variable"`
	DomainSkips        int64            `json:"domain_skips"`
	GroundTruthSkips   int64            `json:"ground_truth_skips"`
	Mismatches         map[string]int64 `json:"mismatches"`
	BackendErrors      int64            `json:"backend_errors"`
	DimensionErrors    int64            `json:"dimension_errors"`
}

// Driver runs fuzz iterations.
//
// Thread Safety: Run and Fuzz are safe for concurrent use. Every
// iteration builds its own trees and engine state; only Stats is shared.
type Driver struct {
	opts   Options
	logger *slog.Logger

	mu    sync.Mutex
	stats Stats
}

// New returns a Driver. Zero Programs, Generator, Oracles, engines and
// ReportWriter take their defaults. A nil GroundTruths runs none, and a
// zero Sanitizer only rejects non-finite inputs.
func New(opts Options) *Driver {
	def := DefaultOptions()
	if opts.Programs < 1 {
		opts.Programs = def.Programs
	}
	if opts.Generator == (generator.Config{}) {
		opts.Generator = def.Generator
	}
	if opts.Oracles == nil {
		opts.Oracles = def.Oracles
	}
	if opts.Forward == nil {
		opts.Forward = def.Forward
	}
	if opts.Reverse == nil {
		opts.Reverse = def.Reverse
	}
	if opts.ReportWriter == nil {
		opts.ReportWriter = os.Stderr
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		opts:   opts,
		logger: logger.With(slog.String("component", "harness")),
		stats:  Stats{Mismatches: map[string]int64{}},
	}
}

// Options returns the effective options.
func (d *Driver) Options() Options { return d.opts }

// Stats returns a snapshot of the cumulative counters.
func (d *Driver) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.stats
	s.Mismatches = make(map[string]int64, len(d.stats.Mismatches))
	for k, v := range d.stats.Mismatches {
		s.Mismatches[k] = v
	}
	return s
}

func (d *Driver) count(fn func(s *Stats)) {
	d.mu.Lock()
	fn(&d.stats)
	d.mu.Unlock()
}

// Fuzz is the fuzz entry point. It returns normally unless the
// iteration must escalate, in which case the crash report is written and
// the Failure is raised as a panic.
func (d *Driver) Fuzz(data []byte) {
	_, err := d.Run(context.Background(), data)
	if err == nil {
		return
	}
	var f *Failure
	if errors.As(err, &f) {
		_ = f.WriteReport(d.opts.ReportWriter, isTerminal(d.opts.ReportWriter))
	}
	panic(err)
}

// Run executes one iteration.
//
// Description:
//
//	Decodes Generator.MaxVariables inputs, rejects points outside the
//	sanitizer's band, generates Programs candidates from stride-32
//	windows of the remaining bytes and checks each program that uses at
//	least one input. Decode, generation and sanitizer problems skip
//	silently. Ground truths that fail are dropped for that program.
//
// Outputs:
//
//	*Iteration - What happened, always non-nil.
//	error - Non-nil only when the iteration must escalate: the first
//	        failure in PanicOnFirstError mode, or a dimension mismatch in
//	        any mode. It wraps a *Failure.
func (d *Driver) Run(ctx context.Context, data []byte) (*Iteration, error) {
	ctx, span := telemetry.StartIteration(ctx, len(data))

	it := &Iteration{}
	defer func() {
		d.finish(ctx, it)
		telemetry.EndIteration(span, string(it.Outcome))
	}()

	point, rest, err := DecodePoint(data, d.opts.Generator.MaxVariables)
	if err != nil {
		it.Outcome = OutcomeSkipped
		return it, nil
	}
	it.Inputs = point
	if err := d.opts.Sanitizer.CheckPoint(point); err != nil {
		d.logger.Debug("input rejected", slog.String("reason", err.Error()))
		it.Outcome = OutcomeRejected
		return it, nil
	}

	checked := 0
	for i, window := range Windows(rest, d.opts.Programs) {
		prog, err := generator.Generate(window, d.opts.Generator)
		if err != nil {
			d.count(func(s *Stats) { s.GenerationFailures++ })
			d.opts.Metrics.RecordGenerationFailure(ctx)
			continue
		}
		res, err := d.RunProgram(ctx, prog, point, data)
		it.Programs = append(it.Programs, res)
		if res.Skipped {
			continue
		}
		checked++
		if res.Failure == nil {
			continue
		}
		it.Failures = append(it.Failures, res.Failure)
		if err != nil {
			telemetry.RecordError(span, err, telemetry.AttrProgramIndex.Int(i))
			it.Outcome = OutcomeFailed
			return it, err
		}
	}

	switch {
	case len(it.Failures) > 0:
		it.Outcome = OutcomeFailed
	case checked > 0:
		it.Outcome = OutcomePassed
	default:
		it.Outcome = OutcomeSkipped
	}
	return it, nil
}

func (d *Driver) finish(ctx context.Context, it *Iteration) {
	d.count(func(s *Stats) {
		s.Iterations++
		switch it.Outcome {
		case OutcomePassed:
			s.Passed++
		case OutcomeFailed:
			s.Failed++
		case OutcomeRejected:
			s.Rejected++
		default:
			s.Skipped++
		}
	})
	d.opts.Metrics.RecordIteration(ctx, string(it.Outcome))
}

// RunProgram differentiates prog at point and runs the oracles. point
// may be longer than the program's arity; the surplus is ignored.
//
// Outputs:
//
//	ProgramResult - Skipped is set for programs with no inputs or outside
//	                the positive domain. Failure is set on any failure.
//	error - Non-nil when the failure must escalate under the driver's
//	        mode, or when point is too short for prog.
func (d *Driver) RunProgram(ctx context.Context, prog *generator.Program, point []float64, data []byte) (ProgramResult, error) {
	res := ProgramResult{Program: prog}
	if prog.NumInputs == 0 {
		d.count(func(s *Stats) { s.ZeroVariable++ })
		res.Skipped = true
		return res, nil
	}
	if len(point) < prog.NumInputs {
		return res, fmt.Errorf("%w: program uses %d inputs, point has %d", backend.ErrArityMismatch, prog.NumInputs, len(point))
	}
	inputs := point[:prog.NumInputs]
	if err := d.opts.Sanitizer.CheckProgram(prog.Expr, inputs); err != nil {
		d.count(func(s *Stats) { s.DomainSkips++ })
		d.logger.Debug("program skipped", slog.String("reason", err.Error()))
		res.Skipped = true
		return res, nil
	}

	ctx, span := telemetry.StartProgram(ctx, prog.NumInputs, expr.Size(prog.Expr))
	defer span.End()
	start := time.Now()
	defer func() { d.opts.Metrics.RecordProgram(ctx, time.Since(start)) }()
	d.count(func(s *Stats) { s.Programs++ })

	fn, err := backend.NewFunctionWithArity(prog.Expr, prog.NumInputs)
	if err != nil {
		return res, err
	}

	// Domain errors already surface as NaN; anything else reads as zero.
	if v, err := numeric.EvaluateFloat(prog.Expr, inputs); err == nil {
		res.Value = v
	}

	rev, err := d.opts.Reverse.Jacobian(fn, inputs)
	if err != nil {
		return d.fail(ctx, span, res, KindBackend, d.opts.Reverse.Name(), inputs, data, err)
	}
	fwd, err := d.opts.Forward.Jacobian(fn, inputs)
	if err != nil {
		return d.fail(ctx, span, res, KindBackend, d.opts.Forward.Name(), inputs, data, err)
	}
	res.Engine = oracle.EngineResults{Inputs: inputs, Reverse: rev, Forward: fwd}

	for _, calc := range d.opts.GroundTruths {
		jac, err := calc.Calculate(fn, inputs)
		if err != nil {
			d.count(func(s *Stats) { s.GroundTruthSkips++ })
			d.opts.Metrics.RecordGroundTruthSkip(ctx, calc.Name())
			d.logger.Debug("ground truth skipped",
				slog.String("source", calc.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		res.GroundTruths = append(res.GroundTruths, oracle.GroundTruth{Name: calc.Name(), Jacobian: jac})
	}

	if err := d.opts.Oracles.CheckAll(&res.Engine, res.GroundTruths); err != nil {
		if errors.Is(err, oracle.ErrDimensionMismatch) {
			return d.fail(ctx, span, res, KindDimension, "dimension", inputs, data, err)
		}
		source := "oracle"
		var me *oracle.MismatchError
		if errors.As(err, &me) {
			source = me.Oracle
		}
		return d.fail(ctx, span, res, KindMismatch, source, inputs, data, err)
	}
	telemetry.SetSpanOK(span)
	return res, nil
}

// fail builds, counts, logs and records a Failure, and decides whether it
// escalates.
func (d *Driver) fail(ctx context.Context, span trace.Span, res ProgramResult, kind Kind, source string, inputs []float64, data []byte, err error) (ProgramResult, error) {
	prog := res.Program
	f := newFailure(kind, source, prog.Expr, prog.NumInputs, inputs, data, err)
	res.Failure = f

	d.count(func(s *Stats) {
		switch kind {
		case KindMismatch:
			s.Mismatches[source]++
		case KindBackend:
			s.BackendErrors++
		case KindDimension:
			s.DimensionErrors++
		}
	})
	switch kind {
	case KindMismatch:
		d.opts.Metrics.RecordMismatch(ctx, source)
	case KindBackend:
		d.opts.Metrics.RecordBackendError(ctx, source)
	}
	telemetry.RecordFailure(span, string(kind), source, err)

	logger := telemetry.LoggerWithTrace(ctx, d.logger)
	attrs := []any{
		slog.String("kind", string(kind)),
		slog.String("source", source),
		slog.String("expr", f.Infix),
		slog.Any("inputs", inputs),
		slog.String("error", err.Error()),
	}
	escalate := d.opts.Mode == PanicOnFirstError || kind == KindDimension
	if escalate {
		logger.Error("program failed", attrs...)
	} else {
		logger.Warn("program failed", append(attrs, slog.String("report", f.Report()))...)
	}

	if d.opts.Recorder != nil {
		if rerr := d.opts.Recorder.Record(ctx, f); rerr != nil {
			logger.Warn("failed to record failure", slog.String("error", rerr.Error()))
		}
	}

	if escalate {
		return res, f
	}
	return res, nil
}
