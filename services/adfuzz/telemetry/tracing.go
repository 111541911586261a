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
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope used by the fuzz driver.
const TracerName = "adfuzz"

// Span names and attribute keys recorded by the fuzz driver.
const (
	SpanIteration = "adfuzz.iteration"
	SpanProgram   = "adfuzz.program"

	AttrInputBytes    = attribute.Key("adfuzz.input.bytes")
	AttrOutcome       = attribute.Key("adfuzz.outcome")
	AttrProgramIndex  = attribute.Key("adfuzz.program.index")
	AttrProgramInputs = attribute.Key("adfuzz.program.inputs")
	AttrProgramSize   = attribute.Key("adfuzz.program.size")
	AttrFailureKind   = attribute.Key("adfuzz.failure.kind")
	AttrFailureSource = attribute.Key("adfuzz.failure.source")
)

// StartIteration opens the root span of one fuzz iteration over an input
// of inputBytes bytes.
func StartIteration(ctx context.Context, inputBytes int) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanIteration, trace.WithAttributes(AttrInputBytes.Int(inputBytes)))
}

// StartProgram opens the span of one generated program. size is the node
// count of its expression.
func StartProgram(ctx context.Context, numInputs, size int) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanProgram, trace.WithAttributes(
		AttrProgramInputs.Int(numInputs),
		AttrProgramSize.Int(size),
	))
}

// EndIteration records the iteration outcome and ends span.
func EndIteration(span trace.Span, outcome string) {
	if span == nil {
		return
	}
	span.SetAttributes(AttrOutcome.String(outcome))
	span.End()
}

// RecordFailure marks span as failed by a finding of the given kind,
// reported by source (an oracle or engine name).
func RecordFailure(span trace.Span, kind, source string, err error) {
	RecordError(span, err, AttrFailureKind.String(kind), AttrFailureSource.String(source))
}

// StartSpan creates a new span from the context using the global tracer.
//
// Thread Safety: Safe for concurrent use.
func StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, spanName, opts...)
}

// RecordError records err on span and sets its status to Error.
// A nil span or error is a no-op.
func RecordError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if span == nil || err == nil {
		return
	}
	opts := make([]trace.EventOption, 0, 1)
	if len(attrs) > 0 {
		opts = append(opts, trace.WithAttributes(attrs...))
	}
	span.RecordError(err, opts...)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanOK marks the span as successful.
func SetSpanOK(span trace.Span) {
	if span == nil {
		return
	}
	span.SetStatus(codes.Ok, "")
}

// LoggerWithTrace returns logger annotated with the trace and span IDs
// of the span in ctx, or logger unchanged when there is none.
func LoggerWithTrace(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if ctx == nil {
		return logger
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return logger
	}
	return logger.With(
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	)
}
