// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package generator builds random, depth-bounded expression programs from
// fuzzer-supplied bytes.
//
// Every decision is drawn from an entropy.Source, so the same bytes and
// Config always yield the same Program, and running out of bytes is an
// error rather than a default.
package generator

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/AleutianAI/adfuzz/services/adfuzz/entropy"
	"github.com/AleutianAI/adfuzz/services/adfuzz/expr"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrInvalidConfig indicates a Config that cannot produce programs.
	ErrInvalidConfig = errors.New("invalid generation config")

	// ErrExhausted is re-exported so callers need not import entropy.
	ErrExhausted = entropy.ErrExhausted
)

// -----------------------------------------------------------------------------
// Config
// -----------------------------------------------------------------------------

// Config gates what the generator may emit. It is immutable for a run.
type Config struct {
	// MaxDepth bounds the tree depth. Nodes at this depth are terminals.
	MaxDepth int `json:"max_depth" yaml:"max_depth" validate:"gte=0"`

	// MaxVariables caps the number of distinct inputs x_0..x_{n-1}.
	MaxVariables int `json:"max_variables" yaml:"max_variables" validate:"gte=1"`

	// AllowDivision enables the "/" operator.
	AllowDivision bool `json:"allow_division" yaml:"allow_division"`

	// AllowPower enables the "pow" operator.
	AllowPower bool `json:"allow_power" yaml:"allow_power"`

	// AllowLog enables the "log" operator. When false, log draws become sqrt.
	AllowLog bool `json:"allow_log" yaml:"allow_log"`
}

// DefaultConfig returns the defaults used when no overrides are given.
func DefaultConfig() Config {
	return Config{
		MaxDepth:      4,
		MaxVariables:  2,
		AllowDivision: true,
		AllowPower:    true,
		AllowLog:      false,
	}
}

// Validate reports whether the config can produce programs.
func (c Config) Validate() error {
	if c.MaxDepth < 0 {
		return fmt.Errorf("%w: max_depth %d", ErrInvalidConfig, c.MaxDepth)
	}
	if c.MaxVariables < 1 {
		return fmt.Errorf("%w: max_variables %d", ErrInvalidConfig, c.MaxVariables)
	}
	return nil
}

// binaryOps returns the enabled binary operators in menu order.
func (c Config) binaryOps() []expr.Op2 {
	ops := []expr.Op2{expr.Add, expr.Sub, expr.Mul}
	if c.AllowDivision {
		ops = append(ops, expr.Div)
	}
	if c.AllowPower {
		ops = append(ops, expr.Pow)
	}
	return ops
}

// unaryMenu is the uniform unary draw. Tan exists in the model but is not
// generated.
var unaryMenu = []expr.Op1{expr.Neg, expr.Sin, expr.Cos, expr.Exp, expr.Sqrt, expr.Log, expr.Abs}

// -----------------------------------------------------------------------------
// Program
// -----------------------------------------------------------------------------

// Program is one generated expression plus the inputs it references.
type Program struct {
	// Expr is the generated tree.
	Expr expr.Simple

	// UsedVariables lists referenced input indices in introduction order.
	// It is always exactly 0..NumInputs-1.
	UsedVariables []int

	// NumInputs is the number of distinct inputs referenced.
	NumInputs int
}

// Generate builds one Program from data.
//
// Description:
//
//	Recursively constructs a tree. Below MaxDepth each node is a uniform
//	three-way choice between a terminal, a unary node and a binary node.
//	Children are generated before their operator is drawn. Terminals pick
//	a variable with probability 2/5, otherwise a literal.
//
// Inputs:
//
//	data - Fuzzer bytes. Consumed left to right.
//	cfg - Generation limits. Must pass Validate.
//
// Outputs:
//
//	*Program - The generated program.
//	error - ErrInvalidConfig, or ErrExhausted when data runs out.
//
// Thread Safety: Safe for concurrent use; each call owns its state.
func Generate(data []byte, cfg Config) (*Program, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &builder{src: entropy.New(data), cfg: cfg, ops: cfg.binaryOps()}
	e, err := b.build(0)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	used := make([]int, len(b.stack))
	copy(used, b.stack)
	return &Program{Expr: e, UsedVariables: used, NumInputs: len(used)}, nil
}

// GenerateRandom builds a Program from budget bytes of rng output.
//
// This path is not reproducible from a fuzz input and is only meant for
// exploration and demos. A budget <= 0 uses 256 bytes.
func GenerateRandom(rng *rand.Rand, cfg Config, budget int) (*Program, error) {
	if budget <= 0 {
		budget = 256
	}
	return Generate(entropy.RandomBytes(rng, budget), cfg)
}

// builder holds the per-call generation state.
type builder struct {
	src *entropy.Source
	cfg Config
	ops []expr.Op2

	// stack holds variable indices in declaration order.
	stack []int
}

func (b *builder) build(depth int) (expr.Simple, error) {
	if depth >= b.cfg.MaxDepth {
		return b.terminal()
	}
	choice, err := b.src.IntInRange(0, 2)
	if err != nil {
		return nil, err
	}
	switch choice {
	case 0:
		return b.terminal()
	case 1:
		return b.unary(depth)
	default:
		return b.binary(depth)
	}
}

func (b *builder) terminal() (expr.Simple, error) {
	isVar, err := b.src.Ratio(2, 5)
	if err != nil {
		return nil, err
	}
	if isVar {
		idx, err := b.variable()
		if err != nil {
			return nil, err
		}
		return expr.Var(idx), nil
	}
	v, err := b.literal()
	if err != nil {
		return nil, err
	}
	return expr.Num(v), nil
}

// variable applies the reuse policy: introduce x_0 first, reuse uniformly
// once the budget is spent, and otherwise reuse with probability
// used/(used+available).
func (b *builder) variable() (int, error) {
	used := len(b.stack)
	if used == 0 {
		b.stack = append(b.stack, 0)
		return 0, nil
	}
	available := b.cfg.MaxVariables - used
	if available <= 0 {
		return b.reuse()
	}
	reuse, err := b.src.Ratio(used, used+available)
	if err != nil {
		return 0, err
	}
	if reuse {
		return b.reuse()
	}
	next := used
	b.stack = append(b.stack, next)
	return next, nil
}

func (b *builder) reuse() (int, error) {
	i, err := b.src.Choose(len(b.stack))
	if err != nil {
		return 0, err
	}
	return b.stack[i], nil
}

func (b *builder) literal() (float64, error) {
	choice, err := b.src.IntInRange(0, 4)
	if err != nil {
		return 0, err
	}
	switch choice {
	case 0:
		return 0, nil
	case 1:
		return 1, nil
	case 2:
		return 2, nil
	case 3:
		f, err := b.src.Float64()
		if err != nil {
			return 0, err
		}
		if math.IsNaN(f) {
			return 0, nil
		}
		return clamp(f, -10, 10), nil
	default:
		f, err := b.src.Float64()
		if err != nil {
			return 0, err
		}
		if math.IsNaN(f) {
			return 0.1, nil
		}
		return clamp(math.Abs(f), 0.1, 5), nil
	}
}

func (b *builder) unary(depth int) (expr.Simple, error) {
	arg, err := b.build(depth + 1)
	if err != nil {
		return nil, err
	}
	i, err := b.src.Choose(len(unaryMenu))
	if err != nil {
		return nil, err
	}
	op := unaryMenu[i]
	if op == expr.Log && !b.cfg.AllowLog {
		op = expr.Sqrt
	}
	return expr.Unary(op, arg), nil
}

func (b *builder) binary(depth int) (expr.Simple, error) {
	left, err := b.build(depth + 1)
	if err != nil {
		return nil, err
	}
	right, err := b.build(depth + 1)
	if err != nil {
		return nil, err
	}
	i, err := b.src.Choose(len(b.ops))
	if err != nil {
		return nil, err
	}
	return expr.Binary(b.ops[i], left, right), nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
