// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the process-wide fuzz configuration.
//
// Values come from three layers, later ones winning: built-in defaults, an
// optional YAML file, and environment variables. Environment values that
// do not parse, or parse to something out of range, are ignored and the
// previous layer's value is kept. The result is read once per process via
// Load and published in Global.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/adfuzz/services/adfuzz/generator"
	"github.com/AleutianAI/adfuzz/services/adfuzz/telemetry"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrInvalidConfig wraps a validation failure.
	ErrInvalidConfig = errors.New("invalid config")
)

// Environment variable names.
const (
	EnvMode           = "FUZZ_MODE"
	EnvTests          = "FUZZ_TESTS"
	EnvOracle         = "FUZZ_ORACLE"
	EnvMaxDepth       = "AST_MAX_DEPTH"
	EnvAllowDivision  = "AST_ALLOW_DIVISION"
	EnvAllowPower     = "AST_ALLOW_POWER"
	EnvAllowLog       = "AST_ALLOW_LOG"
	EnvMaxVariables   = "AST_MAX_VARIABLES"
	EnvFindingsDir    = "FUZZ_FINDINGS_DIR"
	EnvCorpusDir      = "FUZZ_CORPUS_DIR"
	EnvMaxMagnitude   = "FUZZ_MAX_MAGNITUDE"
	EnvPositiveDomain = "FUZZ_POSITIVE_DOMAIN"
	EnvEnvironment    = "ADFUZZ_ENV"
	EnvTraces         = "OTEL_TRACES_EXPORTER"
	EnvMetrics        = "OTEL_METRICS_EXPORTER"
	EnvOTLPEndpoint   = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvSampleRatio    = "OTEL_TRACES_SAMPLER_ARG"
)

// FuzzConfig controls the driver.
type FuzzConfig struct {
	// Mode is "continuous" or anything else for panic-on-first-error.
	Mode string `yaml:"mode"`

	// Tests is the number of programs generated per input.
	Tests int `yaml:"tests" validate:"gte=1"`

	// Oracle is the oracle selector: all, rev_fwd, rev_gt, fwd_gt, gt_gt.
	Oracle string `yaml:"oracle"`

	// MaxMagnitude rejects points with any |x_i| above it.
	MaxMagnitude float64 `yaml:"max_magnitude" validate:"gt=0"`

	// PositiveDomain requires every input to be > 0 for programs that
	// contain sqrt, log or pow.
	PositiveDomain bool `yaml:"positive_domain"`
}

// StorageConfig locates persisted findings.
type StorageConfig struct {
	// FindingsDir is the findings database directory. Empty disables it.
	FindingsDir string `yaml:"findings_dir"`

	// CorpusDir receives failing inputs in Go fuzz corpus format. Empty
	// disables it.
	CorpusDir string `yaml:"corpus_dir"`
}

// Config is the full process configuration.
type Config struct {
	Fuzz      FuzzConfig       `yaml:"fuzz"`
	AST       generator.Config `yaml:"ast"`
	Storage   StorageConfig    `yaml:"storage"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

var (
	// Global is the configuration loaded by Load.
	Global Config
	once   sync.Once

	validate = validator.New()
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Fuzz: FuzzConfig{
			Mode:           "panic",
			Tests:          1,
			Oracle:         "all",
			MaxMagnitude:   1e10,
			PositiveDomain: true,
		},
		AST: generator.DefaultConfig(),
		Telemetry: telemetry.Config{
			ServiceName:    "adfuzz",
			ServiceVersion: "1.0.0",
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "none",
			OTLPEndpoint:   "localhost:4317",
			OTLPInsecure:   true,
			SampleRatio:    1,
		},
	}
}

// Validate checks the struct tags of the whole tree.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Load reads the configuration once per process into Global. path may be
// empty for environment-only configuration.
func Load(path string) error {
	var err error
	once.Do(func() {
		Global, err = Resolve(path, os.LookupEnv)
	})
	return err
}

// Resolve builds a configuration from defaults, the YAML file at path (if
// any) and the environment seen through lookup.
func Resolve(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv(lookup)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv returns the defaults overridden by the environment.
func FromEnv(lookup func(string) (string, bool)) Config {
	cfg := DefaultConfig()
	cfg.ApplyEnv(lookup)
	return cfg
}

// ApplyEnv overrides c with every environment value that parses and is in
// range.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	env := envReader(lookup)

	if v, ok := env.str(EnvMode); ok {
		c.Fuzz.Mode = v
	}
	env.integer(EnvTests, 1, &c.Fuzz.Tests)
	if v, ok := env.str(EnvOracle); ok {
		c.Fuzz.Oracle = v
	}
	env.number(EnvMaxMagnitude, &c.Fuzz.MaxMagnitude)
	env.boolean(EnvPositiveDomain, &c.Fuzz.PositiveDomain)

	env.integer(EnvMaxDepth, 0, &c.AST.MaxDepth)
	env.integer(EnvMaxVariables, 1, &c.AST.MaxVariables)
	env.boolean(EnvAllowDivision, &c.AST.AllowDivision)
	env.boolean(EnvAllowPower, &c.AST.AllowPower)
	env.boolean(EnvAllowLog, &c.AST.AllowLog)

	if v, ok := env.str(EnvFindingsDir); ok {
		c.Storage.FindingsDir = v
	}
	if v, ok := env.str(EnvCorpusDir); ok {
		c.Storage.CorpusDir = v
	}

	if v, ok := env.str(EnvEnvironment); ok {
		c.Telemetry.Environment = v
	}
	if v, ok := env.str(EnvTraces); ok {
		c.Telemetry.TraceExporter = v
	}
	if v, ok := env.str(EnvMetrics); ok {
		c.Telemetry.MetricExporter = v
	}
	if v, ok := env.str(EnvOTLPEndpoint); ok {
		c.Telemetry.OTLPEndpoint = v
	}
	ratio := c.Telemetry.SampleRatio
	env.number(EnvSampleRatio, &ratio)
	if ratio <= 1 {
		c.Telemetry.SampleRatio = ratio
	}
}

type envReader func(string) (string, bool)

func (r envReader) str(key string) (string, bool) {
	if r == nil {
		return "", false
	}
	v, ok := r(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (r envReader) integer(key string, min int, dst *int) {
	v, ok := r.str(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min {
		return
	}
	*dst = n
}

func (r envReader) number(key string, dst *float64) {
	v, ok := r.str(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || !(f > 0) {
		return
	}
	*dst = f
}

func (r envReader) boolean(key string, dst *bool) {
	v, ok := r.str(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return
	}
	*dst = b
}
