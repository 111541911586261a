// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/adfuzz/services/adfuzz/config"
	"github.com/AleutianAI/adfuzz/services/adfuzz/findings"
	"github.com/AleutianAI/adfuzz/services/adfuzz/harness"
	"github.com/AleutianAI/adfuzz/services/adfuzz/storage/badger"
	"github.com/AleutianAI/adfuzz/services/adfuzz/telemetry"
)

// app is the state shared by every subcommand once the root has run its
// setup.
type app struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg      config.Config
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	shutdown func(context.Context) error
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "adfuzz",
		Short: "Differential fuzzer for automatic-differentiation engines",
		Long: `adfuzz generates random expressions, differentiates them with forward
and reverse mode AD, a tensor autograd and a symbolic differentiator, and
reports every point where the gradients disagree.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown(cmd.Context())
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML configuration file (environment variables override it)")
	pf.StringVar(&a.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	pf.StringVar(&a.logFormat, "log-format", "text", "log format: text or json")

	root.AddCommand(
		newRunCmd(a),
		newWatchCmd(a),
		newGenerateCmd(a),
		newExampleCmd(a),
		newFindingsCmd(a),
		newServeCmd(a),
	)
	return root
}

// newLogger builds the process logger.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q: want text or json", format)
	}
}

func (a *app) setup(cmd *cobra.Command) error {
	logger, err := newLogger(cmd.ErrOrStderr(), a.logLevel, a.logFormat)
	if err != nil {
		return err
	}
	a.logger = logger
	slog.SetDefault(logger)

	if err := config.Load(a.configPath); err != nil {
		return err
	}
	a.cfg = config.Global

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	shutdown, err := telemetry.Init(ctx, a.cfg.Telemetry)
	if err != nil {
		return err
	}
	a.shutdown = shutdown

	metrics, err := telemetry.NewMetrics(otel.Meter(telemetry.TracerName))
	if err != nil {
		return errors.Join(err, shutdown(ctx))
	}
	a.metrics = metrics

	logger.Debug("configuration loaded",
		slog.String("mode", a.cfg.Fuzz.Mode),
		slog.Int("tests", a.cfg.Fuzz.Tests),
		slog.String("oracle", a.cfg.Fuzz.Oracle),
		slog.Int("max_depth", a.cfg.AST.MaxDepth),
		slog.Int("max_variables", a.cfg.AST.MaxVariables),
	)
	return nil
}

func (a *app) teardown(ctx context.Context) error {
	if a.shutdown == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return a.shutdown(ctx)
}

// driverOptions maps the loaded configuration onto harness options.
func (a *app) driverOptions(reports io.Writer) harness.Options {
	opts := harness.OptionsFromConfig(a.cfg)
	opts.Logger = a.logger
	opts.Metrics = a.metrics
	opts.ReportWriter = reports
	return opts
}

// openStore opens the findings database in dir.
func (a *app) openStore(dir string) (*findings.BadgerStore, error) {
	if dir == "" {
		return nil, errors.New("no findings database: set --findings-db or FUZZ_FINDINGS_DIR")
	}
	cfg := badger.DefaultConfig(dir)
	cfg.Logger = a.logger
	return findings.OpenBadgerStore(cfg)
}

// recorder returns the sink for failures, or nil when neither a store nor
// a corpus directory is configured.
func (a *app) recorder(store findings.Store, corpusDir string, mode harness.Mode) harness.Recorder {
	if store == nil && corpusDir == "" {
		return nil
	}
	r := &findings.Recorder{Store: store, Mode: mode, Logger: a.logger}
	if corpusDir != "" {
		r.Corpus = &findings.CorpusWriter{Dir: corpusDir}
	}
	return r
}
