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
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/adfuzz/services/adfuzz/findings"
	"github.com/AleutianAI/adfuzz/services/adfuzz/harness"
	"github.com/AleutianAI/adfuzz/services/adfuzz/replay"
	"github.com/AleutianAI/adfuzz/services/adfuzz/telemetry"
)

// sessionFlags are shared by run and watch.
type sessionFlags struct {
	findingsDB  string
	corpusOut   string
	metricsAddr string
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.findingsDB, "findings-db", "", "findings database directory (default FUZZ_FINDINGS_DIR)")
	cmd.Flags().StringVar(&f.corpusOut, "corpus-out", "", "write failing inputs here in go test corpus format (default FUZZ_CORPUS_DIR)")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
}

// session is a driver plus the resources it records into.
type session struct {
	driver *harness.Driver
	store  *findings.BadgerStore
	stop   func()
}

func (s *session) close() {
	if s.stop != nil {
		s.stop()
	}
	if s.store != nil {
		_ = s.store.Close()
	}
}

// openSession builds a driver from the configuration and flags. Crash
// reports go to reports.
func (a *app) openSession(f sessionFlags, reports io.Writer) (*session, error) {
	s := &session{}
	dir := f.findingsDB
	if dir == "" {
		dir = a.cfg.Storage.FindingsDir
	}
	corpus := f.corpusOut
	if corpus == "" {
		corpus = a.cfg.Storage.CorpusDir
	}

	opts := a.driverOptions(reports)
	var store findings.Store
	if dir != "" {
		bs, err := a.openStore(dir)
		if err != nil {
			return nil, err
		}
		s.store, store = bs, bs
	}
	opts.Recorder = a.recorder(store, corpus, opts.Mode)
	s.driver = harness.New(opts)

	if f.metricsAddr != "" {
		stop, err := a.serveMetrics(f.metricsAddr)
		if err != nil {
			s.close()
			return nil, err
		}
		s.stop = stop
	}
	return s, nil
}

// serveMetrics exposes the Prometheus handler. It requires the prometheus
// metric exporter.
func (a *app) serveMetrics(addr string) (func(), error) {
	handler := telemetry.MetricsHandler()
	if handler == nil {
		return nil, errors.New("--metrics-addr needs OTEL_METRICS_EXPORTER=prometheus")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", slog.String("error", err.Error()))
		}
	}()
	a.logger.Info("serving metrics", slog.String("address", addr))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func newRunCmd(a *app) *cobra.Command {
	var (
		flags   sessionFlags
		workers int
	)
	cmd := &cobra.Command{
		Use:   "run [paths...]",
		Short: "Replay corpus files or directories through every engine",
		Long: `Replays each input through the harness exactly as the fuzz target
would. Files may be raw bytes or go test fuzz corpus entries. Every
escalating input is reported and the command exits non-zero if there
were any.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			s, err := a.openSession(flags, io.Discard)
			if err != nil {
				return err
			}
			defer s.close()

			r := &replay.Replayer{Driver: s.driver, Workers: workers, Logger: a.logger}
			start := time.Now()
			sum, err := r.Run(ctx, args)
			if err != nil {
				return err
			}

			for _, esc := range sum.Escalations {
				var f *harness.Failure
				if errors.As(esc.Err, &f) {
					fmt.Fprintf(out, "\n%s:", esc.Path)
					_ = f.WriteReport(out, false)
				}
			}
			printStats(out, s.driver.Stats())
			fmt.Fprintf(out, "replayed %d files in %s (%d unreadable, %d escalated)\n",
				sum.Files, time.Since(start).Round(time.Millisecond), sum.Unreadable, len(sum.Escalations))
			if len(sum.Escalations) > 0 {
				return fmt.Errorf("%d inputs escalated", len(sum.Escalations))
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&workers, "workers", runtime.NumCPU(), "concurrent replays")
	return cmd
}

func printStats(w io.Writer, s harness.Stats) {
	fmt.Fprintf(w, "iterations: %d  passed: %d  failed: %d  skipped: %d  rejected: %d\n",
		s.Iterations, s.Passed, s.Failed, s.Skipped, s.Rejected)
	fmt.Fprintf(w, "programs: %d  generation failures: %d  zero-variable: %d  domain skips: %d  ground-truth skips: %d\n",
		s.Programs, s.GenerationFailures, s.ZeroVariable, s.DomainSkips, s.GroundTruthSkips)
	for oracle, n := range s.Mismatches {
		fmt.Fprintf(w, "mismatches[%s]: %d\n", oracle, n)
	}
	if s.BackendErrors > 0 || s.DimensionErrors > 0 {
		fmt.Fprintf(w, "backend errors: %d  dimension errors: %d\n", s.BackendErrors, s.DimensionErrors)
	}
}
