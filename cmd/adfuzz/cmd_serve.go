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
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/adfuzz/services/adfuzz/api"
	"github.com/AleutianAI/adfuzz/services/adfuzz/findings"
	"github.com/AleutianAI/adfuzz/services/adfuzz/harness"
	"github.com/AleutianAI/adfuzz/services/adfuzz/telemetry"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr  string
		dir   string
		debug bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve findings, driver statistics and input replay over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if debug {
				gin.SetMode(gin.DebugMode)
			} else {
				gin.SetMode(gin.ReleaseMode)
			}
			if dir == "" {
				dir = a.cfg.Storage.FindingsDir
			}

			var store findings.Store
			if dir != "" {
				bs, err := a.openStore(dir)
				if err != nil {
					return err
				}
				defer bs.Close()
				store = bs
			}

			// Replayed inputs never abort the server.
			opts := a.driverOptions(io.Discard)
			opts.Mode = harness.Continuous
			opts.Recorder = a.recorder(store, a.cfg.Storage.CorpusDir, opts.Mode)
			driver := harness.New(opts)

			handlers := api.NewHandlers(store, driver, a.logger)
			router := api.NewRouter(a.cfg.Telemetry.ServiceName, handlers, telemetry.MetricsHandler())
			srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("starting adfuzz API", slog.String("address", addr))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			a.logger.Info("shutting down adfuzz API")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&dir, "findings-db", "", "findings database directory (default FUZZ_FINDINGS_DIR)")
	cmd.Flags().BoolVar(&debug, "debug", false, "gin debug mode")
	return cmd
}
