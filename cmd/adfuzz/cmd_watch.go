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
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/adfuzz/services/adfuzz/harness"
	"github.com/AleutianAI/adfuzz/services/adfuzz/replay"
)

func newWatchCmd(a *app) *cobra.Command {
	var flags sessionFlags
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Replay inputs as an external fuzzer writes them into a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			s, err := a.openSession(flags, out)
			if err != nil {
				return err
			}
			defer s.close()

			r := &replay.Replayer{Driver: s.driver, Logger: a.logger}
			err = r.Watch(ctx, args[0], func(path string, it *harness.Iteration, err error) {
				if it == nil {
					return
				}
				fmt.Fprintf(out, "%-10s %s\n", it.Outcome, path)
				if f := firstFailure(it); f != nil {
					_ = f.WriteReport(out, false)
				}
			})
			printStats(out, s.driver.Stats())
			return err
		},
	}
	flags.register(cmd)
	return cmd
}

func firstFailure(it *harness.Iteration) *harness.Failure {
	if len(it.Failures) == 0 {
		return nil
	}
	return it.Failures[0]
}
