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
	"io"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/adfuzz/services/adfuzz/catalog"
	"github.com/AleutianAI/adfuzz/services/adfuzz/harness"
	"github.com/AleutianAI/adfuzz/services/adfuzz/printer"
)

func newExampleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "example",
		Short: "Run the built-in example expressions through every engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			opts := a.driverOptions(io.Discard)
			opts.Mode = harness.Continuous
			d := harness.New(opts)

			results, err := catalog.Run(cmd.Context(), d)
			failed := 0
			for i, ex := range catalog.Examples()[:len(results)] {
				res := results[i]
				fmt.Fprintf(out, "\n=== %s ===\n", ex.Name)
				fmt.Fprintf(out, "S-expr: %s\n", printer.SExpr(ex.Expr, ex.NumInputs))
				fmt.Fprintf(out, "Infix:  %s\n", printer.Infix(ex.Expr, ex.NumInputs))
				fmt.Fprintf(out, "SSA:\n%s\n", printer.SSA(ex.Expr, ex.NumInputs))
				fmt.Fprintf(out, "Testing with inputs %v:\n", ex.Inputs)
				fmt.Fprintf(out, "  value:   %v\n", res.Value)
				fmt.Fprintf(out, "  reverse: %v\n", res.Engine.Reverse)
				fmt.Fprintf(out, "  forward: %v\n", res.Engine.Forward)
				for _, gt := range res.GroundTruths {
					fmt.Fprintf(out, "  %-8s %v\n", gt.Name+":", gt.Jacobian)
				}
				if res.Failure != nil {
					failed++
					fmt.Fprintf(out, "FAIL: %v\n", res.Failure.Err)
				} else {
					fmt.Fprintln(out, "PASS")
				}
			}
			if err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d examples failed", failed)
			}
			return nil
		},
	}
}
