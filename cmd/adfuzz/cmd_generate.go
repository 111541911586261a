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
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/adfuzz/services/adfuzz/generator"
	"github.com/AleutianAI/adfuzz/services/adfuzz/printer"
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		count  int
		seed   uint64
		budget int
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Print random programs in infix, S-expression and SSA form",
		Long: `Generates programs from pseudo-random bytes with the configured AST
limits. A fixed --seed reproduces the same programs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("--count must be positive, got %d", count)
			}
			if !cmd.Flags().Changed("seed") {
				seed = uint64(time.Now().UnixNano())
			}
			rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# seed %d\n", seed)
			for i := 0; i < count; i++ {
				prog, err := generator.GenerateRandom(rng, a.cfg.AST, budget)
				if err != nil {
					fmt.Fprintf(out, "\n### program %d: %v\n", i, err)
					continue
				}
				fmt.Fprintf(out, "\n### program %d (%d inputs)\n", i, prog.NumInputs)
				fmt.Fprintf(out, "Infix:  %s\n", printer.Infix(prog.Expr, prog.NumInputs))
				fmt.Fprintf(out, "S-expr: %s\n", printer.SExpr(prog.Expr, prog.NumInputs))
				fmt.Fprintf(out, "SSA:\n%s\n", printer.SSA(prog.Expr, prog.NumInputs))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 5, "number of programs")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (default: current time)")
	cmd.Flags().IntVar(&budget, "budget", 256, "random bytes per program")
	return cmd
}
