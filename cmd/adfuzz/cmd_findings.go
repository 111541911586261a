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
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/adfuzz/services/adfuzz/findings"
)

func newFindingsCmd(a *app) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "findings",
		Short: "Inspect recorded findings",
	}
	cmd.PersistentFlags().StringVar(&dir, "findings-db", "", "findings database directory (default FUZZ_FINDINGS_DIR)")

	open := func() (*findings.BadgerStore, error) {
		if dir == "" {
			dir = a.cfg.Storage.FindingsDir
		}
		return a.openStore(dir)
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List findings, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()

			all, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			total, err := store.Count(cmd.Context())
			if err != nil {
				return err
			}
			writeFindingsTable(cmd.OutOrStdout(), all)
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d findings\n", len(all), total)
			return nil
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "maximum findings to show; 0 for all")

	var asJSON bool
	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one finding with its reproducer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()

			f, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(f)
			}
			writeFinding(out, f)
			return nil
		},
	}
	show.Flags().BoolVar(&asJSON, "json", false, "print as JSON")

	cmd.AddCommand(list, show)
	return cmd
}

func writeFindingsTable(w io.Writer, all []findings.Finding) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tKIND\tORACLE\tHITS\tEXPRESSION")
	for _, f := range all {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			f.ID, f.CreatedAt.Format(time.RFC3339), f.Kind, f.Oracle, f.Hits, f.Infix)
	}
	_ = tw.Flush()
}

func writeFinding(w io.Writer, f findings.Finding) {
	fmt.Fprintf(w, "ID:        %s\n", f.ID)
	fmt.Fprintf(w, "Created:   %s\n", f.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Mode:      %s\n", f.Mode)
	fmt.Fprintf(w, "Kind:      %s\n", f.Kind)
	fmt.Fprintf(w, "Oracle:    %s\n", f.Oracle)
	fmt.Fprintf(w, "Hits:      %d\n", f.Hits)
	fmt.Fprintf(w, "\nInfix notation:\n%s\n", f.Infix)
	fmt.Fprintf(w, "\nS-expression format:\n%s\n", f.SExpr)
	if f.SSA != "" {
		fmt.Fprintf(w, "\nSSA format:\n%s\n", f.SSA)
	}
	fmt.Fprintln(w, "\nInputs:")
	for i, x := range f.Inputs {
		fmt.Fprintf(w, "x_%d: %v\n", i, x)
	}
	fmt.Fprintf(w, "\nError:\n%s\n", f.Message)
	fmt.Fprintf(w, "\nReproducer (testdata/fuzz/FuzzDifferential/%s):\n%s", findings.CorpusName(f.Data), findings.EncodeCorpus(f.Data))
}
