// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package harness

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/AleutianAI/adfuzz/services/adfuzz/config"
)

// FuzzDifferential is the native fuzz target. Configure it through the
// FUZZ_* and AST_* environment variables:
//
//	FUZZ_MODE=continuous go test -fuzz=FuzzDifferential ./services/adfuzz/harness
func FuzzDifferential(f *testing.F) {
	f.Add(seed([]float64{3, 4}, genSum...))
	f.Add(seed([]float64{1, 1}, genScaled()...))
	f.Add(seed([]float64{4, 1}, genSqrt...))
	f.Add(seed([]float64{0.5, 2}, 2, 1, 0, 0, 4, 0, 0, 0, 1, 2))

	opts := OptionsFromConfig(config.FromEnv(os.LookupEnv))
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	d := New(opts)

	f.Fuzz(func(t *testing.T, data []byte) {
		d.Fuzz(data)
	})
}
