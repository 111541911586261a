// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command adfuzz drives the differential AD fuzzer outside of go test.
//
// The fuzz loop itself runs under the native Go fuzzer:
//
//	go test -fuzz=FuzzDifferential ./services/adfuzz/harness
//	FUZZ_MODE=continuous FUZZ_TESTS=4 go test -fuzz=FuzzDifferential ./services/adfuzz/harness
//
// This command replays and inspects what that loop produces:
//
//	adfuzz run testdata/fuzz/FuzzDifferential --workers 8
//	adfuzz watch ./crashers --findings-db ~/.adfuzz/findings
//	adfuzz findings list
//	adfuzz serve --addr :8080
//	adfuzz generate --count 3 --seed 42
//	adfuzz example
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
