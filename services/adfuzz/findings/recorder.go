// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package findings

import (
	"context"
	"errors"
	"log/slog"

	"github.com/AleutianAI/adfuzz/services/adfuzz/harness"
)

// Recorder is a harness.Recorder that stores findings and, when Corpus is
// set, writes a reproducer for every new one.
type Recorder struct {
	Store  Store
	Corpus *CorpusWriter
	Mode   harness.Mode
	Logger *slog.Logger
}

var _ harness.Recorder = (*Recorder)(nil)

// Record implements harness.Recorder.
func (r *Recorder) Record(ctx context.Context, f *harness.Failure) error {
	if f == nil {
		return errors.New("nil failure")
	}
	finding := FromFailure(f, r.Mode)

	var errs []error
	created := true
	if r.Store != nil {
		stored, isNew, err := r.Store.Put(ctx, finding)
		if err != nil {
			errs = append(errs, err)
		} else {
			finding, created = stored, isNew
		}
	}
	if created && r.Corpus != nil && len(f.Data) > 0 {
		path, err := r.Corpus.Write(f.Data)
		if err != nil {
			errs = append(errs, err)
		} else if r.Logger != nil {
			r.Logger.Info("reproducer written",
				slog.String("finding_id", finding.ID),
				slog.String("path", path),
			)
		}
	}
	if r.Logger != nil && created {
		r.Logger.Info("finding recorded",
			slog.String("finding_id", finding.ID),
			slog.String("kind", finding.Kind),
			slog.String("oracle", finding.Oracle),
			slog.String("expr", finding.Infix),
		)
	}
	return errors.Join(errs...)
}
