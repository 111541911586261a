// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package replay

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/adfuzz/services/adfuzz/findings"
	"github.com/AleutianAI/adfuzz/services/adfuzz/harness"
)

// Handler receives the result of every input replayed by Watch.
type Handler func(path string, it *harness.Iteration, err error)

// Watch replays files as they are created or rewritten in dir.
//
// Description:
//
//	Files already present are replayed first. After that every Create or
//	Write event on a regular, non-hidden file triggers a replay. A file
//	whose content was already seen is ignored, so the several Write
//	events of one save produce at most one iteration per distinct
//	content.
//
// Inputs:
//
//	ctx - Watching stops when ctx is done.
//	dir - Directory to watch. Subdirectories are not watched.
//	handle - Optional callback for each replayed input.
//
// Outputs:
//
//	error - Watcher setup errors, or nil after ctx is done.
func (r *Replayer) Watch(ctx context.Context, dir string, handle Handler) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	logger := r.logger().With(slog.String("dir", dir))
	logger.Info("watching for new inputs")

	seen := make(map[[32]byte]struct{})
	replay := func(path string) {
		if strings.HasPrefix(filepath.Base(path), ".") {
			return
		}
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			return
		}
		data, err := findings.ReadCorpusFile(path)
		if err != nil {
			logger.Debug("input not readable yet", slog.String("path", path), slog.String("error", err.Error()))
			return
		}
		// A Create event can arrive before the content is written.
		if len(data) == 0 {
			return
		}
		sum := sha256.Sum256(data)
		if _, ok := seen[sum]; ok {
			return
		}
		seen[sum] = struct{}{}
		it, err := r.Driver.Run(ctx, data)
		if err != nil {
			logger.Warn("input escalated", slog.String("path", path), slog.String("error", err.Error()))
		}
		if handle != nil {
			handle(path, it, err)
		}
	}

	existing, err := Collect([]string{dir})
	if err != nil {
		return err
	}
	for _, path := range existing {
		if filepath.Dir(path) == filepath.Clean(dir) {
			replay(path)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				replay(event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}
