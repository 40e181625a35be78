// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ManuGH/society/internal/log"
)

const defaultDebounce = 200 * time.Millisecond

// WatchFile reloads the session whenever the token file is replaced or
// removed by someone else, until ctx is done. The directory is watched
// rather than the file because atomic writes swap the inode.
func (p *Provider) WatchFile(ctx context.Context, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(p.store.Path())
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch session dir: %w", err)
	}
	p.logger.Info().
		Str(log.FieldEvent, "session.watcher_started").
		Str(log.FieldSessionFile, p.store.Path()).
		Msg("watching session file")

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Str(log.FieldEvent, "session.watcher_stopped").Msg("session watcher stopped")
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != p.store.Path() {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				timer.Reset(debounce)
			}
		case <-timer.C:
			if err := p.Reload(); err != nil {
				p.logger.Warn().Err(err).Str(log.FieldEvent, "session.reload_failed").Msg("session file reload failed")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.logger.Error().Err(err).Str(log.FieldEvent, "session.watcher_error").Msg("session watcher error")
		}
	}
}
