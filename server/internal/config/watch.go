package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay collapses the burst of events one save produces into a single
// reload.
const reloadDelay = 100 * time.Millisecond

// Watch reloads the config file at path whenever it changes and passes each
// valid result to onChange. A file that fails to load is logged and skipped,
// so the caller keeps its previous settings. Watch blocks until ctx is
// cancelled.
//
// The parent directory is watched rather than the file itself so that
// editors which save by renaming a temp file over path are still seen.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("config watch: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watch: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("config watch: %w", err)
	}
	slog.Info("config: watching for changes", "path", target)

	pending := time.NewTimer(reloadDelay)
	if !pending.Stop() {
		<-pending.C
	}
	defer pending.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			pending.Reset(reloadDelay)

		case <-pending.C:
			cfg, err := Load(target)
			if err != nil {
				slog.Error("config: reload failed, keeping previous config", "path", target, "err", err)
				continue
			}
			slog.Info("config: reloaded", "path", target, "http_port", cfg.Server.HTTPPort)
			onChange(cfg)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("config: watcher error", "err", err)
		}
	}
}
