package session

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchIdentity observes the identity file for out-of-process changes and
// calls Manager.Reload when it is written or removed. The watch is on the
// containing directory so removals and re-creations are both seen.
//
// Delivery is best-effort; a missed event only delays the next Reload.
func WatchIdentity(ctx context.Context, m *Manager, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(m.IdentityPath())
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	target := filepath.Clean(m.IdentityPath())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				log.Debug("identity file changed externally", "op", ev.Op.String())
				m.Reload()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("identity watcher error", "error", err)
		}
	}
}
