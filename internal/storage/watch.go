package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lotas/tabgruppen/internal/applog"
)

// Watch polls for changes whenever the database or its WAL is written, and
// every interval as a fallback for filesystems without notifications. It
// blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, interval time.Duration) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	base := filepath.Base(s.path)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.HasPrefix(filepath.Base(ev.Name), base) || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := s.Poll(ctx); err != nil {
				applog.Error("storage.poll", err, "trigger", "fsnotify")
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			applog.Error("storage.watch", err)
		case <-ticker.C:
			if err := s.Poll(ctx); err != nil {
				applog.Error("storage.poll", err, "trigger", "interval")
			}
		}
	}
}
