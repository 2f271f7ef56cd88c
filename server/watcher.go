package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

type snapshotDir interface {
	Dir() string
	SeasonFromPath(path string) (int, bool)
}

// WatchSnapshots drops cached reports whenever a snapshot file in the store
// directory changes, so syncs done by another process show up without a
// restart. The watch stops when ctx is done.
func (s *Server) WatchSnapshots(ctx context.Context, store snapshotDir) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating watcher: %w", err)
	}
	if err := watcher.Add(store.Dir()); err != nil {
		watcher.Close()
		return fmt.Errorf("error watching %s: %w", store.Dir(), err)
	}

	s.log.Info("Watching snapshots", slog.String("dir", store.Dir()))
	go s.watchLoop(ctx, watcher, store)
	return nil
}

func (s *Server) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, store snapshotDir) {
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			season, ok := store.SeasonFromPath(event.Name)
			if !ok {
				continue
			}
			s.Invalidate(season)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.log.Error("Snapshot watcher error", slog.Any("error", err))
		}
	}
}
