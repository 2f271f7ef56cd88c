// Package storage persists one snapshot per season.
//
// Every backend replaces a season atomically: a reader sees either the
// previous snapshot or the new one, never a mix. Load returns
// temperrors.ErrNotFound for a season that was never saved.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"racebot-stats/config"
	"racebot-stats/models"
	"racebot-stats/temperrors"
)

type Store interface {
	Save(ctx context.Context, season int, snap *models.Snapshot) error
	Load(ctx context.Context, season int) (*models.Snapshot, error)
	// Update reads, changes and writes a season while holding its lock, so
	// concurrent updates of one season never lose each other's changes.
	Update(ctx context.Context, season int, fn UpdateFunc) (*models.Snapshot, error)
	Seasons(ctx context.Context) ([]int, error)
	Close() error
}

// UpdateFunc gets the stored snapshot, nil for a season that was never saved,
// and returns the one to store. An error leaves the season untouched.
type UpdateFunc func(prev *models.Snapshot) (*models.Snapshot, error)

// New builds the backend selected in the configuration.
func New(ctx context.Context, conf config.StorageConfig, log *slog.Logger) (Store, error) {
	switch conf.Driver {
	case "", "file":
		codec, err := CodecByName(conf.Codec)
		if err != nil {
			return nil, err
		}
		return NewFileStore(conf.Dir, codec)
	case "sqlite":
		return NewSQLiteStore(ctx, conf.Path)
	case "s3":
		return NewS3Store(ctx, conf.S3, log)
	default:
		return nil, fmt.Errorf("%w: unknown storage driver %q", temperrors.ErrInvalidConfig, conf.Driver)
	}
}

// seasonLocks serializes writes per season key while letting different
// seasons proceed in parallel.
type seasonLocks struct {
	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

func (l *seasonLocks) lock(season int) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[int]*sync.Mutex)
	}
	m, ok := l.locks[season]
	if !ok {
		m = &sync.Mutex{}
		l.locks[season] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func checkSnapshot(season int, snap *models.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("nil snapshot for season %d", season)
	}
	if snap.Season != season {
		return fmt.Errorf("snapshot season %d does not match key %d", snap.Season, season)
	}
	return nil
}

// update is the body of every Update. The caller holds the season lock.
func update(ctx context.Context, season int,
	load func(context.Context, int) (*models.Snapshot, error),
	write func(context.Context, int, *models.Snapshot) error,
	fn UpdateFunc,
) (*models.Snapshot, error) {
	prev, err := load(ctx, season)
	if err != nil && !errors.Is(err, temperrors.ErrNotFound) {
		return nil, err
	}
	snap, err := fn(prev)
	if err != nil {
		return nil, err
	}
	if err := checkSnapshot(season, snap); err != nil {
		return nil, err
	}
	if err := write(ctx, season, snap); err != nil {
		return nil, err
	}
	return snap, nil
}
