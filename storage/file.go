package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"racebot-stats/models"
	"racebot-stats/temperrors"
)

// FileStore keeps one file per season: {dir}/{season}{ext}.
type FileStore struct {
	dir   string
	codec Codec
	locks seasonLocks
}

func NewFileStore(dir string, codec Codec) (*FileStore, error) {
	if codec == nil {
		codec = JSONCodec{}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating snapshot dir: %w", err)
	}
	return &FileStore{dir: dir, codec: codec}, nil
}

func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) Path(season int) string {
	return filepath.Join(s.dir, strconv.Itoa(season)+s.codec.Ext())
}

// Save writes to a temp file in the same directory, syncs it and renames it
// over the previous snapshot.
func (s *FileStore) Save(ctx context.Context, season int, snap *models.Snapshot) error {
	if err := checkSnapshot(season, snap); err != nil {
		return err
	}

	unlock := s.locks.lock(season)
	defer unlock()
	return s.write(ctx, season, snap)
}

func (s *FileStore) Update(ctx context.Context, season int, fn UpdateFunc) (*models.Snapshot, error) {
	unlock := s.locks.lock(season)
	defer unlock()
	return update(ctx, season, s.Load, s.write, fn)
}

func (s *FileStore) write(ctx context.Context, season int, snap *models.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := s.codec.Encode(snap)
	if err != nil {
		return fmt.Errorf("error encoding snapshot %d: %w", season, err)
	}

	tmp, err := os.CreateTemp(s.dir, fmt.Sprintf(".%d-*.tmp", season))
	if err != nil {
		return fmt.Errorf("error creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing snapshot %d: %w", season, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("error syncing snapshot %d: %w", season, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error closing snapshot %d: %w", season, err)
	}

	if err := os.Rename(tmpName, s.Path(season)); err != nil {
		return fmt.Errorf("error replacing snapshot %d: %w", season, err)
	}
	return nil
}

func (s *FileStore) Load(ctx context.Context, season int) (*models.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path(season))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("season %d: %w", season, temperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("error reading snapshot %d: %w", season, err)
	}

	snap, err := s.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("error decoding snapshot %d: %w", season, err)
	}
	return snap, nil
}

func (s *FileStore) Seasons(ctx context.Context) ([]int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("error listing snapshots: %w", err)
	}

	var seasons []int
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), s.codec.Ext()) {
			continue
		}
		season, err := strconv.Atoi(strings.TrimSuffix(e.Name(), s.codec.Ext()))
		if err != nil {
			continue
		}
		seasons = append(seasons, season)
	}
	sort.Ints(seasons)
	return seasons, nil
}

// SeasonFromPath maps a snapshot file name back to its season.
func (s *FileStore) SeasonFromPath(path string) (int, bool) {
	name := filepath.Base(path)
	if !strings.HasSuffix(name, s.codec.Ext()) {
		return 0, false
	}
	season, err := strconv.Atoi(strings.TrimSuffix(name, s.codec.Ext()))
	return season, err == nil
}

func (s *FileStore) Close() error { return nil }
