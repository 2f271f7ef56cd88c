package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"racebot-stats/models"
	"racebot-stats/temperrors"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
	season          INTEGER PRIMARY KEY,
	id              TEXT    NOT NULL,
	fetched_at      INTEGER NOT NULL,
	expected_rounds INTEGER NOT NULL,
	payload         BLOB    NOT NULL
);

CREATE TABLE IF NOT EXISTS results (
	season         INTEGER NOT NULL,
	round          INTEGER NOT NULL,
	session        TEXT    NOT NULL,
	position       INTEGER NOT NULL,
	position_text  TEXT    NOT NULL,
	driver_id      TEXT    NOT NULL,
	driver_code    TEXT    NOT NULL,
	constructor_id TEXT    NOT NULL,
	grid           INTEGER NOT NULL,
	points         REAL    NOT NULL,
	status         TEXT    NOT NULL,
	PRIMARY KEY (season, round, session, position)
);
`

// SQLiteStore keeps the snapshot payload as a JSON blob and mirrors the
// results into a flat table the dashboard can query directly. Both are
// replaced in one transaction.
type SQLiteStore struct {
	db    *sql.DB
	codec Codec
	locks seasonLocks
}

func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if !strings.HasPrefix(path, "file:") && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("error creating database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer; sqlite serializes anyway and :memory: is per connection
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db, codec: JSONCodec{}}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, season int, snap *models.Snapshot) error {
	if err := checkSnapshot(season, snap); err != nil {
		return err
	}

	unlock := s.locks.lock(season)
	defer unlock()
	return s.write(ctx, season, snap)
}

func (s *SQLiteStore) Update(ctx context.Context, season int, fn UpdateFunc) (*models.Snapshot, error) {
	unlock := s.locks.lock(season)
	defer unlock()
	return update(ctx, season, s.Load, s.write, fn)
}

func (s *SQLiteStore) write(ctx context.Context, season int, snap *models.Snapshot) error {
	payload, err := s.codec.Encode(snap)
	if err != nil {
		return fmt.Errorf("error encoding snapshot %d: %w", season, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (season, id, fetched_at, expected_rounds, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(season) DO UPDATE SET
			id = excluded.id,
			fetched_at = excluded.fetched_at,
			expected_rounds = excluded.expected_rounds,
			payload = excluded.payload`,
		season, snap.ID, snap.FetchedAt.Unix(), snap.ExpectedRounds, payload)
	if err != nil {
		return fmt.Errorf("failed to write snapshot %d: %w", season, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM results WHERE season = ?`, season); err != nil {
		return fmt.Errorf("failed to clear results %d: %w", season, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO results (season, round, session, position, position_text, driver_id, driver_code, constructor_id, grid, points, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare results insert: %w", err)
	}
	defer stmt.Close()

	for _, race := range snap.Races {
		for _, r := range race.AllResults() {
			_, err := stmt.ExecContext(ctx, season, race.Round, string(r.Session), r.Position, r.PositionText,
				r.Driver.ID, r.Driver.Code, r.Constructor.ID, r.Grid, r.Points, r.Status)
			if err != nil {
				return fmt.Errorf("failed to write result %d/%d: %w", season, race.Round, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot %d: %w", season, err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, season int) (*models.Snapshot, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM snapshots WHERE season = ?`, season).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("season %d: %w", season, temperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %d: %w", season, err)
	}

	snap, err := s.codec.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("error decoding snapshot %d: %w", season, err)
	}
	return snap, nil
}

func (s *SQLiteStore) Seasons(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT season FROM snapshots ORDER BY season`)
	if err != nil {
		return nil, fmt.Errorf("failed to list seasons: %w", err)
	}
	defer rows.Close()

	var seasons []int
	for rows.Next() {
		var season int
		if err := rows.Scan(&season); err != nil {
			return nil, err
		}
		seasons = append(seasons, season)
	}
	return seasons, rows.Err()
}

// ResultCount returns how many result rows are mirrored for a season.
func (s *SQLiteStore) ResultCount(ctx context.Context, season int) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM results WHERE season = ?`, season).Scan(&n)
	return n, err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
