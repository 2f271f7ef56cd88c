package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"racebot-stats/aggregator"
	"racebot-stats/ergast"
	"racebot-stats/models"
	"racebot-stats/storage"
	"racebot-stats/temperrors"
)

type f1Source interface {
	GetSeason(ctx context.Context, season, round int) (*ergast.Batch, error)
	GetDriverStandings(ctx context.Context, season int) ([]ergast.DriverStandingsItem, error)
	GetConstructorStandings(ctx context.Context, season int) ([]ergast.ConstructorStandingsItem, error)
}

type ServiceF1 struct {
	source f1Source
	store  storage.Store
	log    *slog.Logger
}

func NewServiceF1(source f1Source, store storage.Store, log *slog.Logger) *ServiceF1 {
	if log == nil {
		log = slog.Default()
	}
	return &ServiceF1{source: source, store: store, log: log.With(slog.String("component", "service"))}
}

// SyncResult is what one season fetch stored.
type SyncResult struct {
	Snapshot *models.Snapshot
	Invalid  []*temperrors.ValidationError
}

// Sync fetches a season (round 0) or a single round and stores it. A round is
// merged into the stored snapshot. When the fetch fails nothing is written.
func (s *ServiceF1) Sync(ctx context.Context, season, round int) (*SyncResult, error) {
	batch, err := s.source.GetSeason(ctx, season, round)
	if err != nil {
		s.log.Error("Fetch failed, snapshot left as is", slog.Int("season", season), slog.Int("round", round), slog.Any("error", err))
		return nil, fmt.Errorf("in sync %d: %w", season, err)
	}

	snap := models.NewSnapshot(season, batch.ExpectedRounds, batch.Races)
	if round > 0 {
		snap, err = s.store.Update(ctx, season, func(prev *models.Snapshot) (*models.Snapshot, error) {
			if prev == nil {
				return snap, nil
			}
			merged := models.NewSnapshot(season, batch.ExpectedRounds, prev.Races)
			merged.Merge(batch.Races)
			return merged, nil
		})
		if err != nil {
			return nil, fmt.Errorf("in sync %d: %w", season, err)
		}
	} else if err := s.store.Save(ctx, season, snap); err != nil {
		return nil, fmt.Errorf("in sync %d: %w", season, err)
	}

	s.log.Info("Snapshot stored",
		slog.Int("season", season),
		slog.String("snapshot", snap.ID),
		slog.Int("races", len(snap.Races)),
		slog.Int("expected", snap.ExpectedRounds),
		slog.Int("invalid", len(batch.Invalid)))

	return &SyncResult{Snapshot: snap, Invalid: batch.Invalid}, nil
}

// SyncSeasons fetches whole seasons on a bounded pool of workers. Each
// season succeeds or fails on its own; the map holds nil for stored seasons.
func (s *ServiceF1) SyncSeasons(ctx context.Context, seasons []int, workers int) map[int]error {
	if workers < 1 {
		workers = 1
	}

	results := make(map[int]error, len(seasons))
	var mu sync.Mutex
	record := func(season int, err error) {
		mu.Lock()
		results[season] = err
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for _, season := range seasons {
		if err := ctx.Err(); err != nil {
			record(season, err)
			continue
		}
		g.Go(func() error {
			_, err := s.Sync(ctx, season, 0)
			record(season, err)
			return nil
		})
	}
	g.Wait()

	return results
}

func (s *ServiceF1) Seasons(ctx context.Context) ([]int, error) {
	return s.store.Seasons(ctx)
}

func (s *ServiceF1) Snapshot(ctx context.Context, season int) (*models.Snapshot, error) {
	return s.store.Load(ctx, season)
}

func (s *ServiceF1) Report(ctx context.Context, season int) (*aggregator.Report, error) {
	snap, err := s.store.Load(ctx, season)
	if err != nil {
		return nil, err
	}
	report := aggregator.Build(snap)
	if err := report.PartialErr(); err != nil {
		s.log.Warn("Partial season", slog.Int("season", season), slog.String("warning", err.Error()))
	}
	return report, nil
}

// Mismatch is a row where computed standings disagree with the official table.
type Mismatch struct {
	Table    string
	ID       string
	Computed float64
	Official float64
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s %s: computed %g, official %g", m.Table, m.ID, m.Computed, m.Official)
}

// Verify compares the stored season with the standings the API publishes.
// Differences are expected for partial snapshots or dropped records.
func (s *ServiceF1) Verify(ctx context.Context, season int) ([]Mismatch, error) {
	report, err := s.Report(ctx, season)
	if err != nil {
		return nil, err
	}

	officialDrivers, err := s.source.GetDriverStandings(ctx, season)
	if err != nil && !ergast.IsEmpty(err) {
		return nil, fmt.Errorf("in verify %d: %w", season, err)
	}
	officialTeams, err := s.source.GetConstructorStandings(ctx, season)
	if err != nil && !ergast.IsEmpty(err) {
		return nil, fmt.Errorf("in verify %d: %w", season, err)
	}

	computed := make(map[string]float64)
	for _, d := range report.Drivers {
		computed[d.Driver.ID] = d.Points
	}
	official := make(map[string]float64)
	for _, d := range officialDrivers {
		official[d.Driver.DriverId] = parsePoints(d.Points)
	}
	mismatches := diff("driver", computed, official)

	computed = make(map[string]float64)
	for _, t := range report.Teams {
		computed[t.Constructor.ID] = t.Points
	}
	official = make(map[string]float64)
	for _, t := range officialTeams {
		official[t.Constructor.ConstructorId] = parsePoints(t.Points)
	}
	mismatches = append(mismatches, diff("team", computed, official)...)

	s.log.Info("Season verified", slog.Int("season", season), slog.Int("mismatches", len(mismatches)))
	return mismatches, nil
}

func diff(table string, computed, official map[string]float64) []Mismatch {
	ids := make(map[string]struct{}, len(computed))
	for id := range computed {
		ids[id] = struct{}{}
	}
	for id := range official {
		ids[id] = struct{}{}
	}

	var out []Mismatch
	for id := range ids {
		if computed[id] != official[id] {
			out = append(out, Mismatch{Table: table, ID: id, Computed: computed[id], Official: official[id]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func parsePoints(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
