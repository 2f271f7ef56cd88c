package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

type seasonSyncer interface {
	SyncSeasons(ctx context.Context, seasons []int, workers int) map[int]error
}

// RefreshConfig holds configuration for the refresh job.
type RefreshConfig struct {
	Service seasonSyncer
	Seasons []int
	Workers int
	// OnSynced is called for every season that was stored successfully.
	OnSynced func(season int)
	Log      *slog.Logger
	Now      func() time.Time
}

// RefreshJob re-fetches the configured seasons. With no seasons configured it
// refreshes the current year.
type RefreshJob struct {
	svc      seasonSyncer
	seasons  []int
	workers  int
	onSynced func(season int)
	log      *slog.Logger
	now      func() time.Time
}

func NewRefreshJob(cfg RefreshConfig) *RefreshJob {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &RefreshJob{
		svc:      cfg.Service,
		seasons:  cfg.Seasons,
		workers:  cfg.Workers,
		onSynced: cfg.OnSynced,
		log:      log.With(slog.String("job", "refresh")),
		now:      now,
	}
}

func (j *RefreshJob) Name() string {
	return "refresh"
}

func (j *RefreshJob) Run(ctx context.Context) error {
	seasons := j.seasons
	if len(seasons) == 0 {
		seasons = []int{j.now().Year()}
	}

	start := j.now()
	results := j.svc.SyncSeasons(ctx, seasons, j.workers)

	keys := make([]int, 0, len(results))
	for season := range results {
		keys = append(keys, season)
	}
	sort.Ints(keys)

	var errs []error
	for _, season := range keys {
		if err := results[season]; err != nil {
			errs = append(errs, fmt.Errorf("season %d: %w", season, err))
			continue
		}
		if j.onSynced != nil {
			j.onSynced(season)
		}
	}

	j.log.Info("Refresh finished",
		slog.Int("seasons", len(seasons)),
		slog.Int("failed", len(errs)),
		slog.Duration("duration", j.now().Sub(start)))

	return errors.Join(errs...)
}
