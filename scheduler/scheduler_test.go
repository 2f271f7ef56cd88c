package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSyncer struct {
	mu      sync.Mutex
	seasons []int
	workers int
	fail    map[int]error
}

func (f *fakeSyncer) SyncSeasons(ctx context.Context, seasons []int, workers int) map[int]error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seasons = append(f.seasons, seasons...)
	f.workers = workers

	out := make(map[int]error, len(seasons))
	for _, s := range seasons {
		out[s] = f.fail[s]
	}
	return out
}

type countingJob struct {
	mu   sync.Mutex
	runs int
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runs++
	return nil
}

func (j *countingJob) count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.runs
}

func TestAddJobRejectsBadSchedule(t *testing.T) {
	s := New(context.Background(), nil)

	assert.Error(t, s.AddJob("every now and then", &countingJob{}))
	assert.NoError(t, s.AddJob("@every 6h", &countingJob{}))
	assert.NoError(t, s.AddJob("0 */2 * * *", &countingJob{}))
	assert.Equal(t, 2, s.Entries())
}

func TestSchedulerRunsJob(t *testing.T) {
	s := New(context.Background(), nil)
	job := &countingJob{}
	require.NoError(t, s.AddJob("@every 1s", job))

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return job.count() > 0 }, 3*time.Second, 50*time.Millisecond)
}

func TestRunNow(t *testing.T) {
	s := New(context.Background(), nil)
	job := &countingJob{}

	require.NoError(t, s.RunNow(job))
	assert.Equal(t, 1, job.count())
}

func TestRefreshJob(t *testing.T) {
	syncer := &fakeSyncer{fail: map[int]error{2023: errors.New("network down")}}
	var synced []int

	job := NewRefreshJob(RefreshConfig{
		Service:  syncer,
		Seasons:  []int{2021, 2022, 2023},
		Workers:  2,
		OnSynced: func(season int) { synced = append(synced, season) },
	})

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "season 2023: network down")
	assert.Equal(t, []int{2021, 2022}, synced)
	assert.Equal(t, 2, syncer.workers)
}

func TestRefreshJobDefaultsToCurrentYear(t *testing.T) {
	syncer := &fakeSyncer{}
	job := NewRefreshJob(RefreshConfig{
		Service: syncer,
		Workers: 1,
		Now:     func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) },
	})

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []int{2024}, syncer.seasons)
	assert.Equal(t, "refresh", job.Name())
}
