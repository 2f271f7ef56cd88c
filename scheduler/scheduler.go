package scheduler

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Job is a unit of background work run on a cron schedule.
type Job interface {
	Run(ctx context.Context) error
	Name() string
}

// Scheduler manages background jobs. A job still running when its next tick
// comes is skipped for that tick.
type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger
	ctx  context.Context
}

func New(ctx context.Context, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "scheduler"))
	clog := cronLogger{log}

	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(clog),
			cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
		),
		log: log,
		ctx: ctx,
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("Scheduler started")
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("Scheduler stopped")
}

// AddJob registers a job. Schedule takes the standard five cron fields or a
// descriptor such as "@hourly" or "@every 6h".
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.log.Debug("Running job", slog.String("job", job.Name()))

		if err := job.Run(s.ctx); err != nil {
			s.log.Error("Job failed", slog.String("job", job.Name()), slog.Any("error", err))
		} else {
			s.log.Debug("Job completed", slog.String("job", job.Name()))
		}
	})
	if err != nil {
		return err
	}

	s.log.Info("Job registered", slog.String("schedule", schedule), slog.String("job", job.Name()))
	return nil
}

// RunNow executes a job immediately, outside its schedule.
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info("Running job immediately", slog.String("job", job.Name()))
	return job.Run(s.ctx)
}

// Entries is the number of registered jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
