// Package scheduler runs the periodic jobs: event expiry and the streak and
// tenure bonuses.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"divan_bot/internal/logger"
	"divan_bot/internal/metrics"
	"divan_bot/internal/service"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	redis "github.com/redis/go-redis/v9"
)

const (
	JobEventSweep   = "event_sweep"
	JobWeeklyStreak = "weekly_streak"
	JobTenureBonus  = "tenure_bonus"
)

type Options struct {
	Location   *time.Location
	EventSweep time.Duration
	// Redis enables the distributed job lock when set.
	Redis   *redis.Client
	LockTTL time.Duration
	Timeout time.Duration
	Clock   clockwork.Clock
}

type Scheduler struct {
	sched   gocron.Scheduler
	events  *service.EventMultiplier
	bonus   *service.BonusService
	timeout time.Duration
	log     *slog.Logger
}

func New(svc *service.Services, opts Options) (*Scheduler, error) {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.EventSweep <= 0 {
		opts.EventSweep = time.Hour
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 5 * time.Minute
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}

	schedOpts := []gocron.SchedulerOption{gocron.WithLocation(opts.Location)}
	if opts.Clock != nil {
		schedOpts = append(schedOpts, gocron.WithClock(opts.Clock))
	}
	if opts.Redis != nil {
		schedOpts = append(schedOpts, gocron.WithDistributedLocker(newRedisLocker(opts.Redis, opts.LockTTL)))
	}

	sched, err := gocron.NewScheduler(schedOpts...)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		sched:   sched,
		events:  svc.Events,
		bonus:   svc.Bonus,
		timeout: opts.Timeout,
		log:     logger.With("component", "scheduler"),
	}

	jobs := []struct {
		name string
		def  gocron.JobDefinition
		run  func(ctx context.Context) error
	}{
		{JobEventSweep, gocron.DurationJob(opts.EventSweep), s.sweepEvents},
		{
			JobWeeklyStreak,
			gocron.WeeklyJob(1, gocron.NewWeekdays(time.Monday), gocron.NewAtTimes(gocron.NewAtTime(0, 5, 0))),
			s.weeklyStreaks,
		},
		{
			JobTenureBonus,
			gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 10, 0))),
			s.tenureBonuses,
		},
	}
	for _, j := range jobs {
		if _, err := sched.NewJob(j.def, gocron.NewTask(s.wrap(j.name, j.run)),
			gocron.WithName(j.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			_ = sched.Shutdown()
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) wrap(name string, run func(ctx context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		start := time.Now()
		if err := run(ctx); err != nil {
			metrics.JobRuns.WithLabelValues(name, "error").Inc()
			s.log.Error("job failed", "job", name, "error", err)
			return
		}
		metrics.JobRuns.WithLabelValues(name, "ok").Inc()
		s.log.Debug("job done", "job", name, "took", time.Since(start))
	}
}

func (s *Scheduler) sweepEvents(ctx context.Context) error {
	n, err := s.events.SweepExpired(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		s.log.Info("expired events deactivated", "count", n)
	}
	return nil
}

func (s *Scheduler) weeklyStreaks(ctx context.Context) error {
	report, err := s.bonus.AwardWeeklyStreaks(ctx)
	if err != nil {
		return err
	}
	s.log.Info("weekly streak bonuses paid", "users", report.Users, "points", report.Points)
	return nil
}

func (s *Scheduler) tenureBonuses(ctx context.Context) error {
	report, err := s.bonus.AwardTenureBonuses(ctx)
	if err != nil {
		return err
	}
	if report.Users > 0 {
		s.log.Info("tenure bonuses paid", "users", report.Users, "points", report.Points)
	}
	return nil
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.sched.Start()
	s.log.Info("scheduler started", "jobs", len(s.sched.Jobs()))
}

// RunNow triggers a job by name outside its schedule.
func (s *Scheduler) RunNow(name string) bool {
	for _, j := range s.sched.Jobs() {
		if j.Name() == name {
			return j.RunNow() == nil
		}
	}
	return false
}

// Shutdown stops the scheduler and waits for running jobs.
func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}
