// Package scheduler runs the background jobs: warming the semester usage
// windows into the response cache and sweeping expired in-memory entries.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/client"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/config"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/pkg/logger"
)

// Job names.
const (
	JobWarm  = "cache_warm"
	JobSweep = "cache_sweep"
)

// Warmer loads slow, stable upstream windows into the cache.
type Warmer interface {
	Warm(ctx context.Context) error
}

// Sweeper drops expired cache entries.
type Sweeper interface {
	Sweep() int
}

// Service owns the cron engine and the registered jobs.
type Service struct {
	cfg  config.SchedulerConfig
	opts options

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID
	running bool
}

// NewService creates a scheduler. Jobs whose dependency was not supplied
// through an option are not registered.
func NewService(cfg *config.SchedulerConfig, opts ...Option) *Service {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	c := o.Cron
	if c == nil {
		c = cron.New(
			cron.WithParser(o.Parser),
			cron.WithLocation(o.Location),
			cron.WithChain(cron.Recover(cron.PrintfLogger(o.Logger)), cron.SkipIfStillRunning(cron.PrintfLogger(o.Logger))),
		)
	}

	return &Service{
		cfg:     *cfg,
		opts:    o,
		cron:    c,
		entries: make(map[string]cron.EntryID),
	}
}

// Start registers the jobs and starts the cron engine. It is a no-op when the
// scheduler is disabled.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.Enabled {
		s.opts.Logger.Info("Scheduler disabled")
		return nil
	}
	if s.running {
		return errors.New("scheduler already running")
	}

	if s.opts.Warmer != nil && s.opts.Broker != nil {
		if err := s.register(JobWarm, s.cfg.WarmSchedule, func(ctx context.Context) error {
			return s.RunWarm(ctx)
		}); err != nil {
			return err
		}
	}
	if s.opts.Sweeper != nil {
		if err := s.register(JobSweep, s.cfg.SweepSchedule, func(context.Context) error {
			s.RunSweep()
			return nil
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.running = true
	s.opts.Logger.WithField("jobs", len(s.entries)).Info("Scheduler started")
	return nil
}

// Stop stops the cron engine and waits for running jobs until ctx is done.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	select {
	case <-s.cron.Stop().Done():
		s.opts.Logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Jobs returns the registered job names with their next run.
func (s *Service) Jobs() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make(map[string]time.Time, len(s.entries))
	for name, id := range s.entries {
		jobs[name] = s.cron.Entry(id).Next
	}
	return jobs
}

// register must be called with s.mu held.
func (s *Service) register(name, spec string, run func(ctx context.Context) error) error {
	schedule, err := s.opts.Parser.Parse(spec)
	if err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", spec, name, err)
	}

	id := s.cron.Schedule(schedule, cron.FuncJob(func() {
		s.execute(name, run)
	}))
	s.entries[name] = id
	s.opts.Logger.WithFields(logrus.Fields{"job": name, "schedule": spec}).Debug("Scheduled job")
	return nil
}

func (s *Service) execute(name string, run func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.JobTimeout)
	defer cancel()
	ctx = logger.SetCorrelationID(ctx, uuid.NewString())

	start := time.Now()
	log := logger.WithCorrelationID(ctx, s.opts.Logger).WithField("job", name)
	if err := run(ctx); err != nil {
		log.WithError(err).WithField("duration", time.Since(start).String()).Error("Scheduled job failed")
		return
	}
	log.WithField("duration", time.Since(start).String()).Info("Scheduled job completed")
}

// RunWarm obtains the shared tool usage credential and warms the cache with it.
func (s *Service) RunWarm(ctx context.Context) error {
	if s.opts.Warmer == nil || s.opts.Broker == nil {
		return errors.New("cache warm-up is not configured")
	}

	credential, err := s.opts.Broker.GetCredential(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to obtain %s credential: %w", s.opts.Broker.System(), err)
	}

	ctx = client.WithSession(ctx, client.NewSession(s.opts.Broker, credential))
	return s.opts.Warmer.Warm(ctx)
}

// RunSweep drops expired cache entries and returns how many were removed.
func (s *Service) RunSweep() int {
	if s.opts.Sweeper == nil {
		return 0
	}
	return s.opts.Sweeper.Sweep()
}
