package scheduler

import (
	"context"
	"fmt"
	"realestate-platform/internal/logger"
	"realestate-platform/internal/metrics"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// JobFunc is one unit of background work
type JobFunc func(ctx context.Context) error

type job struct {
	name string
	spec string
	fn   JobFunc
}

// Scheduler runs named jobs on cron specifications
type Scheduler struct {
	cron      *cron.Cron
	metrics   *metrics.Metrics
	timeout   time.Duration
	log       *zap.Logger
	mu        sync.Mutex
	jobs      map[string]job
	isRunning bool
}

// NewScheduler creates a new scheduler. Jobs run in loc; each run gets timeout.
func NewScheduler(loc *time.Location, timeout time.Duration, m *metrics.Metrics) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		metrics: m,
		timeout: timeout,
		log:     logger.GetLogger().Named("scheduler"),
		jobs:    make(map[string]job),
	}
}

// Add registers a job. An empty spec disables it.
func (s *Scheduler) Add(name, spec string, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}
	j := job{name: name, spec: spec, fn: fn}
	if spec != "" {
		if _, err := s.cron.AddFunc(spec, func() { _ = s.run(j) }); err != nil {
			return fmt.Errorf("job %q: invalid cron spec %q: %w", name, spec, err)
		}
	}
	s.jobs[name] = j
	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return
	}
	s.cron.Start()
	s.isRunning = true

	for _, e := range s.cron.Entries() {
		s.log.Info("job scheduled", zap.Time("next_run", e.Next))
	}
	s.log.Info("scheduler started", zap.Int("jobs", len(s.jobs)))
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return
	}
	<-s.cron.Stop().Done()
	s.isRunning = false
	s.log.Info("scheduler stopped")
}

// RunNow immediately executes a registered job (manual trigger)
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return s.run(j)
}

// Jobs lists registered job names with their specs
func (s *Scheduler) Jobs() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.jobs))
	for name, j := range s.jobs {
		out[name] = j.spec
	}
	return out
}

func (s *Scheduler) run(j job) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	log := s.log.With(zap.String("job", j.name))
	ctx = logger.WithContext(ctx, log)

	start := time.Now()
	err := j.fn(ctx)
	s.metrics.JobRun(j.name, err)

	if err != nil {
		log.Error("job failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return err
	}
	log.Info("job completed", zap.Duration("elapsed", time.Since(start)))
	return nil
}
