// Package scheduler runs named maintenance jobs on fixed schedules inside the
// serving process. Jobs of one scheduler run concurrently with each other but
// a single job never overlaps itself.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dmitrymomot/authcore/pkg/logger"
)

// Job is one unit of periodic work.
type Job func(ctx context.Context) error

type job struct {
	name     string
	schedule Schedule
	fn       Job
}

// Scheduler owns a set of jobs.
type Scheduler struct {
	mu      sync.Mutex
	jobs    map[string]*job
	running bool

	timeout time.Duration
	now     func() time.Time
	log     *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithJobTimeout bounds each job run. Zero means no bound.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d >= 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger used for run reports.
func WithLogger(log *slog.Logger) Option {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides time.Now when computing next runs.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns an empty scheduler with a one minute job timeout.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		jobs:    make(map[string]*job),
		timeout: time.Minute,
		now:     time.Now,
		log:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers fn under name. Jobs cannot be added while running.
func (s *Scheduler) Add(name string, schedule Schedule, fn Job) error {
	if name == "" || schedule == nil || fn == nil {
		return ErrInvalidJob
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, name)
	}
	s.jobs[name] = &job{name: name, schedule: schedule, fn: fn}
	return nil
}

// Jobs lists registered job names in sorted order.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// RunNow executes the named job once, synchronously.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.execute(ctx, j)
}

// Start runs every job on its schedule and blocks until ctx is cancelled
// and in-flight runs have returned.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	jobs := make([]*job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.log.InfoContext(ctx, "scheduler started", logger.Component("scheduler"), logger.Count(len(jobs)))

	var wg sync.WaitGroup
	for _, j := range jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.loop(ctx, j)
		}()
	}
	wg.Wait()

	s.log.InfoContext(context.WithoutCancel(ctx), "scheduler stopped", logger.Component("scheduler"))
	return nil
}

// Run adapts Start for errgroup.
func (s *Scheduler) Run(ctx context.Context) func() error {
	return func() error { return s.Start(ctx) }
}

func (s *Scheduler) loop(ctx context.Context, j *job) {
	for {
		now := s.now()
		timer := time.NewTimer(j.schedule.Next(now).Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		_ = s.execute(ctx, j)
	}
}

func (s *Scheduler) execute(ctx context.Context, j *job) (err error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
		}
		if err != nil {
			s.log.ErrorContext(ctx, "scheduled job failed",
				logger.Component("scheduler"),
				slog.String("job", j.name),
				logger.Error(err),
			)
			return
		}
		s.log.DebugContext(ctx, "scheduled job finished",
			logger.Component("scheduler"),
			slog.String("job", j.name),
			slog.Duration("took", time.Since(start)),
		)
	}()

	return j.fn(ctx)
}
