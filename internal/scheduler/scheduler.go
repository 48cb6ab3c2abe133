package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/todovault/core/internal/domain/entities"
	"github.com/todovault/core/internal/infrastructure/config"
	"github.com/todovault/core/internal/infrastructure/logger"
	"github.com/todovault/core/internal/ports"
)

// Job is a named periodic unit of work with constraint gates. The flex
// window lets a firing happen anywhere in the trailing Flex portion of
// each interval; exact-time firing is never guaranteed.
type Job struct {
	Name        string
	Interval    time.Duration
	Flex        time.Duration
	Constraints entities.JobConstraints
	Policy      entities.JobPolicy
	Fn          func(ctx context.Context) error
}

type registration struct {
	job     Job
	running bool
}

// Scheduler registers named periodic constraint-gated jobs, guaranteeing
// at most one active registration per name and no overlapping firings of
// the same name. Registrations are persisted to the scheduled_jobs table
// so schedule anchors survive restarts; the job function itself lives in
// process memory and must be re-registered at startup.
type Scheduler struct {
	jobs    ports.JobRepository
	host    ports.HostStatus
	log     *logger.Logger
	metrics *metrics

	tick       time.Duration
	runTimeout time.Duration
	now        func() time.Time

	mu  sync.Mutex
	reg map[string]*registration
	wg  sync.WaitGroup
}

// New creates a scheduler. registerer may be nil to disable metrics.
func New(jobs ports.JobRepository, host ports.HostStatus, log *logger.Logger, registerer metricsRegisterer, cfg config.SchedulerConfig) *Scheduler {
	tick := cfg.Tick
	if tick <= 0 {
		tick = time.Second
	}
	runTimeout := cfg.RunTimeout
	if runTimeout <= 0 {
		runTimeout = 5 * time.Minute
	}

	return &Scheduler{
		jobs:       jobs,
		host:       host,
		log:        log.WithComponent("scheduler"),
		metrics:    newMetrics(registerer),
		tick:       tick,
		runTimeout: runTimeout,
		now:        time.Now,
		reg:        make(map[string]*registration),
	}
}

// SchedulePeriodic registers or reconfigures the named job. With policy
// UPDATE an existing registration keeps its schedule anchor and only the
// cadence, constraints and function are merged in; with REPLACE the
// schedule is re-anchored at now+interval.
func (s *Scheduler) SchedulePeriodic(ctx context.Context, job Job) error {
	if job.Name == "" {
		return fmt.Errorf("schedule periodic: job name is required")
	}
	if job.Interval <= 0 {
		return fmt.Errorf("schedule periodic: interval must be positive")
	}
	if job.Fn == nil {
		return fmt.Errorf("schedule periodic: job function is required")
	}

	now := s.now()
	record := &entities.JobRecord{
		Name:            job.Name,
		IntervalSeconds: int64(job.Interval / time.Second),
		FlexSeconds:     int64(job.Flex / time.Second),
		BatteryNotLow:   job.Constraints.BatteryNotLow,
		DeviceIdle:      job.Constraints.DeviceIdle,
		NetworkRequired: job.Constraints.NetworkRequired,
		NextRun:         now.Add(job.Interval),
	}

	existing, err := s.jobs.Get(ctx, job.Name)
	switch {
	case err == nil:
		if job.Policy == entities.JobPolicyUpdate {
			// Preserve the existing schedule anchor.
			record.NextRun = existing.NextRun
		}
		record.LastRun = existing.LastRun
		record.CreatedAt = existing.CreatedAt
	case errors.Is(err, entities.ErrJobNotFound):
		// First registration.
	default:
		return fmt.Errorf("schedule periodic: %w", err)
	}

	if err := s.jobs.Save(ctx, record); err != nil {
		return fmt.Errorf("schedule periodic: %w", err)
	}

	s.mu.Lock()
	if old, ok := s.reg[job.Name]; ok {
		// A running firing finishes under the old configuration; the
		// new one applies from the next firing.
		old.job = job
	} else {
		s.reg[job.Name] = &registration{job: job}
	}
	s.mu.Unlock()

	s.log.Infow("Job scheduled",
		"job", job.Name,
		"interval", job.Interval.String(),
		"flex", job.Flex.String(),
		"policy", string(job.Policy),
	)

	return nil
}

// Cancel deregisters the named job. It is idempotent; an in-flight
// firing completes but no new firing is scheduled.
func (s *Scheduler) Cancel(ctx context.Context, name string) error {
	if err := s.jobs.Delete(ctx, name); err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}

	s.mu.Lock()
	delete(s.reg, name)
	s.mu.Unlock()

	s.log.Infow("Job cancelled", "job", name)
	return nil
}

// Start runs the firing loop until ctx is cancelled. In-flight firings
// are allowed to complete after cancellation.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.tick)
		defer ticker.Stop()

		s.log.Infow("Scheduler started", "tick", s.tick.String())
		for {
			select {
			case <-ctx.Done():
				s.log.Infow("Scheduler stopped")
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

// Wait blocks until the firing loop and all in-flight firings finish.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// sweep fires every registered job whose eligibility window has opened
// and whose constraints hold.
func (s *Scheduler) sweep(ctx context.Context) {
	s.mu.Lock()
	names := make([]string, 0, len(s.reg))
	for name, reg := range s.reg {
		if !reg.running {
			names = append(names, name)
		}
	}
	s.mu.Unlock()

	for _, name := range names {
		s.maybeFire(ctx, name)
	}
}

func (s *Scheduler) maybeFire(ctx context.Context, name string) {
	record, err := s.jobs.Get(ctx, name)
	if err != nil {
		if !errors.Is(err, entities.ErrJobNotFound) {
			s.log.Errorw("Failed to load job record", "job", name, "error", err.Error())
		}
		return
	}

	now := s.now()
	if now.Before(record.NextRun.Add(-record.Flex())) {
		return
	}

	if !s.constraintsMet(record.Constraints()) {
		// Deferral, not failure: the firing waits for the next
		// eligible window.
		s.metrics.deferrals.WithLabelValues(name).Inc()
		return
	}

	s.mu.Lock()
	reg, ok := s.reg[name]
	if !ok || reg.running {
		s.mu.Unlock()
		return
	}
	reg.running = true
	job := reg.job
	s.mu.Unlock()

	s.wg.Add(1)
	go s.fire(name, job, record.Interval())
}

func (s *Scheduler) fire(name string, job Job, interval time.Duration) {
	defer s.wg.Done()

	runID := uuid.New().String()
	started := s.now()
	s.metrics.firings.WithLabelValues(name).Inc()

	runCtx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	err := s.run(runCtx, job)
	cancel()

	finished := s.now()
	s.log.LogJobRun(name, runID, float64(finished.Sub(started).Nanoseconds())/1e6, err)
	if err != nil {
		// The periodic cadence is the retry mechanism; a failed run
		// still advances the schedule.
		s.metrics.failures.WithLabelValues(name).Inc()
	}

	markCtx, cancelMark := context.WithTimeout(context.Background(), 10*time.Second)
	if markErr := s.jobs.MarkRun(markCtx, name, finished, finished.Add(interval)); markErr != nil && !errors.Is(markErr, entities.ErrJobNotFound) {
		s.log.Errorw("Failed to persist job run", "job", name, "error", markErr.Error())
	}
	cancelMark()

	s.mu.Lock()
	if reg, ok := s.reg[name]; ok {
		reg.running = false
	}
	s.mu.Unlock()
}

// run executes the job body, converting panics into failed runs so a
// misbehaving job cannot take down the scheduler.
func (s *Scheduler) run(ctx context.Context, job Job) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job panic: %v", p)
		}
	}()
	return job.Fn(ctx)
}

func (s *Scheduler) constraintsMet(c entities.JobConstraints) bool {
	if c.BatteryNotLow && !s.host.BatteryNotLow() {
		return false
	}
	if c.DeviceIdle && !s.host.DeviceIdle() {
		return false
	}
	if c.NetworkRequired && !s.host.NetworkAvailable() {
		return false
	}
	return true
}
