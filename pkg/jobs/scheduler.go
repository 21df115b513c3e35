package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Job represents a delayed one-shot task tied to a change request.
type Job struct {
	ID        string
	Type      string
	RequestID int64
	Enqueued  time.Time
	RunAt     time.Time
}

// Handler processes a job when its delay elapses.
type Handler func(context.Context, Job)

// SchedulerConfig configures worker behaviour.
type SchedulerConfig struct {
	Workers    int
	BufferSize int
	Logger     *zap.Logger
}

// Scheduler dispatches delayed jobs to registered handlers. Jobs fire once
// and are never retried or cancelled early; handlers are expected to no-op
// when the state they would act on has already moved past them.
type Scheduler struct {
	workers    int
	bufferSize int
	logger     *zap.Logger

	handlers map[string]Handler

	jobs    chan Job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	timers  sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewScheduler builds a scheduler with the provided defaults.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Scheduler{
		workers:    cfg.Workers,
		bufferSize: cfg.BufferSize,
		logger:     cfg.Logger,
		handlers:   make(map[string]Handler),
		jobs:       make(chan Job, cfg.BufferSize),
	}
}

// Register binds a handler to a job type. Must be called before Start.
func (s *Scheduler) Register(jobType string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[jobType] = h
}

// Start begins worker consumption. Safe to call once.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	s.started = true
	s.logger.Sugar().Infow("scheduler started", "workers", s.workers)
}

// Stop cancels pending timers and workers and waits for them to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.mu.Unlock()
	s.timers.Wait()
	s.wg.Wait()
	s.logger.Sugar().Infow("scheduler stopped")
}

// EnqueueAfter arms a one-shot timer that dispatches the job once the delay
// elapses. A zero or negative delay dispatches immediately.
func (s *Scheduler) EnqueueAfter(job Job, delay time.Duration) error {
	s.mu.Lock()
	ctx := s.ctx
	started := s.started
	s.mu.Unlock()

	if !started {
		return fmt.Errorf("scheduler not started")
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	job.Enqueued = now
	job.RunAt = now.Add(delay)

	if delay <= 0 {
		return s.dispatch(ctx, job)
	}

	s.timers.Add(1)
	go func() {
		defer s.timers.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			if err := s.dispatch(ctx, job); err != nil {
				s.logger.Sugar().Errorw("failed to dispatch job",
					"job_id", job.ID, "type", job.Type, "request_id", job.RequestID, "error", err)
			}
		}
	}()
	return nil
}

func (s *Scheduler) dispatch(ctx context.Context, job Job) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("scheduler stopped: %w", ctx.Err())
	case s.jobs <- job:
		return nil
	}
}

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case job := <-s.jobs:
			s.mu.Lock()
			h, ok := s.handlers[job.Type]
			s.mu.Unlock()
			if !ok {
				s.logger.Sugar().Warnw("no handler for job type", "type", job.Type, "job_id", job.ID)
				continue
			}
			h(s.ctx, job)
		}
	}
}
