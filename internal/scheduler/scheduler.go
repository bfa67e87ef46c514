package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"QuietSpike/pkg/cache"
	"QuietSpike/pkg/logger"
)

// Task is one scheduled unit of work.
type Task func(ctx context.Context) error

// Scheduler runs named tasks on cron specs with a seconds field. When a
// lock service is set, a task runs on at most one instance at a time.
type Scheduler struct {
	cron    *cron.Cron
	lock    cache.Service
	lockTTL time.Duration
	log     *logger.Logger
	ctx     context.Context

	mu    sync.Mutex
	tasks map[string]Task
}

// New builds a scheduler in the given IANA timezone. lock may be nil.
func New(ctx context.Context, timezone string, lock cache.Service, log *logger.Logger) (*Scheduler, error) {
	loc := time.UTC
	if timezone != "" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
		}
		loc = l
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds(), cron.WithLocation(loc)),
		lock:    lock,
		lockTTL: 2 * time.Hour,
		log:     log,
		ctx:     ctx,
		tasks:   make(map[string]Task),
	}, nil
}

// Register adds task under name on spec.
func (s *Scheduler) Register(name, spec string, task Task) error {
	s.mu.Lock()
	if _, ok := s.tasks[name]; ok {
		s.mu.Unlock()
		return fmt.Errorf("task %q already registered", name)
	}
	s.tasks[name] = task
	s.mu.Unlock()

	if _, err := s.cron.AddFunc(spec, func() { _ = s.run(name, task) }); err != nil {
		s.mu.Lock()
		delete(s.tasks, name)
		s.mu.Unlock()
		return fmt.Errorf("register %s task: %w", name, err)
	}
	return nil
}

// RunNow executes a registered task immediately.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	task, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown task %q", name)
	}
	return s.run(name, task)
}

// Start starts the cron loop.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", logger.Int("tasks", len(s.cron.Entries())))
}

// Stop stops the cron loop and waits for running tasks up to ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) run(name string, task Task) error {
	if s.ctx.Err() != nil {
		return s.ctx.Err()
	}
	if s.lock != nil {
		key := cache.GenerateKey("lock", "task", name)
		ok, err := s.lock.TryLock(s.ctx, key, s.lockTTL)
		if err != nil {
			s.log.Warn("task lock unavailable, running anyway", logger.String("task", name), logger.Error(err))
		} else if !ok {
			s.log.Info("task already running elsewhere", logger.String("task", name))
			return nil
		} else {
			defer func() { _ = s.lock.Unlock(context.WithoutCancel(s.ctx), key) }()
		}
	}

	start := time.Now()
	s.log.Info("task started", logger.String("task", name))
	if err := task(s.ctx); err != nil {
		s.log.Error("task failed", logger.String("task", name), logger.Duration("took", time.Since(start)), logger.Error(err))
		return err
	}
	s.log.Info("task finished", logger.String("task", name), logger.Duration("took", time.Since(start)))
	return nil
}
