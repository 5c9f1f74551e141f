package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/dwloader/internal/domain"
	"github.com/shaiso/dwloader/internal/orchestrator"
)

// DefaultTickInterval — период проверки расписания.
const DefaultTickInterval = time.Second

// Runner выполняет один запуск конвейера.
type Runner interface {
	Run(ctx context.Context, opts orchestrator.Options) (*orchestrator.Result, error)
}

// Config — конфигурация Scheduler.
type Config struct {
	Runner   Runner
	Cron     string
	Timezone string // default: UTC

	// Options — параметры каждого запуска.
	Options orchestrator.Options

	Logger *slog.Logger

	// Now — текущее время (default: time.Now).
	Now func() time.Time
}

// Status — состояние планировщика для /healthz.
type Status struct {
	Cron       string           `json:"cron"`
	NextDue    time.Time        `json:"next_due"`
	Running    bool             `json:"running"`
	Runs       int              `json:"runs"`
	LastRunID  string           `json:"last_run_id,omitempty"`
	LastStatus domain.RunStatus `json:"last_status,omitempty"`
	LastError  string           `json:"last_error,omitempty"`
	LastAt     *time.Time       `json:"last_at,omitempty"`
}

// Scheduler — планировщик запусков.
type Scheduler struct {
	runner   Runner
	expr     string
	schedule cron.Schedule
	loc      *time.Location
	opts     orchestrator.Options
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	status Status
}

// New создаёт Scheduler и вычисляет первое время запуска.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Runner == nil {
		return nil, fmt.Errorf("scheduler: runner is required")
	}

	schedule, loc, err := parse(cfg.Cron, cfg.Timezone)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := &Scheduler{
		runner:   cfg.Runner,
		expr:     cfg.Cron,
		schedule: schedule,
		loc:      loc,
		opts:     cfg.Options,
		logger:   logger,
		now:      now,
	}
	s.status = Status{Cron: cfg.Cron, NextDue: s.next(now())}
	return s, nil
}

// Confirmer возвращает решение для запусков без оператора.
func Confirmer(force bool) orchestrator.Confirmer {
	if force {
		return orchestrator.AlwaysConfirm
	}
	return orchestrator.NeverConfirm
}

func (s *Scheduler) next(from time.Time) time.Time {
	return s.schedule.Next(from.In(s.loc)).UTC()
}

// Status возвращает копию текущего состояния.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Trigger переносит следующий запуск на ближайший тик.
// Возвращает false, если запуск уже выполняется.
func (s *Scheduler) Trigger() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Running {
		return false
	}
	s.status.NextDue = s.now().UTC()
	s.logger.Info("run triggered manually")
	return true
}

// Tick выполняет запуск, если наступило время.
// Возвращает true, если запуск был выполнен. Ошибка запуска не прерывает планировщик.
func (s *Scheduler) Tick(ctx context.Context) bool {
	now := s.now()

	s.mu.Lock()
	due := s.status.NextDue
	s.mu.Unlock()

	if now.Before(due) {
		return false
	}

	s.mu.Lock()
	s.status.Running = true
	s.mu.Unlock()

	s.logger.Info("scheduled run due", "due", due.Format(time.RFC3339), "reprocess", s.opts.Reprocess)
	res, err := s.runner.Run(ctx, s.opts)

	finished := s.now()
	next := s.next(finished)

	s.mu.Lock()
	s.status.Running = false
	s.status.Runs++
	s.status.NextDue = next
	s.status.LastAt = &finished
	s.status.LastError = ""
	if res != nil && res.Run != nil {
		s.status.LastRunID = res.Run.ID.String()
		s.status.LastStatus = res.Run.Status
	}
	if err != nil {
		s.status.LastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("scheduled run failed", "error", err, "next_due", next.Format(time.RFC3339))
	} else {
		s.logger.Info("scheduled run completed", "next_due", next.Format(time.RFC3339))
	}
	return true
}

// Start проверяет расписание каждые interval до отмены ctx.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultTickInterval
	}

	s.logger.Info("scheduler started", "cron", s.expr, "timezone", s.loc.String(),
		"next_due", s.Status().NextDue.Format(time.RFC3339))

	tk := time.NewTicker(interval)
	defer tk.Stop()

	for {
		select {
		case <-tk.C:
			s.Tick(ctx)
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		}
	}
}
