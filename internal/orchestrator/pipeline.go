package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/dwloader/internal/catalog"
	"github.com/shaiso/dwloader/internal/domain"
	"github.com/shaiso/dwloader/internal/mq"
	"github.com/shaiso/dwloader/internal/repo"
	"github.com/shaiso/dwloader/internal/telemetry"
)

// Connector открывает сессию с хранилищем.
type Connector func(ctx context.Context) (*repo.Session, error)

// EventPublisher публикует итог запуска.
type EventPublisher interface {
	PublishRunFinished(ctx context.Context, payload mq.RunFinishedPayload) error
}

// Config — конфигурация Pipeline.
type Config struct {
	Catalog *catalog.Catalog
	Connect Connector

	// Confirmer — решение при проблемах проверки (default: NeverConfirm).
	Confirmer Confirmer

	// Metrics и Events необязательны.
	Metrics *telemetry.Metrics
	Events  EventPublisher

	Logger *slog.Logger
}

// Options — параметры одного запуска.
type Options struct {
	// Stage — выполняемый этап (default: load).
	Stage domain.Stage

	// Reprocess передаётся процедуре как флаг полной переобработки.
	Reprocess bool

	// Reset — очистить хранилище перед загрузкой.
	Reset bool
}

// Result — итог запуска.
type Result struct {
	Run        *domain.Run             `json:"run"`
	Report     *Report                 `json:"report,omitempty"`
	Summary    *domain.Summary         `json:"summary,omitempty"`
	Rejections []domain.RejectionGroup `json:"rejections,omitempty"`
	Warnings   []string                `json:"warnings,omitempty"`
	Output     DrainStats              `json:"output"`
	Tx         repo.TxStats            `json:"transactions"`
}

// ExitCode возвращает код завершения процесса: 0 только при успехе.
func (r *Result) ExitCode() int {
	return r.Run.Status.ExitCode()
}

// Pipeline проводит запуски: connect → reset → verify → confirm → execute → diagnostics.
type Pipeline struct {
	catalog   *catalog.Catalog
	connect   Connector
	confirmer Confirmer
	metrics   *telemetry.Metrics
	events    EventPublisher
	logger    *slog.Logger
}

// New создаёт Pipeline.
func New(cfg Config) *Pipeline {
	cat := cfg.Catalog
	if cat == nil {
		cat = catalog.Default()
	}

	confirmer := cfg.Confirmer
	if confirmer == nil {
		confirmer = NeverConfirm
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		catalog:   cat,
		connect:   cfg.Connect,
		confirmer: confirmer,
		metrics:   cfg.Metrics,
		events:    cfg.Events,
		logger:    logger,
	}
}

// Run выполняет один запуск. Result возвращается всегда, в том числе вместе с ошибкой.
func (p *Pipeline) Run(ctx context.Context, opts Options) (res *Result, err error) {
	if opts.Stage == "" {
		opts.Stage = domain.StageLoad
	}

	run := domain.NewRun(opts.Stage, opts.Reprocess, opts.Reset)
	logger := telemetry.WithStage(telemetry.WithRunID(p.logger, run.ID.String()), string(run.Stage))
	res = &Result{Run: run}

	logger.Info("run started", "reprocess", opts.Reprocess, "reset", opts.Reset)
	defer func() { p.finish(ctx, logger, res, err) }()

	start := time.Now()
	session, err := p.connect(ctx)
	p.metrics.ObservePhase("connect", time.Since(start))
	if err != nil {
		return res, err
	}
	defer func() {
		res.Tx = session.Stats()
		if cerr := session.Close(); cerr != nil {
			logger.Warn("close session", "error", cerr)
		}
	}()

	if run.Stage == domain.StageIntegrate {
		return res, p.integrate(ctx, logger, session, res, opts)
	}
	return res, p.load(ctx, logger, session, res, opts)
}

func (p *Pipeline) load(ctx context.Context, logger *slog.Logger, s *repo.Session, res *Result, opts Options) error {
	if opts.Reset {
		start := time.Now()
		err := NewResetter(p.catalog, logger).Reset(ctx, s)
		p.metrics.ObservePhase("reset", time.Since(start))
		if err != nil {
			p.warn(logger, res, "reset", err)
		}
	}

	start := time.Now()
	report, err := NewVerifier(p.catalog, logger).Verify(ctx, s)
	p.metrics.ObservePhase("verify", time.Since(start))
	if err != nil {
		return err
	}
	res.Report = report

	if !report.SafeToProceed() {
		ok, err := p.confirmer.Confirm(ctx, report)
		if err != nil {
			return fmt.Errorf("confirm: %w", err)
		}
		if !ok {
			return ErrAborted
		}
		logger.Warn("continuing despite prerequisite issues", "issues", len(report.Issues))
	}

	start = time.Now()
	stats, err := NewExecutor(logger).Execute(ctx, s, p.catalog.Routines.Load, opts.Reprocess)
	p.metrics.ObservePhase("execute", time.Since(start))
	res.Output = stats

	reporter := NewReporter(p.catalog, logger)
	if err != nil {
		rejections, rerr := reporter.TopRejections(ctx, s)
		if rerr != nil {
			p.warn(logger, res, "summary", rerr)
		}
		res.Rejections = rejections
		return err
	}

	summary, err := reporter.Summarize(ctx, s)
	if err != nil {
		p.warn(logger, res, "summary", err)
	}
	res.Summary = summary
	return nil
}

func (p *Pipeline) integrate(ctx context.Context, logger *slog.Logger, s *repo.Session, res *Result, opts Options) error {
	start := time.Now()
	stats, err := NewExecutor(logger).Execute(ctx, s, p.catalog.Routines.Integrate, opts.Reprocess)
	p.metrics.ObservePhase("execute", time.Since(start))
	res.Output = stats
	return err
}

func (p *Pipeline) warn(logger *slog.Logger, res *Result, kind string, err error) {
	res.Warnings = append(res.Warnings, err.Error())
	p.metrics.Warning(kind)
	logger.Warn("run warning", "kind", kind, "error", err)
}

func (p *Pipeline) finish(ctx context.Context, logger *slog.Logger, res *Result, err error) {
	run := res.Run
	switch {
	case err == nil:
		run.MarkSucceeded()
	case errors.Is(err, ErrAborted):
		run.MarkAborted(err.Error())
	default:
		run.MarkFailed(err.Error())
	}

	p.metrics.TxFinished(res.Tx.Commits, res.Tx.Rollbacks)
	p.metrics.RunFinished(string(run.Stage), string(run.Status), *run.FinishedAt)
	p.metrics.ObservePhase("total", run.Duration())
	if s := res.Summary; s != nil {
		if s.Process != nil {
			p.metrics.SetProcessRecords(s.Process.Processed, s.Process.Rejected)
		}
		for _, f := range s.FactRows {
			p.metrics.SetFactRows(f.Table, f.Rows)
		}
	}

	if p.events != nil {
		payload := mq.RunFinishedPayload{
			RunID:      run.ID,
			Stage:      run.Stage,
			Status:     run.Status,
			Reprocess:  run.Reprocess,
			Reset:      run.Reset,
			Error:      run.Error,
			StartedAt:  run.StartedAt,
			FinishedAt: run.FinishedAt,
			Summary:    res.Summary,
			Rejections: res.Rejections,
			Warnings:   res.Warnings,
		}
		if perr := p.events.PublishRunFinished(context.WithoutCancel(ctx), payload); perr != nil {
			p.warn(logger, res, "events", perr)
		}
	}

	attrs := []any{
		"status", run.Status,
		"duration", run.Duration(),
		"commits", res.Tx.Commits,
		"rollbacks", res.Tx.Rollbacks,
		"warnings", len(res.Warnings),
	}
	switch run.Status {
	case domain.RunStatusSucceeded:
		logger.Info("run finished", attrs...)
	case domain.RunStatusAborted:
		logger.Warn("run aborted", attrs...)
	default:
		logger.Error("run failed", append(attrs, "error", err)...)
	}
}

// Verify проверяет предусловия в отдельной сессии.
func (p *Pipeline) Verify(ctx context.Context) (*Report, error) {
	s, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	return NewVerifier(p.catalog, p.logger).Verify(ctx, s)
}

// Reset выполняет только сброс хранилища. Здесь ошибка сброса возвращается вызывающему.
func (p *Pipeline) Reset(ctx context.Context) error {
	s, err := p.connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	return NewResetter(p.catalog, p.logger).Reset(ctx, s)
}

// ResetPlan возвращает команды сброса для СУБД без подключения.
func (p *Pipeline) ResetPlan(d repo.Dialect) []repo.Statement {
	return NewResetter(p.catalog, p.logger).Plan(d)
}

// Summary читает сводку последнего процесса.
func (p *Pipeline) Summary(ctx context.Context) (*domain.Summary, error) {
	s, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	return NewReporter(p.catalog, p.logger).Summarize(ctx, s)
}

// Rejections читает частые причины отклонений последнего процесса.
func (p *Pipeline) Rejections(ctx context.Context) ([]domain.RejectionGroup, error) {
	s, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	return NewReporter(p.catalog, p.logger).TopRejections(ctx, s)
}
