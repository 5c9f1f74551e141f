package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/dwloader/internal/catalog"
	"github.com/shaiso/dwloader/internal/domain"
	"github.com/shaiso/dwloader/internal/repo"
)

// TopRejectionsLimit — сколько групп отклонений показывать после сбоя.
const TopRejectionsLimit = 5

// Reporter читает диагностику запуска. Только чтение, ошибки не фатальны.
type Reporter struct {
	catalog *catalog.Catalog
	logger  *slog.Logger
}

// NewReporter создаёт Reporter.
func NewReporter(cat *catalog.Catalog, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{catalog: cat, logger: logger}
}

// TopRejections возвращает до пяти самых частых пар (таблица, причина)
// для последнего процесса в журнале.
func (r *Reporter) TopRejections(ctx context.Context, s *repo.Session) ([]domain.RejectionGroup, error) {
	groups, err := repo.NewWarehouseRepo(s, r.catalog).TopRejections(ctx, TopRejectionsLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSummary, err)
	}

	if len(groups) == 0 {
		r.logger.Info("no rejected records for the latest process")
	}
	for _, g := range groups {
		r.logger.Warn("rejected records", "source_table", g.SourceTable, "reason", g.Reason, "count", g.Count)
	}
	return groups, nil
}

// Summarize возвращает последнюю строку журнала процесса и размеры таблиц фактов.
// При частичной ошибке возвращается то, что удалось прочитать, вместе с ErrSummary.
func (r *Reporter) Summarize(ctx context.Context, s *repo.Session) (*domain.Summary, error) {
	wr := repo.NewWarehouseRepo(s, r.catalog)
	summary := &domain.Summary{}
	var errs []error

	p, err := wr.LatestControlProcess(ctx, r.catalog.ProcessName)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		r.logger.Warn("control log has no entry for process", "process", r.catalog.ProcessName)
	case err != nil:
		errs = append(errs, err)
	default:
		summary.Process = p
		r.logger.Info("process summary",
			"process", p.Name,
			"status", p.Status,
			"duration_seconds", p.DurationSeconds(),
			"processed", p.Processed,
			"rejected", p.Rejected,
		)
	}

	facts, err := wr.CountTables(ctx, r.catalog.FactTables())
	if err != nil {
		errs = append(errs, err)
	}
	summary.FactRows = facts
	for _, f := range facts {
		r.logger.Info("fact table", "table", f.Table, "rows", f.Rows)
	}

	if len(errs) > 0 {
		return summary, fmt.Errorf("%w: %w", ErrSummary, errors.Join(errs...))
	}
	return summary, nil
}
