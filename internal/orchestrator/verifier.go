package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shaiso/dwloader/internal/catalog"
	"github.com/shaiso/dwloader/internal/domain"
	"github.com/shaiso/dwloader/internal/repo"
)

// Report — результат проверки предусловий.
type Report struct {
	TimeDimension domain.TimeRange    `json:"time_dimension"`
	Tables        []domain.TableCount `json:"tables"`
	Routine       string              `json:"routine"`
	RoutineFound  bool                `json:"routine_found"`

	// Issues — найденные проблемы в порядке проверки.
	Issues []string `json:"issues"`
}

// SafeToProceed возвращает true, если запуск можно продолжать без подтверждения.
func (r *Report) SafeToProceed() bool {
	return len(r.Issues) == 0
}

// Verifier проверяет, что хранилище готово к загрузке INT → DW.
type Verifier struct {
	catalog *catalog.Catalog
	logger  *slog.Logger
}

// NewVerifier создаёт Verifier.
func NewVerifier(cat *catalog.Catalog, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{catalog: cat, logger: logger}
}

// Verify собирает все проблемы, не останавливаясь на первой:
// пустое измерение времени, каждая пустая таблица INT, отсутствие процедуры.
//
// Только чтение. Ошибка запроса фатальна: отсутствующая таблица не считается пустой.
func (v *Verifier) Verify(ctx context.Context, s *repo.Session) (*Report, error) {
	wr := repo.NewWarehouseRepo(s, v.catalog)
	report := &Report{Routine: v.catalog.Routines.Load.Name}

	tr, err := wr.TimeRange(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVerification, err)
	}
	report.TimeDimension = tr
	if tr.Rows == 0 {
		report.Issues = append(report.Issues, fmt.Sprintf("time dimension %s is empty", tr.Table))
	} else {
		v.logger.Info("time dimension", "table", tr.Table, "rows", tr.Rows, "first", tr.First, "last", tr.Last)
	}

	counts, err := wr.CountTables(ctx, v.catalog.IntegrationTables)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVerification, err)
	}
	report.Tables = counts
	for _, c := range counts {
		if c.IsEmpty() {
			report.Issues = append(report.Issues, fmt.Sprintf("integration table %s is empty", c.Table))
			continue
		}
		v.logger.Info("integration table", "table", c.Table, "rows", c.Rows)
	}

	found, err := wr.RoutineExists(ctx, report.Routine)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVerification, err)
	}
	report.RoutineFound = found
	if !found {
		report.Issues = append(report.Issues, fmt.Sprintf("routine %s not found", report.Routine))
	}

	if report.SafeToProceed() {
		v.logger.Info("prerequisites verified")
	} else {
		for _, issue := range report.Issues {
			v.logger.Warn("prerequisite issue", "issue", issue)
		}
	}
	return report, nil
}

// Confirmer решает, продолжать ли запуск, если проверка нашла проблемы.
type Confirmer interface {
	Confirm(ctx context.Context, report *Report) (bool, error)
}

// ConfirmFunc — адаптер функции к Confirmer.
type ConfirmFunc func(ctx context.Context, report *Report) (bool, error)

// Confirm вызывает f.
func (f ConfirmFunc) Confirm(ctx context.Context, report *Report) (bool, error) {
	return f(ctx, report)
}

// AlwaysConfirm продолжает запуск несмотря на проблемы (--yes, force).
var AlwaysConfirm Confirmer = ConfirmFunc(func(context.Context, *Report) (bool, error) {
	return true, nil
})

// NeverConfirm прерывает запуск при любой проблеме.
var NeverConfirm Confirmer = ConfirmFunc(func(context.Context, *Report) (bool, error) {
	return false, nil
})
