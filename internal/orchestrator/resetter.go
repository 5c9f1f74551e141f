package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shaiso/dwloader/internal/catalog"
	"github.com/shaiso/dwloader/internal/repo"
)

// Resetter очищает хранилище перед повторной загрузкой.
type Resetter struct {
	catalog *catalog.Catalog
	logger  *slog.Logger
}

// NewResetter создаёт Resetter.
func NewResetter(cat *catalog.Catalog, logger *slog.Logger) *Resetter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resetter{catalog: cat, logger: logger}
}

// Plan возвращает команды сброса по порядку: сначала очистка фактов,
// журналов и измерений, затем сброс счётчиков автоинкремента.
func (r *Resetter) Plan(d repo.Dialect) []repo.Statement {
	tables := r.catalog.ResetOrder()
	plan := make([]repo.Statement, 0, 2*len(tables))

	for _, t := range tables {
		plan = append(plan, d.ClearTable(t.Name))
	}
	for _, t := range tables {
		if t.Reseed {
			plan = append(plan, d.ReseedIdentity(t.Name))
		}
	}
	return plan
}

// Reset выполняет план одной транзакцией: либо сброшено всё, либо ничего.
// Ошибка оборачивается в ErrReset.
func (r *Resetter) Reset(ctx context.Context, s *repo.Session) error {
	plan := r.Plan(s.Dialect())

	tx, err := s.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReset, err)
	}

	for _, st := range plan {
		if err := st.Exec(ctx, tx); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.logger.Error("reset rollback failed", "error", rbErr)
			}
			return fmt.Errorf("%w: %s: %w", ErrReset, st.SQL, err)
		}
		r.logger.Debug("reset statement", "sql", st.SQL)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrReset, err)
	}

	r.logger.Info("warehouse reset", "statements", len(plan))
	return nil
}
