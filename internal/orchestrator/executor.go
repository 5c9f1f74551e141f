package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/dwloader/internal/catalog"
	"github.com/shaiso/dwloader/internal/repo"
	"github.com/shaiso/dwloader/internal/telemetry"
)

// DefaultMaxResultSets — предел числа наборов результатов одной процедуры.
const DefaultMaxResultSets = 1024

// Executor вызывает процедуру преобразования в транзакции.
type Executor struct {
	logger        *slog.Logger
	maxResultSets int
}

// NewExecutor создаёт Executor.
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{logger: logger, maxResultSets: DefaultMaxResultSets}
}

// DrainStats — сколько наборов и строк вернула процедура.
type DrainStats struct {
	ResultSets int
	Rows       int
}

// Execute открывает транзакцию, вызывает процедуру, вычитывает все её
// наборы результатов и фиксирует транзакцию. При любой ошибке транзакция
// откатывается, ошибка оборачивается в ErrOrchestration.
//
// Отмена ctx не прерывает уже начатый вызов: процедура выполняется до конца
// на стороне СУБД.
func (e *Executor) Execute(ctx context.Context, s *repo.Session, routine catalog.Routine, reprocess bool) (DrainStats, error) {
	ctx = telemetry.WithLogger(context.WithoutCancel(ctx), e.logger)

	tx, err := s.Begin(ctx)
	if err != nil {
		return DrainStats{}, fmt.Errorf("%w: %w", ErrOrchestration, err)
	}

	e.logger.Info("invoking routine", "routine", routine.Name, "reprocess", reprocess)

	rs, err := s.Dialect().InvokeRoutine(ctx, tx, routine, reprocess)
	if err != nil {
		return DrainStats{}, e.rollback(tx, err)
	}

	stats, drainErr := Drain(rs, e.maxResultSets, e.logger)
	if err := errors.Join(drainErr, rs.Close()); err != nil {
		return stats, e.rollback(tx, err)
	}

	if err := tx.Commit(); err != nil {
		e.logger.Error("commit failed", append([]any{"error", err}, repo.ErrorAttrs(err)...)...)
		return stats, fmt.Errorf("%w: %w", ErrOrchestration, err)
	}

	e.logger.Info("routine committed",
		"routine", routine.Name,
		"result_sets", stats.ResultSets,
		"rows", stats.Rows,
	)
	return stats, nil
}

func (e *Executor) rollback(tx *repo.Tx, cause error) error {
	if err := tx.Rollback(); err != nil {
		e.logger.Error("rollback failed", "error", err)
	}
	e.logger.Error("routine failed, transaction rolled back",
		append([]any{"error", cause}, repo.ErrorAttrs(cause)...)...,
	)
	return fmt.Errorf("%w: %w", ErrOrchestration, cause)
}

// Drain вычитывает все наборы результатов, не более limit.
// Строки пишутся в журнал как сообщения процедуры.
// Ошибка, поднятая процедурой после первого набора, приходит здесь.
func Drain(rs repo.ResultSets, limit int, logger *slog.Logger) (DrainStats, error) {
	var stats DrainStats

	for {
		stats.ResultSets++

		cols, err := rs.Columns()
		if err != nil {
			return stats, fmt.Errorf("result set %d: %w", stats.ResultSets, err)
		}

		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}

		for rs.Next() {
			if err := rs.Scan(ptrs...); err != nil {
				return stats, fmt.Errorf("result set %d: scan: %w", stats.ResultSets, err)
			}
			stats.Rows++

			attrs := make([]any, 0, 2*len(cols))
			for i, c := range cols {
				attrs = append(attrs, c, printable(values[i]))
			}
			logger.Info("routine output", attrs...)
		}
		if err := rs.Err(); err != nil {
			return stats, fmt.Errorf("result set %d: %w", stats.ResultSets, err)
		}

		if !rs.NextResultSet() {
			break
		}
		if stats.ResultSets >= limit {
			return stats, fmt.Errorf("%w: more than %d", ErrTooManyResultSets, limit)
		}
	}

	if err := rs.Err(); err != nil {
		return stats, fmt.Errorf("result set %d: %w", stats.ResultSets+1, err)
	}
	return stats, nil
}

func printable(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
