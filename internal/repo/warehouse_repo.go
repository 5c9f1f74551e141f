package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shaiso/dwloader/internal/catalog"
	"github.com/shaiso/dwloader/internal/domain"
)

// WarehouseRepo — чтение состояния хранилища.
type WarehouseRepo struct {
	q       Querier
	dialect Dialect
	catalog *catalog.Catalog
}

// NewWarehouseRepo создаёт репозиторий поверх соединения сессии.
func NewWarehouseRepo(s *Session, cat *catalog.Catalog) *WarehouseRepo {
	return &WarehouseRepo{q: s.Querier(), dialect: s.Dialect(), catalog: cat}
}

// CountRows возвращает количество строк в таблице.
func (r *WarehouseRepo) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	query := "SELECT COUNT(*) FROM " + r.dialect.Quote(table)
	if err := r.q.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// CountTables возвращает количество строк в каждой таблице в заданном порядке.
func (r *WarehouseRepo) CountTables(ctx context.Context, tables []string) ([]domain.TableCount, error) {
	counts := make([]domain.TableCount, 0, len(tables))
	for _, t := range tables {
		n, err := r.CountRows(ctx, t)
		if err != nil {
			return nil, err
		}
		counts = append(counts, domain.TableCount{Table: t, Rows: n})
	}
	return counts, nil
}

// TimeRange возвращает количество строк и диапазон дат измерения времени.
func (r *WarehouseRepo) TimeRange(ctx context.Context) (domain.TimeRange, error) {
	td := r.catalog.TimeDimension
	col := r.dialect.Quote(td.DateColumn)
	query := fmt.Sprintf("SELECT COUNT(*), MIN(%s), MAX(%s) FROM %s", col, col, r.dialect.Quote(td.Table))

	var (
		rows        int64
		first, last any
	)
	if err := r.q.QueryRowContext(ctx, query).Scan(&rows, &first, &last); err != nil {
		return domain.TimeRange{}, fmt.Errorf("time dimension %s: %w", td.Table, err)
	}

	return domain.TimeRange{
		Table: td.Table,
		Rows:  rows,
		First: formatDate(first),
		Last:  formatDate(last),
	}, nil
}

// RoutineExists проверяет наличие хранимой процедуры.
func (r *WarehouseRepo) RoutineExists(ctx context.Context, name string) (bool, error) {
	ok, err := r.dialect.RoutineExists(ctx, r.q, name)
	if err != nil {
		return false, fmt.Errorf("routine %s: %w", name, err)
	}
	return ok, nil
}

// LatestControlProcess возвращает последнюю строку журнала для имени процесса.
func (r *WarehouseRepo) LatestControlProcess(ctx context.Context, processName string) (*domain.ControlProcess, error) {
	cl := r.catalog.ControlLog
	d := r.dialect

	columns := strings.Join([]string{
		d.Quote(cl.ID),
		d.Quote(cl.Name),
		d.Quote(cl.Status),
		d.Quote(cl.Processed),
		d.Quote(cl.Rejected),
		d.Quote(cl.StartedAt),
		d.Quote(cl.FinishedAt),
	}, ", ")
	rest := fmt.Sprintf("FROM %s WHERE %s = %s ORDER BY %s DESC",
		d.Quote(cl.Table), d.Quote(cl.Name), d.Placeholder(1), d.Quote(cl.ID))

	var (
		p                   domain.ControlProcess
		name, status        sql.NullString
		processed, rejected sql.NullInt64
		started, finished   any
	)
	err := r.q.QueryRowContext(ctx, d.SelectTop(1, columns, rest), processName).
		Scan(&p.ID, &name, &status, &processed, &rejected, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("control log: %w", err)
	}

	p.Name = name.String
	p.Status = status.String
	p.Processed = processed.Int64
	p.Rejected = rejected.Int64
	p.StartedAt = toTime(started)
	p.FinishedAt = toTime(finished)
	return &p, nil
}

// TopRejections возвращает самые частые причины отклонения
// для последнего процесса в журнале (максимальный ID).
// Сортировка: по количеству убыванию, затем по таблице и причине.
func (r *WarehouseRepo) TopRejections(ctx context.Context, limit int) ([]domain.RejectionGroup, error) {
	rj := r.catalog.Rejections
	cl := r.catalog.ControlLog
	d := r.dialect

	src, reason := d.Quote(rj.SourceTable), d.Quote(rj.Reason)
	columns := fmt.Sprintf("%s, %s, COUNT(*) AS cnt", src, reason)
	rest := fmt.Sprintf(
		"FROM %s WHERE %s = (SELECT MAX(%s) FROM %s) GROUP BY %s, %s ORDER BY cnt DESC, %s, %s",
		d.Quote(rj.Table), d.Quote(rj.ProcessID), d.Quote(cl.ID), d.Quote(cl.Table),
		src, reason, src, reason,
	)

	rows, err := r.q.QueryContext(ctx, d.SelectTop(limit, columns, rest))
	if err != nil {
		return nil, fmt.Errorf("rejections: %w", err)
	}
	defer rows.Close()

	var groups []domain.RejectionGroup
	for rows.Next() {
		var (
			g           domain.RejectionGroup
			table, why sql.NullString
		)
		if err := rows.Scan(&table, &why, &g.Count); err != nil {
			return nil, fmt.Errorf("scan rejection: %w", err)
		}
		g.SourceTable = table.String
		g.Reason = why.String
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rejections: %w", err)
	}
	return groups, nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// toTime приводит значение даты из драйвера к time.Time.
// Драйверы SQL Server и Postgres возвращают time.Time, SQLite — строку.
func toTime(v any) *time.Time {
	var t time.Time
	switch x := v.(type) {
	case time.Time:
		t = x
	case string:
		parsed, ok := parseDate(x)
		if !ok {
			return nil
		}
		t = parsed
	case []byte:
		parsed, ok := parseDate(string(x))
		if !ok {
			return nil
		}
		t = parsed
	default:
		return nil
	}
	return &t
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func formatDate(v any) string {
	if t := toTime(v); t != nil {
		return t.Format("2006-01-02")
	}
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
