package repo

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/golang-sql/sqlexp"

	"github.com/shaiso/dwloader/internal/catalog"
	"github.com/shaiso/dwloader/internal/config"
	"github.com/shaiso/dwloader/internal/telemetry"
)

// Statement — команда, выполняемая в транзакции.
// SQL служит для показа плана; Exec выполняет команду.
type Statement struct {
	SQL  string
	Exec func(ctx context.Context, q Querier) error
}

// ResultSets — последовательность наборов результатов процедуры.
// Реализуется *sql.Rows.
type ResultSets interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	NextResultSet() bool
	Err() error
	Close() error
}

// Dialect скрывает различия SQL между СУБД.
type Dialect interface {
	Engine() config.Engine

	// Quote экранирует имя, в том числе составное (schema.table).
	Quote(name string) string

	// Placeholder возвращает n-й параметр запроса (с единицы).
	Placeholder(n int) string

	// SelectTop строит SELECT с ограничением числа строк.
	SelectTop(n int, columns, rest string) string

	RoutineExists(ctx context.Context, q Querier, name string) (bool, error)
	InvokeRoutine(ctx context.Context, q Querier, r catalog.Routine, reprocess bool) (ResultSets, error)

	ClearTable(table string) Statement
	ReseedIdentity(table string) Statement
	TruncateTable(table string) Statement
}

// DialectFor возвращает диалект СУБД.
func DialectFor(engine config.Engine) Dialect {
	switch engine {
	case config.EnginePostgres:
		return postgresDialect{}
	case config.EngineSQLite:
		return sqliteDialect{}
	default:
		return sqlServerDialect{}
	}
}

func execStatement(query string, args ...any) Statement {
	return Statement{
		SQL: query,
		Exec: func(ctx context.Context, q Querier) error {
			_, err := q.ExecContext(ctx, query, args...)
			return err
		},
	}
}

func resultSets(rows *sql.Rows, err error) (ResultSets, error) {
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func reprocessFlag(reprocess bool) int {
	if reprocess {
		return 1
	}
	return 0
}

func quoteParts(name string, quote func(string) string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = quote(p)
	}
	return strings.Join(parts, ".")
}

func splitQualified(name string) (schema, object string) {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// sqlServerDialect — Microsoft SQL Server.
type sqlServerDialect struct{}

func (sqlServerDialect) Engine() config.Engine { return config.EngineSQLServer }

func (sqlServerDialect) Quote(name string) string {
	return quoteParts(name, func(p string) string {
		return "[" + strings.ReplaceAll(p, "]", "]]") + "]"
	})
}

func (sqlServerDialect) Placeholder(n int) string { return "@p" + strconv.Itoa(n) }

func (sqlServerDialect) SelectTop(n int, columns, rest string) string {
	return "SELECT TOP (" + strconv.Itoa(n) + ") " + columns + " " + rest
}

func (sqlServerDialect) RoutineExists(ctx context.Context, q Querier, name string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sys.objects WHERE type = 'P' AND object_id = OBJECT_ID(@p1)`,
		name,
	).Scan(&n)
	return n > 0, err
}

// InvokeRoutine включает сообщения о числе строк, чтобы процедура
// отдавала все наборы результатов, и вызывает её. Сообщения PRINT
// пишутся в журнал из контекста вызова.
func (d sqlServerDialect) InvokeRoutine(ctx context.Context, q Querier, r catalog.Routine, reprocess bool) (ResultSets, error) {
	if _, err := q.ExecContext(ctx, "SET NOCOUNT OFF"); err != nil {
		return nil, err
	}

	msgs := &sqlexp.ReturnMessage{}
	query := "EXEC " + d.Quote(r.Name)
	args := []any{msgs}
	if r.HasParam() {
		query += " @" + r.Param + " = @p1"
		args = append(args, reprocessFlag(reprocess))
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return NewMessageResultSets(ctx, rows, msgs, telemetry.FromContext(ctx)), nil
}

func (d sqlServerDialect) ClearTable(table string) Statement {
	return execStatement("DELETE FROM " + d.Quote(table))
}

// ReseedIdentity возвращает счётчик к начальному значению: следующая строка
// получит 1. У таблицы, в которую ещё не вставляли строк, RESEED задаёт
// само следующее значение, у остальных следующее значение на единицу больше.
func (sqlServerDialect) ReseedIdentity(table string) Statement {
	name := "N'" + strings.ReplaceAll(table, "'", "''") + "'"
	return execStatement(
		"IF EXISTS (SELECT 1 FROM sys.identity_columns WHERE object_id = OBJECT_ID(" + name + ") AND last_value IS NOT NULL) " +
			"DBCC CHECKIDENT (" + name + ", RESEED, 0) " +
			"ELSE DBCC CHECKIDENT (" + name + ", RESEED, 1)",
	)
}

func (d sqlServerDialect) TruncateTable(table string) Statement {
	return execStatement("TRUNCATE TABLE " + d.Quote(table))
}

// postgresDialect — PostgreSQL.
type postgresDialect struct{}

func (postgresDialect) Engine() config.Engine { return config.EnginePostgres }

func (postgresDialect) Quote(name string) string {
	return quoteParts(name, func(p string) string {
		return `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	})
}

func (postgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (postgresDialect) SelectTop(n int, columns, rest string) string {
	return "SELECT " + columns + " " + rest + " LIMIT " + strconv.Itoa(n)
}

func (postgresDialect) RoutineExists(ctx context.Context, q Querier, name string) (bool, error) {
	schema, proc := splitQualified(name)
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM pg_proc p
		JOIN pg_namespace ns ON ns.oid = p.pronamespace
		WHERE p.prokind = 'p'
		  AND p.proname = $1
		  AND ns.nspname = COALESCE(NULLIF($2, ''), current_schema())
	`, proc, schema).Scan(&n)
	return n > 0, err
}

func (d postgresDialect) InvokeRoutine(ctx context.Context, q Querier, r catalog.Routine, reprocess bool) (ResultSets, error) {
	if !r.HasParam() {
		return resultSets(q.QueryContext(ctx, "CALL "+d.Quote(r.Name)+"()"))
	}
	return resultSets(q.QueryContext(ctx, "CALL "+d.Quote(r.Name)+"($1)", reprocessFlag(reprocess)))
}

func (d postgresDialect) ClearTable(table string) Statement {
	return execStatement("DELETE FROM " + d.Quote(table))
}

// ReseedIdentity находит identity-колонку таблицы и перезапускает её с единицы.
// Таблица без identity-колонки пропускается.
func (d postgresDialect) ReseedIdentity(table string) Statement {
	quoted := d.Quote(table)
	schema, name := splitQualified(table)
	return Statement{
		SQL: "ALTER TABLE " + quoted + " ALTER COLUMN <identity> RESTART WITH 1",
		Exec: func(ctx context.Context, q Querier) error {
			var column string
			err := q.QueryRowContext(ctx, `
				SELECT column_name
				FROM information_schema.columns
				WHERE table_schema = COALESCE(NULLIF($1, ''), current_schema())
				  AND table_name = $2
				  AND is_identity = 'YES'
				ORDER BY ordinal_position
				LIMIT 1
			`, schema, name).Scan(&column)
			if err == sql.ErrNoRows {
				return nil
			}
			if err != nil {
				return err
			}
			_, err = q.ExecContext(ctx, "ALTER TABLE "+quoted+" ALTER COLUMN "+d.Quote(column)+" RESTART WITH 1")
			return err
		},
	}
}

func (d postgresDialect) TruncateTable(table string) Statement {
	return execStatement("TRUNCATE TABLE " + d.Quote(table))
}

// sqliteDialect — SQLite. Хранимых процедур нет: тело процедуры
// хранится в таблице etl_routines и выполняется как пакет команд.
type sqliteDialect struct{}

// RoutineTable — таблица с процедурами для SQLite.
const RoutineTable = "etl_routines"

// ReprocessToken — место подстановки флага переобработки в теле процедуры SQLite.
const ReprocessToken = ":reprocess"

func (sqliteDialect) Engine() config.Engine { return config.EngineSQLite }

func (sqliteDialect) Quote(name string) string {
	return quoteParts(name, func(p string) string {
		return `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	})
}

func (sqliteDialect) Placeholder(int) string { return "?" }

func (sqliteDialect) SelectTop(n int, columns, rest string) string {
	return "SELECT " + columns + " " + rest + " LIMIT " + strconv.Itoa(n)
}

func (sqliteDialect) RoutineExists(ctx context.Context, q Querier, name string) (bool, error) {
	ok, err := sqliteTableExists(ctx, q, RoutineTable)
	if err != nil || !ok {
		return false, err
	}

	var n int
	err = q.QueryRowContext(ctx, `SELECT COUNT(*) FROM etl_routines WHERE name = ?`, name).Scan(&n)
	return n > 0, err
}

func (sqliteDialect) InvokeRoutine(ctx context.Context, q Querier, r catalog.Routine, reprocess bool) (ResultSets, error) {
	var body string
	err := q.QueryRowContext(ctx, `SELECT body FROM etl_routines WHERE name = ?`, r.Name).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	body = strings.ReplaceAll(body, ReprocessToken, strconv.Itoa(reprocessFlag(reprocess)))
	if _, err := q.ExecContext(ctx, body); err != nil {
		return nil, err
	}
	return noResultSets{}, nil
}

func (d sqliteDialect) ClearTable(table string) Statement {
	return execStatement("DELETE FROM " + d.Quote(table))
}

func (sqliteDialect) ReseedIdentity(table string) Statement {
	return Statement{
		SQL: "DELETE FROM sqlite_sequence WHERE name = '" + table + "'",
		Exec: func(ctx context.Context, q Querier) error {
			ok, err := sqliteTableExists(ctx, q, "sqlite_sequence")
			if err != nil || !ok {
				return err
			}
			_, err = q.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name = ?`, table)
			return err
		},
	}
}

func (d sqliteDialect) TruncateTable(table string) Statement {
	return d.ClearTable(table)
}

func sqliteTableExists(ctx context.Context, q Querier, name string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name,
	).Scan(&n)
	return n > 0, err
}

// noResultSets — процедура SQLite не возвращает наборов результатов.
type noResultSets struct{}

func (noResultSets) Columns() ([]string, error) { return nil, nil }
func (noResultSets) Next() bool                 { return false }
func (noResultSets) Scan(...any) error          { return sql.ErrNoRows }
func (noResultSets) NextResultSet() bool        { return false }
func (noResultSets) Err() error                 { return nil }
func (noResultSets) Close() error               { return nil }
