package repo

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	mssql "github.com/microsoft/go-mssqldb"
)

// Общие ошибки слоя доступа к данным.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrConnection — не удалось установить сессию (сеть, аутентификация, драйвер).
	// Фатальна, повторных попыток нет.
	ErrConnection = errors.New("connection error")

	// ErrSessionClosed — сессия уже закрыта.
	ErrSessionClosed = errors.New("session closed")

	// ErrTxActive — в сессии уже есть незавершённая транзакция.
	ErrTxActive = errors.New("transaction already active")

	// ErrTxDone — транзакция уже зафиксирована или откачена.
	ErrTxDone = errors.New("transaction already finished")
)

// ErrorAttrs возвращает атрибуты для slog с кодом ошибки СУБД, если он известен.
func ErrorAttrs(err error) []any {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return []any{"sqlstate", pgErr.Code, "severity", pgErr.Severity}
	}

	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return []any{"mssql_number", msErr.Number, "mssql_class", msErr.Class}
	}

	return nil
}
