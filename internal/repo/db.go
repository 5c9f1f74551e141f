package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"

	"github.com/shaiso/dwloader/internal/config"
	"github.com/shaiso/dwloader/internal/domain"
)

// Querier — общий интерфейс *sql.Conn и *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxStats — счётчики завершённых транзакций сессии.
type TxStats struct {
	Commits   int
	Rollbacks int
}

// Session — одно соединение с хранилищем на весь запуск.
//
// Запись возможна только внутри транзакции, открытой через Begin.
// Одновременно открыта не более одной транзакции.
type Session struct {
	db      *sql.DB
	conn    *sql.Conn
	engine  config.Engine
	dialect Dialect
	logger  *slog.Logger

	mu     sync.Mutex
	active *Tx
	stats  TxStats
	closed bool
}

// Connect проверяет параметры и открывает сессию.
//
// Ошибка параметров возвращается до любого сетевого обращения (config.ErrConfiguration).
// Ошибки драйвера, сети и аутентификации оборачиваются в ErrConnection.
func Connect(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	engine, err := cfg.Engine()
	if err != nil {
		return nil, err
	}
	dsn, err := BuildDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := openDB(engine, dsn, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	db.SetMaxOpenConns(1)

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	conn, err := db.Conn(connectCtx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	if err := conn.PingContext(connectCtx); err != nil {
		conn.Close()
		db.Close()
		return nil, fmt.Errorf("%w: ping: %v", ErrConnection, err)
	}

	logger.Info("connected to warehouse",
		"engine", engine,
		"server", cfg.Server,
		"database", cfg.Database,
	)

	return &Session{
		db:      db,
		conn:    conn,
		engine:  engine,
		dialect: DialectFor(engine),
		logger:  logger,
	}, nil
}

func openDB(engine config.Engine, dsn string, logger *slog.Logger) (*sql.DB, error) {
	switch engine {
	case config.EnginePostgres:
		connCfg, err := pgx.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse dsn: %w", err)
		}
		connCfg.OnNotice = func(_ *pgconn.PgConn, n *pgconn.Notice) {
			logger.Info("routine message", "severity", n.Severity, "message", n.Message)
		}
		return stdlib.OpenDB(*connCfg), nil
	case config.EngineSQLServer:
		return sql.Open("sqlserver", dsn)
	case config.EngineSQLite:
		return sql.Open("sqlite", dsn)
	default:
		return nil, fmt.Errorf("unsupported engine %q", engine)
	}
}

// Engine возвращает СУБД сессии.
func (s *Session) Engine() config.Engine {
	return s.engine
}

// Dialect возвращает SQL-диалект сессии.
func (s *Session) Dialect() Dialect {
	return s.dialect
}

// Logger возвращает логгер сессии.
func (s *Session) Logger() *slog.Logger {
	return s.logger
}

// Querier возвращает соединение для чтения вне транзакции.
func (s *Session) Querier() Querier {
	return s.conn
}

// Stats возвращает число фиксаций и откатов за время жизни сессии.
func (s *Session) Stats() TxStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Begin открывает транзакцию.
func (s *Session) Begin(ctx context.Context) (*Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.active != nil {
		return nil, ErrTxActive
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}

	t := &Tx{tx: tx, session: s, outcome: domain.TxOpen}
	s.active = t
	return t, nil
}

// Close откатывает незавершённую транзакцию и освобождает соединение.
// Повторный вызов ничего не делает.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	active := s.active
	s.mu.Unlock()

	if active != nil {
		s.logger.Warn("rolling back unfinished transaction on close")
		if err := active.Rollback(); err != nil && !errors.Is(err, ErrTxDone) {
			s.logger.Error("rollback on close failed", "error", err)
		}
	}

	connErr := s.conn.Close()
	dbErr := s.db.Close()
	return errors.Join(connErr, dbErr)
}

func (s *Session) finish(t *Tx, outcome domain.TxOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch outcome {
	case domain.TxCommitted:
		s.stats.Commits++
	case domain.TxRolledBack:
		s.stats.Rollbacks++
	}
	if s.active == t {
		s.active = nil
	}
}

// Tx — транзакция, которая завершается ровно один раз.
type Tx struct {
	tx      *sql.Tx
	session *Session

	mu      sync.Mutex
	outcome domain.TxOutcome
}

// ExecContext выполняет команду в транзакции.
func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

// QueryContext выполняет запрос в транзакции.
func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, query, args...)
}

// QueryRowContext выполняет запрос одной строки в транзакции.
func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, query, args...)
}

// Outcome возвращает состояние транзакции.
func (t *Tx) Outcome() domain.TxOutcome {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outcome
}

// Commit фиксирует транзакцию. Неудачная фиксация считается откатом.
func (t *Tx) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.outcome != domain.TxOpen {
		return ErrTxDone
	}

	if err := t.tx.Commit(); err != nil {
		t.outcome = domain.TxRolledBack
		t.session.finish(t, t.outcome)
		return fmt.Errorf("commit: %w", err)
	}

	t.outcome = domain.TxCommitted
	t.session.finish(t, t.outcome)
	return nil
}

// Rollback откатывает транзакцию.
func (t *Tx) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.outcome != domain.TxOpen {
		return ErrTxDone
	}

	err := t.tx.Rollback()
	t.outcome = domain.TxRolledBack
	t.session.finish(t, t.outcome)

	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}
