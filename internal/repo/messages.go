package repo

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/golang-sql/sqlexp"
)

// MessageQueue — очередь сообщений драйвера. Реализуется *sqlexp.ReturnMessage.
type MessageQueue interface {
	Message(ctx context.Context) sqlexp.RawMessage
}

// messageResultSets читает ответ SQL Server через очередь сообщений драйвера:
// PRINT и RAISERROR с низкой серьёзностью приходят как MsgNotice и пишутся
// в журнал, ошибки процедуры приходят как MsgError и возвращаются из Err.
//
// Снаружи это обычные ResultSets: вызывающий перебирает наборы как у *sql.Rows.
type messageResultSets struct {
	ctx    context.Context
	rows   ResultSets
	queue  MessageQueue
	logger *slog.Logger

	started  bool
	inResult bool
	done     bool
	errs     []error
}

// NewMessageResultSets оборачивает строки запроса, выполненного с *sqlexp.ReturnMessage.
func NewMessageResultSets(ctx context.Context, rows ResultSets, queue MessageQueue, logger *slog.Logger) ResultSets {
	if logger == nil {
		logger = slog.Default()
	}
	return &messageResultSets{ctx: ctx, rows: rows, queue: queue, logger: logger}
}

// advance разбирает сообщения до следующего набора со строками.
// Возвращает false, когда наборов больше нет.
func (m *messageResultSets) advance() bool {
	for !m.done {
		switch msg := m.queue.Message(m.ctx).(type) {
		case sqlexp.MsgNext:
			return true
		case sqlexp.MsgNextResultSet:
			if !m.rows.NextResultSet() {
				m.done = true
			}
		case sqlexp.MsgNotice:
			m.logger.Info("routine message", "message", msg.Message.String())
		case sqlexp.MsgError:
			m.logger.Error("routine error", append([]any{"error", msg.Error}, ErrorAttrs(msg.Error)...)...)
			m.errs = append(m.errs, msg.Error)
		case sqlexp.MsgRowsAffected:
			m.logger.Debug("rows affected", "count", msg.Count)
		}
	}
	return false
}

func (m *messageResultSets) start() {
	if !m.started {
		m.started = true
		m.inResult = m.advance()
	}
}

func (m *messageResultSets) Columns() ([]string, error) {
	m.start()
	if !m.inResult {
		return nil, nil
	}
	return m.rows.Columns()
}

func (m *messageResultSets) Next() bool {
	m.start()
	return m.inResult && m.rows.Next()
}

func (m *messageResultSets) Scan(dest ...any) error {
	return m.rows.Scan(dest...)
}

func (m *messageResultSets) NextResultSet() bool {
	m.start()
	if m.done {
		m.inResult = false
		return false
	}
	m.inResult = m.advance()
	return m.inResult
}

func (m *messageResultSets) Err() error {
	return errors.Join(append(slices.Clone(m.errs), m.rows.Err())...)
}

func (m *messageResultSets) Close() error {
	return m.rows.Close()
}
