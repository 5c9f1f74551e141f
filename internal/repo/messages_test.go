package repo

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/golang-sql/sqlexp"
)

type notice string

func (n notice) String() string { return string(n) }

// queue отдаёт сообщения по порядку, затем MsgNextResultSet, как драйвер при отмене.
type queue struct {
	msgs []sqlexp.RawMessage
}

func (q *queue) Message(context.Context) sqlexp.RawMessage {
	if len(q.msgs) == 0 {
		return sqlexp.MsgNextResultSet{}
	}
	m := q.msgs[0]
	q.msgs = q.msgs[1:]
	return m
}

// rowSets — наборы строк из одной колонки.
type rowSets struct {
	sets   [][]string
	set    int
	row    int
	closed bool
}

func (r *rowSets) Columns() ([]string, error) { return []string{"message"}, nil }

func (r *rowSets) Next() bool {
	if r.set < len(r.sets) && r.row < len(r.sets[r.set]) {
		r.row++
		return true
	}
	return false
}

func (r *rowSets) Scan(dest ...any) error {
	*dest[0].(*string) = r.sets[r.set][r.row-1]
	return nil
}

func (r *rowSets) NextResultSet() bool {
	r.set++
	r.row = 0
	return r.set < len(r.sets)
}

func (r *rowSets) Err() error { return nil }

func (r *rowSets) Close() error {
	r.closed = true
	return nil
}

func collect(t *testing.T, rs ResultSets) [][]string {
	t.Helper()
	var out [][]string
	for {
		cols, err := rs.Columns()
		if err != nil {
			t.Fatalf("Columns: %v", err)
		}
		var set []string
		for rs.Next() {
			var v string
			if len(cols) != 1 {
				t.Fatalf("columns = %v", cols)
			}
			if err := rs.Scan(&v); err != nil {
				t.Fatalf("Scan: %v", err)
			}
			set = append(set, v)
		}
		out = append(out, set)
		if !rs.NextResultSet() {
			return out
		}
	}
}

func TestMessageResultSets_LogsNoticesAndReadsSets(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	rows := &rowSets{sets: [][]string{{"a", "b"}, {"c"}}}
	q := &queue{msgs: []sqlexp.RawMessage{
		sqlexp.MsgNotice{Message: notice("Inicio de carga")},
		sqlexp.MsgRowsAffected{Count: 3},
		sqlexp.MsgNext{},
		sqlexp.MsgNextResultSet{},
		sqlexp.MsgNotice{Message: notice("Fin de carga")},
		sqlexp.MsgNext{},
		sqlexp.MsgNextResultSet{},
	}}

	rs := NewMessageResultSets(context.Background(), rows, q, logger)
	got := collect(t, rs)

	if len(got) != 2 || strings.Join(got[0], ",") != "a,b" || strings.Join(got[1], ",") != "c" {
		t.Errorf("sets = %v", got)
	}
	if err := rs.Err(); err != nil {
		t.Errorf("Err: %v", err)
	}
	if err := rs.Close(); err != nil || !rows.closed {
		t.Errorf("Close: %v, closed=%v", err, rows.closed)
	}

	out := buf.String()
	for _, want := range []string{`msg="routine message" message="Inicio de carga"`, `message="Fin de carga"`, `msg="rows affected" count=3`} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
}

func TestMessageResultSets_RoutineError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	fail := errors.New("mssql: Cliente inexistente")
	q := &queue{msgs: []sqlexp.RawMessage{
		sqlexp.MsgNotice{Message: notice("Procesando ventas")},
		sqlexp.MsgError{Error: fail},
		sqlexp.MsgNextResultSet{},
	}}

	rs := NewMessageResultSets(context.Background(), &rowSets{}, q, logger)
	got := collect(t, rs)

	if len(got) != 1 || len(got[0]) != 0 {
		t.Errorf("sets = %v", got)
	}
	if err := rs.Err(); !errors.Is(err, fail) {
		t.Errorf("Err = %v, want %v", err, fail)
	}
	if !strings.Contains(buf.String(), "Procesando ventas") {
		t.Errorf("notice not logged:\n%s", buf.String())
	}
}
