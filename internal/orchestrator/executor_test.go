package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/golang-sql/sqlexp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/dwloader/internal/repo"
	"github.com/shaiso/dwloader/internal/repo/repotest"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeResultSets — наборы из одной колонки "message".
type fakeResultSets struct {
	sets    [][]any
	set     int
	row     int
	failErr error
	err     error
	closed  bool
}

func (f *fakeResultSets) Columns() ([]string, error) { return []string{"message"}, nil }

func (f *fakeResultSets) Next() bool {
	if f.row < len(f.sets[f.set]) {
		f.row++
		return true
	}
	return false
}

func (f *fakeResultSets) Scan(dest ...any) error {
	*dest[0].(*any) = f.sets[f.set][f.row-1]
	return nil
}

func (f *fakeResultSets) NextResultSet() bool {
	if f.set+1 < len(f.sets) {
		f.set++
		f.row = 0
		return true
	}
	f.err = f.failErr
	return false
}

func (f *fakeResultSets) Err() error { return f.err }

func (f *fakeResultSets) Close() error {
	f.closed = true
	return nil
}

func TestDrain_AllResultSets(t *testing.T) {
	rs := &fakeResultSets{sets: [][]any{
		{"step 1", []byte("step 2")},
		{},
		{"done"},
	}}

	stats, err := Drain(rs, DefaultMaxResultSets, discardLogger())
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if stats.ResultSets != 3 {
		t.Errorf("result sets = %d, want 3", stats.ResultSets)
	}
	if stats.Rows != 3 {
		t.Errorf("rows = %d, want 3", stats.Rows)
	}
}

func TestDrain_ErrorAfterFirstSet(t *testing.T) {
	raised := errors.New("Msg 547: conflicted with FOREIGN KEY constraint")
	rs := &fakeResultSets{sets: [][]any{{"starting"}}, failErr: raised}

	_, err := Drain(rs, DefaultMaxResultSets, discardLogger())
	if !errors.Is(err, raised) {
		t.Fatalf("expected routine error, got %v", err)
	}
}

func TestDrain_Bounded(t *testing.T) {
	sets := make([][]any, 10)
	for i := range sets {
		sets[i] = []any{i}
	}

	stats, err := Drain(&fakeResultSets{sets: sets}, 4, discardLogger())
	if !errors.Is(err, ErrTooManyResultSets) {
		t.Fatalf("expected ErrTooManyResultSets, got %v", err)
	}
	if stats.ResultSets != 4 {
		t.Errorf("result sets = %d, want 4", stats.ResultSets)
	}
}

type messageQueue []sqlexp.RawMessage

func (q *messageQueue) Message(context.Context) sqlexp.RawMessage {
	if len(*q) == 0 {
		return sqlexp.MsgNextResultSet{}
	}
	m := (*q)[0]
	*q = (*q)[1:]
	return m
}

func TestDrain_RoutineErrorDeliveredAsMessage(t *testing.T) {
	fail := errors.New("mssql: Error en carga de Fact_Ventas")
	q := &messageQueue{
		sqlexp.MsgNext{},
		sqlexp.MsgError{Error: fail},
		sqlexp.MsgNextResultSet{},
	}
	rows := &fakeResultSets{sets: [][]any{{"step 1"}}}
	rs := repo.NewMessageResultSets(context.Background(), rows, q, discardLogger())

	stats, err := Drain(rs, DefaultMaxResultSets, discardLogger())
	require.ErrorIs(t, err, fail)
	assert.Equal(t, 1, stats.Rows)
}

func TestExecutor_CommitsRoutine(t *testing.T) {
	w := repotest.Ready(t)
	s := w.Connect(t)

	_, err := NewExecutor(discardLogger()).Execute(context.Background(), s, w.Catalog.Routines.Load, false)
	require.NoError(t, err)

	assert.Equal(t, 1, s.Stats().Commits)
	assert.Equal(t, 0, s.Stats().Rollbacks)
	assert.EqualValues(t, 1, w.Count(t, "Fact_Ventas"))
	assert.EqualValues(t, 1, w.Count(t, "ETL_Control_Procesos"))
}

func TestExecutor_PassesReprocessFlag(t *testing.T) {
	w := repotest.Ready(t)
	s := w.Connect(t)
	ctx := context.Background()

	_, err := NewExecutor(discardLogger()).Execute(ctx, s, w.Catalog.Routines.Load, true)
	require.NoError(t, err)

	summary, err := NewReporter(w.Catalog, discardLogger()).Summarize(ctx, s)
	require.NoError(t, err)
	require.NotNil(t, summary.Process)
	assert.EqualValues(t, 11, summary.Process.Processed)
}

func TestExecutor_FailureRollsBackAllWrites(t *testing.T) {
	w := repotest.New(t)
	w.AddRoutine(t, w.Catalog.Routines.Load.Name, repotest.FailingRoutine)
	s := w.Connect(t)

	_, err := NewExecutor(discardLogger()).Execute(context.Background(), s, w.Catalog.Routines.Load, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOrchestration)

	assert.Equal(t, 0, s.Stats().Commits)
	assert.Equal(t, 1, s.Stats().Rollbacks)
	assert.EqualValues(t, 0, w.Count(t, "Fact_Ventas"))
	assert.EqualValues(t, 0, w.Count(t, "Dim_Cliente"))
}

func TestExecutor_MissingRoutine(t *testing.T) {
	w := repotest.New(t)
	s := w.Connect(t)

	_, err := NewExecutor(discardLogger()).Execute(context.Background(), s, w.Catalog.Routines.Load, false)
	assert.ErrorIs(t, err, ErrOrchestration)
	assert.Equal(t, 1, s.Stats().Rollbacks)
}

func TestExecutor_IgnoresCancellationOnceStarted(t *testing.T) {
	w := repotest.Ready(t)
	s := w.Connect(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExecutor(discardLogger()).Execute(ctx, s, w.Catalog.Routines.Load, false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, w.Count(t, "Fact_Ventas"))
}
