package repo_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/dwloader/internal/config"
	"github.com/shaiso/dwloader/internal/domain"
	"github.com/shaiso/dwloader/internal/repo"
	"github.com/shaiso/dwloader/internal/repo/repotest"
)

func TestConnect_InvalidConfigFailsBeforeNetwork(t *testing.T) {
	cfg := config.DatabaseConfig{
		Driver:            config.DefaultDriver,
		TrustedConnection: "yes",
		ConnectTimeout:    time.Second,
	}

	_, err := repo.Connect(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfiguration)
	assert.NotErrorIs(t, err, repo.ErrConnection)
}

func TestConnect_UnreachableDatabase(t *testing.T) {
	cfg := config.DatabaseConfig{
		Database:       filepath.Join(t.TempDir(), "missing", "dir", "warehouse.db"),
		Driver:         "sqlite",
		ConnectTimeout: time.Second,
	}

	_, err := repo.Connect(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, repo.ErrConnection)
}

func TestTx_CommitExactlyOnce(t *testing.T) {
	w := repotest.New(t)
	s := w.Connect(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.ExecContext(ctx, `INSERT INTO Dim_Tiempo (Fecha) VALUES ('2024-01-01')`)
	require.NoError(t, err)

	require.NoError(t, tx.Commit())
	assert.Equal(t, domain.TxCommitted, tx.Outcome())
	assert.ErrorIs(t, tx.Commit(), repo.ErrTxDone)
	assert.ErrorIs(t, tx.Rollback(), repo.ErrTxDone)

	assert.Equal(t, repo.TxStats{Commits: 1}, s.Stats())
	assert.EqualValues(t, 1, w.Count(t, "Dim_Tiempo"))
}

func TestTx_RollbackDiscardsWrites(t *testing.T) {
	w := repotest.New(t)
	s := w.Connect(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.ExecContext(ctx, `INSERT INTO Dim_Tiempo (Fecha) VALUES ('2024-01-01')`)
	require.NoError(t, err)

	require.NoError(t, tx.Rollback())
	assert.ErrorIs(t, tx.Commit(), repo.ErrTxDone)

	assert.Equal(t, repo.TxStats{Rollbacks: 1}, s.Stats())
	assert.EqualValues(t, 0, w.Count(t, "Dim_Tiempo"))
}

func TestSession_OneTransactionAtATime(t *testing.T) {
	s := repotest.New(t).Connect(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	_, err = s.Begin(ctx)
	assert.ErrorIs(t, err, repo.ErrTxActive)

	require.NoError(t, tx.Rollback())

	tx2, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx2.Commit())
}

func TestSession_CloseRollsBackAndIsIdempotent(t *testing.T) {
	w := repotest.New(t)
	s, err := repo.Connect(context.Background(), w.Config, nil)
	require.NoError(t, err)

	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	_, err = tx.ExecContext(context.Background(), `INSERT INTO Dim_Tiempo (Fecha) VALUES ('2024-01-01')`)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.Equal(t, domain.TxRolledBack, tx.Outcome())
	assert.Equal(t, repo.TxStats{Rollbacks: 1}, s.Stats())
	assert.EqualValues(t, 0, w.Count(t, "Dim_Tiempo"))

	_, err = s.Begin(context.Background())
	assert.True(t, errors.Is(err, repo.ErrSessionClosed))
}
