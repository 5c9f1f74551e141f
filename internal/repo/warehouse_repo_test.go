package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/dwloader/internal/domain"
	"github.com/shaiso/dwloader/internal/repo"
	"github.com/shaiso/dwloader/internal/repo/repotest"
)

func TestWarehouseRepo_TimeRange(t *testing.T) {
	w := repotest.New(t)
	r := repo.NewWarehouseRepo(w.Connect(t), w.Catalog)

	empty, err := r.TimeRange(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.TimeRange{Table: "Dim_Tiempo"}, empty)

	w.SeedIntegration(t)

	tr, err := r.TimeRange(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, tr.Rows)
	assert.Equal(t, "2023-01-01", tr.First)
	assert.Equal(t, "2024-12-31", tr.Last)
}

func TestWarehouseRepo_CountTables(t *testing.T) {
	w := repotest.New(t)
	w.SeedIntegration(t, "INT_Ventas")
	r := repo.NewWarehouseRepo(w.Connect(t), w.Catalog)

	counts, err := r.CountTables(context.Background(), w.Catalog.IntegrationTables)
	require.NoError(t, err)
	require.Len(t, counts, len(w.Catalog.IntegrationTables))

	for i, c := range counts {
		assert.Equal(t, w.Catalog.IntegrationTables[i], c.Table)
		if c.Table == "INT_Ventas" {
			assert.True(t, c.IsEmpty())
		} else {
			assert.EqualValues(t, 1, c.Rows)
		}
	}
}

func TestWarehouseRepo_CountMissingTableFails(t *testing.T) {
	w := repotest.New(t)
	r := repo.NewWarehouseRepo(w.Connect(t), w.Catalog)

	_, err := r.CountRows(context.Background(), "INT_NoExiste")
	assert.Error(t, err)
}

func TestWarehouseRepo_RoutineExists(t *testing.T) {
	w := repotest.New(t)
	r := repo.NewWarehouseRepo(w.Connect(t), w.Catalog)
	name := w.Catalog.Routines.Load.Name

	ok, err := r.RoutineExists(context.Background(), name)
	require.NoError(t, err)
	assert.False(t, ok)

	w.AddRoutine(t, name, repotest.LoadRoutine)

	ok, err = r.RoutineExists(context.Background(), name)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWarehouseRepo_LatestControlProcess(t *testing.T) {
	w := repotest.New(t)
	r := repo.NewWarehouseRepo(w.Connect(t), w.Catalog)
	ctx := context.Background()

	_, err := r.LatestControlProcess(ctx, w.Catalog.ProcessName)
	assert.ErrorIs(t, err, repo.ErrNotFound)

	w.Exec(t, `INSERT INTO ETL_Control_Procesos
		(Nombre_Proceso, Estado, Registros_Procesados, Registros_Rechazados, Fecha_Inicio, Fecha_Fin)
		VALUES
		('INT_to_DW_Completo', 'ERROR', 5, 0, '2024-01-01 09:00:00', '2024-01-01 09:00:10'),
		('INT_to_DW_Completo', 'EXITOSO', 1200, 7, '2024-01-02 09:00:00', '2024-01-02 09:01:05'),
		('Otro_Proceso', 'EXITOSO', 1, 0, NULL, NULL)`)

	p, err := r.LatestControlProcess(ctx, w.Catalog.ProcessName)
	require.NoError(t, err)
	assert.EqualValues(t, 2, p.ID)
	assert.Equal(t, "EXITOSO", p.Status)
	assert.EqualValues(t, 1200, p.Processed)
	assert.EqualValues(t, 7, p.Rejected)
	assert.EqualValues(t, 65, p.DurationSeconds())

	other, err := r.LatestControlProcess(ctx, "Otro_Proceso")
	require.NoError(t, err)
	assert.Nil(t, other.StartedAt)
	assert.Zero(t, other.DurationSeconds())
}

func TestWarehouseRepo_TopRejections(t *testing.T) {
	w := repotest.New(t)
	r := repo.NewWarehouseRepo(w.Connect(t), w.Catalog)
	ctx := context.Background()

	groups, err := r.TopRejections(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, groups)

	w.Exec(t, `INSERT INTO ETL_Control_Procesos (Nombre_Proceso) VALUES ('INT_to_DW_Completo'), ('INT_to_DW_Completo')`)
	w.Exec(t, `INSERT INTO ETL_Registros_Rechazados (ID_Proceso, Tabla_Origen, Motivo_Rechazo) VALUES
		(1, 'INT_Ventas', 'anterior'),
		(1, 'INT_Ventas', 'anterior'),
		(1, 'INT_Ventas', 'anterior'),
		(2, 'INT_Ventas', 'Cliente inexistente'),
		(2, 'INT_Ventas', 'Cliente inexistente'),
		(2, 'INT_Entregas', 'Fecha invalida'),
		(2, 'INT_Entregas', 'Fecha invalida'),
		(2, 'INT_Cliente', 'Mail vacio'),
		(2, 'INT_Tienda', 'CP invalido'),
		(2, 'INT_Producto', 'Precio negativo'),
		(2, 'INT_Almacen', 'Sin ubicacion')`)

	groups, err = r.TopRejections(ctx, 5)
	require.NoError(t, err)
	require.Len(t, groups, 5)

	assert.Equal(t, domain.RejectionGroup{SourceTable: "INT_Entregas", Reason: "Fecha invalida", Count: 2}, groups[0])
	assert.Equal(t, domain.RejectionGroup{SourceTable: "INT_Ventas", Reason: "Cliente inexistente", Count: 2}, groups[1])
	assert.Equal(t, "INT_Almacen", groups[2].SourceTable)
	assert.Equal(t, "INT_Cliente", groups[3].SourceTable)
	assert.Equal(t, "INT_Producto", groups[4].SourceTable)

	for _, g := range groups {
		assert.NotEqual(t, "anterior", g.Reason)
	}
}
