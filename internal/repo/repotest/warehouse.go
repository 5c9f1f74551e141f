// Package repotest поднимает хранилище DataShop в SQLite для тестов.
package repotest

import (
	"context"
	"database/sql"
	_ "embed"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/shaiso/dwloader/internal/catalog"
	"github.com/shaiso/dwloader/internal/config"
	"github.com/shaiso/dwloader/internal/repo"
)

//go:embed schema.sql
var schema string

// LoadRoutine — тело процедуры INT → DW для SQLite: пишет строку журнала,
// одно отклонение и одну продажу. :reprocess подставляется при вызове.
const LoadRoutine = `
INSERT INTO Dim_Cliente (CodCliente) SELECT 'C-' || COUNT(*) FROM Dim_Cliente;
INSERT INTO ETL_Control_Procesos
    (Nombre_Proceso, Estado, Registros_Procesados, Registros_Rechazados, Fecha_Inicio, Fecha_Fin)
VALUES ('INT_to_DW_Completo', 'EXITOSO', 10 + :reprocess, 1, '2024-03-01 10:00:00', '2024-03-01 10:00:42');
INSERT INTO ETL_Registros_Rechazados (ID_Proceso, Tabla_Origen, Motivo_Rechazo)
VALUES ((SELECT MAX(ID_Proceso) FROM ETL_Control_Procesos), 'INT_Ventas', 'Cliente inexistente');
INSERT INTO Fact_Ventas (ID_Cliente, Cantidad) VALUES ((SELECT MAX(ID_Cliente) FROM Dim_Cliente), 3);
`

// FailingRoutine — процедура, которая успевает записать факт и падает.
const FailingRoutine = `
INSERT INTO Dim_Cliente (CodCliente) VALUES ('C-fail');
INSERT INTO Fact_Ventas (ID_Cliente, Cantidad) VALUES ((SELECT MAX(ID_Cliente) FROM Dim_Cliente), 1);
INSERT INTO Tabla_Inexistente VALUES (1);
`

// Warehouse — временная БД SQLite со схемой хранилища.
type Warehouse struct {
	Path    string
	Config  config.DatabaseConfig
	Catalog *catalog.Catalog

	db *sql.DB
}

// New создаёт пустое хранилище во временном каталоге теста.
func New(t testing.TB) *Warehouse {
	t.Helper()

	cat := catalog.Default()
	path := filepath.Join(t.TempDir(), "warehouse.db")

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	for _, ds := range cat.Staging.Datasets {
		if _, err := db.Exec(stagingDDL(ds, cat.Staging.LoadStampColumn)); err != nil {
			t.Fatalf("create %s: %v", ds.Table, err)
		}
	}

	return &Warehouse{
		Path: path,
		Config: config.DatabaseConfig{
			Database:          path,
			Driver:            "sqlite",
			TrustedConnection: "yes",
			ConnectTimeout:    5 * time.Second,
		},
		Catalog: cat,
		db:      db,
	}
}

func stagingDDL(ds catalog.Dataset, stamp string) string {
	cols := make([]string, 0, len(ds.Columns)+1)
	for _, c := range ds.Columns {
		cols = append(cols, `"`+c+`" TEXT`)
	}
	cols = append(cols, `"`+stamp+`" TEXT`)
	return `CREATE TABLE "` + ds.Table + `" (` + strings.Join(cols, ", ") + `)`
}

// Logger — логгер, отбрасывающий записи.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Connect открывает сессию загрузчика и закрывает её по завершении теста.
func (w *Warehouse) Connect(t testing.TB) *repo.Session {
	t.Helper()

	s, err := repo.Connect(context.Background(), w.Config, Logger())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// Exec выполняет SQL в отдельном соединении.
func (w *Warehouse) Exec(t testing.TB, query string, args ...any) {
	t.Helper()
	if _, err := w.db.Exec(query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

// Count возвращает количество строк в таблице.
func (w *Warehouse) Count(t testing.TB, table string) int64 {
	t.Helper()
	var n int64
	if err := w.db.QueryRow(`SELECT COUNT(*) FROM "` + table + `"`).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

// Scalar возвращает целое значение первой колонки первой строки запроса.
func (w *Warehouse) Scalar(t testing.TB, query string, args ...any) int64 {
	t.Helper()
	var n int64
	if err := w.db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("scalar %q: %v", query, err)
	}
	return n
}

// SetRoutine заменяет тело процедуры.
func (w *Warehouse) SetRoutine(t testing.TB, name, body string) {
	t.Helper()
	w.Exec(t, `UPDATE etl_routines SET body = ? WHERE name = ?`, body, name)
}

// AddRoutine регистрирует процедуру (тело SQL) под именем.
func (w *Warehouse) AddRoutine(t testing.TB, name, body string) {
	t.Helper()
	w.Exec(t, `INSERT INTO etl_routines (name, body) VALUES (?, ?)`, name, body)
}

// SeedIntegration заполняет измерение времени и все таблицы INT,
// кроме перечисленных в skip.
func (w *Warehouse) SeedIntegration(t testing.TB, skip ...string) {
	t.Helper()

	w.Exec(t, `INSERT INTO Dim_Tiempo (Fecha) VALUES ('2023-01-01'), ('2023-06-15'), ('2024-12-31')`)

	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipped[s] = true
	}
	for _, table := range w.Catalog.IntegrationTables {
		if skipped[table] {
			continue
		}
		w.Exec(t, `INSERT INTO "`+table+`" (payload) VALUES ('seed')`)
	}
}

// Ready — хранилище, готовое к запуску: INT заполнены, процедура загрузки есть.
func Ready(t testing.TB) *Warehouse {
	t.Helper()
	w := New(t)
	w.SeedIntegration(t)
	w.AddRoutine(t, w.Catalog.Routines.Load.Name, LoadRoutine)
	return w
}
