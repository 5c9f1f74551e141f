package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.RunFinished("load", "SUCCEEDED", time.Unix(1700000000, 0))
	m.RunFinished("load", "FAILED", time.Unix(1700000100, 0))
	m.RunFinished("load", "FAILED", time.Unix(1700000200, 0))
	m.TxFinished(1, 2)
	m.Warning("reset")
	m.SetProcessRecords(1200, 7)
	m.SetFactRows("Fact_Ventas", 42)
	m.AddStagedRows("STG_Clientes", 10)
	m.AddStagedRows("STG_Clientes", 5)

	if got := testutil.ToFloat64(m.runs.WithLabelValues("load", "FAILED")); got != 2 {
		t.Errorf("failed runs = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.lastRun); got != 1700000200 {
		t.Errorf("last run = %v", got)
	}
	if got := testutil.ToFloat64(m.transactions.WithLabelValues("rollback")); got != 2 {
		t.Errorf("rollbacks = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.rejected); got != 7 {
		t.Errorf("rejected = %v, want 7", got)
	}
	if got := testutil.ToFloat64(m.factRows.WithLabelValues("Fact_Ventas")); got != 42 {
		t.Errorf("fact rows = %v, want 42", got)
	}
	if got := testutil.ToFloat64(m.stagedRows.WithLabelValues("STG_Clientes")); got != 15 {
		t.Errorf("staged rows = %v, want 15", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	m.RunFinished("load", "SUCCEEDED", time.Now())
	m.ObservePhase("execute", time.Second)
	m.Warning("summary")
	if err := m.Push(context.Background(), "http://unused", "job"); err != nil {
		t.Errorf("Push on nil metrics: %v", err)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.Warning("summary")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `dwloader_warnings_total{kind="summary"} 1`) {
		t.Errorf("metrics output missing warning counter:\n%s", rec.Body.String())
	}
}

func TestMetrics_Push(t *testing.T) {
	var (
		method, path string
		body         string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewMetrics()
	m.RunFinished("load", "SUCCEEDED", time.Now())

	if err := m.Push(context.Background(), srv.URL, "dwloader"); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if method != http.MethodPut {
		t.Errorf("method = %s, want PUT", method)
	}
	if path != "/metrics/job/dwloader" {
		t.Errorf("path = %s", path)
	}
	if !strings.Contains(body, "dwloader_runs_total") {
		t.Error("pushed body should contain runs counter")
	}
}

func TestMetrics_PushEmptyURL(t *testing.T) {
	if err := NewMetrics().Push(context.Background(), "", "dwloader"); err != nil {
		t.Errorf("Push with empty url: %v", err)
	}
}
