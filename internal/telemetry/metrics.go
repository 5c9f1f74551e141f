package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "dwloader"

// Metrics — метрики загрузчика в собственном реестре.
//
// Методы допускают nil-получатель: без метрик вызовы ничего не делают.
type Metrics struct {
	registry *prometheus.Registry

	runs          *prometheus.CounterVec
	phaseDuration *prometheus.HistogramVec
	transactions  *prometheus.CounterVec
	warnings      *prometheus.CounterVec
	processed     prometheus.Gauge
	rejected      prometheus.Gauge
	factRows      *prometheus.GaugeVec
	stagedRows    *prometheus.CounterVec
	lastRun       prometheus.Gauge
}

// NewMetrics регистрирует метрики в новом реестре.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by stage and outcome.",
		}, []string{"stage", "outcome"}),
		phaseDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Duration of pipeline phases.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		}, []string{"phase"}),
		transactions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Finished transactions by result.",
		}, []string{"result"}),
		warnings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warnings_total",
			Help:      "Non-fatal problems by kind.",
		}, []string{"kind"}),
		processed: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_processed_records",
			Help:      "Records processed by the last transform run.",
		}),
		rejected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_rejected_records",
			Help:      "Records rejected by the last transform run.",
		}),
		factRows: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fact_rows",
			Help:      "Row count of fact tables after the last run.",
		}, []string{"table"}),
		stagedRows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "staged_rows_total",
			Help:      "Rows loaded into staging tables.",
		}, []string{"table"}),
		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last finished run.",
		}),
	}
}

// Registry возвращает реестр метрик.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler возвращает HTTP-обработчик /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObservePhase записывает длительность фазы.
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// RunFinished учитывает завершённый запуск.
func (m *Metrics) RunFinished(stage, outcome string, at time.Time) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(stage, outcome).Inc()
	m.lastRun.Set(float64(at.Unix()))
}

// TxFinished учитывает фиксации и откаты.
func (m *Metrics) TxFinished(commits, rollbacks int) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues("commit").Add(float64(commits))
	m.transactions.WithLabelValues("rollback").Add(float64(rollbacks))
}

// Warning учитывает нефатальную проблему.
func (m *Metrics) Warning(kind string) {
	if m == nil {
		return
	}
	m.warnings.WithLabelValues(kind).Inc()
}

// SetProcessRecords запоминает итог процедуры из журнала.
func (m *Metrics) SetProcessRecords(processed, rejected int64) {
	if m == nil {
		return
	}
	m.processed.Set(float64(processed))
	m.rejected.Set(float64(rejected))
}

// SetFactRows запоминает количество строк таблицы фактов.
func (m *Metrics) SetFactRows(table string, rows int64) {
	if m == nil {
		return
	}
	m.factRows.WithLabelValues(table).Set(float64(rows))
}

// AddStagedRows учитывает строки, загруженные в staging-таблицу.
func (m *Metrics) AddStagedRows(table string, rows int) {
	if m == nil {
		return
	}
	m.stagedRows.WithLabelValues(table).Add(float64(rows))
}

// Push отправляет метрики в Pushgateway. Пустой url — ничего не делает.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if m == nil || url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
