// Package telemetry обеспечивает наблюдаемость загрузчика.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики
//
// CLI отправляет метрики запуска в Pushgateway, планировщик
// отдаёт их на /metrics endpoint.
package telemetry
