// Package api содержит HTTP-интерфейс планировщика.
//
// Структура:
//   - handler.go    — Handler (состояние планировщика, ручной запуск)
//   - routes.go     — регистрация маршрутов
//   - middleware.go — middleware (logging, recovery)
//   - response.go   — унифицированные JSON-ответы
//
// Маршруты:
//
//	GET  /healthz           — liveness
//	GET  /api/v1/schedule   — состояние расписания и последнего запуска
//	POST /api/v1/runs       — запустить загрузку на ближайшем тике
//	GET  /metrics           — Prometheus
package api
