package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	mux.HandleFunc("GET /healthz", h.Health)
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics)
	}

	mux.Handle("GET /api/v1/schedule", chain(http.HandlerFunc(h.GetSchedule)))
	mux.Handle("POST /api/v1/runs", chain(http.HandlerFunc(h.TriggerRun)))
}
