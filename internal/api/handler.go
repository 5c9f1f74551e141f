package api

import (
	"log/slog"
	"net/http"

	"github.com/shaiso/dwloader/internal/scheduler"
)

// Scheduler — операции планировщика, доступные через API.
type Scheduler interface {
	Status() scheduler.Status
	Trigger() bool
}

// Handler — обработчик API с зависимостями.
type Handler struct {
	scheduler Scheduler
	metrics   http.Handler
	logger    *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Scheduler Scheduler

	// Metrics — обработчик /metrics (необязателен).
	Metrics http.Handler

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		scheduler: cfg.Scheduler,
		metrics:   cfg.Metrics,
		logger:    logger,
	}
}

// Health отвечает 200, пока процесс жив.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetSchedule возвращает состояние расписания.
func (h *Handler) GetSchedule(w http.ResponseWriter, _ *http.Request) {
	Success(w, h.scheduler.Status())
}

// TriggerRun переносит запуск на ближайший тик.
// 409, если загрузка уже выполняется: запуски никогда не пересекаются.
func (h *Handler) TriggerRun(w http.ResponseWriter, _ *http.Request) {
	if !h.scheduler.Trigger() {
		Conflict(w, "a run is already in progress")
		return
	}
	Accepted(w, h.scheduler.Status())
}
