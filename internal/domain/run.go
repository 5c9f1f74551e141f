package domain

import (
	"time"

	"github.com/google/uuid"
)

// Run — один запуск загрузчика.
//
// Run живёт только в памяти процесса: долговременный след запуска
// оставляет сама процедура в журнале ETL_Control_Procesos.
type Run struct {
	// ID — идентификатор запуска для корреляции логов, метрик и событий.
	ID uuid.UUID `json:"id"`

	// Stage — выполняемый этап.
	Stage Stage `json:"stage"`

	// Reprocess — флаг полной переобработки, передаётся процедуре.
	Reprocess bool `json:"reprocess"`

	// Reset — перед запуском выполнялся сброс таблиц.
	Reset bool `json:"reset"`

	// Status — текущий статус.
	Status RunStatus `json:"status"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — текст ошибки для FAILED и причина для ABORTED.
	Error string `json:"error,omitempty"`
}

// NewRun создаёт запуск в статусе RUNNING.
func NewRun(stage Stage, reprocess, reset bool) *Run {
	return &Run{
		ID:        uuid.New(),
		Stage:     stage,
		Reprocess: reprocess,
		Reset:     reset,
		Status:    RunStatusRunning,
		StartedAt: time.Now(),
	}
}

// Duration возвращает продолжительность запуска.
// Возвращает 0, если запуск ещё не завершён.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// MarkSucceeded переводит запуск в статус SUCCEEDED.
func (r *Run) MarkSucceeded() {
	r.finish(RunStatusSucceeded, "")
}

// MarkFailed переводит запуск в статус FAILED с ошибкой.
func (r *Run) MarkFailed(err string) {
	r.finish(RunStatusFailed, err)
}

// MarkAborted переводит запуск в статус ABORTED.
func (r *Run) MarkAborted(reason string) {
	r.finish(RunStatusAborted, reason)
}

func (r *Run) finish(status RunStatus, err string) {
	if r.Status.IsTerminal() {
		return
	}
	now := time.Now()
	r.Status = status
	r.FinishedAt = &now
	r.Error = err
}
