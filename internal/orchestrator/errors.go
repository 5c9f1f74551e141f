package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrAborted — оператор отказался продолжать после проверки предусловий.
	// Изменений в хранилище нет.
	ErrAborted = errors.New("run aborted by operator")

	// ErrVerification — запрос проверки предусловий не выполнился
	// (например, таблица не существует).
	ErrVerification = errors.New("prerequisite verification failed")

	// ErrOrchestration — процедура преобразования завершилась ошибкой,
	// транзакция откачена.
	ErrOrchestration = errors.New("orchestration error")

	// ErrTooManyResultSets — процедура вернула больше наборов результатов, чем допустимо.
	ErrTooManyResultSets = errors.New("too many result sets")

	// ErrReset — сброс не выполнен, транзакция сброса откачена. Не фатальна.
	ErrReset = errors.New("reset failed")

	// ErrSummary — диагностика недоступна. Не фатальна, на итог запуска не влияет.
	ErrSummary = errors.New("summary unavailable")
)
