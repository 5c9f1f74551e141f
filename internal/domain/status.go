package domain

// RunStatus — статус запуска загрузчика.
//
// Жизненный цикл:
//
//	RUNNING → SUCCEEDED
//	        ↘ FAILED
//	        ↘ ABORTED (оператор отказался продолжать после проверки)
type RunStatus string

const (
	// RunStatusRunning — запуск в процессе.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusSucceeded — процедура выполнена, транзакция зафиксирована.
	RunStatusSucceeded RunStatus = "SUCCEEDED"

	// RunStatusFailed — запуск завершился ошибкой.
	RunStatusFailed RunStatus = "FAILED"

	// RunStatusAborted — запуск прерван до каких-либо изменений.
	RunStatusAborted RunStatus = "ABORTED"
)

// IsTerminal возвращает true, если статус финальный.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed, RunStatusAborted:
		return true
	default:
		return false
	}
}

// ExitCode возвращает код завершения процесса для статуса:
// 0 только при успехе, 1 во всех остальных случаях.
func (s RunStatus) ExitCode() int {
	if s == RunStatusSucceeded {
		return 0
	}
	return 1
}

// TxOutcome — чем завершилась транзакция.
type TxOutcome string

const (
	// TxOpen — транзакция ещё не завершена.
	TxOpen TxOutcome = "OPEN"

	// TxCommitted — транзакция зафиксирована.
	TxCommitted TxOutcome = "COMMITTED"

	// TxRolledBack — транзакция откачена (в том числе после неудачного commit).
	TxRolledBack TxOutcome = "ROLLED_BACK"
)

// Stage — этап конвейера, выполняемый процедурой.
type Stage string

const (
	// StageIntegrate — STG → INT.
	StageIntegrate Stage = "integrate"

	// StageLoad — INT → DW.
	StageLoad Stage = "load"
)
