package domain

import "time"

// ControlProcess — строка журнала ETL_Control_Procesos.
//
// Создаётся процедурой преобразования, загрузчик её только читает.
// Для одного имени процесса последняя строка (по ID) отражает
// результат последнего запуска.
type ControlProcess struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Status     string     `json:"status"`
	Processed  int64      `json:"processed"`
	Rejected   int64      `json:"rejected"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// DurationSeconds возвращает длительность процесса в целых секундах.
// Возвращает 0, если одна из меток времени отсутствует.
func (p *ControlProcess) DurationSeconds() int64 {
	if p.StartedAt == nil || p.FinishedAt == nil {
		return 0
	}
	return int64(p.FinishedAt.Sub(*p.StartedAt) / time.Second)
}

// RejectionGroup — количество отклонённых записей по таблице-источнику и причине.
type RejectionGroup struct {
	SourceTable string `json:"source_table"`
	Reason      string `json:"reason"`
	Count       int64  `json:"count"`
}

// TableCount — количество строк в таблице.
type TableCount struct {
	Table string `json:"table"`
	Rows  int64  `json:"rows"`
}

// IsEmpty возвращает true для пустой таблицы.
func (c TableCount) IsEmpty() bool {
	return c.Rows == 0
}

// TimeRange — заполненность измерения времени.
type TimeRange struct {
	Table string `json:"table"`
	Rows  int64  `json:"rows"`

	// First и Last — минимальная и максимальная дата в формате YYYY-MM-DD.
	First string `json:"first,omitempty"`
	Last  string `json:"last,omitempty"`
}

// Summary — итог успешного запуска.
type Summary struct {
	// Process — последняя строка журнала для имени процесса.
	// Nil, если процедура не оставила записи.
	Process *ControlProcess `json:"process,omitempty"`

	// FactRows — текущее количество строк в таблицах фактов.
	FactRows []TableCount `json:"fact_rows"`
}
