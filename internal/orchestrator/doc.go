// Package orchestrator проводит один запуск загрузки хранилища.
//
// Порядок этапов:
//   - Reset (по запросу) — очистка фактов, журналов и измерений одной транзакцией
//   - Verify — проверка предусловий: измерение времени, таблицы INT, процедура
//   - Confirm — решение оператора, если проверка нашла проблемы
//   - Execute — вызов процедуры в транзакции, фиксация или откат ровно один раз
//   - Diagnostics — сводка после успеха, частые причины отклонений после сбоя
//
// Ошибка любого этапа прерывает запуск, соединение освобождается всегда.
// Ошибки сброса и диагностики не фатальны и попадают в Result.Warnings.
package orchestrator
