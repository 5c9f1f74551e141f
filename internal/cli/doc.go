// Package cli реализует команды dwloader.
//
// # Обзор
//
// Каждая команда — один запуск загрузчика против хранилища из config.ini.
// Код завершения 0 означает успех, 1 — любую ошибку, отказ оператора
// или найденные проверкой проблемы (verify).
//
// # Ключевые компоненты
//
// ## App
//
// Зависимости команд: конфигурация, каталог, метрики, логгер, соединение
// с RabbitMQ. Создаётся лениво после разбора PersistentFlags.
//
//	app, err := cli.NewApp(cli.Options{ConfigPath: "config.ini"})
//	res, err := app.Pipeline(ctx, orchestrator.AlwaysConfirm).Run(ctx, opts)
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.Encoder) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Warn/Error) и вопросы — в stderr.
// Это позволяет использовать pipe: dwloader summary --json | jq .
//
// ## PromptConfirmer
//
// Подтверждение y/N, когда проверка нашла проблемы или запрошен сброс.
// Флаг --yes заменяет его на orchestrator.AlwaysConfirm.
//
// ## Commands
//
//   - run: verify → (reset) → load INT → DW
//   - integrate: STG → INT
//   - stage: CSV → STG (--integrate продолжает STG → INT)
//   - verify, reset, summary, rejections, events
//
// Каждая команда создаётся фабричной функцией (NewRunCmd и т.д.),
// принимающей appFn и outputFn.
package cli
