// Package scheduler запускает загрузку хранилища по расписанию.
//
// Scheduler проверяет наступление времени запуска на каждом тике и выполняет
// конвейер синхронно: следующий запуск не начнётся, пока не завершится текущий.
// Пропущенные за время долгого запуска моменты не догоняются.
//
// Структура:
//   - scheduler.go — Scheduler (Tick, Start, Status)
//   - cron.go      — разбор cron-выражений и вычисление следующего времени
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Runner:   pipeline,
//	    Cron:     "0 2 * * *",
//	    Timezone: "America/Argentina/Buenos_Aires",
//	    Options:  orchestrator.Options{Reprocess: false},
//	    Logger:   logger,
//	})
//
//	go sched.Start(ctx, time.Second)
//
// Запуск без оператора не может подтвердить проблемы проверки: конвейер
// собирается с Confirmer(force), который отказывает, если не задан SCHEDULE.force.
package scheduler
