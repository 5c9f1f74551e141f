// Package mq публикует события запусков загрузчика в RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — обменник dwloader.runs и очередь истории
//   - publisher.go  — публикация события run.finished
//   - consumer.go   — чтение истории запусков (команда dwloader events)
//
// Публикация необязательна: без RABBITMQ_URL загрузчик работает без событий,
// а ошибка публикации становится предупреждением запуска.
package mq
