package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// ExchangeRuns — обменник событий запусков по умолчанию (topic).
const ExchangeRuns Exchange = "dwloader.runs"

// QueueRunHistory — очередь истории запусков: получает все события run.*.
const QueueRunHistory Queue = "dwloader.runs.history"

// Routing keys.
const (
	RoutingKeyRunSucceeded RoutingKey = "run.succeeded"
	RoutingKeyRunFailed    RoutingKey = "run.failed"
	RoutingKeyRunAborted   RoutingKey = "run.aborted"

	// RoutingKeyRunAll — шаблон привязки для всех событий запусков.
	RoutingKeyRunAll RoutingKey = "run.#"
)

// SetupTopology объявляет обменник событий и очередь истории.
// Повторный вызов с теми же параметрами безопасен.
func SetupTopology(ctx context.Context, provider ChannelProvider, exchange Exchange) error {
	return provider.WithChannel(ctx, func(ch Channel) error {
		err := ch.ExchangeDeclare(
			string(exchange), // name
			"topic",          // type
			true,             // durable
			false,            // auto-deleted
			false,            // internal
			false,            // no-wait
			nil,              // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", exchange, err)
		}

		_, err = ch.QueueDeclare(
			string(QueueRunHistory), // name
			true,                    // durable
			false,                   // delete when unused
			false,                   // exclusive
			false,                   // no-wait
			amqp.Table{"x-max-length": 1000},
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", QueueRunHistory, err)
		}

		err = ch.QueueBind(
			string(QueueRunHistory), // queue name
			string(RoutingKeyRunAll),
			string(exchange),
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", QueueRunHistory, exchange, err)
		}

		return nil
	})
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo(exchange Exchange) string {
	return fmt.Sprintf(`
  dwloader RabbitMQ topology:

    %s (topic)
    └── %s [routing: %s, max-length: 1000]
            Consumer: dwloader events
  `, exchange, QueueRunHistory, RoutingKeyRunAll)
}
