package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrMalformedMessage — сообщение нельзя разобрать как событие запуска.
// Такие сообщения отбрасываются без возврата в очередь.
var ErrMalformedMessage = errors.New("malformed run event")

// RunEventHandler обрабатывает событие завершения запуска.
// Ошибка возвращает сообщение в очередь один раз; повторная ошибка его отбрасывает.
type RunEventHandler func(ctx context.Context, event RunFinishedPayload) error

// DeliverySource выдаёт доставки очереди. Реализуется *Connection.
type DeliverySource interface {
	Deliveries(queue Queue, prefetch int) (<-chan amqp.Delivery, error)
	ReconnectNotify() <-chan struct{}
}

// ConsumerConfig — настройки Consumer.
type ConsumerConfig struct {
	Queue    Queue
	Handler  RunEventHandler
	Prefetch int
}

// Consumer читает события run.finished из очереди истории.
type Consumer struct {
	source   DeliverySource
	logger   *slog.Logger
	queue    Queue
	handler  RunEventHandler
	prefetch int
}

// NewConsumer создаёт Consumer. По умолчанию читается QueueRunHistory.
func NewConsumer(source DeliverySource, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	queue := cfg.Queue
	if queue == "" {
		queue = QueueRunHistory
	}
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}

	return &Consumer{
		source:   source,
		logger:   logger.With("queue", string(queue)),
		queue:    queue,
		handler:  cfg.Handler,
		prefetch: prefetch,
	}
}

// Run читает очередь до отмены ctx. После разрыва соединения ждёт
// переподключения и продолжает.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		deliveries, err := c.source.Deliveries(c.queue, c.prefetch)
		if err != nil {
			c.logger.Error("failed to start consuming", "error", err)
			if err := c.awaitReconnect(ctx); err != nil {
				return err
			}
			continue
		}

		c.logger.Info("consumer started")

		if err := c.process(ctx, deliveries); err != nil {
			return err
		}

		c.logger.Warn("deliveries channel closed, waiting for reconnect")
		if err := c.awaitReconnect(ctx); err != nil {
			return err
		}
	}
}

func (c *Consumer) awaitReconnect(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.source.ReconnectNotify():
		return nil
	}
}

// process возвращает nil, когда канал доставок закрыт, и ошибку ctx при отмене.
func (c *Consumer) process(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	event, err := DecodeRunFinished(d.Body)
	if err != nil {
		c.logger.Warn("dropping message", "message_id", d.MessageId, "error", err)
		c.settle(d.Nack(false, false))
		return
	}

	if err := c.handler(ctx, event); err != nil {
		requeue := !d.Redelivered
		c.logger.Error("run event handler failed",
			"run_id", event.RunID,
			"requeue", requeue,
			"error", err,
		)
		c.settle(d.Nack(false, requeue))
		return
	}

	c.settle(d.Ack(false))
}

func (c *Consumer) settle(err error) {
	if err != nil {
		c.logger.Warn("acknowledge failed", "error", err)
	}
}

// DecodeRunFinished разбирает тело сообщения run.finished.
// Сообщение другого типа или с неверным payload — ErrMalformedMessage.
func DecodeRunFinished(body []byte) (RunFinishedPayload, error) {
	var envelope struct {
		Type    MessageType     `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return RunFinishedPayload{}, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	if envelope.Type != MessageTypeRunFinished {
		return RunFinishedPayload{}, fmt.Errorf("%w: unexpected type %q", ErrMalformedMessage, envelope.Type)
	}

	var event RunFinishedPayload
	if err := json.Unmarshal(envelope.Payload, &event); err != nil {
		return RunFinishedPayload{}, fmt.Errorf("%w: payload: %w", ErrMalformedMessage, err)
	}
	if event.RunID == uuid.Nil {
		return RunFinishedPayload{}, fmt.Errorf("%w: missing run_id", ErrMalformedMessage)
	}
	return event, nil
}
