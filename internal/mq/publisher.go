package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/dwloader/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// MessageTypeRunFinished — запуск конвейера завершён (успешно, с ошибкой или отменён).
const MessageTypeRunFinished MessageType = "run.finished"

// Publisher публикует события запусков в RabbitMQ.
type Publisher struct {
	conn     ChannelProvider
	exchange Exchange
	logger   *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn ChannelProvider, exchange Exchange, logger *slog.Logger) *Publisher {
	if exchange == "" {
		exchange = ExchangeRuns
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Publisher{
		conn:     conn,
		exchange: exchange,
		logger:   logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// RunFinishedPayload — итог запуска.
type RunFinishedPayload struct {
	RunID      uuid.UUID               `json:"run_id"`
	Stage      domain.Stage            `json:"stage"`
	Status     domain.RunStatus        `json:"status"`
	Reprocess  bool                    `json:"reprocess"`
	Reset      bool                    `json:"reset"`
	Error      string                  `json:"error,omitempty"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt *time.Time              `json:"finished_at,omitempty"`
	Summary    *domain.Summary         `json:"summary,omitempty"`
	Rejections []domain.RejectionGroup `json:"rejections,omitempty"`
	Warnings   []string                `json:"warnings,omitempty"`
}

// Publish публикует сообщение в обменник издателя с routing key.
func (p *Publisher) Publish(ctx context.Context, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(p.exchange), // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
				AppId:        "dwloader",
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", p.exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", p.exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishRunFinished публикует итог запуска.
// Routing key зависит от статуса: run.succeeded, run.failed, run.aborted.
func (p *Publisher) PublishRunFinished(ctx context.Context, payload RunFinishedPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeRunFinished,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, RoutingKeyFor(payload.Status), msg)
}

// RoutingKeyFor возвращает routing key события для статуса запуска.
func RoutingKeyFor(status domain.RunStatus) RoutingKey {
	return RoutingKey("run." + strings.ToLower(string(status)))
}
