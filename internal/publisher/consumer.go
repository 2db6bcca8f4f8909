package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"station_watch/internal/domain"
)

// UpdateGetter loads the update an event refers to.
type UpdateGetter interface {
	Get(ctx context.Context, id int64) (*domain.Update, error)
}

// Matcher fans an update out to subscriptions under an idempotency key.
type Matcher interface {
	Publish(ctx context.Context, update *domain.Update, idempotencyKey string) (int, []domain.Search, error)
}

// Consumer drains the update queue and drives the matcher. Delivery is
// at-least-once: failed events are requeued, and the matcher's idempotency
// key keeps redeliveries from duplicating results.
type Consumer struct {
	rabbit  *RabbitMQ
	updates UpdateGetter
	matcher Matcher
	logger  *slog.Logger
}

func NewConsumer(rabbit *RabbitMQ, updates UpdateGetter, matcher Matcher, logger *slog.Logger) *Consumer {
	return &Consumer{
		rabbit:  rabbit,
		updates: updates,
		matcher: matcher,
		logger:  logger.With("component", "consumer"),
	}
}

// Start consumes until the context is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.rabbit.channel.Consume(
		c.rabbit.queueName,
		"station-watch-matcher",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	c.logger.Info("consumer started", "queue", c.rabbit.queueName)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopped")
			return ctx.Err()
		case msg, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.handle(ctx, msg)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg amqp.Delivery) {
	var event UpdateEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		c.logger.Error("discarding unparseable event", "error", err)
		_ = msg.Nack(false, false)
		return
	}

	update, err := c.updates.Get(ctx, event.UpdateID)
	if errors.Is(err, domain.ErrNotFound) {
		// The update was cascade-deleted with its station; nothing to do.
		c.logger.Warn("discarding event for missing update", "update_id", event.UpdateID)
		_ = msg.Ack(false)
		return
	}
	if err != nil {
		c.logger.Error("load update failed, requeueing", "update_id", event.UpdateID, "error", err)
		_ = msg.Nack(false, true)
		return
	}

	success, duplicates, err := c.matcher.Publish(ctx, update, event.IdempotencyKey)
	if err != nil {
		c.logger.Error("publish failed, requeueing", "update_id", event.UpdateID, "error", err)
		_ = msg.Nack(false, true)
		return
	}

	c.logger.Debug("event handled",
		"update_id", event.UpdateID,
		"matched", success,
		"duplicates", len(duplicates),
	)
	_ = msg.Ack(false)
}
