// Package rabbitmq publishes chat lifecycle and audit events to a topic
// exchange. Without a reachable broker it degrades to a logging noop.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ErrConnectionLost is returned once the broker connection has dropped.
var ErrConnectionLost = errors.New("rabbitmq connection lost")

// Publisher publishes audit and websocket lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	PublishWithHeaders(ctx context.Context, routingKey string, event any, headers map[string]string) error
	Close() error
}

// Describer is implemented by events that can summarize themselves for the
// noop log line.
type Describer interface {
	Describe() []zap.Field
}

// NewPublisher connects to amqpURL and declares a durable topic exchange.
// Any failure, including an empty URL, yields a noop publisher.
func NewPublisher(amqpURL, exchange string, logger *zap.Logger) Publisher {
	if amqpURL == "" {
		logger.Info("rabbitmq disabled, using noop", zap.String("reason", "empty amqp url"))
		return noopPublisher{reason: "empty amqp url", logger: logger}
	}
	p, err := dial(amqpURL, exchange, logger)
	if err != nil {
		logger.Warn("rabbitmq disabled, using noop", zap.Error(err))
		return noopPublisher{reason: err.Error(), logger: logger}
	}
	logger.Info("rabbitmq connected", zap.String("exchange", exchange))
	return p
}

func dial(amqpURL, exchange string, logger *zap.Logger) (*amqpPublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	// durable, not auto-deleted, not internal, wait for the ack
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	p := &amqpPublisher{conn: conn, ch: ch, exchange: exchange, logger: logger}
	go p.watch(conn.NotifyClose(make(chan *amqp.Error, 1)))
	return p, nil
}

type amqpPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	logger   *zap.Logger
	lost     atomic.Bool
}

// watch flags the publisher once the broker goes away. A nil error on the
// channel means Close was called locally.
func (p *amqpPublisher) watch(closed <-chan *amqp.Error) {
	if err, ok := <-closed; ok && err != nil {
		p.lost.Store(true)
		p.logger.Error("rabbitmq connection lost", zap.Int("code", err.Code), zap.String("reason", err.Reason))
	}
}

func (p *amqpPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	return p.PublishWithHeaders(ctx, routingKey, event, nil)
}

func (p *amqpPublisher) PublishWithHeaders(ctx context.Context, routingKey string, event any, headers map[string]string) error {
	if p.lost.Load() {
		return ErrConnectionLost
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", routingKey, err)
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Headers:      toTable(headers),
		Body:         body,
	})
	if err != nil {
		p.logger.Warn("rabbitmq publish failed", zap.String("routing_key", routingKey), zap.Error(err))
	}
	return err
}

func (p *amqpPublisher) Close() error {
	_ = p.ch.Close()
	return p.conn.Close()
}

func toTable(headers map[string]string) amqp.Table {
	if len(headers) == 0 {
		return nil
	}
	table := make(amqp.Table, len(headers))
	for key, value := range headers {
		table[key] = value
	}
	return table
}

type noopPublisher struct {
	reason string
	logger *zap.Logger
}

func (n noopPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	return n.PublishWithHeaders(ctx, routingKey, event, nil)
}

func (n noopPublisher) PublishWithHeaders(_ context.Context, routingKey string, event any, _ map[string]string) error {
	if n.logger == nil {
		return nil
	}
	fields := []zap.Field{zap.String("routing_key", routingKey)}
	if d, ok := event.(Describer); ok {
		fields = append(fields, d.Describe()...)
	}
	n.logger.Debug("rabbitmq noop publish", fields...)
	return nil
}

func (noopPublisher) Close() error { return nil }

// PublisherMode reports "amqp", "degraded" after a lost connection, or "noop".
func PublisherMode(p Publisher) string {
	switch pub := p.(type) {
	case *amqpPublisher:
		if pub.lost.Load() {
			return "degraded"
		}
		return "amqp"
	case noopPublisher:
		return "noop"
	default:
		return "unknown"
	}
}

// PublisherNoopReason says why p fell back to noop, if it did.
func PublisherNoopReason(p Publisher) string {
	if publisher, ok := p.(noopPublisher); ok {
		return publisher.reason
	}
	return ""
}
