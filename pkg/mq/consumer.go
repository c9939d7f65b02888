package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"workledger/pkg/metrics"
	"workledger/pkg/otel"
	"workledger/pkg/trace"
)

type MessageHandler func(ctx context.Context, data json.RawMessage) error

// RetryPolicy decides whether a failed delivery goes back to the queue.
// The key identifies the message across redeliveries.
type RetryPolicy interface {
	ShouldRequeue(ctx context.Context, key string, err error) bool
	// Reset forgets earlier failed deliveries of key.
	Reset(ctx context.Context, key string)
}

// DeadLetterer parks messages that will not be retried.
type DeadLetterer interface {
	PublishToDLQ(ctx context.Context, routingKey string, body []byte, reason string) error
}

type Consumer struct {
	channel     *amqp091.Channel
	queue       amqp091.Queue
	routingKey  string
	consumerTag string
	handler     MessageHandler
	retry       RetryPolicy
	dlq         DeadLetterer
	conn        *amqp091.Connection
	logger      *zap.Logger
}

// NewConsumer creates a consumer for a specific routing key.
func NewConsumer(url, queueName, routingKey string, logger *zap.Logger) (*Consumer, error) {
	conn, err := NewConnection(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := DeclareExchange(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, routingKey, ExchangeName, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	if err := ch.Qos(16, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set qos: %w", err)
	}

	if err := DeclareDLQExchange(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare dlq exchange: %w", err)
	}
	if _, err := DeclareDLQQueue(ch, routingKey); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logger.Info("Consumer initialized",
		zap.String("routing_key", routingKey),
		zap.String("queue", queueName),
		zap.String("exchange", ExchangeName),
	)

	return &Consumer{
		conn:        conn,
		channel:     ch,
		queue:       q,
		routingKey:  routingKey,
		consumerTag: "engine." + routingKey,
		logger:      logger,
	}, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

// SetRetryPolicy installs the requeue decision; without one every failure is requeued.
func (c *Consumer) SetRetryPolicy(p RetryPolicy) {
	c.retry = p
}

func (c *Consumer) SetDeadLetterer(d DeadLetterer) {
	c.dlq = d
}

func (c *Consumer) IsConnected() bool {
	return c.conn != nil && !c.conn.IsClosed()
}

// Stop cancels delivery; StartConsuming returns once in-flight messages are done.
func (c *Consumer) Stop() {
	if c.channel != nil {
		if err := c.channel.Cancel(c.consumerTag, false); err != nil {
			c.logger.Warn("Failed to cancel consumer",
				zap.String("routing_key", c.routingKey),
				zap.Error(err),
			)
		}
	}
}

func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// StartConsuming starts consuming messages. This method blocks and should be called in a goroutine.
func (c *Consumer) StartConsuming() error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}

	deliveries, err := c.channel.Consume(
		c.queue.Name,
		c.consumerTag,
		false, // 手动ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started consuming messages",
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name),
	)

	for msg := range deliveries {
		c.handle(msg)
	}

	c.logger.Info("Consumer stopped", zap.String("routing_key", c.routingKey))
	return nil
}

// handle 保证每条消息都会被 ack 或 nack
func (c *Consumer) handle(msg amqp091.Delivery) {
	start := time.Now()
	carrier := otel.NewMQHeaderCarrier(msg.Headers)
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), carrier)
	ctx = trace.Ensure(ctx, carrier.Get(trace.HeaderName))
	ctx, span := otel.MQConsumeSpan(ctx, c.routingKey, c.queue.Name)

	var handlerErr error
	defer func() {
		if r := recover(); r != nil {
			handlerErr = fmt.Errorf("handler panic: %v", r)
			c.logger.Error("Handler panic recovered",
				zap.String("routing_key", c.routingKey),
				zap.Any("panic", r),
			)
			c.settle(ctx, msg, handlerErr)
		}
		otel.EndSpan(span, handlerErr)
		metrics.RecordMQConsumeLatency(c.routingKey, c.queue.Name, time.Since(start))
	}()

	handlerErr = c.handler(ctx, msg.Body)
	c.settle(ctx, msg, handlerErr)
}

func (c *Consumer) settle(ctx context.Context, msg amqp091.Delivery, handlerErr error) {
	key := c.deliveryKey(msg)
	if handlerErr == nil {
		if err := msg.Ack(false); err != nil {
			c.logger.Error("Failed to ack message",
				zap.String("routing_key", c.routingKey),
				zap.Error(err),
			)
		}
		// only a redelivery can have a failure count to clear
		if msg.Redelivered && c.retry != nil {
			c.retry.Reset(ctx, key)
		}
		return
	}

	c.logger.Error("Handler error",
		zap.String("routing_key", c.routingKey),
		zap.String("trace_id", trace.FromContext(ctx)),
		zap.Error(handlerErr),
	)

	if c.retry == nil || c.retry.ShouldRequeue(ctx, key, handlerErr) {
		if err := msg.Nack(false, true); err != nil {
			c.logger.Error("Failed to nack message", zap.String("routing_key", c.routingKey), zap.Error(err))
		}
		return
	}

	if c.dlq != nil {
		if err := c.dlq.PublishToDLQ(ctx, c.routingKey, msg.Body, handlerErr.Error()); err != nil {
			c.logger.Error("Failed to dead-letter message; requeueing",
				zap.String("routing_key", c.routingKey),
				zap.Error(err),
			)
			_ = msg.Nack(false, true)
			return
		}
	}
	if err := msg.Ack(false); err != nil {
		c.logger.Error("Failed to ack dropped message", zap.String("routing_key", c.routingKey), zap.Error(err))
	}
}

// deliveryKey identifies a message across redeliveries.
func (c *Consumer) deliveryKey(msg amqp091.Delivery) string {
	if msg.MessageId == "" {
		return c.routingKey + ":" + string(msg.Body)
	}
	return c.routingKey + ":" + msg.MessageId
}
