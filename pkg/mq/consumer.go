package mq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"anoa.com/tutorhub/pkg/metrics"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ErrDiscard marks a handler error as permanent: the message is dropped
// instead of being requeued.
var ErrDiscard = errors.New("discard message")

type MessageHandler func(ctx context.Context, routingKey string, body []byte) error

type Consumer struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	queue   amqp091.Queue
	handler MessageHandler
	logger  *zap.Logger
}

// NewConsumer declares a durable queue bound to every routing key.
func NewConsumer(url, queueName string, routingKeys []string, logger *zap.Logger) (*Consumer, error) {
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

	q, err := ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	for _, key := range routingKeys {
		if err := ch.QueueBind(q.Name, key, ExchangeName, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to bind queue to %s: %w", key, err)
		}
	}

	logger.Info("consumer initialized",
		zap.String("queue", queueName),
		zap.Strings("routing_keys", routingKeys),
		zap.String("exchange", ExchangeName),
	)

	return &Consumer{
		conn:    conn,
		channel: ch,
		queue:   q,
		logger:  logger,
	}, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// StartConsuming blocks until ctx is done or the delivery channel closes.
// Every delivery is acked or nacked exactly once.
func (c *Consumer) StartConsuming(ctx context.Context) error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}

	deliveries, err := c.channel.Consume(c.queue.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("consumer started", zap.String("queue", c.queue.Name))

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-deliveries:
			if !ok {
				return nil
			}
			c.handle(ctx, msg)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg amqp091.Delivery) {
	start := time.Now()
	defer func() {
		metrics.RecordMQConsumeLatency(msg.RoutingKey, c.queue.Name, time.Since(start))
	}()

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("handler panic recovered",
				zap.String("routing_key", msg.RoutingKey),
				zap.Any("panic", r),
			)
			if err := msg.Nack(false, false); err != nil {
				c.logger.Error("failed to nack message after panic", zap.Error(err))
			}
		}
	}()

	err := c.handler(ctx, msg.RoutingKey, msg.Body)
	if err == nil {
		if ackErr := msg.Ack(false); ackErr != nil {
			c.logger.Error("failed to ack message", zap.Error(ackErr))
		}
		return
	}

	requeue := !errors.Is(err, ErrDiscard) && !msg.Redelivered
	c.logger.Error("handler error",
		zap.String("routing_key", msg.RoutingKey),
		zap.Bool("requeue", requeue),
		zap.Error(err),
	)
	if nackErr := msg.Nack(false, requeue); nackErr != nil {
		c.logger.Error("failed to nack message", zap.Error(nackErr))
	}
}
