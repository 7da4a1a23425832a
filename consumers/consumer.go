package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"grocery/config"
	"grocery/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// errMalformed marks messages that can never succeed; they go straight to
// the dead letter queue.
var errMalformed = errors.New("malformed message")

const handleTimeout = 10 * time.Second

type CartClearer interface {
	ClearCart(ctx context.Context, owner string) error
}

type PaymentExpirer interface {
	ExpirePendingPayment(ctx context.Context, orderID string) (bool, error)
}

type Consumer struct {
	ch     *amqp.Channel
	cfg    *config.Config
	carts  CartClearer
	orders PaymentExpirer
	log    *zap.Logger
}

func New(ch *amqp.Channel, cfg *config.Config, carts CartClearer, orders PaymentExpirer, log *zap.Logger) *Consumer {
	return &Consumer{ch: ch, cfg: cfg, carts: carts, orders: orders, log: log}
}

// Start registers the cart, order and dead letter consumers. Deliveries are
// processed until ctx is done or the channel closes.
func (c *Consumer) Start(ctx context.Context) error {
	queues := []struct {
		name, tag string
		handle    func(context.Context, []byte) error
	}{
		{c.cfg.CartQueue, "grocery-cart", c.HandleCartCommand},
		{c.cfg.OrderQueue, "grocery-orders", c.HandleOrderEvent},
		{c.cfg.DeadLetterQueue, "grocery-dlq", c.handleDeadLetter},
	}
	for _, q := range queues {
		msgs, err := c.ch.Consume(q.name, q.tag, false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("consume %s: %w", q.name, err)
		}
		handle := q.handle
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-msgs:
					if !ok {
						return
					}
					c.process(ctx, msg, handle)
				}
			}
		}()
	}
	return nil
}

// process runs handle and settles the delivery: ack on success, dead letter
// on malformed input or a failed redelivery, requeue otherwise.
func (c *Consumer) process(ctx context.Context, msg amqp.Delivery, handle func(context.Context, []byte) error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("recovered from panic in message processing",
				zap.Any("panic", r), zap.String("routingKey", msg.RoutingKey))
			_ = msg.Nack(false, false)
		}
	}()

	hctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	err := handle(hctx, msg.Body)
	switch {
	case err == nil:
		if ackErr := msg.Ack(false); ackErr != nil {
			c.log.Warn("ack failed", zap.Error(ackErr))
		}
	case errors.Is(err, errMalformed) || msg.Redelivered:
		c.log.Error("dead lettering message", zap.String("routingKey", msg.RoutingKey), zap.Error(err))
		_ = msg.Nack(false, false)
	default:
		c.log.Warn("requeueing message", zap.String("routingKey", msg.RoutingKey), zap.Error(err))
		_ = msg.Nack(false, true)
	}
}

func (c *Consumer) HandleCartCommand(ctx context.Context, body []byte) error {
	var cmd models.CartCommand
	if err := json.Unmarshal(body, &cmd); err != nil || cmd.UserID == "" {
		return fmt.Errorf("%w: cart command %q", errMalformed, body)
	}
	switch cmd.Type {
	case models.CommandCartClear:
		return c.carts.ClearCart(ctx, cmd.UserID)
	}
	return fmt.Errorf("%w: unknown cart command %q", errMalformed, cmd.Type)
}

func (c *Consumer) HandleOrderEvent(ctx context.Context, body []byte) error {
	var event models.OrderEvent
	if err := json.Unmarshal(body, &event); err != nil || event.OrderID == "" {
		return fmt.Errorf("%w: order event %q", errMalformed, body)
	}

	switch event.Type {
	case models.EventPaymentCheck:
		expired, err := c.orders.ExpirePendingPayment(ctx, event.OrderID)
		if err != nil {
			return err
		}
		if expired {
			c.log.Info("cancelled unpaid order", zap.String("orderId", event.OrderID))
		}
	case models.EventOrderCreated, models.EventOrderStatusUpdated:
		c.log.Info("order event",
			zap.String("type", event.Type),
			zap.String("orderId", event.OrderID),
			zap.String("status", string(event.Status)))
	default:
		c.log.Warn("unknown order event", zap.String("type", event.Type))
	}
	return nil
}

func (c *Consumer) handleDeadLetter(_ context.Context, body []byte) error {
	c.log.Error("received dead letter", zap.ByteString("body", body))
	return nil
}
