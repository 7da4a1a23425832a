package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"grocery/config"
	"grocery/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const maxPriority = 10

var ErrDelayUnavailable = errors.New("delayed message exchange not available")

// Message priorities; payment checks and cart commands go ahead of feed events.
const (
	priorityEvent   = 3
	priorityCommand = 5
	priorityCheck   = 7
)

type RabbitMQ struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
	Cfg     *config.Config
	log     *zap.Logger

	// delayed is set once the delayed-message exchange has been declared.
	delayed bool

	// amqp channels are not safe for concurrent publishing.
	mu sync.Mutex
}

func NewRabbitMQ(cfg *config.Config, log *zap.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	return &RabbitMQ{Conn: conn, Channel: ch, Cfg: cfg, log: log}, nil
}

func (r *RabbitMQ) deadLetterExchange() string {
	return r.Cfg.DeadLetterQueue + "_exchange"
}

// SetupQueues declares the topology: a topic exchange for order events and
// cart commands, a delayed exchange for payment checks, and a dead letter
// queue behind both work queues.
func (r *RabbitMQ) SetupQueues() error {
	if err := r.Channel.ExchangeDeclare(r.deadLetterExchange(), "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dead letter exchange: %w", err)
	}
	if _, err := r.Channel.QueueDeclare(r.Cfg.DeadLetterQueue, true, false, false, false, amqp.Table{
		"x-queue-type": "classic",
	}); err != nil {
		return fmt.Errorf("declare dead letter queue: %w", err)
	}
	if err := r.Channel.QueueBind(r.Cfg.DeadLetterQueue, r.Cfg.DeadLetterQueue, r.deadLetterExchange(), false, nil); err != nil {
		return fmt.Errorf("bind dead letter queue: %w", err)
	}

	if err := r.Channel.ExchangeDeclare(r.Cfg.OrderExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare order exchange: %w", err)
	}

	r.delayed = true
	if err := r.Channel.ExchangeDeclare(r.Cfg.DelayExchange, "x-delayed-message", true, false, false, false, amqp.Table{
		"x-delayed-type": "direct",
	}); err != nil {
		// A failed declare closes the channel, so reopen it.
		r.log.Warn("delayed exchange not supported, payment checks disabled", zap.Error(err))
		r.delayed = false
		if r.Channel, err = r.Conn.Channel(); err != nil {
			return fmt.Errorf("reopen channel: %w", err)
		}
	}

	queueArgs := amqp.Table{
		"x-max-priority":            maxPriority,
		"x-dead-letter-exchange":    r.deadLetterExchange(),
		"x-dead-letter-routing-key": r.Cfg.DeadLetterQueue,
	}
	for _, q := range []struct{ name, key string }{
		{r.Cfg.OrderQueue, "order.#"},
		{r.Cfg.CartQueue, models.CommandCartClear},
	} {
		if _, err := r.Channel.QueueDeclare(q.name, true, false, false, false, queueArgs); err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
		if err := r.Channel.QueueBind(q.name, q.key, r.Cfg.OrderExchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", q.name, err)
		}
	}
	if r.delayed {
		if err := r.Channel.QueueBind(r.Cfg.OrderQueue, models.EventPaymentCheck, r.Cfg.DelayExchange, false, nil); err != nil {
			return fmt.Errorf("bind payment check: %w", err)
		}
	}
	return nil
}

func (r *RabbitMQ) publish(ctx context.Context, exchange, key string, priority uint8, headers amqp.Table, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	msg := amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		ContentType:  "application/json",
		Type:         key,
		Priority:     priority,
		Headers:      headers,
		Body:         data,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Channel.PublishWithContext(ctx, exchange, key, false, false, msg)
}

// Publish sends an order event to the order exchange routed by its type.
func (r *RabbitMQ) Publish(ctx context.Context, event models.OrderEvent) error {
	return r.publish(ctx, r.Cfg.OrderExchange, event.Type, priorityEvent, nil, event)
}

// ClearCart emits the clear-cart command consumed by the cart worker.
func (r *RabbitMQ) ClearCart(ctx context.Context, owner string) error {
	cmd := models.CartCommand{Type: models.CommandCartClear, UserID: owner, Occurred: time.Now()}
	return r.publish(ctx, r.Cfg.OrderExchange, models.CommandCartClear, priorityCommand, nil, cmd)
}

// SchedulePaymentCheck delivers a payment check for orderID once the payment
// timeout has passed.
func (r *RabbitMQ) SchedulePaymentCheck(ctx context.Context, orderID string) error {
	if !r.delayed {
		return ErrDelayUnavailable
	}
	event := models.OrderEvent{Type: models.EventPaymentCheck, OrderID: orderID, Occurred: time.Now()}
	headers := amqp.Table{"x-delay": r.Cfg.PaymentTimeout.Milliseconds()}
	return r.publish(ctx, r.Cfg.DelayExchange, models.EventPaymentCheck, priorityCheck, headers, event)
}

// DelayedChecks reports whether payment checks can be scheduled. Publishing to
// an undeclared exchange would close the shared channel.
func (r *RabbitMQ) DelayedChecks() bool {
	return r.delayed
}

func (r *RabbitMQ) Close() {
	if r.Channel != nil {
		if err := r.Channel.Close(); err != nil {
			r.log.Debug("close channel", zap.Error(err))
		}
	}
	if r.Conn != nil {
		if err := r.Conn.Close(); err != nil {
			r.log.Debug("close connection", zap.Error(err))
		}
	}
}
