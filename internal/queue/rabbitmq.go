package queue

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/core-coin/vaultminter/internal/models"
	"github.com/core-coin/vaultminter/pkg/logger"
)

const (
	connectAttempts = 7
	attemptHeader   = "x-attempt"
)

var errNotConfirmed = errors.New("broker did not confirm publish")

// Options control how queues are declared and retried.
type Options struct {
	// DeadLetterExchange receives rejected and exhausted jobs, routed by queue name.
	DeadLetterExchange string
	MaxAttempts        int
	// RetryBackoff is how long a retried job waits before redelivery.
	RetryBackoff time.Duration
	Prefetch     int
}

// Broker owns the AMQP connection shared by all queues.
type Broker struct {
	logger *logger.Logger
	opts   Options

	conn *amqp.Connection

	mu        sync.Mutex
	publishCh *amqp.Channel
}

// Connect dials RabbitMQ, retrying with exponential backoff.
func Connect(ctx context.Context, url string, opts Options, logger *logger.Logger) (*Broker, error) {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Prefetch < 1 {
		opts.Prefetch = 1
	}

	var (
		conn *amqp.Connection
		err  error
	)
	wait := time.Second
	for i := 0; i < connectAttempts; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		logger.Warnw("RabbitMQ connection attempt failed", "attempt", i+1, "error", err, "retry_in", wait)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		wait = time.Duration(math.Pow(2, float64(i+1))) * time.Second
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if opts.DeadLetterExchange != "" {
		if err := ch.ExchangeDeclare(opts.DeadLetterExchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to declare dead letter exchange: %w", err)
		}
	}
	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	logger.Info("Successfully connected to RabbitMQ!")
	return &Broker{logger: logger, opts: opts, conn: conn, publishCh: ch}, nil
}

// NotifyClose reports when the broker connection goes away.
func (b *Broker) NotifyClose() <-chan *amqp.Error {
	return b.conn.NotifyClose(make(chan *amqp.Error, 1))
}

func (b *Broker) IsClosed() bool {
	return b.conn.IsClosed()
}

func (b *Broker) Close() error {
	if b.conn.IsClosed() {
		return nil
	}
	return b.conn.Close()
}

// Queue declares the named queue with its retry and dead-letter queues.
func (b *Broker) Queue(name string) (*RabbitQueue, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	args := amqp.Table{}
	if b.opts.DeadLetterExchange != "" {
		args["x-dead-letter-exchange"] = b.opts.DeadLetterExchange
		args["x-dead-letter-routing-key"] = name

		deadName := name + ".dead"
		if _, err := b.publishCh.QueueDeclare(deadName, true, false, false, false, nil); err != nil {
			return nil, fmt.Errorf("failed to declare %s: %w", deadName, err)
		}
		if err := b.publishCh.QueueBind(deadName, name, b.opts.DeadLetterExchange, false, nil); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", deadName, err)
		}
	}
	if _, err := b.publishCh.QueueDeclare(name, true, false, false, false, args); err != nil {
		return nil, fmt.Errorf("failed to declare %s: %w", name, err)
	}

	// expired retries flow back into the main queue through the default exchange
	retryName := name + ".retry"
	retryArgs := amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": name,
		"x-message-ttl":             b.opts.RetryBackoff.Milliseconds(),
	}
	if _, err := b.publishCh.QueueDeclare(retryName, true, false, false, false, retryArgs); err != nil {
		return nil, fmt.Errorf("failed to declare %s: %w", retryName, err)
	}

	return &RabbitQueue{broker: b, name: name, retryName: retryName}, nil
}

func (b *Broker) publish(ctx context.Context, routingKey string, job models.Job) error {
	body, err := encodeJob(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}

	b.mu.Lock()
	confirm, err := b.publishCh.PublishWithDeferredConfirmWithContext(ctx,
		"",         // default exchange
		routingKey, // queue name
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    job.ID,
			Type:         string(job.Kind),
			Timestamp:    time.Now(),
			Headers:      amqp.Table{attemptHeader: int32(job.Attempt)},
			Body:         body,
		},
	)
	b.mu.Unlock()
	if err != nil {
		return err
	}
	if confirm == nil {
		return fmt.Errorf("%w: channel is not in confirm mode", errNotConfirmed)
	}
	return awaitConfirm(ctx, confirm)
}

type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

// awaitConfirm blocks until the broker acks or nacks a publish.
func awaitConfirm(ctx context.Context, c confirmation) error {
	acked, err := c.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to await publish confirm: %w", err)
	}
	if !acked {
		return errNotConfirmed
	}
	return nil
}

// RabbitQueue is a durable RabbitMQ queue with manual acknowledgement.
type RabbitQueue struct {
	broker    *Broker
	name      string
	retryName string

	mu       sync.Mutex
	channels []*amqp.Channel
}

var _ Queue = (*RabbitQueue)(nil)

func (q *RabbitQueue) Name() string {
	return q.name
}

func (q *RabbitQueue) Publish(ctx context.Context, job models.Job) error {
	if err := q.broker.publish(ctx, q.name, job); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", q.name, err)
	}
	return nil
}

func (q *RabbitQueue) Consume(ctx context.Context) (<-chan *Delivery, error) {
	ch, err := q.broker.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open consumer channel: %w", err)
	}
	if err := ch.Qos(q.broker.opts.Prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to set qos: %w", err)
	}

	tag := fmt.Sprintf("%s-%d", q.name, time.Now().UnixNano())
	msgs, err := ch.Consume(
		q.name, // queue
		tag,    // consumer
		false,  // auto-ack
		false,  // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to register consumer on %s: %w", q.name, err)
	}

	q.mu.Lock()
	q.channels = append(q.channels, ch)
	q.mu.Unlock()

	out := make(chan *Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				// stop new deliveries; the channel stays open so in-flight jobs can settle
				_ = ch.Cancel(tag, false)
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				d := q.wrap(ctx, msg)
				select {
				case out <- d:
				case <-ctx.Done():
					_ = msg.Nack(false, true)
					_ = ch.Cancel(tag, false)
					return
				}
			}
		}
	}()

	q.broker.logger.Infow("Waiting for messages", "queue", q.name)
	return out, nil
}

func (q *RabbitQueue) wrap(ctx context.Context, msg amqp.Delivery) *Delivery {
	job, decodeErr := decodeJob(msg.Body)
	return &Delivery{
		Job:         job,
		DecodeErr:   decodeErr,
		maxAttempts: q.broker.opts.MaxAttempts,
		ack: func() error {
			return msg.Ack(false)
		},
		republish: func(next models.Job) error {
			pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			// the original is acked only once the retry copy is confirmed
			if err := q.broker.publish(pubCtx, q.retryName, next); err != nil {
				_ = msg.Nack(false, true)
				return err
			}
			return msg.Ack(false)
		},
		deadLetter: func() error {
			return msg.Nack(false, false)
		},
	}
}

func (q *RabbitQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, ch := range q.channels {
		_ = ch.Close()
	}
	q.channels = nil
	return nil
}
