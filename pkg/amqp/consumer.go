// Package amqp consumes work items from a durable RabbitMQ queue and publishes them back for retries.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/queue"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	// TransportAMQP labels deliveries read from RabbitMQ
	TransportAMQP = "amqp"

	DefaultQueue    = "dataML"
	DefaultPrefetch = 5
)

type Config struct {
	URL      string
	Queue    string
	Prefetch int
}

// Handler is implemented by queue.Dispatcher
type Handler interface {
	Handle(ctx context.Context, delivery queue.Delivery) queue.Outcome
}

// Consumer runs Prefetch workers over one manual-ack channel
type Consumer struct {
	config  Config
	handler Handler
	logger  ectologger.Logger

	conn *amqp.Connection
	ch   *amqp.Channel
	tag  string

	workers sync.WaitGroup
	mu      sync.RWMutex
	running bool
}

func NewConsumer(config Config, handler Handler, logger ectologger.Logger) *Consumer {
	if config.Queue == "" {
		config.Queue = DefaultQueue
	}
	if config.Prefetch <= 0 {
		config.Prefetch = DefaultPrefetch
	}
	return &Consumer{
		config:  config,
		handler: handler,
		logger:  logger,
		tag:     "fern-" + uuid.New().String()[:8],
	}
}

// Start connects, declares the queue and starts the workers
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return errors.New("consumer already running")
	}

	conn, err := amqp.Dial(c.config.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.Qos(c.config.Prefetch, 0, false); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to set prefetch: %w", err)
	}

	if _, err := declareQueue(ch, c.config.Queue); err != nil {
		_ = conn.Close()
		return err
	}

	deliveries, err := ch.Consume(
		c.config.Queue,
		c.tag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to consume queue %s: %w", c.config.Queue, err)
	}

	c.conn = conn
	c.ch = ch
	c.running = true
	c.serve(ctx, deliveries)

	c.logger.WithContext(ctx).Infof("Consuming queue %s with %d workers", c.config.Queue, c.config.Prefetch)
	return nil
}

// Stop cancels the consumer, waits for in-flight deliveries and closes the connection
func (c *Consumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	c.mu.Unlock()

	c.logger.WithContext(ctx).Info("Stopping AMQP consumer...")

	// Cancel closes the deliveries channel once the server confirms.
	if err := c.ch.Cancel(c.tag, false); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("Failed to cancel AMQP consumer")
	}

	done := make(chan struct{})
	go func() {
		c.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		c.logger.WithContext(ctx).Warn("AMQP consumer shutdown timed out")
	}

	_ = c.ch.Close()
	return c.conn.Close()
}

// Ping reports whether the connection is open
func (c *Consumer) Ping(_ context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.running || c.conn == nil || c.conn.IsClosed() {
		return errors.New("AMQP connection is closed")
	}
	return nil
}

func (c *Consumer) serve(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for i := 0; i < c.config.Prefetch; i++ {
		c.workers.Add(1)
		go func() {
			defer c.workers.Done()
			for d := range deliveries {
				c.handle(ctx, d)
			}
		}()
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	metrics.QueueJobsInFlight.Inc()
	defer metrics.QueueJobsInFlight.Dec()

	ctx = tracing.ExtractHeaders(ctx, headerStrings(d.Headers))

	messageID := d.MessageId
	if messageID == "" {
		messageID = strconv.FormatUint(d.DeliveryTag, 10)
	}

	attempt := 1
	if d.Redelivered {
		attempt = 2
	}

	outcome := c.handler.Handle(ctx, queue.Delivery{
		Transport: TransportAMQP,
		MessageID: messageID,
		Body:      d.Body,
		Attempt:   attempt,
		Final:     d.Redelivered,
	})

	if outcome == queue.OutcomeRetry {
		if err := d.Nack(false, !d.Redelivered); err != nil {
			c.logger.WithContext(ctx).WithError(err).Warnf("Failed to nack delivery %s", messageID)
		}
		return
	}
	if err := d.Ack(false); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warnf("Failed to ack delivery %s", messageID)
	}
}

func declareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return q, fmt.Errorf("failed to declare queue %s: %w", name, err)
	}
	return q, nil
}

func headerStrings(table amqp.Table) map[string]string {
	headers := make(map[string]string, len(table))
	for k, v := range table {
		if s, ok := v.(string); ok {
			headers[k] = s
		}
	}
	return headers
}
