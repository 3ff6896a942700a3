package amqp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Publisher sends work item bodies to the queue. Used for DLQ retries and the admin API.
type Publisher struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	queue  string
	logger ectologger.Logger
	mu     sync.Mutex
}

// NewPublisher opens its own connection and declares the queue
func NewPublisher(config Config, logger ectologger.Logger) (*Publisher, error) {
	if config.Queue == "" {
		config.Queue = DefaultQueue
	}

	conn, err := amqp.Dial(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := declareQueue(ch, config.Queue); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &Publisher{
		conn:   conn,
		ch:     ch,
		queue:  config.Queue,
		logger: logger,
	}, nil
}

// Publish sends a persistent JSON message carrying the caller's trace context
func (p *Publisher) Publish(ctx context.Context, body []byte) error {
	ctx, span := tracing.StartSpan(ctx, "AMQP.Publish")
	defer span.End()

	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.ch.PublishWithContext(ctx,
		"",      // exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		publishing(ctx, body),
	)
	if err != nil {
		tracing.RecordError(span, err)
		p.logger.WithContext(ctx).WithError(err).Errorf("Failed to publish to queue %s", p.queue)
		return err
	}
	return nil
}

func (p *Publisher) Close() error {
	_ = p.ch.Close()
	return p.conn.Close()
}

func publishing(ctx context.Context, body []byte) amqp.Publishing {
	carrier := map[string]string{}
	tracing.InjectHeaders(ctx, carrier)

	headers := amqp.Table{}
	for k, v := range carrier {
		headers[k] = v
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.New().String(),
		Timestamp:    time.Now().UTC(),
		Headers:      headers,
		Body:         body,
	}
}
