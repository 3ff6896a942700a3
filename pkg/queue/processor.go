package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// TransportRedis labels deliveries read from Redis Streams
const TransportRedis = "redis"

const (
	// DefaultBatchSize is the default number of messages to consume at once
	DefaultBatchSize = 10

	// DefaultBlockTimeout is how long to block waiting for messages
	DefaultBlockTimeout = 5 * time.Second

	// DefaultMaxRetries is the default number of redeliveries of a failed work item
	DefaultMaxRetries = 3

	// DefaultClaimInterval is how often to claim stale pending messages
	DefaultClaimInterval = 30 * time.Second

	// DefaultClaimMinIdle is the minimum idle time before claiming a message
	DefaultClaimMinIdle = 60 * time.Second
)

// StreamClient is the subset of Redis Streams operations the processor uses
type StreamClient interface {
	CreateConsumerGroup(ctx context.Context, stream, group string) error
	Consume(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]redis.StreamMessage, error)
	Ack(ctx context.Context, stream, group string, ids ...string) error
	Pending(ctx context.Context, stream, group string, count int64) ([]goredis.XPendingExt, error)
	Claim(ctx context.Context, stream, group, consumer string, minIdle time.Duration, ids ...string) ([]redis.StreamMessage, error)
	Range(ctx context.Context, stream, start, end string) ([]redis.StreamMessage, error)
}

// Handler is implemented by Dispatcher
type Handler interface {
	Handle(ctx context.Context, delivery Delivery) Outcome
	DeadLetter(ctx context.Context, delivery Delivery, reason models.DeadLetterReason, message string) error
}

// ProcessorConfig holds configuration for the stream processor
type ProcessorConfig struct {
	// Stream name for the work queue
	Stream string

	// Consumer group name
	ConsumerGroup string

	// Consumer name (unique per instance)
	ConsumerName string

	// Number of messages to fetch per batch
	BatchSize int64

	// How long to block waiting for new messages
	BlockTimeout time.Duration

	// Redeliveries of a retryable failure before it is dead-lettered
	MaxRetries int

	// How often to check for and claim stale pending messages
	ClaimInterval time.Duration

	// Minimum idle time before claiming a pending message
	ClaimMinIdle time.Duration

	// Number of worker goroutines
	WorkerCount int
}

// DefaultProcessorConfig returns the default processor configuration
func DefaultProcessorConfig() ProcessorConfig {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = uuid.New().String()[:8]
	}

	return ProcessorConfig{
		Stream:        "fern:jobs",
		ConsumerGroup: "fern-workers",
		ConsumerName:  hostname,
		BatchSize:     DefaultBatchSize,
		BlockTimeout:  DefaultBlockTimeout,
		MaxRetries:    DefaultMaxRetries,
		ClaimInterval: DefaultClaimInterval,
		ClaimMinIdle:  DefaultClaimMinIdle,
		WorkerCount:   1,
	}
}

// Processor consumes work items from a Redis Streams consumer group
type Processor struct {
	streams StreamClient
	handler Handler
	config  ProcessorConfig
	logger  ectologger.Logger

	stopCh   chan struct{}
	stoppedC chan struct{}
	jobsCh   chan jobItem

	running bool
	mu      sync.RWMutex
}

type jobItem struct {
	message redis.StreamMessage
	attempt int
}

func NewProcessor(streams StreamClient, handler Handler, config ProcessorConfig, logger ectologger.Logger) *Processor {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.BlockTimeout <= 0 {
		config.BlockTimeout = DefaultBlockTimeout
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.ClaimInterval <= 0 {
		config.ClaimInterval = DefaultClaimInterval
	}
	if config.ClaimMinIdle <= 0 {
		config.ClaimMinIdle = DefaultClaimMinIdle
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}

	return &Processor{
		streams:  streams,
		handler:  handler,
		config:   config,
		logger:   logger,
		stopCh:   make(chan struct{}),
		stoppedC: make(chan struct{}),
		jobsCh:   make(chan jobItem, config.BatchSize*2),
	}
}

// Start creates the consumer group and starts the consume, claim and worker goroutines
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("processor already running")
	}
	p.running = true
	p.mu.Unlock()

	p.logger.WithContext(ctx).Infof("Starting stream processor: stream=%s group=%s consumer=%s workers=%d",
		p.config.Stream, p.config.ConsumerGroup, p.config.ConsumerName, p.config.WorkerCount)

	if err := p.streams.CreateConsumerGroup(ctx, p.config.Stream, p.config.ConsumerGroup); err != nil {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
		p.logger.WithContext(ctx).WithError(err).Error("Failed to create consumer group")
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	var workers, producers sync.WaitGroup
	for i := 0; i < p.config.WorkerCount; i++ {
		workers.Add(1)
		go p.worker(ctx, &workers, i)
	}

	producers.Add(2)
	go p.consumeLoop(ctx, &producers)
	go p.claimLoop(ctx, &producers)

	// jobsCh is closed only after both producers have returned
	go func() {
		producers.Wait()
		close(p.jobsCh)
		workers.Wait()
		close(p.stoppedC)
	}()

	p.logger.WithContext(ctx).Info("Stream processor started")
	return nil
}

// Stop stops the processor and waits for in-flight work items
func (p *Processor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	p.logger.WithContext(ctx).Info("Stopping stream processor...")
	close(p.stopCh)

	select {
	case <-p.stoppedC:
		p.logger.WithContext(ctx).Info("Stream processor stopped gracefully")
	case <-ctx.Done():
		p.logger.WithContext(ctx).Warn("Stream processor shutdown timed out")
		return ctx.Err()
	}
	return nil
}

// IsRunning returns whether the processor is running
func (p *Processor) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

func (p *Processor) consumeLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		messages, err := p.streams.Consume(ctx,
			p.config.Stream,
			p.config.ConsumerGroup,
			p.config.ConsumerName,
			p.config.BatchSize,
			p.config.BlockTimeout,
		)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.WithContext(ctx).WithError(err).Warn("Failed to consume messages")
			select {
			case <-time.After(time.Second):
			case <-p.stopCh:
				return
			}
			continue
		}

		for _, msg := range messages {
			select {
			case p.jobsCh <- jobItem{message: msg, attempt: 1}:
			case <-p.stopCh:
				return
			}
		}
	}
}

func (p *Processor) claimLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(p.config.ClaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.claimPendingMessages(ctx)
		}
	}
}

// claimPendingMessages re-dispatches stale pending messages. Messages delivered more often than
// the retry budget allows are dead-lettered without running again.
func (p *Processor) claimPendingMessages(ctx context.Context) {
	ctx, span := tracing.StartSpan(ctx, "Processor.claimPendingMessages")
	defer span.End()

	pending, err := p.streams.Pending(ctx, p.config.Stream, p.config.ConsumerGroup, p.config.BatchSize)
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).Warn("Failed to get pending messages")
		return
	}

	deliveries := map[string]int{}
	var staleIDs []string
	for _, msg := range pending {
		if msg.Idle < p.config.ClaimMinIdle {
			continue
		}
		if msg.RetryCount > int64(p.config.MaxRetries) {
			p.logger.WithContext(ctx).Warnf("Message %s exceeded max retries (%d), moving to DLQ", msg.ID, msg.RetryCount)
			p.moveToDLQ(ctx, msg.ID, int(msg.RetryCount))
			continue
		}
		staleIDs = append(staleIDs, msg.ID)
		deliveries[msg.ID] = int(msg.RetryCount)
	}

	if len(staleIDs) == 0 {
		return
	}

	p.logger.WithContext(ctx).Infof("Claiming %d stale pending messages", len(staleIDs))

	claimed, err := p.streams.Claim(ctx, p.config.Stream, p.config.ConsumerGroup, p.config.ConsumerName, p.config.ClaimMinIdle, staleIDs...)
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).Warn("Failed to claim pending messages")
		return
	}

	for _, msg := range claimed {
		select {
		case p.jobsCh <- jobItem{message: msg, attempt: deliveries[msg.ID] + 1}:
		case <-p.stopCh:
			return
		default:
			// Workers are busy; the message stays pending for the next pass.
		}
	}
}

func (p *Processor) worker(ctx context.Context, wg *sync.WaitGroup, id int) {
	defer wg.Done()

	p.logger.WithContext(ctx).Debugf("Worker %d started", id)

	for item := range p.jobsCh {
		outcome := p.handler.Handle(ctx, Delivery{
			Transport: TransportRedis,
			MessageID: item.message.ID,
			Body:      item.message.Body,
			Attempt:   item.attempt,
			Final:     item.attempt > p.config.MaxRetries,
		})

		if outcome == OutcomeRetry {
			// Left pending; the claim loop redelivers it after ClaimMinIdle.
			continue
		}
		if err := p.streams.Ack(ctx, p.config.Stream, p.config.ConsumerGroup, item.message.ID); err != nil {
			p.logger.WithContext(ctx).WithError(err).Warnf("Failed to ack message %s", item.message.ID)
		}
	}

	p.logger.WithContext(ctx).Debugf("Worker %d stopped", id)
}

func (p *Processor) moveToDLQ(ctx context.Context, messageID string, retryCount int) {
	ctx, span := tracing.StartSpan(ctx, "Processor.moveToDLQ")
	defer span.End()

	messages, err := p.streams.Range(ctx, p.config.Stream, messageID, messageID)
	if err != nil || len(messages) == 0 {
		p.logger.WithContext(ctx).WithError(err).Warnf("Failed to read message %s for DLQ", messageID)
	} else {
		delivery := Delivery{
			Transport: TransportRedis,
			MessageID: messageID,
			Body:      messages[0].Body,
			Attempt:   retryCount,
			Final:     true,
		}
		if err := p.handler.DeadLetter(ctx, delivery, models.DLQReasonMaxRetries, "exceeded maximum retry count"); err != nil {
			// Left pending so a later pass can try again.
			return
		}
	}

	if err := p.streams.Ack(ctx, p.config.Stream, p.config.ConsumerGroup, messageID); err != nil {
		p.logger.WithContext(ctx).WithError(err).Warnf("Failed to ack message %s after DLQ", messageID)
	}
}
