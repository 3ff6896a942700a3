package redis

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const dataField = "data"

// StreamMessage is one queued work item read from a stream
type StreamMessage struct {
	ID     string
	Stream string
	Body   []byte
}

// Streams provides Redis Streams operations for the work queue
type Streams struct {
	client *Client
}

// NewStreams creates a new Streams instance
func NewStreams(client *Client) *Streams {
	return &Streams{client: client}
}

// Publish adds a raw work item body to a stream
func (s *Streams) Publish(ctx context.Context, stream string, body []byte) (string, error) {
	defer observe("xadd", time.Now())

	id, err := s.client.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{dataField: string(body)},
	}).Result()
	if err != nil {
		s.client.logger.WithContext(ctx).WithError(err).Errorf("Failed to publish to stream %s", stream)
		return "", err
	}

	s.client.logger.WithContext(ctx).Debugf("Published work item to stream %s (message ID: %s)", stream, id)
	return id, nil
}

// CreateConsumerGroup creates a consumer group for a stream
func (s *Streams) CreateConsumerGroup(ctx context.Context, stream, group string) error {
	err := s.client.rdb.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// Consume reads new messages from a stream using a consumer group
func (s *Streams) Consume(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]StreamMessage, error) {
	results, err := s.client.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()

	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var messages []StreamMessage
	for _, result := range results {
		messages = append(messages, toMessages(result.Stream, result.Messages)...)
	}
	return messages, nil
}

// Ack acknowledges messages
func (s *Streams) Ack(ctx context.Context, stream, group string, ids ...string) error {
	defer observe("xack", time.Now())
	return s.client.rdb.XAck(ctx, stream, group, ids...).Err()
}

// Pending returns pending messages of the group
func (s *Streams) Pending(ctx context.Context, stream, group string, count int64) ([]redis.XPendingExt, error) {
	return s.client.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: stream,
		Group:  group,
		Start:  "-",
		End:    "+",
		Count:  count,
	}).Result()
}

// Claim claims pending messages for a consumer
func (s *Streams) Claim(ctx context.Context, stream, group, consumer string, minIdle time.Duration, ids ...string) ([]StreamMessage, error) {
	results, err := s.client.rdb.XClaim(ctx, &redis.XClaimArgs{
		Stream:   stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return nil, err
	}
	return toMessages(stream, results), nil
}

// Range returns messages in a stream between start and end IDs
func (s *Streams) Range(ctx context.Context, stream, start, end string) ([]StreamMessage, error) {
	results, err := s.client.rdb.XRange(ctx, stream, start, end).Result()
	if err != nil {
		return nil, err
	}
	return toMessages(stream, results), nil
}

// Len returns the length of a stream
func (s *Streams) Len(ctx context.Context, stream string) (int64, error) {
	return s.client.rdb.XLen(ctx, stream).Result()
}

// Publisher publishes work items to one stream
type Publisher struct {
	streams *Streams
	stream  string
}

func NewPublisher(streams *Streams, stream string) *Publisher {
	return &Publisher{streams: streams, stream: stream}
}

func (p *Publisher) Publish(ctx context.Context, body []byte) error {
	_, err := p.streams.Publish(ctx, p.stream, body)
	return err
}

// toMessages keeps entries carrying a data field. Bodies stay raw so malformed items reach the dispatcher.
func toMessages(stream string, entries []redis.XMessage) []StreamMessage {
	messages := make([]StreamMessage, 0, len(entries))
	for _, msg := range entries {
		data, ok := msg.Values[dataField].(string)
		if !ok {
			data = ""
		}
		messages = append(messages, StreamMessage{
			ID:     msg.ID,
			Stream: stream,
			Body:   []byte(data),
		})
	}
	return messages
}
