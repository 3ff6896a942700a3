package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/redis"
)

type fakeStreams struct {
	mu       sync.Mutex
	queued   []redis.StreamMessage
	pending  []goredis.XPendingExt
	bodies   map[string][]byte
	acked    []string
	claimed  []string
	groupErr error
}

func (f *fakeStreams) CreateConsumerGroup(_ context.Context, _, _ string) error {
	return f.groupErr
}

func (f *fakeStreams) Consume(ctx context.Context, _, _, _ string, _ int64, _ time.Duration) ([]redis.StreamMessage, error) {
	f.mu.Lock()
	messages := f.queued
	f.queued = nil
	f.mu.Unlock()

	if len(messages) == 0 {
		select {
		case <-time.After(5 * time.Millisecond):
		case <-ctx.Done():
		}
	}
	return messages, nil
}

func (f *fakeStreams) Ack(_ context.Context, _, _ string, ids ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, ids...)
	return nil
}

func (f *fakeStreams) Pending(_ context.Context, _, _ string, _ int64) ([]goredis.XPendingExt, error) {
	return f.pending, nil
}

func (f *fakeStreams) Claim(_ context.Context, stream, _, _ string, _ time.Duration, ids ...string) ([]redis.StreamMessage, error) {
	f.claimed = append(f.claimed, ids...)
	var messages []redis.StreamMessage
	for _, id := range ids {
		messages = append(messages, redis.StreamMessage{ID: id, Stream: stream, Body: f.bodies[id]})
	}
	return messages, nil
}

func (f *fakeStreams) Range(_ context.Context, stream, start, _ string) ([]redis.StreamMessage, error) {
	body, ok := f.bodies[start]
	if !ok {
		return nil, nil
	}
	return []redis.StreamMessage{{ID: start, Stream: stream, Body: body}}, nil
}

func (f *fakeStreams) ackedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.acked...)
}

type fakeHandler struct {
	mu          sync.Mutex
	outcomes    map[string]Outcome
	deliveries  []Delivery
	deadLetters []Delivery
}

func (f *fakeHandler) Handle(_ context.Context, delivery Delivery) Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliveries = append(f.deliveries, delivery)
	if outcome, ok := f.outcomes[delivery.MessageID]; ok {
		return outcome
	}
	return OutcomeAck
}

func (f *fakeHandler) DeadLetter(_ context.Context, delivery Delivery, _ models.DeadLetterReason, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deadLetters = append(f.deadLetters, delivery)
	return nil
}

func (f *fakeHandler) handled() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deliveries)
}

func testConfig() ProcessorConfig {
	return ProcessorConfig{
		Stream:        "fern:jobs",
		ConsumerGroup: "fern-workers",
		ConsumerName:  "test",
		BlockTimeout:  time.Millisecond,
		MaxRetries:    2,
		ClaimInterval: time.Hour,
		ClaimMinIdle:  time.Minute,
		WorkerCount:   2,
	}
}

func TestProcessor_AcksUnlessRetry(t *testing.T) {
	defer goleak.VerifyNone(t)

	streams := &fakeStreams{queued: []redis.StreamMessage{
		{ID: "1-0", Body: []byte(validBody)},
		{ID: "2-0", Body: []byte(validBody)},
		{ID: "3-0", Body: []byte(`{`)},
	}}
	handler := &fakeHandler{outcomes: map[string]Outcome{"2-0": OutcomeRetry, "3-0": OutcomeDeadLetter}}
	p := NewProcessor(streams, handler, testConfig(), noopLogger())

	require.NoError(t, p.Start(context.Background()))
	assert.True(t, p.IsRunning())
	require.Eventually(t, func() bool { return handler.handled() == 3 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Stop(ctx))
	assert.False(t, p.IsRunning())

	assert.ElementsMatch(t, []string{"1-0", "3-0"}, streams.ackedIDs())
	for _, d := range handler.deliveries {
		assert.Equal(t, TransportRedis, d.Transport)
		assert.Equal(t, 1, d.Attempt)
		assert.False(t, d.Final)
	}
}

func TestProcessor_StartFailsWithoutGroup(t *testing.T) {
	streams := &fakeStreams{groupErr: assert.AnError}
	p := NewProcessor(streams, &fakeHandler{}, testConfig(), noopLogger())

	assert.Error(t, p.Start(context.Background()))
	assert.False(t, p.IsRunning())
	assert.NoError(t, p.Stop(context.Background()))
}

func TestProcessor_ClaimPendingMessages(t *testing.T) {
	streams := &fakeStreams{
		pending: []goredis.XPendingExt{
			{ID: "fresh", Idle: time.Second, RetryCount: 1},
			{ID: "stale", Idle: 2 * time.Minute, RetryCount: 2},
			{ID: "poison", Idle: 2 * time.Minute, RetryCount: 3},
		},
		bodies: map[string][]byte{"stale": []byte(validBody), "poison": []byte(validBody)},
	}
	handler := &fakeHandler{}
	p := NewProcessor(streams, handler, testConfig(), noopLogger())

	p.claimPendingMessages(context.Background())

	assert.Equal(t, []string{"stale"}, streams.claimed)
	require.Len(t, p.jobsCh, 1)
	item := <-p.jobsCh
	assert.Equal(t, "stale", item.message.ID)
	assert.Equal(t, 3, item.attempt)

	require.Len(t, handler.deadLetters, 1)
	assert.Equal(t, "poison", handler.deadLetters[0].MessageID)
	assert.True(t, handler.deadLetters[0].Final)
	assert.Equal(t, []string{"poison"}, streams.ackedIDs())
}

func TestProcessor_FinalAttemptFlag(t *testing.T) {
	defer goleak.VerifyNone(t)

	handler := &fakeHandler{}
	p := NewProcessor(&fakeStreams{}, handler, testConfig(), noopLogger())

	var wg sync.WaitGroup
	wg.Add(1)
	go p.worker(context.Background(), &wg, 0)
	p.jobsCh <- jobItem{message: redis.StreamMessage{ID: "a"}, attempt: 2}
	p.jobsCh <- jobItem{message: redis.StreamMessage{ID: "b"}, attempt: 3}
	close(p.jobsCh)
	wg.Wait()

	require.Len(t, handler.deliveries, 2)
	assert.False(t, handler.deliveries[0].Final)
	assert.True(t, handler.deliveries[1].Final)
}
