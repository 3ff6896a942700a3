package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Config holds Kafka configuration
type Config struct {
	Brokers     []string
	ResultTopic string
	ErrorTopic  string
}

// ParseConfig parses a comma-separated broker string
func ParseConfig(brokers string, resultTopic string, errorTopic string) Config {
	var brokerList []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokerList = append(brokerList, b)
		}
	}

	return Config{
		Brokers:     brokerList,
		ResultTopic: resultTopic,
		ErrorTopic:  errorTopic,
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes pipeline results. Successful results go to the result topic, failures to the error topic.
type Producer struct {
	writer      messageWriter
	errorWriter messageWriter
	topic       string
	errorTopic  string
	brokers     []string
	logger      ectologger.Logger
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg Config, logger ectologger.Logger) *Producer {
	return &Producer{
		writer:      newWriter(cfg.Brokers, cfg.ResultTopic),
		errorWriter: newWriter(cfg.Brokers, cfg.ErrorTopic),
		topic:       cfg.ResultTopic,
		errorTopic:  cfg.ErrorTopic,
		brokers:     cfg.Brokers,
		logger:      logger,
	}
}

func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		// Lets a first publish succeed in dev environments where the topic does not exist yet.
		AllowAutoTopicCreation: true,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	var firstErr error
	if err := p.writer.Close(); err != nil {
		firstErr = err
	}
	if err := p.errorWriter.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// ResultEvent is the message published for every processed work item
type ResultEvent struct {
	models.Result
	Transport string    `json:"transport,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
}

// MessageKey partitions events by shipment
func MessageKey(result models.Result) string {
	return fmt.Sprintf("%d:%d", result.CompanyID, result.ShipmentRoutingID)
}

// PublishResult publishes result to the topic matching its outcome
func (p *Producer) PublishResult(ctx context.Context, result models.Result, transport string) error {
	writer, topic := p.writer, p.topic
	if !result.OK {
		writer, topic = p.errorWriter, p.errorTopic
	}

	ctx, span := tracing.StartSpan(ctx, "Kafka.PublishResult",
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", topic),
		attribute.String("messaging.operation", "publish"),
		attribute.Int64("fern.company_id", result.CompanyID),
		attribute.Int64("fern.shipment_routing_id", result.ShipmentRoutingID),
	)
	defer span.End()

	start := time.Now()

	evt := ResultEvent{
		Result:    result,
		Transport: transport,
		Timestamp: time.Now().UTC(),
		TraceID:   tracing.GetTraceID(ctx),
		SpanID:    tracing.GetSpanID(ctx),
	}

	data, err := json.Marshal(evt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal message")
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(MessageKey(result)),
		Value:   data,
		Headers: headers(ctx, result),
	})
	if err != nil {
		metrics.RecordKafkaPublish(topic, "error", time.Since(start).Seconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to publish message")
		p.logger.WithContext(ctx).WithError(err).Errorf("Failed to publish result to Kafka topic %s", topic)
		return err
	}

	metrics.RecordKafkaPublish(topic, "success", time.Since(start).Seconds())
	span.SetStatus(codes.Ok, "message published")
	p.logger.WithContext(ctx).Debugf("Published result to Kafka: topic=%s key=%s state=%s", topic, MessageKey(result), result.State)
	return nil
}

func headers(ctx context.Context, result models.Result) []kafka.Header {
	hdrs := []kafka.Header{
		{Key: "company_id", Value: []byte(strconv.FormatInt(result.CompanyID, 10))},
		{Key: "shipment_routing_id", Value: []byte(strconv.FormatInt(result.ShipmentRoutingID, 10))},
		{Key: "state", Value: []byte(result.State)},
	}
	if result.Error != "" {
		hdrs = append(hdrs, kafka.Header{Key: "error_kind", Value: []byte(result.Error)})
	}

	// W3C trace context for downstream consumers
	carrier := map[string]string{}
	tracing.InjectHeaders(ctx, carrier)
	for _, key := range []string{"traceparent", "tracestate"} {
		if v := carrier[key]; v != "" {
			hdrs = append(hdrs, kafka.Header{Key: key, Value: []byte(v)})
		}
	}
	return hdrs
}

// Ping dials the first reachable broker
func (p *Producer) Ping(ctx context.Context) error {
	if len(p.brokers) == 0 {
		return errors.New("no Kafka brokers configured")
	}

	var lastErr error
	for _, broker := range p.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	return lastErr
}

// Stats returns result writer statistics
func (p *Producer) Stats() kafka.WriterStats {
	if w, ok := p.writer.(*kafka.Writer); ok {
		return w.Stats()
	}
	return kafka.WriterStats{}
}
