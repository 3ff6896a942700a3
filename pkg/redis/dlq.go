package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	apperrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	// DefaultDLQStream is the default dead letter queue stream name
	DefaultDLQStream = "fern:dlq"

	// DLQMaxLen is the maximum length of the DLQ stream (oldest entries trimmed)
	DLQMaxLen = 10000
)

// DLQEntry is a work item that will not be retried automatically
type DLQEntry struct {
	ID                string                  `json:"id"`
	MessageID         string                  `json:"message_id,omitempty"`
	CompanyID         int64                   `json:"company_id"`
	ShipmentRoutingID int64                   `json:"shipment_routing_id"`
	Transport         string                  `json:"transport"`
	OriginalItem      string                  `json:"original_item"`
	Reason            models.DeadLetterReason `json:"reason"`
	ErrorKind         string                  `json:"error_kind,omitempty"`
	ErrorMessage      string                  `json:"error_message"`
	FailedAt          string                  `json:"failed_at,omitempty"`
	RetryCount        int                     `json:"retry_count"`
	CreatedAt         time.Time               `json:"created_at"`
	TraceID           string                  `json:"trace_id,omitempty"`
}

// Republisher puts a work item body back on the active queue
type Republisher interface {
	Publish(ctx context.Context, body []byte) error
}

// DeadLetterQueue stores failed work items in a capped stream
type DeadLetterQueue struct {
	client     *Client
	streamName string
	logger     ectologger.Logger
}

func NewDeadLetterQueue(client *Client, streamName string, logger ectologger.Logger) *DeadLetterQueue {
	if streamName == "" {
		streamName = DefaultDLQStream
	}
	return &DeadLetterQueue{
		client:     client,
		streamName: streamName,
		logger:     logger,
	}
}

// Add appends an entry to the dead letter queue
func (d *DeadLetterQueue) Add(ctx context.Context, entry *DLQEntry) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "DLQ.Add")
	defer span.End()
	defer observe("dlq_add", time.Now())

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.TraceID = tracing.GetTraceID(ctx)

	data, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("failed to marshal DLQ entry: %w", err)
	}

	messageID, err := d.client.Redis().XAdd(ctx, &redis.XAddArgs{
		Stream: d.streamName,
		MaxLen: DLQMaxLen,
		Approx: true,
		Values: map[string]any{
			dataField:    string(data),
			"company_id": strconv.FormatInt(entry.CompanyID, 10),
			"reason":     string(entry.Reason),
		},
	}).Result()
	if err != nil {
		tracing.RecordError(span, err)
		d.logger.WithContext(ctx).WithError(err).Error("Failed to add work item to DLQ")
		return "", apperrors.Wrap(apperrors.KindTransport, err, "failed to add to DLQ")
	}

	d.logger.WithContext(ctx).Infof("Added work item to DLQ: id=%s shipment=%d reason=%s", entry.ID, entry.ShipmentRoutingID, entry.Reason)
	return messageID, nil
}

// List returns the newest entries first
func (d *DeadLetterQueue) List(ctx context.Context, count int64) ([]DLQEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "DLQ.List")
	defer span.End()

	if count <= 0 {
		count = 100
	}

	messages, err := d.client.Redis().XRevRangeN(ctx, d.streamName, "+", "-", count).Result()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindTransport, err, "failed to read DLQ")
	}

	entries := make([]DLQEntry, 0, len(messages))
	for _, msg := range messages {
		entry, err := decodeEntry(msg)
		if err != nil {
			d.logger.WithContext(ctx).WithError(err).Warnf("Failed to unmarshal DLQ entry: %s", msg.ID)
			continue
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// ListByCompany returns up to count entries for one company
func (d *DeadLetterQueue) ListByCompany(ctx context.Context, companyID int64, count int64) ([]DLQEntry, error) {
	if count <= 0 {
		count = 100
	}
	entries, err := d.List(ctx, count*2)
	if err != nil {
		return nil, err
	}

	filtered := make([]DLQEntry, 0)
	for _, entry := range entries {
		if entry.CompanyID != companyID {
			continue
		}
		filtered = append(filtered, entry)
		if int64(len(filtered)) >= count {
			break
		}
	}
	return filtered, nil
}

// Get retrieves a specific DLQ entry by stream message ID
func (d *DeadLetterQueue) Get(ctx context.Context, messageID string) (*DLQEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "DLQ.Get")
	defer span.End()

	messages, err := d.client.Redis().XRange(ctx, d.streamName, messageID, messageID).Result()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindTransport, err, "failed to get DLQ entry")
	}
	if len(messages) == 0 {
		return nil, apperrors.Newf(apperrors.KindNotFound, "DLQ entry not found: %s", messageID)
	}

	entry, err := decodeEntry(messages[0])
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUnknown, err, "invalid DLQ entry")
	}
	return entry, nil
}

// Delete removes an entry from the dead letter queue
func (d *DeadLetterQueue) Delete(ctx context.Context, messageID string) error {
	ctx, span := tracing.StartSpan(ctx, "DLQ.Delete")
	defer span.End()

	count, err := d.client.Redis().XDel(ctx, d.streamName, messageID).Result()
	if err != nil {
		return apperrors.Wrap(apperrors.KindTransport, err, "failed to delete DLQ entry")
	}
	if count == 0 {
		return apperrors.Newf(apperrors.KindNotFound, "DLQ entry not found: %s", messageID)
	}

	d.logger.WithContext(ctx).Infof("Deleted DLQ entry: %s", messageID)
	return nil
}

// Count returns the number of entries in the DLQ
func (d *DeadLetterQueue) Count(ctx context.Context) (int64, error) {
	n, err := d.client.Redis().XLen(ctx, d.streamName).Result()
	if err != nil {
		return 0, apperrors.Wrap(apperrors.KindTransport, err, "failed to count DLQ entries")
	}
	return n, nil
}

// Retry re-publishes the original work item and removes the entry
func (d *DeadLetterQueue) Retry(ctx context.Context, messageID string, publisher Republisher) error {
	ctx, span := tracing.StartSpan(ctx, "DLQ.Retry")
	defer span.End()

	entry, err := d.Get(ctx, messageID)
	if err != nil {
		return err
	}
	if entry.OriginalItem == "" {
		return apperrors.Newf(apperrors.KindValidationFailed, "DLQ entry has no original work item: %s", messageID)
	}

	if err := publisher.Publish(ctx, []byte(entry.OriginalItem)); err != nil {
		return apperrors.Wrap(apperrors.KindTransport, err, "failed to re-enqueue work item")
	}

	if err := d.Delete(ctx, messageID); err != nil {
		d.logger.WithContext(ctx).WithError(err).Warn("Failed to delete DLQ entry after retry")
	}

	d.logger.WithContext(ctx).Infof("Retried DLQ entry: %s shipment=%d", messageID, entry.ShipmentRoutingID)
	return nil
}

func decodeEntry(msg redis.XMessage) (*DLQEntry, error) {
	data, ok := msg.Values[dataField].(string)
	if !ok {
		return nil, fmt.Errorf("DLQ entry %s has no data field", msg.ID)
	}

	var entry DLQEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, err
	}
	entry.MessageID = msg.ID
	return &entry, nil
}
