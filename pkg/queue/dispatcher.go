// Package queue turns queued work item bodies into applier runs and decides their delivery outcome.
package queue

import (
	"context"
	"strconv"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	appctx "github.com/Ramsey-B/fern/pkg/context"
	apperrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Outcome tells a transport what to do with a delivery
type Outcome string

const (
	// OutcomeAck removes the delivery; the work item was processed.
	OutcomeAck Outcome = "ack"
	// OutcomeRetry leaves the delivery for redelivery.
	OutcomeRetry Outcome = "retry"
	// OutcomeDeadLetter removes the delivery after it was recorded in the DLQ.
	OutcomeDeadLetter Outcome = "dead_letter"
)

// Delivery is one work item body as received from a transport
type Delivery struct {
	Transport string
	MessageID string
	Body      []byte
	Attempt   int
	// Final is set when the transport will not deliver this body again.
	Final bool
}

// ShipmentProcessor runs one work item through the pipeline
type ShipmentProcessor interface {
	Process(ctx context.Context, item models.WorkItem) models.Result
}

type ResultPublisher interface {
	PublishResult(ctx context.Context, result models.Result, transport string) error
}

type DeadLetterWriter interface {
	Add(ctx context.Context, entry *redis.DLQEntry) (string, error)
}

// Dispatcher runs deliveries through the applier. Results are published when a publisher is set
// and unrecoverable deliveries are written to the DLQ when one is set.
type Dispatcher struct {
	processor ShipmentProcessor
	results   ResultPublisher
	dlq       DeadLetterWriter
	logger    ectologger.Logger
}

func NewDispatcher(processor ShipmentProcessor, results ResultPublisher, dlq DeadLetterWriter, logger ectologger.Logger) *Dispatcher {
	return &Dispatcher{
		processor: processor,
		results:   results,
		dlq:       dlq,
		logger:    logger,
	}
}

// Handle processes one delivery and returns what the transport should do with it
func (d *Dispatcher) Handle(ctx context.Context, delivery Delivery) Outcome {
	requestID := delivery.MessageID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	ctx = appctx.SetRequestID(ctx, requestID)
	ctx = appctx.SetTransport(ctx, delivery.Transport)

	ctx, span := tracing.StartSpan(ctx, "Dispatcher.Handle",
		attribute.String("messaging.system", delivery.Transport),
		attribute.String("messaging.message_id", delivery.MessageID),
		attribute.Int("messaging.attempt", delivery.Attempt),
	)
	defer span.End()

	outcome := d.handle(ctx, delivery)
	metrics.RecordQueueJob(delivery.Transport, string(outcome))
	span.SetAttributes(attribute.String("queue.outcome", string(outcome)))
	return outcome
}

func (d *Dispatcher) handle(ctx context.Context, delivery Delivery) Outcome {
	item, err := models.ParseWorkItem(delivery.Body)
	if err != nil {
		d.logger.WithContext(ctx).WithError(err).Warnf("Discarding invalid work item %s", delivery.MessageID)
		entry := d.entry(delivery, models.Result{}, models.DLQReasonInvalidItem)
		entry.ErrorKind = string(apperrors.KindValidationFailed)
		entry.ErrorMessage = err.Error()
		d.deadLetter(ctx, entry)
		return OutcomeDeadLetter
	}

	result := d.processor.Process(ctx, *item)
	d.publish(ctx, result, delivery.Transport)

	if result.OK {
		return OutcomeAck
	}

	kind := result.Kind()
	if kind.Retryable() && !delivery.Final {
		d.logger.WithContext(ctx).WithFields(appctx.LogFields(ctx)).Infof("Work item %s will be retried (attempt %d)", delivery.MessageID, delivery.Attempt)
		return OutcomeRetry
	}

	reason := models.DeadLetterReasonFor(kind)
	if kind.Retryable() {
		reason = models.DLQReasonMaxRetries
	}
	if err := d.deadLetter(ctx, d.entry(delivery, result, reason)); err != nil && !delivery.Final {
		return OutcomeRetry
	}
	return OutcomeDeadLetter
}

// DeadLetter records a delivery that could not be dispatched at all
func (d *Dispatcher) DeadLetter(ctx context.Context, delivery Delivery, reason models.DeadLetterReason, message string) error {
	entry := d.entry(delivery, models.Result{}, reason)
	entry.ErrorMessage = message
	if item, err := models.ParseWorkItem(delivery.Body); err == nil {
		entry.CompanyID = item.CompanyID
		entry.ShipmentRoutingID = item.ShipmentRoutingID
	}
	return d.deadLetter(ctx, entry)
}

func (d *Dispatcher) entry(delivery Delivery, result models.Result, reason models.DeadLetterReason) *redis.DLQEntry {
	return &redis.DLQEntry{
		CompanyID:         result.CompanyID,
		ShipmentRoutingID: result.ShipmentRoutingID,
		Transport:         delivery.Transport,
		OriginalItem:      string(delivery.Body),
		Reason:            reason,
		ErrorKind:         result.Error,
		ErrorMessage:      result.Message,
		FailedAt:          result.FailedAt,
		RetryCount:        delivery.Attempt,
	}
}

func (d *Dispatcher) deadLetter(ctx context.Context, entry *redis.DLQEntry) error {
	if d.dlq == nil {
		d.logger.WithContext(ctx).Warnf("No DLQ configured, dropping work item for shipment %d (%s)", entry.ShipmentRoutingID, entry.Reason)
		return nil
	}

	if _, err := d.dlq.Add(ctx, entry); err != nil {
		d.logger.WithContext(ctx).WithError(err).Errorf("Failed to dead-letter work item for shipment %d", entry.ShipmentRoutingID)
		return err
	}
	metrics.RecordDLQJob(strconv.FormatInt(entry.CompanyID, 10), string(entry.Reason))
	return nil
}

func (d *Dispatcher) publish(ctx context.Context, result models.Result, transport string) {
	if d.results == nil {
		return
	}
	if err := d.results.PublishResult(ctx, result, transport); err != nil {
		d.logger.WithContext(ctx).WithError(err).Warn("Failed to publish result event")
	}
}
