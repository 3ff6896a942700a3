// Package applier runs one work item through the shipment pipeline: route, authorize, fetch,
// merge, then the guarded multi-table write.
package applier

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"

	appctx "github.com/Ramsey-B/fern/pkg/context"
	apperrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/overrides"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/schema"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// TokenResolver finds the API token of a seller
type TokenResolver interface {
	Token(ctx context.Context, sellerID string) (string, error)
}

// DocumentFetcher reads upstream shipment and order documents
type DocumentFetcher interface {
	GetShipment(ctx context.Context, token, shipmentID string) (map[string]any, error)
	GetOrder(ctx context.Context, token, orderID string) (map[string]any, error)
}

// ColumnReflector returns the live columns of a company table
type ColumnReflector interface {
	Columns(ctx context.Context, companyID int64, table string, src schema.ColumnSource) (schema.ColumnSet, error)
}

type Config struct {
	// FulfillmentCompanyIDs are the companies whose fulfillment customers get item rows.
	FulfillmentCompanyIDs []int64
	Overrides             overrides.Table
}

type Applier struct {
	store     repositories.ShipmentStoreRepo
	tokens    TokenResolver
	upstream  DocumentFetcher
	reflector ColumnReflector
	config    Config
	logger    ectologger.Logger
}

func New(
	store repositories.ShipmentStoreRepo,
	tokens TokenResolver,
	upstream DocumentFetcher,
	reflector ColumnReflector,
	config Config,
	logger ectologger.Logger,
) *Applier {
	return &Applier{
		store:     store,
		tokens:    tokens,
		upstream:  upstream,
		reflector: reflector,
		config:    config,
		logger:    logger,
	}
}

// Process runs the pipeline for one work item. Failures are reported in the result, never returned.
func (a *Applier) Process(ctx context.Context, item models.WorkItem) (result models.Result) {
	start := time.Now()
	ctx = appctx.SetCompanyID(ctx, item.CompanyID)
	ctx = appctx.SetShipmentRoutingID(ctx, item.ShipmentRoutingID)
	ctx, span := tracing.StartSpan(ctx, "Applier.Process", tracing.ShipmentAttributes(item.CompanyID, item.ShipmentRoutingID)...)
	defer span.End()

	r := &run{applier: a, item: item, state: StateStarted}

	defer func() {
		if p := recover(); p != nil {
			a.logger.WithContext(ctx).WithFields(appctx.LogFields(ctx)).Errorf("recovered panic in state %s: %v", r.state, p)
			result = r.fail(apperrors.Newf(apperrors.KindUnknown, "panic: %v", p))
		}
		r.release(ctx)
		a.finish(ctx, result, time.Since(start))
		if !result.OK {
			tracing.RecordError(span, fmt.Errorf("%s: %s", result.Error, result.Message))
		}
	}()

	return r.execute(ctx)
}

func (a *Applier) finish(ctx context.Context, result models.Result, elapsed time.Duration) {
	companyID := strconv.FormatInt(result.CompanyID, 10)
	metrics.RecordShipment(companyID, result.State, string(result.Kind()), elapsed.Seconds())
	if result.ItemsWritten > 0 {
		metrics.ItemsWrittenTotal.WithLabelValues(companyID).Add(float64(result.ItemsWritten))
	}
	if len(result.SkippedFields) > 0 {
		metrics.SkippedColumnsTotal.WithLabelValues(companyID, "envios").Add(float64(len(result.SkippedFields)))
	}

	fields := appctx.LogFields(ctx)
	fields["state"] = result.State
	fields["duration_ms"] = elapsed.Milliseconds()

	if result.OK {
		fields["items_written"] = result.ItemsWritten
		fields["skipped_columns"] = len(result.SkippedFields)
		a.logger.WithContext(ctx).WithFields(fields).Info("Shipment processed")
		return
	}

	fields["failed_at"] = result.FailedAt
	fields["error_kind"] = result.Error
	a.logger.WithContext(ctx).WithFields(fields).Warnf("Shipment failed: %s", result.Message)
}
