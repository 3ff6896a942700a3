package applier

import (
	"context"
	"strings"
	"time"

	"github.com/Gobusters/ectolinq"

	apperrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/merger"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/planner"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// run holds the state of one Process invocation
type run struct {
	applier *Applier
	item    models.WorkItem
	state   State

	session repositories.ShipmentSessionRepo
	row     *models.RoutingRow
	token   string

	shipmentDoc map[string]any
	orderDoc    map[string]any
	record      models.CanonicalShipmentRecord

	skipped      []string
	itemsWritten int
}

type step struct {
	name string
	next State
	fn   func(ctx context.Context) error
}

func (r *run) execute(ctx context.Context) models.Result {
	steps := []step{
		{name: "route", next: StateRouted, fn: r.route},
		{name: "authorize", next: StateAuthorized, fn: r.authorize},
		{name: "fetch", next: StateFetched, fn: r.fetch},
		{name: "merge", next: StateMerged, fn: r.merge},
		{name: "write_core", next: StateWrittenCore, fn: r.writeCore},
		{name: "write_address", next: StateWrittenAddress, fn: r.writeAddress},
		{name: "write_items", next: StateItemsApplied, fn: r.writeItems},
		{name: "mark_processed", next: StateProcessed, fn: r.markProcessed},
	}

	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return r.fail(apperrors.Wrap(apperrors.KindTransport, err, "invocation cancelled").AddStep(s.name))
		}

		if err := r.runStep(ctx, s); err != nil {
			return r.fail(err)
		}
		r.state = s.next
	}

	return models.Result{
		OK:                true,
		ShipmentRoutingID: r.item.ShipmentRoutingID,
		CompanyID:         r.item.CompanyID,
		State:             r.state.String(),
		SkippedFields:     r.skipped,
		ItemsWritten:      r.itemsWritten,
	}
}

func (r *run) runStep(ctx context.Context, s step) error {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "Applier."+s.name)
	defer span.End()

	err := s.fn(ctx)
	metrics.RecordStep(s.name, time.Since(start).Seconds())
	if err != nil {
		tracing.RecordError(span, err)
		return apperrors.Classify(err).AddStep(s.name)
	}
	return nil
}

// fail reports the failure at the last state the run reached
func (r *run) fail(err error) models.Result {
	se := apperrors.Classify(err).AddShipment(r.item.ShipmentRoutingID).AddCompany(r.item.CompanyID)
	return models.Result{
		OK:                false,
		ShipmentRoutingID: r.item.ShipmentRoutingID,
		CompanyID:         r.item.CompanyID,
		State:             StateFailed.String(),
		FailedAt:          r.state.String(),
		Error:             string(se.Kind),
		Message:           se.Detail(),
		SkippedFields:     r.skipped,
		ItemsWritten:      r.itemsWritten,
	}
}

func (r *run) release(ctx context.Context) {
	if r.session == nil {
		return
	}
	if err := r.session.Close(); err != nil {
		r.applier.logger.WithContext(ctx).WithError(err).Warn("Failed to release store session")
	}
	r.session = nil
}

func (r *run) route(ctx context.Context) error {
	session, err := r.applier.store.Acquire(ctx, r.item.CompanyID)
	if err != nil {
		return err
	}
	r.session = session

	row, err := session.GetRoutingRow(ctx, r.item.ShipmentRoutingID)
	if err != nil {
		return err
	}
	r.row = row
	return nil
}

func (r *run) authorize(ctx context.Context) error {
	sellerID := firstNonBlank(r.item.SellerID, r.row.SellerID)
	if sellerID == "" {
		return apperrors.New(apperrors.KindCredentialMissing, "no seller id on work item or routing row")
	}
	sellerID = r.applier.config.Overrides.Apply(r.row.CustomerID, r.item.CompanyID, sellerID)

	token, err := r.applier.tokens.Token(ctx, sellerID)
	if err != nil {
		return err
	}
	r.token = token
	return nil
}

func (r *run) fetch(ctx context.Context) error {
	shipmentID := firstNonBlank(r.item.UpstreamShipmentID, r.row.UpstreamShipmentID)
	if shipmentID == "" {
		return apperrors.New(apperrors.KindNotFound, "no upstream shipment id on work item or routing row")
	}

	shipmentDoc, err := r.applier.upstream.GetShipment(ctx, r.token, shipmentID)
	if err != nil {
		return err
	}
	if !merger.HasStreetName(shipmentDoc) {
		return apperrors.Newf(apperrors.KindUpstreamIncomplete, "shipment %s has no destination street name", shipmentID)
	}

	orderID := merger.OrderReference(shipmentDoc)
	if orderID == "" {
		return apperrors.Newf(apperrors.KindOrderIDUnresolved, "shipment %s carries no order reference", shipmentID)
	}

	orderDoc, err := r.applier.upstream.GetOrder(ctx, r.token, orderID)
	if err != nil {
		return err
	}

	r.shipmentDoc = shipmentDoc
	r.orderDoc = orderDoc
	return nil
}

func (r *run) merge(_ context.Context) error {
	r.record = merger.Merge(r.shipmentDoc, r.orderDoc)
	return nil
}

func (r *run) writeCore(ctx context.Context) error {
	if err := r.record.Validate(); err != nil {
		return err
	}

	columns, err := r.applier.reflector.Columns(ctx, r.item.CompanyID, planner.ShipmentTable, r.session)
	if err != nil {
		return err
	}

	plan, err := planner.Plan(planner.ShipmentCandidates(r.record), columns)
	if err != nil {
		return err
	}
	r.skipped = plan.Skipped

	affected, err := r.session.UpdateShipment(ctx, r.item.ShipmentRoutingID, plan.Assignments)
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.New(apperrors.KindNotFound, "routing row superseded or deleted before the core update")
	}
	return nil
}

func (r *run) writeAddress(ctx context.Context) error {
	_, err := r.session.InsertDestinationAddress(ctx, r.item.ShipmentRoutingID, &r.record)
	return err
}

func (r *run) writeItems(ctx context.Context) error {
	if len(r.record.Items) == 0 {
		return nil
	}
	if !ectolinq.Contains(r.applier.config.FulfillmentCompanyIDs, r.item.CompanyID) {
		return nil
	}

	fulfillment, err := r.session.GetCustomerFulfillment(ctx, r.row.CustomerID)
	if err != nil {
		return err
	}
	if !fulfillment {
		return nil
	}

	written, err := r.session.InsertItems(ctx, r.item.ShipmentRoutingID, &r.record)
	if err != nil {
		return err
	}
	r.itemsWritten = written
	return nil
}

func (r *run) markProcessed(ctx context.Context) error {
	affected, err := r.session.MarkProcessed(ctx, r.item.ShipmentRoutingID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.New(apperrors.KindNotFound, "routing row superseded or deleted during processing")
	}
	return nil
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
