package repositories

import (
	"context"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/planner"
)

// ShipmentStoreRepo hands out per-invocation sessions on a company database
type ShipmentStoreRepo interface {
	Acquire(ctx context.Context, companyID int64) (ShipmentSessionRepo, error)
}

// ShipmentSessionRepo runs every statement of one invocation on a single pinned connection.
// Every statement on envios and clientes excludes superseded and deleted rows.
type ShipmentSessionRepo interface {
	GetRoutingRow(ctx context.Context, shipmentRoutingID int64) (*models.RoutingRow, error)
	TableColumns(ctx context.Context, table string) ([]string, error)
	UpdateShipment(ctx context.Context, shipmentRoutingID int64, assignments []planner.Assignment) (int64, error)
	InsertDestinationAddress(ctx context.Context, shipmentRoutingID int64, record *models.CanonicalShipmentRecord) (int64, error)
	GetCustomerFulfillment(ctx context.Context, customerID int64) (bool, error)
	InsertItems(ctx context.Context, shipmentRoutingID int64, record *models.CanonicalShipmentRecord) (int, error)
	MarkProcessed(ctx context.Context, shipmentRoutingID int64) (int64, error)
	Close() error
}
