package models

// ShipmentState is the value of the processing-state column on a routing row.
type ShipmentState int

const (
	ShipmentStatePending   ShipmentState = 0
	ShipmentStateProcessed ShipmentState = 1
)

// RoutingRow anchors a shipment to its owning customer and upstream identifiers.
// It is provisioned upstream and only read here.
type RoutingRow struct {
	ID                 int64  `db:"id"`
	UpstreamShipmentID string `db:"ml_shipment_id"`
	SellerID           string `db:"ml_vendedor_id"`
	CustomerID         int64  `db:"didCliente"`
}
