package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Ramsey-B/fern/pkg/database"
	apperrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/planner"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

type routingRowScan struct {
	ID                 int64          `db:"id"`
	UpstreamShipmentID sql.NullString `db:"ml_shipment_id"`
	SellerID           sql.NullString `db:"ml_vendedor_id"`
	CustomerID         sql.NullInt64  `db:"didCliente"`
}

// GetRoutingRow loads the live routing row. Superseded or deleted rows are NotFound.
func (s *ShipmentSession) GetRoutingRow(ctx context.Context, shipmentRoutingID int64) (*models.RoutingRow, error) {
	ctx, span := tracing.StartSpan(ctx, "ShipmentSession.GetRoutingRow")
	defer span.End()
	defer observe("get_routing_row", time.Now())

	sb := s.dialect.NewSelectBuilder()
	sb.Select("id", "ml_shipment_id", "ml_vendedor_id", "didCliente").
		From(shipmentsTable).
		Where(
			sb.Equal("id", shipmentRoutingID),
			sb.Equal(supersededColumn, 0),
			sb.Equal(deletedColumn, 0),
		).
		Limit(1)

	query, args := sb.Build()
	var row routingRowScan
	err := s.conn.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Newf(apperrors.KindNotFound, "shipment %d does not exist or is superseded", shipmentRoutingID).
			AddShipment(shipmentRoutingID).AddCompany(s.companyID)
	}
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"shipment_routing_id": shipmentRoutingID,
		}).Error("failed to get routing row")
		tracing.RecordError(span, err)
		return nil, s.transportError(err, "failed to get routing row")
	}

	return &models.RoutingRow{
		ID:                 row.ID,
		UpstreamShipmentID: row.UpstreamShipmentID.String,
		SellerID:           row.SellerID.String,
		CustomerID:         row.CustomerID.Int64,
	}, nil
}

// TableColumns runs the dialect introspection query
func (s *ShipmentSession) TableColumns(ctx context.Context, table string) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "ShipmentSession.TableColumns")
	defer span.End()
	defer observe("table_columns", time.Now())

	query, args := s.dialect.ColumnsQuery(table)
	var columns []string
	if err := s.conn.SelectContext(ctx, &columns, query, args...); err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	return columns, nil
}

// UpdateShipment writes the planned columns plus the forced state reset on the live row.
// Returns the number of rows changed.
func (s *ShipmentSession) UpdateShipment(ctx context.Context, shipmentRoutingID int64, assignments []planner.Assignment) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "ShipmentSession.UpdateShipment")
	defer span.End()
	defer observe("update_shipment", time.Now())

	ub := s.dialect.NewUpdateBuilder()
	ub.Update(shipmentsTable)

	sets := make([]string, 0, len(assignments)+2)
	for _, a := range assignments {
		if a.Column == stateColumn || a.Column == loadedAtColumn {
			continue
		}
		sets = append(sets, ub.Assign(a.Column, a.Value))
	}
	sets = append(sets,
		ub.Assign(stateColumn, int(models.ShipmentStatePending)),
		ub.Assign(loadedAtColumn, s.now()),
	)
	ub.Set(sets...)
	ub.Where(
		ub.Equal(supersededColumn, 0),
		ub.Equal(deletedColumn, 0),
		ub.Equal("id", shipmentRoutingID),
	)

	query, args := ub.Build()
	result, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"shipment_routing_id": shipmentRoutingID,
			"columns":             len(assignments),
		}).Error("failed to update shipment")
		tracing.RecordError(span, err)
		return 0, s.transportError(err, "failed to update shipment")
	}

	affected, _ := result.RowsAffected()
	return affected, nil
}

// InsertDestinationAddress appends a destination address row and links its did to its own id.
// Both statements share one transaction. Repeated calls append repeated rows.
func (s *ShipmentSession) InsertDestinationAddress(ctx context.Context, shipmentRoutingID int64, record *models.CanonicalShipmentRecord) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "ShipmentSession.InsertDestinationAddress")
	defer span.End()
	defer observe("insert_destination_address", time.Now())

	addr := record.Address
	var addressID int64

	err := database.RunInTx(ctx, s.logger, s.conn, func(tx *database.Transaction) error {
		ib := s.dialect.NewInsertBuilder()
		ib.InsertInto(destinationTable).
			Cols("didEnvio", "calle", "numero", "cp", "localidad", "provincia", "pais", "latitud", "longitud", "obs", "delivery_preference").
			Values(
				shipmentRoutingID,
				addr.StreetName,
				addr.StreetNumber,
				addr.ZipCode,
				addr.City.Name,
				addr.State.Name,
				addr.Country.Name,
				addr.Latitude,
				addr.Longitude,
				addr.Comment,
				string(addr.DeliveryPreference),
			)

		if s.dialect.SupportsReturning() {
			ib.Returning("id")
			query, args := ib.Build()
			if err := tx.QueryRowxContext(ctx, query, args...).Scan(&addressID); err != nil {
				return err
			}
		} else {
			query, args := ib.Build()
			result, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return err
			}
			if addressID, err = result.LastInsertId(); err != nil {
				return err
			}
		}

		ub := s.dialect.NewUpdateBuilder()
		ub.Update(destinationTable).
			Set(ub.Assign("did", addressID)).
			Where(ub.Equal("id", addressID))
		query, args := ub.Build()
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"shipment_routing_id": shipmentRoutingID,
		}).Error("failed to insert destination address")
		tracing.RecordError(span, err)
		return 0, s.transportError(err, "failed to insert destination address")
	}

	return addressID, nil
}

// GetCustomerFulfillment reports whether the live customer row has the fulfillment flag set.
// A missing customer is not fulfilled.
func (s *ShipmentSession) GetCustomerFulfillment(ctx context.Context, customerID int64) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "ShipmentSession.GetCustomerFulfillment")
	defer span.End()
	defer observe("get_customer_fulfillment", time.Now())

	sb := s.dialect.NewSelectBuilder()
	sb.Select(customerFulfillColumn).
		From(customersTable).
		Where(
			sb.Equal("did", customerID),
			sb.Equal(supersededColumn, 0),
			sb.Equal(deletedColumn, 0),
		).
		Limit(1)

	query, args := sb.Build()
	var flag sql.NullInt64
	err := s.conn.GetContext(ctx, &flag, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		tracing.RecordError(span, err)
		return false, s.transportError(err, "failed to read customer fulfillment")
	}
	return flag.Valid && flag.Int64 == 1, nil
}

// InsertItems writes one envios_items row per shipment item. No items means no statement.
func (s *ShipmentSession) InsertItems(ctx context.Context, shipmentRoutingID int64, record *models.CanonicalShipmentRecord) (int, error) {
	if len(record.Items) == 0 {
		return 0, nil
	}

	ctx, span := tracing.StartSpan(ctx, "ShipmentSession.InsertItems")
	defer span.End()
	defer observe("insert_items", time.Now())

	ib := s.dialect.NewInsertBuilder()
	ib.InsertInto(shipmentItemsTable).
		Cols("didEnvio", "codigo", "imagen", "descripcion", "ml_id", "dimensions", "cantidad", "variacion", "seller_sku")
	for _, item := range record.Items {
		ib.Values(
			shipmentRoutingID,
			item.ID,
			"",
			item.Description,
			item.ID,
			item.Dimensions,
			item.Quantity,
			"",
			record.SellerSKU(item.ID),
		)
	}

	query, args := ib.Build()
	if _, err := s.conn.ExecContext(ctx, query, args...); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"shipment_routing_id": shipmentRoutingID,
			"items":               len(record.Items),
		}).Error("failed to insert shipment items")
		tracing.RecordError(span, err)
		return 0, s.transportError(err, "failed to insert shipment items")
	}
	return len(record.Items), nil
}

// MarkProcessed flips the live row to the processed state
func (s *ShipmentSession) MarkProcessed(ctx context.Context, shipmentRoutingID int64) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "ShipmentSession.MarkProcessed")
	defer span.End()
	defer observe("mark_processed", time.Now())

	ub := s.dialect.NewUpdateBuilder()
	ub.Update(shipmentsTable).
		Set(ub.Assign(stateColumn, int(models.ShipmentStateProcessed))).
		Where(
			ub.Equal(supersededColumn, 0),
			ub.Equal(deletedColumn, 0),
			ub.Equal("id", shipmentRoutingID),
		)

	query, args := ub.Build()
	result, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		tracing.RecordError(span, err)
		return 0, s.transportError(err, "failed to mark shipment processed")
	}
	affected, _ := result.RowsAffected()
	return affected, nil
}
