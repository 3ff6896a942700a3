package repositories_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/testdb"
	"github.com/Ramsey-B/fern/pkg/database"
	apperrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/planner"
	"github.com/Ramsey-B/fern/pkg/repositories"
)

func newSession(t *testing.T, db database.DB) repositories.ShipmentSessionRepo {
	t.Helper()
	store := repositories.NewShipmentStore(database.NewStaticProvider(db), testdb.Logger())
	session, err := store.Acquire(context.Background(), 275)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func record() *models.CanonicalShipmentRecord {
	return &models.CanonicalShipmentRecord{
		OrderID: "2000008113466484",
		Address: models.Address{
			StreetName:         "Av. Santa Fe",
			StreetNumber:       "1234",
			ZipCode:            "1425",
			City:               models.Place{Name: "Palermo"},
			State:              models.Place{Name: "Capital Federal"},
			Country:            models.Place{Name: "Argentina"},
			Latitude:           sql.NullFloat64{Float64: -34.5, Valid: true},
			DeliveryPreference: models.DeliveryPreferenceResidential,
		},
		Items: []models.ShipmentItem{
			{ID: "MLA1", Description: "Mate", Dimensions: "10x10x10,200", Quantity: 2},
			{ID: "MLA2", Description: "Bombilla", Quantity: 1},
		},
		OrderItems: []map[string]any{
			{"item": map[string]any{"id": "MLA1", "seller_sku": "SKU-1"}},
		},
	}
}

func TestShipmentSession_GetRoutingRow(t *testing.T) {
	ctx := context.Background()
	db := testdb.New(t, testdb.FullShipmentsTable)
	testdb.SeedShipment(t, db, 10001, 209, "45399487764", "1964159102")
	_, err := db.ExecContext(ctx, `INSERT INTO envios (id, didCliente, superado) VALUES (10002, 1, 1)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO envios (id, didCliente, elim) VALUES (10003, 1, 1)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO envios (id) VALUES (10004)`)
	require.NoError(t, err)

	session := newSession(t, db)

	row, err := session.GetRoutingRow(ctx, 10001)
	require.NoError(t, err)
	assert.Equal(t, models.RoutingRow{ID: 10001, UpstreamShipmentID: "45399487764", SellerID: "1964159102", CustomerID: 209}, *row)

	row, err = session.GetRoutingRow(ctx, 10004)
	require.NoError(t, err)
	assert.Equal(t, models.RoutingRow{ID: 10004}, *row)

	for _, id := range []int64{10002, 10003, 99999} {
		_, err := session.GetRoutingRow(ctx, id)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	}
}

func TestShipmentSession_TableColumns(t *testing.T) {
	session := newSession(t, testdb.New(t, testdb.LegacyShipmentsTable))

	columns, err := session.TableColumns(context.Background(), "envios")
	require.NoError(t, err)
	assert.Contains(t, columns, "ml_venta_id")
	assert.Contains(t, columns, "didCliente")
	assert.NotContains(t, columns, "ml_pack_id")

	columns, err = session.TableColumns(context.Background(), "missing_table")
	require.NoError(t, err)
	assert.Empty(t, columns)
}

func TestShipmentSession_UpdateShipmentIsGuarded(t *testing.T) {
	ctx := context.Background()
	db := testdb.New(t, testdb.FullShipmentsTable)
	testdb.SeedShipment(t, db, 10001, 209, "45399487764", "1964159102")
	_, err := db.ExecContext(ctx, `INSERT INTO envios (id, superado, estado, peso) VALUES (10002, 1, 1, 9)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `UPDATE envios SET estado = 1 WHERE id = 10001`)
	require.NoError(t, err)

	session := newSession(t, db)
	assignments := []planner.Assignment{
		{Column: "ml_venta_id", Value: "2000008113466484"},
		{Column: "peso", Value: 1.2},
		{Column: "estado", Value: 7},
	}

	affected, err := session.UpdateShipment(ctx, 10001, assignments)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	var got struct {
		OrderID string         `db:"ml_venta_id"`
		Weight  float64        `db:"peso"`
		State   int            `db:"estado"`
		Loaded  sql.NullString `db:"fecha_carga"`
	}
	require.NoError(t, db.GetContext(ctx, &got, `SELECT ml_venta_id, peso, estado, fecha_carga FROM envios WHERE id = 10001`))
	assert.Equal(t, "2000008113466484", got.OrderID)
	assert.Equal(t, 1.2, got.Weight)
	assert.Equal(t, 0, got.State)
	assert.True(t, got.Loaded.Valid)

	affected, err = session.UpdateShipment(ctx, 10002, assignments)
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)
	assert.Equal(t, 1, testdb.Count(t, db, "envios", "id = 10002 AND peso = 9 AND estado = 1"))
}

func TestShipmentSession_UpdateUnknownColumnIsTransport(t *testing.T) {
	ctx := context.Background()
	db := testdb.New(t, testdb.LegacyShipmentsTable)
	testdb.SeedShipment(t, db, 1, 1, "s", "v")

	_, err := newSession(t, db).UpdateShipment(ctx, 1, []planner.Assignment{{Column: "ml_pack_id", Value: "x"}})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindTransport, apperrors.KindOf(err))
}

func TestShipmentSession_InsertDestinationAddress(t *testing.T) {
	ctx := context.Background()
	db := testdb.New(t, testdb.FullShipmentsTable)
	session := newSession(t, db)

	first, err := session.InsertDestinationAddress(ctx, 10001, record())
	require.NoError(t, err)
	second, err := session.InsertDestinationAddress(ctx, 10001, record())
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, 2, testdb.Count(t, db, "envios_direcciones_destino", "didEnvio = 10001"))
	assert.Equal(t, 2, testdb.Count(t, db, "envios_direcciones_destino", "did = id"))
	assert.Equal(t, 1, testdb.Count(t, db, "envios_direcciones_destino",
		"id = ? AND calle = 'Av. Santa Fe' AND numero = '1234' AND cp = '1425' AND localidad = 'Palermo' AND provincia = 'Capital Federal' AND pais = 'Argentina' AND latitud = -34.5 AND longitud IS NULL AND delivery_preference = 'residential'", first))
}

func TestShipmentSession_CustomerFulfillment(t *testing.T) {
	ctx := context.Background()
	db := testdb.New(t, testdb.FullShipmentsTable)
	testdb.SeedCustomer(t, db, 209, true)
	testdb.SeedCustomer(t, db, 210, false)
	_, err := db.ExecContext(ctx, `INSERT INTO clientes (did, fullfilment, elim) VALUES (211, 1, 1)`)
	require.NoError(t, err)

	session := newSession(t, db)
	for customer, expected := range map[int64]bool{209: true, 210: false, 211: false, 404: false} {
		got, err := session.GetCustomerFulfillment(ctx, customer)
		require.NoError(t, err)
		assert.Equal(t, expected, got, "customer %d", customer)
	}
}

func TestShipmentSession_InsertItems(t *testing.T) {
	ctx := context.Background()
	db := testdb.New(t, testdb.FullShipmentsTable)
	session := newSession(t, db)

	n, err := session.InsertItems(ctx, 10001, record())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, testdb.Count(t, db, "envios_items",
		"didEnvio = 10001 AND codigo = 'MLA1' AND ml_id = 'MLA1' AND descripcion = 'Mate' AND cantidad = 2 AND seller_sku = 'SKU-1' AND imagen = '' AND variacion = ''"))
	assert.Equal(t, 1, testdb.Count(t, db, "envios_items", "codigo = 'MLA2' AND seller_sku = ''"))

	empty := record()
	empty.Items = nil
	n, err = session.InsertItems(ctx, 10001, empty)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 2, testdb.Count(t, db, "envios_items", "1 = 1"))
}

func TestShipmentSession_MarkProcessed(t *testing.T) {
	ctx := context.Background()
	db := testdb.New(t, testdb.FullShipmentsTable)
	testdb.SeedShipment(t, db, 10001, 209, "s", "v")

	session := newSession(t, db)
	affected, err := session.MarkProcessed(ctx, 10001)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	assert.Equal(t, 1, testdb.Count(t, db, "envios", "id = 10001 AND estado = 1"))

	affected, err = session.MarkProcessed(ctx, 55)
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)
}

func TestShipmentStore_AcquireFailure(t *testing.T) {
	db := testdb.New(t, testdb.FullShipmentsTable)
	require.NoError(t, db.Close())

	store := repositories.NewShipmentStore(database.NewStaticProvider(db), testdb.Logger())
	_, err := store.Acquire(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindTransport, apperrors.KindOf(err))
}
