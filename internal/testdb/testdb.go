// Package testdb creates throwaway sqlite databases shaped like a company shipment database.
package testdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/database"
)

// FullShipmentsTable carries every column the shipment update can write.
const FullShipmentsTable = `CREATE TABLE envios (
	id INTEGER PRIMARY KEY,
	didCliente INTEGER,
	ml_shipment_id TEXT,
	ml_vendedor_id TEXT,
	superado INTEGER NOT NULL DEFAULT 0,
	elim INTEGER NOT NULL DEFAULT 0,
	estado INTEGER NOT NULL DEFAULT 0,
	fecha_carga DATETIME,
	ml_venta_id TEXT,
	obs TEXT,
	peso REAL,
	tracking_method TEXT,
	tracking_number TEXT,
	fecha_venta DATETIME,
	destination_type TEXT,
	destination_receiver_id TEXT,
	destination_receiver_name TEXT,
	destination_receiver_phone TEXT,
	destination_comments TEXT,
	destination_shipping_address_id TEXT,
	destination_shipping_address_line TEXT,
	destination_shipping_street_name TEXT,
	destination_shipping_street_number TEXT,
	destination_shipping_comment TEXT,
	destination_shipping_zip_code TEXT,
	destination_city_id TEXT,
	destination_city_name TEXT,
	destination_state_id TEXT,
	destination_state_name TEXT,
	destination_country_id TEXT,
	destination_country_name TEXT,
	destination_neighborhood_id TEXT,
	destination_neighborhood_name TEXT,
	destination_municipality_id TEXT,
	destination_municipality_name TEXT,
	destination_types TEXT,
	destination_latitude REAL,
	destination_longitude REAL,
	lead_time_option_id TEXT,
	lead_time_shipping_method_id TEXT,
	lead_time_shipping_method_name TEXT,
	lead_time_shipping_method_type TEXT,
	lead_time_shipping_method_deliver_to TEXT,
	lead_time_currency_id TEXT,
	lead_time_cost REAL,
	lead_time_list_cost REAL,
	estimated_delivery_time_date DATETIME,
	estimated_delivery_time_date_72 DATETIME,
	estimated_delivery_time_date_480 DATETIME,
	estimated_delivery_extended TEXT,
	base_cost REAL,
	delivery_preference TEXT,
	valor_declarado REAL,
	turbo INTEGER,
	ml_pack_id TEXT
)`

// LegacyShipmentsTable is an older envios layout lacking the newer optional columns.
const LegacyShipmentsTable = `CREATE TABLE envios (
	id INTEGER PRIMARY KEY,
	didCliente INTEGER,
	ml_shipment_id TEXT,
	ml_vendedor_id TEXT,
	superado INTEGER NOT NULL DEFAULT 0,
	elim INTEGER NOT NULL DEFAULT 0,
	estado INTEGER NOT NULL DEFAULT 0,
	fecha_carga DATETIME,
	ml_venta_id TEXT,
	peso REAL,
	destination_city_name TEXT,
	destination_shipping_zip_code TEXT
)`

const destinationTable = `CREATE TABLE envios_direcciones_destino (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	did INTEGER,
	didEnvio INTEGER,
	calle TEXT,
	numero TEXT,
	cp TEXT,
	localidad TEXT,
	provincia TEXT,
	pais TEXT,
	latitud REAL,
	longitud REAL,
	obs TEXT,
	delivery_preference TEXT
)`

const itemsTable = `CREATE TABLE envios_items (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	didEnvio INTEGER,
	codigo TEXT,
	imagen TEXT,
	descripcion TEXT,
	ml_id TEXT,
	dimensions TEXT,
	cantidad INTEGER,
	variacion TEXT,
	seller_sku TEXT
)`

const customersTable = `CREATE TABLE clientes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	did INTEGER,
	fullfilment INTEGER NOT NULL DEFAULT 0,
	superado INTEGER NOT NULL DEFAULT 0,
	elim INTEGER NOT NULL DEFAULT 0
)`

// Logger discards everything
func Logger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// New opens a sqlite database with the given envios layout and the related tables.
func New(t *testing.T, shipmentsDDL string) database.DB {
	t.Helper()

	db, err := database.Open(context.Background(), database.Settings{
		Driver: database.DriverSQLite,
		Name:   filepath.Join(t.TempDir(), "company.db"),
	}, Logger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	for _, ddl := range []string{shipmentsDDL, destinationTable, itemsTable, customersTable} {
		_, err := db.ExecContext(context.Background(), ddl)
		require.NoError(t, err)
	}
	return db
}

// SeedShipment inserts a live routing row
func SeedShipment(t *testing.T, db database.DB, id, customerID int64, upstreamShipmentID, sellerID string) {
	t.Helper()
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO envios (id, didCliente, ml_shipment_id, ml_vendedor_id) VALUES (?, ?, ?, ?)`,
		id, customerID, upstreamShipmentID, sellerID)
	require.NoError(t, err)
}

// SeedCustomer inserts a live customer row
func SeedCustomer(t *testing.T, db database.DB, did int64, fulfillment bool) {
	t.Helper()
	flag := 0
	if fulfillment {
		flag = 1
	}
	_, err := db.ExecContext(context.Background(), `INSERT INTO clientes (did, fullfilment) VALUES (?, ?)`, did, flag)
	require.NoError(t, err)
}

// Count returns the number of rows in table matching where
func Count(t *testing.T, db database.DB, table, where string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.GetContext(context.Background(), &n, "SELECT COUNT(*) FROM "+table+" WHERE "+where, args...))
	return n
}
