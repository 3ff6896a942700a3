package repositories

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"

	apperrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/metrics"
)

const (
	shipmentsTable        = "envios"
	destinationTable      = "envios_direcciones_destino"
	shipmentItemsTable    = "envios_items"
	customersTable        = "clientes"
	supersededColumn      = "superado"
	deletedColumn         = "elim"
	stateColumn           = "estado"
	loadedAtColumn        = "fecha_carga"
	customerFulfillColumn = "fullfilment"
)

// ShipmentStore acquires sessions against the database of the work item's company.
type ShipmentStore struct {
	provider database.Provider
	logger   ectologger.Logger
	now      func() time.Time
}

// NewShipmentStore creates a new shipment store
func NewShipmentStore(provider database.Provider, logger ectologger.Logger) *ShipmentStore {
	return &ShipmentStore{provider: provider, logger: logger, now: time.Now}
}

// Acquire pins one connection from the company's pool. The caller must Close the session.
func (s *ShipmentStore) Acquire(ctx context.Context, companyID int64) (ShipmentSessionRepo, error) {
	db, err := s.provider.ForCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}

	conn, err := db.Connx(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindTransport, err, "failed to acquire database connection").AddCompany(companyID)
	}

	return &ShipmentSession{
		conn:      conn,
		dialect:   db.Dialect(),
		companyID: companyID,
		logger:    s.logger,
		now:       s.now,
	}, nil
}

// ShipmentSession implements ShipmentSessionRepo over a pinned *sqlx.Conn.
type ShipmentSession struct {
	conn      *sqlx.Conn
	dialect   database.Dialect
	companyID int64
	logger    ectologger.Logger
	now       func() time.Time
}

func (s *ShipmentSession) Close() error {
	return s.conn.Close()
}

// transportError classifies a failed statement
func (s *ShipmentSession) transportError(err error, msg string) error {
	return apperrors.Wrap(apperrors.KindTransport, err, msg).AddCompany(s.companyID)
}

func observe(operation string, start time.Time) {
	metrics.RecordQuery(operation, time.Since(start).Seconds())
}
