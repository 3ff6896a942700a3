// Package database opens relational pools, builds dialect-aware statements and runs transactions.
package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Gobusters/ectologger"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// DB is a pooled connection to one company database.
type DB interface {
	Connx(ctx context.Context) (*sqlx.Conn, error)
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	PingContext(ctx context.Context) error
	Stats() sql.DBStats
	Close() error
	Dialect() Dialect
}

type DatabaseInstance struct {
	*sqlx.DB
	dialect Dialect
	logger  ectologger.Logger
}

// NewDatabaseInstance wraps an open pool. The dialect is derived from the pool's driver name.
func NewDatabaseInstance(db *sqlx.DB, logger ectologger.Logger) (DB, error) {
	dialect, err := DialectFor(db.DriverName())
	if err != nil {
		return nil, err
	}
	return &DatabaseInstance{
		DB:      db,
		dialect: dialect,
		logger:  logger,
	}, nil
}

func (db *DatabaseInstance) Dialect() Dialect {
	return db.dialect
}

// Open connects a pool described by settings and verifies it with a ping.
func Open(ctx context.Context, settings Settings, logger ectologger.Logger) (DB, error) {
	dialect, err := DialectFor(settings.Driver)
	if err != nil {
		return nil, err
	}
	dsn, err := settings.DSN()
	if err != nil {
		return nil, err
	}

	conn, err := sqlx.ConnectContext(ctx, dialect.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database %s: %w", dialect.DriverName, settings.Name, err)
	}

	if settings.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(settings.MaxOpenConns)
	}
	if settings.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(settings.MaxIdleConns)
	}
	if settings.ConnMaxLifetime > 0 {
		conn.SetConnMaxLifetime(settings.ConnMaxLifetime)
	}

	logger.WithContext(ctx).WithFields(map[string]any{
		"driver":   dialect.DriverName,
		"host":     settings.Host,
		"database": settings.Name,
	}).Info("Connected to database")

	return NewDatabaseInstance(conn, logger)
}
