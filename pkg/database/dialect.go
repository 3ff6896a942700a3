package database

import (
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Dialect binds a driver to its go-sqlbuilder flavor and its schema introspection query.
type Dialect struct {
	DriverName string
	Flavor     sqlbuilder.Flavor
}

// DialectFor returns the dialect of a configured driver name
func DialectFor(driverName string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driverName)) {
	case DriverMySQL, "":
		return Dialect{DriverName: DriverMySQL, Flavor: sqlbuilder.MySQL}, nil
	case DriverPostgres, "postgresql", "pgx":
		return Dialect{DriverName: DriverPostgres, Flavor: sqlbuilder.PostgreSQL}, nil
	case DriverSQLite, "sqlite3":
		return Dialect{DriverName: DriverSQLite, Flavor: sqlbuilder.SQLite}, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver: %s", driverName)
	}
}

func (d Dialect) NewSelectBuilder() *sqlbuilder.SelectBuilder {
	return d.Flavor.NewSelectBuilder()
}

func (d Dialect) NewUpdateBuilder() *sqlbuilder.UpdateBuilder {
	return d.Flavor.NewUpdateBuilder()
}

func (d Dialect) NewInsertBuilder() *sqlbuilder.InsertBuilder {
	return d.Flavor.NewInsertBuilder()
}

// SupportsReturning reports whether generated ids are read with RETURNING instead of LastInsertId.
func (d Dialect) SupportsReturning() bool {
	return d.Flavor == sqlbuilder.PostgreSQL
}

// ColumnsQuery returns the statement listing the columns of table in the current database.
func (d Dialect) ColumnsQuery(table string) (string, []any) {
	switch d.Flavor {
	case sqlbuilder.PostgreSQL:
		sb := d.NewSelectBuilder()
		sb.Select("column_name").
			From("information_schema.columns").
			Where(sb.Equal("table_name", table), "table_schema = current_schema()").
			OrderBy("ordinal_position")
		return sb.Build()
	case sqlbuilder.SQLite:
		return "SELECT name FROM pragma_table_info(?) ORDER BY cid", []any{table}
	default:
		sb := d.NewSelectBuilder()
		sb.Select("COLUMN_NAME").
			From("information_schema.COLUMNS").
			Where(sb.Equal("TABLE_NAME", table), "TABLE_SCHEMA = DATABASE()").
			OrderBy("ORDINAL_POSITION")
		return sb.Build()
	}
}
