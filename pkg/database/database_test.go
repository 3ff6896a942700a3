package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Ramsey-B/fern/pkg/errors"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func openSQLite(t *testing.T) DB {
	t.Helper()
	db, err := Open(context.Background(), Settings{Driver: DriverSQLite, Name: filepath.Join(t.TempDir(), "fern.db")}, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestDialectFor(t *testing.T) {
	for _, name := range []string{"", "mysql", "MySQL"} {
		d, err := DialectFor(name)
		require.NoError(t, err)
		assert.Equal(t, DriverMySQL, d.DriverName)
		assert.False(t, d.SupportsReturning())
	}

	d, err := DialectFor("postgresql")
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, d.DriverName)
	assert.True(t, d.SupportsReturning())

	d, err = DialectFor("sqlite3")
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, d.DriverName)

	_, err = DialectFor("oracle")
	assert.Error(t, err)
}

func TestDialect_Placeholders(t *testing.T) {
	mysqlDialect, _ := DialectFor(DriverMySQL)
	pgDialect, _ := DialectFor(DriverPostgres)

	ub := mysqlDialect.NewUpdateBuilder()
	ub.Update("envios").Set(ub.Assign("estado", 1)).Where(ub.Equal("id", 10001))
	query, args := ub.Build()
	assert.Equal(t, "UPDATE envios SET estado = ? WHERE id = ?", query)
	assert.Equal(t, []any{1, 10001}, args)

	ub = pgDialect.NewUpdateBuilder()
	ub.Update("envios").Set(ub.Assign("estado", 1)).Where(ub.Equal("id", 10001))
	query, _ = ub.Build()
	assert.Equal(t, "UPDATE envios SET estado = $1 WHERE id = $2", query)
}

func TestDialect_ColumnsQuery(t *testing.T) {
	mysqlDialect, _ := DialectFor(DriverMySQL)
	query, args := mysqlDialect.ColumnsQuery("envios")
	assert.Contains(t, query, "information_schema.COLUMNS")
	assert.Contains(t, query, "DATABASE()")
	assert.Equal(t, []any{"envios"}, args)

	pgDialect, _ := DialectFor(DriverPostgres)
	query, args = pgDialect.ColumnsQuery("envios")
	assert.Contains(t, query, "current_schema()")
	assert.Contains(t, query, "$1")
	assert.Equal(t, []any{"envios"}, args)
}

func TestSettings_DSN(t *testing.T) {
	dsn, err := Settings{Driver: DriverMySQL, Host: "db", User: "fern", Password: "secret", Name: "empresa_275"}.DSN()
	require.NoError(t, err)
	assert.Contains(t, dsn, "fern:secret@tcp(db:3306)/empresa_275")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "clientFoundRows=true")

	dsn, err = Settings{Driver: DriverPostgres, Host: "pg", User: "u", Password: "p", Name: "n"}.DSN()
	require.NoError(t, err)
	assert.Equal(t, "host=pg port=5432 user=u password=p dbname=n sslmode=disable", dsn)

	_, err = Settings{Driver: DriverSQLite}.DSN()
	assert.Error(t, err)
}

func TestSQLite_IntrospectionAndTransactions(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	_, err := db.ExecContext(ctx, `CREATE TABLE envios (id INTEGER PRIMARY KEY, estado INTEGER, Peso REAL)`)
	require.NoError(t, err)

	query, args := db.Dialect().ColumnsQuery("envios")
	var columns []string
	require.NoError(t, db.SelectContext(ctx, &columns, query, args...))
	assert.Equal(t, []string{"id", "estado", "Peso"}, columns)

	err = RunInTx(ctx, testLogger(), db, func(tx *Transaction) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO envios (id, estado) VALUES (1, 0)`)
		return err
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = RunInTx(ctx, testLogger(), db, func(tx *Transaction) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO envios (id, estado) VALUES (2, 0)`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, db.GetContext(ctx, &count, `SELECT COUNT(*) FROM envios`))
	assert.Equal(t, 1, count)

	conn, err := db.Connx(ctx)
	require.NoError(t, err)
	defer conn.Close()

	tx, err := BeginTx(ctx, testLogger(), conn, nil)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	assert.False(t, tx.IsOpen())
	assert.NoError(t, tx.Commit(ctx))
	assert.NoError(t, tx.Rollback(ctx))
}

type fakeRegistryClient struct {
	value string
	err   error
	calls int
}

func (f *fakeRegistryClient) Get(_ context.Context, _ string) *redis.StringCmd {
	f.calls++
	return redis.NewStringResult(f.value, f.err)
}

type recordingOpener struct {
	opened []Settings
	err    error
	db     DB
}

func (o *recordingOpener) open(_ context.Context, settings Settings, _ ectologger.Logger) (DB, error) {
	o.opened = append(o.opened, settings)
	if o.err != nil {
		return nil, o.err
	}
	return o.db, nil
}

func TestCompanyRegistry_ForCompany(t *testing.T) {
	ctx := context.Background()
	client := &fakeRegistryClient{value: `{"275":{"dbname":"empresa_275","dbuser":"u275","dbpass":"p275"},"9":{"dbname":"e9","dbuser":"u","dbpass":"p","dbhost":"other"}}`}
	opener := &recordingOpener{db: openSQLite(t)}
	base := Settings{Driver: DriverMySQL, Host: "db", Port: "3306", MaxOpenConns: 5}

	registry := NewCompanyRegistry(client, "empresasData", base, opener.open, testLogger())

	db, err := registry.ForCompany(ctx, 275)
	require.NoError(t, err)
	assert.NotNil(t, db)
	require.Len(t, opener.opened, 1)
	assert.Equal(t, Settings{Driver: DriverMySQL, Host: "db", Port: "3306", User: "u275", Password: "p275", Name: "empresa_275", MaxOpenConns: 5}, opener.opened[0])

	_, err = registry.ForCompany(ctx, 275)
	require.NoError(t, err)
	assert.Len(t, opener.opened, 1)
	assert.Equal(t, 1, client.calls)

	_, err = registry.ForCompany(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, "other", opener.opened[1].Host)

	_, err = registry.ForCompany(ctx, 404)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestCompanyRegistry_Failures(t *testing.T) {
	ctx := context.Background()

	registry := NewCompanyRegistry(&fakeRegistryClient{err: redis.Nil}, "empresasData", Settings{}, (&recordingOpener{}).open, testLogger())
	_, err := registry.ForCompany(ctx, 1)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	registry = NewCompanyRegistry(&fakeRegistryClient{err: errors.New("dial tcp: refused")}, "empresasData", Settings{}, (&recordingOpener{}).open, testLogger())
	_, err = registry.ForCompany(ctx, 1)
	assert.Equal(t, apperrors.KindTransport, apperrors.KindOf(err))

	registry = NewCompanyRegistry(&fakeRegistryClient{value: `not json`}, "empresasData", Settings{}, (&recordingOpener{}).open, testLogger())
	_, err = registry.ForCompany(ctx, 1)
	assert.Equal(t, apperrors.KindTransport, apperrors.KindOf(err))

	opener := &recordingOpener{err: errors.New("access denied")}
	registry = NewCompanyRegistry(&fakeRegistryClient{value: `{"1":{"dbname":"e1"}}`}, "empresasData", Settings{}, opener.open, testLogger())
	_, err = registry.ForCompany(ctx, 1)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindTransport, apperrors.KindOf(err))
	assert.Contains(t, err.Error(), "access denied")
}
