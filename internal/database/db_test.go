package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsDSN(t *testing.T) {
	dsn, err := Options{Driver: DriverMySQL, User: "app", Pass: "secret", Host: "db", Port: "3306", Name: "waterlog"}.DSN()
	require.NoError(t, err)
	assert.Equal(t, "app:secret@tcp(db:3306)/waterlog?charset=utf8mb4&parseTime=true&loc=UTC&clientFoundRows=true", dsn)

	dsn, err = Options{Driver: DriverMySQL, User: "app", Host: "db", Port: "3306", Name: "waterlog"}.DSN()
	require.NoError(t, err)
	assert.Equal(t, "app@tcp(db:3306)/waterlog?charset=utf8mb4&parseTime=true&loc=UTC&clientFoundRows=true", dsn)

	dsn, err = Options{Driver: DriverSQLite}.DSN()
	require.NoError(t, err)
	assert.Equal(t, ":memory:", dsn)

	_, err = Options{Driver: "postgres"}.DSN()
	assert.Error(t, err)
}

func TestMigrateSQLiteIsIdempotent(t *testing.T) {
	db, err := Open(Options{Driver: DriverSQLite})
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, Migrate(ctx, db, DriverSQLite))
	require.NoError(t, Migrate(ctx, db, DriverSQLite))

	for _, table := range []string{"users", "trucks", "clients", "route_manifests", "sales_details", "debt_records", "audit_logs"} {
		var name string
		err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}

func TestMigrateRejectsUnknownDriver(t *testing.T) {
	db, err := Open(Options{Driver: DriverSQLite})
	require.NoError(t, err)
	defer db.Close()
	assert.Error(t, Migrate(context.Background(), db, "oracle"))
}
