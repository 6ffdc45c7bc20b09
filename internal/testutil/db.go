// Package testutil provides an in-memory store with the full schema for
// service and handler tests.
package testutil

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-events-go/internal/schema"
	"github.com/ovaphlow/pitchfork/service-events-go/pkg/database"
)

// NewDB opens a private in-memory SQLite database with every table created.
// It is closed when the test ends.
func NewDB(t testing.TB) *sqlx.DB {
	t.Helper()
	db, err := database.Connect(database.Config{Driver: database.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, schema.Ensure(context.Background(), db))
	return db
}
