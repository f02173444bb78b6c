package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/onnwee/subgate/db"
)

// SetupTestDB creates a test database connection and runs migrations.
// It skips the test if TEST_PG_DSN environment variable is not set.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set")
	}
	database, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.Migrate(context.Background(), database); err != nil {
		_ = database.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	// clear any leftovers from an aborted earlier run
	_, _ = database.Exec(`DELETE FROM expiry_markers`)
	_, _ = database.Exec(`DELETE FROM credentials`)
	t.Cleanup(func() {
		_, _ = database.Exec(`DELETE FROM expiry_markers`)
		_, _ = database.Exec(`DELETE FROM credentials`)
		_ = database.Close()
	})
	return database
}
