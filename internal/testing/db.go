// Package testing provides test doubles and database helpers.
package testing

import (
	"database/sql"
	"fmt"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/aristath/groverq/internal/database"
)

// NewTestDB creates a temp-file SQLite database migrated with the schema
// registered for name ("runs"; unknown names get an empty database).
// The database is closed and removed when the test finishes.
func NewTestDB(t *testing.T, name string) *database.DB {
	t.Helper()

	tmpFile, err := os.CreateTemp("", fmt.Sprintf("test_%s_*.db", name))
	if err != nil {
		t.Fatalf("Failed to create temporary database file: %v", err)
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()

	db, err := database.New(database.Config{
		Path:    tmpPath,
		Profile: database.ProfileStandard,
		Name:    name,
	})
	if err != nil {
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
		for _, suffix := range []string{"", "-wal", "-shm"} {
			_ = os.Remove(tmpPath + suffix)
		}
	})
	return db
}

// NewMemoryDB opens an in-memory database through mattn/go-sqlite3 and
// applies the schema registered for name. Each call gets its own isolated
// database.
func NewMemoryDB(t *testing.T, name string) *database.DB {
	t.Helper()

	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	// A second pooled connection would see a different empty database.
	conn.SetMaxOpenConns(1)

	t.Cleanup(func() { _ = conn.Close() })

	db := database.NewFromConn(conn, name)
	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to migrate in-memory database %s: %v", name, err)
	}
	return db
}
