package testhelpers

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// NewSQLiteSalesDB returns a file-backed SQLite database in t.TempDir holding the
// sales fixture. It is closed when the test ends.
func NewSQLiteSalesDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "sales.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	for _, stmt := range SalesFixtureStatements("NUMERIC(10,2)") {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("load sales fixture: %v", err)
		}
	}
	return db
}
