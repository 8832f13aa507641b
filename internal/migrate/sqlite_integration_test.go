package migrate

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

// openTestDB opens an in-memory SQLite database.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	// The in-memory database lives per connection.
	db.SetMaxOpenConns(1)
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	if err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	return n > 0
}

func TestApplyAndRollbackAgainstSQLite(t *testing.T) {
	dir := t.TempDir()
	if err := NewJournal("sqlite").Save(dir); err != nil {
		t.Fatalf("scaffold journal: %v", err)
	}
	writeMigration(t, dir, "0000_users",
		"CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL);",
		"DROP TABLE users;")
	writeMigration(t, dir, "0001_users_name",
		"ALTER TABLE users ADD COLUMN name TEXT;",
		"ALTER TABLE users DROP COLUMN name;")

	db := openTestDB(t)
	runner := NewRunner(db, dir, NewProcessLock(), quietLogger())
	ctx := context.Background()

	result, err := runner.Apply(ctx)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result.Applied != 2 {
		t.Fatalf("expected 2 applied, got %d", result.Applied)
	}
	if !tableExists(t, db, "users") {
		t.Fatal("users table missing after apply")
	}
	if _, err := db.Exec(`INSERT INTO users (email, name) VALUES ('a@b.c', 'a')`); err != nil {
		t.Fatalf("insert with migrated column: %v", err)
	}

	rb, err := runner.Rollback(ctx, RollbackTarget{Count: 2})
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if rb.RolledBack != 2 {
		t.Fatalf("expected 2 rolled back, got %d", rb.RolledBack)
	}
	if tableExists(t, db, "users") {
		t.Fatal("users table still present after rollback")
	}

	journal := loadJournalOrFail(t, dir)
	if len(journal.Entries) != 0 {
		t.Errorf("expected empty journal, got %+v", journal.Entries)
	}
}

func TestApplyFailureAgainstSQLite(t *testing.T) {
	dir := t.TempDir()
	if err := NewJournal("sqlite").Save(dir); err != nil {
		t.Fatalf("scaffold journal: %v", err)
	}
	writeMigration(t, dir, "0000_ok", "CREATE TABLE a (id INTEGER);", "DROP TABLE a;")
	writeMigration(t, dir, "0001_bad", "CREATE TABLE ??? nope", "")

	db := openTestDB(t)
	runner := NewRunner(db, dir, nil, quietLogger())

	result, err := runner.Apply(context.Background())
	if err == nil {
		t.Fatal("expected apply to fail on invalid SQL")
	}
	if result.Applied != 1 {
		t.Errorf("expected 1 applied before failure, got %d", result.Applied)
	}
	if !tableExists(t, db, "a") {
		t.Error("first migration should remain committed")
	}

	journal := loadJournalOrFail(t, dir)
	if len(journal.Entries) != 1 || journal.Entries[0].Tag != "0000_ok" {
		t.Errorf("expected 0000_ok recorded, got %+v", journal.Entries)
	}
}
