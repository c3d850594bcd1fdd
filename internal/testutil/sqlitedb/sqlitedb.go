// Package sqlitedb opens in-memory SQLite databases loaded with the service
// schema for semantic query tests.
package sqlitedb

import (
	"database/sql"
	_ "embed"
	"strings"
	"testing"

	"estate-graphql/internal/dbexec"
	"estate-graphql/internal/dialect"
)

//go:embed schema.sql
var schemaSQL string

// TestDB is an in-memory database holding the service schema.
type TestDB struct {
	DB       *sql.DB
	Executor dbexec.QueryExecutor
	Dialect  dialect.Dialect
}

// New opens a fresh database, registers the dialect functions and loads the
// schema. The database is closed when the test ends.
func New(t *testing.T) *TestDB {
	t.Helper()

	d := dialect.SQLite{}
	if err := d.Prepare(); err != nil {
		t.Fatalf("Failed to prepare sqlite dialect: %v", err)
	}

	db, err := sql.Open(d.DriverName(), ":memory:")
	if err != nil {
		t.Fatalf("Failed to open sqlite database: %v", err)
	}
	// Every pooled connection would otherwise see its own empty database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: failed to close test database: %v", err)
		}
	})

	tdb := &TestDB{DB: db, Executor: dbexec.NewStandardExecutor(db), Dialect: d}
	tdb.Exec(t, schemaSQL)
	return tdb
}

// Exec runs one or more semicolon-separated statements.
func (tdb *TestDB) Exec(t *testing.T, script string) {
	t.Helper()

	for i, stmt := range splitSQL(script) {
		if _, err := tdb.DB.Exec(stmt); err != nil {
			t.Fatalf("Failed to execute SQL statement %d: %v\nStatement: %s", i+1, err, stmt)
		}
	}
}

// splitSQL splits a script on semicolons outside of quoted strings.
func splitSQL(script string) []string {
	var (
		statements []string
		current    strings.Builder
		inQuote    bool
	)
	for _, r := range script {
		switch {
		case r == '\'':
			inQuote = !inQuote
		case r == ';' && !inQuote:
			if stmt := strings.TrimSpace(current.String()); stmt != "" {
				statements = append(statements, stmt)
			}
			current.Reset()
			continue
		}
		current.WriteRune(r)
	}
	if stmt := strings.TrimSpace(current.String()); stmt != "" {
		statements = append(statements, stmt)
	}
	return statements
}
