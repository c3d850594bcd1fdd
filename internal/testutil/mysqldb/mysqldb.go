// Package mysqldb provisions throwaway MySQL or TiDB databases loaded with
// the service schema. Tests using it are skipped unless ESTATE_TEST_MYSQL_DSN
// names a server, e.g. root:secret@tcp(127.0.0.1:4000)/?tls=false.
package mysqldb

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"estate-graphql/internal/dbexec"
	"estate-graphql/internal/dialect"

	"github.com/go-sql-driver/mysql"
)

// DSNEnv names the environment variable holding the server DSN.
const DSNEnv = "ESTATE_TEST_MYSQL_DSN"

//go:embed schema.sql
var schemaSQL string

// TestDB is an isolated database that is dropped when the test ends.
type TestDB struct {
	DB           *sql.DB
	Executor     dbexec.QueryExecutor
	Dialect      dialect.Dialect
	DatabaseName string
}

// New creates a uniquely named database, loads the schema and registers
// its cleanup.
func New(t *testing.T) *TestDB {
	t.Helper()

	raw := os.Getenv(DSNEnv)
	if raw == "" {
		t.Skipf("%s not set; skipping MySQL test", DSNEnv)
	}
	base, err := mysql.ParseDSN(raw)
	if err != nil {
		t.Fatalf("Invalid %s: %v", DSNEnv, err)
	}
	base.ParseTime = true
	base.MultiStatements = false

	dbName := fmt.Sprintf("test_%s_%d", sanitizeName(t.Name()), time.Now().UnixMilli())

	admin := base.Clone()
	admin.DBName = ""
	bootstrap, err := sql.Open("mysql", admin.FormatDSN())
	if err != nil {
		t.Fatalf("Failed to open MySQL connection: %v", err)
	}
	// dbName only holds [A-Za-z0-9_], so quoting with backticks is safe.
	if _, err := bootstrap.Exec(fmt.Sprintf("CREATE DATABASE `%s`", dbName)); err != nil {
		_ = bootstrap.Close()
		t.Fatalf("Failed to create test database %s: %v", dbName, err)
	}
	t.Cleanup(func() {
		if _, err := bootstrap.Exec(fmt.Sprintf("DROP DATABASE IF EXISTS `%s`", dbName)); err != nil {
			t.Logf("Warning: failed to drop test database %s: %v", dbName, err)
		}
		if err := bootstrap.Close(); err != nil {
			t.Logf("Warning: failed to close bootstrap connection: %v", err)
		}
	})

	scoped := base.Clone()
	scoped.DBName = dbName
	db, err := sql.Open("mysql", scoped.FormatDSN())
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	// Registered after the drop so it runs first.
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: failed to close test database: %v", err)
		}
	})

	tdb := &TestDB{
		DB:           db,
		Executor:     dbexec.NewStandardExecutor(db),
		Dialect:      dialect.MySQL{},
		DatabaseName: dbName,
	}
	tdb.Exec(t, schemaSQL)
	return tdb
}

// Exec runs semicolon-separated statements one at a time.
func (tdb *TestDB) Exec(t *testing.T, script string) {
	t.Helper()

	for i, stmt := range strings.Split(script, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tdb.DB.Exec(stmt); err != nil {
			t.Fatalf("Failed to execute SQL statement %d: %v\nStatement: %s", i+1, err, stmt)
		}
	}
}

// sanitizeName makes a test name safe for use in a database name, leaving
// room for the timestamp within the 64 character limit.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, ch := range name {
		if (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') {
			b.WriteRune(ch)
		} else {
			b.WriteRune('_')
		}
	}
	s := b.String()
	if len(s) > 40 {
		s = s[:40]
	}
	return s
}
