// Package sqlutil quotes identifiers for the SQL the planner renders. Backtick
// quoting is understood by MySQL, TiDB and SQLite alike.
package sqlutil

import "strings"

// QuoteIdentifier quotes a SQL identifier (table name, column name, etc.)
// with backticks and escapes any backticks within the identifier.
func QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, "`", "``")
	return "`" + escaped + "`"
}

// QuoteQualified quotes qualifier.name, dropping the qualifier when empty.
func QuoteQualified(qualifier, name string) string {
	if qualifier == "" {
		return QuoteIdentifier(name)
	}
	return QuoteIdentifier(qualifier) + "." + QuoteIdentifier(name)
}

// QuoteIdentifiers quotes every name.
func QuoteIdentifiers(names []string) []string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = QuoteIdentifier(name)
	}
	return quoted
}
