// Package planner composes normalized filters, sort keys and page specs into
// parameterized SQL. Filters become an explicit predicate tree whose column
// references decide which optional joins a query needs.
package planner

import (
	"estate-graphql/internal/sqlutil"
)

// SQLQuery represents a planned SQL statement with bound args.
type SQLQuery struct {
	SQL  string
	Args []interface{}
}

// ColumnRef names a column through the alias of the relation that owns it.
type ColumnRef struct {
	Alias  string
	Column string
}

// Col is shorthand for a ColumnRef.
func Col(alias, column string) ColumnRef {
	return ColumnRef{Alias: alias, Column: column}
}

// SQL renders the qualified, quoted column reference.
func (c ColumnRef) SQL() string {
	return sqlutil.QuoteQualified(c.Alias, c.Column)
}

func (c ColumnRef) String() string {
	if c.Alias == "" {
		return c.Column
	}
	return c.Alias + "." + c.Column
}
