package planner

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"estate-graphql/internal/sqlutil"
)

// OrderTerm is one ORDER BY term of a batch fetch.
type OrderTerm struct {
	Column    string
	Direction Direction
}

// BatchFetch describes a fetch of rows by a set of keys. KeyColumns has one
// entry for simple keys and several for composite keys; each key tuple in
// Keys has one value per key column.
type BatchFetch struct {
	Table      string
	KeyColumns []string
	Columns    []string
	Keys       [][]interface{}
	Order      []OrderTerm
}

// PlanBatchFetch builds a single SELECT for every requested key. Ordering is
// applied here, once, so each key's rows come back in their intrinsic order.
func PlanBatchFetch(f BatchFetch) (SQLQuery, error) {
	if len(f.Keys) == 0 {
		return SQLQuery{}, nil
	}
	if f.Table == "" {
		return SQLQuery{}, fmt.Errorf("batch fetch requires a table")
	}
	if len(f.KeyColumns) == 0 {
		return SQLQuery{}, fmt.Errorf("batch fetch on %s requires at least one key column", f.Table)
	}

	whereSQL, whereArgs, err := buildTupleInCondition(sqlutil.QuoteIdentifiers(f.KeyColumns), f.Keys)
	if err != nil {
		return SQLQuery{}, fmt.Errorf("batch fetch on %s: %w", f.Table, err)
	}

	columns := f.Columns
	if len(columns) == 0 {
		columns = f.KeyColumns
	}
	builder := sq.Select(sqlutil.QuoteIdentifiers(columns)...).
		From(sqlutil.QuoteIdentifier(f.Table)).
		Where(sq.Expr(whereSQL, whereArgs...))

	if len(f.Order) > 0 {
		clauses := make([]string, len(f.Order))
		for i, term := range f.Order {
			dir := term.Direction
			if dir == "" {
				dir = Asc
			}
			clauses[i] = sqlutil.QuoteIdentifier(term.Column) + " " + string(dir)
		}
		builder = builder.OrderBy(clauses...)
	}

	query, args, err := builder.PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

func buildTupleInCondition(quotedColumns []string, tuples [][]interface{}) (string, []interface{}, error) {
	width := len(quotedColumns)
	if width == 1 {
		args := make([]interface{}, 0, len(tuples))
		for _, tuple := range tuples {
			if len(tuple) != 1 {
				return "", nil, fmt.Errorf("tuple width mismatch: expected 1 value")
			}
			args = append(args, tuple[0])
		}
		return fmt.Sprintf("%s IN (%s)", quotedColumns[0], sq.Placeholders(len(tuples))), args, nil
	}

	args := make([]interface{}, 0, len(tuples)*width)
	rowPlaceholders := make([]string, 0, len(tuples))
	valuePlaceholders := "(" + sq.Placeholders(width) + ")"
	for _, tuple := range tuples {
		if len(tuple) != width {
			return "", nil, fmt.Errorf("tuple width mismatch: expected %d values", width)
		}
		rowPlaceholders = append(rowPlaceholders, valuePlaceholders)
		args = append(args, tuple...)
	}
	return fmt.Sprintf("(%s) IN (%s)", strings.Join(quotedColumns, ", "), strings.Join(rowPlaceholders, ", ")), args, nil
}
