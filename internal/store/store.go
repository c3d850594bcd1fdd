// Package store is the storage collaborator of the query engine. It runs
// planned statements through a dbexec.QueryExecutor and returns keys, counts
// and loosely typed rows.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"estate-graphql/internal/dbexec"
	"estate-graphql/internal/planner"
	"estate-graphql/internal/queryerr"
)

// DefaultMaxInClause bounds the number of keys bound into one IN list.
const DefaultMaxInClause = 1000

// Row is one scanned row keyed by column name.
type Row map[string]interface{}

// Store executes planned queries.
type Store struct {
	executor    dbexec.QueryExecutor
	maxInClause int
}

// Option configures a Store.
type Option func(*Store)

// WithMaxInClause sets the chunk size used by FetchByKeys. Non-positive
// values keep the default.
func WithMaxInClause(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxInClause = n
		}
	}
}

// New creates a store over executor.
func New(executor dbexec.QueryExecutor, opts ...Option) *Store {
	s := &Store{executor: executor, maxInClause: DefaultMaxInClause}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search runs the key query of plan and returns the root keys of the page in
// plan order.
func (s *Store) Search(ctx context.Context, plan planner.SearchPlan) ([]int64, error) {
	rows, err := s.Execute(ctx, plan.Keys, []string{
		planner.SearchKeyAlias,
		planner.SearchSortNullAlias,
		planner.SearchSortValueAlias,
	})
	if err != nil {
		return nil, err
	}
	keys := make([]int64, 0, len(rows))
	for _, row := range rows {
		key, ok := AsInt64(row[planner.SearchKeyAlias])
		if !ok {
			return nil, queryerr.InconsistentKeyState(planner.SearchKeyAlias, fmt.Sprintf("unexpected key value %v", row[planner.SearchKeyAlias]))
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Count runs a single-value count query.
func (s *Store) Count(ctx context.Context, query planner.SQLQuery) (int64, error) {
	rows, err := s.executor.QueryContext(ctx, query.SQL, query.Args...)
	if err != nil {
		return 0, wrapError(err)
	}
	defer rows.Close()

	var count int64
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, wrapError(err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, wrapError(err)
	}
	return count, nil
}

// Execute runs query and scans every row into a Row keyed by columns, which
// must match the select list in order.
func (s *Store) Execute(ctx context.Context, query planner.SQLQuery, columns []string) ([]Row, error) {
	if query.SQL == "" {
		return nil, nil
	}
	rows, err := s.executor.QueryContext(ctx, query.SQL, query.Args...)
	if err != nil {
		return nil, wrapError(err)
	}
	defer rows.Close()

	results, err := scanRows(rows, columns)
	if err != nil {
		return nil, wrapError(err)
	}
	return results, nil
}

// FetchByKeys loads the rows of f.Table matching any of f.Keys. Key sets
// larger than the IN-list bound are split into several statements and the
// rows concatenated, so ordering holds within each key.
func (s *Store) FetchByKeys(ctx context.Context, f planner.BatchFetch) ([]Row, error) {
	if len(f.Keys) == 0 {
		return nil, nil
	}
	columns := f.Columns
	if len(columns) == 0 {
		columns = f.KeyColumns
	}

	var out []Row
	for start := 0; start < len(f.Keys); start += s.maxInClause {
		end := start + s.maxInClause
		if end > len(f.Keys) {
			end = len(f.Keys)
		}
		chunk := f
		chunk.Keys = f.Keys[start:end]
		query, err := planner.PlanBatchFetch(chunk)
		if err != nil {
			return nil, err
		}
		rows, err := s.Execute(ctx, query, columns)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func scanRows(rows dbexec.Rows, columns []string) ([]Row, error) {
	var results []Row

	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = convertValue(values[i])
		}
		results = append(results, row)
	}

	return results, rows.Err()
}

func convertValue(val interface{}) interface{} {
	if b, ok := val.([]byte); ok {
		return string(b)
	}
	return val
}

// wrapError classifies storage failures. Cancellation by the caller is
// returned as-is; everything else becomes StorageUnavailable.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return queryerr.StorageUnavailable(fmt.Errorf("mysql error %d: %w", mysqlErr.Number, err))
	}
	return queryerr.StorageUnavailable(err)
}
