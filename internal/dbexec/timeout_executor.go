package dbexec

import (
	"context"
	"database/sql"
	"time"
)

// TimeoutExecutor bounds every statement by a fixed timeout. The deadline
// covers row iteration too and is released when the rows are closed.
type TimeoutExecutor struct {
	next    QueryExecutor
	timeout time.Duration
}

// NewTimeoutExecutor wraps next. A non-positive timeout returns next unchanged.
func NewTimeoutExecutor(next QueryExecutor, timeout time.Duration) QueryExecutor {
	if timeout <= 0 {
		return next
	}
	return &TimeoutExecutor{next: next, timeout: timeout}
}

func (e *TimeoutExecutor) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	rows, err := e.next.QueryContext(ctx, query, args...)
	if err != nil {
		cancel()
		return nil, err
	}
	return &deadlineRows{Rows: rows, cancel: cancel}, nil
}

func (e *TimeoutExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.next.ExecContext(ctx, query, args...)
}

type deadlineRows struct {
	Rows
	cancel context.CancelFunc
}

func (r *deadlineRows) Close() error {
	defer r.cancel()
	return r.Rows.Close()
}
