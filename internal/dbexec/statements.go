package dbexec

import (
	"context"
	"sync/atomic"
)

type statementCounterKey struct{}

// StatementCounter counts the statements executed under a context.
type StatementCounter struct {
	n atomic.Int64
}

// Count returns the number of statements executed so far.
func (c *StatementCounter) Count() int64 {
	if c == nil {
		return 0
	}
	return c.n.Load()
}

// WithStatementCounter returns a context whose statements are counted by the
// returned counter. A nested counter shadows the outer one.
func WithStatementCounter(ctx context.Context) (context.Context, *StatementCounter) {
	c := &StatementCounter{}
	return context.WithValue(ctx, statementCounterKey{}, c), c
}

func countStatement(ctx context.Context) {
	if c, ok := ctx.Value(statementCounterKey{}).(*StatementCounter); ok {
		c.n.Add(1)
	}
}
