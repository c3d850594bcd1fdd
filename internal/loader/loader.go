// Package loader implements request-scoped batch loading. Keys requested
// while a GraphQL level is being walked are collected and fetched with one
// batch call when the first result is needed; completed results are
// memoized for the rest of the request.
package loader

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"estate-graphql/internal/dbexec"
	"estate-graphql/internal/logging"
	"estate-graphql/internal/observability"
)

// Thunk defers a loaded value until it is forced.
type Thunk[V any] func() (V, error)

// BatchFunc fetches values for a set of unique keys. Keys missing from the
// returned map resolve to the loader's missing value.
type BatchFunc[K comparable, V any] func(ctx context.Context, keys []K) (map[K]V, error)

type entry[V any] struct {
	done  chan struct{}
	value V
	err   error
}

func (e *entry[V]) resolved() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// Loader batches and memoizes lookups of one key type.
type Loader[K comparable, V any] struct {
	name    string
	fetch   BatchFunc[K, V]
	missing func(K) V

	mu       sync.Mutex
	cache    map[K]*entry[V]
	pending  []K
	registry *Registry
}

// Option configures a Loader.
type Option[K comparable, V any] func(*Loader[K, V])

// WithMissing sets the value returned for keys the batch function did not
// return. Without it the zero value of V is used.
func WithMissing[K comparable, V any](missing func(K) V) Option[K, V] {
	return func(l *Loader[K, V]) {
		l.missing = missing
	}
}

// New creates a standalone loader. Loaders obtained through Get are bound to
// a registry instead, so forcing one thunk dispatches every pending loader.
func New[K comparable, V any](name string, fetch BatchFunc[K, V], opts ...Option[K, V]) *Loader[K, V] {
	l := &Loader[K, V]{
		name:  name,
		fetch: fetch,
		cache: make(map[K]*entry[V]),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Name returns the loader name used in logs, spans and metrics.
func (l *Loader[K, V]) Name() string {
	return l.name
}

// Load schedules key for the next dispatch and returns a thunk for its value.
// A key already cached or in flight is shared.
func (l *Loader[K, V]) Load(ctx context.Context, key K) Thunk[V] {
	e := l.enqueue(ctx, key)
	return func() (V, error) {
		return l.wait(ctx, e)
	}
}

// LoadMany schedules every key and returns a thunk for their values in key
// order. The first error fails the whole list.
func (l *Loader[K, V]) LoadMany(ctx context.Context, keys []K) Thunk[[]V] {
	entries := make([]*entry[V], len(keys))
	for i, key := range keys {
		entries[i] = l.enqueue(ctx, key)
	}
	return func() ([]V, error) {
		values := make([]V, len(entries))
		for i, e := range entries {
			v, err := l.wait(ctx, e)
			if err != nil {
				return nil, err
			}
			values[i] = v
		}
		return values, nil
	}
}

// Pending returns the number of keys waiting for the next dispatch.
func (l *Loader[K, V]) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

func (l *Loader[K, V]) enqueue(ctx context.Context, key K) *entry[V] {
	metrics := observability.GraphQLMetricsFromContext(ctx)

	l.mu.Lock()
	e, ok := l.cache[key]
	if !ok {
		e = &entry[V]{done: make(chan struct{})}
		l.cache[key] = e
		l.pending = append(l.pending, key)
	}
	l.mu.Unlock()

	if metrics != nil {
		if ok {
			metrics.RecordBatchCacheHit(ctx, l.name)
		} else {
			metrics.RecordBatchCacheMiss(ctx, l.name)
		}
	}
	return e
}

func (l *Loader[K, V]) wait(ctx context.Context, e *entry[V]) (V, error) {
	if !e.resolved() {
		if l.registry != nil {
			_ = l.registry.DispatchAll(ctx)
		} else {
			_ = l.Dispatch(ctx)
		}
	}
	select {
	case <-e.done:
		return e.value, e.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// Dispatch fetches every pending key with one batch call. Keys enqueued
// while the call runs wait for the next dispatch. On failure every key of
// the round receives the error and is evicted from the cache.
func (l *Loader[K, V]) Dispatch(ctx context.Context) error {
	l.mu.Lock()
	keys := l.pending
	l.pending = nil
	entries := make([]*entry[V], len(keys))
	for i, key := range keys {
		entries[i] = l.cache[key]
	}
	l.mu.Unlock()

	if len(keys) == 0 {
		return nil
	}

	ctx, span := otel.Tracer("estate-graphql/loader").Start(ctx, "loader.dispatch")
	span.SetAttributes(
		attribute.String("loader.name", l.name),
		attribute.Int("loader.keys", len(keys)),
	)
	defer span.End()

	start := time.Now()
	fetchCtx, statements := dbexec.WithStatementCounter(ctx)
	results, err := l.fetch(fetchCtx, keys)
	if err == nil {
		err = ctx.Err()
	}
	span.SetAttributes(attribute.Int64("loader.statements", statements.Count()))

	l.mu.Lock()
	for i, key := range keys {
		e := entries[i]
		if err != nil {
			e.err = err
			delete(l.cache, key)
		} else if v, ok := results[key]; ok {
			e.value = v
		} else if l.missing != nil {
			e.value = l.missing(key)
		}
		close(e.done)
	}
	l.mu.Unlock()

	if metrics := observability.GraphQLMetricsFromContext(ctx); metrics != nil {
		metrics.RecordBatchParentCount(ctx, int64(len(keys)), l.name)
		metrics.RecordBatchResultRows(ctx, int64(len(results)), l.name)
		metrics.RecordBatchQueriesSaved(ctx, queriesSaved(len(keys), statements.Count()), l.name)
	}
	logger := logging.FromContext(ctx)
	if err != nil {
		logger.Debug("loader dispatch failed",
			"loader", l.name,
			"keys", len(keys),
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	logger.Debug("loader dispatch",
		"loader", l.name,
		"keys", len(keys),
		"statements", statements.Count(),
		"results", len(results),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// queriesSaved compares one statement per key with the statements a round
// actually issued. A round counts as at least one statement even when its
// fetch function does not go through a dbexec executor.
func queriesSaved(keys int, statements int64) int64 {
	if statements < 1 {
		statements = 1
	}
	saved := int64(keys) - statements
	if saved < 0 {
		return 0
	}
	return saved
}
