package loader

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultDispatchConcurrency bounds how many loaders DispatchAll runs at once.
const DefaultDispatchConcurrency = 4

type dispatcher interface {
	Name() string
	Pending() int
	Dispatch(ctx context.Context) error
}

// Registry holds the loaders of one request. It must not be shared across
// requests.
type Registry struct {
	concurrency int

	mu      sync.Mutex
	loaders map[string]dispatcher
	order   []string
}

// NewRegistry creates an empty registry. A non-positive concurrency falls
// back to DefaultDispatchConcurrency.
func NewRegistry(concurrency int) *Registry {
	if concurrency <= 0 {
		concurrency = DefaultDispatchConcurrency
	}
	return &Registry{
		concurrency: concurrency,
		loaders:     make(map[string]dispatcher),
	}
}

// Get returns the loader registered under name, creating it with fetch on
// first use. Asking for an existing name with different type parameters is a
// programming error and panics.
func Get[K comparable, V any](r *Registry, name string, fetch BatchFunc[K, V], opts ...Option[K, V]) *Loader[K, V] {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.loaders[name]; ok {
		l, ok := existing.(*Loader[K, V])
		if !ok {
			panic(fmt.Sprintf("loader %q registered with a different type", name))
		}
		return l
	}
	l := New(name, fetch, opts...)
	l.registry = r
	r.loaders[name] = l
	r.order = append(r.order, name)
	return l
}

// DispatchAll dispatches every loader with pending keys. Independent loaders
// run concurrently; a failing loader does not stop the others. It returns the
// first error, which is also delivered to the failing loader's thunks. It
// may be called from inside a batch function, e.g. by a loader that resolves
// derived keys through another loader.
func (r *Registry) DispatchAll(ctx context.Context) error {
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for _, l := range r.pendingLoaders() {
		g.Go(func() error {
			return l.Dispatch(ctx)
		})
	}
	return g.Wait()
}

func (r *Registry) pendingLoaders() []dispatcher {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]dispatcher, 0, len(r.order))
	for _, name := range r.order {
		if l := r.loaders[name]; l.Pending() > 0 {
			out = append(out, l)
		}
	}
	return out
}

type registryKey struct{}

// WithRegistry stores r in ctx.
func WithRegistry(ctx context.Context, r *Registry) context.Context {
	return context.WithValue(ctx, registryKey{}, r)
}

// FromContext returns the request registry, if any.
func FromContext(ctx context.Context) (*Registry, bool) {
	if ctx == nil {
		return nil, false
	}
	r, ok := ctx.Value(registryKey{}).(*Registry)
	return r, ok
}
