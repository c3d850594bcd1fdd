package resolver

import (
	"github.com/graphql-go/graphql"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"estate-graphql/internal/auth"
	"estate-graphql/internal/filter"
	"estate-graphql/internal/logging"
	"estate-graphql/internal/observability"
	"estate-graphql/internal/planner"
)

func (r *Resolver) resolveTransactions(p graphql.ResolveParams) (interface{}, error) {
	return r.search(p, planner.Transactions.Name, func(input map[string]interface{}) (*planner.Composed, error) {
		f, err := filter.NormalizeTransactionFilter(input)
		if err != nil {
			return nil, err
		}
		return r.composer.Transactions(f)
	})
}

func (r *Resolver) resolveBuildings(p graphql.ResolveParams) (interface{}, error) {
	return r.search(p, planner.Buildings.Name, func(input map[string]interface{}) (*planner.Composed, error) {
		f, err := filter.NormalizeBuildingFilter(input)
		if err != nil {
			return nil, err
		}
		return r.composer.Buildings(f)
	})
}

// search runs one root search: normalize and compose the filter, plan the
// page and count queries from the same predicate, then run both.
func (r *Resolver) search(p graphql.ResolveParams, root string, compose func(map[string]interface{}) (*planner.Composed, error)) (result interface{}, err error) {
	ctx, span := startResolverSpan(p.Context, "graphql.search", attribute.String("graphql.search.root", root))
	defer func() { finishResolverSpan(span, err) }()

	if len(p.Info.FieldASTs) > 0 {
		if err := planner.ValidateDepth(p.Info.FieldASTs[0], r.maxDepth); err != nil {
			return nil, err
		}
	}

	input, _ := p.Args["filter"].(map[string]interface{})
	composed, err := compose(input)
	if err != nil {
		return nil, err
	}
	sort, err := planner.ParseSort(p.Args)
	if err != nil {
		return nil, err
	}
	principal := auth.PrincipalFromContext(ctx)
	page, err := planner.ParsePage(p.Args, r.limits.MaxLimit(principal))
	if err != nil {
		return nil, err
	}
	plan, err := planner.PlanSearch(composed, sort, page, r.dialect)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("graphql.search.sort", plan.Sort.Key),
		attribute.Int("graphql.search.limit", page.Limit),
		attribute.Int("graphql.search.offset", page.Offset),
	)

	var (
		keys  []int64
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		keys, err = r.store.Search(gctx, plan)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = r.store.Count(gctx, plan.Count)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	info, err := planner.NewPageInfo(page, total)
	if err != nil {
		return nil, err
	}
	if metrics := observability.GraphQLMetricsFromContext(ctx); metrics != nil {
		metrics.RecordResultsCount(ctx, int64(len(keys)), root)
		metrics.RecordSearchMatches(ctx, total, root)
	}
	logging.FromContext(ctx).Debug("search completed",
		"root", root,
		"sort", plan.Sort.Key,
		"joins", plan.Joins,
		"keys", len(keys),
		"total_count", total,
		"plan", principal.CapabilityNames(),
	)
	return &searchResult{Keys: keys, PageInfo: info}, nil
}

func (r *Resolver) resolveTransactionNodes(p graphql.ResolveParams) (interface{}, error) {
	res, ok := p.Source.(*searchResult)
	if !ok {
		return nil, nil
	}
	l, err := r.loaders(p.Context)
	if err != nil {
		return nil, err
	}
	return nodesThunk(l.transactions.LoadMany(p.Context, res.Keys), res.Keys, "transactions.nodes"), nil
}

func (r *Resolver) resolveBuildingNodes(p graphql.ResolveParams) (interface{}, error) {
	res, ok := p.Source.(*searchResult)
	if !ok {
		return nil, nil
	}
	l, err := r.loaders(p.Context)
	if err != nil {
		return nil, err
	}
	return nodesThunk(l.buildings.LoadMany(p.Context, res.Keys), res.Keys, "buildings.nodes"), nil
}

// nodesThunk resolves the rows of a search page. A key the search returned
// but the row fetch did not is a referential gap, not an empty slot.
func nodesThunk[V any](thunk func() ([]*V, error), keys []int64, fieldName string) func() (interface{}, error) {
	return func() (interface{}, error) {
		values, err := thunk()
		if err != nil {
			return nil, err
		}
		for i, v := range values {
			if v == nil {
				return nil, missingRow(fieldName, keys[i])
			}
		}
		return values, nil
	}
}

func (r *Resolver) resolveBuilding(p graphql.ResolveParams) (interface{}, error) {
	id, err := filter.ParseID("id", p.Args["id"])
	if err != nil {
		return nil, err
	}
	l, err := r.loaders(p.Context)
	if err != nil {
		return nil, err
	}
	return optional(l.buildings.Load(p.Context, id)), nil
}

func (r *Resolver) resolveCorporation(p graphql.ResolveParams) (interface{}, error) {
	id, err := filter.ParseID("id", p.Args["id"])
	if err != nil {
		return nil, err
	}
	l, err := r.loaders(p.Context)
	if err != nil {
		return nil, err
	}
	return optional(l.corporations.Load(p.Context, id)), nil
}

func (r *Resolver) resolveBuildingsByExternalIDs(p graphql.ResolveParams) (interface{}, error) {
	source, _ := p.Args["source"].(string)
	raw, _ := p.Args["externalIds"].([]interface{})
	keys := make([]externalKey, 0, len(raw))
	for _, item := range raw {
		id, _ := item.(string)
		keys = append(keys, externalKey{Source: source, ExternalID: id})
	}
	l, err := r.loaders(p.Context)
	if err != nil {
		return nil, err
	}
	thunk := l.externalBuildings.LoadMany(p.Context, keys)
	return func() (interface{}, error) {
		buildings, err := thunk()
		if err != nil {
			return nil, err
		}
		out := make([]interface{}, len(buildings))
		for i, b := range buildings {
			if b != nil {
				out[i] = b
			}
		}
		return out, nil
	}, nil
}

// optional adapts a 1:1 loader thunk to graphql-go, turning a missing row
// into null.
func optional[V any](thunk func() (*V, error)) func() (interface{}, error) {
	return func() (interface{}, error) {
		v, err := thunk()
		if err != nil || v == nil {
			return nil, err
		}
		return v, nil
	}
}

// list adapts a 1:N loader thunk to graphql-go.
func list[V any](thunk func() ([]*V, error)) func() (interface{}, error) {
	return func() (interface{}, error) {
		v, err := thunk()
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}
