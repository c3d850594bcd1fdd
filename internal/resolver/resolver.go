// Package resolver exposes the transaction and building searches as a
// GraphQL schema. Root fields run the query composition engine; related
// fields resolve through the request's loaders so that every relation costs
// one query per round no matter how many parents ask for it.
package resolver

import (
	"strconv"

	"github.com/graphql-go/graphql"

	"estate-graphql/internal/auth"
	"estate-graphql/internal/dialect"
	"estate-graphql/internal/planner"
	"estate-graphql/internal/scalars"
	"estate-graphql/internal/store"
)

// Config holds the query limits applied by the resolver.
type Config struct {
	Limits auth.Limits
	// MaxDepth caps the selection depth of root searches; 0 disables it.
	MaxDepth int
	// WalkingSpeed is in meters per minute.
	WalkingSpeed float64
}

// Resolver builds the GraphQL schema and resolves its fields.
type Resolver struct {
	store    *store.Store
	composer *planner.Composer
	dialect  dialect.Dialect
	limits   auth.Limits
	maxDepth int

	bigInt *graphql.Scalar
	date   *graphql.Scalar
}

// NewResolver creates a resolver reading through st.
func NewResolver(st *store.Store, d dialect.Dialect, cfg Config) *Resolver {
	return &Resolver{
		store:    st,
		composer: planner.NewComposer(cfg.WalkingSpeed),
		dialect:  d,
		limits:   cfg.Limits,
		maxDepth: cfg.MaxDepth,
		bigInt:   scalars.BigInt(),
		date:     scalars.Date(),
	}
}

// BuildGraphQLSchema constructs the executable schema.
func (r *Resolver) BuildGraphQLSchema() (graphql.Schema, error) {
	types := r.buildTypes()
	inputs := r.buildInputs()

	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"transactions": &graphql.Field{
				Type:        graphql.NewNonNull(types.transactionConnection),
				Description: "Search transactions. Results are ordered by the sort key with nulls last.",
				Args: graphql.FieldConfigArgument{
					"filter": &graphql.ArgumentConfig{Type: inputs.transactionFilter},
					"sort":   &graphql.ArgumentConfig{Type: inputs.transactionSort},
					"page":   &graphql.ArgumentConfig{Type: inputs.page},
				},
				Resolve: r.resolveTransactions,
			},
			"buildings": &graphql.Field{
				Type:        graphql.NewNonNull(types.buildingConnection),
				Description: "Search buildings. Results are ordered by the sort key with nulls last.",
				Args: graphql.FieldConfigArgument{
					"filter": &graphql.ArgumentConfig{Type: inputs.buildingFilter},
					"sort":   &graphql.ArgumentConfig{Type: inputs.buildingSort},
					"page":   &graphql.ArgumentConfig{Type: inputs.page},
				},
				Resolve: r.resolveBuildings,
			},
			"building": &graphql.Field{
				Type: types.building,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: r.resolveBuilding,
			},
			"corporation": &graphql.Field{
				Type: types.corporation,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: r.resolveCorporation,
			},
			"buildingsByExternalIds": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.NewList(types.building)),
				Description: "Look up buildings by the ids another system assigned them. Unknown ids resolve to null.",
				Args: graphql.FieldConfigArgument{
					"source":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"externalIds": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(graphql.String)))},
				},
				Resolve: r.resolveBuildingsByExternalIDs,
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: query})
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// deref returns the pointed-to value, or an untyped nil so graphql-go
// renders null.
func deref[T any](v *T) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
