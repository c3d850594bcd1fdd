package planner

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"estate-graphql/internal/dialect"
)

// SearchPlan holds the page query and the count query of one search. Both
// are built from the same predicate tree.
type SearchPlan struct {
	Keys  SQLQuery
	Count SQLQuery
	Sort  ResolvedSort
	Page  PageSpec
	// Joins lists the aliases joined by the page query, in join order.
	Joins []string
}

// PlanSearch builds the key and count queries for a composed filter. Both
// run over the same joins and WHERE clause. A join both the predicate and
// the sort need is emitted once.
func PlanSearch(c *Composed, sort *SortSpec, page PageSpec, d dialect.Dialect) (SearchPlan, error) {
	if c == nil || c.Target == nil {
		return SearchPlan{}, fmt.Errorf("search requires a composed filter")
	}
	if err := page.Validate(0); err != nil {
		return SearchPlan{}, err
	}

	pageJoins := c.Joins.Clone()
	resolved, err := ResolveSort(c.Target, sort, pageJoins)
	if err != nil {
		return SearchPlan{}, err
	}

	where, err := compileWhere(c.Predicate, d)
	if err != nil {
		return SearchPlan{}, err
	}

	keys, err := planKeys(c.Target, pageJoins, where, resolved, page)
	if err != nil {
		return SearchPlan{}, err
	}
	count, err := planCount(c.Target, pageJoins, where)
	if err != nil {
		return SearchPlan{}, err
	}

	aliases := make([]string, 0, pageJoins.Len())
	for _, j := range pageJoins.Joins() {
		aliases = append(aliases, j.Alias)
	}
	return SearchPlan{Keys: keys, Count: count, Sort: resolved, Page: page, Joins: aliases}, nil
}

func compileWhere(p Predicate, d dialect.Dialect) (sq.Sqlizer, error) {
	if p == nil {
		return nil, nil
	}
	return Compile(p, d)
}

func applyJoins(builder sq.SelectBuilder, joins *JoinSet) sq.SelectBuilder {
	for _, j := range joins.Joins() {
		builder = builder.JoinClause(j.Clause())
	}
	return builder
}

func planKeys(target *Target, joins *JoinSet, where sq.Sqlizer, sort ResolvedSort, page PageSpec) (SQLQuery, error) {
	builder := sq.Select(sort.selectColumns()...).
		Distinct().
		From(target.From())
	builder = applyJoins(builder, joins)
	if where != nil {
		builder = builder.Where(where)
	}
	builder = builder.
		OrderBy(sort.orderClauses()...).
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset))

	query, args, err := builder.PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

func planCount(target *Target, joins *JoinSet, where sq.Sqlizer) (SQLQuery, error) {
	builder := sq.Select(fmt.Sprintf("COUNT(DISTINCT %s)", target.KeyColumn().SQL())).
		From(target.From())
	builder = applyJoins(builder, joins)
	if where != nil {
		builder = builder.Where(where)
	}
	query, args, err := builder.PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}
