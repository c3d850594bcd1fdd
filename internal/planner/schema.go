package planner

import (
	"fmt"

	"estate-graphql/internal/sqlutil"
)

// Join describes an optional relation reachable from a query root.
type Join struct {
	Alias string
	Table string
	// Kind is the join keyword, e.g. "JOIN", "LEFT JOIN" or "CROSS JOIN".
	Kind string
	// On is the rendered join condition. Empty for cross joins.
	On string
	// Requires lists aliases that must be joined before this one.
	Requires []string
}

// Clause renders the join for squirrel's JoinClause.
func (j Join) Clause() string {
	clause := fmt.Sprintf("%s %s AS %s", j.Kind, sqlutil.QuoteIdentifier(j.Table), sqlutil.QuoteIdentifier(j.Alias))
	if j.On != "" {
		clause += " ON " + j.On
	}
	return clause
}

// Target is a query root: the table whose keys a search returns, the joins
// reachable from it, and the sort keys it supports.
type Target struct {
	Name  string
	Table string
	Alias string
	Key   string
	// BuildingKey is the column holding the building id on this root.
	BuildingKey ColumnRef
	// Joins is ordered so that dependencies come first.
	Joins []Join
	Sorts SortCatalog
}

// KeyColumn is the root primary key.
func (t *Target) KeyColumn() ColumnRef {
	return Col(t.Alias, t.Key)
}

// From renders the root relation.
func (t *Target) From() string {
	return sqlutil.QuoteIdentifier(t.Table) + " AS " + sqlutil.QuoteIdentifier(t.Alias)
}

func (t *Target) join(alias string) (Join, bool) {
	for _, j := range t.Joins {
		if j.Alias == alias {
			return j, true
		}
	}
	return Join{}, false
}

// JoinSet is the set of joins a query needs. Adding an alias twice, directly
// or as a dependency, keeps a single join.
type JoinSet struct {
	target  *Target
	aliases map[string]bool
	// outer marks joins added only to read a column. They never drop rows.
	outer map[string]bool
}

// NewJoinSet returns an empty join set for target.
func NewJoinSet(target *Target) *JoinSet {
	return &JoinSet{target: target, aliases: make(map[string]bool), outer: make(map[string]bool)}
}

// Require adds the joins needed to filter on the given columns.
func (s *JoinSet) Require(cols ...ColumnRef) error {
	for _, col := range cols {
		if err := s.add(col.Alias, false); err != nil {
			return err
		}
	}
	return nil
}

// RequireOuter adds the joins needed to read the given columns without
// restricting the root rows. Aliases already joined keep their kind.
func (s *JoinSet) RequireOuter(cols ...ColumnRef) error {
	for _, col := range cols {
		if err := s.add(col.Alias, true); err != nil {
			return err
		}
	}
	return nil
}

func (s *JoinSet) add(alias string, outer bool) error {
	if alias == "" || alias == s.target.Alias || s.aliases[alias] {
		return nil
	}
	j, ok := s.target.join(alias)
	if !ok {
		return fmt.Errorf("%s has no relation aliased %q", s.target.Name, alias)
	}
	for _, dep := range j.Requires {
		if err := s.add(dep, outer); err != nil {
			return err
		}
	}
	s.aliases[alias] = true
	if outer {
		s.outer[alias] = true
	}
	return nil
}

// Has reports whether alias is joined.
func (s *JoinSet) Has(alias string) bool {
	return s.aliases[alias]
}

// Len returns the number of joins.
func (s *JoinSet) Len() int {
	return len(s.aliases)
}

// Clone copies the set so sort resolution does not mutate the composed one.
func (s *JoinSet) Clone() *JoinSet {
	clone := NewJoinSet(s.target)
	for alias := range s.aliases {
		clone.aliases[alias] = true
	}
	for alias := range s.outer {
		clone.outer[alias] = true
	}
	return clone
}

// Joins returns the joins in dependency order. Inner joins added only to
// read a column are rendered as LEFT JOIN.
func (s *JoinSet) Joins() []Join {
	out := make([]Join, 0, len(s.aliases))
	for _, j := range s.target.Joins {
		if !s.aliases[j.Alias] {
			continue
		}
		if s.outer[j.Alias] && j.Kind == "JOIN" {
			j.Kind = "LEFT JOIN"
		}
		out = append(out, j)
	}
	return out
}

// Table aliases shared by both query roots.
const (
	AliasTransaction = "t"
	AliasBuilding    = "b"
	AliasAppraisal   = "ba"
	AliasStation     = "st"
	AliasBuyer       = "buyer"
)

func joinOn(left, right ColumnRef) string {
	return left.SQL() + " = " + right.SQL()
}

var (
	appraisalJoin = Join{
		Alias:    AliasAppraisal,
		Table:    "building_appraisals",
		Kind:     "LEFT JOIN",
		On:       joinOn(Col(AliasAppraisal, "building_id"), Col(AliasBuilding, "id")),
		Requires: []string{AliasBuilding},
	}
	stationJoin = Join{
		Alias:    AliasStation,
		Table:    "stations",
		Kind:     "CROSS JOIN",
		Requires: []string{AliasBuilding},
	}
)

// Transactions is the transactions query root.
var Transactions = &Target{
	Name:        "transactions",
	Table:       "transactions",
	Alias:       AliasTransaction,
	Key:         "id",
	BuildingKey: Col(AliasTransaction, "building_id"),
	Joins: []Join{
		{
			Alias: AliasBuilding,
			Table: "buildings",
			Kind:  "JOIN",
			On:    joinOn(Col(AliasBuilding, "id"), Col(AliasTransaction, "building_id")),
		},
		appraisalJoin,
		stationJoin,
		{
			Alias: AliasBuyer,
			Table: "corporations",
			Kind:  "LEFT JOIN",
			On:    joinOn(Col(AliasBuyer, "id"), Col(AliasTransaction, "buyer_corporation_id")),
		},
	},
	Sorts: SortCatalog{
		Default: SortSpec{Key: "TRANSACTION_DATE", Direction: Desc},
		Keys: map[string]ColumnRef{
			"TRANSACTION_DATE":  Col(AliasTransaction, "transaction_date"),
			"TRANSACTION_PRICE": Col(AliasTransaction, "price"),
			"CAP_RATE":          Col(AliasTransaction, "cap_rate"),
			"BUILT_YEAR":        Col(AliasBuilding, "built_year"),
			"FLOOR_AREA":        Col(AliasBuilding, "total_floor_area"),
			"APPRAISAL_PRICE":   Col(AliasAppraisal, "appraisal_price"),
			"BUYER_NAME":        Col(AliasBuyer, "name"),
		},
	},
}

// Buildings is the buildings query root.
var Buildings = &Target{
	Name:        "buildings",
	Table:       "buildings",
	Alias:       AliasBuilding,
	Key:         "id",
	BuildingKey: Col(AliasBuilding, "id"),
	Joins:       []Join{appraisalJoin, stationJoin},
	Sorts: SortCatalog{
		Default: SortSpec{Key: "BUILT_YEAR", Direction: Desc},
		Keys: map[string]ColumnRef{
			"BUILT_YEAR":      Col(AliasBuilding, "built_year"),
			"FLOOR_AREA":      Col(AliasBuilding, "total_floor_area"),
			"LAND_AREA":       Col(AliasBuilding, "land_area"),
			"NAME":            Col(AliasBuilding, "name"),
			"APPRAISAL_PRICE": Col(AliasAppraisal, "appraisal_price"),
		},
	},
}
