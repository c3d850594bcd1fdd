package planner

import (
	"fmt"
	"strings"
)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// SortSpec is an abstract sort request.
type SortSpec struct {
	Key       string
	Direction Direction
}

// SortCatalog maps the sort keys of a query root to concrete columns.
type SortCatalog struct {
	Default SortSpec
	Keys    map[string]ColumnRef
}

// ResolvedSort is a sort key bound to a concrete column. Rows with a null
// sort value always come last, in both directions; ties fall back to the
// root key in the same direction.
type ResolvedSort struct {
	Key       string
	Column    ColumnRef
	Direction Direction
	Tiebreak  ColumnRef
}

// ParseSort reads the sort argument ({key, order}). A nil or empty argument
// yields nil so callers fall back to the default sort.
func ParseSort(args map[string]interface{}) (*SortSpec, error) {
	if args == nil {
		return nil, nil
	}
	raw, ok := args["sort"]
	if !ok || raw == nil {
		return nil, nil
	}
	sortArgs, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("sort must be an input object")
	}
	if len(sortArgs) == 0 {
		return nil, nil
	}

	spec := &SortSpec{}
	if key, ok := sortArgs["key"].(string); ok {
		spec.Key = key
	}
	if order, ok := sortArgs["order"].(string); ok {
		direction := Direction(strings.ToUpper(order))
		if direction != Asc && direction != Desc {
			return nil, fmt.Errorf("sort order must be ASC or DESC")
		}
		spec.Direction = direction
	}
	return spec, nil
}

// ResolveSort binds spec to a column of target, filling in the default key
// and direction. The join the sort column needs is added to joins as an
// outer join, so sorting never changes which rows match.
func ResolveSort(target *Target, spec *SortSpec, joins *JoinSet) (ResolvedSort, error) {
	resolved := target.Sorts.Default
	if spec != nil {
		if spec.Key != "" {
			resolved.Key = spec.Key
			if spec.Key != target.Sorts.Default.Key {
				resolved.Direction = Asc
			}
		}
		if spec.Direction != "" {
			resolved.Direction = spec.Direction
		}
	}

	col, ok := target.Sorts.Keys[resolved.Key]
	if !ok {
		return ResolvedSort{}, fmt.Errorf("%s cannot be sorted by %s", target.Name, resolved.Key)
	}
	if joins != nil {
		if err := joins.RequireOuter(col); err != nil {
			return ResolvedSort{}, err
		}
	}
	return ResolvedSort{
		Key:       resolved.Key,
		Column:    col,
		Direction: resolved.Direction,
		Tiebreak:  target.KeyColumn(),
	}, nil
}

// Scan aliases emitted by key searches.
const (
	SearchKeyAlias       = "__key"
	SearchSortNullAlias  = "__sort_null"
	SearchSortValueAlias = "__sort_value"
)

// selectColumns lists the key search columns. The sort value is selected so
// ordering works under SELECT DISTINCT.
func (s ResolvedSort) selectColumns() []string {
	return []string{
		s.Tiebreak.SQL() + " AS " + SearchKeyAlias,
		"(" + s.Column.SQL() + " IS NULL) AS " + SearchSortNullAlias,
		s.Column.SQL() + " AS " + SearchSortValueAlias,
	}
}

func (s ResolvedSort) orderClauses() []string {
	return []string{
		SearchSortNullAlias + " ASC",
		SearchSortValueAlias + " " + string(s.Direction),
		SearchKeyAlias + " " + string(s.Direction),
	}
}
