package planner

import (
	"fmt"
	"math"

	"github.com/graphql-go/graphql/language/ast"

	"estate-graphql/internal/queryerr"
)

// Page defaults applied when the page argument or one of its fields is absent.
const (
	DefaultOffset = 0
	DefaultLimit  = 10
)

// PageSpec is an offset/limit window.
type PageSpec struct {
	Offset int
	Limit  int
}

// PageInfo is the page metadata returned with a search.
type PageInfo struct {
	Page       int
	TotalPages int
	TotalCount int64
}

// ParsePage reads the page argument ({offset, limit}). A limit above
// maxLimit fails; maxLimit <= 0 disables the cap.
func ParsePage(args map[string]interface{}, maxLimit int) (PageSpec, error) {
	spec := PageSpec{Offset: DefaultOffset, Limit: DefaultLimit}
	if raw, ok := args["page"].(map[string]interface{}); ok {
		if v, ok := raw["offset"]; ok && v != nil {
			offset, ok := v.(int)
			if !ok {
				return PageSpec{}, queryerr.InvalidLimit("page.offset", fmt.Sprintf("offset must be an integer, got %T", v))
			}
			spec.Offset = offset
		}
		if v, ok := raw["limit"]; ok && v != nil {
			limit, ok := v.(int)
			if !ok {
				return PageSpec{}, queryerr.InvalidLimit("page.limit", fmt.Sprintf("limit must be an integer, got %T", v))
			}
			spec.Limit = limit
		}
	}
	if err := spec.Validate(maxLimit); err != nil {
		return PageSpec{}, err
	}
	return spec, nil
}

// Validate checks the window against the caller's maximum page size.
func (p PageSpec) Validate(maxLimit int) error {
	if p.Limit <= 0 {
		return queryerr.InvalidLimit("page.limit", fmt.Sprintf("limit must be greater than 0, got %d", p.Limit))
	}
	if p.Offset < 0 {
		return queryerr.InvalidLimit("page.offset", fmt.Sprintf("offset cannot be negative, got %d", p.Offset))
	}
	if maxLimit > 0 && p.Limit > maxLimit {
		return queryerr.InvalidLimit("page.limit", fmt.Sprintf("limit %d exceeds the maximum of %d for this plan", p.Limit, maxLimit))
	}
	return nil
}

// NewPageInfo computes page metadata: page is the 0-indexed integer division
// of offset by limit and totalPages rounds up.
func NewPageInfo(spec PageSpec, totalCount int64) (PageInfo, error) {
	if spec.Limit <= 0 {
		return PageInfo{}, queryerr.InvalidLimit("page.limit", fmt.Sprintf("limit must be greater than 0, got %d", spec.Limit))
	}
	limit := int64(spec.Limit)
	totalPages := (totalCount + limit - 1) / limit
	if totalPages > math.MaxInt32 {
		totalPages = math.MaxInt32
	}
	return PageInfo{
		Page:       spec.Offset / spec.Limit,
		TotalPages: int(totalPages),
		TotalCount: totalCount,
	}, nil
}

// SelectionDepth returns the depth of a field's selection set. Connection
// wrappers (nodes, pageInfo) do not add depth.
func SelectionDepth(field *ast.Field) int {
	if field == nil {
		return 0
	}
	return selectionDepth(field, 1)
}

func selectionDepth(field *ast.Field, current int) int {
	if field.SelectionSet == nil || len(field.SelectionSet.Selections) == 0 {
		return current
	}

	maxDepth := current
	for _, selection := range field.SelectionSet.Selections {
		sub, ok := selection.(*ast.Field)
		if !ok || sub.Name == nil {
			continue
		}
		var depth int
		switch sub.Name.Value {
		case "nodes":
			depth = selectionDepth(sub, current)
		case "pageInfo":
			depth = current
		default:
			depth = selectionDepth(sub, current+1)
		}
		if depth > maxDepth {
			maxDepth = depth
		}
	}
	return maxDepth
}

// ValidateDepth rejects a field whose selection is deeper than maxDepth.
// maxDepth <= 0 disables the check.
func ValidateDepth(field *ast.Field, maxDepth int) error {
	if maxDepth <= 0 {
		return nil
	}
	if depth := SelectionDepth(field); depth > maxDepth {
		return fmt.Errorf("query exceeds maximum depth of %d (depth: %d)", maxDepth, depth)
	}
	return nil
}
