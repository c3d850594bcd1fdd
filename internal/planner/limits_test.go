package planner

import (
	"testing"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estate-graphql/internal/queryerr"
)

func TestParsePageDefaults(t *testing.T) {
	spec, err := ParsePage(nil, 0)
	require.NoError(t, err)
	assert.Equal(t, PageSpec{Offset: 0, Limit: 10}, spec)

	spec, err = ParsePage(map[string]interface{}{"page": map[string]interface{}{"offset": 30}}, 0)
	require.NoError(t, err)
	assert.Equal(t, PageSpec{Offset: 30, Limit: 10}, spec)
}

func TestParsePageRejectsBadLimits(t *testing.T) {
	cases := []struct {
		name     string
		page     map[string]interface{}
		maxLimit int
	}{
		{name: "zero limit", page: map[string]interface{}{"limit": 0}},
		{name: "negative limit", page: map[string]interface{}{"limit": -5}},
		{name: "negative offset", page: map[string]interface{}{"offset": -1}},
		{name: "over plan maximum", page: map[string]interface{}{"limit": 51}, maxLimit: 50},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParsePage(map[string]interface{}{"page": tc.page}, tc.maxLimit)
			require.Error(t, err)
			assert.ErrorIs(t, err, queryerr.ErrInvalidLimit)
		})
	}

	spec, err := ParsePage(map[string]interface{}{"page": map[string]interface{}{"limit": 50}}, 50)
	require.NoError(t, err)
	assert.Equal(t, 50, spec.Limit)
}

func TestNewPageInfo(t *testing.T) {
	cases := []struct {
		offset, limit int
		total         int64
		page, pages   int
	}{
		{offset: 0, limit: 10, total: 0, page: 0, pages: 0},
		{offset: 0, limit: 10, total: 1, page: 0, pages: 1},
		{offset: 0, limit: 10, total: 10, page: 0, pages: 1},
		{offset: 10, limit: 10, total: 11, page: 1, pages: 2},
		{offset: 15, limit: 10, total: 95, page: 1, pages: 10},
		{offset: 7, limit: 3, total: 100, page: 2, pages: 34},
	}
	for _, tc := range cases {
		info, err := NewPageInfo(PageSpec{Offset: tc.offset, Limit: tc.limit}, tc.total)
		require.NoError(t, err)
		assert.Equal(t, tc.offset/tc.limit, info.Page)
		assert.Equal(t, tc.page, info.Page)
		assert.Equal(t, tc.pages, info.TotalPages)
		assert.Equal(t, tc.total, info.TotalCount)
	}

	_, err := NewPageInfo(PageSpec{Limit: 0}, 5)
	assert.ErrorIs(t, err, queryerr.ErrInvalidLimit)
}

func firstField(t *testing.T, query string) *ast.Field {
	t.Helper()
	doc, err := parser.Parse(parser.ParseParams{Source: query})
	require.NoError(t, err)
	op := doc.Definitions[0].(*ast.OperationDefinition)
	return op.SelectionSet.Selections[0].(*ast.Field)
}

func TestSelectionDepthIgnoresConnectionWrappers(t *testing.T) {
	field := firstField(t, `{
		transactions {
			nodes { id building { id prefecture { name } } }
			pageInfo { totalCount }
		}
	}`)
	assert.Equal(t, 4, SelectionDepth(field))
	assert.NoError(t, ValidateDepth(field, 4))
	assert.Error(t, ValidateDepth(field, 3))
	assert.NoError(t, ValidateDepth(field, 0))
}
