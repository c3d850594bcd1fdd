package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanBatchFetchSingleKey(t *testing.T) {
	query, err := PlanBatchFetch(BatchFetch{
		Table:      "corporations",
		KeyColumns: []string{"id"},
		Columns:    []string{"id", "name"},
		Keys:       [][]interface{}{{int64(1)}, {int64(2)}},
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT `id`, `name` FROM `corporations` WHERE `id` IN (?,?)", query.SQL)
	assert.Equal(t, []interface{}{int64(1), int64(2)}, query.Args)
}

func TestPlanBatchFetchCompositeKeyWithOrder(t *testing.T) {
	query, err := PlanBatchFetch(BatchFetch{
		Table:      "price_histories",
		KeyColumns: []string{"building_id", "corporation_id"},
		Columns:    []string{"id", "building_id", "corporation_id", "event_date"},
		Keys:       [][]interface{}{{int64(1), int64(5)}, {int64(2), int64(6)}},
		Order: []OrderTerm{
			{Column: "event_date", Direction: Asc},
			{Column: "category_rank"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT `id`, `building_id`, `corporation_id`, `event_date` FROM `price_histories` "+
			"WHERE (`building_id`, `corporation_id`) IN ((?,?), (?,?)) ORDER BY `event_date` ASC, `category_rank` ASC",
		query.SQL)
	assert.Equal(t, []interface{}{int64(1), int64(5), int64(2), int64(6)}, query.Args)
}

func TestPlanBatchFetchValidation(t *testing.T) {
	query, err := PlanBatchFetch(BatchFetch{Table: "buildings", KeyColumns: []string{"id"}})
	require.NoError(t, err)
	assert.Empty(t, query.SQL)

	_, err = PlanBatchFetch(BatchFetch{Table: "buildings", Keys: [][]interface{}{{1}}})
	assert.Error(t, err)

	_, err = PlanBatchFetch(BatchFetch{
		Table:      "price_histories",
		KeyColumns: []string{"building_id", "corporation_id"},
		Keys:       [][]interface{}{{1}},
	})
	assert.Error(t, err)
}
