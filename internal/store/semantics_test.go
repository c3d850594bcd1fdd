package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estate-graphql/internal/filter"
	"estate-graphql/internal/planner"
	"estate-graphql/internal/testutil/sqlitedb"
)

const fixtures = `
INSERT INTO prefectures (id, name) VALUES (13, 'Tokyo'), (27, 'Osaka');

INSERT INTO buildings (id, name, prefecture_id, city_id, latitude, longitude, built_year, total_floor_area, land_area, is_leasehold, is_office, is_retail, is_residential, is_logistics) VALUES
  (1, 'Alpha Tower', 13, 101, 35.6810, 139.7670, 2001, 12000, 3000, 0, 1, 0, 0, 0),
  (2, 'Beta Mall', 13, 102, 35.6900, 139.7000, 1995, 8000, 2500, 1, 0, 1, 0, 0),
  (3, 'Gamma Logistics', 27, 201, 34.7000, 135.5000, NULL, 20000, 9000, 0, 0, 0, 0, 1),
  (4, 'Delta Residence', 27, 202, 34.6900, 135.4900, 2015, 4000, 1000, 0, 0, 0, 1, 0);

INSERT INTO building_appraisals (building_id, appraisal_date, appraisal_price, cap_rate) VALUES
  (1, '2024-04-01', 5000000000, 3.9),
  (2, '2024-04-01', 3000000000, 4.4);

INSERT INTO stations (id, name, latitude, longitude) VALUES
  (1, 'Tokyo', 35.6812, 139.7671),
  (2, 'Osaka', 34.7025, 135.4959);

INSERT INTO corporations (id, name) VALUES (10, 'Acme Realty'), (11, 'Blue Fund'), (12, 'Core Partners');

INSERT INTO transactions (id, building_id, buyer_corporation_id, seller_corporation_id, transaction_date, price, apportioned_price, is_bulk, price_disclosed, cap_rate) VALUES
  (100, 1, 10, 11, '2025-03-15', 1000, NULL, 0, 1, 4.5),
  (101, 2, 11, 10, '2020-06-01', 500, NULL, 0, 1, 5.0),
  (102, 3, 10, 12, '2023-01-10', 3000, 650, 1, 1, NULL),
  (103, 4, 12, 11, '2023-01-10', 600, 1500, 1, 1, 3.8),
  (104, 1, 11, 12, '2019-12-01', NULL, NULL, 0, 0, NULL);
`

type searchResult struct {
	keys  []int64
	count int64
	page  planner.PageInfo
}

func newSemanticStore(t *testing.T) (*Store, *sqlitedb.TestDB) {
	t.Helper()
	tdb := sqlitedb.New(t)
	tdb.Exec(t, fixtures)
	return New(tdb.Executor), tdb
}

func runSearch(t *testing.T, s *Store, tdb *sqlitedb.TestDB, composed *planner.Composed, sort *planner.SortSpec, page planner.PageSpec) searchResult {
	t.Helper()
	plan, err := planner.PlanSearch(composed, sort, page, tdb.Dialect)
	require.NoError(t, err)

	ctx := context.Background()
	keys, err := s.Search(ctx, plan)
	require.NoError(t, err)
	count, err := s.Count(ctx, plan.Count)
	require.NoError(t, err)
	info, err := planner.NewPageInfo(page, count)
	require.NoError(t, err)
	return searchResult{keys: keys, count: count, page: info}
}

func searchTransactions(t *testing.T, s *Store, tdb *sqlitedb.TestDB, input map[string]interface{}, sort *planner.SortSpec) searchResult {
	t.Helper()
	f, err := filter.NormalizeTransactionFilter(input)
	require.NoError(t, err)
	composed, err := planner.NewComposer(0).Transactions(f)
	require.NoError(t, err)
	return runSearch(t, s, tdb, composed, sort, planner.PageSpec{Limit: 100})
}

func searchBuildings(t *testing.T, s *Store, tdb *sqlitedb.TestDB, input map[string]interface{}, sort *planner.SortSpec) searchResult {
	t.Helper()
	f, err := filter.NormalizeBuildingFilter(input)
	require.NoError(t, err)
	composed, err := planner.NewComposer(0).Buildings(f)
	require.NoError(t, err)
	return runSearch(t, s, tdb, composed, sort, planner.PageSpec{Limit: 100})
}

func TestEmptyConditionsMatchUnfilteredResults(t *testing.T) {
	s, tdb := newSemanticStore(t)
	baseline := searchTransactions(t, s, tdb, nil, nil)
	require.Len(t, baseline.keys, 5)

	inputs := map[string]map[string]interface{}{
		"empty range":         {"transactionPrice": map[string]interface{}{}},
		"null bounds":         {"capRate": map[string]interface{}{"min": nil, "max": nil}},
		"empty id list":       {"buyerIds": []interface{}{}},
		"empty bbox":          {"bbox": map[string]interface{}{}},
		"stations without id": {"nearStations": map[string]interface{}{"stationIds": []interface{}{}, "maxMinutes": 5.0}},
		"blank buyer name":    {"buyerName": "   "},
	}
	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			got := searchTransactions(t, s, tdb, input, nil)
			assert.Equal(t, baseline.keys, got.keys)
			assert.Equal(t, baseline.count, got.count)
		})
	}
}

func TestAssetTypeAbsorption(t *testing.T) {
	s, tdb := newSemanticStore(t)
	tdb.Exec(t, `INSERT INTO buildings (id, name, prefecture_id, built_year) VALUES (5, 'Epsilon Lot', 13, 1980);`)

	unfiltered := searchBuildings(t, s, tdb, nil, nil)
	require.Len(t, unfiltered.keys, 5)

	inputs := map[string]map[string]interface{}{
		"empty selector": {},
		"null flags":     {"office": nil, "retail": nil},
	}
	for name, selector := range inputs {
		t.Run(name, func(t *testing.T) {
			got := searchBuildings(t, s, tdb, map[string]interface{}{"assetTypes": selector}, nil)
			assert.Equal(t, unfiltered.keys, got.keys)
			assert.Equal(t, unfiltered.count, got.count)
		})
	}

	allTrue := searchBuildings(t, s, tdb, map[string]interface{}{"assetTypes": map[string]interface{}{
		"office": true, "retail": true, "residential": true, "hotel": true,
		"logistics": true, "land": true, "other": true,
	}}, nil)
	assert.ElementsMatch(t, []int64{1, 2, 3, 4}, allTrue.keys)

	allFalse := searchBuildings(t, s, tdb, map[string]interface{}{"assetTypes": map[string]interface{}{
		"office": false, "retail": false, "residential": false, "hotel": false,
		"logistics": false, "land": false, "other": false,
	}}, nil)
	assert.Equal(t, allTrue.keys, allFalse.keys)
	assert.Equal(t, allTrue.count, allFalse.count)

	officeOrRetail := searchBuildings(t, s, tdb, map[string]interface{}{"assetTypes": map[string]interface{}{
		"office": true, "retail": true,
	}}, nil)
	assert.ElementsMatch(t, []int64{1, 2}, officeOrRetail.keys)
}

func TestCountMatchesUnpaginatedResults(t *testing.T) {
	s, tdb := newSemanticStore(t)

	inputs := []map[string]interface{}{
		nil,
		{"transactionDate": map[string]interface{}{"min": "2021-01-01"}},
		{"buyerIds": []interface{}{"10", "12"}},
		{"nearStations": map[string]interface{}{"stationIds": []interface{}{"1", "2"}, "maxMinutes": 120.0}},
		{"prefectureIds": []interface{}{"27"}, "includeBulk": false},
	}
	for _, input := range inputs {
		f, err := filter.NormalizeTransactionFilter(input)
		require.NoError(t, err)
		composed, err := planner.NewComposer(0).Transactions(f)
		require.NoError(t, err)

		full := runSearch(t, s, tdb, composed, nil, planner.PageSpec{Limit: 1000})
		assert.Equal(t, int64(len(full.keys)), full.count, "input %v", input)

		paged := runSearch(t, s, tdb, composed, nil, planner.PageSpec{Offset: 1, Limit: 1})
		assert.Equal(t, full.count, paged.count)
		if len(full.keys) > 1 {
			assert.Equal(t, full.keys[1:2], paged.keys)
		}
	}
}

func TestCountMatchesPageForEverySortKey(t *testing.T) {
	s, tdb := newSemanticStore(t)
	tdb.Exec(t, `INSERT INTO transactions (id, building_id, transaction_date, price) VALUES (106, 999, '2024-02-02', 700);`)

	for key := range planner.Transactions.Sorts.Keys {
		for _, dir := range []planner.Direction{planner.Asc, planner.Desc} {
			t.Run(key+" "+string(dir), func(t *testing.T) {
				composed, err := planner.NewComposer(0).Transactions(filter.TransactionFilter{})
				require.NoError(t, err)
				sort := &planner.SortSpec{Key: key, Direction: dir}

				full := runSearch(t, s, tdb, composed, sort, planner.PageSpec{Limit: 1000})
				assert.Len(t, full.keys, 6)
				assert.Equal(t, int64(len(full.keys)), full.count)
				assert.Contains(t, full.keys, int64(106))

				paged := runSearch(t, s, tdb, composed, sort, planner.PageSpec{Offset: 2, Limit: 2})
				assert.Equal(t, full.count, paged.count)
				assert.Equal(t, full.keys[2:4], paged.keys)
			})
		}
	}
}

func TestTransactionDateScenario(t *testing.T) {
	s, tdb := newSemanticStore(t)
	got := searchTransactions(t, s, tdb, map[string]interface{}{
		"transactionDate": map[string]interface{}{"min": "2025-01-01", "max": "2025-12-31"},
	}, nil)

	assert.Equal(t, []int64{100}, got.keys)
	assert.Equal(t, planner.PageInfo{Page: 0, TotalPages: 1, TotalCount: 1}, got.page)
}

func TestApportionedPriceForBulkRows(t *testing.T) {
	s, tdb := newSemanticStore(t)
	byPrice := &planner.SortSpec{Key: "TRANSACTION_PRICE", Direction: planner.Asc}

	dual := searchTransactions(t, s, tdb, map[string]interface{}{
		"includeBulk":         true,
		"useApportionedPrice": true,
		"transactionPrice":    map[string]interface{}{"min": 700},
	}, byPrice)
	// 102 is bulk with raw 3000 but apportioned 650; 103 is bulk with raw 600
	// but apportioned 1500.
	assert.ElementsMatch(t, []int64{100, 103}, dual.keys)

	raw := searchTransactions(t, s, tdb, map[string]interface{}{
		"includeBulk":      true,
		"transactionPrice": map[string]interface{}{"min": 700},
	}, byPrice)
	assert.Equal(t, []int64{100, 102}, raw.keys)

	nonBulk := searchTransactions(t, s, tdb, map[string]interface{}{"includeBulk": false}, nil)
	assert.ElementsMatch(t, []int64{100, 101, 104}, nonBulk.keys)
}

func TestNearStationsUsesWalkingDistance(t *testing.T) {
	s, tdb := newSemanticStore(t)

	near := searchBuildings(t, s, tdb, map[string]interface{}{
		"nearStations": map[string]interface{}{"stationIds": []interface{}{"1"}, "maxMinutes": 10.0},
	}, nil)
	assert.Equal(t, []int64{1}, near.keys)

	ring := searchBuildings(t, s, tdb, map[string]interface{}{
		"nearStations": map[string]interface{}{"stationIds": []interface{}{"1"}, "minMinutes": 10.0, "maxMinutes": 120.0},
	}, nil)
	assert.Equal(t, []int64{2}, ring.keys)

	both := searchBuildings(t, s, tdb, map[string]interface{}{
		"nearStations": map[string]interface{}{"stationIds": []interface{}{"1", "2"}, "maxMinutes": 30.0},
	}, nil)
	assert.Equal(t, int64(len(both.keys)), both.count)
	assert.ElementsMatch(t, []int64{1, 3, 4}, both.keys)
}

func TestBoundingBox(t *testing.T) {
	s, tdb := newSemanticStore(t)
	got := searchBuildings(t, s, tdb, map[string]interface{}{
		"bbox": map[string]interface{}{"north": 36.0, "south": 35.0, "east": 140.0, "west": 139.0},
	}, nil)
	assert.ElementsMatch(t, []int64{1, 2}, got.keys)
}

func TestNullSortValuesComeLast(t *testing.T) {
	s, tdb := newSemanticStore(t)

	desc := searchBuildings(t, s, tdb, nil, nil)
	assert.Equal(t, []int64{4, 1, 2, 3}, desc.keys)

	asc := searchBuildings(t, s, tdb, nil, &planner.SortSpec{Key: "BUILT_YEAR", Direction: planner.Asc})
	assert.Equal(t, []int64{2, 1, 4, 3}, asc.keys)

	capRateDesc := searchTransactions(t, s, tdb, nil, &planner.SortSpec{Key: "CAP_RATE", Direction: planner.Desc})
	assert.Equal(t, []int64{101, 100, 103, 104, 102}, capRateDesc.keys)
}

func TestSortAndFilterShareAppraisalJoin(t *testing.T) {
	s, tdb := newSemanticStore(t)
	got := searchTransactions(t, s, tdb, map[string]interface{}{
		"appraisalPrice": map[string]interface{}{"min": 1},
	}, &planner.SortSpec{Key: "APPRAISAL_PRICE", Direction: planner.Asc})

	assert.Equal(t, []int64{101, 100, 104}, got.keys)
	assert.Equal(t, int64(3), got.count)
}

func TestBuyerNameMatchesNormalizedInput(t *testing.T) {
	s, tdb := newSemanticStore(t)
	got := searchTransactions(t, s, tdb, map[string]interface{}{"buyerName": " Ａｃｍｅ "}, nil)
	assert.Equal(t, []int64{100, 102}, got.keys)
}

func TestFetchByKeysOrdersWithinKey(t *testing.T) {
	s, tdb := newSemanticStore(t)
	tdb.Exec(t, `
INSERT INTO price_histories (id, building_id, corporation_id, event_date, category, category_rank, price) VALUES
  (1, 1, 10, '2023-01-01', 'sale', 2, 900),
  (2, 1, 10, '2020-01-01', 'sale', 2, 700),
  (3, 2, 11, '2021-05-01', 'listing', 1, 400),
  (4, 1, 11, '2020-01-01', 'listing', 1, 650);
`)

	rows, err := s.FetchByKeys(context.Background(), planner.BatchFetch{
		Table:      "price_histories",
		KeyColumns: []string{"building_id"},
		Columns:    []string{"id", "building_id", "event_date"},
		Keys:       [][]interface{}{{int64(1)}},
		Order: []planner.OrderTerm{
			{Column: "event_date", Direction: planner.Asc},
			{Column: "category_rank", Direction: planner.Asc},
			{Column: "id", Direction: planner.Asc},
		},
	})
	require.NoError(t, err)

	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i], _ = AsInt64(row["id"])
	}
	assert.Equal(t, []int64{4, 2, 1}, ids)
}
