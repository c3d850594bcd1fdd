package resolver

import (
	"context"
	"errors"

	"estate-graphql/internal/loader"
	"estate-graphql/internal/planner"
	"estate-graphql/internal/store"
)

// Loader names, also used as the relation label of batch metrics.
const (
	loaderBuildings              = "buildings"
	loaderTransactions           = "transactions"
	loaderCorporations           = "corporations"
	loaderPrefectures            = "prefectures"
	loaderAppraisals             = "building_appraisals"
	loaderPriceHistories         = "price_histories_by_building"
	loaderBuyerHistories         = "price_histories_by_buyer"
	loaderTransactionsByBuilding = "transactions_by_building"
	loaderExternalBuildings      = "external_building_ids"
)

var errNoLoaderRegistry = errors.New("no loader registry in request context")

// historyKey identifies the price history of one corporation at one building.
type historyKey struct {
	BuildingID    int64
	CorporationID int64
}

// externalKey identifies a building in an external system.
type externalKey struct {
	Source     string
	ExternalID string
}

// requestLoaders gives typed access to the loaders of the current request.
type requestLoaders struct {
	buildings              *loader.Loader[int64, *Building]
	transactions           *loader.Loader[int64, *Transaction]
	corporations           *loader.Loader[int64, *Corporation]
	prefectures            *loader.Loader[int64, *Prefecture]
	appraisals             *loader.Loader[int64, *Appraisal]
	priceHistories         *loader.Loader[int64, []*PriceHistory]
	buyerHistories         *loader.Loader[historyKey, []*PriceHistory]
	transactionsByBuilding *loader.Loader[int64, []*Transaction]
	externalBuildings      *loader.Loader[externalKey, *Building]
}

var historyOrder = []planner.OrderTerm{
	{Column: "event_date", Direction: planner.Asc},
	{Column: "category_rank", Direction: planner.Asc},
	{Column: "id", Direction: planner.Asc},
}

func (r *Resolver) loaders(ctx context.Context) (*requestLoaders, error) {
	reg, ok := loader.FromContext(ctx)
	if !ok {
		return nil, errNoLoaderRegistry
	}
	emptyHistory := loader.WithMissing[int64](func(int64) []*PriceHistory { return []*PriceHistory{} })
	emptyBuyerHistory := loader.WithMissing[historyKey](func(historyKey) []*PriceHistory { return []*PriceHistory{} })
	emptyTransactions := loader.WithMissing[int64](func(int64) []*Transaction { return []*Transaction{} })

	l := &requestLoaders{
		buildings:              loader.Get(reg, loaderBuildings, byID(r.store, "buildings", buildingColumns, buildingFromRow)),
		transactions:           loader.Get(reg, loaderTransactions, byID(r.store, "transactions", transactionColumns, transactionFromRow)),
		corporations:           loader.Get(reg, loaderCorporations, byID(r.store, "corporations", corporationColumns, corporationFromRow)),
		prefectures:            loader.Get(reg, loaderPrefectures, byID(r.store, "prefectures", prefectureColumns, prefectureFromRow)),
		priceHistories:         loader.Get(reg, loaderPriceHistories, r.fetchPriceHistories, emptyHistory),
		buyerHistories:         loader.Get(reg, loaderBuyerHistories, r.fetchBuyerHistories, emptyBuyerHistory),
		transactionsByBuilding: loader.Get(reg, loaderTransactionsByBuilding, r.fetchTransactionsByBuilding, emptyTransactions),
	}
	l.appraisals = loader.Get(reg, loaderAppraisals, r.fetchAppraisals)
	l.externalBuildings = loader.Get(reg, loaderExternalBuildings, r.externalBuildingFetcher(l.buildings))
	return l, nil
}

func int64Keys(keys []int64) [][]interface{} {
	out := make([][]interface{}, len(keys))
	for i, k := range keys {
		out[i] = []interface{}{k}
	}
	return out
}

// byID builds a 1:1 batch function over a table keyed by its id column.
func byID[V any](st *store.Store, table string, columns []string, decode func(store.Row) (*V, error)) loader.BatchFunc[int64, *V] {
	return func(ctx context.Context, keys []int64) (map[int64]*V, error) {
		rows, err := st.FetchByKeys(ctx, planner.BatchFetch{
			Table:      table,
			KeyColumns: []string{"id"},
			Columns:    columns,
			Keys:       int64Keys(keys),
		})
		if err != nil {
			return nil, err
		}
		out := make(map[int64]*V, len(rows))
		for _, row := range rows {
			id, err := requiredInt64(table, row, "id")
			if err != nil {
				return nil, err
			}
			v, err := decode(row)
			if err != nil {
				return nil, err
			}
			out[id] = v
		}
		return out, nil
	}
}

func (r *Resolver) fetchAppraisals(ctx context.Context, keys []int64) (map[int64]*Appraisal, error) {
	rows, err := r.store.FetchByKeys(ctx, planner.BatchFetch{
		Table:      "building_appraisals",
		KeyColumns: []string{"building_id"},
		Columns:    appraisalColumns,
		Keys:       int64Keys(keys),
	})
	if err != nil {
		return nil, err
	}
	out := make(map[int64]*Appraisal, len(rows))
	for _, row := range rows {
		a, err := appraisalFromRow(row)
		if err != nil {
			return nil, err
		}
		out[a.BuildingID] = a
	}
	return out, nil
}

// fetchPriceHistories groups history rows by building. Rows arrive in
// history order and appending keeps that order within each building.
func (r *Resolver) fetchPriceHistories(ctx context.Context, keys []int64) (map[int64][]*PriceHistory, error) {
	rows, err := r.store.FetchByKeys(ctx, planner.BatchFetch{
		Table:      "price_histories",
		KeyColumns: []string{"building_id"},
		Columns:    priceHistoryColumns,
		Keys:       int64Keys(keys),
		Order:      historyOrder,
	})
	if err != nil {
		return nil, err
	}
	out := make(map[int64][]*PriceHistory, len(keys))
	for _, row := range rows {
		h, err := priceHistoryFromRow(row)
		if err != nil {
			return nil, err
		}
		out[h.BuildingID] = append(out[h.BuildingID], h)
	}
	return out, nil
}

func (r *Resolver) fetchBuyerHistories(ctx context.Context, keys []historyKey) (map[historyKey][]*PriceHistory, error) {
	tuples := make([][]interface{}, len(keys))
	for i, k := range keys {
		tuples[i] = []interface{}{k.BuildingID, k.CorporationID}
	}
	rows, err := r.store.FetchByKeys(ctx, planner.BatchFetch{
		Table:      "price_histories",
		KeyColumns: []string{"building_id", "corporation_id"},
		Columns:    priceHistoryColumns,
		Keys:       tuples,
		Order:      historyOrder,
	})
	if err != nil {
		return nil, err
	}
	out := make(map[historyKey][]*PriceHistory, len(keys))
	for _, row := range rows {
		h, err := priceHistoryFromRow(row)
		if err != nil {
			return nil, err
		}
		if h.CorporationID == nil {
			continue
		}
		key := historyKey{BuildingID: h.BuildingID, CorporationID: *h.CorporationID}
		out[key] = append(out[key], h)
	}
	return out, nil
}

func (r *Resolver) fetchTransactionsByBuilding(ctx context.Context, keys []int64) (map[int64][]*Transaction, error) {
	rows, err := r.store.FetchByKeys(ctx, planner.BatchFetch{
		Table:      "transactions",
		KeyColumns: []string{"building_id"},
		Columns:    transactionColumns,
		Keys:       int64Keys(keys),
		Order: []planner.OrderTerm{
			{Column: "transaction_date", Direction: planner.Asc},
			{Column: "id", Direction: planner.Asc},
		},
	})
	if err != nil {
		return nil, err
	}
	out := make(map[int64][]*Transaction, len(keys))
	for _, row := range rows {
		t, err := transactionFromRow(row)
		if err != nil {
			return nil, err
		}
		out[t.BuildingID] = append(out[t.BuildingID], t)
	}
	return out, nil
}

// externalBuildingFetcher resolves external ids in two steps: one query for
// the mapping rows of every requested key, then the building loader for the
// internal ids it found.
func (r *Resolver) externalBuildingFetcher(buildings *loader.Loader[int64, *Building]) loader.BatchFunc[externalKey, *Building] {
	return func(ctx context.Context, keys []externalKey) (map[externalKey]*Building, error) {
		tuples := make([][]interface{}, len(keys))
		for i, k := range keys {
			tuples[i] = []interface{}{k.Source, k.ExternalID}
		}
		rows, err := r.store.FetchByKeys(ctx, planner.BatchFetch{
			Table:      "external_building_ids",
			KeyColumns: []string{"source_system", "external_id"},
			Columns:    []string{"source_system", "external_id", "building_id"},
			Keys:       tuples,
		})
		if err != nil {
			return nil, err
		}

		internal := make(map[externalKey]int64, len(rows))
		ids := make([]int64, 0, len(rows))
		for _, row := range rows {
			source, _ := store.AsString(row["source_system"])
			externalID, _ := store.AsString(row["external_id"])
			buildingID, err := requiredInt64("external_building_ids", row, "building_id")
			if err != nil {
				return nil, err
			}
			internal[externalKey{Source: source, ExternalID: externalID}] = buildingID
			ids = append(ids, buildingID)
		}

		resolved, err := buildings.LoadMany(ctx, ids)()
		if err != nil {
			return nil, err
		}
		byID := make(map[int64]*Building, len(ids))
		for i, id := range ids {
			byID[id] = resolved[i]
		}

		out := make(map[externalKey]*Building, len(internal))
		for key, id := range internal {
			if b := byID[id]; b != nil {
				out[key] = b
			}
		}
		return out, nil
	}
}
