package resolver

import (
	"fmt"

	"github.com/graphql-go/graphql"

	"estate-graphql/internal/filter"
	"estate-graphql/internal/planner"
	"estate-graphql/internal/queryerr"
)

type objectTypes struct {
	pageInfo              *graphql.Object
	transaction           *graphql.Object
	building              *graphql.Object
	corporation           *graphql.Object
	prefecture            *graphql.Object
	appraisal             *graphql.Object
	priceHistory          *graphql.Object
	transactionConnection *graphql.Object
	buildingConnection    *graphql.Object
}

type inputTypes struct {
	transactionFilter *graphql.InputObject
	buildingFilter    *graphql.InputObject
	transactionSort   *graphql.InputObject
	buildingSort      *graphql.InputObject
	page              *graphql.InputObject
}

// searchResult is the source of a connection object.
type searchResult struct {
	Keys     []int64
	PageInfo planner.PageInfo
}

func field[T any](typ graphql.Output, get func(T) interface{}) *graphql.Field {
	return &graphql.Field{
		Type: typ,
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			src, ok := p.Source.(T)
			if !ok {
				return nil, nil
			}
			return get(src), nil
		},
	}
}

func (r *Resolver) buildTypes() *objectTypes {
	t := &objectTypes{}

	t.pageInfo = graphql.NewObject(graphql.ObjectConfig{
		Name: "PageInfo",
		Fields: graphql.Fields{
			"page":       field(graphql.NewNonNull(graphql.Int), func(p planner.PageInfo) interface{} { return p.Page }),
			"totalPages": field(graphql.NewNonNull(graphql.Int), func(p planner.PageInfo) interface{} { return p.TotalPages }),
			"totalCount": field(graphql.NewNonNull(graphql.Int), func(p planner.PageInfo) interface{} { return p.TotalCount }),
		},
	})

	t.corporation = graphql.NewObject(graphql.ObjectConfig{
		Name: "Corporation",
		Fields: graphql.Fields{
			"id":              field(graphql.NewNonNull(graphql.ID), func(c *Corporation) interface{} { return formatID(c.ID) }),
			"name":            field(graphql.NewNonNull(graphql.String), func(c *Corporation) interface{} { return c.Name }),
			"corporateNumber": field(graphql.String, func(c *Corporation) interface{} { return deref(c.CorporateNumber) }),
		},
	})

	t.prefecture = graphql.NewObject(graphql.ObjectConfig{
		Name: "Prefecture",
		Fields: graphql.Fields{
			"id":   field(graphql.NewNonNull(graphql.ID), func(p *Prefecture) interface{} { return formatID(p.ID) }),
			"name": field(graphql.NewNonNull(graphql.String), func(p *Prefecture) interface{} { return p.Name }),
		},
	})

	t.appraisal = graphql.NewObject(graphql.ObjectConfig{
		Name: "Appraisal",
		Fields: graphql.Fields{
			"appraisalDate": field(r.date, func(a *Appraisal) interface{} { return deref(a.AppraisalDate) }),
			"price":         field(r.bigInt, func(a *Appraisal) interface{} { return deref(a.Price) }),
			"capRate":       field(graphql.Float, func(a *Appraisal) interface{} { return deref(a.CapRate) }),
		},
	})

	t.priceHistory = graphql.NewObject(graphql.ObjectConfig{
		Name: "PriceHistory",
		Fields: graphql.Fields{
			"id":           field(graphql.NewNonNull(graphql.ID), func(h *PriceHistory) interface{} { return formatID(h.ID) }),
			"eventDate":    field(graphql.NewNonNull(r.date), func(h *PriceHistory) interface{} { return h.EventDate }),
			"category":     field(graphql.NewNonNull(graphql.String), func(h *PriceHistory) interface{} { return h.Category }),
			"categoryRank": field(graphql.NewNonNull(graphql.Int), func(h *PriceHistory) interface{} { return h.CategoryRank }),
			"price":        field(r.bigInt, func(h *PriceHistory) interface{} { return deref(h.Price) }),
			"corporationId": field(graphql.ID, func(h *PriceHistory) interface{} {
				if h.CorporationID == nil {
					return nil
				}
				return formatID(*h.CorporationID)
			}),
		},
	})

	// Building and Transaction refer to each other.
	t.building = graphql.NewObject(graphql.ObjectConfig{
		Name: "Building",
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			return r.buildingFields(t)
		}),
	})
	t.transaction = graphql.NewObject(graphql.ObjectConfig{
		Name: "Transaction",
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			return r.transactionFields(t)
		}),
	})

	t.transactionConnection = graphql.NewObject(graphql.ObjectConfig{
		Name: "TransactionConnection",
		Fields: graphql.Fields{
			"nodes": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(t.transaction))),
				Resolve: r.resolveTransactionNodes,
			},
			"pageInfo": field(graphql.NewNonNull(t.pageInfo), func(s *searchResult) interface{} { return s.PageInfo }),
		},
	})
	t.buildingConnection = graphql.NewObject(graphql.ObjectConfig{
		Name: "BuildingConnection",
		Fields: graphql.Fields{
			"nodes": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(t.building))),
				Resolve: r.resolveBuildingNodes,
			},
			"pageInfo": field(graphql.NewNonNull(t.pageInfo), func(s *searchResult) interface{} { return s.PageInfo }),
		},
	})
	return t
}

func (r *Resolver) buildingFields(t *objectTypes) graphql.Fields {
	return graphql.Fields{
		"id":             field(graphql.NewNonNull(graphql.ID), func(b *Building) interface{} { return formatID(b.ID) }),
		"name":           field(graphql.NewNonNull(graphql.String), func(b *Building) interface{} { return b.Name }),
		"address":        field(graphql.String, func(b *Building) interface{} { return deref(b.Address) }),
		"latitude":       field(graphql.Float, func(b *Building) interface{} { return deref(b.Latitude) }),
		"longitude":      field(graphql.Float, func(b *Building) interface{} { return deref(b.Longitude) }),
		"builtYear":      field(graphql.Int, func(b *Building) interface{} { return deref(b.BuiltYear) }),
		"totalFloorArea": field(graphql.Float, func(b *Building) interface{} { return deref(b.TotalFloorArea) }),
		"landArea":       field(graphql.Float, func(b *Building) interface{} { return deref(b.LandArea) }),
		"leasehold":      field(graphql.NewNonNull(graphql.Boolean), func(b *Building) interface{} { return b.Leasehold }),
		"assetTypes": field(graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(graphql.String))), func(b *Building) interface{} {
			return b.AssetTypes
		}),
		"prefecture": {
			Type:        t.prefecture,
			Description: "Prefecture of the building. A building without one is reported as an inconsistent key.",
			Resolve:     r.resolveBuildingPrefecture,
		},
		"appraisal": {
			Type:    t.appraisal,
			Resolve: r.resolveBuildingAppraisal,
		},
		"priceHistories": {
			Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(t.priceHistory))),
			Description: "Price events ordered by event date, then category rank.",
			Resolve:     r.resolveBuildingPriceHistories,
		},
		"transactions": {
			Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(t.transaction))),
			Description: "Transactions of the building ordered by transaction date.",
			Resolve:     r.resolveBuildingTransactions,
		},
	}
}

func (r *Resolver) transactionFields(t *objectTypes) graphql.Fields {
	return graphql.Fields{
		"id":               field(graphql.NewNonNull(graphql.ID), func(tx *Transaction) interface{} { return formatID(tx.ID) }),
		"transactionDate":  field(r.date, func(tx *Transaction) interface{} { return deref(tx.TransactionDate) }),
		"price":            field(r.bigInt, func(tx *Transaction) interface{} { return deref(tx.Price) }),
		"apportionedPrice": field(r.bigInt, func(tx *Transaction) interface{} { return deref(tx.ApportionedPrice) }),
		"bulk":             field(graphql.NewNonNull(graphql.Boolean), func(tx *Transaction) interface{} { return tx.Bulk }),
		"priceDisclosed":   field(graphql.NewNonNull(graphql.Boolean), func(tx *Transaction) interface{} { return tx.PriceDisclosed }),
		"capRate":          field(graphql.Float, func(tx *Transaction) interface{} { return deref(tx.CapRate) }),
		"building": {
			Type:    t.building,
			Resolve: r.resolveTransactionBuilding,
		},
		"buyer": {
			Type: t.corporation,
			Resolve: r.resolveCorporationRef(func(tx *Transaction) *int64 {
				return tx.BuyerID
			}),
		},
		"seller": {
			Type: t.corporation,
			Resolve: r.resolveCorporationRef(func(tx *Transaction) *int64 {
				return tx.SellerID
			}),
		},
		"buyerHistory": {
			Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(t.priceHistory))),
			Description: "Price events the buyer recorded for the traded building.",
			Resolve:     r.resolveBuyerHistory,
		},
	}
}

func (r *Resolver) buildInputs() *inputTypes {
	in := &inputTypes{}

	order := graphql.NewEnum(graphql.EnumConfig{
		Name: "SortOrder",
		Values: graphql.EnumValueConfigMap{
			"ASC":  &graphql.EnumValueConfig{Value: string(planner.Asc)},
			"DESC": &graphql.EnumValueConfig{Value: string(planner.Desc)},
		},
	})
	in.transactionSort = sortInput("TransactionSort", sortKeyEnum("TransactionSortKey", planner.Transactions), order)
	in.buildingSort = sortInput("BuildingSort", sortKeyEnum("BuildingSortKey", planner.Buildings), order)

	in.page = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "PageInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"offset": &graphql.InputObjectFieldConfig{Type: graphql.Int, Description: "Defaults to 0."},
			"limit":  &graphql.InputObjectFieldConfig{Type: graphql.Int, Description: "Defaults to 10. Capped by the caller's plan."},
		},
	})

	dateRange := rangeInput("DateRange", r.date)
	priceRange := rangeInput("PriceRange", r.bigInt)
	floatRange := rangeInput("FloatRange", graphql.Float)
	intRange := rangeInput("IntRange", graphql.Int)
	ids := graphql.NewList(graphql.NewNonNull(graphql.ID))

	bbox := graphql.NewInputObject(graphql.InputObjectConfig{
		Name:        "GeoBBox",
		Description: "All four bounds are required together.",
		Fields: graphql.InputObjectConfigFieldMap{
			"north": &graphql.InputObjectFieldConfig{Type: graphql.Float},
			"south": &graphql.InputObjectFieldConfig{Type: graphql.Float},
			"east":  &graphql.InputObjectFieldConfig{Type: graphql.Float},
			"west":  &graphql.InputObjectFieldConfig{Type: graphql.Float},
		},
	})
	stations := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "StationDistance",
		Fields: graphql.InputObjectConfigFieldMap{
			"stationIds": &graphql.InputObjectFieldConfig{Type: ids},
			"minMinutes": &graphql.InputObjectFieldConfig{Type: graphql.Float},
			"maxMinutes": &graphql.InputObjectFieldConfig{Type: graphql.Float},
		},
	})
	assetFields := graphql.InputObjectConfigFieldMap{}
	for _, at := range filter.AssetTypes {
		assetFields[string(at)] = &graphql.InputObjectFieldConfig{Type: graphql.Boolean}
	}
	assets := graphql.NewInputObject(graphql.InputObjectConfig{
		Name:        "AssetTypes",
		Description: "Selected usages. Selecting none matches every building.",
		Fields:      assetFields,
	})

	buildingFields := func() graphql.InputObjectConfigFieldMap {
		return graphql.InputObjectConfigFieldMap{
			"buildingIds":    &graphql.InputObjectFieldConfig{Type: ids},
			"prefectureIds":  &graphql.InputObjectFieldConfig{Type: ids},
			"cityIds":        &graphql.InputObjectFieldConfig{Type: ids},
			"builtYear":      &graphql.InputObjectFieldConfig{Type: intRange},
			"floorArea":      &graphql.InputObjectFieldConfig{Type: floatRange},
			"landArea":       &graphql.InputObjectFieldConfig{Type: floatRange},
			"appraisalPrice": &graphql.InputObjectFieldConfig{Type: priceRange},
			"bbox":           &graphql.InputObjectFieldConfig{Type: bbox},
			"nearStations":   &graphql.InputObjectFieldConfig{Type: stations},
			"assetTypes":     &graphql.InputObjectFieldConfig{Type: assets},
			"leasehold":      &graphql.InputObjectFieldConfig{Type: graphql.Boolean},
		}
	}

	in.buildingFilter = graphql.NewInputObject(graphql.InputObjectConfig{
		Name:   "BuildingFilter",
		Fields: buildingFields(),
	})

	txFields := buildingFields()
	txFields["transactionDate"] = &graphql.InputObjectFieldConfig{Type: dateRange}
	txFields["transactionPrice"] = &graphql.InputObjectFieldConfig{Type: priceRange}
	txFields["capRate"] = &graphql.InputObjectFieldConfig{Type: floatRange}
	txFields["buyerIds"] = &graphql.InputObjectFieldConfig{Type: ids}
	txFields["sellerIds"] = &graphql.InputObjectFieldConfig{Type: ids}
	txFields["priceDisclosed"] = &graphql.InputObjectFieldConfig{Type: graphql.Boolean}
	txFields["includeBulk"] = &graphql.InputObjectFieldConfig{
		Type:        graphql.Boolean,
		Description: "Absent: no restriction. false: non-bulk only. true: bulk and non-bulk.",
	}
	txFields["useApportionedPrice"] = &graphql.InputObjectFieldConfig{
		Type:        graphql.Boolean,
		Description: "With includeBulk, match bulk rows on their apportioned price.",
	}
	txFields["buyerName"] = &graphql.InputObjectFieldConfig{
		Type:        graphql.String,
		Description: "Substring of the buyer name. Full-width and half-width forms match each other.",
	}
	in.transactionFilter = graphql.NewInputObject(graphql.InputObjectConfig{
		Name:   "TransactionFilter",
		Fields: txFields,
	})
	return in
}

func sortKeyEnum(name string, target *planner.Target) *graphql.Enum {
	values := graphql.EnumValueConfigMap{}
	for key := range target.Sorts.Keys {
		values[key] = &graphql.EnumValueConfig{Value: key}
	}
	return graphql.NewEnum(graphql.EnumConfig{
		Name:        name,
		Description: fmt.Sprintf("Defaults to %s %s.", target.Sorts.Default.Key, target.Sorts.Default.Direction),
		Values:      values,
	})
}

func sortInput(name string, keys *graphql.Enum, order *graphql.Enum) *graphql.InputObject {
	return graphql.NewInputObject(graphql.InputObjectConfig{
		Name: name,
		Fields: graphql.InputObjectConfigFieldMap{
			"key":   &graphql.InputObjectFieldConfig{Type: keys},
			"order": &graphql.InputObjectFieldConfig{Type: order},
		},
	})
}

func rangeInput(name string, typ graphql.Input) *graphql.InputObject {
	return graphql.NewInputObject(graphql.InputObjectConfig{
		Name: name,
		Fields: graphql.InputObjectConfigFieldMap{
			"min": &graphql.InputObjectFieldConfig{Type: typ},
			"max": &graphql.InputObjectFieldConfig{Type: typ},
		},
	})
}

func missingRow(field string, key int64) error {
	return queryerr.InconsistentKeyState(field, fmt.Sprintf("no row for key %d", key))
}
