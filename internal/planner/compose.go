package planner

import (
	"estate-graphql/internal/filter"
)

// DefaultWalkingSpeed is the walking speed in meters per minute used to turn
// station walking times into distances.
const DefaultWalkingSpeed = 80.0

// Composed is a predicate tree plus the joins needed to evaluate it.
type Composed struct {
	Target    *Target
	Predicate Predicate
	Joins     *JoinSet
}

// Composer turns normalized filters into predicate trees.
type Composer struct {
	walkingSpeed float64
}

// NewComposer creates a composer. A non-positive walking speed falls back to
// DefaultWalkingSpeed.
func NewComposer(walkingSpeed float64) *Composer {
	if walkingSpeed <= 0 {
		walkingSpeed = DefaultWalkingSpeed
	}
	return &Composer{walkingSpeed: walkingSpeed}
}

// Transactions composes a transactions search.
func (c *Composer) Transactions(f filter.TransactionFilter) (*Composed, error) {
	target := Transactions
	priceColumn := Col(AliasTransaction, "price")

	var price Predicate
	if f.Price != nil {
		if f.UseApportionedPrice && f.Bulk == filter.OnlyTrue {
			price = Conditional{
				Discriminator: Col(AliasTransaction, "is_bulk"),
				Branches: []Branch{
					{When: 1, Then: rangeOf(Col(AliasTransaction, "apportioned_price"), f.Price)},
					{When: 0, Then: rangeOf(priceColumn, f.Price)},
				},
			}
		} else {
			price = rangeOf(priceColumn, f.Price)
		}
	}

	var buyerName Predicate
	if f.BuyerName != "" {
		buyerName = Contains{Column: Col(AliasBuyer, "name"), Text: f.BuyerName}
	}

	pred := Conjoin(
		rangeOf(Col(AliasTransaction, "transaction_date"), f.TransactionDate),
		price,
		rangeOf(Col(AliasTransaction, "cap_rate"), f.CapRate),
		membership(Col(AliasTransaction, "buyer_corporation_id"), f.BuyerIDs),
		membership(Col(AliasTransaction, "seller_corporation_id"), f.SellerIDs),
		triState(Col(AliasTransaction, "price_disclosed"), f.PriceDisclosed),
		bulkInclusion(Col(AliasTransaction, "is_bulk"), f.Bulk),
		buyerName,
		c.building(target, f.Building),
	)
	return compose(target, pred)
}

// Buildings composes a buildings search.
func (c *Composer) Buildings(f filter.BuildingFilter) (*Composed, error) {
	return compose(Buildings, c.building(Buildings, f))
}

func compose(target *Target, pred Predicate) (*Composed, error) {
	joins := NewJoinSet(target)
	if err := joins.Require(Columns(pred)...); err != nil {
		return nil, err
	}
	return &Composed{Target: target, Predicate: pred, Joins: joins}, nil
}

func (c *Composer) building(target *Target, f filter.BuildingFilter) Predicate {
	if f.IsEmpty() {
		return nil
	}
	b := func(column string) ColumnRef { return Col(AliasBuilding, column) }

	var bbox Predicate
	if f.BBox != nil {
		bbox = BBox{
			Lat:   b("latitude"),
			Lon:   b("longitude"),
			North: f.BBox.North,
			South: f.BBox.South,
			East:  f.BBox.East,
			West:  f.BBox.West,
		}
	}

	return Conjoin(
		membership(target.BuildingKey, f.BuildingIDs),
		membership(b("prefecture_id"), f.PrefectureIDs),
		membership(b("city_id"), f.CityIDs),
		rangeOf(b("built_year"), f.BuiltYear),
		rangeOf(b("total_floor_area"), f.FloorArea),
		rangeOf(b("land_area"), f.LandArea),
		rangeOf(Col(AliasAppraisal, "appraisal_price"), f.AppraisalPrice),
		bbox,
		c.nearStations(f.NearStations),
		assetTypes(f.AssetTypes),
		triState(b("is_leasehold"), f.Leasehold),
	)
}

func (c *Composer) nearStations(sd *filter.StationDistance) Predicate {
	if sd == nil || len(sd.StationIDs) == 0 {
		return nil
	}
	var dist Predicate
	if !sd.Minutes.IsEmpty() {
		d := Distance{
			From: Point{Lat: Col(AliasBuilding, "latitude"), Lon: Col(AliasBuilding, "longitude")},
			To:   Point{Lat: Col(AliasStation, "latitude"), Lon: Col(AliasStation, "longitude")},
		}
		if sd.Minutes.Min != nil {
			m := *sd.Minutes.Min * c.walkingSpeed
			d.MinMeters = &m
		}
		if sd.Minutes.Max != nil {
			m := *sd.Minutes.Max * c.walkingSpeed
			d.MaxMeters = &m
		}
		dist = d
	}
	return Conjoin(dist, membership(Col(AliasStation, "id"), sd.StationIDs))
}

// assetColumns maps asset types to their flag columns.
var assetColumns = map[filter.AssetType]string{
	filter.AssetOffice:      "is_office",
	filter.AssetRetail:      "is_retail",
	filter.AssetResidential: "is_residential",
	filter.AssetHotel:       "is_hotel",
	filter.AssetLogistics:   "is_logistics",
	filter.AssetLand:        "is_land",
	filter.AssetOther:       "is_other",
}

// assetTypes keeps every flag in the OR. A disabled flag contributes a
// constant-false term; with nothing selected every term is enabled.
func assetTypes(sel *filter.AssetTypeSelector) Predicate {
	if sel == nil {
		return nil
	}
	terms := make(Or, 0, len(filter.AssetTypes))
	for _, at := range filter.AssetTypes {
		terms = append(terms, And{
			Const(sel.Enabled(at)),
			Eq{Column: Col(AliasBuilding, assetColumns[at]), Value: 1},
		})
	}
	return terms
}

// TriStatePredicate decomposes a tri-state toggle into its inclusion pair:
// (include-true AND col = 1) OR (include-false AND col = 0).
func TriStatePredicate(col ColumnRef, ts filter.TriState) Predicate {
	includeTrue, includeFalse := ts.Inclusion()
	return inclusionPair(col, includeTrue, includeFalse)
}

func inclusionPair(col ColumnRef, includeTrue, includeFalse bool) Predicate {
	return Or{
		And{Const(includeTrue), Eq{Column: col, Value: 1}},
		And{Const(includeFalse), Eq{Column: col, Value: 0}},
	}
}

// triState leaves an unset toggle out of the tree.
func triState(col ColumnRef, ts filter.TriState) Predicate {
	if ts == filter.Either {
		return nil
	}
	return TriStatePredicate(col, ts)
}

// bulkInclusion reads includeBulk as "bulk rows may be included": only an
// explicit false restricts the result, to non-bulk rows.
func bulkInclusion(col ColumnRef, ts filter.TriState) Predicate {
	if ts != filter.OnlyFalse {
		return nil
	}
	return inclusionPair(col, false, true)
}

func rangeOf[T any](col ColumnRef, r *filter.Range[T]) Predicate {
	if r == nil || r.IsEmpty() {
		return nil
	}
	out := Range{Column: col}
	if r.Min != nil {
		out.Min = *r.Min
	}
	if r.Max != nil {
		out.Max = *r.Max
	}
	return out
}

func membership(col ColumnRef, ids []int64) Predicate {
	if len(ids) == 0 {
		return nil
	}
	values := make([]interface{}, len(ids))
	for i, id := range ids {
		values[i] = id
	}
	return Membership{Column: col, Values: values}
}
