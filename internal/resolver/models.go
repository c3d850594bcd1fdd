package resolver

import (
	"errors"
	"fmt"

	"estate-graphql/internal/filter"
	"estate-graphql/internal/queryerr"
	"estate-graphql/internal/store"
)

// Building is one row of buildings.
type Building struct {
	ID             int64
	Name           string
	Address        *string
	PrefectureID   int64
	CityID         *int64
	Latitude       *float64
	Longitude      *float64
	BuiltYear      *int64
	TotalFloorArea *float64
	LandArea       *float64
	Leasehold      bool
	AssetTypes     []string
}

// Transaction is one row of transactions.
type Transaction struct {
	ID               int64
	BuildingID       int64
	BuyerID          *int64
	SellerID         *int64
	TransactionDate  *string
	Price            *int64
	ApportionedPrice *int64
	Bulk             bool
	PriceDisclosed   bool
	CapRate          *float64
}

// Corporation is one row of corporations.
type Corporation struct {
	ID              int64
	Name            string
	CorporateNumber *string
}

// Prefecture is one row of prefectures.
type Prefecture struct {
	ID   int64
	Name string
}

// Appraisal is the current appraisal of a building.
type Appraisal struct {
	BuildingID    int64
	AppraisalDate *string
	Price         *int64
	CapRate       *float64
}

// PriceHistory is one event in a building's price history.
type PriceHistory struct {
	ID            int64
	BuildingID    int64
	CorporationID *int64
	EventDate     string
	Category      string
	CategoryRank  int64
	Price         *int64
}

// Column lists, in scan order.
var (
	buildingColumns = []string{
		"id", "name", "address", "prefecture_id", "city_id", "latitude", "longitude",
		"built_year", "total_floor_area", "land_area", "is_leasehold",
		"is_office", "is_retail", "is_residential", "is_hotel", "is_logistics", "is_land", "is_other",
	}
	transactionColumns = []string{
		"id", "building_id", "buyer_corporation_id", "seller_corporation_id", "transaction_date",
		"price", "apportioned_price", "is_bulk", "price_disclosed", "cap_rate",
	}
	corporationColumns  = []string{"id", "name", "corporate_number"}
	prefectureColumns   = []string{"id", "name"}
	appraisalColumns    = []string{"building_id", "appraisal_date", "appraisal_price", "cap_rate"}
	priceHistoryColumns = []string{"id", "building_id", "corporation_id", "event_date", "category", "category_rank", "price"}
)

func requiredInt64(table string, row store.Row, column string) (int64, error) {
	v, ok := store.AsInt64(row[column])
	if !ok {
		return 0, queryerr.InconsistentKeyState(table+"."+column, fmt.Sprintf("unexpected value %v", row[column]))
	}
	return v, nil
}

// keyStateError replaces the generic message of a required-column error
// with one naming the row.
func keyStateError(err error, message string) error {
	var qe *queryerr.Error
	if errors.As(err, &qe) {
		return queryerr.InconsistentKeyState(qe.Field, message)
	}
	return err
}

func optionalInt64(row store.Row, column string) *int64 {
	if v, ok := store.AsInt64(row[column]); ok {
		return &v
	}
	return nil
}

func optionalFloat64(row store.Row, column string) *float64 {
	if v, ok := store.AsFloat64(row[column]); ok {
		return &v
	}
	return nil
}

func optionalString(row store.Row, column string) *string {
	if v, ok := store.AsString(row[column]); ok {
		return &v
	}
	return nil
}

func optionalDate(row store.Row, column string) *string {
	if v, ok := store.AsDate(row[column]); ok {
		return &v
	}
	return nil
}

func flag(row store.Row, column string) bool {
	v, _ := store.AsBool(row[column])
	return v
}

// buildingFromRow decodes a buildings row. A missing prefecture_id fails
// the row and with it the whole batch the row was fetched in.
func buildingFromRow(row store.Row) (*Building, error) {
	id, err := requiredInt64("buildings", row, "id")
	if err != nil {
		return nil, err
	}
	prefectureID, err := requiredInt64("buildings", row, "prefecture_id")
	if err != nil {
		return nil, keyStateError(err, fmt.Sprintf("building %d has no prefecture_id", id))
	}
	name, _ := store.AsString(row["name"])
	b := &Building{
		ID:             id,
		Name:           name,
		Address:        optionalString(row, "address"),
		PrefectureID:   prefectureID,
		CityID:         optionalInt64(row, "city_id"),
		Latitude:       optionalFloat64(row, "latitude"),
		Longitude:      optionalFloat64(row, "longitude"),
		BuiltYear:      optionalInt64(row, "built_year"),
		TotalFloorArea: optionalFloat64(row, "total_floor_area"),
		LandArea:       optionalFloat64(row, "land_area"),
		Leasehold:      flag(row, "is_leasehold"),
		AssetTypes:     []string{},
	}
	for _, at := range filter.AssetTypes {
		if flag(row, "is_"+string(at)) {
			b.AssetTypes = append(b.AssetTypes, string(at))
		}
	}
	return b, nil
}

func transactionFromRow(row store.Row) (*Transaction, error) {
	id, err := requiredInt64("transactions", row, "id")
	if err != nil {
		return nil, err
	}
	buildingID, err := requiredInt64("transactions", row, "building_id")
	if err != nil {
		return nil, keyStateError(err, fmt.Sprintf("transaction %d has no building_id", id))
	}
	return &Transaction{
		ID:               id,
		BuildingID:       buildingID,
		BuyerID:          optionalInt64(row, "buyer_corporation_id"),
		SellerID:         optionalInt64(row, "seller_corporation_id"),
		TransactionDate:  optionalDate(row, "transaction_date"),
		Price:            optionalInt64(row, "price"),
		ApportionedPrice: optionalInt64(row, "apportioned_price"),
		Bulk:             flag(row, "is_bulk"),
		PriceDisclosed:   flag(row, "price_disclosed"),
		CapRate:          optionalFloat64(row, "cap_rate"),
	}, nil
}

func corporationFromRow(row store.Row) (*Corporation, error) {
	id, err := requiredInt64("corporations", row, "id")
	if err != nil {
		return nil, err
	}
	name, _ := store.AsString(row["name"])
	return &Corporation{ID: id, Name: name, CorporateNumber: optionalString(row, "corporate_number")}, nil
}

func prefectureFromRow(row store.Row) (*Prefecture, error) {
	id, err := requiredInt64("prefectures", row, "id")
	if err != nil {
		return nil, err
	}
	name, _ := store.AsString(row["name"])
	return &Prefecture{ID: id, Name: name}, nil
}

func appraisalFromRow(row store.Row) (*Appraisal, error) {
	buildingID, err := requiredInt64("building_appraisals", row, "building_id")
	if err != nil {
		return nil, err
	}
	return &Appraisal{
		BuildingID:    buildingID,
		AppraisalDate: optionalDate(row, "appraisal_date"),
		Price:         optionalInt64(row, "appraisal_price"),
		CapRate:       optionalFloat64(row, "cap_rate"),
	}, nil
}

func priceHistoryFromRow(row store.Row) (*PriceHistory, error) {
	id, err := requiredInt64("price_histories", row, "id")
	if err != nil {
		return nil, err
	}
	buildingID, err := requiredInt64("price_histories", row, "building_id")
	if err != nil {
		return nil, err
	}
	eventDate, _ := store.AsDate(row["event_date"])
	category, _ := store.AsString(row["category"])
	rank, _ := store.AsInt64(row["category_rank"])
	return &PriceHistory{
		ID:            id,
		BuildingID:    buildingID,
		CorporationID: optionalInt64(row, "corporation_id"),
		EventDate:     eventDate,
		Category:      category,
		CategoryRank:  rank,
		Price:         optionalInt64(row, "price"),
	}, nil
}
