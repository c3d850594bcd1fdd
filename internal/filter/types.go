// Package filter normalizes sparse GraphQL filter input into canonical
// conditions. Every field of a normalized filter is either a validated,
// non-empty condition or absent (nil / zero value).
package filter

import "time"

// Range is a closed interval with optional bounds. A nil bound is open.
type Range[T any] struct {
	Min *T
	Max *T
}

// IsEmpty reports whether neither bound is set.
func (r Range[T]) IsEmpty() bool {
	return r.Min == nil && r.Max == nil
}

// BBox is a latitude/longitude bounding box. All four bounds are set.
type BBox struct {
	North float64
	South float64
	East  float64
	West  float64
}

// StationDistance restricts buildings to those within a walking-time band
// of at least one of the given stations.
type StationDistance struct {
	StationIDs []int64
	Minutes    Range[float64]
}

// TriState is a boolean filter with a third "either" meaning.
type TriState int8

const (
	Either TriState = iota
	OnlyTrue
	OnlyFalse
)

// TriStateOf maps an optional boolean input to a TriState.
func TriStateOf(v *bool) TriState {
	switch {
	case v == nil:
		return Either
	case *v:
		return OnlyTrue
	default:
		return OnlyFalse
	}
}

// Inclusion decomposes the toggle into (include-true, include-false).
func (t TriState) Inclusion() (includeTrue, includeFalse bool) {
	switch t {
	case OnlyTrue:
		return true, false
	case OnlyFalse:
		return false, true
	default:
		return true, true
	}
}

func (t TriState) String() string {
	switch t {
	case OnlyTrue:
		return "true"
	case OnlyFalse:
		return "false"
	default:
		return "either"
	}
}

// AssetType names one of the seven building usage flags.
type AssetType string

const (
	AssetOffice      AssetType = "office"
	AssetRetail      AssetType = "retail"
	AssetResidential AssetType = "residential"
	AssetHotel       AssetType = "hotel"
	AssetLogistics   AssetType = "logistics"
	AssetLand        AssetType = "land"
	AssetOther       AssetType = "other"
)

// AssetTypes lists every asset type in schema order.
var AssetTypes = []AssetType{
	AssetOffice,
	AssetRetail,
	AssetResidential,
	AssetHotel,
	AssetLogistics,
	AssetLand,
	AssetOther,
}

// AssetTypeSelector holds the explicitly selected asset types.
type AssetTypeSelector struct {
	selected map[AssetType]bool
}

// NewAssetTypeSelector builds a selector from explicitly selected types.
func NewAssetTypeSelector(types ...AssetType) *AssetTypeSelector {
	s := &AssetTypeSelector{selected: make(map[AssetType]bool, len(types))}
	for _, t := range types {
		s.selected[t] = true
	}
	return s
}

// MatchesAll reports whether no type was explicitly selected. An empty
// selection means every type is enabled, never that none is.
func (s *AssetTypeSelector) MatchesAll() bool {
	return s == nil || len(s.selected) == 0
}

// Enabled reports whether rows of the given type participate in the match.
func (s *AssetTypeSelector) Enabled(t AssetType) bool {
	if s.MatchesAll() {
		return true
	}
	return s.selected[t]
}

// BuildingFilter holds the building-level conditions. It is used both by the
// buildings root and, through TransactionFilter, by the transactions root.
type BuildingFilter struct {
	BuildingIDs    []int64
	PrefectureIDs  []int64
	CityIDs        []int64
	BuiltYear      *Range[int64]
	FloorArea      *Range[float64]
	LandArea       *Range[float64]
	AppraisalPrice *Range[int64]
	BBox           *BBox
	NearStations   *StationDistance
	AssetTypes     *AssetTypeSelector
	Leasehold      TriState
}

// IsEmpty reports whether no building condition is present.
func (f BuildingFilter) IsEmpty() bool {
	return len(f.BuildingIDs) == 0 &&
		len(f.PrefectureIDs) == 0 &&
		len(f.CityIDs) == 0 &&
		f.BuiltYear == nil &&
		f.FloorArea == nil &&
		f.LandArea == nil &&
		f.AppraisalPrice == nil &&
		f.BBox == nil &&
		f.NearStations == nil &&
		f.AssetTypes == nil &&
		f.Leasehold == Either
}

// TransactionFilter holds the transaction-level conditions plus the
// building-level conditions of the traded building.
type TransactionFilter struct {
	Building            BuildingFilter
	TransactionDate     *Range[time.Time]
	Price               *Range[int64]
	CapRate             *Range[float64]
	BuyerIDs            []int64
	SellerIDs           []int64
	PriceDisclosed      TriState
	Bulk                TriState
	UseApportionedPrice bool
	BuyerName           string
}
