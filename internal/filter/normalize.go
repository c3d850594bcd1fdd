package filter

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"estate-graphql/internal/queryerr"
)

// NormalizeBuildingFilter converts a BuildingFilter GraphQL argument into
// canonical form. A nil or empty input yields an empty filter.
func NormalizeBuildingFilter(input map[string]interface{}) (BuildingFilter, error) {
	return normalizeBuilding(input, "filter")
}

// NormalizeTransactionFilter converts a TransactionFilter GraphQL argument
// into canonical form. Building-level fields share the input object.
func NormalizeTransactionFilter(input map[string]interface{}) (TransactionFilter, error) {
	var out TransactionFilter
	building, err := normalizeBuilding(input, "filter")
	if err != nil {
		return TransactionFilter{}, err
	}
	out.Building = building
	if len(input) == 0 {
		return out, nil
	}

	if out.TransactionDate, err = dateRange(input, "transactionDate", "filter"); err != nil {
		return TransactionFilter{}, err
	}
	if out.Price, err = int64Range(input, "transactionPrice", "filter"); err != nil {
		return TransactionFilter{}, err
	}
	if out.CapRate, err = floatRange(input, "capRate", "filter"); err != nil {
		return TransactionFilter{}, err
	}
	if out.BuyerIDs, err = idList(input, "buyerIds", "filter"); err != nil {
		return TransactionFilter{}, err
	}
	if out.SellerIDs, err = idList(input, "sellerIds", "filter"); err != nil {
		return TransactionFilter{}, err
	}
	out.PriceDisclosed = TriStateOf(optionalBool(input, "priceDisclosed"))
	out.Bulk = TriStateOf(optionalBool(input, "includeBulk"))
	if v := optionalBool(input, "useApportionedPrice"); v != nil {
		out.UseApportionedPrice = *v
	}
	out.BuyerName = NormalizeText(stringValue(input["buyerName"]))
	return out, nil
}

func normalizeBuilding(input map[string]interface{}, path string) (BuildingFilter, error) {
	var out BuildingFilter
	if len(input) == 0 {
		return out, nil
	}
	var err error

	if out.BuildingIDs, err = idList(input, "buildingIds", path); err != nil {
		return BuildingFilter{}, err
	}
	if out.PrefectureIDs, err = idList(input, "prefectureIds", path); err != nil {
		return BuildingFilter{}, err
	}
	if out.CityIDs, err = idList(input, "cityIds", path); err != nil {
		return BuildingFilter{}, err
	}
	if out.BuiltYear, err = int64Range(input, "builtYear", path); err != nil {
		return BuildingFilter{}, err
	}
	if out.FloorArea, err = floatRange(input, "floorArea", path); err != nil {
		return BuildingFilter{}, err
	}
	if out.LandArea, err = floatRange(input, "landArea", path); err != nil {
		return BuildingFilter{}, err
	}
	if out.AppraisalPrice, err = int64Range(input, "appraisalPrice", path); err != nil {
		return BuildingFilter{}, err
	}
	if out.BBox, err = bbox(input, "bbox", path); err != nil {
		return BuildingFilter{}, err
	}
	if out.NearStations, err = stationDistance(input, "nearStations", path); err != nil {
		return BuildingFilter{}, err
	}
	out.AssetTypes = assetTypes(input, "assetTypes")
	out.Leasehold = TriStateOf(optionalBool(input, "leasehold"))
	return out, nil
}

// NormalizeText folds compatibility forms (full-width digits and latin
// letters, half-width katakana) and trims surrounding space.
func NormalizeText(s string) string {
	return strings.TrimSpace(norm.NFKC.String(s))
}

// ParseID parses an external decimal identifier into an internal key.
func ParseID(field string, raw interface{}) (int64, error) {
	switch v := raw.(type) {
	case int:
		if v <= 0 {
			return 0, queryerr.InvalidIdentifier(field, strconv.Itoa(v), nil)
		}
		return int64(v), nil
	case int64:
		if v <= 0 {
			return 0, queryerr.InvalidIdentifier(field, strconv.FormatInt(v, 10), nil)
		}
		return v, nil
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, queryerr.InvalidIdentifier(field, v, err)
		}
		if id <= 0 {
			return 0, queryerr.InvalidIdentifier(field, v, nil)
		}
		return id, nil
	default:
		return 0, queryerr.InvalidIdentifier(field, fmt.Sprint(raw), nil)
	}
}

// ParseIDs parses a list of external identifiers, dropping duplicates while
// keeping first-seen order. An empty list yields nil. Any malformed element
// fails the whole list.
func ParseIDs(field string, raw []interface{}) ([]int64, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]int64, 0, len(raw))
	seen := make(map[int64]struct{}, len(raw))
	for _, item := range raw {
		id, err := ParseID(field, item)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func idList(input map[string]interface{}, key, path string) ([]int64, error) {
	raw, ok := input[key]
	if !ok || raw == nil {
		return nil, nil
	}
	field := path + "." + key
	switch v := raw.(type) {
	case []interface{}:
		return ParseIDs(field, v)
	case []string:
		items := make([]interface{}, len(v))
		for i := range v {
			items[i] = v[i]
		}
		return ParseIDs(field, items)
	default:
		return nil, queryerr.InvalidIdentifier(field, fmt.Sprint(raw), nil)
	}
}

func rangeInput(input map[string]interface{}, key string) (min, max interface{}, ok bool) {
	raw, ok := input[key].(map[string]interface{})
	if !ok {
		return nil, nil, false
	}
	return raw["min"], raw["max"], true
}

func int64Range(input map[string]interface{}, key, path string) (*Range[int64], error) {
	minRaw, maxRaw, ok := rangeInput(input, key)
	if !ok {
		return nil, nil
	}
	var r Range[int64]
	var err error
	if r.Min, err = optionalInt64(path+"."+key+".min", minRaw); err != nil {
		return nil, err
	}
	if r.Max, err = optionalInt64(path+"."+key+".max", maxRaw); err != nil {
		return nil, err
	}
	if r.IsEmpty() {
		return nil, nil
	}
	return &r, nil
}

func floatRange(input map[string]interface{}, key, path string) (*Range[float64], error) {
	minRaw, maxRaw, ok := rangeInput(input, key)
	if !ok {
		return nil, nil
	}
	var r Range[float64]
	var err error
	if r.Min, err = optionalFloat(path+"."+key+".min", minRaw); err != nil {
		return nil, err
	}
	if r.Max, err = optionalFloat(path+"."+key+".max", maxRaw); err != nil {
		return nil, err
	}
	if r.IsEmpty() {
		return nil, nil
	}
	return &r, nil
}

func dateRange(input map[string]interface{}, key, path string) (*Range[time.Time], error) {
	minRaw, maxRaw, ok := rangeInput(input, key)
	if !ok {
		return nil, nil
	}
	var r Range[time.Time]
	var err error
	if r.Min, err = optionalDate(path+"."+key+".min", minRaw); err != nil {
		return nil, err
	}
	if r.Max, err = optionalDate(path+"."+key+".max", maxRaw); err != nil {
		return nil, err
	}
	if r.IsEmpty() {
		return nil, nil
	}
	return &r, nil
}

func bbox(input map[string]interface{}, key, path string) (*BBox, error) {
	raw, ok := input[key].(map[string]interface{})
	if !ok {
		return nil, nil
	}
	field := path + "." + key
	bounds := [4]string{"north", "south", "east", "west"}
	var values [4]*float64
	present := 0
	for i, name := range bounds {
		v, err := optionalFloat(field+"."+name, raw[name])
		if err != nil {
			return nil, err
		}
		if v != nil {
			values[i] = v
			present++
		}
	}
	switch present {
	case 0:
		return nil, nil
	case len(bounds):
		return &BBox{North: *values[0], South: *values[1], East: *values[2], West: *values[3]}, nil
	default:
		return nil, queryerr.IncompleteRangeSpec(field, "north, south, east and west must be given together")
	}
}

func stationDistance(input map[string]interface{}, key, path string) (*StationDistance, error) {
	raw, ok := input[key].(map[string]interface{})
	if !ok {
		return nil, nil
	}
	field := path + "." + key
	ids, err := idList(raw, "stationIds", field)
	if err != nil {
		return nil, err
	}
	var minutes Range[float64]
	if minutes.Min, err = optionalFloat(field+".minMinutes", raw["minMinutes"]); err != nil {
		return nil, err
	}
	if minutes.Max, err = optionalFloat(field+".maxMinutes", raw["maxMinutes"]); err != nil {
		return nil, err
	}
	// The reference set defines the condition; without stations there is
	// nothing to measure against.
	if len(ids) == 0 {
		return nil, nil
	}
	return &StationDistance{StationIDs: ids, Minutes: minutes}, nil
}

func assetTypes(input map[string]interface{}, key string) *AssetTypeSelector {
	raw, ok := input[key].(map[string]interface{})
	if !ok {
		return nil
	}
	var selected []AssetType
	present := false
	for _, t := range AssetTypes {
		v := optionalBool(raw, string(t))
		if v == nil {
			continue
		}
		present = true
		if *v {
			selected = append(selected, t)
		}
	}
	if !present {
		return nil
	}
	return NewAssetTypeSelector(selected...)
}

func optionalBool(input map[string]interface{}, key string) *bool {
	v, ok := input[key].(bool)
	if !ok {
		return nil
	}
	return &v
}

func optionalInt64(field string, raw interface{}) (*int64, error) {
	var v int64
	switch n := raw.(type) {
	case nil:
		return nil, nil
	case int:
		v = int64(n)
	case int32:
		v = int64(n)
	case int64:
		v = n
	case float64:
		if n != math.Trunc(n) || n >= math.MaxInt64 || n < math.MinInt64 {
			return nil, queryerr.InvalidRangeBound(field, n, errors.New("not an integer"))
		}
		v = int64(n)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return nil, queryerr.InvalidRangeBound(field, strconv.Quote(n), err)
		}
		v = parsed
	default:
		return nil, queryerr.InvalidRangeBound(field, raw, fmt.Errorf("unsupported type %T", raw))
	}
	return &v, nil
}

func optionalFloat(field string, raw interface{}) (*float64, error) {
	var v float64
	switch n := raw.(type) {
	case nil:
		return nil, nil
	case float64:
		v = n
	case float32:
		v = float64(n)
	case int:
		v = float64(n)
	case int64:
		v = float64(n)
	default:
		return nil, queryerr.InvalidRangeBound(field, raw, fmt.Errorf("unsupported type %T", raw))
	}
	return &v, nil
}

func optionalDate(field string, raw interface{}) (*time.Time, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return &v, nil
	case string:
		parsed, err := time.Parse(time.DateOnly, strings.TrimSpace(v))
		if err != nil {
			return nil, queryerr.InvalidRangeBound(field, strconv.Quote(v), err)
		}
		return &parsed, nil
	default:
		return nil, queryerr.InvalidRangeBound(field, raw, fmt.Errorf("unsupported type %T", raw))
	}
}

func stringValue(raw interface{}) string {
	s, _ := raw.(string)
	return s
}
