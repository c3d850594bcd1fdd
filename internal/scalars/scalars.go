// Package scalars defines the custom GraphQL scalars of the estate schema.
package scalars

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
)

// NonNegativeInt is used for page metadata.
func NonNegativeInt() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "NonNegativeInt",
		Description: "An integer greater than or equal to zero.",
		Serialize: func(value interface{}) interface{} {
			if parsed, ok := coerceNonNegativeInt(value); ok {
				return parsed
			}
			return nil
		},
		ParseValue: func(value interface{}) interface{} {
			if parsed, ok := coerceNonNegativeInt(value); ok {
				return parsed
			}
			return nil
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			intValue, ok := valueAST.(*ast.IntValue)
			if !ok {
				return nil
			}
			parsed, err := strconv.Atoi(intValue.Value)
			if err != nil || parsed < 0 {
				return nil
			}
			return parsed
		},
	})
}

// BigInt carries prices, which overflow GraphQL's 32-bit Int. Output is a
// decimal string; input accepts integers or decimal strings.
func BigInt() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "BigInt",
		Description: "64-bit integer value serialized as a string.",
		Serialize: func(value interface{}) interface{} {
			if v, ok := toInt64(value); ok {
				return strconv.FormatInt(v, 10)
			}
			return nil
		},
		ParseValue: func(value interface{}) interface{} {
			if v, ok := toInt64(value); ok {
				return v
			}
			return nil
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			switch v := valueAST.(type) {
			case *ast.IntValue:
				return parseInt64(v.Value)
			case *ast.StringValue:
				return parseInt64(v.Value)
			default:
				return nil
			}
		},
	})
}

// Date is a calendar date serialized as YYYY-MM-DD. Storage drivers return
// dates either as time.Time or as text, so both serialize.
func Date() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "Date",
		Description: "Date value serialized as YYYY-MM-DD.",
		Serialize: func(value interface{}) interface{} {
			switch v := value.(type) {
			case time.Time:
				return v.UTC().Format(time.DateOnly)
			case *time.Time:
				if v == nil {
					return nil
				}
				return v.UTC().Format(time.DateOnly)
			case []byte:
				return serializeDateText(string(v))
			case string:
				return serializeDateText(v)
			default:
				return nil
			}
		},
		ParseValue: func(value interface{}) interface{} {
			switch v := value.(type) {
			case time.Time:
				return v
			case string:
				if parsed, ok := parseDate(v); ok {
					return parsed
				}
				return nil
			default:
				return nil
			}
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			if sv, ok := valueAST.(*ast.StringValue); ok {
				if parsed, ok := parseDate(sv.Value); ok {
					return parsed
				}
			}
			return nil
		},
	})
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if parsed, err := time.Parse(time.DateOnly, s); err == nil {
		return parsed, true
	}
	if parsed, err := time.Parse(time.RFC3339, s); err == nil {
		return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// serializeDateText accepts "YYYY-MM-DD" optionally followed by a time part.
func serializeDateText(s string) interface{} {
	if len(s) < len(time.DateOnly) {
		return nil
	}
	if parsed, ok := parseDate(s[:len(time.DateOnly)]); ok {
		return parsed.Format(time.DateOnly)
	}
	return nil
}

func parseInt64(s string) interface{} {
	parsed, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return nil
	}
	return parsed
}

func toInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint32:
		return int64(v), true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case float64:
		if v != math.Trunc(v) || v >= math.MaxInt64 || v < math.MinInt64 {
			return 0, false
		}
		return int64(v), true
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return parsed, err == nil
	case []byte:
		parsed, err := strconv.ParseInt(string(v), 10, 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}

func coerceNonNegativeInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		if v < 0 {
			return 0, false
		}
		return v, true
	case int32:
		if v < 0 {
			return 0, false
		}
		return int(v), true
	case int64:
		if v < 0 || v > math.MaxInt {
			return 0, false
		}
		return int(v), true
	case float64:
		if v != math.Trunc(v) || v < 0 || v > math.MaxInt {
			return 0, false
		}
		return int(v), true
	case string:
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
