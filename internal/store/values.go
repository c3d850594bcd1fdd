package store

import (
	"strconv"
	"time"
)

// AsInt64 converts a scanned value to int64. Drivers return integers as
// int64, []byte or string depending on protocol.
func AsInt64(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case uint64:
		return int64(t), true
	case float64:
		return int64(t), true
	case []byte:
		n, err := strconv.ParseInt(string(t), 10, 64)
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// AsFloat64 converts a scanned numeric value to float64.
func AsFloat64(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	case []byte:
		f, err := strconv.ParseFloat(string(t), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// AsBool reads a 0/1 flag column.
func AsBool(v interface{}) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	default:
		n, ok := AsInt64(v)
		return n != 0, ok
	}
}

// AsString converts a scanned text value.
func AsString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case []byte:
		return string(t), true
	default:
		return "", false
	}
}

// AsDate normalizes a DATE column to YYYY-MM-DD. Drivers hand dates back as
// time.Time or text.
func AsDate(v interface{}) (string, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.Format(time.DateOnly), true
	case string:
		if len(t) >= len(time.DateOnly) {
			return t[:len(time.DateOnly)], true
		}
		return t, t != ""
	case []byte:
		return AsDate(string(t))
	default:
		return "", false
	}
}
