package scalars

import (
	"math"
	"testing"
	"time"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBigIntScalar(t *testing.T) {
	scalar := BigInt()

	assert.Equal(t, "9223372036854775807", scalar.Serialize(int64(9223372036854775807)))
	assert.Equal(t, "5000000000", scalar.Serialize([]byte("5000000000")))
	assert.Nil(t, scalar.Serialize(nil))
	assert.Nil(t, scalar.Serialize(float64(math.MaxInt64)*2))

	parsed := scalar.ParseValue("42")
	require.IsType(t, int64(0), parsed)
	assert.Equal(t, int64(42), parsed)
	assert.Equal(t, int64(700), scalar.ParseValue(700))
	assert.Nil(t, scalar.ParseValue("not-a-number"))

	assert.Equal(t, int64(3000000000), scalar.ParseLiteral(&ast.IntValue{Value: "3000000000"}))
	assert.Equal(t, int64(12), scalar.ParseLiteral(&ast.StringValue{Value: "12"}))
	assert.Nil(t, scalar.ParseLiteral(&ast.FloatValue{Value: "1.5"}))
}

func TestDateScalar(t *testing.T) {
	scalar := Date()

	tests := []struct {
		name  string
		input interface{}
		want  interface{}
	}{
		{"time", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), "2024-01-15"},
		{"text date", "2025-03-15", "2025-03-15"},
		{"text datetime", "2025-03-15 00:00:00", "2025-03-15"},
		{"bytes", []byte("2020-06-01"), "2020-06-01"},
		{"garbage", "soon", nil},
		{"nil pointer", (*time.Time)(nil), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scalar.Serialize(tt.input))
		})
	}

	parsed := scalar.ParseValue("2024-01-02")
	require.IsType(t, time.Time{}, parsed)
	assert.Equal(t, "2024-01-02", parsed.(time.Time).Format(time.DateOnly))

	parsedRFC := scalar.ParseValue("2024-01-02T11:12:13Z")
	require.IsType(t, time.Time{}, parsedRFC)
	assert.Equal(t, 0, parsedRFC.(time.Time).Hour())

	assert.Nil(t, scalar.ParseValue("2024-13-01"))
	literal := scalar.ParseLiteral(&ast.StringValue{Value: "2025-12-31"})
	require.IsType(t, time.Time{}, literal)
	assert.Nil(t, scalar.ParseLiteral(&ast.IntValue{Value: "20251231"}))
}

func TestNonNegativeIntScalar(t *testing.T) {
	scalar := NonNegativeInt()

	assert.Equal(t, 3, scalar.Serialize(int64(3)))
	assert.Nil(t, scalar.Serialize(-1))
	assert.Equal(t, 10, scalar.ParseValue("10"))
	assert.Nil(t, scalar.ParseValue(1.5))
	assert.Equal(t, 0, scalar.ParseLiteral(&ast.IntValue{Value: "0"}))
	assert.Nil(t, scalar.ParseLiteral(&ast.IntValue{Value: "-2"}))
}
