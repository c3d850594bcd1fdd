package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estate-graphql/internal/dialect"
)

func compileSQL(t *testing.T, p Predicate) (string, []interface{}) {
	t.Helper()
	cond, err := Compile(p, dialect.MySQL{})
	require.NoError(t, err)
	sql, args, err := cond.ToSql()
	require.NoError(t, err)
	return sql, args
}

func TestCompileRange(t *testing.T) {
	price := Col("t", "price")
	cases := []struct {
		name string
		pred Range
		sql  string
		args []interface{}
	}{
		{
			name: "both bounds",
			pred: Range{Column: price, Min: int64(100), Max: int64(200)},
			sql:  "`t`.`price` BETWEEN ? AND ?",
			args: []interface{}{int64(100), int64(200)},
		},
		{
			name: "min only",
			pred: Range{Column: price, Min: int64(100)},
			sql:  "`t`.`price` >= ?",
			args: []interface{}{int64(100)},
		},
		{
			name: "max only",
			pred: Range{Column: price, Max: int64(200)},
			sql:  "`t`.`price` <= ?",
			args: []interface{}{int64(200)},
		},
		{
			name: "dates bind as YYYY-MM-DD",
			pred: Range{
				Column: Col("t", "transaction_date"),
				Min:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
				Max:    time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
			},
			sql:  "`t`.`transaction_date` BETWEEN ? AND ?",
			args: []interface{}{"2025-01-01", "2025-12-31"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sql, args := compileSQL(t, tc.pred)
			assert.Equal(t, tc.sql, sql)
			assert.Equal(t, tc.args, args)
		})
	}

	_, err := Compile(Range{Column: price}, dialect.MySQL{})
	assert.Error(t, err)
}

func TestCompileMembershipNeverEmitsEmptyIn(t *testing.T) {
	sql, args := compileSQL(t, Membership{Column: Col("t", "buyer_corporation_id"), Values: []interface{}{int64(1), int64(2)}})
	assert.Equal(t, "`t`.`buyer_corporation_id` IN (?,?)", sql)
	assert.Equal(t, []interface{}{int64(1), int64(2)}, args)

	_, err := Compile(Membership{Column: Col("t", "buyer_corporation_id")}, dialect.MySQL{})
	assert.Error(t, err)
}

func TestCompileBBox(t *testing.T) {
	sql, args := compileSQL(t, BBox{
		Lat: Col("b", "latitude"), Lon: Col("b", "longitude"),
		North: 35.7, South: 35.6, East: 139.8, West: 139.7,
	})
	assert.Equal(t, "(`b`.`latitude` BETWEEN ? AND ? AND `b`.`longitude` BETWEEN ? AND ?)", sql)
	assert.Equal(t, []interface{}{35.6, 35.7, 139.7, 139.8}, args)
}

func TestCompileDistanceUsesDialect(t *testing.T) {
	maxMeters := 800.0
	pred := Distance{
		From:      Point{Lat: Col("b", "latitude"), Lon: Col("b", "longitude")},
		To:        Point{Lat: Col("st", "latitude"), Lon: Col("st", "longitude")},
		MaxMeters: &maxMeters,
	}

	sql, args := compileSQL(t, pred)
	assert.Equal(t, "ST_Distance_Sphere(POINT(`b`.`longitude`, `b`.`latitude`), POINT(`st`.`longitude`, `st`.`latitude`)) <= ?", sql)
	assert.Equal(t, []interface{}{800.0}, args)

	cond, err := Compile(pred, dialect.SQLite{})
	require.NoError(t, err)
	sql, _, err = cond.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "distance_sphere(`b`.`latitude`, `b`.`longitude`, `st`.`latitude`, `st`.`longitude`) <= ?", sql)

	_, err = Compile(pred, nil)
	assert.Error(t, err)
}

func TestCompileConditional(t *testing.T) {
	pred := Conditional{
		Discriminator: Col("t", "is_bulk"),
		Branches: []Branch{
			{When: 1, Then: Range{Column: Col("t", "apportioned_price"), Min: int64(500)}},
			{When: 0, Then: Range{Column: Col("t", "price"), Min: int64(500)}},
		},
	}
	sql, args := compileSQL(t, pred)
	assert.Equal(t, "((`t`.`is_bulk` = ? AND `t`.`apportioned_price` >= ?) OR (`t`.`is_bulk` = ? AND `t`.`price` >= ?))", sql)
	assert.Equal(t, []interface{}{1, int64(500), 0, int64(500)}, args)

	assert.Equal(t,
		[]ColumnRef{Col("t", "is_bulk"), Col("t", "apportioned_price"), Col("t", "price")},
		Columns(pred))
}

func TestCompileContainsEscapesWildcards(t *testing.T) {
	sql, args := compileSQL(t, Contains{Column: Col("buyer", "name"), Text: "100%_!"})
	assert.Equal(t, "`buyer`.`name` LIKE ? ESCAPE '!'", sql)
	assert.Equal(t, []interface{}{"%100!%!_!!%"}, args)
}

func TestCompileConstAndEmptyConnectives(t *testing.T) {
	sql, _ := compileSQL(t, Const(true))
	assert.Equal(t, "1 = 1", sql)
	sql, _ = compileSQL(t, Const(false))
	assert.Equal(t, "1 = 0", sql)
	sql, _ = compileSQL(t, And{})
	assert.Equal(t, "1 = 1", sql)
	sql, _ = compileSQL(t, Or{})
	assert.Equal(t, "1 = 0", sql)
}

func TestConjoin(t *testing.T) {
	assert.Nil(t, Conjoin())
	assert.Nil(t, Conjoin(nil, nil))

	single := Eq{Column: Col("t", "id"), Value: 1}
	assert.Equal(t, single, Conjoin(nil, single))

	both := Conjoin(single, Const(true))
	require.IsType(t, And{}, both)
	assert.Len(t, both, 2)
}
