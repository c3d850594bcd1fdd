package planner

import (
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"estate-graphql/internal/dialect"
)

// Predicate is a node of the predicate tree. The concrete node types below
// form a closed set; Compile and Columns switch over them.
type Predicate interface {
	predicateNode()
}

// Range restricts a column to [Min, Max]. Nil bounds are open; at least one
// bound must be set.
type Range struct {
	Column ColumnRef
	Min    interface{}
	Max    interface{}
}

// Membership restricts a column to a non-empty set of values.
type Membership struct {
	Column ColumnRef
	Values []interface{}
}

// Eq restricts a column to a single value.
type Eq struct {
	Column ColumnRef
	Value  interface{}
}

// Contains matches rows whose column contains Text as a substring.
type Contains struct {
	Column ColumnRef
	Text   string
}

// BBox restricts a point to a latitude/longitude box.
type BBox struct {
	Lat   ColumnRef
	Lon   ColumnRef
	North float64
	South float64
	East  float64
	West  float64
}

// Point is a pair of latitude/longitude columns.
type Point struct {
	Lat ColumnRef
	Lon ColumnRef
}

// Distance restricts the great-circle distance in meters between two points.
type Distance struct {
	From      Point
	To        Point
	MinMeters *float64
	MaxMeters *float64
}

// Branch pairs a discriminator value with the predicate that applies to
// rows carrying it.
type Branch struct {
	When interface{}
	Then Predicate
}

// Conditional applies a different predicate depending on the value of a
// discriminator column: OR over branches of (discriminator = When AND Then).
// It is the shape used whenever the column a filter applies to depends on
// another field of the same row.
type Conditional struct {
	Discriminator ColumnRef
	Branches      []Branch
}

// Const is a constant truth value.
type Const bool

// And is a conjunction. An empty And is true.
type And []Predicate

// Or is a disjunction. An empty Or is false.
type Or []Predicate

func (Range) predicateNode()       {}
func (Membership) predicateNode()  {}
func (Eq) predicateNode()          {}
func (Contains) predicateNode()    {}
func (BBox) predicateNode()        {}
func (Distance) predicateNode()    {}
func (Conditional) predicateNode() {}
func (Const) predicateNode()       {}
func (And) predicateNode()         {}
func (Or) predicateNode()          {}

// Conjoin ANDs the non-nil predicates. It returns nil when none remain and
// the single predicate when only one does.
func Conjoin(parts ...Predicate) Predicate {
	var kept And
	for _, p := range parts {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return kept
	}
}

// Columns lists the column references read by p, in tree order.
func Columns(p Predicate) []ColumnRef {
	var out []ColumnRef
	collectColumns(p, &out)
	return out
}

func collectColumns(p Predicate, out *[]ColumnRef) {
	switch n := p.(type) {
	case nil, Const:
	case Range:
		*out = append(*out, n.Column)
	case Membership:
		*out = append(*out, n.Column)
	case Eq:
		*out = append(*out, n.Column)
	case Contains:
		*out = append(*out, n.Column)
	case BBox:
		*out = append(*out, n.Lat, n.Lon)
	case Distance:
		*out = append(*out, n.From.Lat, n.From.Lon, n.To.Lat, n.To.Lon)
	case Conditional:
		*out = append(*out, n.Discriminator)
		for _, b := range n.Branches {
			collectColumns(b.Then, out)
		}
	case And:
		for _, child := range n {
			collectColumns(child, out)
		}
	case Or:
		for _, child := range n {
			collectColumns(child, out)
		}
	}
}

// Compile converts the predicate tree into a squirrel condition.
func Compile(p Predicate, d dialect.Dialect) (sq.Sqlizer, error) {
	switch n := p.(type) {
	case nil:
		return nil, fmt.Errorf("cannot compile nil predicate")
	case Const:
		if n {
			return sq.Expr("1 = 1"), nil
		}
		return sq.Expr("1 = 0"), nil
	case Range:
		return compileRange(n.Column.SQL(), n.Min, n.Max)
	case Membership:
		if len(n.Values) == 0 {
			return nil, fmt.Errorf("membership on %s has no values", n.Column)
		}
		return sq.Eq{n.Column.SQL(): bindValues(n.Values)}, nil
	case Eq:
		return sq.Eq{n.Column.SQL(): bindValue(n.Value)}, nil
	case Contains:
		return sq.Expr(n.Column.SQL()+" LIKE ? ESCAPE '!'", "%"+escapeLike(n.Text)+"%"), nil
	case BBox:
		return sq.And{
			sq.Expr(n.Lat.SQL()+" BETWEEN ? AND ?", n.South, n.North),
			sq.Expr(n.Lon.SQL()+" BETWEEN ? AND ?", n.West, n.East),
		}, nil
	case Distance:
		if d == nil {
			return nil, fmt.Errorf("distance predicate requires a dialect")
		}
		expr := d.DistanceMeters(n.From.Lat.SQL(), n.From.Lon.SQL(), n.To.Lat.SQL(), n.To.Lon.SQL())
		var minArg, maxArg interface{}
		if n.MinMeters != nil {
			minArg = *n.MinMeters
		}
		if n.MaxMeters != nil {
			maxArg = *n.MaxMeters
		}
		return compileRange(expr, minArg, maxArg)
	case Conditional:
		branches := make(Or, 0, len(n.Branches))
		for _, b := range n.Branches {
			branches = append(branches, And{Eq{Column: n.Discriminator, Value: b.When}, b.Then})
		}
		return Compile(branches, d)
	case And:
		if len(n) == 0 {
			return Compile(Const(true), d)
		}
		parts := make(sq.And, 0, len(n))
		for _, child := range n {
			c, err := Compile(child, d)
			if err != nil {
				return nil, err
			}
			parts = append(parts, c)
		}
		return parts, nil
	case Or:
		if len(n) == 0 {
			return Compile(Const(false), d)
		}
		parts := make(sq.Or, 0, len(n))
		for _, child := range n {
			c, err := Compile(child, d)
			if err != nil {
				return nil, err
			}
			parts = append(parts, c)
		}
		return parts, nil
	default:
		return nil, fmt.Errorf("unsupported predicate %T", p)
	}
}

func compileRange(expr string, min, max interface{}) (sq.Sqlizer, error) {
	switch {
	case min != nil && max != nil:
		return sq.Expr(expr+" BETWEEN ? AND ?", bindValue(min), bindValue(max)), nil
	case min != nil:
		return sq.Expr(expr+" >= ?", bindValue(min)), nil
	case max != nil:
		return sq.Expr(expr+" <= ?", bindValue(max)), nil
	default:
		return nil, fmt.Errorf("range on %s has no bounds", expr)
	}
}

// bindValue renders dates as YYYY-MM-DD so DATE columns compare the same way
// on every dialect.
func bindValue(v interface{}) interface{} {
	switch t := v.(type) {
	case time.Time:
		return t.Format(time.DateOnly)
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.Format(time.DateOnly)
	case bool:
		if t {
			return 1
		}
		return 0
	default:
		return v
	}
}

func bindValues(values []interface{}) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = bindValue(v)
	}
	return out
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
