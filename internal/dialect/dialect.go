// Package dialect isolates the SQL differences between the supported
// storage engines.
package dialect

import (
	"fmt"
	"math"
	"strings"
)

// EarthRadiusMeters matches the default sphere radius used by MySQL's
// ST_Distance_Sphere.
const EarthRadiusMeters = 6370986.0

// Dialect renders engine-specific SQL fragments.
type Dialect interface {
	// Name is the configuration name of the dialect.
	Name() string
	// DriverName is the database/sql driver the dialect expects.
	DriverName() string
	// Prepare performs one-time driver setup such as registering functions.
	Prepare() error
	// DistanceMeters renders the great-circle distance between two points
	// given as pre-rendered latitude/longitude expressions.
	DistanceMeters(fromLat, fromLon, toLat, toLon string) string
}

// ForName returns the dialect registered under name.
func ForName(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "mysql", "tidb":
		return MySQL{}, nil
	case "sqlite":
		return SQLite{}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", name)
	}
}

// MySQL covers MySQL and TiDB.
type MySQL struct{}

func (MySQL) Name() string       { return "mysql" }
func (MySQL) DriverName() string { return "mysql" }
func (MySQL) Prepare() error     { return nil }

func (MySQL) DistanceMeters(fromLat, fromLon, toLat, toLon string) string {
	return fmt.Sprintf("ST_Distance_Sphere(POINT(%s, %s), POINT(%s, %s))", fromLon, fromLat, toLon, toLat)
}

// Haversine returns the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := math.Pi / 180
	phi1 := lat1 * toRad
	phi2 := lat2 * toRad
	dPhi := (lat2 - lat1) * toRad
	dLambda := (lon2 - lon1) * toRad

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * EarthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(a)))
}
