package dialect

import (
	"database/sql/driver"
	"fmt"
	"sync"

	"modernc.org/sqlite"
)

const sqliteDistanceFunc = "distance_sphere"

var (
	sqliteRegisterOnce sync.Once
	sqliteRegisterErr  error
)

// SQLite targets the pure-Go modernc.org/sqlite driver. Distances use a
// registered distance_sphere(lat1, lon1, lat2, lon2) function.
type SQLite struct{}

func (SQLite) Name() string       { return "sqlite" }
func (SQLite) DriverName() string { return "sqlite" }

func (SQLite) Prepare() error {
	sqliteRegisterOnce.Do(func() {
		sqliteRegisterErr = sqlite.RegisterDeterministicScalarFunction(sqliteDistanceFunc, 4, distanceSphere)
	})
	return sqliteRegisterErr
}

func (SQLite) DistanceMeters(fromLat, fromLon, toLat, toLon string) string {
	return fmt.Sprintf("%s(%s, %s, %s, %s)", sqliteDistanceFunc, fromLat, fromLon, toLat, toLon)
}

func distanceSphere(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	coords := make([]float64, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case nil:
			return nil, nil
		case float64:
			coords[i] = v
		case int64:
			coords[i] = float64(v)
		default:
			return nil, fmt.Errorf("%s: unsupported argument %T", sqliteDistanceFunc, arg)
		}
	}
	return Haversine(coords[0], coords[1], coords[2], coords[3]), nil
}
