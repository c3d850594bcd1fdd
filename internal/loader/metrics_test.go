package loader

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"estate-graphql/internal/dbexec"
	"estate-graphql/internal/observability"
)

func TestQueriesSaved(t *testing.T) {
	tests := []struct {
		name       string
		keys       int
		statements int64
		want       int64
	}{
		{name: "single statement", keys: 5, statements: 1, want: 4},
		{name: "chunked round", keys: 5, statements: 2, want: 3},
		{name: "fetch outside dbexec", keys: 5, statements: 0, want: 4},
		{name: "one key", keys: 1, statements: 1, want: 0},
		{name: "more statements than keys", keys: 2, statements: 3, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, queriesSaved(tt.keys, tt.statements))
		})
	}
}

func TestDispatchRecordsStatementsIssued(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	previous := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() { otel.SetMeterProvider(previous) })

	metrics, err := observability.InitGraphQLMetrics()
	require.NoError(t, err)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	exec := dbexec.NewStandardExecutor(db)

	mock.ExpectQuery("SELECT id FROM buildings").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2).AddRow(3))
	mock.ExpectQuery("SELECT id FROM buildings").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4).AddRow(5))

	// Two IN chunks for one round of five keys.
	l := New("buildings", func(ctx context.Context, keys []int) (map[int]bool, error) {
		out := make(map[int]bool, len(keys))
		for _, chunk := range [][]int{keys[:3], keys[3:]} {
			rows, err := exec.QueryContext(ctx, "SELECT id FROM buildings", len(chunk))
			if err != nil {
				return nil, err
			}
			for rows.Next() {
				var id int
				if err := rows.Scan(&id); err != nil {
					return nil, err
				}
				out[id] = true
			}
			if err := rows.Close(); err != nil {
				return nil, err
			}
		}
		return out, nil
	})

	ctx := observability.ContextWithGraphQLMetrics(context.Background(), metrics)
	thunk := l.LoadMany(ctx, []int{1, 2, 3, 4, 5})
	values, err := thunk()
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true, true, true, true}, values)
	require.NoError(t, mock.ExpectationsWereMet())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	var saved metricdata.Sum[int64]
	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == "graphql.batch.queries_saved" {
				saved, found = m.Data.(metricdata.Sum[int64])
			}
		}
	}
	require.True(t, found)
	require.Len(t, saved.DataPoints, 1)
	assert.Equal(t, int64(3), saved.DataPoints[0].Value)
}
