package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestGraphQLMetrics_RecordsSearchAndBatch(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	previous := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() { otel.SetMeterProvider(previous) })

	metrics, err := InitGraphQLMetrics()
	require.NoError(t, err)

	ctx := ContextWithGraphQLMetrics(context.Background(), metrics)
	require.Same(t, metrics, GraphQLMetricsFromContext(ctx))

	metrics.RecordSearchMatches(ctx, 42, "transactions")
	metrics.RecordResultsCount(ctx, 10, "transactions")
	metrics.RecordBatchParentCount(ctx, 5, "buildings")
	metrics.RecordBatchQueriesSaved(ctx, 4, "buildings")
	metrics.RecordBatchQueriesSaved(ctx, 0, "buildings")
	metrics.RecordBatchCacheHit(ctx, "buildings")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	names := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		assert.Equal(t, "estate-graphql", sm.Scope.Name)
		for _, m := range sm.Metrics {
			names[m.Name] = m.Data
		}
	}

	matches, ok := names["estate.search.matches"].(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, matches.DataPoints, 1)
	assert.Equal(t, int64(42), matches.DataPoints[0].Sum)
	target, _ := matches.DataPoints[0].Attributes.Value("target")
	assert.Equal(t, "transactions", target.AsString())

	saved, ok := names["graphql.batch.queries_saved"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, saved.DataPoints, 1)
	assert.Equal(t, int64(4), saved.DataPoints[0].Value)

	assert.Contains(t, names, "graphql.batch.cache_hits")
	assert.NotContains(t, names, "graphql.batch.cache_misses")
}

func TestGraphQLMetricsFromContext_Missing(t *testing.T) {
	assert.Nil(t, GraphQLMetricsFromContext(context.Background()))
	//nolint:staticcheck // nil context is tolerated
	assert.Nil(t, GraphQLMetricsFromContext(nil))
}
