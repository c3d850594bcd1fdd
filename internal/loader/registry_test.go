package loader

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryReturnsSameLoaderByName(t *testing.T) {
	r := NewRegistry(0)
	fetch := func(context.Context, []int) (map[int]string, error) { return nil, nil }

	a := Get(r, "corporations", fetch)
	b := Get(r, "corporations", fetch)
	assert.Same(t, a, b)
	assert.Equal(t, DefaultDispatchConcurrency, r.concurrency)
}

func TestRegistryPanicsOnTypeMismatch(t *testing.T) {
	r := NewRegistry(1)
	Get(r, "buildings", func(context.Context, []int) (map[int]string, error) { return nil, nil })
	assert.Panics(t, func() {
		Get(r, "buildings", func(context.Context, []string) (map[string]string, error) { return nil, nil })
	})
}

func TestForcingOneThunkDispatchesEveryLoader(t *testing.T) {
	r := NewRegistry(2)
	ctx := WithRegistry(context.Background(), r)
	var buildingCalls, corporationCalls atomic.Int32

	buildings := Get(r, "buildings", func(_ context.Context, keys []int) (map[int]string, error) {
		buildingCalls.Add(1)
		return map[int]string{1: "Alpha", 2: "Beta"}, nil
	})
	corporations := Get(r, "corporations", func(_ context.Context, keys []int) (map[int]string, error) {
		corporationCalls.Add(1)
		return map[int]string{10: "Acme"}, nil
	})

	b := buildings.Load(ctx, 1)
	c := corporations.Load(ctx, 10)
	b2 := buildings.Load(ctx, 2)

	v, err := b()
	require.NoError(t, err)
	assert.Equal(t, "Alpha", v)
	assert.Zero(t, corporations.Pending(), "sibling loader dispatched with the first thunk")

	v, err = c()
	require.NoError(t, err)
	assert.Equal(t, "Acme", v)
	v, err = b2()
	require.NoError(t, err)
	assert.Equal(t, "Beta", v)

	assert.Equal(t, int32(1), buildingCalls.Load())
	assert.Equal(t, int32(1), corporationCalls.Load())
}

func TestLoaderFailureDoesNotFailSiblings(t *testing.T) {
	r := NewRegistry(2)
	ctx := context.Background()
	boom := errors.New("appraisals unavailable")

	appraisals := Get(r, "appraisals", func(context.Context, []int) (map[int]int, error) {
		return nil, boom
	})
	prefectures := Get(r, "prefectures", func(_ context.Context, keys []int) (map[int]string, error) {
		return map[int]string{13: "Tokyo"}, nil
	})

	a := appraisals.Load(ctx, 1)
	p := prefectures.Load(ctx, 13)

	err := r.DispatchAll(ctx)
	assert.ErrorIs(t, err, boom)

	_, err = a()
	assert.ErrorIs(t, err, boom)
	name, err := p()
	require.NoError(t, err)
	assert.Equal(t, "Tokyo", name)
}

func TestDerivedKeysReuseUnderlyingLoader(t *testing.T) {
	r := NewRegistry(2)
	ctx := context.Background()
	var buildingCalls, mappingCalls atomic.Int32

	buildings := Get(r, "buildings", func(_ context.Context, keys []int64) (map[int64]string, error) {
		buildingCalls.Add(1)
		out := make(map[int64]string, len(keys))
		for _, k := range keys {
			out[k] = map[int64]string{1: "Alpha", 2: "Beta"}[k]
		}
		return out, nil
	})
	mapping := map[string]int64{"ext-a": 1, "ext-b": 2, "ext-c": 1}
	external := Get(r, "external", func(ctx context.Context, keys []string) (map[string]string, error) {
		mappingCalls.Add(1)
		var ids []int64
		for _, k := range keys {
			if id, ok := mapping[k]; ok {
				ids = append(ids, id)
			}
		}
		names, err := buildings.LoadMany(ctx, ids)()
		if err != nil {
			return nil, err
		}
		byID := make(map[int64]string, len(ids))
		for i, id := range ids {
			byID[id] = names[i]
		}
		out := make(map[string]string, len(keys))
		for _, k := range keys {
			if id, ok := mapping[k]; ok {
				out[k] = byID[id]
			}
		}
		return out, nil
	})

	values, err := external.LoadMany(ctx, []string{"ext-a", "ext-b", "ext-c", "missing"})()
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "Beta", "Alpha", ""}, values)
	assert.Equal(t, int32(1), mappingCalls.Load())
	assert.Equal(t, int32(1), buildingCalls.Load())
}

func TestRegistryContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	r := NewRegistry(1)
	got, ok := FromContext(WithRegistry(context.Background(), r))
	require.True(t, ok)
	assert.Same(t, r, got)
}
