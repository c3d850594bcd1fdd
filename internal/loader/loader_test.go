package loader

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fetchRecorder struct {
	mu    sync.Mutex
	calls [][]int
}

func (r *fetchRecorder) record(keys []int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := append([]int(nil), keys...)
	sort.Ints(cp)
	r.calls = append(r.calls, cp)
}

func (r *fetchRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func squareLoader(rec *fetchRecorder) *Loader[int, int] {
	return New("squares", func(_ context.Context, keys []int) (map[int]int, error) {
		rec.record(keys)
		out := make(map[int]int, len(keys))
		for _, k := range keys {
			if k >= 0 {
				out[k] = k * k
			}
		}
		return out, nil
	})
}

func TestDuplicateKeysAreFetchedOnce(t *testing.T) {
	rec := &fetchRecorder{}
	l := squareLoader(rec)
	ctx := context.Background()

	first := l.Load(ctx, 3)
	second := l.Load(ctx, 3)
	other := l.Load(ctx, 4)

	v, err := first()
	require.NoError(t, err)
	assert.Equal(t, 9, v)

	v, err = second()
	require.NoError(t, err)
	assert.Equal(t, 9, v)

	v, err = other()
	require.NoError(t, err)
	assert.Equal(t, 16, v)

	require.Equal(t, 1, rec.count())
	assert.Equal(t, []int{3, 4}, rec.calls[0])
}

func TestCompletedKeysAreMemoized(t *testing.T) {
	rec := &fetchRecorder{}
	l := squareLoader(rec)
	ctx := context.Background()

	_, err := l.Load(ctx, 2)()
	require.NoError(t, err)
	v, err := l.Load(ctx, 2)()
	require.NoError(t, err)

	assert.Equal(t, 4, v)
	assert.Equal(t, 1, rec.count())
	assert.Zero(t, l.Pending())
}

func TestMissingKeysResolveToExplicitEmptyValue(t *testing.T) {
	l := New("lists", func(_ context.Context, keys []int) (map[int][]string, error) {
		return map[int][]string{1: {"a", "b"}}, nil
	}, WithMissing(func(int) []string { return []string{} }))

	values, err := l.LoadMany(context.Background(), []int{1, 2})()
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, []string{"a", "b"}, values[0])
	assert.NotNil(t, values[1])
	assert.Empty(t, values[1])
}

func TestMissingKeysDefaultToZeroValue(t *testing.T) {
	l := New("pointers", func(_ context.Context, keys []int) (map[int]*string, error) {
		return map[int]*string{}, nil
	})
	v, err := l.Load(context.Background(), 7)()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestKeysAfterDispatchWaitForNextRound(t *testing.T) {
	var (
		rec  fetchRecorder
		late Thunk[int]
		l    *Loader[int, int]
	)
	ctx := context.Background()
	l = New("rounds", func(ctx context.Context, keys []int) (map[int]int, error) {
		rec.record(keys)
		if late == nil {
			// A key discovered while this round is in flight.
			late = l.Load(ctx, 99)
		}
		out := make(map[int]int, len(keys))
		for _, k := range keys {
			out[k] = k
		}
		return out, nil
	})

	_, err := l.LoadMany(ctx, []int{1, 2})()
	require.NoError(t, err)
	require.Equal(t, 1, rec.count())
	assert.Equal(t, []int{1, 2}, rec.calls[0])
	assert.Equal(t, 1, l.Pending())

	v, err := late()
	require.NoError(t, err)
	assert.Equal(t, 99, v)
	require.Equal(t, 2, rec.count())
	assert.Equal(t, []int{99}, rec.calls[1])
}

func TestFailedRoundFailsEveryKeyAndIsNotCached(t *testing.T) {
	calls := 0
	boom := errors.New("storage down")
	l := New("flaky", func(_ context.Context, keys []int) (map[int]int, error) {
		calls++
		if calls == 1 {
			return nil, boom
		}
		return map[int]int{1: 10, 2: 20}, nil
	})
	ctx := context.Background()

	a := l.Load(ctx, 1)
	b := l.Load(ctx, 2)
	_, errA := a()
	_, errB := b()
	assert.ErrorIs(t, errA, boom)
	assert.ErrorIs(t, errB, boom)

	v, err := l.Load(ctx, 1)()
	require.NoError(t, err)
	assert.Equal(t, 10, v)
	assert.Equal(t, 2, calls)
}

func TestCancelledRoundIsNotCached(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	l := New("cancelled", func(_ context.Context, keys []int) (map[int]int, error) {
		calls++
		if calls == 1 {
			cancel()
		}
		return map[int]int{5: 50}, nil
	})

	_, err := l.Load(ctx, 5)()
	assert.ErrorIs(t, err, context.Canceled)

	v, err := l.Load(context.Background(), 5)()
	require.NoError(t, err)
	assert.Equal(t, 50, v)
	assert.Equal(t, 2, calls)
}

func TestLoadManyKeepsKeyOrder(t *testing.T) {
	rec := &fetchRecorder{}
	l := squareLoader(rec)
	values, err := l.LoadMany(context.Background(), []int{5, 1, 5, 3})()
	require.NoError(t, err)
	assert.Equal(t, []int{25, 1, 25, 9}, values)
	assert.Equal(t, 1, rec.count())
}

type historyRow struct {
	ID   int
	Date string
}

func TestOneToManyResultsKeepFetchOrder(t *testing.T) {
	// Storage returns rows already sorted by date; grouping must not reorder.
	stored := []struct {
		key int
		row historyRow
	}{
		{1, historyRow{ID: 2, Date: "2020-01-01"}},
		{2, historyRow{ID: 3, Date: "2021-06-01"}},
		{1, historyRow{ID: 1, Date: "2023-01-01"}},
	}
	l := New("histories", func(_ context.Context, keys []int) (map[int][]historyRow, error) {
		out := make(map[int][]historyRow)
		for _, s := range stored {
			out[s.key] = append(out[s.key], s.row)
		}
		return out, nil
	}, WithMissing(func(int) []historyRow { return []historyRow{} }))

	rows, err := l.Load(context.Background(), 1)()
	require.NoError(t, err)
	assert.Equal(t, []historyRow{{ID: 2, Date: "2020-01-01"}, {ID: 1, Date: "2023-01-01"}}, rows)
}
