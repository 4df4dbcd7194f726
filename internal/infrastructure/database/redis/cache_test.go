package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	"github.com/signalweave/signalweave/pkg/errors"
)

type cachedTheme struct {
	ID        string  `json:"id"`
	Statement string  `json:"statement"`
	Score     float64 `json:"score"`
}

func TestCache_SetGet(t *testing.T) {
	client, _ := testClient(t)
	cache := NewCache(client, logging.NewNopLogger())
	ctx := context.Background()

	want := cachedTheme{ID: "t1", Statement: "pricing pressure", Score: 4.2}
	require.NoError(t, cache.Set(ctx, "theme:t1", want, time.Minute))

	var got cachedTheme
	require.NoError(t, cache.Get(ctx, "theme:t1", &got))
	assert.Equal(t, want, got)
}

func TestCache_GetMiss(t *testing.T) {
	client, _ := testClient(t)
	cache := NewCache(client, logging.NewNopLogger())

	var got cachedTheme
	err := cache.Get(context.Background(), "theme:absent", &got)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCache_Delete(t *testing.T) {
	client, mr := testClient(t)
	cache := NewCache(client, logging.NewNopLogger())
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "themes:batch:b1", []string{"t1"}, time.Minute))
	require.NoError(t, cache.Delete(ctx, "themes:batch:b1"))
	assert.False(t, mr.Exists("sweave:themes:batch:b1"))
}

func TestCache_GetOrLoad_SingleLoader(t *testing.T) {
	client, _ := testClient(t)
	cache := NewCache(client, logging.NewNopLogger())
	ctx := context.Background()

	var calls atomic.Int32
	loader := func(ctx context.Context) (any, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return cachedTheme{ID: "t1", Statement: "support latency"}, nil
	}

	var wg sync.WaitGroup
	results := make([]cachedTheme, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var got cachedTheme
			if err := cache.GetOrLoad(ctx, "theme:t1", &got, time.Minute, loader); err == nil {
				results[i] = got
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "concurrent callers must share one load")
	for _, got := range results {
		assert.Equal(t, "t1", got.ID)
	}

	// A later call hits the cache, not the loader.
	var got cachedTheme
	require.NoError(t, cache.GetOrLoad(ctx, "theme:t1", &got, time.Minute, loader))
	assert.Equal(t, int32(1), calls.Load())
}

func TestCache_GetOrLoad_LoaderError(t *testing.T) {
	client, _ := testClient(t)
	cache := NewCache(client, logging.NewNopLogger())

	var got cachedTheme
	err := cache.GetOrLoad(context.Background(), "theme:t9", &got, time.Minute,
		func(ctx context.Context) (any, error) {
			return nil, errors.NotFound("theme does not exist")
		})
	assert.True(t, errors.IsNotFound(err))
}
