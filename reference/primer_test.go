package reference

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	apperrors "github.com/leeforge/moneykeeper/errors"
	"github.com/leeforge/moneykeeper/lifecycle"
	"github.com/leeforge/moneykeeper/redis_client"
	"github.com/leeforge/moneykeeper/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	entries []Entry
	err     error
}

func (s staticSource) FetchMCC(context.Context) ([]Entry, error) {
	return s.entries, s.err
}

func newCache(t *testing.T) (*redis_client.Pool, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	pool, err := redis_client.NewRedis(context.Background(), redis_client.Config{Host: mr.Host(), Port: mr.Port()}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	return pool, mr
}

func newTestPrimer(source Source, cache Cache) *Primer {
	p := NewPrimer(nil)
	p.sourceOf = func(*registry.Registry) (Source, error) { return source, nil }
	p.cacheOf = func(*registry.Registry) (Cache, error) { return cache, nil }
	return p
}

func TestPrimer_PrimesAndRemoves(t *testing.T) {
	cache, mr := newCache(t)
	p := newTestPrimer(staticSource{entries: []Entry{
		{Code: "5411", Category: "Grocery"},
		{Code: "5812", Category: "Restaurant"},
	}}, cache)

	ctx := context.Background()
	require.NoError(t, p.Setup(ctx, registry.New()))

	got, err := cache.Load(ctx, CacheKey)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"5411": "Grocery", "5812": "Restaurant"}, got)

	require.NoError(t, p.Teardown(ctx, registry.New()))
	assert.False(t, mr.Exists(CacheKey))
}

func TestPrimer_LaterDuplicateWins(t *testing.T) {
	cache, _ := newCache(t)
	p := newTestPrimer(staticSource{entries: []Entry{
		{Code: "5411", Category: "Grocery"},
		{Code: "5411", Category: "Supermarket"},
	}}, cache)

	ctx := context.Background()
	require.NoError(t, p.Setup(ctx, registry.New()))

	got, err := cache.Load(ctx, CacheKey)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"5411": "Supermarket"}, got)
}

func TestPrimer_EmptyTable(t *testing.T) {
	cache, mr := newCache(t)
	mr.HSet(CacheKey, "0000", "stale")

	p := newTestPrimer(staticSource{}, cache)
	require.NoError(t, p.Setup(context.Background(), registry.New()))

	got, err := cache.Load(context.Background(), CacheKey)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPrimer_FetchFailureIsQueryError(t *testing.T) {
	cache, mr := newCache(t)
	mr.HSet(CacheKey, "5411", "Grocery")

	p := newTestPrimer(staticSource{err: errors.New("relation \"MCC\" does not exist")}, cache)
	err := p.Setup(context.Background(), registry.New())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeQuery))

	// Cache left as it was, and teardown has nothing to undo.
	assert.Equal(t, "Grocery", mr.HGet(CacheKey, "5411"))
	require.NoError(t, p.Teardown(context.Background(), registry.New()))
	assert.True(t, mr.Exists(CacheKey))
}

func TestPrimer_TeardownWithoutPrimeIsNoop(t *testing.T) {
	p := NewPrimer(nil)
	assert.NoError(t, p.Teardown(context.Background(), registry.New()))
}

func TestPrimer_MissingPoolsFailResolution(t *testing.T) {
	exec := lifecycle.NewExecutor(registry.New(), lifecycle.Options{})
	require.NoError(t, exec.Register(NewPrimer(nil)))

	err := exec.Run(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfiguration))
}

func TestPrimer_RunsAfterPools(t *testing.T) {
	cache, _ := newCache(t)
	reg := registry.New()
	exec := lifecycle.NewExecutor(reg, lifecycle.Options{})

	p := NewPrimer(nil)
	p.sourceOf = func(*registry.Registry) (Source, error) {
		return staticSource{entries: []Entry{{Code: "4111", Category: "Transport"}}}, nil
	}
	require.NoError(t, exec.Register(p))
	require.NoError(t, exec.Register(&lifecycle.HookFunc{
		HookName: "clients",
		Gives:    []string{"postgres", "redis"},
		SetupFn: func(_ context.Context, reg *registry.Registry) error {
			if err := registry.Provide(reg, redis_client.Key, cache); err != nil {
				return err
			}
			return registry.Provide(reg, registry.NewKey[string]("postgres"), "stub")
		},
	}))

	require.NoError(t, exec.Run(context.Background()))
	assert.Equal(t, []string{"clients", HookName}, exec.SetupOrder())

	category, err := NewCategories(cache).Category(context.Background(), 4111)
	require.NoError(t, err)
	assert.Equal(t, "Transport", category)

	category, err = NewCategories(cache).Category(context.Background(), 9999)
	require.NoError(t, err)
	assert.Equal(t, Unknown, category)

	require.NoError(t, exec.Dispose(context.Background()))
}

func TestFold(t *testing.T) {
	assert.Equal(t, map[string]string{}, Fold(nil))
}
