package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nashr-app/nashr/internal/config"
	"github.com/nashr-app/nashr/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAppCaches(t *testing.T) map[string]*AppCache {
	t.Helper()
	mr := miniredis.RunT(t)
	return map[string]*AppCache{
		"memory": New(&config.CacheConfig{Type: config.CacheTypeMemory, StatsTTL: time.Minute}),
		"redis":  New(&config.CacheConfig{Type: config.CacheTypeRedis, RedisURL: mr.Addr(), StatsTTL: time.Minute}),
	}
}

func TestAppCache_UserStats(t *testing.T) {
	for name, c := range testAppCaches(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			calls := 0
			load := func(context.Context) (database.UserStats, error) {
				calls++
				return database.UserStats{PurchasedFiles: 2, TotalSpent: 150_000}, nil
			}

			stats, err := c.GetUserStats(ctx, 7, load)
			require.NoError(t, err)
			assert.Equal(t, int64(2), stats.PurchasedFiles)

			stats, err = c.GetUserStats(ctx, 7, load)
			require.NoError(t, err)
			assert.Equal(t, int64(150_000), stats.TotalSpent)
			assert.Equal(t, 1, calls)

			require.NoError(t, c.InvalidateUserStats(ctx, 7))
			_, err = c.GetUserStats(ctx, 7, load)
			require.NoError(t, err)
			assert.Equal(t, 2, calls)
		})
	}
}

func TestAppCache_LoadErrorNotCached(t *testing.T) {
	c := New(&config.CacheConfig{Type: config.CacheTypeMemory})
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := c.GetBankCards(ctx, func(context.Context) ([]database.BankCard, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	cards, err := c.GetBankCards(ctx, func(context.Context) ([]database.BankCard, error) {
		return []database.BankCard{{CardNumber: "6037990000000001", HolderName: "A"}}, nil
	})
	require.NoError(t, err)
	assert.Len(t, cards, 1)
}

func TestAppCache_BankCardsAndClear(t *testing.T) {
	for name, c := range testAppCaches(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			calls := 0
			load := func(context.Context) ([]database.BankCard, error) {
				calls++
				return []database.BankCard{{CardNumber: "6037990000000001", HolderName: "A", Active: true}}, nil
			}

			cards, err := c.GetBankCards(ctx, load)
			require.NoError(t, err)
			require.Len(t, cards, 1)
			assert.Equal(t, "6037990000000001", cards[0].CardNumber)

			_, err = c.GetBankCards(ctx, load)
			require.NoError(t, err)
			assert.Equal(t, 1, calls)

			require.NoError(t, c.ClearAll(ctx))
			_, err = c.GetBankCards(ctx, load)
			require.NoError(t, err)
			assert.Equal(t, 2, calls)
		})
	}
}

func TestAppCache_RedisTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(&config.CacheConfig{Type: config.CacheTypeRedis, RedisURL: "redis://" + mr.Addr(), StatsTTL: time.Minute})
	ctx := context.Background()

	calls := 0
	load := func(context.Context) (database.UserStats, error) {
		calls++
		return database.UserStats{}, nil
	}

	_, err := c.GetUserStats(ctx, 1, load)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = c.GetUserStats(ctx, 1, load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestAppCache_GetStats(t *testing.T) {
	c := New(nil)
	_, err := c.UserStats.Get(context.Background(), 1)
	assert.Error(t, err)

	stats := c.GetStats()
	require.Len(t, stats, 2)
	assert.Equal(t, "user-stats", stats[0].CacheName)
	assert.Equal(t, config.CacheTypeMemory, stats[0].CacheType)
	assert.EqualValues(t, 1, stats[0].Miss)
}

func TestAppCache_ClearKeepsForeignKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("other-app:session", "keep"))
	c := New(&config.CacheConfig{Type: config.CacheTypeRedis, RedisURL: mr.Addr(), StatsTTL: time.Minute})
	ctx := context.Background()

	_, err := c.GetUserStats(ctx, 1, func(context.Context) (database.UserStats, error) {
		return database.UserStats{PurchasedFiles: 1}, nil
	})
	require.NoError(t, err)
	_, err = c.GetBankCards(ctx, func(context.Context) ([]database.BankCard, error) {
		return []database.BankCard{{CardNumber: "6037990000000001"}}, nil
	})
	require.NoError(t, err)
	require.True(t, mr.Exists(UserStatsCachePrefix+"1"))

	require.NoError(t, c.ClearAll(ctx))

	assert.False(t, mr.Exists(UserStatsCachePrefix+"1"))
	assert.False(t, mr.Exists(BankCardsCachePrefix+bankCardsKey))
	got, err := mr.Get("other-app:session")
	require.NoError(t, err)
	assert.Equal(t, "keep", got)
}

func TestAppCache_BankCardsExpire(t *testing.T) {
	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		c := New(&config.CacheConfig{Type: config.CacheTypeRedis, RedisURL: mr.Addr(), BankCardsTTL: time.Minute})
		ctx := context.Background()
		calls := 0
		load := func(context.Context) ([]database.BankCard, error) {
			calls++
			return nil, nil
		}

		_, err := c.GetBankCards(ctx, load)
		require.NoError(t, err)
		mr.FastForward(2 * time.Minute)
		_, err = c.GetBankCards(ctx, load)
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("memory", func(t *testing.T) {
		c := New(&config.CacheConfig{Type: config.CacheTypeMemory, BankCardsTTL: 50 * time.Millisecond})
		ctx := context.Background()
		calls := 0
		load := func(context.Context) ([]database.BankCard, error) {
			calls++
			return nil, nil
		}

		_, err := c.GetBankCards(ctx, load)
		require.NoError(t, err)
		time.Sleep(100 * time.Millisecond)
		_, err = c.GetBankCards(ctx, load)
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("default", func(t *testing.T) {
		c := New(&config.CacheConfig{Type: config.CacheTypeMemory})
		assert.Equal(t, defaultBankCardsTTL, c.bankCardsTTL)
	})
}
