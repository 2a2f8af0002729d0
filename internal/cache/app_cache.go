package cache

import (
	"context"
	"time"

	"github.com/eko/gocache/lib/v4/codec"
	"github.com/nashr-app/nashr/internal/config"
	"github.com/nashr-app/nashr/internal/database"
	"golang.org/x/sync/errgroup"
)

// Cache key prefixes.
const (
	UserStatsCachePrefix = "user-stats-"
	BankCardsCachePrefix = "bank-cards-"
)

// bankCardsKey is the single key of the public bank card list.
const bankCardsKey = "active"

// defaultBankCardsTTL bounds how long a server keeps serving a card list
// changed by another process, e.g. the CLI.
const defaultBankCardsTTL = time.Minute

// AppCache holds the caches used by the engine.
type AppCache struct {
	UserStats *PrefixedCache[database.UserStats]
	BankCards *PrefixedCache[[]database.BankCard]

	statsTTL     time.Duration
	bankCardsTTL time.Duration
}

// New creates the application caches for the configured store.
func New(cfg *config.CacheConfig) *AppCache {
	if cfg == nil {
		cfg = &config.CacheConfig{Type: config.CacheTypeMemory}
	}
	bankCardsTTL := cfg.BankCardsTTL
	if bankCardsTTL <= 0 {
		bankCardsTTL = defaultBankCardsTTL
	}
	return &AppCache{
		UserStats:    NewPrefixedCache[database.UserStats](newCacheInstanceByType(cfg), cfg.Type, UserStatsCachePrefix),
		BankCards:    NewPrefixedCache[[]database.BankCard](newCacheInstanceByType(cfg), cfg.Type, BankCardsCachePrefix),
		statsTTL:     cfg.StatsTTL,
		bankCardsTTL: bankCardsTTL,
	}
}

// GetUserStats returns the cached stats of a user or loads them.
func (a *AppCache) GetUserStats(ctx context.Context, userID uint, load func(context.Context) (database.UserStats, error)) (database.UserStats, error) {
	return a.UserStats.GetOrLoad(ctx, userID, a.statsTTL, load)
}

// InvalidateUserStats drops the cached stats of a user.
func (a *AppCache) InvalidateUserStats(ctx context.Context, userID uint) error {
	return a.UserStats.Delete(ctx, userID)
}

// GetBankCards returns the cached public bank cards or loads them.
func (a *AppCache) GetBankCards(ctx context.Context, load func(context.Context) ([]database.BankCard, error)) ([]database.BankCard, error) {
	return a.BankCards.GetOrLoad(ctx, bankCardsKey, a.bankCardsTTL, load)
}

// InvalidateBankCards drops the cached bank card list.
func (a *AppCache) InvalidateBankCards(ctx context.Context) error {
	return a.BankCards.Delete(ctx, bankCardsKey)
}

// ClearAll clears every cache concurrently. Only keys written by these caches are removed.
func (a *AppCache) ClearAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.UserStats.Clear(ctx) })
	g.Go(func() error { return a.BankCards.Clear(ctx) })
	return g.Wait()
}

// Stats holds the statistics of a named cache.
type Stats struct {
	*codec.Stats
	CacheName string           `json:"cacheName"`
	CacheType config.CacheType `json:"cacheType"`
}

// GetStats returns the statistics of every cache.
func (a *AppCache) GetStats() []*Stats {
	return []*Stats{
		{Stats: a.UserStats.GetStats(), CacheName: "user-stats", CacheType: a.UserStats.GetType()},
		{Stats: a.BankCards.GetStats(), CacheName: "bank-cards", CacheType: a.BankCards.GetType()},
	}
}
