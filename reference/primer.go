package reference

import (
	"context"
	"fmt"

	apperrors "github.com/leeforge/moneykeeper/errors"
	"github.com/leeforge/moneykeeper/lifecycle"
	"github.com/leeforge/moneykeeper/postgres"
	"github.com/leeforge/moneykeeper/redis_client"
	"github.com/leeforge/moneykeeper/registry"
	"go.uber.org/zap"
)

const (
	// HookName identifies the primer in setup order and logs.
	HookName = "reference-data"
	// CacheKey is the cache entry holding merchant category codes.
	CacheKey = "mcc"

	mccQuery = `SELECT code, category FROM "MCC";`
)

// Entry is one row of the merchant category table.
type Entry struct {
	Code     string
	Category string
}

// Source reads the authoritative merchant category table.
type Source interface {
	FetchMCC(ctx context.Context) ([]Entry, error)
}

// Cache is the write side of the shared cache the primer needs.
type Cache interface {
	Dump(ctx context.Context, key string, mapping map[string]string) error
	Remove(ctx context.Context, key string) error
}

// Primer copies the merchant category table into the cache at startup and
// removes it again at shutdown.
type Primer struct {
	logger   *zap.Logger
	sourceOf func(reg *registry.Registry) (Source, error)
	cacheOf  func(reg *registry.Registry) (Cache, error)

	cache  Cache
	primed bool
}

var (
	_ lifecycle.Hook      = (*Primer)(nil)
	_ lifecycle.Dependent = (*Primer)(nil)
)

// NewPrimer returns a primer reading from the registered postgres pool and
// writing to the registered redis pool.
func NewPrimer(logger *zap.Logger) *Primer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Primer{
		logger: logger.Named(HookName),
		sourceOf: func(reg *registry.Registry) (Source, error) {
			pool, err := registry.Resolve(reg, postgres.Key)
			if err != nil {
				return nil, err
			}
			return NewPostgresSource(pool), nil
		},
		cacheOf: func(reg *registry.Registry) (Cache, error) {
			pool, err := registry.Resolve(reg, redis_client.Key)
			if err != nil {
				return nil, err
			}
			return pool, nil
		},
	}
}

func (p *Primer) Name() string { return HookName }

func (p *Primer) Requires() []string {
	return []string{postgres.Key.Name(), redis_client.Key.Name()}
}

func (p *Primer) Provides() []string { return nil }

// Setup fetches every row, folds them into one mapping and replaces the cache
// entry with it. A fetch failure leaves the cache untouched.
func (p *Primer) Setup(ctx context.Context, reg *registry.Registry) error {
	source, err := p.sourceOf(reg)
	if err != nil {
		return err
	}
	cache, err := p.cacheOf(reg)
	if err != nil {
		return err
	}

	entries, err := source.FetchMCC(ctx)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeQuery) {
			return err
		}
		return apperrors.NewQuery(mccQuery, err)
	}

	mapping := Fold(entries)
	if err := cache.Dump(ctx, CacheKey, mapping); err != nil {
		return err
	}

	p.cache = cache
	p.primed = true
	p.logger.Info("reference.primed", zap.Int("rows", len(entries)), zap.Int("codes", len(mapping)))
	return nil
}

// Teardown removes the cache entry written by Setup. Nothing is removed when
// Setup never primed.
func (p *Primer) Teardown(ctx context.Context, _ *registry.Registry) error {
	if !p.primed {
		return nil
	}
	if err := p.cache.Remove(ctx, CacheKey); err != nil {
		return fmt.Errorf("remove %s: %w", CacheKey, err)
	}
	p.primed = false
	p.logger.Info("reference.removed")
	return nil
}

// Fold maps code to category. A code seen twice keeps the later category.
func Fold(entries []Entry) map[string]string {
	mapping := make(map[string]string, len(entries))
	for _, e := range entries {
		mapping[e.Code] = e.Category
	}
	return mapping
}
