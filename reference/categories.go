package reference

import (
	"context"
	"strconv"

	"github.com/leeforge/moneykeeper/redis_client"
)

// Unknown is reported for codes missing from the cached table.
const Unknown = "Unknown"

// Lookup is the read side of the shared cache.
type Lookup interface {
	Get(ctx context.Context, key, field string) (string, bool, error)
}

var _ Lookup = (*redis_client.Pool)(nil)

// Categories resolves merchant category codes through the primed cache entry.
type Categories struct {
	cache Lookup
}

func NewCategories(cache Lookup) *Categories {
	return &Categories{cache: cache}
}

// Category returns the category for code, or Unknown when the code is absent.
func (c *Categories) Category(ctx context.Context, code int) (string, error) {
	category, ok, err := c.cache.Get(ctx, CacheKey, strconv.Itoa(code))
	if err != nil {
		return "", err
	}
	if !ok {
		return Unknown, nil
	}
	return category, nil
}
