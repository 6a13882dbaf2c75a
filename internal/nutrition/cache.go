package nutrition

import (
	"fmt"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/fdg312/meal-recommender/internal/foods"
)

// CachedFilter memoizes filtered sets per profile key. The wrapped item
// slice must not change after construction.
type CachedFilter struct {
	next  Filterer
	cache *lru.Cache[string, []foods.FoodItem]
	group singleflight.Group
}

// NewCachedFilter wraps next with an LRU of the given size.
// A size <= 0 returns next unchanged.
func NewCachedFilter(next Filterer, size int) (Filterer, error) {
	if size <= 0 {
		return next, nil
	}
	cache, err := lru.New[string, []foods.FoodItem](size)
	if err != nil {
		return nil, fmt.Errorf("create filter cache: %w", err)
	}
	return &CachedFilter{next: next, cache: cache}, nil
}

// Filter returns a fresh copy of the cached set so callers may reorder it.
func (c *CachedFilter) Filter(p Profile) ([]foods.FoodItem, error) {
	key := cacheKey(p)
	if items, ok := c.cache.Get(key); ok {
		return append([]foods.FoodItem{}, items...), nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		items, err := c.next.Filter(p)
		if err != nil {
			return nil, err
		}
		c.cache.Add(key, items)
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]foods.FoodItem{}, v.([]foods.FoodItem)...), nil
}

// Len reports the number of cached profile keys.
func (c *CachedFilter) Len() int {
	return c.cache.Len()
}

func cacheKey(p Profile) string {
	return string(p.Goal) + "|" + string(p.Gender) + "|" +
		strconv.FormatFloat(p.Weight, 'g', -1, 64) + "|" +
		strconv.FormatFloat(p.BMR, 'g', -1, 64)
}
