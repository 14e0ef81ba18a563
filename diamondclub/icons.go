package diamondclub

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"resenje.org/singleflight"
)

const (
	DefaultIconTTL = 30 * time.Minute
	iconCacheLimit = 256
)

type IconFetcher interface {
	Icon(ctx context.Context, number int) ([]byte, error)
}

// IconCache keeps channel icons in memory. Concurrent lookups of the same
// channel share a single download.
type IconCache struct {
	fetcher IconFetcher
	cache   *ttlcache.Cache[int, []byte]
	single  *singleflight.Group[int, []byte]
}

func NewIconCache(fetcher IconFetcher, ttl time.Duration) *IconCache {
	if ttl <= 0 {
		ttl = DefaultIconTTL
	}

	cache := ttlcache.New[int, []byte](
		ttlcache.WithTTL[int, []byte](ttl),
		ttlcache.WithCapacity[int, []byte](iconCacheLimit),
		ttlcache.WithDisableTouchOnHit[int, []byte](),
	)

	go cache.Start()

	return &IconCache{
		fetcher: fetcher,
		cache:   cache,
		single:  &singleflight.Group[int, []byte]{},
	}
}

// Icon returns the icon of the channel, downloading it on a miss.
// The 24/7 channel has no remote icon and returns ErrNoIcon.
func (c *IconCache) Icon(ctx context.Context, number int) ([]byte, error) {
	if number <= 0 {
		return nil, ErrNoIcon
	}

	if item := c.cache.Get(number); item != nil {
		return item.Value(), nil
	}

	data, _, err := c.single.Do(ctx, number, func(ctx context.Context) ([]byte, error) {
		if item := c.cache.Get(number); item != nil {
			return item.Value(), nil
		}

		data, err := c.fetcher.Icon(ctx, number)
		if err != nil {
			return nil, err
		}

		c.cache.Set(number, data, ttlcache.DefaultTTL)
		return data, nil
	})

	return data, err
}

func (c *IconCache) Len() int {
	return c.cache.Len()
}

func (c *IconCache) Close() {
	c.cache.Stop()
}
