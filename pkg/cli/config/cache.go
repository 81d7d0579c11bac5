package config

import (
	"github.com/secmon-lab/esr/pkg/service/cache"
	"github.com/urfave/cli/v3"
)

// Cache holds CLI flags for the promotion cache
type Cache struct {
	maxEntries         int
	promotionThreshold int
}

// Flags returns CLI flags for cache configuration
func (c *Cache) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "cache-size",
			Usage:       "Maximum number of promotion cache entries",
			Value:       cache.DefaultMaxEntries,
			Sources:     cli.EnvVars("ESR_CACHE_SIZE"),
			Destination: &c.maxEntries,
		},
		&cli.IntFlag{
			Name:        "promotion-threshold",
			Usage:       "Access count at which a cached memory becomes a promotion candidate",
			Value:       cache.DefaultPromotionThreshold,
			Sources:     cli.EnvVars("ESR_PROMOTION_THRESHOLD"),
			Destination: &c.promotionThreshold,
		},
	}
}

// Configure builds the promotion cache from the flags
func (c *Cache) Configure() *cache.Cache {
	return cache.New(
		cache.WithMaxEntries(c.maxEntries),
		cache.WithPromotionThreshold(uint64(c.promotionThreshold)),
	)
}
