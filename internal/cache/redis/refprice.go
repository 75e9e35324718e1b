package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Adam-leaf/arbitrage-bot/internal/domain"
)

// RefPriceCache is a read-through TTL cache in front of a ReferencePricer.
// SOL/USD moves slowly relative to the monitor cadence, so a short TTL cuts
// most of the price-endpoint traffic without staleness risk. Cache failures
// degrade to direct fetches.
type RefPriceCache struct {
	rdb   *redis.Client
	inner domain.ReferencePricer
	ttl   time.Duration
	log   *slog.Logger
}

// NewRefPriceCache creates a RefPriceCache backed by the given Client.
func NewRefPriceCache(c *Client, inner domain.ReferencePricer, ttl time.Duration, logger *slog.Logger) *RefPriceCache {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RefPriceCache{
		rdb:   c.Underlying(),
		inner: inner,
		ttl:   ttl,
		log:   logger.With(slog.String("component", "refprice_cache")),
	}
}

func refPriceKey(asset string) string {
	return "refprice:" + asset
}

// USDPrice returns the cached price for the asset, fetching and caching on a
// miss.
func (rc *RefPriceCache) USDPrice(ctx context.Context, asset string) (float64, error) {
	key := refPriceKey(asset)

	val, err := rc.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		price, parseErr := strconv.ParseFloat(val, 64)
		if parseErr == nil && price > 0 {
			return price, nil
		}
		rc.log.Warn("dropping unparseable cached price",
			slog.String("asset", asset),
			slog.String("value", val))
	case !errors.Is(err, redis.Nil):
		rc.log.Warn("cache read failed, fetching directly",
			slog.String("asset", asset),
			slog.String("error", err.Error()))
	}

	price, err := rc.inner.USDPrice(ctx, asset)
	if err != nil {
		return 0, fmt.Errorf("redis: refresh price %s: %w", asset, err)
	}

	set := rc.rdb.Set(ctx, key, strconv.FormatFloat(price, 'f', -1, 64), rc.ttl)
	if setErr := set.Err(); setErr != nil {
		rc.log.Warn("cache write failed",
			slog.String("asset", asset),
			slog.String("error", setErr.Error()))
	}

	return price, nil
}

var _ domain.ReferencePricer = (*RefPriceCache)(nil)
