package rates

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const cacheKey = "rates:usd_jpy"

// cachedProvider decorates a Provider with a redis cache. Cache failures are
// logged and fall through to the origin; the rate lookup itself must keep
// working when redis is down.
type cachedProvider struct {
	origin Provider
	rdb    *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedProvider wraps origin with a redis cache holding the rate for ttl.
func NewCachedProvider(origin Provider, rdb *redis.Client, ttl time.Duration, logger zerolog.Logger) Provider {
	return &cachedProvider{
		origin: origin,
		rdb:    rdb,
		ttl:    ttl,
		logger: logger.With().Str("component", "rates-cache").Logger(),
	}
}

// USDJPY returns the cached rate when fresh, otherwise fetches from the
// origin and stores the result.
func (c *cachedProvider) USDJPY(ctx context.Context) (float64, error) {
	cached, err := c.rdb.Get(ctx, cacheKey).Result()
	if err == nil {
		if rate, parseErr := strconv.ParseFloat(cached, 64); parseErr == nil && rate > 0 {
			c.logger.Debug().Float64("usd_jpy", rate).Msg("exchange rate served from cache")
			return rate, nil
		}
	} else if err != redis.Nil {
		c.logger.Warn().Err(err).Msg("rate cache read failed, falling through to origin")
	}

	rate, err := c.origin.USDJPY(ctx)
	if err != nil {
		return 0, err
	}

	if setErr := c.rdb.Set(ctx, cacheKey, strconv.FormatFloat(rate, 'f', -1, 64), c.ttl).Err(); setErr != nil {
		c.logger.Warn().Err(setErr).Msg("rate cache write failed")
	}

	return rate, nil
}

// NewRedisClient connects to redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, err
	}

	return rdb, nil
}
