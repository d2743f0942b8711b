package server

import (
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"github.com/yamdb/apiserver/config"
)

const rateLimitPrefix = "yamdb:ratelimit"

// rateLimits holds one middleware per route class. /auth gets a stricter
// rate than the rest of the API.
type rateLimits struct {
	auth  func(http.Handler) http.Handler
	api   func(http.Handler) http.Handler
	redis *redis.Client
}

func newRateLimits(cfg config.RateLimitConfig) (*rateLimits, error) {
	limits := &rateLimits{}

	var err error
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		limits.redis = redis.NewClient(opts)
	}

	if limits.auth, err = limits.middleware("auth", cfg.Auth); err != nil {
		_ = limits.Close()
		return nil, err
	}
	if limits.api, err = limits.middleware("api", cfg.API); err != nil {
		_ = limits.Close()
		return nil, err
	}
	return limits, nil
}

func (l *rateLimits) middleware(name, formatted string) (func(http.Handler) http.Handler, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, fmt.Errorf("invalid %s rate %q: %w", name, formatted, err)
	}

	opts := limiter.StoreOptions{Prefix: rateLimitPrefix + ":" + name}
	var store limiter.Store
	if l.redis != nil {
		store, err = redisstore.NewStoreWithOptions(l.redis, opts)
		if err != nil {
			return nil, fmt.Errorf("redis rate limit store: %w", err)
		}
	} else {
		store = memory.NewStoreWithOptions(opts)
	}

	return stdlib.NewMiddleware(limiter.New(store, rate)).Handler, nil
}

func (l *rateLimits) Close() error {
	if l.redis != nil {
		return l.redis.Close()
	}
	return nil
}
