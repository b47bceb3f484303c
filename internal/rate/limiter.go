package rate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	EnableRefreshThrottle  bool
	MaxRefreshAttempts     int
	RefreshWindow          time.Duration
	EnableExchangeThrottle bool
	MaxExchangeAttempts    int
	ExchangeWindow         time.Duration
}

// Limiter enforces per-refresh-token and per-IP budgets using Redis
// counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// RefreshKey hashes a refresh token into a limiter key component.
func RefreshKey(refreshToken string) string {
	sum := sha256.Sum256([]byte(refreshToken))
	return hex.EncodeToString(sum[:16])
}

// CheckRefresh counts one refresh attempt for key and fails once the window
// budget is spent.
func (l *Limiter) CheckRefresh(ctx context.Context, key string) error {
	if !l.config.EnableRefreshThrottle {
		return nil
	}
	return l.check(ctx, refreshKey(key), l.config.MaxRefreshAttempts, l.config.RefreshWindow)
}

// CheckExchange counts one code exchange for clientIP.
func (l *Limiter) CheckExchange(ctx context.Context, clientIP string) error {
	if !l.config.EnableExchangeThrottle || clientIP == "" {
		return nil
	}
	return l.check(ctx, exchangeKey(clientIP), l.config.MaxExchangeAttempts, l.config.ExchangeWindow)
}

func (l *Limiter) check(ctx context.Context, key string, maxAttempts int, window time.Duration) error {
	count, err := l.incrementWithTTL(ctx, key, window)
	if err != nil {
		return err
	}
	if count > int64(maxAttempts) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

func refreshKey(key string) string {
	return "gi:rr:" + key
}

func exchangeKey(ip string) string {
	return "gi:rx:" + ip
}
