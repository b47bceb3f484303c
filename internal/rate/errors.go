package rate

import "errors"

var (
	// ErrRateLimited means the caller exceeded its window budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis command failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
