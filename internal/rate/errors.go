package rate

import "errors"

var (
	// ErrRateLimited is returned once a (tenant, username) pair has used up its failed-attempt budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable is returned when the counter store cannot be reached.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
