package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	customError "github.com/segyhp/servicing-engine/pkg/errors"
	"github.com/segyhp/servicing-engine/pkg/money"
)

const (
	outstandingPrefix = "loan:outstanding:"
	lockPrefix        = "loan:lock:"

	// deletes the lock only while it still holds the caller's token
	releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`
)

// OutstandingCache keeps computed outstanding balances per loan
type OutstandingCache interface {
	Get(ctx context.Context, loanID string) (money.Money, bool, error)
	Set(ctx context.Context, loanID string, outstanding money.Money) error
	Invalidate(ctx context.Context, loanID string) error
}

// Locker serializes mutations of one loan across service instances
type Locker interface {
	// Acquire takes the loan's lock or fails with a LOAN_LOCKED error. The
	// returned function releases it.
	Acquire(ctx context.Context, loanID string) (func(context.Context) error, error)
}

// Client is the subset of redis commands used here; *redis.Client implements it
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type redisOutstandingCache struct {
	client Client
	ttl    time.Duration
}

func NewOutstandingCache(client Client, ttl time.Duration) OutstandingCache {
	return &redisOutstandingCache{client: client, ttl: ttl}
}

func (c *redisOutstandingCache) Get(ctx context.Context, loanID string) (money.Money, bool, error) {
	data, err := c.client.Get(ctx, outstandingPrefix+loanID).Bytes()
	if errors.Is(err, redis.Nil) {
		return money.Money{}, false, nil
	}
	if err != nil {
		return money.Money{}, false, customError.WrapCacheError(err)
	}

	var outstanding money.Money
	if err := json.Unmarshal(data, &outstanding); err != nil {
		return money.Money{}, false, customError.WrapCacheError(err)
	}
	return outstanding, true, nil
}

func (c *redisOutstandingCache) Set(ctx context.Context, loanID string, outstanding money.Money) error {
	data, err := json.Marshal(outstanding)
	if err != nil {
		return customError.WrapCacheError(err)
	}
	if err := c.client.Set(ctx, outstandingPrefix+loanID, data, c.ttl).Err(); err != nil {
		return customError.WrapCacheError(err)
	}
	return nil
}

func (c *redisOutstandingCache) Invalidate(ctx context.Context, loanID string) error {
	if err := c.client.Del(ctx, outstandingPrefix+loanID).Err(); err != nil {
		return customError.WrapCacheError(err)
	}
	return nil
}

type redisLocker struct {
	client Client
	ttl    time.Duration
}

// NewLocker builds a SETNX lock; ttl bounds how long a crashed holder blocks the loan
func NewLocker(client Client, ttl time.Duration) Locker {
	return &redisLocker{client: client, ttl: ttl}
}

func (l *redisLocker) Acquire(ctx context.Context, loanID string) (func(context.Context) error, error) {
	key := lockPrefix + loanID
	token := uuid.NewString()

	acquired, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, customError.WrapCacheError(err)
	}
	if !acquired {
		return nil, customError.WrapLoanLocked(loanID)
	}

	release := func(ctx context.Context) error {
		if err := l.client.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
			return customError.WrapCacheError(err)
		}
		return nil
	}
	return release, nil
}
