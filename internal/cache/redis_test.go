package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	customError "github.com/segyhp/servicing-engine/pkg/errors"
	"github.com/segyhp/servicing-engine/pkg/money"
)

// fakeClient keeps keys in memory and records expirations
type fakeClient struct {
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func newFakeClient() *fakeClient {
	return &fakeClient{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func stringValue(value interface{}) string {
	if b, ok := value.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(value)
}

func (f *fakeClient) Get(_ context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	value, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(value, nil)
}

func (f *fakeClient) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.data[key] = stringValue(value)
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeClient) SetNX(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = stringValue(value)
	f.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeClient) Del(_ context.Context, keys ...string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	var n int64
	for _, key := range keys {
		if _, ok := f.data[key]; ok {
			delete(f.data, key)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

// Eval understands only the lock release script
func (f *fakeClient) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	if f.err != nil {
		return redis.NewCmdResult(nil, f.err)
	}
	if f.data[keys[0]] != stringValue(args[0]) {
		return redis.NewCmdResult(int64(0), nil)
	}
	delete(f.data, keys[0])
	return redis.NewCmdResult(int64(1), nil)
}

func TestOutstandingCache(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	cache := NewOutstandingCache(client, 10*time.Minute)

	_, found, err := cache.Get(ctx, "LOAN-1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.Set(ctx, "LOAN-1", money.MustParse("1234.56", money.USD)))
	assert.Equal(t, 10*time.Minute, client.ttls["loan:outstanding:LOAN-1"])

	outstanding, found, err := cache.Get(ctx, "LOAN-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, outstanding.Equal(money.MustParse("1234.56", money.USD)))
	assert.Equal(t, money.USD, outstanding.Currency())

	require.NoError(t, cache.Invalidate(ctx, "LOAN-1"))
	_, found, err = cache.Get(ctx, "LOAN-1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestOutstandingCache_Errors(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	cache := NewOutstandingCache(client, time.Minute)

	client.data["loan:outstanding:LOAN-1"] = "not json"
	_, _, err := cache.Get(ctx, "LOAN-1")
	assert.Equal(t, customError.ErrCodeCacheError, customError.Code(err))

	client.err = errors.New("connection refused")
	_, _, err = cache.Get(ctx, "LOAN-1")
	assert.Equal(t, customError.ErrCodeCacheError, customError.Code(err))
	assert.Equal(t, customError.ErrCodeCacheError, customError.Code(cache.Set(ctx, "LOAN-1", money.Zero(money.USD))))
	assert.Equal(t, customError.ErrCodeCacheError, customError.Code(cache.Invalidate(ctx, "LOAN-1")))
}

func TestLocker(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	locker := NewLocker(client, 30*time.Second)

	release, err := locker.Acquire(ctx, "LOAN-1")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, client.ttls["loan:lock:LOAN-1"])

	_, err = locker.Acquire(ctx, "LOAN-1")
	assert.ErrorIs(t, err, customError.ErrLoanLocked)

	other, err := locker.Acquire(ctx, "LOAN-2")
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	require.NoError(t, release(ctx))
	_, held := client.data["loan:lock:LOAN-1"]
	assert.False(t, held)

	again, err := locker.Acquire(ctx, "LOAN-1")
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestLocker_ReleaseKeepsForeignLock(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	locker := NewLocker(client, time.Second)

	release, err := locker.Acquire(ctx, "LOAN-1")
	require.NoError(t, err)

	// the lock expired and another instance took it
	client.data["loan:lock:LOAN-1"] = "someone-else"

	require.NoError(t, release(ctx))
	assert.Equal(t, "someone-else", client.data["loan:lock:LOAN-1"])
}

func TestLocker_RedisDown(t *testing.T) {
	client := newFakeClient()
	client.err = errors.New("connection refused")

	_, err := NewLocker(client, time.Second).Acquire(context.Background(), "LOAN-1")

	assert.ErrorIs(t, err, customError.ErrCacheError)
}
