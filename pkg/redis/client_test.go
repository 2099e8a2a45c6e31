package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/farmlink-backend/pkg/config"
)

func TestFixedWindowAllowSetsExpiryOnce(t *testing.T) {
	ctx := context.Background()
	fake := newFakeCommands()
	client := &Client{cmd: fake}

	for i, want := range []bool{true, true, false} {
		allowed, count, err := client.FixedWindowAllow(ctx, "login:ip:1.2.3.4", 2, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, allowed, "hit %d", i+1)
		assert.Equal(t, int64(i+1), count)
	}
	require.Len(t, fake.expires, 1)
	assert.Equal(t, "fl:rate_limit:login:ip:1.2.3.4", fake.expires[0])
}

func TestGetDelConsumesValueOnce(t *testing.T) {
	ctx := context.Background()
	client := &Client{cmd: newFakeCommands()}
	key := client.RefreshSessionKey("jti-1")

	require.NoError(t, client.Set(ctx, key, "record", 10*time.Minute))

	got, err := client.GetDel(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "record", got)

	_, err = client.GetDel(ctx, key)
	assert.ErrorIs(t, err, redis.Nil)
}

func TestCompareAndDeleteRespectsOwner(t *testing.T) {
	ctx := context.Background()
	client := &Client{cmd: newFakeCommands()}
	key := client.LockKey("cron-worker")

	ok, err := client.SetNX(ctx, key, "owner-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = client.SetNX(ctx, key, "owner-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	deleted, err := client.CompareAndDelete(ctx, key, "owner-b")
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = client.CompareAndDelete(ctx, key, "owner-a")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = client.Get(ctx, key)
	assert.ErrorIs(t, err, redis.Nil)
}

func TestKeyLayout(t *testing.T) {
	client := &Client{}
	assert.Equal(t, "fl:idempotency:scope:id", client.IdempotencyKey("scope", "id"))
	assert.Equal(t, "fl:idempotency:scope", client.IdempotencyKey("scope", " "))
	assert.Equal(t, "fl:rate_limit:scope", client.RateLimitKey("scope"))
	assert.Equal(t, "fl:lock:cron", client.LockKey("cron"))
	assert.Equal(t, "fl:session:refresh:jti", client.RefreshSessionKey("jti"))
}

func TestOptionsFillPoolSettings(t *testing.T) {
	opts, err := Options(config.RedisConfig{URL: "redis://localhost:6379", DB: 2, PoolSize: 7, DialTimeout: 3 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, 3*time.Second, opts.DialTimeout)

	opts, err = Options(config.RedisConfig{Address: "cache:6379", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, "pw", opts.Password)

	_, err = Options(config.RedisConfig{})
	assert.Error(t, err)
}

func TestUninitialisedClient(t *testing.T) {
	client := &Client{}
	assert.Error(t, client.Ping(context.Background()))
	_, err := client.GetDel(context.Background(), "k")
	assert.Error(t, err)
	assert.NoError(t, client.Close())
}

type fakeCommands struct {
	data    map[string]string
	counts  map[string]int64
	expires []string
}

func newFakeCommands() *fakeCommands {
	return &fakeCommands{data: map[string]string{}, counts: map[string]int64{}}
}

func (f *fakeCommands) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeCommands) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeCommands) GetDel(ctx context.Context, key string) *redis.StringCmd {
	cmd := f.Get(ctx, key)
	delete(f.data, key)
	return cmd
}

func (f *fakeCommands) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeCommands) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCommands) Incr(_ context.Context, key string) *redis.IntCmd {
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeCommands) Expire(_ context.Context, key string, _ time.Duration) *redis.BoolCmd {
	f.expires = append(f.expires, key)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCommands) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(f.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

// Eval only understands the compare-and-delete script.
func (f *fakeCommands) Eval(_ context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	if f.data[keys[0]] == fmt.Sprint(args[0]) {
		delete(f.data, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}
