package redis

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-checkout/internal/storage"
)

type setCall struct {
	key string
	ttl time.Duration
}

type fakeCmdable struct {
	data map[string]string
	sets []setCall
	err  error
}

func (f *fakeCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", f.err)
}

func (f *fakeCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeCmdable) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	f.sets = append(f.sets, setCall{key: key, ttl: ttl})
	f.data[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", f.err)
}

func (f *fakeCmdable) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(f.data, k)
	}
	return redis.NewIntResult(int64(len(keys)), f.err)
}

func TestStore_NamespacesKeysAndRefreshesTTL(t *testing.T) {
	ctx := context.Background()
	fake := &fakeCmdable{data: map[string]string{}}
	s := &Store{client: fake, ttl: time.Hour}

	require.NoError(t, s.Put(ctx, "sid:cart-storage", []byte("[]")))
	require.NoError(t, s.Put(ctx, "sid:cart-storage", []byte("[1]")))

	assert.Equal(t, []setCall{
		{key: "sf:sid:cart-storage", ttl: time.Hour},
		{key: "sf:sid:cart-storage", ttl: time.Hour},
	}, fake.sets)

	got, err := s.Get(ctx, "sid:cart-storage")
	require.NoError(t, err)
	assert.Equal(t, "[1]", string(got))

	require.NoError(t, s.Delete(ctx, "sid:cart-storage"))
	_, err = s.Get(ctx, "sid:cart-storage")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_Errors(t *testing.T) {
	boom := errors.New("connection reset")
	s := &Store{client: &fakeCmdable{data: map[string]string{}, err: boom}}

	_, err := s.Get(context.Background(), "k")
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, s.Ping(context.Background()), boom)
	require.NoError(t, s.Close())
}

func TestOpen_RequiresURL(t *testing.T) {
	_, err := Open(context.Background(), "", time.Hour)
	require.Error(t, err)

	_, err = Open(context.Background(), "not a url", time.Hour)
	require.Error(t, err)
}
