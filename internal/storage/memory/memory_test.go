package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-checkout/internal/storage"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Get(ctx, "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)

	value := []byte(`{"a":1}`)
	require.NoError(t, s.Put(ctx, "k", value))
	value[0] = 'x'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))

	require.NoError(t, s.Delete(ctx, "k"))
	assert.Zero(t, s.Len())
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := New()
	key := storage.SessionKey("sid", storage.KeyCart)
	assert.Equal(t, "sid:cart-storage", key)

	var out []int
	found, err := storage.GetJSON(ctx, s, key, &out)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, storage.PutJSON(ctx, s, key, []int{1, 2}))
	found, err = storage.GetJSON(ctx, s, key, &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []int{1, 2}, out)

	require.NoError(t, s.Put(ctx, key, []byte("{broken")))
	_, err = storage.GetJSON(ctx, s, key, &out)
	require.Error(t, err)
}
