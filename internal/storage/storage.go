// Package storage is the persistence boundary for per-session client state:
// the cart, the checkout record, the submission state and the latest order.
package storage

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned by KV.Get for a missing key.
var ErrNotFound = errors.New("key not found")

// KV is a byte-valued key/value store.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Key suffixes, prefixed by the session id.
const (
	KeyCart        = "cart-storage"
	KeyCheckout    = "checkout-storage"
	KeySubmission  = "submission-storage"
	KeyLatestOrder = "latest-order"
)

// SessionKey scopes key to session sid.
func SessionKey(sid, key string) string {
	return sid + ":" + key
}

// GetJSON loads key into v. It returns false when the key is missing.
func GetJSON(ctx context.Context, kv KV, key string, v any) (bool, error) {
	data, err := kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "get %q", key)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, errors.Wrapf(err, "decode %q", key)
	}
	return true, nil
}

// PutJSON stores v under key.
func PutJSON(ctx context.Context, kv KV, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode %q", key)
	}
	if err := kv.Put(ctx, key, data); err != nil {
		return errors.Wrapf(err, "put %q", key)
	}
	return nil
}
