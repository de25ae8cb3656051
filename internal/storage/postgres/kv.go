package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront-checkout/internal/storage"
)

var _ storage.KV = (*KV)(nil)

// KV implements storage.KV on the client_state table.
type KV struct {
	db DB
}

func NewKV(db DB) *KV {
	return &KV{db: db}
}

func (s *KV) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(ctx, `SELECT value FROM client_state WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "select client state %q", key)
	}
	return value, nil
}

func (s *KV) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO client_state (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value,
	)
	if err != nil {
		return errors.Wrapf(err, "upsert client state %q", key)
	}
	return nil
}

func (s *KV) Delete(ctx context.Context, key string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM client_state WHERE key = $1`, key); err != nil {
		return errors.Wrapf(err, "delete client state %q", key)
	}
	return nil
}
