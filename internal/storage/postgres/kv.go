package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/dyagdi/PriceLess/pkg/database"
	apperrors "github.com/dyagdi/PriceLess/pkg/errors"
)

const dbSystem = "postgresql"

// KV implements storage.KV on the storefront_kv table.
type KV struct {
	db database.DBTX
}

// NewKV creates a PostgreSQL-backed KV.
func NewKV(db database.DBTX) *KV {
	return &KV{db: db}
}

// Get returns the value stored at key.
func (r *KV) Get(ctx context.Context, key string) (value string, found bool, err error) {
	query := `SELECT value FROM storefront_kv WHERE key = $1`

	ctx, end := database.TraceQuery(ctx, dbSystem, "GetKV", query)
	defer func() { end(err) }()

	if err = r.db.QueryRow(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = nil
			return "", false, nil
		}
		return "", false, apperrors.Wrap(err, "get kv "+key)
	}
	return value, true, nil
}

// Set upserts value at key.
func (r *KV) Set(ctx context.Context, key, value string) (err error) {
	query := `
		INSERT INTO storefront_kv (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`

	ctx, end := database.TraceQuery(ctx, dbSystem, "SetKV", query)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, query, key, value); err != nil {
		return apperrors.Wrap(err, "set kv "+key)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (r *KV) Delete(ctx context.Context, key string) (err error) {
	query := `DELETE FROM storefront_kv WHERE key = $1`

	ctx, end := database.TraceQuery(ctx, dbSystem, "DeleteKV", query)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, query, key); err != nil {
		return apperrors.Wrap(err, "delete kv "+key)
	}
	return nil
}

// Ping checks database connectivity.
func (r *KV) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
