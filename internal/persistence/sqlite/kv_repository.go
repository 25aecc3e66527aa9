package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/example/timecapsule/internal/persistence"
)

// KeyValueRepository implements persistence.KeyValueStore on the kv_entries table.
type KeyValueRepository struct {
	pool *ConnectionPool
	now  func() time.Time
}

// NewKeyValueRepository creates a new SQLite key-value repository.
func NewKeyValueRepository(pool *ConnectionPool) *KeyValueRepository {
	return &KeyValueRepository{pool: pool, now: time.Now}
}

// Get returns the value stored under key.
func (r *KeyValueRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.pool.db.QueryRowContext(ctx, `SELECT value FROM kv_entries WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return nil, mapError(err)
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (r *KeyValueRepository) Set(ctx context.Context, key string, value []byte) error {
	if strings.TrimSpace(key) == "" {
		return persistence.ErrConstraintViolation
	}
	query := `
		INSERT INTO kv_entries (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	_, err := r.pool.db.ExecContext(ctx, query, key, value, formatTime(r.now()))
	return mapError(err)
}

// Delete removes key. Deleting an absent key is not an error.
func (r *KeyValueRepository) Delete(ctx context.Context, key string) error {
	_, err := r.pool.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = ?`, key)
	return mapError(err)
}
