package sqlite

import (
	"context"
	"strings"

	"github.com/example/timecapsule/internal/persistence"
)

// IdentityRepository implements persistence.IdentityRepository using SQLite.
type IdentityRepository struct {
	pool *ConnectionPool
}

// NewIdentityRepository creates a new SQLite identity repository.
func NewIdentityRepository(pool *ConnectionPool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// CreateIdentity inserts a new identity. Duplicate emails yield persistence.ErrDuplicate.
func (r *IdentityRepository) CreateIdentity(ctx context.Context, identity persistence.Identity) error {
	if identity.ID == "" || strings.TrimSpace(identity.Email) == "" {
		return persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO identities (id, email, name, avatar_url, secret_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.pool.db.ExecContext(ctx, query,
		identity.ID,
		identity.Email,
		identity.Name,
		identity.AvatarURL,
		identity.SecretHash,
		formatTime(identity.CreatedAt),
	)
	return mapError(err)
}

// GetIdentityByEmail retrieves an identity by its exact email address.
func (r *IdentityRepository) GetIdentityByEmail(ctx context.Context, email string) (persistence.Identity, error) {
	query := `
		SELECT id, email, name, avatar_url, secret_hash, created_at
		FROM identities
		WHERE email = ?
	`
	return scanIdentity(r.pool.db.QueryRowContext(ctx, query, email))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (persistence.Identity, error) {
	var identity persistence.Identity
	var createdAt string
	if err := row.Scan(
		&identity.ID,
		&identity.Email,
		&identity.Name,
		&identity.AvatarURL,
		&identity.SecretHash,
		&createdAt,
	); err != nil {
		return persistence.Identity{}, mapError(err)
	}

	var err error
	if identity.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.Identity{}, err
	}
	return identity, nil
}
