package postgres

import (
	"context"
	"time"
)

// RevocationRepo implements RevocationRepository using PostgreSQL.
type RevocationRepo struct{ db *DB }

// NewRevocationRepo constructs a revoked-token repository.
func NewRevocationRepo(db *DB) *RevocationRepo { return &RevocationRepo{db: db} }

// Insert stores a revoked token. Duplicate inserts are a no-op.
func (r *RevocationRepo) Insert(ctx context.Context, token string, expiresAt time.Time) error {
	const q = `
INSERT INTO revoked_tokens (token, expires_at)
VALUES ($1, $2)
ON CONFLICT (token) DO NOTHING`
	_, err := r.db.Pool.Exec(ctx, q, token, expiresAt)
	return err
}

// IsRevoked reports whether the exact token value is on the revocation list.
func (r *RevocationRepo) IsRevoked(ctx context.Context, token string) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE token=$1)`
	var revoked bool
	if err := r.db.Pool.QueryRow(ctx, q, token).Scan(&revoked); err != nil {
		return false, err
	}
	return revoked, nil
}

// DeleteExpired reclaims rows whose expiry has passed.
func (r *RevocationRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const q = `DELETE FROM revoked_tokens WHERE expires_at < $1`
	tag, err := r.db.Pool.Exec(ctx, q, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
