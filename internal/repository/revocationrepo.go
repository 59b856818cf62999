package repository

import (
	"context"
	"time"
)

// RevocationRepository is the durable set of invalidated session tokens.
// Only revoke and the sweep mutate it.
type RevocationRepository interface {
	// Insert stores a revoked token until expiresAt. Re-inserting an
	// already-revoked token is a no-op.
	Insert(ctx context.Context, token string, expiresAt time.Time) error
	// IsRevoked reports whether the exact token value was revoked.
	IsRevoked(ctx context.Context, token string) (bool, error)
	// DeleteExpired removes rows whose expiry has passed and returns the
	// number of rows reclaimed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
