package repository

import "context"

// BlockedAddressRepository tracks source addresses barred from authenticating.
// Only the login state machine inserts here.
type BlockedAddressRepository interface {
	// IsBlocked reports whether an address has an active block entry.
	IsBlocked(ctx context.Context, address string) (bool, error)
	// Upsert inserts a block entry or refreshes an existing one (idempotent,
	// one active row per address).
	Upsert(ctx context.Context, address, reason string) error
	// DeleteByReason removes every block entry carrying the given reason.
	DeleteByReason(ctx context.Context, reason string) error
	// Delete removes the block entry for an address (administrative unblock).
	Delete(ctx context.Context, address string) error
}
