package postgres

import "context"

// BlockRepo implements BlockedAddressRepository using PostgreSQL.
type BlockRepo struct{ db *DB }

// NewBlockRepo constructs a blocked-address repository.
func NewBlockRepo(db *DB) *BlockRepo { return &BlockRepo{db: db} }

// IsBlocked reports whether the address has an active entry.
func (r *BlockRepo) IsBlocked(ctx context.Context, address string) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM blocked_ips WHERE address=$1)`
	var blocked bool
	if err := r.db.Pool.QueryRow(ctx, q, address).Scan(&blocked); err != nil {
		return false, err
	}
	return blocked, nil
}

// Upsert inserts or refreshes the single entry for an address.
func (r *BlockRepo) Upsert(ctx context.Context, address, reason string) error {
	const q = `
INSERT INTO blocked_ips (address, reason, blocked_at)
VALUES ($1, $2, now())
ON CONFLICT (address) DO UPDATE SET reason=EXCLUDED.reason, blocked_at=now()`
	_, err := r.db.Pool.Exec(ctx, q, address, reason)
	return err
}

// DeleteByReason removes every entry carrying the reason marker.
func (r *BlockRepo) DeleteByReason(ctx context.Context, reason string) error {
	const q = `DELETE FROM blocked_ips WHERE reason=$1`
	_, err := r.db.Pool.Exec(ctx, q, reason)
	return err
}

// Delete removes the entry for an address.
func (r *BlockRepo) Delete(ctx context.Context, address string) error {
	const q = `DELETE FROM blocked_ips WHERE address=$1`
	_, err := r.db.Pool.Exec(ctx, q, address)
	return err
}
