package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/Hayal27/ITPCMS-sub000/internal/errs"
	"github.com/Hayal27/ITPCMS-sub000/internal/model"
)

// AccountRepo implements AccountRepository using PostgreSQL.
type AccountRepo struct{ db *DB }

// NewAccountRepo constructs an account repository.
func NewAccountRepo(db *DB) *AccountRepo { return &AccountRepo{db: db} }

const accountColumns = `id, username, email, password_hash, role_id, failed_attempts,
locked_until, reset_code, reset_expiry, redemption_code, redemption_expiry, is_online, created_at`

func scanAccount(row interface{ Scan(dest ...any) error }) (*model.Account, error) {
	var a model.Account
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.RoleID,
		&a.FailedAttempts, &a.LockedUntil, &a.ResetCode, &a.ResetExpiry,
		&a.RedemptionCode, &a.RedemptionExpiry, &a.Online, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, errs.ErrNotFound
	}
	return &a, nil
}

// GetByIdentifier selects an account by login name or linked contact address.
func (r *AccountRepo) GetByIdentifier(ctx context.Context, identifier string) (*model.Account, error) {
	const q = `
SELECT ` + accountColumns + `
FROM accounts WHERE username=$1 OR email=$1`
	return scanAccount(r.db.Pool.QueryRow(ctx, q, identifier))
}

// GetByID selects an account by ID.
func (r *AccountRepo) GetByID(ctx context.Context, id int64) (*model.Account, error) {
	const q = `
SELECT ` + accountColumns + `
FROM accounts WHERE id=$1`
	return scanAccount(r.db.Pool.QueryRow(ctx, q, id))
}

// RecordFailure increments the failed-attempt counter and applies the lock
// window in the same statement when the threshold is reached. The single
// UPDATE keeps concurrent failures from under-counting.
func (r *AccountRepo) RecordFailure(ctx context.Context, id int64, threshold int, lockFor time.Duration) (int, bool, error) {
	const q = `
UPDATE accounts
SET failed_attempts = failed_attempts + 1,
    locked_until = CASE WHEN failed_attempts + 1 >= $2 THEN now() + $3::interval ELSE locked_until END
WHERE id=$1
RETURNING failed_attempts, (locked_until IS NOT NULL AND locked_until > now())`
	var attempts int
	var locked bool
	if err := r.db.Pool.QueryRow(ctx, q, id, threshold, lockFor).Scan(&attempts, &locked); err != nil {
		return 0, false, err
	}
	return attempts, locked, nil
}

// RecordSuccess clears the failure counters and marks the account present.
func (r *AccountRepo) RecordSuccess(ctx context.Context, id int64) error {
	const q = `
UPDATE accounts SET failed_attempts=0, locked_until=NULL, is_online=TRUE WHERE id=$1`
	return r.exec(ctx, q, id)
}

// SetRedemptionCode stores a redemption code and its expiry.
func (r *AccountRepo) SetRedemptionCode(ctx context.Context, id int64, code string, expiry time.Time) error {
	const q = `
UPDATE accounts SET redemption_code=$2, redemption_expiry=$3 WHERE id=$1`
	return r.exec(ctx, q, id, code, expiry)
}

// SetResetCode stores a password-reset code and its expiry.
func (r *AccountRepo) SetResetCode(ctx context.Context, id int64, code string, expiry time.Time) error {
	const q = `
UPDATE accounts SET reset_code=$2, reset_expiry=$3 WHERE id=$1`
	return r.exec(ctx, q, id, code, expiry)
}

// Rehabilitate clears all security counters and one-time codes.
func (r *AccountRepo) Rehabilitate(ctx context.Context, id int64) error {
	const q = `
UPDATE accounts
SET failed_attempts=0, locked_until=NULL,
    reset_code=NULL, reset_expiry=NULL,
    redemption_code=NULL, redemption_expiry=NULL
WHERE id=$1`
	return r.exec(ctx, q, id)
}

// ResetPassword replaces the hash and clears all security state in one statement.
func (r *AccountRepo) ResetPassword(ctx context.Context, id int64, hash string) error {
	const q = `
UPDATE accounts
SET password_hash=$2, failed_attempts=0, locked_until=NULL,
    reset_code=NULL, reset_expiry=NULL,
    redemption_code=NULL, redemption_expiry=NULL
WHERE id=$1`
	return r.exec(ctx, q, id, hash)
}

// UpdatePassword replaces the password hash only.
func (r *AccountRepo) UpdatePassword(ctx context.Context, id int64, hash string) error {
	const q = `UPDATE accounts SET password_hash=$2 WHERE id=$1`
	return r.exec(ctx, q, id, hash)
}

// SetOnline updates the presence flag.
func (r *AccountRepo) SetOnline(ctx context.Context, id int64, online bool) error {
	const q = `UPDATE accounts SET is_online=$2 WHERE id=$1`
	return r.exec(ctx, q, id, online)
}

func (r *AccountRepo) exec(ctx context.Context, q string, args ...any) error {
	tag, err := r.db.Pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
