// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"time"

	"github.com/Hayal27/ITPCMS-sub000/internal/model"
)

// AccountRepository provides access to account rows and their security counters.
type AccountRepository interface {
	// GetByIdentifier loads an account by login name or linked contact address.
	GetByIdentifier(ctx context.Context, identifier string) (*model.Account, error)
	// GetByID loads an account by ID.
	GetByID(ctx context.Context, id int64) (*model.Account, error)
	// RecordFailure atomically increments the failed-attempt counter and, when
	// the post-increment count reaches threshold, sets the lock window in the
	// same statement. Returns the post-increment count and whether the account
	// is now locked.
	RecordFailure(ctx context.Context, id int64, threshold int, lockFor time.Duration) (attempts int, locked bool, err error)
	// RecordSuccess resets the failed-attempt counter, clears the lock and
	// marks the account present.
	RecordSuccess(ctx context.Context, id int64) error
	// SetRedemptionCode stores a one-time redemption code with its expiry.
	SetRedemptionCode(ctx context.Context, id int64, code string, expiry time.Time) error
	// SetResetCode stores a one-time password-reset code with its expiry.
	SetResetCode(ctx context.Context, id int64, code string, expiry time.Time) error
	// Rehabilitate clears every security counter and both one-time codes
	// without touching the password hash.
	Rehabilitate(ctx context.Context, id int64) error
	// ResetPassword replaces the password hash and clears every security
	// counter and both one-time codes in one statement.
	ResetPassword(ctx context.Context, id int64, hash string) error
	// UpdatePassword replaces the password hash only.
	UpdatePassword(ctx context.Context, id int64, hash string) error
	// SetOnline updates the presence flag.
	SetOnline(ctx context.Context, id int64, online bool) error
}
