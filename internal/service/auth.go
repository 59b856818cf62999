// Package service contains the application services for authentication and
// permission resolution.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	pkgcrypto "github.com/Hayal27/ITPCMS-sub000/internal/crypto"
	"github.com/Hayal27/ITPCMS-sub000/internal/errs"
	"github.com/Hayal27/ITPCMS-sub000/internal/model"
	"github.com/Hayal27/ITPCMS-sub000/internal/notify"
	"github.com/Hayal27/ITPCMS-sub000/internal/repository"
)

// Lockout policy. LockoutThreshold consecutive failures lock the account
// for LockWindow and generate a redemption code valid for CodeTTL.
const (
	LockoutThreshold = 5
	LockWindow       = 15 * time.Minute
	CodeTTL          = time.Hour
	codeDigits       = 6
)

// TokenIssuer creates session tokens on successful authentication. The
// login state machine is the only caller that creates one.
type TokenIssuer interface {
	Issue(actorID, roleID int64, initialLogin time.Time) (model.Tokens, error)
}

// AuthService is the login/lockout state machine.
type AuthService struct {
	accounts repository.AccountRepository
	blocks   repository.BlockedAddressRepository
	tokens   TokenIssuer
	sender   notify.Sender
	log      *zap.Logger
	now      func() time.Time
}

// NewAuthService constructs the login state machine with required dependencies.
func NewAuthService(accounts repository.AccountRepository, blocks repository.BlockedAddressRepository,
	tokens TokenIssuer, sender notify.Sender, log *zap.Logger) *AuthService {
	return &AuthService{
		accounts: accounts,
		blocks:   blocks,
		tokens:   tokens,
		sender:   sender,
		log:      log,
		now:      time.Now,
	}
}

// WithClock replaces the time source for tests.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// lockoutReason marks blocked_ips rows created by a lockout so redemption
// can remove exactly the rows belonging to the account.
func lockoutReason(accountID int64) string {
	return fmt.Sprintf("lockout:%d", accountID)
}

// Authenticate validates credentials, applies the lockout policy and, on
// success, issues a session token with the initial login pinned to now.
func (s *AuthService) Authenticate(ctx context.Context, identifier, password, sourceAddress string) (model.Tokens, *model.Account, error) {
	// The block-list check runs before any password comparison so blocked
	// callers get no timing oracle.
	blocked, err := s.blocks.IsBlocked(ctx, sourceAddress)
	if err != nil {
		return model.Tokens{}, nil, err
	}
	if blocked {
		s.log.Warn("login attempt from blocked address",
			zap.String("address", sourceAddress), zap.String("identifier", identifier))
		return model.Tokens{}, nil, errs.ErrIPBlocked
	}

	if password == "" {
		return model.Tokens{}, nil, errs.ErrInvalidCredentials
	}

	acc, err := s.accounts.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			// hide account existence
			return model.Tokens{}, nil, errs.ErrInvalidCredentials
		}
		return model.Tokens{}, nil, err
	}

	now := s.now()
	if acc.Locked(now) {
		s.log.Warn("login attempt on locked account",
			zap.Int64("actor", acc.ID), zap.String("address", sourceAddress))
		return model.Tokens{}, nil, errs.ErrAccountLocked
	}

	if !pkgcrypto.VerifyPassword(acc.PasswordHash, password) {
		attempts, locked, ferr := s.accounts.RecordFailure(ctx, acc.ID, LockoutThreshold, LockWindow)
		if ferr != nil {
			return model.Tokens{}, nil, ferr
		}
		if locked {
			return model.Tokens{}, nil, s.suspend(ctx, acc, sourceAddress)
		}
		return model.Tokens{}, nil, &errs.FailedAttemptError{Attempts: attempts}
	}

	if err := s.accounts.RecordSuccess(ctx, acc.ID); err != nil {
		return model.Tokens{}, nil, err
	}
	toks, err := s.tokens.Issue(acc.ID, acc.RoleID, now)
	if err != nil {
		return model.Tokens{}, nil, err
	}
	return toks, acc, nil
}

// suspend finalizes the transition into the locked state: redemption code,
// block-list entry and delivery. The AccountSuspended outcome stands even
// when code delivery fails.
func (s *AuthService) suspend(ctx context.Context, acc *model.Account, sourceAddress string) error {
	s.log.Warn("account locked after repeated failures",
		zap.Int64("actor", acc.ID), zap.String("address", sourceAddress))

	code, err := pkgcrypto.NumericCode(codeDigits)
	if err != nil {
		return err
	}
	if err := s.accounts.SetRedemptionCode(ctx, acc.ID, code, s.now().Add(CodeTTL)); err != nil {
		return err
	}
	if err := s.blocks.Upsert(ctx, sourceAddress, lockoutReason(acc.ID)); err != nil {
		return err
	}
	s.dispatchCode(ctx, acc.Email, "Account redemption code", code)
	return errs.ErrAccountSuspended
}

// ForgotPassword always produces a success-shaped outcome. When the
// identifier resolves, a reset code is generated and dispatched.
func (s *AuthService) ForgotPassword(ctx context.Context, identifier string) error {
	acc, err := s.accounts.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil // no account enumeration
		}
		return err
	}
	code, err := pkgcrypto.NumericCode(codeDigits)
	if err != nil {
		return err
	}
	if err := s.accounts.SetResetCode(ctx, acc.ID, code, s.now().Add(CodeTTL)); err != nil {
		return err
	}
	s.dispatchCode(ctx, acc.Email, "Password reset code", code)
	return nil
}

// RedeemAccount restores a locked account without changing its password.
func (s *AuthService) RedeemAccount(ctx context.Context, identifier, code string) error {
	acc, err := s.accounts.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errs.ErrInvalidCode
		}
		return err
	}
	if acc.RedemptionCode == nil || *acc.RedemptionCode != code ||
		acc.RedemptionExpiry == nil || !acc.RedemptionExpiry.After(s.now()) {
		return errs.ErrInvalidCode
	}
	if err := s.accounts.Rehabilitate(ctx, acc.ID); err != nil {
		return err
	}
	if err := s.blocks.DeleteByReason(ctx, lockoutReason(acc.ID)); err != nil {
		return err
	}
	s.log.Info("account redeemed", zap.Int64("actor", acc.ID))
	return nil
}

// ResendRedemption issues a fresh redemption code for a locked account.
// Unknown identifiers get the success-shaped reply; a resolvable but
// unlocked account is reported as NotLocked.
func (s *AuthService) ResendRedemption(ctx context.Context, identifier string) error {
	acc, err := s.accounts.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil
		}
		return err
	}
	if !acc.Locked(s.now()) {
		return errs.ErrNotLocked
	}
	code, err := pkgcrypto.NumericCode(codeDigits)
	if err != nil {
		return err
	}
	if err := s.accounts.SetRedemptionCode(ctx, acc.ID, code, s.now().Add(CodeTTL)); err != nil {
		return err
	}
	s.dispatchCode(ctx, acc.Email, "Account redemption code", code)
	return nil
}

// ResetPassword sets a new password after validating the reset code, then
// fully rehabilitates the account.
func (s *AuthService) ResetPassword(ctx context.Context, identifier, code, newPassword string) error {
	acc, err := s.accounts.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errs.ErrInvalidCode
		}
		return err
	}
	if acc.ResetCode == nil || *acc.ResetCode != code ||
		acc.ResetExpiry == nil || !acc.ResetExpiry.After(s.now()) {
		return errs.ErrInvalidCode
	}
	if !pkgcrypto.CheckStrength(newPassword) {
		return errs.ErrWeakPassword
	}
	hash, err := pkgcrypto.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.accounts.ResetPassword(ctx, acc.ID, hash); err != nil {
		return err
	}
	if err := s.blocks.DeleteByReason(ctx, lockoutReason(acc.ID)); err != nil {
		return err
	}
	s.log.Info("password reset", zap.Int64("actor", acc.ID))
	return nil
}

// ChangePassword replaces the password for an authenticated actor.
func (s *AuthService) ChangePassword(ctx context.Context, actorID int64, current, newPassword string) error {
	acc, err := s.accounts.GetByID(ctx, actorID)
	if err != nil {
		return err
	}
	if !pkgcrypto.VerifyPassword(acc.PasswordHash, current) {
		return errs.ErrWrongPassword
	}
	if !pkgcrypto.CheckStrength(newPassword) {
		return errs.ErrWeakPassword
	}
	hash, err := pkgcrypto.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.accounts.UpdatePassword(ctx, acc.ID, hash)
}

// dispatchCode sends a one-time code. Delivery failures are logged and
// never surface as authentication failures; the stored code stays valid so
// delivery can be retried independently.
func (s *AuthService) dispatchCode(ctx context.Context, to, subject, code string) {
	body := fmt.Sprintf("Your one-time code is %s. It expires in %s.", code, CodeTTL)
	if err := s.sender.Send(ctx, to, subject, body); err != nil {
		s.log.Error("code delivery failed", zap.String("to", to), zap.Error(err))
	}
}
