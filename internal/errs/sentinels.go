// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
)

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidCredentials indicates a wrong identifier/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountLocked indicates the account lock window has not elapsed.
	ErrAccountLocked = errors.New("account locked")

	// ErrAccountSuspended indicates this attempt crossed the lockout threshold.
	ErrAccountSuspended = errors.New("account suspended")

	// ErrIPBlocked indicates the source address is on the block list.
	ErrIPBlocked = errors.New("ip blocked")

	// ErrTokenExpired indicates an invalid signature or elapsed token expiry.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenRevoked indicates the token was explicitly invalidated.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrSessionCeiling indicates the absolute session lifetime was exceeded.
	ErrSessionCeiling = errors.New("session ceiling exceeded")

	// ErrInvalidCode indicates a wrong or expired one-time code.
	ErrInvalidCode = errors.New("invalid or expired code")

	// ErrWeakPassword indicates the new password fails the strength predicate.
	ErrWeakPassword = errors.New("weak password")

	// ErrWrongPassword indicates the supplied current password does not match.
	ErrWrongPassword = errors.New("wrong current password")

	// ErrPermissionDenied indicates the actor may not reach the resource.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotLocked indicates a redemption resend for an account that is not locked.
	ErrNotLocked = errors.New("account not locked")

	// ErrAlreadyExists indicates a unique constraint violation.
	ErrAlreadyExists = errors.New("already exists")
)

// FailedAttemptError wraps ErrInvalidCredentials with the current attempt
// count, which is deliberately exposed to the caller for UX feedback.
type FailedAttemptError struct {
	Attempts int
}

func (e *FailedAttemptError) Error() string {
	return fmt.Sprintf("invalid credentials (attempt %d)", e.Attempts)
}

// Is makes the wrapper match ErrInvalidCredentials under errors.Is.
func (e *FailedAttemptError) Is(target error) bool {
	return target == ErrInvalidCredentials
}
