// Package model defines domain entities used by services and repositories.
package model

import "time"

// RoleAdministrator is the distinguished super-role that bypasses
// permission resolution entirely.
const RoleAdministrator int64 = 1

// Account represents a CMS account with its security counters.
// Rows are mutated only by the login state machine and the
// password-change/reset flows; deletion belongs to account management.
type Account struct {
	ID               int64
	Username         string // unique login name
	Email            string // linked contact address, also resolves logins
	PasswordHash     string // encoded argon2id hash
	RoleID           int64
	FailedAttempts   int
	LockedUntil      *time.Time
	ResetCode        *string
	ResetExpiry      *time.Time
	RedemptionCode   *string
	RedemptionExpiry *time.Time
	Online           bool
	CreatedAt        time.Time
}

// Locked reports whether the account lock window is still open at now.
func (a *Account) Locked(now time.Time) bool {
	return a.LockedUntil != nil && a.LockedUntil.After(now)
}

// BlockedAddress is a source address barred from authenticating.
// Reason carries a "lockout:<accountID>" marker when created by the
// lockout path so redemption can remove exactly its own rows.
type BlockedAddress struct {
	Address   string
	Reason    string
	BlockedAt time.Time
}

// RevokedToken is a logged-out bearer value. ExpiresAt is the absolute
// session ceiling from revocation time, after which the row is swept.
type RevokedToken struct {
	Token     string
	ExpiresAt time.Time
}

// MenuNode is one node of the managed menu forest. Path doubles as the
// permission key. Read-only to this core.
type MenuNode struct {
	ID         int64
	ParentID   *int64
	Path       string
	OrderIndex int
	Active     bool
}

// OverrideType distinguishes per-actor permission exceptions.
type OverrideType string

const (
	OverrideAllow OverrideType = "allow"
	OverrideDeny  OverrideType = "deny"
)

// UserOverride is a per-actor exception layered over role grants.
// At most one row exists per (actor, menu) pair.
type UserOverride struct {
	UserID int64
	MenuID int64
	Type   OverrideType
}

// Tokens collects an issued session token and its expiry for diagnostics.
type Tokens struct {
	SessionToken string
	ExpiresAt    time.Time
}

// Actor is the authenticated identity decoded from a session token.
type Actor struct {
	ID           int64
	RoleID       int64
	InitialLogin time.Time
}

// IsAdmin reports whether the actor holds the administrator role.
func (a Actor) IsAdmin() bool { return a.RoleID == RoleAdministrator }
