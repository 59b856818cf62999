package repository

import (
	"context"

	"github.com/Hayal27/ITPCMS-sub000/internal/model"
)

// PermissionRepository reads the menu forest and the grant/override tables
// and performs the transactional bulk replacements.
type PermissionRepository interface {
	// MenuByPath loads the menu node whose path matches exactly.
	MenuByPath(ctx context.Context, path string) (*model.MenuNode, error)
	// ActiveMenus returns every active menu node in ascending order_index.
	ActiveMenus(ctx context.Context) ([]model.MenuNode, error)
	// Override loads the per-actor exception for (userID, menuID), if any.
	Override(ctx context.Context, userID, menuID int64) (*model.UserOverride, error)
	// OverridesForUser returns every exception recorded for the actor.
	OverridesForUser(ctx context.Context, userID int64) ([]model.UserOverride, error)
	// HasRoleGrant reports whether (roleID, menuID) is granted.
	HasRoleGrant(ctx context.Context, roleID, menuID int64) (bool, error)
	// RoleMenuIDs returns every menu ID granted to the role.
	RoleMenuIDs(ctx context.Context, roleID int64) ([]int64, error)
	// ReplaceRolePermissions swaps the full grant set for a role inside one
	// transaction; readers never observe a partial set.
	ReplaceRolePermissions(ctx context.Context, roleID int64, menuIDs []int64) error
	// ReplaceUserOverrides swaps the full override set for an actor inside
	// one transaction.
	ReplaceUserOverrides(ctx context.Context, userID int64, overrides []model.UserOverride) error
}
