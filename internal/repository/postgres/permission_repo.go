package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/Hayal27/ITPCMS-sub000/internal/errs"
	"github.com/Hayal27/ITPCMS-sub000/internal/model"
)

// PermissionRepo implements PermissionRepository using PostgreSQL.
type PermissionRepo struct{ db *DB }

// NewPermissionRepo constructs a permission repository.
func NewPermissionRepo(db *DB) *PermissionRepo { return &PermissionRepo{db: db} }

// MenuByPath selects the menu node with the exact path.
func (r *PermissionRepo) MenuByPath(ctx context.Context, path string) (*model.MenuNode, error) {
	const q = `
SELECT id, parent_id, path, order_index, is_active FROM cms_menus WHERE path=$1`
	var m model.MenuNode
	err := r.db.Pool.QueryRow(ctx, q, path).Scan(&m.ID, &m.ParentID, &m.Path, &m.OrderIndex, &m.Active)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, errs.ErrNotFound
	}
	return &m, nil
}

// ActiveMenus returns all active nodes in ascending order_index.
func (r *PermissionRepo) ActiveMenus(ctx context.Context) ([]model.MenuNode, error) {
	const q = `
SELECT id, parent_id, path, order_index, is_active
FROM cms_menus WHERE is_active ORDER BY order_index`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []model.MenuNode
	for rows.Next() {
		var m model.MenuNode
		if err := rows.Scan(&m.ID, &m.ParentID, &m.Path, &m.OrderIndex, &m.Active); err != nil {
			return nil, err
		}
		nodes = append(nodes, m)
	}
	return nodes, rows.Err()
}

// Override selects the per-actor exception for (userID, menuID).
// Absence of an override is not an error; it returns (nil, nil).
func (r *PermissionRepo) Override(ctx context.Context, userID, menuID int64) (*model.UserOverride, error) {
	const q = `
SELECT user_id, menu_id, type FROM user_menu_permissions WHERE user_id=$1 AND menu_id=$2`
	var o model.UserOverride
	err := r.db.Pool.QueryRow(ctx, q, userID, menuID).Scan(&o.UserID, &o.MenuID, &o.Type)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

// OverridesForUser returns all exceptions recorded for the actor.
func (r *PermissionRepo) OverridesForUser(ctx context.Context, userID int64) ([]model.UserOverride, error) {
	const q = `
SELECT user_id, menu_id, type FROM user_menu_permissions WHERE user_id=$1`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var overrides []model.UserOverride
	for rows.Next() {
		var o model.UserOverride
		if err := rows.Scan(&o.UserID, &o.MenuID, &o.Type); err != nil {
			return nil, err
		}
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}

// HasRoleGrant reports whether the role may reach the menu.
func (r *PermissionRepo) HasRoleGrant(ctx context.Context, roleID, menuID int64) (bool, error) {
	const q = `
SELECT EXISTS(SELECT 1 FROM role_menu_permissions WHERE role_id=$1 AND menu_id=$2)`
	var granted bool
	if err := r.db.Pool.QueryRow(ctx, q, roleID, menuID).Scan(&granted); err != nil {
		return false, err
	}
	return granted, nil
}

// RoleMenuIDs returns every menu granted to the role.
func (r *PermissionRepo) RoleMenuIDs(ctx context.Context, roleID int64) ([]int64, error) {
	const q = `SELECT menu_id FROM role_menu_permissions WHERE role_id=$1`
	rows, err := r.db.Pool.Query(ctx, q, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ReplaceRolePermissions swaps the full grant set for a role in one transaction.
func (r *PermissionRepo) ReplaceRolePermissions(ctx context.Context, roleID int64, menuIDs []int64) error {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM role_menu_permissions WHERE role_id=$1`, roleID); err != nil {
		return err
	}
	for _, menuID := range menuIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO role_menu_permissions (role_id, menu_id) VALUES ($1, $2)`,
			roleID, menuID); err != nil {
			// duplicate menu ids in the request hit the primary key
			if isUniqueViolation(err) {
				return errs.ErrAlreadyExists
			}
			return err
		}
	}
	return tx.Commit(ctx)
}

// ReplaceUserOverrides swaps the full override set for an actor in one transaction.
func (r *PermissionRepo) ReplaceUserOverrides(ctx context.Context, userID int64, overrides []model.UserOverride) error {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM user_menu_permissions WHERE user_id=$1`, userID); err != nil {
		return err
	}
	for _, o := range overrides {
		if _, err := tx.Exec(ctx,
			`INSERT INTO user_menu_permissions (user_id, menu_id, type) VALUES ($1, $2, $3)`,
			userID, o.MenuID, string(o.Type)); err != nil {
			if isUniqueViolation(err) {
				return errs.ErrAlreadyExists
			}
			return err
		}
	}
	return tx.Commit(ctx)
}
