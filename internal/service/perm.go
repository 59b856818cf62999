package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Hayal27/ITPCMS-sub000/internal/errs"
	"github.com/Hayal27/ITPCMS-sub000/internal/model"
	"github.com/Hayal27/ITPCMS-sub000/internal/repository"
)

// PermService computes allow/deny decisions by composing role grants with
// per-actor overrides and menu-tree ancestry.
type PermService struct {
	perms repository.PermissionRepository
	log   *zap.Logger
}

// NewPermService constructs the permission resolution engine.
func NewPermService(perms repository.PermissionRepository, log *zap.Logger) *PermService {
	return &PermService{perms: perms, log: log}
}

// Resolve decides whether the actor may reach menuPath. Only managed paths
// are gated: a path with no menu row passes through. Administrators bypass
// the computation entirely.
func (s *PermService) Resolve(ctx context.Context, actorID, roleID int64, menuPath string) (bool, error) {
	if roleID == model.RoleAdministrator {
		return true, nil
	}

	menu, err := s.perms.MenuByPath(ctx, menuPath)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return true, nil // unmanaged path
		}
		return false, err
	}

	allowed, err := s.decide(ctx, actorID, roleID, menu.ID)
	if err != nil {
		return false, err
	}
	if !allowed {
		s.log.Warn("permission denied",
			zap.Int64("actor", actorID), zap.Int64("role", roleID), zap.String("path", menuPath))
	}
	return allowed, nil
}

// decide applies the override-then-role-grant rule for one menu node.
func (s *PermService) decide(ctx context.Context, actorID, roleID, menuID int64) (bool, error) {
	override, err := s.perms.Override(ctx, actorID, menuID)
	if err != nil {
		return false, err
	}
	if override != nil {
		return override.Type == model.OverrideAllow, nil
	}
	return s.perms.HasRoleGrant(ctx, roleID, menuID)
}

// BuildNavigationTree returns the menu nodes visible to the actor in
// ascending order_index. Any allowed node pulls its whole parent chain
// into the result so container nodes stay visible whenever a child is
// reachable.
func (s *PermService) BuildNavigationTree(ctx context.Context, actorID, roleID int64) ([]model.MenuNode, error) {
	nodes, err := s.perms.ActiveMenus(ctx)
	if err != nil {
		return nil, err
	}
	if roleID == model.RoleAdministrator {
		return nodes, nil
	}

	granted := map[int64]bool{}
	ids, err := s.perms.RoleMenuIDs(ctx, roleID)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		granted[id] = true
	}

	overrides := map[int64]model.OverrideType{}
	ovs, err := s.perms.OverridesForUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	for _, o := range ovs {
		overrides[o.MenuID] = o.Type
	}

	byID := make(map[int64]model.MenuNode, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	visible := map[int64]bool{}
	for _, n := range nodes {
		allowed := granted[n.ID]
		if t, ok := overrides[n.ID]; ok {
			allowed = t == model.OverrideAllow
		}
		if !allowed {
			continue
		}
		// ancestor closure
		for id := n.ID; ; {
			if visible[id] {
				break
			}
			visible[id] = true
			parent := byID[id].ParentID
			if parent == nil {
				break
			}
			id = *parent
		}
	}

	out := make([]model.MenuNode, 0, len(visible))
	for _, n := range nodes {
		if visible[n.ID] {
			out = append(out, n)
		}
	}
	return out, nil
}

// SetRolePermissions replaces the full grant set for a role atomically.
func (s *PermService) SetRolePermissions(ctx context.Context, roleID int64, menuIDs []int64) error {
	if err := s.perms.ReplaceRolePermissions(ctx, roleID, menuIDs); err != nil {
		return err
	}
	s.log.Info("role permissions replaced", zap.Int64("role", roleID), zap.Int("grants", len(menuIDs)))
	return nil
}

// SetUserPermissions replaces the full override set for an actor atomically.
func (s *PermService) SetUserPermissions(ctx context.Context, userID int64, overrides []model.UserOverride) error {
	if err := s.perms.ReplaceUserOverrides(ctx, userID, overrides); err != nil {
		return err
	}
	s.log.Info("user overrides replaced", zap.Int64("actor", userID), zap.Int("overrides", len(overrides)))
	return nil
}
