// Package httpapi exposes the access-control endpoints and the route
// guards consumed by the CRUD controllers.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/Hayal27/ITPCMS-sub000/internal/errs"
	"github.com/Hayal27/ITPCMS-sub000/internal/limiter"
	"github.com/Hayal27/ITPCMS-sub000/internal/model"
)

// AuthFlows is the login state machine surface consumed by the handlers.
type AuthFlows interface {
	Authenticate(ctx context.Context, identifier, password, sourceAddress string) (model.Tokens, *model.Account, error)
	ForgotPassword(ctx context.Context, identifier string) error
	RedeemAccount(ctx context.Context, identifier, code string) error
	ResendRedemption(ctx context.Context, identifier string) error
	ResetPassword(ctx context.Context, identifier, code, newPassword string) error
	ChangePassword(ctx context.Context, actorID int64, current, newPassword string) error
}

// Sessions is the token lifecycle surface consumed by the handlers.
type Sessions interface {
	Verify(ctx context.Context, token string) (model.Actor, string, error)
	Revoke(ctx context.Context, token string, actorID int64) error
}

// Permissions is the resolution engine surface consumed by the handlers.
type Permissions interface {
	Resolve(ctx context.Context, actorID, roleID int64, menuPath string) (bool, error)
	BuildNavigationTree(ctx context.Context, actorID, roleID int64) ([]model.MenuNode, error)
	SetRolePermissions(ctx context.Context, roleID int64, menuIDs []int64) error
	SetUserPermissions(ctx context.Context, userID int64, overrides []model.UserOverride) error
}

// Config carries the transport knobs.
type Config struct {
	CookieName         string
	CookieSecure       bool
	TrustProxy         bool
	CORSAllowedOrigins []string
	SessionTTLSeconds  int
}

// Handlers wires services into HTTP handlers.
type Handlers struct {
	cfg      Config
	auth     AuthFlows
	sessions Sessions
	perms    Permissions
	lim      *limiter.Memory
	log      *zap.Logger
}

// NewRouter builds the chi router with the full middleware stack.
func NewRouter(cfg Config, auth AuthFlows, sessions Sessions, perms Permissions,
	lim *limiter.Memory, log *zap.Logger) http.Handler {
	if cfg.CookieName == "" {
		cfg.CookieName = "cms_session"
	}
	h := &Handlers{cfg: cfg, auth: auth, sessions: sessions, perms: perms, lim: lim, log: log}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(RequestLogger(log))
	r.Use(SecurityHeaders)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Authorization"},
			AllowCredentials: true,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.With(RateLimit(h.lim, "login", cfg.TrustProxy)).Post("/auth/login", h.Login)
		r.With(RateLimit(h.lim, "forgot", cfg.TrustProxy)).Post("/auth/forgot-password", h.ForgotPassword)
		r.Post("/auth/reset-password", h.ResetPassword)
		r.Post("/auth/redeem-account", h.RedeemAccount)
		r.With(RateLimit(h.lim, "resend", cfg.TrustProxy)).Post("/auth/resend-redemption", h.ResendRedemption)

		r.Group(func(r chi.Router) {
			r.Use(h.Authn)
			r.Put("/auth/logout/{actorID}", h.Logout)
			r.Post("/auth/change-password", h.ChangePassword)
			r.Get("/auth/navigation", h.Navigation)

			r.Group(func(r chi.Router) {
				r.Use(RequireRole(model.RoleAdministrator))
				r.Use(h.RequireMenuPermission("settings/permissions"))
				r.Put("/permissions/roles/{roleID}", h.SetRolePermissions)
				r.Put("/permissions/users/{userID}", h.SetUserPermissions)
			})
		})
	})
	return r
}

// bearerToken pulls the session token from the cookie, falling back to the
// Authorization header.
func (h *Handlers) bearerToken(r *http.Request) string {
	if c, err := r.Cookie(h.cfg.CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func (h *Handlers) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   h.cfg.SessionTTLSeconds,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteNoneMode,
	})
}

func (h *Handlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteNoneMode,
	})
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// Login authenticates and sets the session cookie on success.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	toks, acc, err := h.auth.Authenticate(r.Context(), req.Identifier, req.Password, ClientIP(r, h.cfg.TrustProxy))
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	h.setSessionCookie(w, toks.SessionToken)
	writeJSON(w, http.StatusOK, map[string]any{
		"actor_id": acc.ID,
		"role_id":  acc.RoleID,
		"token":    toks.SessionToken,
	})
}

// ForgotPassword always answers success-shaped.
func (h *Handlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier string `json:"identifier"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	if err := h.auth.ForgotPassword(r.Context(), req.Identifier); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// ResetPassword sets a new password after code validation.
func (h *Handlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier  string `json:"identifier"`
		Code        string `json:"code"`
		NewPassword string `json:"new_password"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	if err := h.auth.ResetPassword(r.Context(), req.Identifier, req.Code, req.NewPassword); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RedeemAccount restores a locked account.
func (h *Handlers) RedeemAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier string `json:"identifier"`
		Code       string `json:"code"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	if err := h.auth.RedeemAccount(r.Context(), req.Identifier, req.Code); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ResendRedemption issues a fresh redemption code for a locked account.
func (h *Handlers) ResendRedemption(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier string `json:"identifier"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	if err := h.auth.ResendRedemption(r.Context(), req.Identifier); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// Logout revokes the bearer token. The revocation insert is synchronous;
// its failure fails the request.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromCtx(r.Context())
	target, err := strconv.ParseInt(chi.URLParam(r, "actorID"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "invalid actor id")
		return
	}
	if target != actor.ID && !actor.IsAdmin() {
		writeServiceError(w, r, h.log, errs.ErrPermissionDenied)
		return
	}
	tok, _ := TokenFromCtx(r.Context())
	if err := h.sessions.Revoke(r.Context(), tok, target); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	// A renewal issued by the middleware on this same request is a live
	// token too; it dies with the session.
	if renewed, ok := RenewedTokenFromCtx(r.Context()); ok && renewed != "" {
		if err := h.sessions.Revoke(r.Context(), renewed, target); err != nil {
			writeServiceError(w, r, h.log, err)
			return
		}
	}
	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ChangePassword replaces the password of the authenticated actor.
func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromCtx(r.Context())
	var req struct {
		Current string `json:"current"`
		New     string `json:"new"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	if err := h.auth.ChangePassword(r.Context(), actor.ID, req.Current, req.New); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Navigation returns the menu tree visible to the authenticated actor.
func (h *Handlers) Navigation(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromCtx(r.Context())
	nodes, err := h.perms.BuildNavigationTree(r.Context(), actor.ID, actor.RoleID)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	type node struct {
		ID       int64  `json:"id"`
		ParentID *int64 `json:"parent_id"`
		Path     string `json:"path"`
		Order    int    `json:"order_index"`
	}
	out := make([]node, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, node{ID: n.ID, ParentID: n.ParentID, Path: n.Path, Order: n.OrderIndex})
	}
	writeJSON(w, http.StatusOK, map[string]any{"menus": out})
}

// SetRolePermissions replaces a role's grant set wholesale.
func (h *Handlers) SetRolePermissions(w http.ResponseWriter, r *http.Request) {
	roleID, err := strconv.ParseInt(chi.URLParam(r, "roleID"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "invalid role id")
		return
	}
	var req struct {
		MenuIDs []int64 `json:"menu_ids"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	if err := h.perms.SetRolePermissions(r.Context(), roleID, req.MenuIDs); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SetUserPermissions replaces an actor's override set wholesale.
func (h *Handlers) SetUserPermissions(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "invalid user id")
		return
	}
	var req struct {
		Overrides []struct {
			MenuID int64  `json:"menu_id"`
			Type   string `json:"type"`
		} `json:"overrides"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	overrides := make([]model.UserOverride, 0, len(req.Overrides))
	for _, o := range req.Overrides {
		t := model.OverrideType(o.Type)
		if t != model.OverrideAllow && t != model.OverrideDeny {
			writeError(w, r, http.StatusBadRequest, "bad_request", "override type must be allow or deny")
			return
		}
		overrides = append(overrides, model.UserOverride{UserID: userID, MenuID: o.MenuID, Type: t})
	}
	if err := h.perms.SetUserPermissions(r.Context(), userID, overrides); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
