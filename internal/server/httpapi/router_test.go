package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Hayal27/ITPCMS-sub000/internal/errs"
	"github.com/Hayal27/ITPCMS-sub000/internal/limiter"
	"github.com/Hayal27/ITPCMS-sub000/internal/model"
	"github.com/Hayal27/ITPCMS-sub000/internal/token"
)

type memRevocations struct {
	mu     sync.Mutex
	tokens map[string]time.Time
}

func (m *memRevocations) Insert(_ context.Context, tok string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens == nil {
		m.tokens = map[string]time.Time{}
	}
	m.tokens[tok] = exp
	return nil
}

func (m *memRevocations) IsRevoked(_ context.Context, tok string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tokens[tok]
	return ok, nil
}

func (m *memRevocations) DeleteExpired(context.Context, time.Time) (int64, error) { return 0, nil }

type noPresence struct{}

func (noPresence) SetOnline(context.Context, int64, bool) error { return nil }

// fakeFlows drives the handlers without a real state machine. "good" is
// the only accepted password; the admin identifier gets the admin role.
type fakeFlows struct {
	tokens *token.Service
	now    func() time.Time
}

func (f *fakeFlows) Authenticate(_ context.Context, identifier, password, _ string) (model.Tokens, *model.Account, error) {
	if password != "good" {
		return model.Tokens{}, nil, &errs.FailedAttemptError{Attempts: 1}
	}
	acc := &model.Account{ID: 7, RoleID: 2}
	if identifier == "admin" {
		acc = &model.Account{ID: 1, RoleID: model.RoleAdministrator}
	}
	toks, err := f.tokens.Issue(acc.ID, acc.RoleID, f.now())
	return toks, acc, err
}

func (f *fakeFlows) ForgotPassword(context.Context, string) error    { return nil }
func (f *fakeFlows) RedeemAccount(context.Context, string, string) error {
	return errs.ErrInvalidCode
}
func (f *fakeFlows) ResendRedemption(context.Context, string) error { return errs.ErrNotLocked }
func (f *fakeFlows) ResetPassword(context.Context, string, string, string) error {
	return errs.ErrWeakPassword
}
func (f *fakeFlows) ChangePassword(context.Context, int64, string, string) error { return nil }

type fakePermEngine struct {
	resolveAllowed bool
	setRoleCalls   int
}

func (f *fakePermEngine) Resolve(context.Context, int64, int64, string) (bool, error) {
	return f.resolveAllowed, nil
}

func (f *fakePermEngine) BuildNavigationTree(context.Context, int64, int64) ([]model.MenuNode, error) {
	return []model.MenuNode{{ID: 1, Path: "dashboard", OrderIndex: 1, Active: true}}, nil
}

func (f *fakePermEngine) SetRolePermissions(context.Context, int64, []int64) error {
	f.setRoleCalls++
	return nil
}

func (f *fakePermEngine) SetUserPermissions(context.Context, int64, []model.UserOverride) error {
	return nil
}

func newTestRouter(t *testing.T) (http.Handler, *fakePermEngine) {
	t.Helper()
	now := time.Now()
	h, perms := newTestRouterAt(t, &now)
	return h, perms
}

// newTestRouterAt builds a router whose token service reads the clock
// through the supplied pointer, so tests can move time forward.
func newTestRouterAt(t *testing.T, now *time.Time) (http.Handler, *fakePermEngine) {
	t.Helper()
	clock := func() time.Time { return *now }
	tokens := token.NewService([]byte("test-key"), &memRevocations{}, noPresence{},
		30*time.Minute, 5*time.Minute, 4*time.Hour, zap.NewNop()).WithClock(clock)
	perms := &fakePermEngine{resolveAllowed: true}
	lim := limiter.NewMemory(rate.Limit(1000), 1000, time.Minute, 1000)
	r := NewRouter(Config{CookieName: "cms_session", TrustProxy: false},
		&fakeFlows{tokens: tokens, now: clock}, tokens, perms, lim, zap.NewNop())
	return r, perms
}

func doJSON(t *testing.T, h http.Handler, method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "10.0.0.1:54321"
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == "cms_session" && c.Value != "" {
			return c
		}
	}
	t.Fatalf("session cookie not set")
	return nil
}

func TestLogin_SetsCookieAndAuthenticatesFollowUp(t *testing.T) {
	t.Parallel()
	h, _ := newTestRouter(t)

	w := doJSON(t, h, http.MethodPost, "/api/v1/auth/login", `{"identifier":"editor","password":"good"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login status=%d body=%s", w.Code, w.Body.String())
	}
	c := sessionCookie(t, w)
	if !c.HttpOnly {
		t.Fatalf("session cookie must be http-only")
	}

	w = doJSON(t, h, http.MethodGet, "/api/v1/auth/navigation", "", c)
	if w.Code != http.StatusOK {
		t.Fatalf("navigation status=%d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Menus []struct {
			Path string `json:"path"`
		} `json:"menus"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Menus) != 1 || resp.Menus[0].Path != "dashboard" {
		t.Fatalf("menus=%+v", resp.Menus)
	}
}

func TestLogin_FailureExposesAttemptCount(t *testing.T) {
	t.Parallel()
	h, _ := newTestRouter(t)

	w := doJSON(t, h, http.MethodPost, "/api/v1/auth/login", `{"identifier":"editor","password":"bad"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "invalid_credentials") {
		t.Fatalf("body=%s", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "attempt 1") {
		t.Fatalf("attempt count missing from body: %s", w.Body.String())
	}
}

func TestProtectedRoute_RequiresSession(t *testing.T) {
	t.Parallel()
	h, _ := newTestRouter(t)

	w := doJSON(t, h, http.MethodGet, "/api/v1/auth/navigation", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d, want 401 without a session", w.Code)
	}

	w = doJSON(t, h, http.MethodGet, "/api/v1/auth/navigation", "", &http.Cookie{Name: "cms_session", Value: "garbage"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d, want 401 for a forged token", w.Code)
	}
}

func TestLogout_RevokesBearer(t *testing.T) {
	t.Parallel()
	h, _ := newTestRouter(t)

	w := doJSON(t, h, http.MethodPost, "/api/v1/auth/login", `{"identifier":"editor","password":"good"}`, nil)
	c := sessionCookie(t, w)

	w = doJSON(t, h, http.MethodPut, "/api/v1/auth/logout/7", "", c)
	if w.Code != http.StatusOK {
		t.Fatalf("logout status=%d body=%s", w.Code, w.Body.String())
	}

	w = doJSON(t, h, http.MethodGet, "/api/v1/auth/navigation", "", c)
	if w.Code != http.StatusUnauthorized || !strings.Contains(w.Body.String(), "token_revoked") {
		t.Fatalf("revoked token accepted: status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestLogout_RevokesPresentedBearerAfterSlide(t *testing.T) {
	t.Parallel()
	now := time.Now()
	h, _ := newTestRouterAt(t, &now)

	w := doJSON(t, h, http.MethodPost, "/api/v1/auth/login", `{"identifier":"editor","password":"good"}`, nil)
	original := sessionCookie(t, w)

	// Past the renewal threshold the auth middleware slides the token, so
	// the logout request carries the original bearer while a fresh one is
	// being issued. Both must die.
	now = now.Add(6 * time.Minute)
	w = doJSON(t, h, http.MethodPut, "/api/v1/auth/logout/7", "", original)
	if w.Code != http.StatusOK {
		t.Fatalf("logout status=%d body=%s", w.Code, w.Body.String())
	}
	var renewed *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "cms_session" && c.Value != "" && c.Value != original.Value {
			renewed = c
		}
	}
	if renewed == nil {
		t.Fatalf("expected a renewed session cookie on the logout response")
	}

	w = doJSON(t, h, http.MethodGet, "/api/v1/auth/navigation", "", original)
	if w.Code != http.StatusUnauthorized || !strings.Contains(w.Body.String(), "token_revoked") {
		t.Fatalf("presented token accepted after logout: status=%d body=%s", w.Code, w.Body.String())
	}
	w = doJSON(t, h, http.MethodGet, "/api/v1/auth/navigation", "", renewed)
	if w.Code != http.StatusUnauthorized || !strings.Contains(w.Body.String(), "token_revoked") {
		t.Fatalf("renewed token accepted after logout: status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestLogout_CannotTargetAnotherActor(t *testing.T) {
	t.Parallel()
	h, _ := newTestRouter(t)

	w := doJSON(t, h, http.MethodPost, "/api/v1/auth/login", `{"identifier":"editor","password":"good"}`, nil)
	c := sessionCookie(t, w)

	w = doJSON(t, h, http.MethodPut, "/api/v1/auth/logout/99", "", c)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status=%d, want 403 for cross-actor logout", w.Code)
	}
}

func TestPermissionRoutes_AdminOnly(t *testing.T) {
	t.Parallel()
	h, perms := newTestRouter(t)

	w := doJSON(t, h, http.MethodPost, "/api/v1/auth/login", `{"identifier":"editor","password":"good"}`, nil)
	c := sessionCookie(t, w)
	w = doJSON(t, h, http.MethodPut, "/api/v1/permissions/roles/2", `{"menu_ids":[1,2]}`, c)
	if w.Code != http.StatusForbidden {
		t.Fatalf("non-admin status=%d, want 403", w.Code)
	}

	w = doJSON(t, h, http.MethodPost, "/api/v1/auth/login", `{"identifier":"admin","password":"good"}`, nil)
	c = sessionCookie(t, w)
	w = doJSON(t, h, http.MethodPut, "/api/v1/permissions/roles/2", `{"menu_ids":[1,2]}`, c)
	if w.Code != http.StatusOK {
		t.Fatalf("admin status=%d body=%s", w.Code, w.Body.String())
	}
	if perms.setRoleCalls != 1 {
		t.Fatalf("replace not invoked")
	}
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()
	h, _ := newTestRouter(t)

	w := doJSON(t, h, http.MethodPost, "/api/v1/auth/redeem-account", `{"identifier":"x","code":"1"}`, nil)
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "invalid_code") {
		t.Fatalf("redeem: status=%d body=%s", w.Code, w.Body.String())
	}

	w = doJSON(t, h, http.MethodPost, "/api/v1/auth/resend-redemption", `{"identifier":"x"}`, nil)
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "not_locked") {
		t.Fatalf("resend: status=%d body=%s", w.Code, w.Body.String())
	}

	w = doJSON(t, h, http.MethodPost, "/api/v1/auth/forgot-password", `{"identifier":"anyone"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("forgot-password must be success-shaped: %d", w.Code)
	}
}
