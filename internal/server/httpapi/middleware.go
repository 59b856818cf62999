package httpapi

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/Hayal27/ITPCMS-sub000/internal/errs"
	"github.com/Hayal27/ITPCMS-sub000/internal/limiter"
)

// RequestIDMiddleware tags every request with a fresh id, echoed in the
// X-Request-ID header and carried in the context for log correlation.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := ""
		if id, err := uuid.NewV4(); err == nil {
			rid = id.String()
		}
		r = r.WithContext(WithRequestID(r.Context(), rid))
		w.Header().Set("X-Request-ID", rid)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// RequestLogger emits one structured line per request.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sr, r)
			log.Info("http",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", sr.status),
				zap.Duration("dur", time.Since(start)),
				zap.String("request_id", RequestID(r.Context())),
			)
		})
	}
}

// SecurityHeaders sets the standard browser hardening headers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}

// RateLimit applies the injected in-memory limiter per route and source
// address. It is best-effort throttling in front of the store-backed
// lockout, not a correctness boundary.
func RateLimit(l *limiter.Memory, route string, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(route + ":" + ClientIP(r, trustProxy)) {
				writeError(w, r, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP extracts the caller address, honoring X-Forwarded-For only
// behind a trusted proxy.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Authn verifies the session token from the cookie (or Authorization
// header), slides it when the service issues a renewal, and stores actor
// and bearer value in the request context.
func (h *Handlers) Authn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := h.bearerToken(r)
		if tok == "" {
			writeError(w, r, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		actor, renewed, err := h.sessions.Verify(r.Context(), tok)
		if err != nil {
			writeServiceError(w, r, h.log, err)
			return
		}
		// The context keeps the token the client actually presented so a
		// logout on this request revokes the value the client holds, not
		// just the renewed copy.
		ctx := WithActor(r.Context(), actor)
		ctx = WithToken(ctx, tok)
		if renewed != "" {
			h.setSessionCookie(w, renewed)
			ctx = WithRenewedToken(ctx, renewed)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole gates a subtree to the listed roles.
func RequireRole(roles ...int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromCtx(r.Context())
			if !ok {
				writeError(w, r, http.StatusUnauthorized, "unauthorized", "authentication required")
				return
			}
			for _, role := range roles {
				if actor.RoleID == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, r, http.StatusForbidden, "permission_denied", "role not allowed")
		})
	}
}

// RequireMenuPermission gates a subtree behind the permission engine for
// the given menu path. CRUD controllers outside this core consume it.
func (h *Handlers) RequireMenuPermission(path string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromCtx(r.Context())
			if !ok {
				writeError(w, r, http.StatusUnauthorized, "unauthorized", "authentication required")
				return
			}
			allowed, err := h.perms.Resolve(r.Context(), actor.ID, actor.RoleID, path)
			if err != nil {
				writeServiceError(w, r, h.log, err)
				return
			}
			if !allowed {
				writeServiceError(w, r, h.log, errs.ErrPermissionDenied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
