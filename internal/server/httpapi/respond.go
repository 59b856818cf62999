package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/Hayal27/ITPCMS-sub000/internal/errs"
)

type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: code, Message: msg, RequestID: RequestID(r.Context())})
}

// writeServiceError maps domain sentinels onto the HTTP surface. Store
// failures never leak details to the client; they are logged with full
// context and answered with a generic internal error.
func writeServiceError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	var fa *errs.FailedAttemptError
	switch {
	case errors.As(err, &fa):
		// The attempt count is deliberately exposed for UX feedback.
		writeError(w, r, http.StatusUnauthorized, "invalid_credentials", fa.Error())
	case errors.Is(err, errs.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
	case errors.Is(err, errs.ErrAccountLocked):
		writeError(w, r, http.StatusUnauthorized, "account_locked", "account is temporarily locked")
	case errors.Is(err, errs.ErrAccountSuspended):
		writeError(w, r, http.StatusUnauthorized, "account_suspended", "account suspended; a redemption code was sent")
	case errors.Is(err, errs.ErrIPBlocked):
		writeError(w, r, http.StatusForbidden, "ip_blocked", "source address is blocked")
	case errors.Is(err, errs.ErrTokenRevoked):
		writeError(w, r, http.StatusUnauthorized, "token_revoked", "session was logged out")
	case errors.Is(err, errs.ErrSessionCeiling):
		writeError(w, r, http.StatusUnauthorized, "session_ceiling", "session exceeded its maximum lifetime")
	case errors.Is(err, errs.ErrTokenExpired):
		writeError(w, r, http.StatusUnauthorized, "token_expired", "session expired")
	case errors.Is(err, errs.ErrWrongPassword):
		writeError(w, r, http.StatusUnauthorized, "wrong_current_password", "current password does not match")
	case errors.Is(err, errs.ErrInvalidCode):
		writeError(w, r, http.StatusBadRequest, "invalid_code", "code is invalid or expired")
	case errors.Is(err, errs.ErrWeakPassword):
		writeError(w, r, http.StatusBadRequest, "weak_password", "password does not meet strength requirements")
	case errors.Is(err, errs.ErrNotLocked):
		writeError(w, r, http.StatusBadRequest, "not_locked", "account is not locked")
	case errors.Is(err, errs.ErrPermissionDenied):
		writeError(w, r, http.StatusForbidden, "permission_denied", "access denied")
	case errors.Is(err, errs.ErrAlreadyExists):
		writeError(w, r, http.StatusBadRequest, "duplicate_entry", "duplicate entries in request")
	case errors.Is(err, errs.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", "resource not found")
	default:
		log.Error("internal error", zap.String("path", r.URL.Path),
			zap.String("request_id", RequestID(r.Context())), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
