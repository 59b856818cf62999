package httpapi

import (
	"context"

	"github.com/Hayal27/ITPCMS-sub000/internal/model"
)

type ctxKey string

const (
	ctxRequestID ctxKey = "request_id"
	ctxActor     ctxKey = "actor"
	ctxToken     ctxKey = "token"
	ctxRenewed   ctxKey = "renewed_token"
)

// WithRequestID stores the request id in context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxRequestID, id)
}

// RequestID fetches the request id from context.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(ctxRequestID).(string)
	return v
}

// WithActor stores the authenticated actor in context.
func WithActor(ctx context.Context, a model.Actor) context.Context {
	return context.WithValue(ctx, ctxActor, a)
}

// ActorFromCtx fetches the authenticated actor from context.
func ActorFromCtx(ctx context.Context) (model.Actor, bool) {
	a, ok := ctx.Value(ctxActor).(model.Actor)
	return a, ok
}

// WithToken stores the bearer value the client presented, for later
// revocation. Logout must invalidate this exact value, not a renewed copy.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ctxToken, token)
}

// TokenFromCtx fetches the presented bearer value from context.
func TokenFromCtx(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(ctxToken).(string)
	return t, ok
}

// WithRenewedToken stores the replacement token issued by the sliding
// renewal on this request, when one was issued.
func WithRenewedToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ctxRenewed, token)
}

// RenewedTokenFromCtx fetches the renewed token from context.
func RenewedTokenFromCtx(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(ctxRenewed).(string)
	return t, ok
}
