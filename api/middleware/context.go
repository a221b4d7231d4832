package middleware

import (
	"context"

	pkgAuth "github.com/angelmondragon/vendorcrm-backend/pkg/auth"
)

type contextKey string

const (
	ctxPrincipal contextKey = "principal"
	ctxAccessID  contextKey = "access_id"
)

// WithPrincipal stores the resolved principal for downstream handlers.
func WithPrincipal(ctx context.Context, principal pkgAuth.Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxPrincipal, principal)
}

// PrincipalFromContext returns the principal resolved by Auth, or nil.
func PrincipalFromContext(ctx context.Context) pkgAuth.Principal {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxPrincipal).(pkgAuth.Principal); ok {
		return v
	}
	return nil
}

func withAccessID(ctx context.Context, accessID string) context.Context {
	return context.WithValue(ctx, ctxAccessID, accessID)
}

// AccessIDFromContext returns the session id (jti) of the current token.
func AccessIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxAccessID).(string); ok {
		return v
	}
	return ""
}
