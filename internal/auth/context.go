package auth

import "context"

type claimsContextKey struct{}

// ContextWithClaims attaches verified session claims to the context.
func ContextWithClaims(ctx context.Context, claims *SessionClaims) context.Context {
	if claims == nil {
		return ctx
	}
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext extracts the verified session claims from the context.
func ClaimsFromContext(ctx context.Context) (*SessionClaims, bool) {
	if ctx == nil {
		return nil, false
	}
	v, ok := ctx.Value(claimsContextKey{}).(*SessionClaims)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// IdentityIDFromContext returns the authenticated identity id, if any.
func IdentityIDFromContext(ctx context.Context) (string, bool) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok || claims.Subject == "" {
		return "", false
	}
	return claims.Subject, true
}
