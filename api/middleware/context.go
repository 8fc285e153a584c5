package middleware

import "context"

type contextKey string

const (
	ctxSubject contextKey = "admin_subject"
	ctxRole    contextKey = "actor_role"
	ctxTokenID contextKey = "token_id"
	ctxLimited contextKey = "rate_limited"
)

// SubjectFromContext returns the admin identity set by AdminAuth.
func SubjectFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxSubject).(string)
	return v
}

func RoleFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxRole).(string)
	return v
}

// TokenIDFromContext returns the jti of the access token on the request.
func TokenIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxTokenID).(string)
	return v
}

// WithAdmin seeds the context the way AdminAuth does. Handlers under test
// use it to skip token parsing.
func WithAdmin(ctx context.Context, subject, role, tokenID string) context.Context {
	ctx = context.WithValue(ctx, ctxSubject, subject)
	ctx = context.WithValue(ctx, ctxRole, role)
	return context.WithValue(ctx, ctxTokenID, tokenID)
}

// RateLimited reports whether SoftRateLimit flagged the request.
func RateLimited(ctx context.Context) bool {
	v, _ := ctx.Value(ctxLimited).(bool)
	return v
}
