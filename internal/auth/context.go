package auth

import "context"

type callerKey struct{}

// caller is what the HTTP layer learned about the request: the user resolved
// from a live session and the bearer token that named that session.
type caller struct {
	user  *User
	token string
}

func callerFrom(ctx context.Context) caller {
	if ctx == nil {
		return caller{}
	}
	c, _ := ctx.Value(callerKey{}).(caller)
	return c
}

// ContextWithUser records the session's user. The copy stored is detached
// from user, so later edits by the caller do not leak into the request.
func ContextWithUser(ctx context.Context, user User) context.Context {
	c := callerFrom(ctx)
	c.user = &user
	return context.WithValue(ctx, callerKey{}, c)
}

// UserFromContext returns the user set by ContextWithUser.
func UserFromContext(ctx context.Context) (User, bool) {
	c := callerFrom(ctx)
	if c.user == nil {
		return User{}, false
	}
	return *c.user, true
}

// ContextWithToken records the raw token so Logout can revoke exactly the
// session the request came in on. Empty tokens are ignored.
func ContextWithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	c := callerFrom(ctx)
	c.token = token
	return context.WithValue(ctx, callerKey{}, c)
}

// TokenFromContext returns the token set by ContextWithToken.
func TokenFromContext(ctx context.Context) (string, bool) {
	c := callerFrom(ctx)
	return c.token, c.token != ""
}
