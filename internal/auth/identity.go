package auth

import "context"

type contextKey string

const (
	contextKeyToken    = contextKey("bearer-token")
	contextKeyIdentity = contextKey("identity")
	contextKeyTokenErr = contextKey("token-error")
)

// Identity is the authenticated user behind a request.
type Identity struct {
	UserID   int
	Username string
}

func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, contextKeyToken, token)
}

// TokenFromContext returns the raw bearer token, if the request carried one.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(contextKeyToken).(string)
	return token, ok
}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, contextKeyIdentity, identity)
}

// IdentityFromContext returns the resolved identity and true, or the zero
// identity and false for anonymous requests.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(contextKeyIdentity).(Identity)
	return identity, ok
}

// WithTokenError records that the request carried a token which failed
// verification. The request itself proceeds anonymously.
func WithTokenError(ctx context.Context, err error) context.Context {
	return context.WithValue(ctx, contextKeyTokenErr, err)
}

// TokenErrorFromContext returns the token verification error, or nil.
func TokenErrorFromContext(ctx context.Context) error {
	err, _ := ctx.Value(contextKeyTokenErr).(error)
	return err
}
