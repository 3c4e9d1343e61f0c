package middleware

import (
	"net/http"
	"strings"

	"github.com/2beens/bloglist/internal/auth"
	"github.com/2beens/bloglist/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

//go:generate mockgen -source=$GOFILE -destination=auth_mocks_test.go -package=middleware_test

const bearerPrefix = "bearer "

type tokenVerifier interface {
	VerifyToken(token string) (*auth.Claims, error)
}

// ExtractToken stores the raw bearer token from the Authorization header in the
// request context. Requests without a bearer token pass through untouched.
func ExtractToken() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if len(authHeader) >= len(bearerPrefix) &&
				strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
				token := strings.TrimSpace(authHeader[len(bearerPrefix):])
				r = r.WithContext(auth.WithToken(r.Context(), token))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ResolveUser verifies the token placed by ExtractToken and attaches the
// resulting identity to the request context. A token that fails verification
// is recorded in the context and the request continues anonymously, so only
// handlers that require an identity answer 401.
func ResolveUser(verifier tokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := auth.TokenFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verifyToken(r, verifier, token)
			if err != nil {
				log.Tracef("[invalid token] [auth middleware] %s => %s", r.URL.Path, err)
				next.ServeHTTP(w, r.WithContext(auth.WithTokenError(r.Context(), err)))
				return
			}

			ctx := auth.WithIdentity(r.Context(), auth.Identity{
				UserID:   claims.UserID,
				Username: claims.Username,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func verifyToken(r *http.Request, verifier tokenVerifier, token string) (*auth.Claims, error) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "middleware.resolveUser")
	defer span.End()

	claims, err := verifier.VerifyToken(token)
	if err != nil {
		span.SetStatus(codes.Error, "token-invalid")
		return nil, err
	}
	span.SetStatus(codes.Ok, "ok")
	return claims, nil
}
