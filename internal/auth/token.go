package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("token invalid")
	ErrEmptySecret  = errors.New("token secret empty")
)

// Claims carried by a bearer token. Tokens do not expire.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	UserID   int    `json:"id"`
}

type TokenService struct {
	secret []byte
}

func NewTokenService(secret string) (*TokenService, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &TokenService{
		secret: []byte(secret),
	}, nil
}

func (s *TokenService) SignToken(claims Claims) (string, error) {
	if claims.Username == "" || claims.UserID <= 0 {
		return "", fmt.Errorf("sign token: username or user id missing")
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(s.secret)
}

// VerifyToken checks the signature of the token and returns its claims.
// Every failure wraps ErrInvalidToken.
func (s *TokenService) VerifyToken(token string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(
		token,
		&Claims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID <= 0 {
		return nil, fmt.Errorf("%w: user id missing", ErrInvalidToken)
	}

	return claims, nil
}
