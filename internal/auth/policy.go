package auth

import (
	"context"
	"errors"
	"strconv"
)

var (
	ErrUnauthenticated = errors.New("token missing or invalid")
	ErrForbidden       = errors.New("not the owner")
)

// RequireIdentity fails with ErrInvalidToken when the request carried a token
// that did not verify, and with ErrUnauthenticated for anonymous requests.
func RequireIdentity(ctx context.Context) (Identity, error) {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		if TokenErrorFromContext(ctx) != nil {
			return Identity{}, ErrInvalidToken
		}
		return Identity{}, ErrUnauthenticated
	}
	return identity, nil
}

// AuthorizeOwner allows the request only when the authenticated user is the
// owner of the resource. No roles, no groups: plain id equality.
func AuthorizeOwner(ctx context.Context, ownerID int) error {
	identity, err := RequireIdentity(ctx)
	if err != nil {
		return err
	}
	if strconv.Itoa(ownerID) != strconv.Itoa(identity.UserID) {
		return ErrForbidden
	}
	return nil
}
