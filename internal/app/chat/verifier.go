/*
Package chat contains the realtime messaging core.

This file defines the credential verifier contract used during the WebSocket
authentication handshake, plus the JWT-backed implementation.
*/
package chat

import (
	"context"

	"parley/internal/app/user"
	"parley/internal/pkg/auth/jwt"
	"parley/internal/pkg/errs"
)

// CredentialVerifier turns an opaque bearer credential into a user identity or
// a rejection. Rejections close the connection with no frames sent.
type CredentialVerifier interface {
	Verify(ctx context.Context, token string) (user.User, error)
}

// UserLookup resolves a user id to an identity; backed by the persistence store.
type UserLookup interface {
	LookupUser(ctx context.Context, id int64) (user.User, error)
}

// TokenVerifier is the production CredentialVerifier: it validates a signed
// access token and resolves the claimed user against the store.
type TokenVerifier struct {
	secret string
	users  UserLookup
}

// NewTokenVerifier constructs a TokenVerifier over the signing secret and user lookup.
func NewTokenVerifier(secret string, users UserLookup) *TokenVerifier {
	return &TokenVerifier{secret: secret, users: users}
}

// Verify validates the token signature, lifetime, and type, then loads the user.
// Any failure collapses to an unauthenticated rejection.
func (v *TokenVerifier) Verify(ctx context.Context, token string) (user.User, error) {
	if token == "" {
		return user.User{}, errs.NewError(errs.ErrUnauthorized)
	}

	payload, err := jwt.ParseToken(token, v.secret)
	if err != nil || payload.TokenType != jwt.TokenTypeAccess {
		return user.User{}, errs.NewError(errs.ErrUnauthorized)
	}

	u, err := v.users.LookupUser(ctx, payload.UserID)
	if err != nil {
		return user.User{}, errs.NewError(errs.ErrUnauthorized)
	}

	return u, nil
}
