package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/app/user"
	"parley/internal/pkg/auth/jwt"
	"parley/internal/pkg/errs"
)

type fakeUserLookup struct {
	users map[int64]user.User
}

func (f fakeUserLookup) LookupUser(_ context.Context, id int64) (user.User, error) {
	u, ok := f.users[id]
	if !ok {
		return user.User{}, errs.NewError(errs.ErrUserNotFound)
	}
	return u, nil
}

const verifierSecret = "verifier-test-secret"

func newVerifier() *TokenVerifier {
	lookup := fakeUserLookup{users: map[int64]user.User{
		1: {ID: 1, Username: "alice", DisplayName: "Alice"},
	}}
	return NewTokenVerifier(verifierSecret, lookup)
}

func assertUnauthorized(t *testing.T, err error) {
	t.Helper()

	var customErr *errs.CustomError
	require.ErrorAs(t, err, &customErr)
	assert.Equal(t, errs.ErrUnauthorized, customErr.Code)
}

func TestVerifyAcceptsValidAccessToken(t *testing.T) {
	v := newVerifier()

	token, err := jwt.GenerateToken(1, jwt.TokenTypeAccess, verifierSecret, jwt.AccessTokenExpiration)
	require.NoError(t, err)

	u, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
	assert.Equal(t, "alice", u.Username)
}

func TestVerifyRejectsEmptyToken(t *testing.T) {
	v := newVerifier()

	_, err := v.Verify(context.Background(), "")
	assertUnauthorized(t, err)
}

func TestVerifyRejectsMalformedToken(t *testing.T) {
	v := newVerifier()

	_, err := v.Verify(context.Background(), "not.a.jwt")
	assertUnauthorized(t, err)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	v := newVerifier()

	token, err := jwt.GenerateToken(1, jwt.TokenTypeAccess, "other-secret", jwt.AccessTokenExpiration)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), token)
	assertUnauthorized(t, err)
}

func TestVerifyRejectsRefreshTokenType(t *testing.T) {
	v := newVerifier()

	token, err := jwt.GenerateToken(1, jwt.TokenTypeRefresh, verifierSecret, jwt.RefreshTokenExpiration)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), token)
	assertUnauthorized(t, err)
}

func TestVerifyRejectsUnknownUser(t *testing.T) {
	v := newVerifier()

	token, err := jwt.GenerateToken(99, jwt.TokenTypeAccess, verifierSecret, jwt.AccessTokenExpiration)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), token)
	assertUnauthorized(t, err)
}
