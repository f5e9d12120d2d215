package handler

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsernameFormat(t *testing.T) {
	valid := []string{"abc", "alice_99", "A_b_C", "exactly_thirty_characters_long"}
	for _, name := range valid {
		assert.True(t, usernameRegex.MatchString(name), "expected %q to be valid", name)
	}

	invalid := []string{"", "ab", "has space", "almost-ok", "ünïcode", "waytoolong_waytoolong_waytoolong"}
	for _, name := range invalid {
		assert.False(t, usernameRegex.MatchString(name), "expected %q to be invalid", name)
	}
}

func TestRefreshCookieLifecycle(t *testing.T) {
	rec := httptest.NewRecorder()
	setRefreshCookie(rec, "refresh-token-value", "production")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	c := cookies[0]
	assert.Equal(t, refreshCookieName, c.Name)
	assert.Equal(t, "refresh-token-value", c.Value)
	assert.True(t, c.HttpOnly, "refresh token must be unreadable from scripts")
	assert.True(t, c.Secure, "refresh cookie is HTTPS-only outside development")
	assert.Positive(t, c.MaxAge)

	rec = httptest.NewRecorder()
	setRefreshCookie(rec, "dev-token", "development")
	require.Len(t, rec.Result().Cookies(), 1)
	assert.False(t, rec.Result().Cookies()[0].Secure)

	rec = httptest.NewRecorder()
	clearRefreshCookie(rec)
	cookies = rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Negative(t, cookies[0].MaxAge, "clearing must expire the cookie")
	assert.Empty(t, cookies[0].Value)
}
