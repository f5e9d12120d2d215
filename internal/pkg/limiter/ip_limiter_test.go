package limiter

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestClientIP(t *testing.T) {
	assert.Equal(t, "192.0.2.7", ClientIP("192.0.2.7:51234"))
	assert.Equal(t, "::1", ClientIP("[::1]:8080"))
	assert.Equal(t, "192.0.2.7", ClientIP("192.0.2.7"))
	assert.Equal(t, "unknown_ip", ClientIP(""))
}

func TestGetLimiterReusesPerIP(t *testing.T) {
	i := NewIPRateLimiter(rate.Limit(1), 1)

	first := i.GetLimiter("192.0.2.1")
	second := i.GetLimiter("192.0.2.1")
	other := i.GetLimiter("192.0.2.2")

	assert.Same(t, first, second)
	assert.NotSame(t, first, other)
}

func TestMiddlewareEnforcesBurst(t *testing.T) {
	i := NewIPRateLimiter(rate.Limit(0.001), 2)

	handler := i.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	doRequest := func() int {
		r := httptest.NewRequest(http.MethodPost, "/api/auth/token", nil)
		r.RemoteAddr = "192.0.2.50:40000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, doRequest())
	assert.Equal(t, http.StatusNoContent, doRequest())
	assert.Equal(t, http.StatusTooManyRequests, doRequest())

	// A different client IP gets its own bucket.
	r := httptest.NewRequest(http.MethodPost, "/api/auth/token", nil)
	r.RemoteAddr = "192.0.2.51:40000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
