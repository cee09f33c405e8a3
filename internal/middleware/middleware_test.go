package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateDocumentType(t *testing.T) {
	assert.NoError(t, ValidateDocumentType("commercial_invoice"))
	assert.NoError(t, ValidateDocumentType("  Phytosanitary_Certificate  "))
	assert.NoError(t, ValidateDocumentType("other"))
	assert.Error(t, ValidateDocumentType(""))
	assert.Error(t, ValidateDocumentType("love_letter"))
}

func TestValidateDocumentStatus(t *testing.T) {
	for _, s := range []string{"uploaded", "checked", "approved", "rejected", "APPROVED"} {
		assert.NoError(t, ValidateDocumentStatus(s), s)
	}
	assert.Error(t, ValidateDocumentStatus("vaporized"))
	assert.Error(t, ValidateDocumentStatus(""))
}

func TestValidateMimeType(t *testing.T) {
	for _, m := range []string{"", "image/png", "image/jpeg", "application/pdf", "text/plain", "text/csv", "application/json"} {
		assert.NoError(t, ValidateMimeType(m), m)
	}
	assert.Error(t, ValidateMimeType("application/x-msdownload"))
	assert.Error(t, ValidateMimeType("video/mp4"))
}

func TestAPIKeyAuth(t *testing.T) {
	mw := APIKeyAuth(map[string]string{"acme": "secret-1"})
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(GetTenantFromContext(r.Context())))
	}))

	do := func(setup func(*http.Request)) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/acme/shipments", nil)
		if setup != nil {
			setup(req)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("missing key", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do(nil).Code)
	})

	t.Run("wrong key", func(t *testing.T) {
		rec := do(func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") })
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("bearer key binds tenant", func(t *testing.T) {
		rec := do(func(r *http.Request) { r.Header.Set("Authorization", "Bearer secret-1") })
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "acme", rec.Body.String())
	})

	t.Run("x-api-key header also works", func(t *testing.T) {
		rec := do(func(r *http.Request) { r.Header.Set("X-API-Key", "secret-1") })
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("health endpoints bypass auth", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(3, 1)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("acme:1.2.3.4"), "request %d should pass", i)
	}
	assert.False(t, rl.Allow("acme:1.2.3.4"), "bucket exhausted")

	// buckets are independent per key
	assert.True(t, rl.Allow("acme:5.6.7.8"))
	assert.True(t, rl.Allow("rival:1.2.3.4"))
}

func TestRateLimitMiddleware(t *testing.T) {
	mw := RateLimitMiddleware(1, 1)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "1.2.3.4:5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do("/v1/acme/x").Code)
	rec := do("/v1/acme/x")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// health stays reachable under pressure
	assert.Equal(t, http.StatusOK, do("/health").Code)
}
