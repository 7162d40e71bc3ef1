package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"excursion-booking/internal/models"
)

type stubValidator map[string]int64

func (s stubValidator) ValidateAccessToken(token string) (int64, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return 0, models.ErrInvalidToken
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("test response"))
	})
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	handler := RequestIDMiddleware(LoggingMiddleware(logger)(okHandler()))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	req.Header.Set("User-Agent", "test-agent")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	requestID := rr.Header().Get("X-Request-ID")
	require.NotEmpty(t, requestID)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/test", entry["path"])
	assert.Equal(t, float64(200), entry["status"])
	assert.Equal(t, float64(len("test response")), entry["size"])
	assert.Equal(t, "127.0.0.1", entry["ip"])
	assert.Equal(t, "test-agent", entry["user_agent"])
	assert.Equal(t, requestID, entry["request_id"])
}

func TestRequestIDMiddleware_KeepsIncomingID(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, "abc", seen)
	assert.Equal(t, "abc", rr.Header().Get("X-Request-ID"))
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "10.0.0.2:80", "203.0.113.5"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.7"}, "10.0.0.2:80", "198.51.100.7"},
		{"remote addr", nil, "192.0.2.1:5555", "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}

func TestErrorHandlingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	handler := ErrorHandlingMiddleware(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(errors.New("boom"))
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"Internal Server Error"}`, rr.Body.String())
	assert.Contains(t, buf.String(), "Recovered from panic")
}

func TestCORSMiddleware(t *testing.T) {
	handler := CORSMiddleware(DefaultCORSConfig([]string{"https://shop.example.com", "*.example.org"}))(okHandler())

	tests := []struct {
		name       string
		method     string
		origin     string
		preflight  bool
		wantOrigin string
		wantStatus int
	}{
		{"allowed origin", http.MethodGet, "https://shop.example.com", false, "https://shop.example.com", http.StatusOK},
		{"wildcard subdomain", http.MethodGet, "https://a.example.org", false, "https://a.example.org", http.StatusOK},
		{"suffix without dot is rejected", http.MethodGet, "https://evilexample.org", false, "", http.StatusOK},
		{"unknown origin", http.MethodGet, "https://evil.test", false, "", http.StatusOK},
		{"preflight", http.MethodOptions, "https://shop.example.com", true, "https://shop.example.com", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/cart", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantOrigin, rr.Header().Get("Access-Control-Allow-Origin"))
			if tt.preflight {
				assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "Authorization")
			}
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	auth := NewAuthMiddleware(stubValidator{"good": 42}, zerolog.Nop())

	var gotID int64
	var gotOK bool
	handler := auth.LoadUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, gotOK = GetUserIDFromContext(r.Context())
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantOK     bool
	}{
		{"anonymous", "", http.StatusOK, false},
		{"valid token", "Bearer good", http.StatusOK, true},
		{"lowercase scheme", "bearer good", http.StatusOK, true},
		{"invalid token", "Bearer bad", http.StatusUnauthorized, false},
		{"other scheme ignored", "Basic Zm9vOmJhcg==", http.StatusOK, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotID, gotOK = 0, false
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantOK, gotOK)
			if tt.wantOK {
				assert.Equal(t, int64(42), gotID)
			}
		})
	}

	t.Run("require auth", func(t *testing.T) {
		protected := auth.LoadUser(RequireAuth(okHandler()))

		rr := httptest.NewRecorder()
		protected.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)

		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		req.Header.Set("Authorization", "Bearer good")
		rr = httptest.NewRecorder()
		protected.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestSessionMiddleware_GuestSession(t *testing.T) {
	store := NewCookieStore("0123456789abcdef0123456789abcdef", 30*24*time.Hour, false)
	sessions := NewSessionMiddleware(store, 30*24*time.Hour, zerolog.Nop())

	var identity models.CartIdentity
	handler := sessions.GuestSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity = CartIdentity(r.Context())
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/cart", nil))

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, guestSessionName, cookies[0].Name)
	assert.Equal(t, 30*24*60*60, cookies[0].MaxAge)
	assert.True(t, cookies[0].HttpOnly)
	require.NoError(t, identity.Validate())
	first := identity.GuestSessionID
	assert.NotEmpty(t, first)

	t.Run("cookie is reused", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/cart", nil)
		req.AddCookie(cookies[0])
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, first, identity.GuestSessionID)
		assert.Empty(t, rr.Result().Cookies(), "an existing session is not rewritten")
	})

	t.Run("authenticated requests skip the guest session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/cart", nil)
		req = req.WithContext(SetUserIDContext(req.Context(), 9))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Empty(t, rr.Result().Cookies())
		require.NotNil(t, identity.UserID)
		assert.Equal(t, int64(9), *identity.UserID)
		assert.Empty(t, identity.GuestSessionID)
	})
}

func TestLoginRateLimiter(t *testing.T) {
	rl := NewLoginRateLimiter(3, time.Minute)
	now := time.Now()
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		allowed, _ := rl.Allow("192.168.1.1")
		assert.True(t, allowed, "attempt %d", i+1)
	}

	allowed, retryAfter := rl.Allow("192.168.1.1")
	assert.False(t, allowed)
	assert.Equal(t, time.Minute, retryAfter)

	allowed, _ = rl.Allow("192.168.1.2")
	assert.True(t, allowed, "other IPs are independent")

	now = now.Add(time.Minute + time.Second)
	allowed, _ = rl.Allow("192.168.1.1")
	assert.True(t, allowed, "window expired")

	now = now.Add(2 * time.Minute)
	rl.Cleanup()
	assert.Empty(t, rl.attempts)
}

func TestLoginRateLimit(t *testing.T) {
	handler := LoginRateLimit(NewLoginRateLimiter(1, time.Minute))(okHandler())

	send := func(method string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/auth/login", nil)
		req.RemoteAddr = "10.1.1.1:1234"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	assert.Equal(t, http.StatusOK, send(http.MethodPost).Code)
	limited := send(http.MethodPost)
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, send(http.MethodGet).Code)
}
