package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/rs/zerolog"
)

const (
	guestSessionName  = "guest_session"
	guestSessionIDKey = "guest_id"

	guestSessionContextKey contextKey = "guest_session_id"
)

// SessionMiddleware issues the guest session cookie that anonymous carts are keyed by
type SessionMiddleware struct {
	store  sessions.Store
	maxAge time.Duration
	logger zerolog.Logger
}

// NewCookieStore creates the cookie store backing guest sessions
func NewCookieStore(secret string, maxAge time.Duration, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// NewSessionMiddleware creates a new session middleware
func NewSessionMiddleware(store sessions.Store, maxAge time.Duration, logger zerolog.Logger) *SessionMiddleware {
	return &SessionMiddleware{
		store:  store,
		maxAge: maxAge,
		logger: logger.With().Str("component", "session").Logger(),
	}
}

// GuestSession makes sure every anonymous request carries a guest session id.
// Authenticated requests pass through untouched.
func (m *SessionMiddleware) GuestSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUserIDFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}

		session, err := m.store.Get(r, guestSessionName)
		if err != nil {
			// Tampered or stale cookie; a fresh session was returned
			m.logger.Debug().Err(err).Msg("Discarding invalid guest session cookie")
		}

		guestID, _ := session.Values[guestSessionIDKey].(string)
		if guestID == "" {
			guestID = uuid.NewString()
			session.Values[guestSessionIDKey] = guestID
			session.Options.MaxAge = int(m.maxAge.Seconds())
			if err := session.Save(r, w); err != nil {
				m.logger.Error().Err(err).Msg("Failed to save guest session")
				WriteError(w, http.StatusInternalServerError, "Internal Server Error")
				return
			}
		}

		ctx := context.WithValue(r.Context(), guestSessionContextKey, guestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetGuestSessionID returns the guest session id of the request, if any
func GetGuestSessionID(ctx context.Context) string {
	id, _ := ctx.Value(guestSessionContextKey).(string)
	return id
}
