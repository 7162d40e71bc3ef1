package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"excursion-booking/internal/models"
)

type contextKey string

const (
	UserIDContextKey contextKey = "user_id"
)

// TokenValidator resolves an access token to a user id
type TokenValidator interface {
	ValidateAccessToken(token string) (int64, error)
}

// AuthMiddleware provides authentication functionality
type AuthMiddleware struct {
	tokens TokenValidator
	logger zerolog.Logger
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokens TokenValidator, logger zerolog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		tokens: tokens,
		logger: logger.With().Str("component", "auth_middleware").Logger(),
	}
}

// LoadUser reads an optional bearer token and adds the user id to the context.
// Requests without a token continue anonymously; an invalid token is rejected.
func (m *AuthMiddleware) LoadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		userID, err := m.tokens.ValidateAccessToken(token)
		if err != nil {
			m.logger.Debug().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("Rejected access token")
			WriteError(w, http.StatusUnauthorized, models.ErrInvalidToken.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(SetUserIDContext(r.Context(), userID)))
	})
}

// RequireAuth middleware ensures user is authenticated
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUserIDFromContext(r.Context()); !ok {
			WriteError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// GetUserIDFromContext retrieves the authenticated user id from request context
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(UserIDContextKey).(int64)
	return userID, ok && userID > 0
}

// SetUserIDContext sets the user id in the context
func SetUserIDContext(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, UserIDContextKey, userID)
}

// CartIdentity returns the owner of the request's cart: the authenticated
// user, otherwise the guest session.
func CartIdentity(ctx context.Context) models.CartIdentity {
	if userID, ok := GetUserIDFromContext(ctx); ok {
		return models.UserIdentity(userID)
	}
	if guestID := GetGuestSessionID(ctx); guestID != "" {
		return models.GuestIdentity(guestID)
	}
	return models.CartIdentity{}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
