package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"excursion-booking/internal/models"
	"excursion-booking/internal/utils"
)

// ClientMeta describes the client a session is opened for
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

// AuthService handles authentication-related business logic
type AuthService struct {
	users      UserRepository
	sessions   SessionRepository
	tokens     *TokenService
	sessionTTL time.Duration
	now        func() time.Time
	logger     zerolog.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(users UserRepository, sessions SessionRepository, tokens *TokenService, sessionTTL time.Duration, logger zerolog.Logger) *AuthService {
	if sessionTTL <= 0 {
		sessionTTL = 7 * 24 * time.Hour
	}
	return &AuthService{
		users:      users,
		sessions:   sessions,
		tokens:     tokens,
		sessionTTL: sessionTTL,
		now:        time.Now,
		logger:     logger.With().Str("component", "auth").Logger(),
	}
}

// Register creates a new user account and opens a session
func (s *AuthService) Register(ctx context.Context, req *models.RegisterRequest, meta ClientMeta) (*models.AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.Create(ctx, models.NewUser{
		Email:        req.Email,
		PasswordHash: hashedPassword,
		FirstName:    req.FirstName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info().Int64("user_id", user.ID).Msg("User registered")
	return s.openSession(ctx, user, meta)
}

// Login authenticates a user by email and password
func (s *AuthService) Login(ctx context.Context, req *models.LoginRequest, meta ClientMeta) (*models.AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, req.Email)
	if errors.Is(err, models.ErrUserNotFound) {
		return nil, models.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !user.IsActive {
		return nil, models.ErrInvalidCredentials
	}

	ok, err := utils.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		s.logger.Warn().Int64("user_id", user.ID).Msg("Failed login attempt")
		return nil, models.ErrInvalidCredentials
	}

	return s.openSession(ctx, user, meta)
}

// Refresh exchanges a refresh token for a new token pair and rotates the session
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	userID, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	hash := utils.HashToken(refreshToken)
	session, err := s.sessions.GetByRefreshToken(ctx, hash)
	if errors.Is(err, models.ErrSessionNotFound) {
		return nil, models.ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if !session.IsActive || session.UserID != userID {
		return nil, models.ErrSessionInactive
	}
	if session.IsExpired(s.now()) {
		if err := s.sessions.Deactivate(ctx, hash); err != nil {
			s.logger.Error().Err(err).Int64("session_id", session.ID).Msg("Failed to deactivate expired session")
		}
		return nil, models.ErrSessionExpired
	}

	tokens, err := s.tokens.GenerateTokens(userID)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Rotate(ctx, hash, utils.HashToken(tokens.RefreshToken), s.now().Add(s.sessionTTL)); err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			return nil, models.ErrSessionInactive
		}
		return nil, fmt.Errorf("failed to rotate session: %w", err)
	}

	return tokens, nil
}

// Logout deactivates the session of a refresh token
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.sessions.Deactivate(ctx, utils.HashToken(refreshToken)); err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			return nil
		}
		return fmt.Errorf("failed to deactivate session: %w", err)
	}
	return nil
}

// ValidateAccessToken returns the user id of a valid access token
func (s *AuthService) ValidateAccessToken(token string) (int64, error) {
	return s.tokens.ValidateAccessToken(token)
}

func (s *AuthService) openSession(ctx context.Context, user *models.User, meta ClientMeta) (*models.AuthResponse, error) {
	tokens, err := s.tokens.GenerateTokens(user.ID)
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		UserID:       user.ID,
		RefreshToken: utils.HashToken(tokens.RefreshToken),
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
		ExpiresAt:    s.now().Add(s.sessionTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &models.AuthResponse{
		TokenPair:   *tokens,
		ID:          user.ID,
		FirstName:   user.FirstName,
		Email:       user.Email,
		PhoneNumber: user.PhoneNumber,
	}, nil
}
