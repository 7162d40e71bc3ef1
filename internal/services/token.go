package services

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"excursion-booking/internal/models"
)

// TokenConfig represents JWT configuration
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// TokenClaims are the claims carried by access and refresh tokens
type TokenClaims struct {
	UserID int64 `json:"id"`
	jwt.RegisteredClaims
}

// TokenService issues and validates HS256 access and refresh tokens
type TokenService struct {
	config TokenConfig
	now    func() time.Time
}

// NewTokenService creates a new token service
func NewTokenService(config TokenConfig) (*TokenService, error) {
	if config.AccessSecret == "" || config.RefreshSecret == "" {
		return nil, fmt.Errorf("%w: JWT secrets are required", models.ErrInternalConfiguration)
	}
	if config.AccessTTL <= 0 {
		config.AccessTTL = 30 * time.Minute
	}
	if config.RefreshTTL <= 0 {
		config.RefreshTTL = 7 * 24 * time.Hour
	}
	return &TokenService{config: config, now: time.Now}, nil
}

// GenerateTokens issues a new access and refresh token pair for a user
func (s *TokenService) GenerateTokens(userID int64) (*models.TokenPair, error) {
	access, err := s.sign(userID, s.config.AccessTTL, s.config.AccessSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}
	refresh, err := s.sign(userID, s.config.RefreshTTL, s.config.RefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return &models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// ValidateAccessToken returns the user id of a valid access token
func (s *TokenService) ValidateAccessToken(token string) (int64, error) {
	return s.parse(token, s.config.AccessSecret)
}

// ValidateRefreshToken returns the user id of a valid refresh token
func (s *TokenService) ValidateRefreshToken(token string) (int64, error) {
	return s.parse(token, s.config.RefreshSecret)
}

func (s *TokenService) sign(userID int64, ttl time.Duration, secret string) (string, error) {
	now := s.now()
	claims := TokenClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func (s *TokenService) parse(tokenString, secret string) (int64, error) {
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, fmt.Errorf("%w: token expired", models.ErrInvalidToken)
		}
		return 0, fmt.Errorf("%w: %v", models.ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID <= 0 {
		return 0, models.ErrInvalidToken
	}
	return claims.UserID, nil
}
