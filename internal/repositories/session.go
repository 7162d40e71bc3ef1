package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"excursion-booking/internal/models"
)

// SessionRepository handles refresh-token sessions. Tokens are stored hashed;
// callers pass the hash, never the raw token.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, user_id, refresh_token, ip_address, user_agent, expires_at, is_active, created_at, updated_at`

// Create stores a new active session
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (user_id, refresh_token, ip_address, user_agent, expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING id, is_active, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		session.UserID,
		session.RefreshToken,
		session.IPAddress,
		session.UserAgent,
		session.ExpiresAt,
	).Scan(&session.ID, &session.IsActive, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetByRefreshToken retrieves a session by its hashed refresh token
func (r *SessionRepository) GetByRefreshToken(ctx context.Context, tokenHash string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE refresh_token = $1`

	session := &models.Session{}
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&session.ID,
		&session.UserID,
		&session.RefreshToken,
		&session.IPAddress,
		&session.UserAgent,
		&session.ExpiresAt,
		&session.IsActive,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// Rotate swaps the refresh token of an active session and extends its expiry
func (r *SessionRepository) Rotate(ctx context.Context, oldHash, newHash string, expiresAt time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET refresh_token = $2, expires_at = $3, updated_at = NOW()
		WHERE refresh_token = $1 AND is_active = TRUE`, oldHash, newHash, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to rotate session: %w", err)
	}
	return expectAffected(result, models.ErrSessionNotFound)
}

// Deactivate marks a session inactive
func (r *SessionRepository) Deactivate(ctx context.Context, tokenHash string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET is_active = FALSE, updated_at = NOW()
		WHERE refresh_token = $1`, tokenHash)
	if err != nil {
		return fmt.Errorf("failed to deactivate session: %w", err)
	}
	return expectAffected(result, models.ErrSessionNotFound)
}

// DeactivateAllForUser ends every session of a user
func (r *SessionRepository) DeactivateAllForUser(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET is_active = FALSE, updated_at = NOW()
		WHERE user_id = $1 AND is_active = TRUE`, userID)
	if err != nil {
		return fmt.Errorf("failed to deactivate user sessions: %w", err)
	}
	return nil
}
