package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/confero/confero/internal/app/models"
	"github.com/confero/confero/internal/pkg/apperrors"
	"github.com/confero/confero/internal/pkg/dberrors"
	"github.com/confero/confero/internal/pkg/logger"
)

// ISessionRepository defines the session store consumed by the auth service.
type ISessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.Session, error)
	Rotate(ctx context.Context, sessionID, oldHash, newHash, ipAddress, userAgent string, expiresAt, now time.Time) (bool, error)
	Revoke(ctx context.Context, sessionID string, at time.Time) error
	RevokeAllForUser(ctx context.Context, userID int64, at time.Time) error
}

// SessionRepository handles session database operations
type SessionRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create persists a new login session
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	sql, args, err := r.sb.Insert("sessions").
		Columns("session_id", "user_id", "refresh_token_hash", "ip_address", "user_agent",
			"expires_at", "last_active_at").
		Values(session.SessionID, session.UserID, session.RefreshTokenHash, session.IPAddress,
			session.UserAgent, session.ExpiresAt, session.LastActiveAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create session query: %w", err)
	}

	_, err = r.db.Exec(ctx, sql, args...)
	if err != nil {
		if dberrors.IsDuplicateConstraintError(err, "sessions_session_id_key") {
			logger.Warn().Str("sessionID", session.SessionID).Msg("Attempted to create duplicate session id")
			return apperrors.ErrTokenInvalid
		}
		logger.Error().Err(err).Int64("userID", session.UserID).Msg("Error executing create session query")
		return fmt.Errorf("error creating session: %w", err)
	}

	return nil
}

// GetBySessionID retrieves a session by its identifier
func (r *SessionRepository) GetBySessionID(ctx context.Context, sessionID string) (*models.Session, error) {
	sql, args, err := r.sb.Select("id", "session_id", "user_id", "refresh_token_hash", "ip_address",
		"user_agent", "expires_at", "last_active_at", "rotated_at", "revoked_at", "created_at").
		From("sessions").
		Where(squirrel.Eq{"session_id": sessionID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get session query: %w", err)
	}

	session := &models.Session{}
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&session.ID, &session.SessionID, &session.UserID, &session.RefreshTokenHash,
		&session.IPAddress, &session.UserAgent, &session.ExpiresAt, &session.LastActiveAt,
		&session.RotatedAt, &session.RevokedAt, &session.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrSessionNotFound
		}
		logger.Error().Err(err).Str("sessionID", sessionID).Msg("Error scanning session row")
		return nil, fmt.Errorf("error retrieving session: %w", err)
	}

	return session, nil
}

// Rotate atomically replaces the refresh token hash and advances the session
// window. The update is keyed on the prior hash so that two concurrent
// refresh calls presenting the same token produce exactly one winner; the
// loser observes rotated == false.
func (r *SessionRepository) Rotate(ctx context.Context, sessionID, oldHash, newHash, ipAddress, userAgent string, expiresAt, now time.Time) (bool, error) {
	sql, args, err := r.sb.Update("sessions").
		Set("refresh_token_hash", newHash).
		Set("ip_address", ipAddress).
		Set("user_agent", userAgent).
		Set("expires_at", expiresAt).
		Set("last_active_at", now).
		Set("rotated_at", now).
		Where(squirrel.Eq{"session_id": sessionID, "refresh_token_hash": oldHash}).
		Where("revoked_at IS NULL").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build rotate session query: %w", err)
	}

	cmdTag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Str("sessionID", sessionID).Msg("Error executing rotate session query")
		return false, fmt.Errorf("error rotating session: %w", err)
	}

	return cmdTag.RowsAffected() == 1, nil
}

// Revoke marks a single session as revoked
func (r *SessionRepository) Revoke(ctx context.Context, sessionID string, at time.Time) error {
	sql, args, err := r.sb.Update("sessions").
		Set("revoked_at", at).
		Where(squirrel.Eq{"session_id": sessionID}).
		Where("revoked_at IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build revoke session query: %w", err)
	}

	cmdTag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Str("sessionID", sessionID).Msg("Error executing revoke session query")
		return fmt.Errorf("error revoking session: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return apperrors.ErrSessionNotFound
	}

	return nil
}

// RevokeAllForUser marks every non-revoked session of a user as revoked.
// Used by password reset to force re-authentication everywhere.
func (r *SessionRepository) RevokeAllForUser(ctx context.Context, userID int64, at time.Time) error {
	sql, args, err := r.sb.Update("sessions").
		Set("revoked_at", at).
		Where(squirrel.Eq{"user_id": userID}).
		Where("revoked_at IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build revoke all sessions query: %w", err)
	}

	// No ErrSessionNotFound here, a user with no active sessions is fine.
	_, err = r.db.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("userID", userID).Msg("Error executing revoke all sessions query")
		return fmt.Errorf("error revoking user sessions: %w", err)
	}

	return nil
}

// CleanupExpired removes sessions that expired or were revoked more than
// thirty days ago. Revoked sessions are kept for a while for audit.
func (r *SessionRepository) CleanupExpired(ctx context.Context) (int64, error) {
	thirtyDaysAgo := time.Now().Add(-30 * 24 * time.Hour)

	sql, args, err := r.sb.Delete("sessions").
		Where(squirrel.Or{
			squirrel.Lt{"expires_at": thirtyDaysAgo},
			squirrel.Lt{"revoked_at": thirtyDaysAgo},
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build cleanup sessions query: %w", err)
	}

	cmdTag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing cleanup sessions query")
		return 0, fmt.Errorf("error cleaning up sessions: %w", err)
	}

	deletedCount := cmdTag.RowsAffected()
	logger.Info().Int64("deletedCount", deletedCount).Msg("Cleaned up old sessions")

	return deletedCount, nil
}
