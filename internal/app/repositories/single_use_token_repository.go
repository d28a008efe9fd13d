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
	"github.com/confero/confero/internal/pkg/logger"
)

// ISingleUseTokenRepository defines the verification/reset token store
// consumed by the auth service.
type ISingleUseTokenRepository interface {
	Create(ctx context.Context, token *models.SingleUseToken) error
	Consume(ctx context.Context, tokenHash string, tokenType models.TokenType, now time.Time) (int64, error)
}

// SingleUseTokenRepository handles single-use token database operations
type SingleUseTokenRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewSingleUseTokenRepository creates a new SingleUseTokenRepository
func NewSingleUseTokenRepository(db *pgxpool.Pool) *SingleUseTokenRepository {
	return &SingleUseTokenRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create persists a new single-use token
func (r *SingleUseTokenRepository) Create(ctx context.Context, token *models.SingleUseToken) error {
	sql, args, err := r.sb.Insert("single_use_tokens").
		Columns("user_id", "token_type", "token_hash", "expires_at").
		Values(token.UserID, token.TokenType, token.TokenHash, token.ExpiresAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create token query: %w", err)
	}

	_, err = r.db.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("userID", token.UserID).Str("tokenType", string(token.TokenType)).Msg("Error executing create token query")
		return fmt.Errorf("error creating single-use token: %w", err)
	}

	return nil
}

// Consume atomically marks a valid token as used and returns its owner.
// The used_at IS NULL guard makes the lookup-and-mark race-proof: of N
// concurrent consumers of the same token, exactly one sees a row update.
// Returns apperrors.ErrSingleUseTokenInvalid for unknown, expired or
// already-consumed tokens.
func (r *SingleUseTokenRepository) Consume(ctx context.Context, tokenHash string, tokenType models.TokenType, now time.Time) (int64, error) {
	sql, args, err := r.sb.Update("single_use_tokens").
		Set("used_at", now).
		Where(squirrel.Eq{"token_hash": tokenHash, "token_type": tokenType}).
		Where("used_at IS NULL").
		Where(squirrel.Gt{"expires_at": now}).
		Suffix("RETURNING user_id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build consume token query: %w", err)
	}

	var userID int64
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.ErrSingleUseTokenInvalid
		}
		logger.Error().Err(err).Str("tokenType", string(tokenType)).Msg("Error executing consume token query")
		return 0, fmt.Errorf("error consuming single-use token: %w", err)
	}

	return userID, nil
}

// DeleteExpired removes tokens that expired or were consumed more than
// thirty days ago. Expiry is otherwise logical, not physical.
func (r *SingleUseTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	thirtyDaysAgo := time.Now().Add(-30 * 24 * time.Hour)

	sql, args, err := r.sb.Delete("single_use_tokens").
		Where(squirrel.Or{
			squirrel.Lt{"expires_at": thirtyDaysAgo},
			squirrel.Lt{"used_at": thirtyDaysAgo},
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build cleanup tokens query: %w", err)
	}

	cmdTag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing cleanup tokens query")
		return 0, fmt.Errorf("error cleaning up single-use tokens: %w", err)
	}

	deletedCount := cmdTag.RowsAffected()
	logger.Info().Int64("deletedCount", deletedCount).Msg("Cleaned up old single-use tokens")

	return deletedCount, nil
}
