package seed

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	appModels "github.com/confero/confero/internal/app/models"
	appRepos "github.com/confero/confero/internal/app/repositories"
)

// CreateDefaultData upserts the fixed role catalogue. Safe to run on every
// startup, EnsureRole is idempotent.
func CreateDefaultData(ctx context.Context, dbPool *pgxpool.Pool, lgr zerolog.Logger) error {
	userRepo := appRepos.NewUserRepository(dbPool)

	lgr.Info().Msg("Checking/Creating default roles...")

	roleNames := []string{
		appModels.RoleParticipant,
		appModels.RoleAuthor,
		appModels.RoleOrganizer,
		appModels.RoleAdmin,
		appModels.RolePanelEvaluator,
	}

	var finalErr error
	for _, roleName := range roleNames {
		if _, err := userRepo.EnsureRole(ctx, roleName); err != nil {
			lgr.Error().Err(err).Str("roleName", roleName).Msg("Error seeding role")
			finalErr = errors.Join(finalErr, err)
		}
	}

	lgr.Info().Msg("Default role check/creation finished.")
	return finalErr
}
