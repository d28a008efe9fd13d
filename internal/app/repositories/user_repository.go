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

// IUserRepository defines the user store consumed by the auth service.
type IUserRepository interface {
	CreateUser(ctx context.Context, user *models.User) (int64, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	MarkEmailVerified(ctx context.Context, userID int64, at time.Time) error
	UpdatePasswordHash(ctx context.Context, userID int64, passwordHash string) error
	EnsureRole(ctx context.Context, roleName string) (int64, error)
	AssignRole(ctx context.Context, userID, roleID int64) error
}

// UserRepository handles user and role database operations
type UserRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

const userColumns = `id, email, password_hash, first_name, last_name, phone, organization,
	country, country_code, student_id, nic, ieee_id, address,
	account_status, email_verified_at, created_at, updated_at`

// CreateUser creates a new user and returns its id
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) (int64, error) {
	sql, args, err := r.sb.Insert("users").
		Columns("email", "password_hash", "first_name", "last_name", "phone", "organization",
			"country", "country_code", "student_id", "nic", "ieee_id", "address", "account_status").
		Values(user.Email, user.PasswordHash, user.FirstName, user.LastName, user.Phone, user.Organization,
			user.Country, user.CountryCode, user.StudentID, user.NIC, user.IEEEID, user.Address, user.AccountStatus).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build create user query: %w", err)
	}

	var id int64
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		if dberrors.IsDuplicateConstraintError(err, "users_email_key") {
			return 0, apperrors.ErrEmailAlreadyExists
		}
		logger.Error().Err(err).Str("email", user.Email).Msg("Error executing create user query")
		return 0, fmt.Errorf("error creating user: %w", err)
	}

	return id, nil
}

// GetByEmail retrieves a user with roles by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUser(ctx, squirrel.Eq{"email": email})
}

// GetByID retrieves a user with roles by id
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getUser(ctx, squirrel.Eq{"id": id})
}

func (r *UserRepository) getUser(ctx context.Context, where squirrel.Eq) (*models.User, error) {
	sql, args, err := r.sb.Select(userColumns).
		From("users").
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get user query: %w", err)
	}

	user := &models.User{}
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName,
		&user.Phone, &user.Organization, &user.Country, &user.CountryCode,
		&user.StudentID, &user.NIC, &user.IEEEID, &user.Address,
		&user.AccountStatus, &user.EmailVerifiedAt, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrUserNotFound
		}
		logger.Error().Err(err).Msg("Error scanning user row")
		return nil, fmt.Errorf("error retrieving user: %w", err)
	}

	roles, err := r.getRoleNames(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Roles = roles

	return user, nil
}

// EmailExists checks if an email is already registered
func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking email: %w", err)
	}
	return exists, nil
}

// MarkEmailVerified activates the account and records the verification time
func (r *UserRepository) MarkEmailVerified(ctx context.Context, userID int64, at time.Time) error {
	sql, args, err := r.sb.Update("users").
		Set("account_status", models.StatusActive).
		Set("email_verified_at", at).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build mark verified query: %w", err)
	}

	cmdTag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("userID", userID).Msg("Error executing mark verified query")
		return fmt.Errorf("error marking email verified: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}

	return nil
}

// UpdatePasswordHash replaces the stored password hash
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, userID int64, passwordHash string) error {
	sql, args, err := r.sb.Update("users").
		Set("password_hash", passwordHash).
		Set("updated_at", time.Now()).
		Where(squirrel.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update password query: %w", err)
	}

	cmdTag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("userID", userID).Msg("Error executing update password query")
		return fmt.Errorf("error updating password: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}

	return nil
}

// EnsureRole upserts a role by name and returns its id
func (r *UserRepository) EnsureRole(ctx context.Context, roleName string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO roles (role_name)
		VALUES ($1)
		ON CONFLICT (role_name) DO UPDATE SET role_name = EXCLUDED.role_name
		RETURNING id`,
		roleName).Scan(&id)
	if err != nil {
		logger.Error().Err(err).Str("roleName", roleName).Msg("Error upserting role")
		return 0, fmt.Errorf("error ensuring role: %w", err)
	}
	return id, nil
}

// AssignRole binds a role to a user, ignoring an existing binding
func (r *UserRepository) AssignRole(ctx context.Context, userID, roleID int64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, role_id) DO NOTHING`,
		userID, roleID)
	if err != nil {
		logger.Error().Err(err).Int64("userID", userID).Int64("roleID", roleID).Msg("Error assigning role")
		return fmt.Errorf("error assigning role: %w", err)
	}
	return nil
}

func (r *UserRepository) getRoleNames(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT r.role_name
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.role_name`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("error retrieving roles: %w", err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("error scanning role row: %w", err)
		}
		roles = append(roles, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating role rows: %w", err)
	}

	return roles, nil
}
