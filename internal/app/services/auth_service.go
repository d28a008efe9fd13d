package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/confero/confero/internal/app/models"
	"github.com/confero/confero/internal/app/models/dto"
	"github.com/confero/confero/internal/app/repositories"
	"github.com/confero/confero/internal/pkg/apperrors"
	"github.com/confero/confero/internal/pkg/auth"
	"github.com/confero/confero/internal/pkg/email"
)

const (
	// Signup domain rule: members of the host institution must register
	// with an institutional address.
	institutionOrganization = "University of Kelaniya"
	institutionEmailDomain  = "kln.ac.lk"

	verifyTokenTTL = 24 * time.Hour
	resetTokenTTL  = 1 * time.Hour
	sessionTTL     = 7 * 24 * time.Hour

	maxUserAgentLength = 255
)

// Generic messages returned regardless of the branch taken, so responses
// never reveal whether an account exists or is eligible.
const (
	signupMessage = "Registration received. Please check your email to verify your account."
	forgotMessage = "If an eligible account exists for this address, a password reset email has been sent."
	resendMessage = "If a pending account exists for this address, a verification email has been sent."
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// AuthService implements signup, login, token refresh with rotation and
// reuse detection, logout, email verification and password reset.
type AuthService interface {
	Signup(ctx context.Context, req *dto.SignupRequest) (*dto.SuccessResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest, ipAddress, userAgent string) (*dto.AuthResponse, error)
	RefreshTokens(ctx context.Context, refreshToken, ipAddress, userAgent string) (*dto.TokenResponse, error)
	Logout(ctx context.Context, refreshToken string)
	VerifyEmail(ctx context.Context, token string) error
	ForgotPassword(ctx context.Context, req *dto.ForgotPasswordRequest) (*dto.SuccessResponse, error)
	ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) error
	ResendVerificationEmail(ctx context.Context, emailAddress string) (*dto.SuccessResponse, error)
	GetProfile(ctx context.Context, userID int64) (*dto.UserResponse, error)
}

type authService struct {
	userRepo    repositories.IUserRepository
	sessionRepo repositories.ISessionRepository
	tokenRepo   repositories.ISingleUseTokenRepository
	jwtService  *auth.JWTService
	hasher      *auth.PasswordHasher
	mailer      email.Mailer
	logger      zerolog.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(
	userRepo repositories.IUserRepository,
	sessionRepo repositories.ISessionRepository,
	tokenRepo repositories.ISingleUseTokenRepository,
	jwtService *auth.JWTService,
	hasher *auth.PasswordHasher,
	mailer email.Mailer,
	logger zerolog.Logger,
) AuthService {
	return &authService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		tokenRepo:   tokenRepo,
		jwtService:  jwtService,
		hasher:      hasher,
		mailer:      mailer,
		logger:      logger,
	}
}

// validateEmail validates an email address
func (s *authService) validateEmail(address string) error {
	if strings.TrimSpace(address) == "" {
		return fmt.Errorf("%w: email cannot be empty", apperrors.ErrValidationFailed)
	}
	if !emailRegex.MatchString(address) {
		return apperrors.ErrInvalidEmail
	}
	return nil
}

// validatePassword checks if password meets requirements
func (s *authService) validatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("%w: password cannot be empty", apperrors.ErrValidationFailed)
	}

	if len(password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters long", apperrors.ErrInvalidPassword)
	}

	hasLetter := false
	hasDigit := false
	for _, char := range password {
		if unicode.IsLetter(char) {
			hasLetter = true
		}
		if unicode.IsDigit(char) {
			hasDigit = true
		}
	}
	if !hasLetter {
		return fmt.Errorf("%w: password must contain at least one letter", apperrors.ErrInvalidPassword)
	}
	if !hasDigit {
		return fmt.Errorf("%w: password must contain at least one digit", apperrors.ErrInvalidPassword)
	}

	return nil
}

// canonicalEmail lower-cases and trims an address. All storage and lookups
// go through this so User@x.com and user@x.com are the same account.
func canonicalEmail(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Signup registers a new account in PENDING_VERIFICATION state and issues an
// email verification token.
func (s *authService) Signup(ctx context.Context, req *dto.SignupRequest) (*dto.SuccessResponse, error) {
	address := canonicalEmail(req.Email)

	if err := s.validateEmail(address); err != nil {
		return nil, err
	}
	if err := s.validatePassword(req.Password); err != nil {
		return nil, err
	}

	if strings.EqualFold(strings.TrimSpace(req.Organization), institutionOrganization) {
		at := strings.LastIndex(address, "@")
		if at < 0 || !strings.HasSuffix(address[at+1:], institutionEmailDomain) {
			return nil, apperrors.ErrInvalidDomain
		}
	}

	exists, err := s.userRepo.EmailExists(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("error checking if email exists: %w", err)
	}
	if exists {
		return nil, apperrors.ErrEmailAlreadyExists
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{
		Email:         address,
		PasswordHash:  passwordHash,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Phone:         req.Phone,
		Organization:  req.Organization,
		Country:       req.Country,
		CountryCode:   req.CountryCode,
		StudentID:     req.StudentID,
		NIC:           req.NIC,
		IEEEID:        req.IEEEID,
		Address:       req.Address,
		AccountStatus: models.StatusPendingVerification,
	}

	userID, err := s.userRepo.CreateUser(ctx, user)
	if err != nil {
		return nil, err
	}
	user.ID = userID

	roleID, err := s.userRepo.EnsureRole(ctx, models.RoleParticipant)
	if err != nil {
		return nil, fmt.Errorf("error ensuring default role: %w", err)
	}
	if err := s.userRepo.AssignRole(ctx, userID, roleID); err != nil {
		return nil, fmt.Errorf("error assigning default role: %w", err)
	}

	if err := s.issueVerificationToken(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("userID", userID).Str("email", address).Msg("User registered, verification email queued")

	return &dto.SuccessResponse{Message: signupMessage}, nil
}

// Login verifies credentials and opens a new session with a fresh token pair.
func (s *authService) Login(ctx context.Context, req *dto.LoginRequest, ipAddress, userAgent string) (*dto.AuthResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, canonicalEmail(req.Email))
	if err != nil {
		// Identical error for unknown email and wrong password.
		return nil, apperrors.ErrInvalidCredentials
	}

	if !s.hasher.Verify(user.PasswordHash, req.Password) {
		return nil, apperrors.ErrInvalidCredentials
	}

	switch user.AccountStatus {
	case models.StatusSuspended:
		return nil, apperrors.ErrAccountSuspended
	case models.StatusPendingVerification:
		return nil, apperrors.ErrEmailNotVerified
	}

	tokens, err := s.openSession(ctx, user, ipAddress, userAgent)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("userID", user.ID).Str("ip", ipAddress).Msg("User logged in")

	return &dto.AuthResponse{
		Token: *tokens,
		User:  userSummary(user),
	}, nil
}

// RefreshTokens rotates a session's refresh token. Presenting an
// already-rotated token is treated as a compromise signal: the session is
// revoked before the call fails.
func (s *authService) RefreshTokens(ctx context.Context, refreshToken, ipAddress, userAgent string) (*dto.TokenResponse, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, apperrors.ErrTokenMissing
	}

	claims, err := s.jwtService.ValidateToken(refreshToken, auth.ClassRefresh)
	if err != nil {
		return nil, apperrors.ErrTokenInvalid
	}
	if claims.SessionID == "" {
		return nil, apperrors.ErrTokenMalformed
	}

	now := time.Now()

	session, err := s.sessionRepo.GetBySessionID(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrSessionNotFound) {
			return nil, apperrors.ErrSessionNotFound
		}
		return nil, fmt.Errorf("error loading session: %w", err)
	}
	if session.RevokedAt != nil {
		return nil, apperrors.ErrSessionRevoked
	}
	if !session.ExpiresAt.After(now) {
		return nil, apperrors.ErrSessionExpired
	}

	// Reuse check: the presented token must match the currently valid
	// hash. A mismatch means an old, already-rotated token was replayed,
	// so the whole session is killed rather than silently rejected.
	if !s.hasher.Verify(session.RefreshTokenHash, refreshToken) {
		s.revokeOnReuse(ctx, session.SessionID)
		return nil, apperrors.ErrTokenInvalid
	}

	user, err := s.userRepo.GetByID(ctx, session.UserID)
	if err != nil {
		s.logger.Error().Int64("userID", session.UserID).Str("sessionID", session.SessionID).
			Msg("Session owner missing from user store, possible data-integrity problem")
		return nil, apperrors.ErrUserNotFound
	}

	// Same session id: rotation never creates a new session identity.
	accessToken, newRefreshToken, expiresIn, refreshExpiresIn, err := s.jwtService.GenerateTokenPair(
		user.ID, user.Email, user.Roles, session.SessionID)
	if err != nil {
		return nil, fmt.Errorf("token generation error: %w", err)
	}

	newHash, err := s.hasher.Hash(newRefreshToken)
	if err != nil {
		return nil, fmt.Errorf("error hashing refresh token: %w", err)
	}

	rotated, err := s.sessionRepo.Rotate(ctx, session.SessionID, session.RefreshTokenHash, newHash,
		ipAddress, truncateUserAgent(userAgent), now.Add(sessionTTL), now)
	if err != nil {
		return nil, fmt.Errorf("error rotating session: %w", err)
	}
	if !rotated {
		// A concurrent refresh won the conditional update. The stored
		// hash no longer matches what this call verified, which is the
		// same signal as a replay.
		s.revokeOnReuse(ctx, session.SessionID)
		return nil, apperrors.ErrTokenInvalid
	}

	return &dto.TokenResponse{
		AccessToken:           accessToken,
		RefreshToken:          newRefreshToken,
		TokenType:             "Bearer",
		ExpiresIn:             expiresIn,
		RefreshTokenExpiresIn: refreshExpiresIn,
	}, nil
}

// Logout revokes the session named by the token's sid claim. Best-effort:
// signature and expiry are not checked, and nothing here ever fails from the
// caller's perspective.
func (s *authService) Logout(ctx context.Context, refreshToken string) {
	claims := s.jwtService.DecodeUnchecked(refreshToken)
	if claims == nil || claims.SessionID == "" {
		return
	}

	if err := s.sessionRepo.Revoke(ctx, claims.SessionID, time.Now()); err != nil {
		s.logger.Debug().Err(err).Str("sessionID", claims.SessionID).Msg("Logout revocation skipped")
	}
}

// VerifyEmail consumes an EMAIL_VERIFY token and activates the account.
func (s *authService) VerifyEmail(ctx context.Context, token string) error {
	now := time.Now()

	userID, err := s.tokenRepo.Consume(ctx, auth.HashToken(token), models.TokenTypeEmailVerify, now)
	if err != nil {
		if errors.Is(err, apperrors.ErrSingleUseTokenInvalid) {
			return apperrors.ErrSingleUseTokenInvalid
		}
		return fmt.Errorf("error consuming verification token: %w", err)
	}

	if err := s.userRepo.MarkEmailVerified(ctx, userID, now); err != nil {
		return fmt.Errorf("error activating account: %w", err)
	}

	s.logger.Info().Int64("userID", userID).Msg("Email verified, account activated")
	return nil
}

// ForgotPassword issues a PASSWORD_RESET token for eligible accounts. The
// response is identical whether the account exists, is ineligible, or got a
// token, so the endpoint cannot be used for enumeration.
func (s *authService) ForgotPassword(ctx context.Context, req *dto.ForgotPasswordRequest) (*dto.SuccessResponse, error) {
	response := &dto.SuccessResponse{Message: forgotMessage}

	user, err := s.userRepo.GetByEmail(ctx, canonicalEmail(req.Email))
	if err != nil {
		return response, nil
	}

	if !user.HasRole(models.RoleParticipant) && !user.HasRole(models.RoleAuthor) {
		return response, nil
	}

	bearer, err := auth.NewBearerToken()
	if err != nil {
		return nil, fmt.Errorf("error generating reset token: %w", err)
	}

	record := &models.SingleUseToken{
		UserID:    user.ID,
		TokenType: models.TokenTypePasswordReset,
		TokenHash: auth.HashToken(bearer),
		ExpiresAt: time.Now().Add(resetTokenTTL),
	}
	if err := s.tokenRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("error storing reset token: %w", err)
	}

	s.deliver("password reset", user.Email, func() error {
		return s.mailer.SendPasswordResetEmail(user.Email, user.FirstName, bearer)
	})

	return response, nil
}

// ResetPassword consumes a PASSWORD_RESET token, replaces the password and
// revokes every session of the account.
func (s *authService) ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) error {
	if err := s.validatePassword(req.NewPassword); err != nil {
		return err
	}

	now := time.Now()

	userID, err := s.tokenRepo.Consume(ctx, auth.HashToken(req.Token), models.TokenTypePasswordReset, now)
	if err != nil {
		if errors.Is(err, apperrors.ErrSingleUseTokenInvalid) {
			return apperrors.ErrSingleUseTokenInvalid
		}
		return fmt.Errorf("error consuming reset token: %w", err)
	}

	passwordHash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}
	if err := s.userRepo.UpdatePasswordHash(ctx, userID, passwordHash); err != nil {
		return fmt.Errorf("error updating password: %w", err)
	}

	// A password reset invalidates every existing login.
	if err := s.sessionRepo.RevokeAllForUser(ctx, userID, now); err != nil {
		return fmt.Errorf("error revoking sessions: %w", err)
	}

	s.logger.Info().Int64("userID", userID).Msg("Password reset, all sessions revoked")
	return nil
}

// ResendVerificationEmail issues a fresh verification token for accounts
// still pending verification. Same generic response on every branch.
func (s *authService) ResendVerificationEmail(ctx context.Context, emailAddress string) (*dto.SuccessResponse, error) {
	response := &dto.SuccessResponse{Message: resendMessage}

	user, err := s.userRepo.GetByEmail(ctx, canonicalEmail(emailAddress))
	if err != nil {
		return response, nil
	}
	if user.AccountStatus != models.StatusPendingVerification {
		return response, nil
	}

	if err := s.issueVerificationToken(ctx, user); err != nil {
		return nil, err
	}

	return response, nil
}

// GetProfile retrieves a user summary for the authenticated user.
func (s *authService) GetProfile(ctx context.Context, userID int64) (*dto.UserResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user information: %w", err)
	}

	summary := userSummary(user)
	return &summary, nil
}

// Helper functions

// openSession issues a session id and token pair and persists the session row.
func (s *authService) openSession(ctx context.Context, user *models.User, ipAddress, userAgent string) (*dto.TokenResponse, error) {
	sessionID, err := auth.NewSessionID()
	if err != nil {
		return nil, fmt.Errorf("error generating session id: %w", err)
	}

	accessToken, refreshToken, expiresIn, refreshExpiresIn, err := s.jwtService.GenerateTokenPair(
		user.ID, user.Email, user.Roles, sessionID)
	if err != nil {
		return nil, fmt.Errorf("token generation error: %w", err)
	}

	refreshHash, err := s.hasher.Hash(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("error hashing refresh token: %w", err)
	}

	now := time.Now()
	session := &models.Session{
		SessionID:        sessionID,
		UserID:           user.ID,
		RefreshTokenHash: refreshHash,
		IPAddress:        ipAddress,
		UserAgent:        truncateUserAgent(userAgent),
		ExpiresAt:        now.Add(sessionTTL),
		LastActiveAt:     now,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("session saving error: %w", err)
	}

	return &dto.TokenResponse{
		AccessToken:           accessToken,
		RefreshToken:          refreshToken,
		TokenType:             "Bearer",
		ExpiresIn:             expiresIn,
		RefreshTokenExpiresIn: refreshExpiresIn,
	}, nil
}

// issueVerificationToken stores a fresh EMAIL_VERIFY token and queues the mail.
func (s *authService) issueVerificationToken(ctx context.Context, user *models.User) error {
	bearer, err := auth.NewBearerToken()
	if err != nil {
		return fmt.Errorf("error generating verification token: %w", err)
	}

	record := &models.SingleUseToken{
		UserID:    user.ID,
		TokenType: models.TokenTypeEmailVerify,
		TokenHash: auth.HashToken(bearer),
		ExpiresAt: time.Now().Add(verifyTokenTTL),
	}
	if err := s.tokenRepo.Create(ctx, record); err != nil {
		return fmt.Errorf("error storing verification token: %w", err)
	}

	s.deliver("verification", user.Email, func() error {
		return s.mailer.SendVerificationEmail(user.Email, user.FirstName, bearer)
	})

	return nil
}

// deliver sends mail fire-and-forget. Delivery failure is logged, never
// surfaced to the calling operation.
func (s *authService) deliver(kind, toEmail string, send func() error) {
	go func() {
		if err := send(); err != nil {
			s.logger.Error().Err(err).Str("kind", kind).Str("email", toEmail).Msg("Email delivery failed")
		}
	}()
}

func (s *authService) revokeOnReuse(ctx context.Context, sessionID string) {
	s.logger.Warn().Str("sessionID", sessionID).Msg("Refresh token reuse detected, revoking session")
	if err := s.sessionRepo.Revoke(ctx, sessionID, time.Now()); err != nil {
		s.logger.Error().Err(err).Str("sessionID", sessionID).Msg("Failed to revoke session after reuse")
	}
}

func userSummary(user *models.User) dto.UserResponse {
	return dto.UserResponse{
		ID:            user.ID,
		Email:         user.Email,
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		Organization:  user.Organization,
		Country:       user.Country,
		AccountStatus: string(user.AccountStatus),
		Roles:         user.Roles,
	}
}

func truncateUserAgent(userAgent string) string {
	if len(userAgent) > maxUserAgentLength {
		return userAgent[:maxUserAgentLength]
	}
	return userAgent
}
