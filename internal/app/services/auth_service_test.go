package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/confero/confero/internal/app/models"
	"github.com/confero/confero/internal/app/models/dto"
	"github.com/confero/confero/internal/pkg/apperrors"
	"github.com/confero/confero/internal/pkg/auth"
)

// --- In-memory fakes ---

type fakeUserRepo struct {
	mu        sync.Mutex
	nextID    int64
	users     map[int64]*models.User
	roles     map[string]int64
	roleNames map[int64]string
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:     make(map[int64]*models.User),
		roles:     make(map[string]int64),
		roleNames: make(map[int64]string),
	}
}

func (r *fakeUserRepo) CreateUser(_ context.Context, user *models.User) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return 0, apperrors.ErrEmailAlreadyExists
		}
	}
	r.nextID++
	stored := *user
	stored.ID = r.nextID
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	r.users[stored.ID] = &stored
	return stored.ID, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperrors.ErrUserNotFound
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int64) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) EmailExists(_ context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeUserRepo) MarkEmailVerified(_ context.Context, userID int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	u.AccountStatus = models.StatusActive
	u.EmailVerifiedAt = &at
	u.UpdatedAt = at
	return nil
}

func (r *fakeUserRepo) UpdatePasswordHash(_ context.Context, userID int64, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now()
	return nil
}

func (r *fakeUserRepo) EnsureRole(_ context.Context, roleName string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.roles[roleName]; ok {
		return id, nil
	}
	id := int64(len(r.roles) + 1)
	r.roles[roleName] = id
	r.roleNames[id] = roleName
	return id, nil
}

func (r *fakeUserRepo) AssignRole(_ context.Context, userID, roleID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	name := r.roleNames[roleID]
	for _, existing := range u.Roles {
		if existing == name {
			return nil
		}
	}
	u.Roles = append(u.Roles, name)
	return nil
}

// seedUser inserts a user directly, bypassing signup.
func (r *fakeUserRepo) seedUser(u *models.User) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	stored := *u
	stored.ID = r.nextID
	r.users[stored.ID] = &stored
	return stored.ID
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*models.Session)}
}

func (r *fakeSessionRepo) Create(_ context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[session.SessionID]; exists {
		return apperrors.ErrTokenInvalid
	}
	stored := *session
	stored.CreatedAt = time.Now()
	r.sessions[stored.SessionID] = &stored
	return nil
}

func (r *fakeSessionRepo) GetBySessionID(_ context.Context, sessionID string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *fakeSessionRepo) Rotate(_ context.Context, sessionID, oldHash, newHash, ipAddress, userAgent string, expiresAt, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok || s.RefreshTokenHash != oldHash || s.RevokedAt != nil {
		return false, nil
	}
	s.RefreshTokenHash = newHash
	s.IPAddress = ipAddress
	s.UserAgent = userAgent
	s.ExpiresAt = expiresAt
	s.LastActiveAt = now
	s.RotatedAt = &now
	return true, nil
}

func (r *fakeSessionRepo) Revoke(_ context.Context, sessionID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok || s.RevokedAt != nil {
		return apperrors.ErrSessionNotFound
	}
	s.RevokedAt = &at
	return nil
}

func (r *fakeSessionRepo) RevokeAllForUser(_ context.Context, userID int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.UserID == userID && s.RevokedAt == nil {
			revokedAt := at
			s.RevokedAt = &revokedAt
		}
	}
	return nil
}

type fakeTokenRepo struct {
	mu     sync.Mutex
	nextID int64
	tokens []*models.SingleUseToken
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{}
}

func (r *fakeTokenRepo) Create(_ context.Context, token *models.SingleUseToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	stored := *token
	stored.ID = r.nextID
	stored.CreatedAt = time.Now()
	r.tokens = append(r.tokens, &stored)
	return nil
}

func (r *fakeTokenRepo) Consume(_ context.Context, tokenHash string, tokenType models.TokenType, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tok := range r.tokens {
		if tok.TokenHash == tokenHash && tok.TokenType == tokenType && tok.UsedAt == nil && tok.ExpiresAt.After(now) {
			usedAt := now
			tok.UsedAt = &usedAt
			return tok.UserID, nil
		}
	}
	return 0, apperrors.ErrSingleUseTokenInvalid
}

func (r *fakeTokenRepo) count(tokenType models.TokenType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, tok := range r.tokens {
		if tok.TokenType == tokenType {
			n++
		}
	}
	return n
}

type fakeMailer struct {
	mu           sync.Mutex
	verifyTokens map[string][]string
	resetTokens  map[string][]string
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{
		verifyTokens: make(map[string][]string),
		resetTokens:  make(map[string][]string),
	}
}

func (m *fakeMailer) SendVerificationEmail(toEmail, _, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifyTokens[toEmail] = append(m.verifyTokens[toEmail], token)
	return nil
}

func (m *fakeMailer) SendPasswordResetEmail(toEmail, _, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetTokens[toEmail] = append(m.resetTokens[toEmail], token)
	return nil
}

// Email delivery is fire-and-forget, so tests poll for the token.
func (m *fakeMailer) waitForVerifyToken(t *testing.T, email string, atLeast int) string {
	t.Helper()
	return m.waitFor(t, m.verifyTokens, email, atLeast)
}

func (m *fakeMailer) waitForResetToken(t *testing.T, email string, atLeast int) string {
	t.Helper()
	return m.waitFor(t, m.resetTokens, email, atLeast)
}

func (m *fakeMailer) waitFor(t *testing.T, box map[string][]string, email string, atLeast int) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m.mu.Lock()
		tokens := box[email]
		m.mu.Unlock()
		if len(tokens) >= atLeast {
			return tokens[atLeast-1]
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for email %d to %s", atLeast, email)
	return ""
}

func (m *fakeMailer) resetCount(email string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.resetTokens[email])
}

// --- Test environment ---

type testEnv struct {
	svc      AuthService
	users    *fakeUserRepo
	sessions *fakeSessionRepo
	tokens   *fakeTokenRepo
	mailer   *fakeMailer
	hasher   *auth.PasswordHasher
	jwt      *auth.JWTService
}

func newTestEnv() *testEnv {
	users := newFakeUserRepo()
	sessions := newFakeSessionRepo()
	tokens := newFakeTokenRepo()
	mailer := newFakeMailer()
	hasher := auth.NewPasswordHasher()
	jwtService := auth.NewJWTService(auth.JWTConfig{
		AccessSecret:    "test-access-secret",
		RefreshSecret:   "test-refresh-secret",
		AccessTokenExp:  15 * time.Minute,
		RefreshTokenExp: 168 * time.Hour,
		TokenIssuer:     "test",
	})

	svc := NewAuthService(users, sessions, tokens, jwtService, hasher, mailer, zerolog.Nop())

	return &testEnv{
		svc:      svc,
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		mailer:   mailer,
		hasher:   hasher,
		jwt:      jwtService,
	}
}

func signupRequest(email string) *dto.SignupRequest {
	return &dto.SignupRequest{
		Email:        email,
		Password:     "passw0rd123",
		FirstName:    "Amara",
		LastName:     "Perera",
		Phone:        "+94771234567",
		Organization: "Open University",
		Country:      "Sri Lanka",
		CountryCode:  "LK",
	}
}

// signupAndVerify runs the full signup flow and returns the account email.
func (e *testEnv) signupAndVerify(t *testing.T, email string) {
	t.Helper()
	if _, err := e.svc.Signup(context.Background(), signupRequest(email)); err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}
	token := e.mailer.waitForVerifyToken(t, email, 1)
	if err := e.svc.VerifyEmail(context.Background(), token); err != nil {
		t.Fatalf("VerifyEmail returned error: %v", err)
	}
}

// --- Tests ---

func TestSignupAndVerifyEmail(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	resp, err := env.svc.Signup(ctx, signupRequest("new@example.com"))
	if err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}
	if resp.Message == "" {
		t.Error("expected a generic success message")
	}

	user, err := env.users.GetByEmail(ctx, "new@example.com")
	if err != nil {
		t.Fatalf("user not stored: %v", err)
	}
	if user.AccountStatus != models.StatusPendingVerification {
		t.Errorf("expected PENDING_VERIFICATION, got %s", user.AccountStatus)
	}
	if user.PasswordHash == "passw0rd123" {
		t.Error("password stored in plaintext")
	}
	if !env.hasher.Verify(user.PasswordHash, "passw0rd123") {
		t.Error("stored hash does not verify the password")
	}
	if !user.HasRole(models.RoleParticipant) {
		t.Errorf("expected default PARTICIPANT role, got %v", user.Roles)
	}

	token := env.mailer.waitForVerifyToken(t, "new@example.com", 1)
	if err := env.svc.VerifyEmail(ctx, token); err != nil {
		t.Fatalf("VerifyEmail returned error: %v", err)
	}

	user, _ = env.users.GetByEmail(ctx, "new@example.com")
	if user.AccountStatus != models.StatusActive {
		t.Errorf("expected ACTIVE after verification, got %s", user.AccountStatus)
	}
	if user.EmailVerifiedAt == nil {
		t.Error("EmailVerifiedAt not set")
	}

	// The token is single use.
	if err := env.svc.VerifyEmail(ctx, token); !errors.Is(err, apperrors.ErrSingleUseTokenInvalid) {
		t.Errorf("expected ErrSingleUseTokenInvalid on reuse, got %v", err)
	}
}

func TestSignupEmailIsCanonicalized(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	if _, err := env.svc.Signup(ctx, signupRequest("Mixed.Case@Example.COM")); err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}
	if _, err := env.users.GetByEmail(ctx, "mixed.case@example.com"); err != nil {
		t.Errorf("email not stored lower-cased: %v", err)
	}

	_, err := env.svc.Signup(ctx, signupRequest("MIXED.CASE@example.com"))
	if !errors.Is(err, apperrors.ErrEmailAlreadyExists) {
		t.Errorf("expected ErrEmailAlreadyExists for case-variant duplicate, got %v", err)
	}
}

func TestSignupValidation(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(*dto.SignupRequest)
		wantErr error
	}{
		{"bad email", func(r *dto.SignupRequest) { r.Email = "not-an-email" }, apperrors.ErrInvalidEmail},
		{"short password", func(r *dto.SignupRequest) { r.Password = "ab1" }, apperrors.ErrInvalidPassword},
		{"no digit", func(r *dto.SignupRequest) { r.Password = "onlyletters" }, apperrors.ErrInvalidPassword},
		{"no letter", func(r *dto.SignupRequest) { r.Password = "12345678" }, apperrors.ErrInvalidPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := signupRequest("valid@example.com")
			tt.mutate(req)
			_, err := env.svc.Signup(ctx, req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSignupInstitutionDomainRule(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	req := signupRequest("outsider@gmail.com")
	req.Organization = "University of Kelaniya"
	if _, err := env.svc.Signup(ctx, req); !errors.Is(err, apperrors.ErrInvalidDomain) {
		t.Errorf("expected ErrInvalidDomain, got %v", err)
	}

	req = signupRequest("student@stu.kln.ac.lk")
	req.Organization = "university of kelaniya" // case-insensitive match
	if _, err := env.svc.Signup(ctx, req); err != nil {
		t.Errorf("institutional address rejected: %v", err)
	}

	// Other organizations are free to use any domain.
	req = signupRequest("other@gmail.com")
	req.Organization = "Some Other University"
	if _, err := env.svc.Signup(ctx, req); err != nil {
		t.Errorf("non-institutional signup rejected: %v", err)
	}
}

func TestLoginStatesAndCredentials(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	env.signupAndVerify(t, "active@example.com")

	// Unknown email and wrong password return the identical error.
	_, errUnknown := env.svc.Login(ctx, &dto.LoginRequest{Email: "nobody@example.com", Password: "passw0rd123"}, "1.2.3.4", "ua")
	_, errWrongPw := env.svc.Login(ctx, &dto.LoginRequest{Email: "active@example.com", Password: "wrongpass1"}, "1.2.3.4", "ua")
	if !errors.Is(errUnknown, apperrors.ErrInvalidCredentials) || !errors.Is(errWrongPw, apperrors.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for both, got %v and %v", errUnknown, errWrongPw)
	}

	// Pending accounts cannot log in even with correct credentials.
	if _, err := env.svc.Signup(ctx, signupRequest("pending@example.com")); err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}
	_, err := env.svc.Login(ctx, &dto.LoginRequest{Email: "pending@example.com", Password: "passw0rd123"}, "1.2.3.4", "ua")
	if !errors.Is(err, apperrors.ErrEmailNotVerified) {
		t.Errorf("expected ErrEmailNotVerified, got %v", err)
	}

	// Suspended accounts are refused.
	hash, _ := env.hasher.Hash("passw0rd123")
	env.users.seedUser(&models.User{
		Email:         "suspended@example.com",
		PasswordHash:  hash,
		AccountStatus: models.StatusSuspended,
	})
	_, err = env.svc.Login(ctx, &dto.LoginRequest{Email: "suspended@example.com", Password: "passw0rd123"}, "1.2.3.4", "ua")
	if !errors.Is(err, apperrors.ErrAccountSuspended) {
		t.Errorf("expected ErrAccountSuspended, got %v", err)
	}
}

func TestLoginOpensSession(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	env.signupAndVerify(t, "user@example.com")

	resp, err := env.svc.Login(ctx, &dto.LoginRequest{Email: "user@example.com", Password: "passw0rd123"}, "10.0.0.1", "test-agent")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if resp.Token.AccessToken == "" || resp.Token.RefreshToken == "" {
		t.Fatal("missing tokens in login response")
	}
	if resp.Token.TokenType != "Bearer" {
		t.Errorf("unexpected token type %q", resp.Token.TokenType)
	}
	if resp.User.Email != "user@example.com" {
		t.Errorf("unexpected user in response: %+v", resp.User)
	}

	claims, err := env.jwt.ValidateToken(resp.Token.RefreshToken, auth.ClassRefresh)
	if err != nil {
		t.Fatalf("issued refresh token invalid: %v", err)
	}

	session, err := env.sessions.GetBySessionID(ctx, claims.SessionID)
	if err != nil {
		t.Fatalf("session not stored: %v", err)
	}
	if session.RefreshTokenHash == resp.Token.RefreshToken {
		t.Error("refresh token stored in plaintext")
	}
	if !env.hasher.Verify(session.RefreshTokenHash, resp.Token.RefreshToken) {
		t.Error("stored hash does not match issued refresh token")
	}
	if session.IPAddress != "10.0.0.1" || session.UserAgent != "test-agent" {
		t.Errorf("session metadata not recorded: %+v", session)
	}
}

func TestRefreshRotationAndReuseDetection(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	env.signupAndVerify(t, "user@example.com")
	loginResp, err := env.svc.Login(ctx, &dto.LoginRequest{Email: "user@example.com", Password: "passw0rd123"}, "1.1.1.1", "ua")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	firstRefresh := loginResp.Token.RefreshToken
	firstClaims, _ := env.jwt.ValidateToken(firstRefresh, auth.ClassRefresh)

	// Rotation: new pair, same session identity.
	rotated, err := env.svc.RefreshTokens(ctx, firstRefresh, "1.1.1.1", "ua")
	if err != nil {
		t.Fatalf("RefreshTokens returned error: %v", err)
	}
	if rotated.RefreshToken == firstRefresh {
		t.Error("refresh token was not rotated")
	}
	rotatedClaims, err := env.jwt.ValidateToken(rotated.RefreshToken, auth.ClassRefresh)
	if err != nil {
		t.Fatalf("rotated refresh token invalid: %v", err)
	}
	if rotatedClaims.SessionID != firstClaims.SessionID {
		t.Error("rotation changed the session id")
	}

	// Replaying the consumed token is a compromise signal: the call fails
	// and the whole session is revoked.
	if _, err := env.svc.RefreshTokens(ctx, firstRefresh, "1.1.1.1", "ua"); !errors.Is(err, apperrors.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid on replay, got %v", err)
	}
	session, _ := env.sessions.GetBySessionID(ctx, firstClaims.SessionID)
	if session.RevokedAt == nil {
		t.Fatal("session not revoked after reuse")
	}

	// The legitimately rotated token is dead too.
	if _, err := env.svc.RefreshTokens(ctx, rotated.RefreshToken, "1.1.1.1", "ua"); !errors.Is(err, apperrors.ErrSessionRevoked) {
		t.Errorf("expected ErrSessionRevoked after reuse revocation, got %v", err)
	}
}

func TestRefreshRejectsBadTokens(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	if _, err := env.svc.RefreshTokens(ctx, "", "ip", "ua"); !errors.Is(err, apperrors.ErrTokenMissing) {
		t.Errorf("expected ErrTokenMissing, got %v", err)
	}
	if _, err := env.svc.RefreshTokens(ctx, "garbage", "ip", "ua"); !errors.Is(err, apperrors.ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid for garbage, got %v", err)
	}

	// An access token must never pass as a refresh token.
	accessToken, err := env.jwt.Sign(1, "a@b.com", nil, "sid", auth.ClassAccess)
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}
	if _, err := env.svc.RefreshTokens(ctx, accessToken, "ip", "ua"); !errors.Is(err, apperrors.ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid for access token, got %v", err)
	}

	// A well-signed refresh token naming an unknown session.
	orphan, err := env.jwt.Sign(1, "a@b.com", nil, "no-such-session", auth.ClassRefresh)
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}
	if _, err := env.svc.RefreshTokens(ctx, orphan, "ip", "ua"); !errors.Is(err, apperrors.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	env.signupAndVerify(t, "user@example.com")
	loginResp, err := env.svc.Login(ctx, &dto.LoginRequest{Email: "user@example.com", Password: "passw0rd123"}, "ip", "ua")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	refreshToken := loginResp.Token.RefreshToken

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.RefreshTokens(ctx, refreshToken, "ip", "ua")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
		} else if !errors.Is(err, apperrors.ErrTokenInvalid) && !errors.Is(err, apperrors.ErrSessionRevoked) {
			t.Errorf("unexpected loser error: %v", err)
		}
	}
	if successes != 1 {
		t.Errorf("expected exactly one winner, got %d", successes)
	}
}

func TestConcurrentVerifyEmailSingleWinner(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	userID := env.users.seedUser(&models.User{
		Email:         "race@example.com",
		AccountStatus: models.StatusPendingVerification,
	})
	bearer, err := auth.NewBearerToken()
	if err != nil {
		t.Fatalf("NewBearerToken returned error: %v", err)
	}
	if err := env.tokens.Create(ctx, &models.SingleUseToken{
		UserID:    userID,
		TokenType: models.TokenTypeEmailVerify,
		TokenHash: auth.HashToken(bearer),
		ExpiresAt: time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("token create returned error: %v", err)
	}

	const workers = 10
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- env.svc.VerifyEmail(ctx, bearer)
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
		} else if !errors.Is(err, apperrors.ErrSingleUseTokenInvalid) {
			t.Errorf("unexpected loser error: %v", err)
		}
	}
	if successes != 1 {
		t.Errorf("expected exactly one consumer, got %d", successes)
	}
}

func TestForgotPasswordDoesNotEnumerate(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	env.signupAndVerify(t, "known@example.com")

	knownResp, err := env.svc.ForgotPassword(ctx, &dto.ForgotPasswordRequest{Email: "known@example.com"})
	if err != nil {
		t.Fatalf("ForgotPassword returned error: %v", err)
	}
	unknownResp, err := env.svc.ForgotPassword(ctx, &dto.ForgotPasswordRequest{Email: "unknown@example.com"})
	if err != nil {
		t.Fatalf("ForgotPassword returned error: %v", err)
	}
	if knownResp.Message != unknownResp.Message {
		t.Error("responses differ between known and unknown accounts")
	}

	// Only the known account got a token.
	env.mailer.waitForResetToken(t, "known@example.com", 1)
	if env.mailer.resetCount("unknown@example.com") != 0 {
		t.Error("reset email sent to unknown account")
	}
	if got := env.tokens.count(models.TokenTypePasswordReset); got != 1 {
		t.Errorf("expected exactly one reset token stored, got %d", got)
	}

	// Accounts without a participant or author role get the same generic
	// response and no token.
	hash, _ := env.hasher.Hash("passw0rd123")
	env.users.seedUser(&models.User{
		Email:         "organizer@example.com",
		PasswordHash:  hash,
		AccountStatus: models.StatusActive,
		Roles:         []string{models.RoleOrganizer},
	})
	ineligibleResp, err := env.svc.ForgotPassword(ctx, &dto.ForgotPasswordRequest{Email: "organizer@example.com"})
	if err != nil {
		t.Fatalf("ForgotPassword returned error: %v", err)
	}
	if ineligibleResp.Message != knownResp.Message {
		t.Error("ineligible account got a distinguishable response")
	}
	if got := env.tokens.count(models.TokenTypePasswordReset); got != 1 {
		t.Errorf("reset token issued for ineligible account, total %d", got)
	}
}

func TestResetPasswordRevokesAllSessions(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	env.signupAndVerify(t, "user@example.com")

	// Two live sessions.
	first, err := env.svc.Login(ctx, &dto.LoginRequest{Email: "user@example.com", Password: "passw0rd123"}, "ip1", "ua1")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	second, err := env.svc.Login(ctx, &dto.LoginRequest{Email: "user@example.com", Password: "passw0rd123"}, "ip2", "ua2")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	if _, err := env.svc.ForgotPassword(ctx, &dto.ForgotPasswordRequest{Email: "user@example.com"}); err != nil {
		t.Fatalf("ForgotPassword returned error: %v", err)
	}
	resetToken := env.mailer.waitForResetToken(t, "user@example.com", 1)

	// A weak replacement password fails without consuming the token.
	err = env.svc.ResetPassword(ctx, &dto.ResetPasswordRequest{Token: resetToken, NewPassword: "short1"})
	if !errors.Is(err, apperrors.ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}

	if err := env.svc.ResetPassword(ctx, &dto.ResetPasswordRequest{Token: resetToken, NewPassword: "brandnew456"}); err != nil {
		t.Fatalf("ResetPassword returned error: %v", err)
	}

	// Reset tokens are single use.
	err = env.svc.ResetPassword(ctx, &dto.ResetPasswordRequest{Token: resetToken, NewPassword: "another789"})
	if !errors.Is(err, apperrors.ErrSingleUseTokenInvalid) {
		t.Errorf("expected ErrSingleUseTokenInvalid on token reuse, got %v", err)
	}

	// Every pre-reset session is dead.
	for _, token := range []string{first.Token.RefreshToken, second.Token.RefreshToken} {
		if _, err := env.svc.RefreshTokens(ctx, token, "ip", "ua"); !errors.Is(err, apperrors.ErrSessionRevoked) {
			t.Errorf("expected ErrSessionRevoked after reset, got %v", err)
		}
	}

	// Old password dead, new password works.
	if _, err := env.svc.Login(ctx, &dto.LoginRequest{Email: "user@example.com", Password: "passw0rd123"}, "ip", "ua"); !errors.Is(err, apperrors.ErrInvalidCredentials) {
		t.Errorf("old password still accepted: %v", err)
	}
	if _, err := env.svc.Login(ctx, &dto.LoginRequest{Email: "user@example.com", Password: "brandnew456"}, "ip", "ua"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	env.signupAndVerify(t, "user@example.com")
	loginResp, err := env.svc.Login(ctx, &dto.LoginRequest{Email: "user@example.com", Password: "passw0rd123"}, "ip", "ua")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	// Garbage input never fails.
	env.svc.Logout(ctx, "")
	env.svc.Logout(ctx, "not-a-token")

	env.svc.Logout(ctx, loginResp.Token.RefreshToken)

	if _, err := env.svc.RefreshTokens(ctx, loginResp.Token.RefreshToken, "ip", "ua"); !errors.Is(err, apperrors.ErrSessionRevoked) {
		t.Errorf("expected ErrSessionRevoked after logout, got %v", err)
	}

	// Logging out twice is harmless.
	env.svc.Logout(ctx, loginResp.Token.RefreshToken)
}

func TestResendVerificationEmail(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	if _, err := env.svc.Signup(ctx, signupRequest("pending@example.com")); err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}
	env.mailer.waitForVerifyToken(t, "pending@example.com", 1)

	resp, err := env.svc.ResendVerificationEmail(ctx, "pending@example.com")
	if err != nil {
		t.Fatalf("ResendVerificationEmail returned error: %v", err)
	}
	second := env.mailer.waitForVerifyToken(t, "pending@example.com", 2)

	// The fresh token works.
	if err := env.svc.VerifyEmail(ctx, second); err != nil {
		t.Fatalf("fresh verification token rejected: %v", err)
	}

	// Active and unknown accounts get the identical generic response and
	// no email.
	activeResp, err := env.svc.ResendVerificationEmail(ctx, "pending@example.com")
	if err != nil {
		t.Fatalf("ResendVerificationEmail returned error: %v", err)
	}
	unknownResp, err := env.svc.ResendVerificationEmail(ctx, "ghost@example.com")
	if err != nil {
		t.Fatalf("ResendVerificationEmail returned error: %v", err)
	}
	if resp.Message != activeResp.Message || resp.Message != unknownResp.Message {
		t.Error("resend responses are distinguishable")
	}
}

func TestGetProfile(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	env.signupAndVerify(t, "user@example.com")
	user, _ := env.users.GetByEmail(ctx, "user@example.com")

	profile, err := env.svc.GetProfile(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetProfile returned error: %v", err)
	}
	if profile.Email != "user@example.com" || profile.AccountStatus != string(models.StatusActive) {
		t.Errorf("unexpected profile: %+v", profile)
	}

	if _, err := env.svc.GetProfile(ctx, 99999); !errors.Is(err, apperrors.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}
