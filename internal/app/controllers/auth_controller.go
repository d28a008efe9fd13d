// Package controllers handles HTTP request handling
package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/confero/confero/internal/app/models/dto"
	"github.com/confero/confero/internal/app/services"
	"github.com/confero/confero/internal/middleware"
)

const (
	refreshCookieName   = "refresh_token"
	refreshCookiePath   = "/api/v1/auth"
	refreshCookieMaxAge = 7 * 24 * 60 * 60
)

// AuthController handles authentication related operations
type AuthController struct {
	authService services.AuthService
	production  bool
	logger      zerolog.Logger
}

// NewAuthController creates a new AuthController
func NewAuthController(authService services.AuthService, production bool, logger zerolog.Logger) *AuthController {
	return &AuthController{
		authService: authService,
		production:  production,
		logger:      logger,
	}
}

// Signup handles user registration
// @Summary Register a new user
// @Description Creates a new account in pending state and sends an email verification link.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.SignupRequest true "User registration information"
// @Success 201 {object} dto.APIResponse{data=dto.SuccessResponse} "Registration received, verification email sent"
// @Failure 400 {object} dto.ErrorResponse "Invalid request format, password policy or email domain violation"
// @Failure 409 {object} dto.ErrorResponse "Email already exists"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /auth/signup [post]
func (c *AuthController) Signup(ctx *gin.Context) {
	var req dto.SignupRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		c.logger.Warn().Err(err).Msg("Invalid signup request payload")
		errorDetail := dto.HandleValidationError(err)
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	response, err := c.authService.Signup(ctx.Request.Context(), &req)
	if err != nil {
		c.logger.Warn().Err(err).Str("email", req.Email).Msg("Signup failed")
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.APIResponse{Data: response})
}

// Login handles user login
// @Summary User login
// @Description Authenticates a user, opens a session and returns a token pair. The refresh token is also set as an HttpOnly cookie.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Login credentials"
// @Success 200 {object} dto.APIResponse{data=dto.AuthResponse} "Login successful"
// @Failure 400 {object} dto.ErrorResponse "Invalid request format"
// @Failure 401 {object} dto.ErrorResponse "Invalid credentials"
// @Failure 403 {object} dto.ErrorResponse "Account suspended or email not verified"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /auth/login [post]
func (c *AuthController) Login(ctx *gin.Context) {
	var req dto.LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		c.logger.Warn().Err(err).Msg("Invalid login request payload")
		errorDetail := dto.HandleValidationError(err)
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	authResponse, err := c.authService.Login(ctx.Request.Context(), &req, ctx.ClientIP(), ctx.Request.UserAgent())
	if err != nil {
		c.logger.Warn().Err(err).Str("email", req.Email).Msg("Login failed")
		middleware.HandleAPIError(ctx, err)
		return
	}

	c.setRefreshCookie(ctx, authResponse.Token.RefreshToken)

	ctx.JSON(http.StatusOK, dto.APIResponse{Data: authResponse})
}

// RefreshToken handles token refresh with rotation
// @Summary Refresh access token
// @Description Exchanges a valid refresh token for a new token pair. The presented token is invalidated; reusing it revokes the session.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.RefreshTokenRequest false "Refresh token (optional if the refresh cookie is set)"
// @Success 200 {object} dto.APIResponse{data=dto.TokenResponse} "Token refreshed"
// @Failure 401 {object} dto.ErrorResponse "Missing, invalid, rotated or expired refresh token"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /auth/refresh [post]
func (c *AuthController) RefreshToken(ctx *gin.Context) {
	refreshToken := c.extractRefreshToken(ctx)

	tokenResponse, err := c.authService.RefreshTokens(ctx.Request.Context(), refreshToken, ctx.ClientIP(), ctx.Request.UserAgent())
	if err != nil {
		c.logger.Warn().Err(err).Msg("Token refresh failed")
		c.clearRefreshCookie(ctx)
		middleware.HandleAPIError(ctx, err)
		return
	}

	c.setRefreshCookie(ctx, tokenResponse.RefreshToken)

	ctx.JSON(http.StatusOK, dto.APIResponse{Data: tokenResponse})
}

// Logout handles session revocation
// @Summary Log out
// @Description Revokes the session named by the presented refresh token. Always succeeds from the client's perspective.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.RefreshTokenRequest false "Refresh token (optional if the refresh cookie is set)"
// @Success 200 {object} dto.APIResponse{data=dto.SuccessResponse} "Logged out"
// @Router /auth/logout [post]
func (c *AuthController) Logout(ctx *gin.Context) {
	refreshToken := c.extractRefreshToken(ctx)

	c.authService.Logout(ctx.Request.Context(), refreshToken)
	c.clearRefreshCookie(ctx)

	ctx.JSON(http.StatusOK, dto.APIResponse{Data: &dto.SuccessResponse{Message: "Logged out"}})
}

// VerifyEmail handles email verification
// @Summary Verify email address
// @Description Consumes an email verification token and activates the account.
// @Tags auth
// @Produce json
// @Param token query string true "Verification token"
// @Success 200 {object} dto.APIResponse{data=dto.SuccessResponse} "Email verified"
// @Failure 400 {object} dto.ErrorResponse "Missing, invalid, expired or already used token"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /auth/verify-email [get]
func (c *AuthController) VerifyEmail(ctx *gin.Context) {
	token := ctx.Query("token")
	if token == "" {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Verification token is required")
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	if err := c.authService.VerifyEmail(ctx.Request.Context(), token); err != nil {
		c.logger.Warn().Err(err).Msg("Email verification failed")
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.APIResponse{Data: &dto.SuccessResponse{Message: "Email verified. You can now log in."}})
}

// ResendVerification handles verification email resend
// @Summary Resend verification email
// @Description Issues a fresh verification token for a pending account. The response does not reveal whether the account exists.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.ResendVerificationRequest true "Account email"
// @Success 200 {object} dto.APIResponse{data=dto.SuccessResponse} "Generic acknowledgement"
// @Failure 400 {object} dto.ErrorResponse "Invalid request format"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /auth/resend-verification [post]
func (c *AuthController) ResendVerification(ctx *gin.Context) {
	var req dto.ResendVerificationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		errorDetail := dto.HandleValidationError(err)
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	response, err := c.authService.ResendVerificationEmail(ctx.Request.Context(), req.Email)
	if err != nil {
		c.logger.Error().Err(err).Msg("Verification resend failed")
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.APIResponse{Data: response})
}

// ForgotPassword handles password reset initiation
// @Summary Request a password reset
// @Description Sends a single-use reset link to eligible accounts. The response is identical whether or not the account exists.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.ForgotPasswordRequest true "Account email"
// @Success 200 {object} dto.APIResponse{data=dto.SuccessResponse} "Generic acknowledgement"
// @Failure 400 {object} dto.ErrorResponse "Invalid request format"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /auth/forgot-password [post]
func (c *AuthController) ForgotPassword(ctx *gin.Context) {
	var req dto.ForgotPasswordRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		errorDetail := dto.HandleValidationError(err)
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	response, err := c.authService.ForgotPassword(ctx.Request.Context(), &req)
	if err != nil {
		c.logger.Error().Err(err).Msg("Forgot password failed")
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.APIResponse{Data: response})
}

// ResetPassword handles password reset completion
// @Summary Reset password
// @Description Consumes a reset token, replaces the password and revokes all sessions of the account.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.ResetPasswordRequest true "Reset token and new password"
// @Success 200 {object} dto.APIResponse{data=dto.SuccessResponse} "Password reset"
// @Failure 400 {object} dto.ErrorResponse "Invalid request format, weak password or invalid token"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /auth/reset-password [post]
func (c *AuthController) ResetPassword(ctx *gin.Context) {
	var req dto.ResetPasswordRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		errorDetail := dto.HandleValidationError(err)
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	if err := c.authService.ResetPassword(ctx.Request.Context(), &req); err != nil {
		c.logger.Warn().Err(err).Msg("Password reset failed")
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.APIResponse{Data: &dto.SuccessResponse{Message: "Password reset. Please log in with your new password."}})
}

// Me returns the authenticated user's profile
// @Summary Get current user
// @Description Returns the profile of the user identified by the access token.
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.UserResponse} "Current user"
// @Failure 401 {object} dto.ErrorResponse "Missing or invalid access token"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /auth/me [get]
func (c *AuthController) Me(ctx *gin.Context) {
	userID := ctx.GetInt64(middleware.ContextUserID)
	if userID == 0 {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeUnauthorized, "Authentication required")
		ctx.JSON(http.StatusUnauthorized, dto.NewErrorResponse(errorDetail))
		return
	}

	profile, err := c.authService.GetProfile(ctx.Request.Context(), userID)
	if err != nil {
		c.logger.Error().Err(err).Int64("userID", userID).Msg("Profile retrieval failed")
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.APIResponse{Data: profile})
}

// extractRefreshToken prefers the request body, falling back to the cookie
// set at login so browser clients never handle the raw token.
func (c *AuthController) extractRefreshToken(ctx *gin.Context) string {
	var req dto.RefreshTokenRequest
	if err := ctx.ShouldBindJSON(&req); err == nil && req.RefreshToken != "" {
		return req.RefreshToken
	}
	if cookie, err := ctx.Cookie(refreshCookieName); err == nil {
		return cookie
	}
	return ""
}

func (c *AuthController) setRefreshCookie(ctx *gin.Context, refreshToken string) {
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(refreshCookieName, refreshToken, refreshCookieMaxAge, refreshCookiePath, "", c.production, true)
}

func (c *AuthController) clearRefreshCookie(ctx *gin.Context) {
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(refreshCookieName, "", -1, refreshCookiePath, "", c.production, true)
}
