package dto

// SignupRequest represents a new account registration
type SignupRequest struct {
	Email        string  `json:"email" binding:"required,email"`
	Password     string  `json:"password" binding:"required,min=8"`
	FirstName    string  `json:"firstName" binding:"required"`
	LastName     string  `json:"lastName" binding:"required"`
	Phone        string  `json:"phone" binding:"required"`
	Organization string  `json:"organization" binding:"required"`
	Country      string  `json:"country" binding:"required"`
	CountryCode  string  `json:"countryCode" binding:"required"`
	StudentID    *string `json:"studentId,omitempty"`
	NIC          *string `json:"nic,omitempty"`
	IEEEID       *string `json:"ieeeId,omitempty"`
	Address      *string `json:"address,omitempty"`
}

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// ForgotPasswordRequest starts the password reset flow
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest completes the password reset flow
type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=8"`
}

// RefreshTokenRequest carries a refresh token for clients that do not use
// the refresh cookie
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ResendVerificationRequest asks for a fresh verification email
type ResendVerificationRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// TokenResponse represents an issued access/refresh token pair
type TokenResponse struct {
	AccessToken           string `json:"accessToken"`
	TokenType             string `json:"tokenType" example:"Bearer"`
	ExpiresIn             int64  `json:"expiresIn"`
	RefreshToken          string `json:"refreshToken,omitempty"`
	RefreshTokenExpiresIn int64  `json:"refreshTokenExpiresIn,omitempty"`
}

// UserResponse represents basic user information
type UserResponse struct {
	ID            int64    `json:"id"`
	Email         string   `json:"email"`
	FirstName     string   `json:"firstName"`
	LastName      string   `json:"lastName"`
	Organization  string   `json:"organization"`
	Country       string   `json:"country"`
	AccountStatus string   `json:"accountStatus"`
	Roles         []string `json:"roles"`
}

// AuthResponse represents a successful login response
type AuthResponse struct {
	Token TokenResponse `json:"token"`
	User  UserResponse  `json:"user"`
}
