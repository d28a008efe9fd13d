package apperrors

import "errors"

// Common errors
var (
	// Resource errors
	ErrResourceNotFound = errors.New("resource not found")
	ErrConflict         = errors.New("conflict")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidEmail     = errors.New("invalid email")
	ErrInvalidPassword  = errors.New("invalid password")
	ErrBadRequest       = errors.New("bad request")
)

// Signup errors
var (
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrInvalidDomain      = errors.New("email domain not allowed for this organization")
)

// Credential errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountSuspended   = errors.New("account is suspended")
	ErrEmailNotVerified   = errors.New("email not verified")
)

// Refresh / session errors
var (
	ErrTokenMissing    = errors.New("refresh token missing")
	ErrTokenInvalid    = errors.New("invalid token")
	ErrTokenMalformed  = errors.New("malformed token")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionRevoked  = errors.New("session revoked")
	ErrSessionExpired  = errors.New("session expired")
)

// ErrUserNotFound during refresh indicates a session row whose owner no
// longer resolves, which is a store-consistency problem rather than an
// ordinary auth failure. It is still surfaced to the transport as 401.
var ErrUserNotFound = errors.New("user not found")

// Single-use token errors (email verification, password reset)
var (
	ErrSingleUseTokenInvalid = errors.New("invalid or expired token")
)

// Authorization errors
var (
	ErrPermissionDenied = errors.New("permission denied")
)

// Is returns whether target matches err or any of the errors in errList.
func Is(err, target error, errList ...error) bool {
	if errors.Is(err, target) {
		return true
	}
	for _, e := range errList {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// CustomError represents application-specific errors with additional context
type CustomError struct {
	Err     error
	Message string
	Code    string
	Details map[string]interface{}
}

// Error implements error interface
func (e *CustomError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Unwrap implements errors.Unwrap interface
func (e *CustomError) Unwrap() error {
	return e.Err
}

// NewCustomError creates a CustomError with underlying error
func NewCustomError(err error, message string) *CustomError {
	return &CustomError{
		Err:     err,
		Message: message,
	}
}

// WithCode adds an error code
func (e *CustomError) WithCode(code string) *CustomError {
	e.Code = code
	return e
}

// WithDetails adds context details to the error
func (e *CustomError) WithDetails(details map[string]interface{}) *CustomError {
	e.Details = details
	return e
}
