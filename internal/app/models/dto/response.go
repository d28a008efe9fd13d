package dto

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// SuccessResponse represents a standard success response for API endpoints.
// Signup, forgot-password and resend-verification deliberately return the
// same generic message regardless of the branch taken.
type SuccessResponse struct {
	Message string `json:"message"`
}

// APIResponse wraps successful payloads
type APIResponse struct {
	Data  interface{}  `json:"data,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// HandleValidationError converts a binding/validation error into an ErrorDetail
func HandleValidationError(err error) *ErrorDetail {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		first := verrs[0]
		detail := NewErrorDetail(ErrorCodeValidationFailed, "Validation failed")
		detail = detail.WithField(first.Field())
		detail = detail.WithDetails(first.Error())
		return detail
	}

	detail := NewErrorDetail(ErrorCodeValidationFailed, "Invalid request format")
	detail = detail.WithDetails(err.Error())
	return detail
}
