package contextutils

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// FieldError describes a single failed validation constraint.
type FieldError struct {
	Field  string `json:"field"`
	Rule   string `json:"rule"`
	Reason string `json:"reason"`
}

// ValidateStruct validates a struct using go-playground/validator tags and
// returns an AppError carrying field-level details, or nil when valid.
func ValidateStruct(v interface{}) (*AppError, []FieldError) {
	err := validate.Struct(v)
	if err == nil {
		return nil, nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return NewAppErrorWithCause(ErrorCodeValidationFailed, SeverityWarn, "Validation failed", err.Error(), err), nil
	}

	fields := make([]FieldError, 0, len(validationErrs))
	for _, fe := range validationErrs {
		fields = append(fields, FieldError{
			Field:  fe.Field(),
			Rule:   fe.Tag(),
			Reason: fmt.Sprintf("failed on the '%s' rule", fe.Tag()),
		})
	}

	appErr := NewAppError(ErrorCodeValidationFailed, SeverityWarn, "Validation failed",
		fmt.Sprintf("%d field(s) failed validation", len(fields)))
	return appErr, fields
}

// WithFieldErrors returns a copy of the error carrying field-level details
func (e *AppError) WithFieldErrors(fields []FieldError) *AppError {
	clone := *e
	clone.FieldErrors = fields
	return &clone
}

// IsValidEmail checks if an email address is valid using go-playground/validator
func IsValidEmail(email string) bool {
	return validate.Var(email, "email") == nil
}
