package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/BradenHooton/tajnur-auth/internal/models"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Shared validator instance; "username" checks the account name charset
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

// loginCredentials carries the bounds a login request must meet. min/max
// count characters, not bytes.
type loginCredentials struct {
	Username string `validate:"min=3,max=50,username"`
	Password string `validate:"min=6,max=255"`
}

// NormalizeUsername trims surrounding whitespace and lowercases. Applying
// it twice gives the same result as applying it once.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// validateStruct runs the shared validator and reports the first failing
// field, wrapped in ErrInvalidInput.
func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			return fmt.Errorf("%w: %s: %s", models.ErrInvalidInput, strings.ToLower(ve[0].Field()), formatValidationError(ve[0]))
		}
		return fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	return nil
}

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must have a minimum of %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must have a maximum of %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "username":
		return "may only contain letters, digits and underscores"
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
