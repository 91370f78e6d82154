// util/validation_util.go

package util

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	authcore_errors "github.com/clinicore/authcore/errors"
	"github.com/clinicore/authcore/model"
)

type ValidationUtil struct {
	validate *validator.Validate
}

func NewValidationUtil() *ValidationUtil {
	return &ValidationUtil{validate: validator.New()}
}

// ValidateEmergencyRequest checks a break-glass request before any side
// effect happens. A too-short reason is reported as its own error so the
// caller can explain what is missing.
func (v *ValidationUtil) ValidateEmergencyRequest(request model.EmergencyAccessRequest) error {
	if err := v.validate.Struct(request); err != nil {
		validationErrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return fmt.Errorf("%w: %v", authcore_errors.ErrInvalidRequestData, err)
		}
		for _, fieldErr := range validationErrors {
			if fieldErr.Field() == "Reason" && fieldErr.Tag() == "min" {
				return authcore_errors.ErrReasonTooShort
			}
		}
		return fmt.Errorf("%w: %v", authcore_errors.ErrInvalidRequestData, err)
	}
	return nil
}

// ValidatePermissionCode rejects empty codes before they reach the engine.
func (v *ValidationUtil) ValidatePermissionCode(code string) error {
	if code == "" {
		return fmt.Errorf("%w: permission code cannot be empty", authcore_errors.ErrInvalidRequestData)
	}
	return nil
}
