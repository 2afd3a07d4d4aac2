// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var agentCodeRegex = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]{2,31}$`)

// registerCustomValidations installs the shared custom rules on a validator
// instance. Every handler owns its own validator, mirroring the DTO tags.
func registerCustomValidations(v *validator.Validate) {
	_ = v.RegisterValidation("agent_code", func(fl validator.FieldLevel) bool {
		return agentCodeRegex.MatchString(fl.Field().String())
	})
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "min":
		return err.Field() + " must be at least " + err.Param()
	case "max":
		return err.Field() + " must be at most " + err.Param()
	case "len":
		return err.Field() + " must be exactly " + err.Param() + " characters"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	case "uuid4":
		return err.Field() + " must be a valid UUID"
	case "agent_code":
		return err.Field() + " must be an uppercase alphanumeric agent code"
	default:
		return err.Field() + " is invalid"
	}
}
