package application

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// unitNamePattern restricts unit and stage names to lowercase snake case,
// matching the unit type identifiers.
var unitNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// RegisterConfigValidators registers the custom validation functions used
// by analyzer configuration structs. It returns an error if any validator
// registration fails.
func RegisterConfigValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("unitname", validateUnitName); err != nil {
		return fmt.Errorf("failed to register unitname validator: %w", err)
	}
	return nil
}

// validateUnitName enforces lowercase snake case for unit names.
func validateUnitName(fl validator.FieldLevel) bool {
	return unitNamePattern.MatchString(fl.Field().String())
}
