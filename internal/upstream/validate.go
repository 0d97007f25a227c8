package upstream

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// check runs struct tag validation and folds the result into a *ValidationError.
func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return invalid(ErrInvalidInput, err.Error())
	}

	var missing, other []string
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
			continue
		}
		other = append(other, fieldMessage(fe))
	}
	if len(missing) > 0 {
		return invalid(ErrMissingFields, strings.Join(missing, ", "))
	}
	return invalid(ErrInvalidInput, strings.Join(other, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param())
	case "len":
		return fe.Field() + " must be exactly " + fe.Param() + " characters"
	case "dive":
		return fe.Field() + " has an invalid element"
	default:
		return fe.Field() + " is invalid"
	}
}
