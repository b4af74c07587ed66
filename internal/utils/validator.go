// internal/utils/validator.go
package utils

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate

	usernamePattern      = regexp.MustCompile(`^[a-zA-Z0-9_]{3,50}$`)
	selectorPattern      = regexp.MustCompile(`^[0-9a-f]{8}$`)
	stripeAccountPattern = regexp.MustCompile(`^acct_[A-Za-z0-9]+$`)
)

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	validate.RegisterValidation("strong_password", validateStrongPassword)
	validate.RegisterValidation("username", matches(usernamePattern))
	validate.RegisterValidation("selector", matches(selectorPattern))
	validate.RegisterValidation("stripe_account", matches(stripeAccountPattern))
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

func matches(pattern *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return pattern.MatchString(fl.Field().String())
	}
}

// validateStrongPassword wants 8+ characters mixing upper, lower, digit and symbol.
func validateStrongPassword(fl validator.FieldLevel) bool {
	password := fl.Field().String()
	if len(password) < 8 {
		return false
	}

	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	return upper && lower && digit && symbol
}

type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// GetValidationErrors flattens validator output for API responses. Any other
// error (including nil) yields no entries.
func GetValidationErrors(err error) []ValidationError {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}

	out := make([]ValidationError, 0, len(fieldErrs))
	for _, e := range fieldErrs {
		out = append(out, ValidationError{
			Field:   e.Field(),
			Tag:     e.Tag(),
			Message: validationMessage(e),
		})
	}
	return out
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "email":
		return "invalid email format"
	case "min":
		return e.Field() + " must be at least " + e.Param() + " long"
	case "max":
		return e.Field() + " must be at most " + e.Param() + " long"
	case "strong_password":
		return "password needs 8+ characters with upper and lower case letters, a digit and a symbol"
	case "username":
		return "username must be 3-50 letters, digits or underscores"
	case "selector":
		return e.Field() + " must be 8 lowercase hex digits"
	case "stripe_account":
		return e.Field() + " must be a Stripe connected account id (acct_...)"
	default:
		return e.Field() + " is invalid"
	}
}
