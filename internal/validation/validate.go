// Package validation checks decoded request bodies against their `validate`
// struct tags and turns failures into VALIDATION_ERROR API errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"storefront/internal/model"
	"storefront/pkg/apierror"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// passwordSpecials is the special-character class a password must draw from.
const passwordSpecials = "@$!%?&"

var (
	once     sync.Once
	instance *validator.Validate
)

func get() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return field.Name
			}
			return name
		})
		_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return IsUsername(fl.Field().String())
		})
		_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
			return IsStrongPassword(fl.Field().String())
		})
		_ = v.RegisterValidation("productsize", func(fl validator.FieldLevel) bool {
			return slices.Contains(model.ProductSizes, fl.Field().String())
		})
		instance = v
	})
	return instance
}

// IsUsername reports whether name uses only the characters a login accepts.
func IsUsername(name string) bool {
	return usernamePattern.MatchString(name)
}

// Struct validates value and returns nil or an *apierror.APIError whose
// details name the first offending field.
func Struct(value any) error {
	err := get().Struct(value)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apierror.Validation("invalid request body", err.Error())
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, describe(fe))
	}

	return apierror.Validation(messages[0], strings.Join(messages, "; "))
}

// IsStrongPassword reports whether password has at least 8 characters drawn
// from letters, digits and @$!%?&, with at least one of each of lowercase,
// uppercase, digit and special.
func IsStrongPassword(password string) bool {
	if len(password) < 8 {
		return false
	}

	var lower, upper, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		default:
			return false
		}
	}

	return lower && upper && digit && special
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "Please provide a valid email address"
	case "username":
		return fmt.Sprintf("%s can only contain letters, numbers, underscores, and hyphens", field)
	case "password":
		return "Password must contain at least 8 characters, one uppercase, one number, and one special character (@$!%?&)"
	case "productsize":
		return "Size must be one of " + strings.Join(model.ProductSizes, ", ")
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must not exceed %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
