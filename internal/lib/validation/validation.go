// Package validation builds the request validator shared by the handlers.
package validation

import (
	"reflect"
	"strings"

	"session_auth/internal/lib/password"
	"session_auth/internal/lib/phone"

	"github.com/go-playground/validator/v10"
)

// New returns a validator that reports JSON field names and knows the
// "password" and "phone" tags. Phone numbers without a leading + are
// parsed against phoneRegion.
func New(phoneRegion string) *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}

		return name
	})

	// Registration only fails on empty tag names, so the errors are ignored.
	_ = validate.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return password.CheckPolicy(fl.Field().String()) == nil
	})

	_ = validate.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		_, err := phone.Normalize(fl.Field().String(), phoneRegion)
		return err == nil
	})

	return validate
}
