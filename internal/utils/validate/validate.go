// Package validate holds the application's single validator instance.
// Field errors are reported by their JSON names.
package validate

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return val
}

// Struct validates s against its validate:"..." tags. A failure is a
// validator.ValidationErrors.
func Struct(s any) error {
	return v.Struct(s)
}
