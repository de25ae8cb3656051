// Package validate configures the struct validator shared by the API and the
// checkout domain. Field errors are named after json tags.
package validate

import (
	"reflect"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

var std = New()

// New returns a validator that names fields by their json tag and knows the
// notblank rule.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" {
			return f.Name
		}
		return name
	})
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// Struct validates s against its validate tags.
func Struct(s any) error {
	return std.Struct(s)
}

// Var validates a single value against tag.
func Var(field any, tag string) error {
	return std.Var(field, tag)
}

// Fields lists the fields err reports, namespaced by json name without the
// top-level struct, e.g. "shipping.postcode". It returns nil when err is not a
// validation failure.
func Fields(err error) []string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return nil
	}
	out := make([]string, 0, len(errs))
	for _, fe := range errs {
		ns := fe.Namespace()
		if i := strings.IndexByte(ns, '.'); i >= 0 {
			ns = ns[i+1:]
		}
		out = append(out, ns)
	}
	return out
}
