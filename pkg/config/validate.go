package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// newStructValidator returns a validator that reports fields by their YAML names.
func newStructValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// structViolations runs the `validate` tags of value. Non-struct documents have no tags to check.
func structViolations(v *validator.Validate, value any) Violations {
	err := v.Struct(value)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return Violations{{Expected: err.Error()}}
	}

	out := make(Violations, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, Violation{
			Path:     namespacePath(fe.Namespace()),
			Expected: tagExpectation(fe),
			Actual:   actualValue(fe.Value()),
		})
	}
	return out
}

// namespacePath turns "AppConfig.services[web][0].peerId" into "services.web.0.peerId".
func namespacePath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	} else {
		return ""
	}
	ns = strings.ReplaceAll(ns, "[", ".")
	ns = strings.ReplaceAll(ns, "]", "")
	return ns
}

func tagExpectation(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "a value (required)"
	case "oneof":
		return fmt.Sprintf("one of [%s]", fe.Param())
	case "min":
		return fmt.Sprintf("at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("at most %s", fe.Param())
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("%s=%s", fe.Tag(), fe.Param())
		}
		return fe.Tag()
	}
}

// actualValue hides zero values so they render as missing.
func actualValue(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.IsZero() {
		return nil
	}
	if rv.Kind() == reflect.Pointer {
		return rv.Elem().Interface()
	}
	return v
}
