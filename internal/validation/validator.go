// Package validation wraps a shared go-playground/validator instance with the
// custom rules and messages used by request payloads.
//
// Structs name their fields for messages with a `label` tag, falling back to
// the json name:
//
//	type LoginInput struct {
//	    Email    string `json:"email" label:"Email" validate:"required,email"`
//	    Password string `json:"password" label:"Password" validate:"required"`
//	}
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is a single failed rule on a single field.
type FieldError struct {
	Field   string
	Tag     string
	Param   string
	Message string
}

func (e FieldError) Error() string {
	return e.Message
}

// Errors collects every failed rule of one Struct call, in field order.
type Errors []FieldError

func (es Errors) Error() string {
	if len(es) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}

// First returns the first failure. Responses report one field at a time.
func (es Errors) First() FieldError {
	if len(es) == 0 {
		return FieldError{Message: "validation failed"}
	}
	return es[0]
}

// Get returns the shared validator, registering custom rules on first use.
func Get() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(fieldLabel)
		// Registration only fails on empty tags or nil funcs.
		_ = v.RegisterValidation("password", validatePasswordComplexity)
		_ = v.RegisterValidation("maxbytes", validateMaxBytes)
		validate = v
	})
	return validate
}

// Struct validates s and returns Errors, or nil when every rule passes.
func Struct(s interface{}) error {
	err := Get().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Errors{{Field: "unknown", Tag: "unknown", Message: err.Error()}}
	}

	out := make(Errors, len(verrs))
	for i, fe := range verrs {
		out[i] = FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: translate(fe),
		}
	}
	return out
}

// fieldLabel prefers the label tag, then the json name.
func fieldLabel(f reflect.StructField) string {
	if label := f.Tag.Get("label"); label != "" {
		return label
	}
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

var messages = map[string]string{
	"required": "%s is required",
	"email":    "Please provide a valid email",
	"password": "%s must contain at least one uppercase letter, one lowercase letter, and one number",
	"oneof":    "%s has an unsupported value",
}

func translate(fe validator.FieldError) string {
	field := fe.Field()
	if tmpl, ok := messages[fe.Tag()]; ok {
		if strings.Contains(tmpl, "%s") {
			return fmt.Sprintf(tmpl, field)
		}
		return tmpl
	}

	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "maxbytes":
		return fmt.Sprintf("%s must be at most %s bytes", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// validatePasswordComplexity requires one upper, one lower and one digit.
func validatePasswordComplexity(fl validator.FieldLevel) bool {
	var upper, lower, digit bool
	for _, r := range fl.Field().String() {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

// validateMaxBytes bounds the encoded length rather than the rune count.
func validateMaxBytes(fl validator.FieldLevel) bool {
	n, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= n
}
