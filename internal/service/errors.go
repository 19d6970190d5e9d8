package service

import (
	"errors"

	"github.com/foliohq/folio/internal/validation"
)

var (
	// ErrInvalidCredentials is returned for both unknown emails and wrong
	// passwords so callers cannot tell the two apart.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRateLimited        = errors.New("too many login attempts")

	ErrTokenMissing   = errors.New("token missing")
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenInvalid   = errors.New("token invalid")
	ErrTokenExpired   = errors.New("token expired")

	ErrIdentityNotFound  = errors.New("admin not found")
	ErrEmailInUse        = errors.New("email already in use")
	ErrIncorrectPassword = errors.New("current password is incorrect")

	ErrDocumentNotFound  = errors.New("document not found")
	ErrUnknownCollection = errors.New("unknown collection")
)

// ValidationError reports a single rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// invalid builds a ValidationError for one field.
func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// validate runs struct rules and reduces the result to the first failing
// field.
func validate(in interface{}) error {
	err := validation.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		first := verrs.First()
		return &ValidationError{Field: first.Field, Message: first.Message}
	}
	return err
}
