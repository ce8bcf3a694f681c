package service

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when a caller does not own the resource
	ErrUnauthorized = errors.New("unauthorized")

	// ErrPaymentUnavailable is returned when the payment provider is not
	// configured
	ErrPaymentUnavailable = errors.New("payment service not available")

	// ErrVerificationFailed is returned when a payment signature does not
	// verify
	ErrVerificationFailed = errors.New("payment verification failed")
)

// ValidationError marks rejected request input, mapped to HTTP 400
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

// Validationf builds a ValidationError from a format string
func Validationf(format string, args ...interface{}) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
