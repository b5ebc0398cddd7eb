package models

import "fmt"

// InputError rejects an utterance before classification.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return e.Reason
}

// ValidationError reports a required parameter that is missing or out of
// range. It is client-correctable.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
