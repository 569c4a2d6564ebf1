package query

import (
	"errors"
	"fmt"
)

// ValidationError reports a missing credential or an input the encoder
// does not know how to express.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

// MalformedInputError reports a sorter, filter or include entry that is
// missing a required part.
type MalformedInputError struct {
	Field  string
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed input: %s: %s", e.Field, e.Reason)
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsMalformedInput(err error) bool {
	var me *MalformedInputError
	return errors.As(err, &me)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func malformed(field, format string, args ...any) error {
	return &MalformedInputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
