// Package apperr defines the expected, recoverable error kinds shared by the
// lifecycle, messaging and API layers. Producers wrap them with context and
// consumers match them with errors.Is.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound means a referenced item, user or conversation does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden means the actor may not perform the operation.
	ErrForbidden = errors.New("not authorized")

	// ErrRuleViolation means the operation is not allowed in the current state.
	ErrRuleViolation = errors.New("business rule violation")

	// ErrInvalid means the input was malformed.
	ErrInvalid = errors.New("invalid input")
)

// ErrItemFinalized is returned for any mutation of a donated item.
var ErrItemFinalized = fmt.Errorf("%w: item already finalized", ErrRuleViolation)

// Invalid wraps ErrInvalid with a formatted detail message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Violation wraps ErrRuleViolation with a formatted detail message.
func Violation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrRuleViolation, fmt.Sprintf(format, args...))
}

// Detail returns the part of err's message after the innermost kind marker
// added by Invalid and Violation, suitable for showing to API clients.
func Detail(err error) string {
	msg := err.Error()
	for _, kind := range []error{ErrInvalid, ErrRuleViolation} {
		marker := kind.Error() + ": "
		if i := strings.LastIndex(msg, marker); i >= 0 {
			return msg[i+len(marker):]
		}
	}
	return msg
}
