package polls

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrPollNotFound      = errors.New("polls: poll not found")
	ErrQuestionNotFound  = errors.New("polls: question not found")
	ErrOptionNotFound    = errors.New("polls: answer option not found")
	ErrSessionNotFound   = errors.New("polls: session not found")
	ErrSlugConflict      = errors.New("polls: slug already in use")
	ErrPollNotOpen       = errors.New("polls: poll is not accepting responses")
	ErrInvalidTransition = errors.New("polls: invalid state transition")

	errMissingDatabase    = errors.New("database handle is required")
	errMissingIDProvider  = errors.New("id provider is required")
	errMissingHasher      = errors.New("secret hasher is required")
	errNoRowsWritten      = errors.New("write produced no rows")
	errOrderRetryExceeded = errors.New("question order contention did not settle")
)

// ValidationError lists every rule the input violated, in check order.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "polls: validation failed: " + strings.Join(e.Messages, ", ")
}

// ServiceError marks a persistence failure. Its code has the form polls.<operation>.<reason>.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// isUniqueViolation recognises unique-constraint failures from either supported driver,
// including ones that reach us untranslated.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint") || strings.Contains(message, "duplicate entry")
}
