package exam

import "errors"

// Request-scoped failures surfaced to the HTTP layer. Nothing here is fatal
// to the process.
var (
	ErrNotAssigned             = errors.New("test not assigned to student")
	ErrTestAlreadyCompleted    = errors.New("test already completed")
	ErrSectionAlreadyCompleted = errors.New("section already completed")
	ErrSectionNotActive        = errors.New("section not active")
	ErrInvalidResponse         = errors.New("invalid response payload")

	ErrTestNotFound     = errors.New("test not found")
	ErrSectionNotFound  = errors.New("section not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrAttemptNotFound  = errors.New("attempt not found")
)

// NotFound reports whether err is any of the missing-entity errors.
func NotFound(err error) bool {
	return errors.Is(err, ErrTestNotFound) ||
		errors.Is(err, ErrSectionNotFound) ||
		errors.Is(err, ErrQuestionNotFound) ||
		errors.Is(err, ErrAttemptNotFound)
}
