package service

import (
	"errors"
	"fmt"
	"strings"
)

// Not-found sentinels mapped to 404 by the handlers.
var (
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrCourseNotFound     = errors.New("course not found")
)

// Validation sentinels mapped to 400 by the handlers.
var (
	ErrAssignmentNotOpen      = errors.New("assignment is not open for submissions")
	ErrDeadlinePassed         = errors.New("deadline has passed and late submissions are not allowed")
	ErrNotEnrolled            = errors.New("student is not enrolled in the course")
	ErrResubmissionNotAllowed = errors.New("assignment does not allow resubmission")
	ErrScoreOutOfRange        = errors.New("score must be between 0 and the submission max score")
	ErrNotGradable            = errors.New("submission has no gradable answers")
)

// Conflict sentinels mapped to 409 by the handlers.
var (
	ErrAttemptLimitReached = errors.New("attempt limit reached for this assignment")
)

// ErrNotOwner guards faculty-only mutations; handlers map it to 403.
var ErrNotOwner = errors.New("only the owning faculty may modify this assignment")

// InputError marks domain validation failures beyond struct tag validation,
// such as rubric or question definition problems. Handlers map it to 400.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string {
	return e.Msg
}

// BulkValidationError aggregates every invalid row of a grade import. The
// import is all-or-nothing: when this error is returned, no grade was applied.
type BulkValidationError struct {
	Rows []string
}

func (e *BulkValidationError) Error() string {
	return fmt.Sprintf("grade import rejected: %s", strings.Join(e.Rows, "; "))
}

// DatabaseError wraps a storage-layer failure, including a failed transactional
// commit. Handlers log it and return a generic 500.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database error during %s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}
