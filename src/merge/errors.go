package merge

import (
	"errors"
	"fmt"
)

var ErrValidation = errors.New("invalid merge request")

// Returned when a merge request is malformed. Nothing is touched.
type ValidationError struct {
	Message string
	Err     error // usually validation.Errors, keyed by option name
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

/*
Returned when rebuilt thread counters do not agree with what was written, or
the posts of a thread do not form a valid thread. The merge transaction is
rolled back.
*/
type ConsistencyViolation struct {
	ThreadID int
	Problem  string
}

func (e *ConsistencyViolation) Error() string {
	return fmt.Sprintf("thread %d is inconsistent: %s", e.ThreadID, e.Problem)
}
