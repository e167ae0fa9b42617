package grading

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedGrade     = errors.New("malformed grading response")
	ErrMalformedQuestions = errors.New("malformed question set")
)

// ShapeError is a structurally wrong reply. Raw is kept for logs only and is
// never shown to users.
type ShapeError struct {
	Target error
	Raw    string
	Reason error
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%v: %v", e.Target, e.Reason)
}

func (e *ShapeError) Unwrap() []error {
	return []error{e.Target, e.Reason}
}
