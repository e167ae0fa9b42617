package generation

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/mentora/internal/llm"
)

// Kind classifies a failed generation call.
type Kind string

const (
	KindTransport    Kind = "transport"
	KindProvider     Kind = "provider"
	KindEmpty        Kind = "empty"
	KindInvalidInput Kind = "invalid_input"
)

// ErrEmptyResponse is wrapped by KindEmpty errors.
var ErrEmptyResponse = errors.New("empty response")

// ErrStreamInterrupted is wrapped when a stream ends before its Done chunk.
var ErrStreamInterrupted = errors.New("stream ended before completion")

// Error is returned by every failed Client call.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("generation %s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a generation error, or "" if err is not one.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}

// classify wraps a provider failure. Status errors are provider-side,
// everything else (dial, TLS, timeouts, cancellation) is transport.
func classify(err error) error {
	var ge *Error
	if errors.As(err, &ge) {
		return err
	}
	var se *llm.StatusError
	if errors.As(err, &se) {
		return &Error{Kind: KindProvider, Err: err}
	}
	return &Error{Kind: KindTransport, Err: err}
}

// Result is the uniform outcome of a call.
type Result struct {
	OK        bool   `json:"ok"`
	Text      string `json:"text,omitempty"`
	ErrorKind Kind   `json:"errorKind,omitempty"`
}

// ResultOf folds a (text, error) pair into a Result.
func ResultOf(text string, err error) Result {
	if err != nil {
		kind := KindOf(err)
		if kind == "" {
			kind = KindTransport
		}
		return Result{ErrorKind: kind}
	}
	return Result{OK: true, Text: text}
}
