package interview

import (
	"fmt"

	"github.com/felixgeelhaar/mentora/internal/domain"
)

// Event is an input to Machine.Dispatch.
type Event interface {
	eventName() string
}

// Start begins answering and starts the countdown.
type Start struct{}

// Pause stops the countdown.
type Pause struct{}

// Resume restarts a paused countdown.
type Resume struct{}

// Tick advances the countdown by one second.
type Tick struct{}

// Navigate moves to another question.
type Navigate struct{ Index int }

// Answer replaces the answer to the current question.
type Answer struct{ Text string }

// Finish submits the transcript for grading.
type Finish struct{}

// Delete removes the session. Confirmed must be set.
type Delete struct{ Confirmed bool }

func (Start) eventName() string    { return "start" }
func (Pause) eventName() string    { return "pause" }
func (Resume) eventName() string   { return "resume" }
func (Tick) eventName() string     { return "tick" }
func (Navigate) eventName() string { return "navigate" }
func (Answer) eventName() string   { return "answer" }
func (Finish) eventName() string   { return "finish" }
func (Delete) eventName() string   { return "delete" }

// EventRequest is the wire form of an event.
type EventRequest struct {
	Type      string `json:"type"`
	Index     int    `json:"index,omitempty"`
	Text      string `json:"text,omitempty"`
	Confirmed bool   `json:"confirmed,omitempty"`
}

// Decode converts the wire form into an Event.
func (r EventRequest) Decode() (Event, error) {
	switch r.Type {
	case "start":
		return Start{}, nil
	case "pause":
		return Pause{}, nil
	case "resume":
		return Resume{}, nil
	case "tick":
		return Tick{}, nil
	case "navigate":
		return Navigate{Index: r.Index}, nil
	case "answer":
		return Answer{Text: r.Text}, nil
	case "finish":
		return Finish{}, nil
	case "delete":
		return Delete{Confirmed: r.Confirmed}, nil
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", domain.ErrInvalidInput, r.Type)
	}
}
