package study

import (
	"fmt"

	"github.com/felixgeelhaar/mentora/internal/domain"
)

// Event is an input to Orchestrator.Dispatch.
type Event interface {
	eventName() string
}

// SelectMode forks the conversation into study or advice.
type SelectMode struct{ Mode domain.Mode }

// SelectLevel picks the learner's level in study mode.
type SelectLevel struct{ Level domain.Level }

// SelectTopic picks a topic and starts the dialogue.
type SelectTopic struct{ Topic string }

// Send submits one user message and streams the reply.
type Send struct{ Text string }

// NextLessonStep explains the next sub-topic of the lesson plan.
type NextLessonStep struct{}

// Reset clears the conversation. Confirmed must be set.
type Reset struct{ Confirmed bool }

func (SelectMode) eventName() string     { return "select_mode" }
func (SelectLevel) eventName() string    { return "select_level" }
func (SelectTopic) eventName() string    { return "select_topic" }
func (Send) eventName() string           { return "send" }
func (NextLessonStep) eventName() string { return "next_step" }
func (Reset) eventName() string          { return "reset" }

// EventRequest is the wire form of an event.
type EventRequest struct {
	Type      string       `json:"type"`
	Mode      domain.Mode  `json:"mode,omitempty"`
	Level     domain.Level `json:"level,omitempty"`
	Topic     string       `json:"topic,omitempty"`
	Text      string       `json:"text,omitempty"`
	Confirmed bool         `json:"confirmed,omitempty"`
}

// Decode converts the wire form into an Event.
func (r EventRequest) Decode() (Event, error) {
	switch r.Type {
	case "select_mode":
		return SelectMode{Mode: r.Mode}, nil
	case "select_level":
		return SelectLevel{Level: r.Level}, nil
	case "select_topic":
		return SelectTopic{Topic: r.Topic}, nil
	case "send":
		return Send{Text: r.Text}, nil
	case "next_step":
		return NextLessonStep{}, nil
	case "reset":
		return Reset{Confirmed: r.Confirmed}, nil
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", domain.ErrInvalidInput, r.Type)
	}
}
