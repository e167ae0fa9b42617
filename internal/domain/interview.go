package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// QuestionCount is the number of questions in every interview.
const QuestionCount = 10

// InterviewDuration is the countdown an interview starts with.
const InterviewDuration = 30 * time.Minute

// Subject identifies an interview specialization.
type Subject string

const (
	SubjectDSA          Subject = "dsa"
	SubjectFrontend     Subject = "frontend"
	SubjectSystemDesign Subject = "system-design"
)

// Difficulty is the declared difficulty of an interview or a question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Question is one entry of an interview question bank. Good and Missing stay
// nil until the session is graded.
type Question struct {
	Text       string     `json:"question"`
	Difficulty Difficulty `json:"difficulty"`
	Good       *string    `json:"good,omitempty"`
	Missing    *string    `json:"missing,omitempty"`
}

// Graded reports whether the grading fields are present.
func (q Question) Graded() bool {
	return q.Good != nil && q.Missing != nil
}

// Feedback is the grader's verdict on a single answer.
type Feedback struct {
	Good    string `json:"good"`
	Missing string `json:"missing"`
}

// InterviewSession is the durable record of one mock interview.
type InterviewSession struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id"`
	Subject     Subject    `json:"subject"`
	Difficulty  Difficulty `json:"difficulty"`
	Questions   []Question `json:"questions"`
	Answers     []string   `json:"answers"`
	Summary     *string    `json:"summary,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewInterviewSession creates an unstarted session with one empty answer per
// question.
func NewInterviewSession(ownerID string, subject Subject, difficulty Difficulty, questions []Question) *InterviewSession {
	return &InterviewSession{
		ID:         uuid.New().String(),
		OwnerID:    ownerID,
		Subject:    subject,
		Difficulty: difficulty,
		Questions:  questions,
		Answers:    make([]string, len(questions)),
		StartedAt:  time.Now().UTC(),
	}
}

// IsCompleted reports whether the session reached its terminal state.
func (s *InterviewSession) IsCompleted() bool {
	return s.CompletedAt != nil
}

// QuestionTexts returns the question prompts in order.
func (s *InterviewSession) QuestionTexts() []string {
	texts := make([]string, len(s.Questions))
	for i, q := range s.Questions {
		texts[i] = q.Text
	}
	return texts
}

// Validate checks the record invariants: answers are index-aligned with
// questions, and a completion stamp is present exactly when every question
// carries grading fields.
func (s *InterviewSession) Validate() error {
	if len(s.Answers) != len(s.Questions) {
		return fmt.Errorf("%w: %d answers for %d questions", ErrInvalidInput, len(s.Answers), len(s.Questions))
	}
	graded := len(s.Questions) > 0
	for _, q := range s.Questions {
		if !q.Graded() {
			graded = false
			break
		}
	}
	if s.IsCompleted() != graded {
		return fmt.Errorf("%w: completion stamp does not match grading fields", ErrInvalidInput)
	}
	return nil
}

// Clone returns a deep copy.
func (s *InterviewSession) Clone() *InterviewSession {
	if s == nil {
		return nil
	}
	c := *s
	c.Questions = make([]Question, len(s.Questions))
	for i, q := range s.Questions {
		c.Questions[i] = Question{
			Text:       q.Text,
			Difficulty: q.Difficulty,
			Good:       cloneString(q.Good),
			Missing:    cloneString(q.Missing),
		}
	}
	c.Answers = append([]string(nil), s.Answers...)
	c.Summary = cloneString(s.Summary)
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// Graded returns a completed copy with feedback merged into each question.
// The feedback must be index-aligned with the questions.
func (s *InterviewSession) Graded(feedback []Feedback, summary string, at time.Time) (*InterviewSession, error) {
	if len(feedback) != len(s.Questions) {
		return nil, fmt.Errorf("%w: %d feedback entries for %d questions", ErrInvalidInput, len(feedback), len(s.Questions))
	}
	c := s.Clone()
	for i := range c.Questions {
		good, missing := feedback[i].Good, feedback[i].Missing
		c.Questions[i].Good = &good
		c.Questions[i].Missing = &missing
	}
	c.Summary = &summary
	completed := at.UTC()
	c.CompletedAt = &completed
	return c, nil
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
