package domain

import (
	"errors"
	"testing"
	"time"
)

func sampleQuestions(n int) []Question {
	qs := make([]Question, n)
	for i := range qs {
		qs[i] = Question{Text: "q", Difficulty: DifficultyHard}
	}
	return qs
}

func TestNewInterviewSession(t *testing.T) {
	s := NewInterviewSession("user-1", SubjectDSA, DifficultyHard, sampleQuestions(QuestionCount))

	if s.ID == "" {
		t.Error("ID should be assigned")
	}
	if len(s.Answers) != QuestionCount {
		t.Errorf("len(Answers) = %d; want %d", len(s.Answers), QuestionCount)
	}
	if s.IsCompleted() {
		t.Error("new session should not be completed")
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestInterviewSession_Graded(t *testing.T) {
	s := NewInterviewSession("user-1", SubjectDSA, DifficultyEasy, sampleQuestions(3))
	s.Answers[0] = "an answer"
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	feedback := []Feedback{{"g0", "m0"}, {"g1", "m1"}, {"g2", "m2"}}
	graded, err := s.Graded(feedback, "well done", at)
	if err != nil {
		t.Fatalf("Graded() error = %v", err)
	}

	if !graded.IsCompleted() || !graded.CompletedAt.Equal(at) {
		t.Errorf("CompletedAt = %v; want %v", graded.CompletedAt, at)
	}
	if *graded.Questions[1].Good != "g1" || *graded.Questions[1].Missing != "m1" {
		t.Errorf("Questions[1] = %+v; want merged feedback", graded.Questions[1])
	}
	if err := graded.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	// original is untouched
	if s.IsCompleted() || s.Questions[0].Graded() || s.Summary != nil {
		t.Error("Graded() mutated the receiver")
	}
}

func TestInterviewSession_GradedLengthMismatch(t *testing.T) {
	s := NewInterviewSession("user-1", SubjectDSA, DifficultyEasy, sampleQuestions(3))

	_, err := s.Graded([]Feedback{{"g", "m"}}, "summary", time.Now())
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Graded() error = %v; want ErrInvalidInput", err)
	}
}

func TestInterviewSession_Validate(t *testing.T) {
	good, missing := "g", "m"
	now := time.Now()

	tests := []struct {
		name    string
		mutate  func(s *InterviewSession)
		wantErr bool
	}{
		{"fresh", func(s *InterviewSession) {}, false},
		{"short answers", func(s *InterviewSession) { s.Answers = s.Answers[:1] }, true},
		{"stamp without grades", func(s *InterviewSession) { s.CompletedAt = &now }, true},
		{"grades without stamp", func(s *InterviewSession) {
			for i := range s.Questions {
				s.Questions[i].Good, s.Questions[i].Missing = &good, &missing
			}
		}, true},
		{"partially graded with stamp", func(s *InterviewSession) {
			s.Questions[0].Good, s.Questions[0].Missing = &good, &missing
			s.CompletedAt = &now
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewInterviewSession("u", SubjectFrontend, DifficultyMedium, sampleQuestions(2))
			tt.mutate(s)
			if err := s.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v; wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInterviewSession_CloneIsDeep(t *testing.T) {
	s := NewInterviewSession("u", SubjectDSA, DifficultyEasy, sampleQuestions(2))
	c := s.Clone()
	c.Answers[0] = "changed"
	c.Questions[0].Text = "changed"

	if s.Answers[0] != "" || s.Questions[0].Text != "q" {
		t.Error("Clone() shares slices with the original")
	}
}
