package domain

import "time"

// Role tags a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a study conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Mode selects the sub-flow of a study session.
type Mode string

const (
	ModeUnselected Mode = "unselected"
	ModeStudy      Mode = "study"
	ModeAdvice     Mode = "advice"
)

// StudyStage is only meaningful in study mode.
type StudyStage string

const (
	StageChoosingLevel StudyStage = "choosing-level"
	StageChoosingTopic StudyStage = "choosing-topic"
	StageOpenDialogue  StudyStage = "open-dialogue"
)

// Level is the learner's self-declared level.
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

// Valid reports whether l is one of the known levels.
func (l Level) Valid() bool {
	switch l {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return true
	}
	return false
}

// StudySessionState is the cached conversation state for one
// (owner, persona) pair.
type StudySessionState struct {
	OwnerID       string     `json:"owner_id"`
	PersonaID     string     `json:"persona_id"`
	Messages      []Message  `json:"messages"`
	Mode          Mode       `json:"mode"`
	StudyStage    StudyStage `json:"study_stage"`
	SelectedLevel Level      `json:"selected_level,omitempty"`
	Topic         string     `json:"topic,omitempty"`
	LessonPlan    []string   `json:"lesson_plan,omitempty"`
	LessonStep    int        `json:"lesson_step"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewStudySessionState returns the default state seeded with a welcome
// message.
func NewStudySessionState(ownerID, personaID, welcome string) *StudySessionState {
	return &StudySessionState{
		OwnerID:    ownerID,
		PersonaID:  personaID,
		Messages:   []Message{{Role: RoleAssistant, Content: welcome}},
		Mode:       ModeUnselected,
		StudyStage: StageChoosingLevel,
		UpdatedAt:  time.Now().UTC(),
	}
}

// Clone returns a deep copy.
func (s *StudySessionState) Clone() *StudySessionState {
	if s == nil {
		return nil
	}
	c := *s
	c.Messages = append([]Message(nil), s.Messages...)
	c.LessonPlan = append([]string(nil), s.LessonPlan...)
	return &c
}

// TranscriptMessage is a durable transcript row, independent of the cached
// message list in StudySessionState.
type TranscriptMessage struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	PersonaID string    `json:"persona_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Persona is a mentor voice. DisplayPrompt is treated as opaque text.
type Persona struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Subject       string `json:"subject"`
	DisplayPrompt string `json:"display_prompt"`
}
