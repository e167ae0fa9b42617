package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/server"

	"github.com/felixgeelhaar/mentora/internal/domain"
	"github.com/felixgeelhaar/mentora/internal/interview"
	"github.com/felixgeelhaar/mentora/internal/study"
)

// DefaultOwnerID owns everything created over MCP when no owner is set.
const DefaultOwnerID = "local"

// QuestionGenerator produces an interview question set.
type QuestionGenerator interface {
	Generate(ctx context.Context, subject domain.Subject, difficulty domain.Difficulty) ([]domain.Question, error)
}

// Server wraps the MCP server with Mentora functionality
type Server struct {
	mcpServer  *server.Server
	ownerID    string
	questions  QuestionGenerator
	interviews *interview.Manager
	study      *study.Service
}

// Config contains configuration for the MCP server
type Config struct {
	OwnerID    string
	Questions  QuestionGenerator
	Interviews *interview.Manager
	Study      *study.Service
}

// NewServer creates a new MCP server for Mentora
func NewServer(cfg Config) *Server {
	s := &Server{
		ownerID:    cfg.OwnerID,
		questions:  cfg.Questions,
		interviews: cfg.Interviews,
		study:      cfg.Study,
	}
	if s.ownerID == "" {
		s.ownerID = DefaultOwnerID
	}

	s.mcpServer = server.New(server.Info{
		Name:    "mentora",
		Version: "0.1.0",
	}, server.WithInstructions(`
Mentora runs timed mock interviews and persona-led study sessions.

Available tools:
- mentora_generate_questions: Generate a question set without starting an interview
- mentora_interview_start: Create an interview and start its countdown
- mentora_interview_answer: Record an answer for one question
- mentora_interview_finish: Submit the interview for grading
- mentora_interview_status: Show progress, time left and results
- mentora_study_send: Send a message to a study persona and get the reply
- mentora_study_reset: Clear a study conversation (requires confirmed=true)

Interview subjects: dsa, frontend, system-design.
Difficulties: easy, medium, hard.
`))

	s.registerTools()

	return s
}

// registerTools registers all Mentora MCP tools
func (s *Server) registerTools() {
	s.mcpServer.Tool("mentora_generate_questions").
		Description("Generate ten interview questions for a subject and difficulty.").
		Handler(s.handleGenerateQuestions)

	s.mcpServer.Tool("mentora_interview_start").
		Description("Create a mock interview and start the countdown.").
		Handler(s.handleInterviewStart)

	s.mcpServer.Tool("mentora_interview_answer").
		Description("Record an answer for a question of a running interview.").
		Handler(s.handleInterviewAnswer)

	s.mcpServer.Tool("mentora_interview_finish").
		Description("Submit a running interview for grading.").
		Handler(s.handleInterviewFinish)

	s.mcpServer.Tool("mentora_interview_status").
		Description("Get an interview's state, remaining time and results.").
		Handler(s.handleInterviewStatus)

	s.mcpServer.Tool("mentora_study_send").
		Description("Send a message to a study persona and return the reply.").
		Handler(s.handleStudySend)

	s.mcpServer.Tool("mentora_study_reset").
		Description("Reset a study conversation. There is no undo.").
		Handler(s.handleStudyReset)
}

// Input/Output types for tools

type GenerateInput struct {
	Type       string `json:"type" jsonschema:"description=Interview subject,enum=dsa,enum=frontend,enum=system-design"`
	Difficulty string `json:"difficulty" jsonschema:"description=Difficulty,enum=easy,enum=medium,enum=hard"`
}

type GenerateOutput struct {
	Questions []string `json:"questions"`
}

type InterviewInput struct {
	SessionID string `json:"session_id" jsonschema:"description=Session ID from mentora_interview_start"`
}

type AnswerInput struct {
	SessionID string `json:"session_id" jsonschema:"description=Session ID from mentora_interview_start"`
	Index     int    `json:"index" jsonschema:"description=Zero-based question index"`
	Text      string `json:"text" jsonschema:"description=Answer text"`
}

type QuestionResult struct {
	Question string `json:"question"`
	Answer   string `json:"answer,omitempty"`
	Good     string `json:"good,omitempty"`
	Missing  string `json:"missing,omitempty"`
}

type InterviewOutput struct {
	SessionID        string           `json:"session_id"`
	State            string           `json:"state"`
	Index            int              `json:"index"`
	RemainingSeconds int              `json:"remaining_seconds"`
	Answered         int              `json:"answered"`
	Questions        []QuestionResult `json:"questions"`
	Summary          string           `json:"summary,omitempty"`
}

type StudySendInput struct {
	PersonaID string `json:"persona_id" jsonschema:"description=Persona to talk to"`
	Text      string `json:"text" jsonschema:"description=Message to send"`
	Mode      string `json:"mode,omitempty" jsonschema:"description=Mode to choose on first contact,enum=advice,enum=study"`
}

type StudySendOutput struct {
	Reply      string `json:"reply"`
	Mode       string `json:"mode"`
	StudyStage string `json:"study_stage,omitempty"`
	Error      string `json:"error,omitempty"`
}

type StudyResetInput struct {
	PersonaID string `json:"persona_id" jsonschema:"description=Persona whose conversation to clear"`
	Confirmed bool   `json:"confirmed" jsonschema:"description=Must be true to reset"`
}

type StudyResetOutput struct {
	Message string `json:"message"`
}

// Tool handlers

func (s *Server) handleGenerateQuestions(ctx context.Context, input GenerateInput) (GenerateOutput, error) {
	questions, err := s.questions.Generate(ctx, domain.Subject(input.Type), domain.Difficulty(input.Difficulty))
	if err != nil {
		return GenerateOutput{}, toolError("generate questions", err)
	}
	out := GenerateOutput{Questions: make([]string, len(questions))}
	for i, q := range questions {
		out.Questions[i] = q.Text
	}
	return out, nil
}

func (s *Server) handleInterviewStart(ctx context.Context, input GenerateInput) (InterviewOutput, error) {
	sess, err := s.interviews.Service().Create(ctx, interview.CreateRequest{
		OwnerID:    s.ownerID,
		Subject:    domain.Subject(input.Type),
		Difficulty: domain.Difficulty(input.Difficulty),
	})
	if err != nil {
		return InterviewOutput{}, toolError("create interview", err)
	}

	snap, err := s.interviews.Dispatch(ctx, s.ownerID, sess.ID, interview.Start{})
	if err != nil {
		return InterviewOutput{}, toolError("start interview", err)
	}
	return interviewOutput(snap), nil
}

func (s *Server) handleInterviewAnswer(ctx context.Context, input AnswerInput) (InterviewOutput, error) {
	if _, err := s.interviews.Dispatch(ctx, s.ownerID, input.SessionID, interview.Navigate{Index: input.Index}); err != nil {
		return InterviewOutput{}, toolError("navigate", err)
	}
	snap, err := s.interviews.Dispatch(ctx, s.ownerID, input.SessionID, interview.Answer{Text: input.Text})
	if err != nil {
		return InterviewOutput{}, toolError("answer", err)
	}
	return interviewOutput(snap), nil
}

func (s *Server) handleInterviewFinish(ctx context.Context, input InterviewInput) (InterviewOutput, error) {
	snap, err := s.interviews.Dispatch(ctx, s.ownerID, input.SessionID, interview.Finish{})
	if err != nil {
		return InterviewOutput{}, toolError("finish interview", err)
	}
	return interviewOutput(snap), nil
}

func (s *Server) handleInterviewStatus(ctx context.Context, input InterviewInput) (InterviewOutput, error) {
	machine, err := s.interviews.Open(ctx, s.ownerID, input.SessionID)
	if err != nil {
		return InterviewOutput{}, toolError("interview status", err)
	}
	return interviewOutput(machine.Snapshot()), nil
}

func (s *Server) handleStudySend(ctx context.Context, input StudySendInput) (StudySendOutput, error) {
	o, err := s.study.Open(ctx, s.ownerID, input.PersonaID)
	if err != nil {
		return StudySendOutput{}, toolError("open study", err)
	}

	if o.State().Mode == domain.ModeUnselected {
		mode := domain.Mode(input.Mode)
		if mode == "" {
			mode = domain.ModeAdvice
		}
		if _, err := o.Dispatch(ctx, study.SelectMode{Mode: mode}); err != nil {
			return StudySendOutput{}, toolError("select mode", err)
		}
	}

	st, err := o.Dispatch(ctx, study.Send{Text: input.Text})
	if err != nil {
		return StudySendOutput{}, toolError("send", err)
	}

	out := StudySendOutput{
		Mode:       string(st.Mode),
		StudyStage: string(st.StudyStage),
		Error:      st.Error,
	}
	if n := len(st.Messages); n > 0 && st.Messages[n-1].Role == domain.RoleAssistant {
		out.Reply = st.Messages[n-1].Content
	}
	return out, nil
}

func (s *Server) handleStudyReset(ctx context.Context, input StudyResetInput) (StudyResetOutput, error) {
	o, err := s.study.Open(ctx, s.ownerID, input.PersonaID)
	if err != nil {
		return StudyResetOutput{}, toolError("open study", err)
	}
	if _, err := o.Dispatch(ctx, study.Reset{Confirmed: input.Confirmed}); err != nil {
		return StudyResetOutput{}, toolError("reset", err)
	}
	return StudyResetOutput{Message: "Conversation reset"}, nil
}

func interviewOutput(snap interview.Snapshot) InterviewOutput {
	out := InterviewOutput{
		State:            string(snap.State),
		Index:            snap.Index,
		RemainingSeconds: snap.Remaining,
	}
	sess := snap.Session
	if sess == nil {
		return out
	}
	out.SessionID = sess.ID
	if sess.Summary != nil {
		out.Summary = *sess.Summary
	}
	out.Questions = make([]QuestionResult, len(sess.Questions))
	for i, q := range sess.Questions {
		r := QuestionResult{Question: q.Text}
		if i < len(sess.Answers) {
			r.Answer = sess.Answers[i]
			if strings.TrimSpace(r.Answer) != "" {
				out.Answered++
			}
		}
		if q.Good != nil {
			r.Good = *q.Good
		}
		if q.Missing != nil {
			r.Missing = *q.Missing
		}
		out.Questions[i] = r
	}
	return out
}

// toolError keeps generation failures from echoing provider output back to
// the client.
func toolError(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrPersonaNotFound),
		errors.Is(err, domain.ErrConfirmationRequired),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrTerminal),
		errors.Is(err, domain.ErrBusy):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s failed; please try again", op)
	}
}

// ServeStdio starts the MCP server on stdio
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// ServeHTTP starts the MCP server on HTTP (alternative transport)
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr)
}

// GetMCPServer returns the underlying MCP server (for testing)
func (s *Server) GetMCPServer() *server.Server {
	return s.mcpServer
}
