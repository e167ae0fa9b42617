package study

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/mentora/internal/domain"
	"github.com/felixgeelhaar/mentora/internal/generation"
	"github.com/felixgeelhaar/mentora/internal/lesson"
	"github.com/felixgeelhaar/mentora/internal/prompt"
)

const dialogueMaxTokens = 1000

// State is a point-in-time copy of a conversation.
type State struct {
	PersonaID     string            `json:"persona_id"`
	Mode          domain.Mode       `json:"mode"`
	StudyStage    domain.StudyStage `json:"study_stage"`
	SelectedLevel domain.Level      `json:"selected_level,omitempty"`
	Topics        []string          `json:"topics,omitempty"`
	Topic         string            `json:"topic,omitempty"`
	LessonPlan    []string          `json:"lesson_plan,omitempty"`
	LessonStep    int               `json:"lesson_step"`
	Messages      []domain.Message  `json:"messages"`
	Replying      bool              `json:"replying"`
	Error         string            `json:"error,omitempty"`
}

// Update is delivered to listeners after every change. Fragment is set while
// a reply is streaming.
type Update struct {
	State    State
	Fragment string
}

// Listener observes updates. It is called without the orchestrator's lock
// held and must not call Dispatch.
type Listener func(Update)

// Orchestrator drives one (owner, persona) conversation. Events are
// serialized by a mutex; generation runs outside it while a busy flag
// rejects new events.
type Orchestrator struct {
	mu      sync.Mutex
	state   *domain.StudySessionState
	persona *domain.Persona
	busy    bool
	pending int
	lastErr string

	listenMu  sync.Mutex
	listeners map[int]Listener
	nextID    int

	store     Store
	gen       generation.Generator
	lessons   Lessons
	retriever Retriever
	publisher Publisher
	logger    *slog.Logger
}

// OwnerID returns the conversation owner.
func (o *Orchestrator) OwnerID() string {
	return o.state.OwnerID
}

// Persona returns the mentor of this conversation.
func (o *Orchestrator) Persona() domain.Persona {
	return *o.persona
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshot()
}

func (o *Orchestrator) snapshot() State {
	st := o.state
	s := State{
		PersonaID:     st.PersonaID,
		Mode:          st.Mode,
		StudyStage:    st.StudyStage,
		SelectedLevel: st.SelectedLevel,
		Topic:         st.Topic,
		LessonPlan:    append([]string(nil), st.LessonPlan...),
		LessonStep:    st.LessonStep,
		Messages:      append([]domain.Message(nil), st.Messages...),
		Replying:      o.busy,
		Error:         o.lastErr,
	}
	if st.Mode == domain.ModeStudy && st.StudyStage == domain.StageChoosingTopic {
		s.Topics = Topics(o.persona.Subject, st.SelectedLevel)
	}
	return s
}

// Subscribe registers a listener and returns a function that removes it.
func (o *Orchestrator) Subscribe(fn Listener) func() {
	o.listenMu.Lock()
	defer o.listenMu.Unlock()
	id := o.nextID
	o.nextID++
	o.listeners[id] = fn
	return func() {
		o.listenMu.Lock()
		defer o.listenMu.Unlock()
		delete(o.listeners, id)
	}
}

func (o *Orchestrator) notify(u Update) {
	o.listenMu.Lock()
	fns := make([]Listener, 0, len(o.listeners))
	for _, fn := range o.listeners {
		fns = append(fns, fn)
	}
	o.listenMu.Unlock()
	for _, fn := range fns {
		fn(u)
	}
}

// Dispatch applies one event and returns the resulting state. Events that
// need a generation call return only once the call has finished.
func (o *Orchestrator) Dispatch(ctx context.Context, ev Event) (State, error) {
	o.mu.Lock()
	if o.busy {
		st := o.snapshot()
		o.mu.Unlock()
		return st, fmt.Errorf("%s: %w", ev.eventName(), domain.ErrBusy)
	}

	work, err := o.apply(ctx, ev)
	if err != nil {
		st := o.snapshot()
		o.mu.Unlock()
		return st, err
	}
	if work == nil {
		o.lastErr = ""
		o.persist(ctx)
		st := o.snapshot()
		o.mu.Unlock()
		o.notify(Update{State: st})
		return st, nil
	}

	o.busy = true
	o.lastErr = ""
	o.persist(ctx)
	st := o.snapshot()
	o.mu.Unlock()
	o.notify(Update{State: st})

	err = work(ctx)

	o.mu.Lock()
	o.busy = false
	if err != nil {
		o.lastErr = userMessage(err)
		o.logger.Warn("study turn failed", "owner_id", o.state.OwnerID, "persona_id", o.state.PersonaID, "event", ev.eventName(), "error", err)
	}
	o.persist(ctx)
	st = o.snapshot()
	o.mu.Unlock()
	o.notify(Update{State: st})
	return st, err
}

// apply handles every event under the lock. Events that generate return the
// work to run once the lock is released.
func (o *Orchestrator) apply(ctx context.Context, ev Event) (func(context.Context) error, error) {
	st := o.state

	switch e := ev.(type) {
	case SelectMode:
		if st.Mode != domain.ModeUnselected {
			return nil, fmt.Errorf("%w: mode already chosen", domain.ErrInvalidTransition)
		}
		switch e.Mode {
		case domain.ModeStudy:
			st.StudyStage = domain.StageChoosingLevel
		case domain.ModeAdvice:
		default:
			return nil, fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidInput, e.Mode)
		}
		st.Mode = e.Mode
		return nil, nil

	case SelectLevel:
		if st.Mode != domain.ModeStudy || st.StudyStage != domain.StageChoosingLevel {
			return nil, o.invalid(ev)
		}
		if !e.Level.Valid() {
			return nil, fmt.Errorf("%w: unknown level %q", domain.ErrInvalidInput, e.Level)
		}
		st.SelectedLevel = e.Level
		st.StudyStage = domain.StageChoosingTopic
		return nil, nil

	case SelectTopic:
		if st.Mode != domain.ModeStudy || st.StudyStage != domain.StageChoosingTopic {
			return nil, o.invalid(ev)
		}
		topic, ok := lookupTopic(o.persona.Subject, st.SelectedLevel, e.Topic)
		if !ok {
			return nil, fmt.Errorf("%w: topic %q is not offered at this level", domain.ErrInvalidInput, e.Topic)
		}
		st.Topic = topic
		st.StudyStage = domain.StageOpenDialogue
		st.LessonPlan = nil
		st.LessonStep = 0
		return func(ctx context.Context) error {
			o.plan(ctx, topic)
			return o.converse(ctx, prompt.LessonOpener(topic))
		}, nil

	case Send:
		if !o.inDialogue() {
			return nil, o.invalid(ev)
		}
		text := strings.TrimSpace(e.Text)
		if text == "" {
			return nil, fmt.Errorf("%w: message is empty", domain.ErrInvalidInput)
		}
		return func(ctx context.Context) error {
			return o.converse(ctx, text)
		}, nil

	case NextLessonStep:
		if st.Mode != domain.ModeStudy || st.StudyStage != domain.StageOpenDialogue || o.lessons == nil {
			return nil, o.invalid(ev)
		}
		next := st.LessonStep + 1
		if next >= len(st.LessonPlan) {
			return nil, fmt.Errorf("%w: no further lesson step", domain.ErrInvalidTransition)
		}
		plan := append([]string(nil), st.LessonPlan...)
		return func(ctx context.Context) error {
			return o.advance(ctx, plan, next)
		}, nil

	case Reset:
		if !e.Confirmed {
			return nil, fmt.Errorf("reset: %w", domain.ErrConfirmationRequired)
		}
		if err := o.store.ResetStudyState(ctx, st.OwnerID, st.PersonaID); err != nil {
			return nil, fmt.Errorf("reset study state: %w", err)
		}
		o.state = domain.NewStudySessionState(st.OwnerID, st.PersonaID, welcomeMessage(o.persona))
		o.logger.Info("study session reset", "owner_id", st.OwnerID, "persona_id", st.PersonaID)
		o.publish(ctx)
		return nil, nil
	}

	return nil, fmt.Errorf("%w: unsupported event", domain.ErrInvalidInput)
}

func (o *Orchestrator) inDialogue() bool {
	switch o.state.Mode {
	case domain.ModeAdvice:
		return true
	case domain.ModeStudy:
		return o.state.StudyStage == domain.StageOpenDialogue
	}
	return false
}

func (o *Orchestrator) invalid(ev Event) error {
	return fmt.Errorf("%w: %s in mode %s, stage %s", domain.ErrInvalidTransition, ev.eventName(), o.state.Mode, o.state.StudyStage)
}

// converse appends the user message and an empty assistant placeholder, then
// grows the placeholder as the reply streams in. On failure the placeholder
// is removed and the user message stays.
func (o *Orchestrator) converse(ctx context.Context, text string) error {
	o.mu.Lock()
	history := dialogueHistory(o.state.Messages)
	o.state.Messages = append(o.state.Messages,
		domain.Message{Role: domain.RoleUser, Content: text},
		domain.Message{Role: domain.RoleAssistant},
	)
	o.pending = len(o.state.Messages) - 1
	o.record(ctx, domain.RoleUser, text)
	o.persist(ctx)
	mode := o.state.Mode
	st := o.snapshot()
	o.mu.Unlock()
	o.notify(Update{State: st})

	call := generation.Call{
		System:    o.system(ctx, mode, text),
		History:   history,
		Prompt:    text,
		MaxTokens: dialogueMaxTokens,
	}
	stream, err := o.gen.Stream(ctx, call)
	if err != nil {
		o.dropPending()
		return fmt.Errorf("start reply: %w", err)
	}

	full, err := stream.Collect(func(fragment string) {
		o.mu.Lock()
		o.state.Messages[o.pending].Content += fragment
		st := o.snapshot()
		o.mu.Unlock()
		o.notify(Update{State: st, Fragment: fragment})
	})
	if err != nil {
		o.dropPending()
		return fmt.Errorf("stream reply: %w", err)
	}

	o.mu.Lock()
	o.state.Messages[o.pending].Content = full
	o.pending = -1
	o.record(ctx, domain.RoleAssistant, full)
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) dropPending() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pending >= 0 {
		o.state.Messages = append(o.state.Messages[:o.pending], o.state.Messages[o.pending+1:]...)
		o.pending = -1
	}
}

// plan asks the lesson planner for a plan. A failure leaves the dialogue
// without one.
func (o *Orchestrator) plan(ctx context.Context, topic string) {
	if o.lessons == nil {
		return
	}
	resp, err := o.lessons.Start(ctx, o.persona.DisplayPrompt, o.persona.Subject, topic)
	if err != nil {
		o.logger.Warn("lesson plan failed", "persona_id", o.persona.ID, "topic", topic, "error", err)
		return
	}
	o.mu.Lock()
	o.state.LessonPlan = resp.LessonPlan
	o.state.LessonStep = 0
	o.mu.Unlock()
}

// advance explains step next of plan as one assistant turn.
func (o *Orchestrator) advance(ctx context.Context, plan []string, next int) error {
	opener := prompt.LessonOpener(plan[next])
	o.mu.Lock()
	o.state.Messages = append(o.state.Messages, domain.Message{Role: domain.RoleUser, Content: opener})
	o.record(ctx, domain.RoleUser, opener)
	o.persist(ctx)
	st := o.snapshot()
	o.mu.Unlock()
	o.notify(Update{State: st})

	resp, err := o.lessons.Continue(ctx, o.persona.DisplayPrompt, o.persona.Subject, plan, next)
	if err != nil {
		return fmt.Errorf("lesson step %d: %w", next, err)
	}

	text := resp.Explanation
	if resp.Final() {
		text += "\n\n" + *resp.Conclusion
	}
	o.mu.Lock()
	o.state.LessonStep = next
	o.state.Messages = append(o.state.Messages, domain.Message{Role: domain.RoleAssistant, Content: text})
	o.record(ctx, domain.RoleAssistant, text)
	o.mu.Unlock()
	return nil
}

// system builds the system instruction for a reply. Advice mode looks up an
// expert answer first; retrieval is best-effort.
func (o *Orchestrator) system(ctx context.Context, mode domain.Mode, question string) string {
	if mode != domain.ModeAdvice {
		return prompt.DialogueSystem(o.persona.DisplayPrompt)
	}
	var expert string
	if o.retriever != nil {
		text, err := o.retriever.Retrieve(ctx, o.persona.Subject, question)
		if err != nil {
			o.logger.Warn("advice retrieval failed", "persona_id", o.persona.ID, "error", err)
		} else {
			expert = text
		}
	}
	return prompt.AdviceSystem(o.persona.DisplayPrompt, expert)
}

// persist writes the cached state. A reply still streaming is left out.
// Failures are logged; the in-memory state stays authoritative.
func (o *Orchestrator) persist(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	st := o.state.Clone()
	if o.pending >= 0 && o.pending < len(st.Messages) {
		st.Messages = st.Messages[:o.pending]
	}
	st.UpdatedAt = time.Now().UTC()
	if err := o.store.WriteStudyState(ctx, st); err != nil {
		o.logger.Warn("study state write failed", "owner_id", st.OwnerID, "persona_id", st.PersonaID, "error", err)
	}
}

// record appends a durable transcript row.
func (o *Orchestrator) record(ctx context.Context, role domain.Role, content string) {
	ctx = context.WithoutCancel(ctx)
	msg := &domain.TranscriptMessage{
		ID:        uuid.New().String(),
		OwnerID:   o.state.OwnerID,
		PersonaID: o.state.PersonaID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.store.AppendStudyMessage(ctx, msg); err != nil {
		o.logger.Warn("transcript append failed", "owner_id", msg.OwnerID, "persona_id", msg.PersonaID, "error", err)
	}
}

func (o *Orchestrator) publish(ctx context.Context) {
	if o.publisher == nil {
		return
	}
	ev := domain.NewLifecycleEvent(domain.EventStudyReset, o.state.OwnerID)
	ev.PersonaID = o.state.PersonaID
	if err := o.publisher.PublishEvent(ctx, ev); err != nil {
		o.logger.Warn("publish event failed", "type", ev.Type, "error", err)
	}
}

// dialogueHistory returns the turns sent as context for the next reply.
// Leading assistant turns (the welcome) are dropped.
func dialogueHistory(msgs []domain.Message) []domain.Message {
	i := 0
	for i < len(msgs) && msgs[i].Role == domain.RoleAssistant {
		i++
	}
	return append([]domain.Message(nil), msgs[i:]...)
}

func welcomeMessage(p *domain.Persona) string {
	name := p.Name
	if name == "" {
		name = "your mentor"
	}
	return fmt.Sprintf("Hi, I'm %s. Would you like to study a topic step by step, or ask me for advice?", name)
}

// userMessage hides raw provider output from the caller.
func userMessage(err error) string {
	switch {
	case errors.Is(err, lesson.ErrMalformedLesson):
		return "The lesson could not be prepared. Please try again."
	case generation.KindOf(err) != "":
		return "Your mentor is unavailable right now. Please try again."
	default:
		return "Something went wrong. Please try again."
	}
}
