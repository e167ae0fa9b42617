package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/mentora/internal/domain"
)

type fixture struct {
	store     *memStore
	grader    *fakeGrader
	publisher *recordingPublisher
	service   *Service
}

func newFixture() *fixture {
	f := &fixture{
		store:     newMemStore(),
		grader:    &fakeGrader{},
		publisher: &recordingPublisher{},
	}
	f.service = NewService(f.store, &fakeQuestions{}, f.grader, nil)
	f.service.SetPublisher(f.publisher)
	return f
}

func (f *fixture) open(t *testing.T, difficulty domain.Difficulty) *Machine {
	t.Helper()
	ctx := context.Background()
	sess, err := f.service.Create(ctx, CreateRequest{OwnerID: "owner-1", Subject: domain.SubjectDSA, Difficulty: difficulty})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	m, err := f.service.Open(ctx, "owner-1", sess.ID)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return m
}

func mustDispatch(t *testing.T, m *Machine, ev Event) Snapshot {
	t.Helper()
	snap, err := m.Dispatch(context.Background(), ev)
	if err != nil {
		t.Fatalf("Dispatch(%T) error = %v", ev, err)
	}
	return snap
}

func TestMachine_FullRoundTrip(t *testing.T) {
	f := newFixture()
	m := f.open(t, domain.DifficultyHard)

	snap := m.Snapshot()
	if snap.State != StateReady {
		t.Fatalf("State = %q; want ready", snap.State)
	}
	for i, q := range snap.Session.Questions {
		if q.Difficulty != domain.DifficultyHard {
			t.Errorf("question %d difficulty = %q; want hard", i, q.Difficulty)
		}
	}

	snap = mustDispatch(t, m, Start{})
	if snap.State != StateAnswering || !snap.Running || snap.Remaining != 1800 {
		t.Fatalf("after Start: %+v", snap)
	}

	for i := 0; i < domain.QuestionCount; i++ {
		mustDispatch(t, m, Navigate{Index: i})
		mustDispatch(t, m, Answer{Text: "answer"})
	}

	snap = mustDispatch(t, m, Finish{})
	if snap.State != StateResults {
		t.Fatalf("State = %q; want results", snap.State)
	}
	if snap.Session.Summary == nil || snap.Session.CompletedAt == nil {
		t.Fatal("summary and completion stamp should be set")
	}
	if err := snap.Session.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	stored := f.store.stored(snap.Session.ID)
	if !stored.IsCompleted() || len(stored.Questions) != domain.QuestionCount {
		t.Errorf("stored session not completed: %+v", stored)
	}
	for _, a := range stored.Answers {
		if a != "answer" {
			t.Errorf("stored answer = %q; want answer", a)
		}
	}

	got := f.publisher.types()
	if len(got) != 2 || got[0] != domain.EventInterviewCreated || got[1] != domain.EventInterviewCompleted {
		t.Errorf("events = %v", got)
	}

	// terminal
	if _, err := m.Dispatch(context.Background(), Answer{Text: "late"}); !errors.Is(err, domain.ErrTerminal) {
		t.Errorf("Answer after results error = %v; want ErrTerminal", err)
	}
}

func TestMachine_GradingFailureRecovers(t *testing.T) {
	f := newFixture()
	f.grader.err = errMalformed
	m := f.open(t, domain.DifficultyMedium)

	mustDispatch(t, m, Start{})
	for i := 0; i < domain.QuestionCount; i++ {
		mustDispatch(t, m, Navigate{Index: i})
		mustDispatch(t, m, Answer{Text: "kept"})
	}

	snap, err := m.Dispatch(context.Background(), Finish{})
	if err == nil {
		t.Fatal("Finish() should fail when grading is malformed")
	}
	if snap.State != StateAnswering {
		t.Errorf("State = %q; want answering", snap.State)
	}
	if snap.Running {
		t.Error("timer should stay paused after a failed submission")
	}
	if snap.Session.CompletedAt != nil || snap.Session.Summary != nil {
		t.Error("session must not be completed")
	}
	if snap.Error == "" || snap.Error == "not json" {
		t.Errorf("Error = %q; want a user-facing message", snap.Error)
	}
	for i, a := range snap.Session.Answers {
		if a != "kept" {
			t.Errorf("answer %d = %q; want kept", i, a)
		}
	}
	if f.store.stored(snap.Session.ID).IsCompleted() {
		t.Error("stored session must not be completed")
	}

	// retry succeeds with identical input
	f.grader.err = nil
	snap = mustDispatch(t, m, Finish{})
	if snap.State != StateResults || snap.Error != "" {
		t.Errorf("retry: state = %q, error = %q", snap.State, snap.Error)
	}
}

func TestMachine_CompletionStoreFailure(t *testing.T) {
	f := newFixture()
	m := f.open(t, domain.DifficultyEasy)
	f.store.failComplete = errors.New("disk full")

	mustDispatch(t, m, Start{})
	snap, err := m.Dispatch(context.Background(), Finish{})
	if err == nil {
		t.Fatal("Finish() should surface the store failure")
	}
	if snap.State != StateAnswering || snap.Session.IsCompleted() {
		t.Errorf("snapshot after failed completion: %+v", snap)
	}
}

func TestMachine_TimerExpiryFinishesOnce(t *testing.T) {
	f := newFixture()
	m := f.open(t, domain.DifficultyEasy)
	mustDispatch(t, m, Start{})

	var last Snapshot
	for i := 0; i < 1800; i++ {
		last = mustDispatch(t, m, Tick{})
	}
	if last.State != StateResults {
		t.Fatalf("State = %q; want results", last.State)
	}
	// extra ticks are ignored
	for i := 0; i < 5; i++ {
		mustDispatch(t, m, Tick{})
	}
	if n := f.grader.calls.Load(); n != 1 {
		t.Errorf("grader calls = %d; want 1", n)
	}
}

func TestMachine_PauseResumeContinues(t *testing.T) {
	f := newFixture()
	m := f.open(t, domain.DifficultyMedium)
	mustDispatch(t, m, Start{})

	for i := 0; i < 900; i++ {
		mustDispatch(t, m, Tick{})
	}
	snap := mustDispatch(t, m, Pause{})
	if snap.Remaining != 900 || snap.Running {
		t.Fatalf("after pause: remaining %d running %v", snap.Remaining, snap.Running)
	}

	for i := 0; i < 10; i++ {
		mustDispatch(t, m, Tick{})
	}
	snap = mustDispatch(t, m, Resume{})
	if snap.Remaining != 900 || !snap.Running {
		t.Errorf("after resume: remaining %d running %v; want 900 true", snap.Remaining, snap.Running)
	}
	snap = mustDispatch(t, m, Tick{})
	if snap.Remaining != 899 {
		t.Errorf("Remaining = %d; want 899", snap.Remaining)
	}
}

func TestMachine_ExpiredTimerCannotResume(t *testing.T) {
	f := newFixture()
	f.grader.err = errMalformed
	m := f.open(t, domain.DifficultyMedium)
	mustDispatch(t, m, Start{})

	for i := 0; i < 1799; i++ {
		mustDispatch(t, m, Tick{})
	}
	if _, err := m.Dispatch(context.Background(), Tick{}); err == nil {
		t.Fatal("expiry should surface the grading failure")
	}
	if _, err := m.Dispatch(context.Background(), Resume{}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("Resume() error = %v; want ErrInvalidTransition", err)
	}
	if n := f.grader.calls.Load(); n != 1 {
		t.Errorf("grader calls = %d; want 1", n)
	}
}

func TestMachine_BusyDuringGrading(t *testing.T) {
	f := newFixture()
	f.grader.gate = make(chan struct{})
	m := f.open(t, domain.DifficultyMedium)
	mustDispatch(t, m, Start{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.Dispatch(context.Background(), Finish{})
	}()

	deadline := time.Now().Add(2 * time.Second)
	for m.Snapshot().State != StateGrading {
		if time.Now().After(deadline) {
			t.Fatal("machine never entered grading")
		}
		time.Sleep(time.Millisecond)
	}

	for _, ev := range []Event{Answer{Text: "x"}, Finish{}, Navigate{Index: 1}, Tick{}} {
		if _, err := m.Dispatch(context.Background(), ev); !errors.Is(err, domain.ErrBusy) {
			t.Errorf("Dispatch(%T) during grading error = %v; want ErrBusy", ev, err)
		}
	}

	close(f.grader.gate)
	wg.Wait()
	if got := m.Snapshot().State; got != StateResults {
		t.Errorf("State = %q; want results", got)
	}
	if n := f.grader.calls.Load(); n != 1 {
		t.Errorf("grader calls = %d; want 1", n)
	}
}

func TestMachine_AutosaveFailureIsNonFatal(t *testing.T) {
	f := newFixture()
	m := f.open(t, domain.DifficultyMedium)
	mustDispatch(t, m, Start{})
	f.store.failUpdate = errors.New("offline")

	snap := mustDispatch(t, m, Answer{Text: "still here"})
	if snap.Session.Answers[0] != "still here" {
		t.Errorf("in-memory answer = %q", snap.Session.Answers[0])
	}

	f.store.failUpdate = nil
	mustDispatch(t, m, Navigate{Index: 3})
	mustDispatch(t, m, Answer{Text: "later"})

	stored := f.store.stored(m.ID())
	if stored.Answers[0] != "still here" || stored.Answers[3] != "later" {
		t.Errorf("stored answers = %q", stored.Answers)
	}
	if len(stored.Answers) != len(stored.Questions) {
		t.Errorf("answers/questions length mismatch")
	}
}

func TestMachine_InvalidTransitions(t *testing.T) {
	f := newFixture()
	m := f.open(t, domain.DifficultyMedium)

	for _, ev := range []Event{Pause{}, Resume{}, Answer{Text: "x"}, Navigate{Index: 1}, Finish{}} {
		if _, err := m.Dispatch(context.Background(), ev); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Errorf("Dispatch(%T) in ready error = %v; want ErrInvalidTransition", ev, err)
		}
	}

	mustDispatch(t, m, Start{})
	if _, err := m.Dispatch(context.Background(), Start{}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("second Start() error = %v; want ErrInvalidTransition", err)
	}
	if _, err := m.Dispatch(context.Background(), Navigate{Index: domain.QuestionCount}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("Navigate(out of range) error = %v; want ErrInvalidInput", err)
	}
}

func TestMachine_Delete(t *testing.T) {
	f := newFixture()
	m := f.open(t, domain.DifficultyMedium)

	if _, err := m.Dispatch(context.Background(), Delete{}); !errors.Is(err, domain.ErrConfirmationRequired) {
		t.Fatalf("Delete() unconfirmed error = %v; want ErrConfirmationRequired", err)
	}
	if f.store.stored(m.ID()) == nil {
		t.Fatal("unconfirmed delete must keep the record")
	}

	snap := mustDispatch(t, m, Delete{Confirmed: true})
	if !snap.Deleted {
		t.Error("snapshot should be marked deleted")
	}
	if f.store.stored(m.ID()) != nil {
		t.Error("record should be removed")
	}
	if _, err := m.Dispatch(context.Background(), Start{}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Start() after delete error = %v; want ErrNotFound", err)
	}
}

func TestMachine_DeleteNotAllowedInResults(t *testing.T) {
	f := newFixture()
	m := f.open(t, domain.DifficultyMedium)
	mustDispatch(t, m, Start{})
	mustDispatch(t, m, Finish{})

	if _, err := m.Dispatch(context.Background(), Delete{Confirmed: true}); !errors.Is(err, domain.ErrTerminal) {
		t.Errorf("Delete() in results error = %v; want ErrTerminal", err)
	}
}

func TestEventRequest_Decode(t *testing.T) {
	tests := []struct {
		req  EventRequest
		want Event
	}{
		{EventRequest{Type: "start"}, Start{}},
		{EventRequest{Type: "navigate", Index: 4}, Navigate{Index: 4}},
		{EventRequest{Type: "answer", Text: "hi"}, Answer{Text: "hi"}},
		{EventRequest{Type: "delete", Confirmed: true}, Delete{Confirmed: true}},
		{EventRequest{Type: "finish"}, Finish{}},
	}
	for _, tt := range tests {
		got, err := tt.req.Decode()
		if err != nil {
			t.Errorf("Decode(%q) error = %v", tt.req.Type, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Decode(%q) = %#v; want %#v", tt.req.Type, got, tt.want)
		}
	}

	if _, err := (EventRequest{Type: "jump"}).Decode(); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("Decode(jump) error = %v; want ErrInvalidInput", err)
	}
}

func TestMachine_FinishSurvivesCallerCancel(t *testing.T) {
	f := newFixture()
	f.grader.gate = make(chan struct{})
	m := f.open(t, domain.DifficultyMedium)
	mustDispatch(t, m, Start{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := m.Dispatch(ctx, Finish{})
		done <- err
	}()

	waitFor(t, func() bool { return m.Snapshot().State == StateGrading })
	cancel()
	close(f.grader.gate)

	if err := <-done; err != nil {
		t.Fatalf("Finish error = %v", err)
	}
	if got := m.Snapshot().State; got != StateResults {
		t.Errorf("State = %q; want results", got)
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"canceled", fmt.Errorf("grade: %w", context.Canceled), "interrupted"},
		{"deadline", context.DeadlineExceeded, "interrupted"},
		{"shape", errMalformed, "malformed"},
		{"store", errors.New("disk full"), "could not be saved"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := userMessage(tt.err); !strings.Contains(got, tt.want) {
				t.Errorf("userMessage() = %q; want it to mention %q", got, tt.want)
			}
		})
	}
}
