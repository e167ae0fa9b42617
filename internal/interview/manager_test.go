package interview

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/mentora/internal/domain"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestManager_ClockAutoSubmits(t *testing.T) {
	f := newFixture()
	f.service.SetDuration(3 * time.Second)
	sess, err := f.service.Create(context.Background(), CreateRequest{OwnerID: "owner-1", Subject: domain.SubjectDSA, Difficulty: domain.DifficultyEasy})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	mgr := NewManager(f.service, nil)
	mgr.SetTickInterval(time.Millisecond)
	defer mgr.Close()

	if _, err := mgr.Dispatch(context.Background(), "owner-1", sess.ID, Start{}); err != nil {
		t.Fatalf("Start error = %v", err)
	}

	m, _ := mgr.Open(context.Background(), "owner-1", sess.ID)
	waitFor(t, func() bool { return m.Snapshot().State == StateResults })

	if n := f.grader.calls.Load(); n != 1 {
		t.Errorf("grader calls = %d; want 1", n)
	}
}

func TestManager_PauseStopsClock(t *testing.T) {
	f := newFixture()
	sess, _ := f.service.Create(context.Background(), CreateRequest{OwnerID: "owner-1", Subject: domain.SubjectDSA, Difficulty: domain.DifficultyEasy})

	mgr := NewManager(f.service, nil)
	mgr.SetTickInterval(time.Millisecond)
	defer mgr.Close()

	ctx := context.Background()
	mgr.Dispatch(ctx, "owner-1", sess.ID, Start{})
	m, _ := mgr.Open(ctx, "owner-1", sess.ID)
	waitFor(t, func() bool { return m.Snapshot().Remaining < 1800 })

	snap, err := mgr.Dispatch(ctx, "owner-1", sess.ID, Pause{})
	if err != nil {
		t.Fatalf("Pause error = %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if got := m.Snapshot().Remaining; got != snap.Remaining {
		t.Errorf("Remaining moved while paused: %d -> %d", snap.Remaining, got)
	}
}

func TestManager_OwnerScopingAndForget(t *testing.T) {
	f := newFixture()
	sess, _ := f.service.Create(context.Background(), CreateRequest{OwnerID: "owner-1", Subject: domain.SubjectDSA, Difficulty: domain.DifficultyEasy})

	mgr := NewManager(f.service, nil)
	defer mgr.Close()
	ctx := context.Background()

	first, err := mgr.Open(ctx, "owner-1", sess.ID)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	again, _ := mgr.Open(ctx, "owner-1", sess.ID)
	if first != again {
		t.Error("Open() should return the live machine")
	}
	if _, err := mgr.Open(ctx, "intruder", sess.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Open() by other owner error = %v; want ErrNotFound", err)
	}

	mgr.Forget(sess.ID)
	reloaded, _ := mgr.Open(ctx, "owner-1", sess.ID)
	if reloaded == first {
		t.Error("Forget() should drop the live machine")
	}
}

func TestManager_DeleteForgetsMachine(t *testing.T) {
	f := newFixture()
	sess, _ := f.service.Create(context.Background(), CreateRequest{OwnerID: "owner-1", Subject: domain.SubjectDSA, Difficulty: domain.DifficultyEasy})

	mgr := NewManager(f.service, nil)
	defer mgr.Close()
	ctx := context.Background()

	if _, err := mgr.Dispatch(ctx, "owner-1", sess.ID, Delete{Confirmed: true}); err != nil {
		t.Fatalf("Delete error = %v", err)
	}
	if _, err := mgr.Open(ctx, "owner-1", sess.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Open() after delete error = %v; want ErrNotFound", err)
	}
}

func TestManager_RejectedEventDuringAutoSubmit(t *testing.T) {
	f := newFixture()
	f.grader.gate = make(chan struct{})
	f.service.SetDuration(time.Second)
	sess, err := f.service.Create(context.Background(), CreateRequest{OwnerID: "owner-1", Subject: domain.SubjectDSA, Difficulty: domain.DifficultyEasy})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	mgr := NewManager(f.service, nil)
	mgr.SetTickInterval(time.Millisecond)
	defer mgr.Close()

	ctx := context.Background()
	if _, err := mgr.Dispatch(ctx, "owner-1", sess.ID, Start{}); err != nil {
		t.Fatalf("Start error = %v", err)
	}
	m, _ := mgr.Open(ctx, "owner-1", sess.ID)
	waitFor(t, func() bool { return m.Snapshot().State == StateGrading })

	for _, ev := range []Event{Answer{Text: "late keystroke"}, Pause{}, Tick{}} {
		if _, err := mgr.Dispatch(ctx, "owner-1", sess.ID, ev); !errors.Is(err, domain.ErrBusy) {
			t.Errorf("Dispatch(%T) during grading error = %v; want ErrBusy", ev, err)
		}
	}

	close(f.grader.gate)
	waitFor(t, func() bool { return m.Snapshot().State != StateGrading })

	snap := m.Snapshot()
	if snap.State != StateResults || snap.Error != "" {
		t.Fatalf("State = %q, Error = %q; want results with no error", snap.State, snap.Error)
	}
	if stored := f.store.stored(sess.ID); stored == nil || !stored.IsCompleted() {
		t.Error("auto-submitted session should be completed in the store")
	}
	if stored := f.store.stored(sess.ID); stored != nil && stored.Answers[0] == "late keystroke" {
		t.Error("answer sent during grading should not be recorded")
	}
	if n := f.grader.calls.Load(); n != 1 {
		t.Errorf("grader calls = %d; want 1", n)
	}
}
