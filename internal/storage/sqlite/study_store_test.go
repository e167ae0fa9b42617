package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/mentora/internal/domain"
)

const testPersona = "dsa-narayanan"

func TestStudyStore_StateRoundTrip(t *testing.T) {
	store := NewStudyStore(openTestDB(t))
	ctx := context.Background()

	if _, err := store.GetStudyState(ctx, "owner-1", testPersona); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetStudyState() before write error = %v; want ErrNotFound", err)
	}

	st := domain.NewStudySessionState("owner-1", testPersona, "Welcome!")
	st.Mode = domain.ModeStudy
	st.StudyStage = domain.StageOpenDialogue
	st.SelectedLevel = domain.LevelBeginner
	st.Topic = "Arrays"
	st.LessonPlan = []string{"Indexing", "Slicing"}
	st.LessonStep = 1
	st.Messages = append(st.Messages, domain.Message{Role: domain.RoleUser, Content: "hi"})

	if err := store.WriteStudyState(ctx, st); err != nil {
		t.Fatalf("WriteStudyState() error = %v", err)
	}

	loaded, err := store.GetStudyState(ctx, "owner-1", testPersona)
	if err != nil {
		t.Fatalf("GetStudyState() error = %v", err)
	}
	if loaded.Mode != domain.ModeStudy || loaded.StudyStage != domain.StageOpenDialogue {
		t.Errorf("Mode/Stage = %q/%q", loaded.Mode, loaded.StudyStage)
	}
	if loaded.Topic != "Arrays" || loaded.LessonStep != 1 || len(loaded.LessonPlan) != 2 {
		t.Errorf("lesson fields = %q %d %v", loaded.Topic, loaded.LessonStep, loaded.LessonPlan)
	}
	if len(loaded.Messages) != 2 || loaded.Messages[1].Content != "hi" {
		t.Errorf("Messages = %+v", loaded.Messages)
	}

	// overwrite replaces
	st.Topic = "Graphs"
	if err := store.WriteStudyState(ctx, st); err != nil {
		t.Fatalf("second WriteStudyState() error = %v", err)
	}
	loaded, _ = store.GetStudyState(ctx, "owner-1", testPersona)
	if loaded.Topic != "Graphs" {
		t.Errorf("Topic = %q; want Graphs", loaded.Topic)
	}
}

func TestStudyStore_MessagesAndReset(t *testing.T) {
	store := NewStudyStore(openTestDB(t))
	ctx := context.Background()

	for _, m := range []domain.TranscriptMessage{
		{OwnerID: "owner-1", PersonaID: testPersona, Role: domain.RoleUser, Content: "first"},
		{OwnerID: "owner-1", PersonaID: testPersona, Role: domain.RoleAssistant, Content: "second"},
		{OwnerID: "owner-2", PersonaID: testPersona, Role: domain.RoleUser, Content: "other"},
	} {
		if err := store.AppendStudyMessage(ctx, &m); err != nil {
			t.Fatalf("AppendStudyMessage() error = %v", err)
		}
	}

	msgs, err := store.ListStudyMessages(ctx, "owner-1", testPersona)
	if err != nil {
		t.Fatalf("ListStudyMessages() error = %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "first" || msgs[1].Content != "second" {
		t.Fatalf("messages = %+v", msgs)
	}
	if msgs[0].ID == "" {
		t.Error("message ID should be assigned")
	}

	if err := store.WriteStudyState(ctx, domain.NewStudySessionState("owner-1", testPersona, "hi")); err != nil {
		t.Fatalf("WriteStudyState() error = %v", err)
	}
	if err := store.ResetStudyState(ctx, "owner-1", testPersona); err != nil {
		t.Fatalf("ResetStudyState() error = %v", err)
	}

	msgs, _ = store.ListStudyMessages(ctx, "owner-1", testPersona)
	if len(msgs) != 0 {
		t.Errorf("messages after reset = %d; want 0", len(msgs))
	}
	if _, err := store.GetStudyState(ctx, "owner-1", testPersona); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetStudyState() after reset error = %v; want ErrNotFound", err)
	}
	others, _ := store.ListStudyMessages(ctx, "owner-2", testPersona)
	if len(others) != 1 {
		t.Errorf("other owner's messages = %d; want 1", len(others))
	}
}

func TestStudyStore_Personas(t *testing.T) {
	store := NewStudyStore(openTestDB(t))
	ctx := context.Background()

	p, err := store.GetPersona(ctx, testPersona)
	if err != nil {
		t.Fatalf("GetPersona() error = %v", err)
	}
	if p.Subject != "dsa" || p.DisplayPrompt == "" {
		t.Errorf("persona = %+v", p)
	}

	if _, err := store.GetPersona(ctx, "nobody"); !errors.Is(err, domain.ErrPersonaNotFound) {
		t.Errorf("GetPersona(nobody) error = %v; want ErrPersonaNotFound", err)
	}

	all, err := store.ListPersonas(ctx)
	if err != nil {
		t.Fatalf("ListPersonas() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len(personas) = %d; want 3", len(all))
	}
}

func TestLessonCache(t *testing.T) {
	cache := NewLessonCache(openTestDB(t))
	ctx := context.Background()

	if _, err := cache.GetLessonCache(ctx, "arrays"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetLessonCache() miss error = %v; want ErrNotFound", err)
	}
	if err := cache.PutLessonCache(ctx, "arrays", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("PutLessonCache() error = %v", err)
	}
	if err := cache.PutLessonCache(ctx, "arrays", []byte(`{"a":2}`)); err != nil {
		t.Fatalf("PutLessonCache() overwrite error = %v", err)
	}
	got, err := cache.GetLessonCache(ctx, "arrays")
	if err != nil {
		t.Fatalf("GetLessonCache() error = %v", err)
	}
	if string(got) != `{"a":2}` {
		t.Errorf("cached = %s; want {\"a\":2}", got)
	}
}
