package flow

import (
	"context"
	"strings"
	"testing"

	"github.com/BTreeMap/Hamraz/internal/models"
	"github.com/BTreeMap/Hamraz/internal/store"
)

func TestFoldAdvancesPointerAndUpdatesSummary(t *testing.T) {
	st := store.NewInMemoryStore()
	gen := &mockGenAI{reply: "کاربر امروز ناراحت است"}
	m := NewMemoryManager(st, gen)

	if _, err := m.AddMessage("user-1", "سلام", true, 1, models.StateGreeting); err != nil {
		t.Fatalf("failed to add message: %v", err)
	}
	last, err := m.AddMessage("user-1", "امروز حالم خوب نیست", true, 1, models.StateEmotion)
	if err != nil {
		t.Fatalf("failed to add message: %v", err)
	}

	if err := m.Fold(context.Background(), "user-1"); err != nil {
		t.Fatalf("fold failed: %v", err)
	}

	state, err := st.GetMemoryState("user-1")
	if err != nil || state == nil {
		t.Fatalf("expected memory state after fold, got %v, err %v", state, err)
	}
	if state.Summary != "کاربر امروز ناراحت است" {
		t.Errorf("unexpected summary: %q", state.Summary)
	}
	if state.LastFoldedID != last.ID {
		t.Errorf("expected fold pointer at %d, got %d", last.ID, state.LastFoldedID)
	}

	unprocessed, err := m.Unprocessed("user-1")
	if err != nil {
		t.Fatalf("unprocessed failed: %v", err)
	}
	if len(unprocessed) != 0 {
		t.Errorf("expected no unprocessed messages after fold, got %d", len(unprocessed))
	}
}

func TestFoldIsNoOpWithoutUnprocessedMessages(t *testing.T) {
	st := store.NewInMemoryStore()
	gen := &mockGenAI{reply: "خلاصه"}
	m := NewMemoryManager(st, gen)

	if _, err := m.AddMessage("user-1", "سلام", true, 1, models.StateGreeting); err != nil {
		t.Fatalf("failed to add message: %v", err)
	}
	if err := m.Fold(context.Background(), "user-1"); err != nil {
		t.Fatalf("first fold failed: %v", err)
	}
	callsAfterFirst := gen.callCount()

	// Nothing new arrived; a second fold must not call the summarizer
	// or move the pointer.
	if err := m.Fold(context.Background(), "user-1"); err != nil {
		t.Fatalf("second fold failed: %v", err)
	}
	if gen.callCount() != callsAfterFirst {
		t.Error("expected no summarizer call for an empty fold")
	}
}

func TestFormatForPromptIncludesSummaryAndTail(t *testing.T) {
	st := store.NewInMemoryStore()
	gen := &mockGenAI{reply: "کاربر نامش مریم است"}
	m := NewMemoryManager(st, gen)

	if _, err := m.AddMessage("user-1", "من مریم هستم", true, 1, models.StateGreeting); err != nil {
		t.Fatalf("failed to add message: %v", err)
	}
	if err := m.Fold(context.Background(), "user-1"); err != nil {
		t.Fatalf("fold failed: %v", err)
	}
	if _, err := m.AddMessage("user-1", "امروز خسته‌ام", true, 1, models.StateEmotion); err != nil {
		t.Fatalf("failed to add message: %v", err)
	}

	got, err := m.FormatForPrompt("user-1")
	if err != nil {
		t.Fatalf("format failed: %v", err)
	}
	if !strings.Contains(got, "کاربر نامش مریم است") {
		t.Errorf("expected rolling summary in prompt, got %q", got)
	}
	if !strings.Contains(got, "امروز خسته‌ام") {
		t.Errorf("expected unprocessed tail verbatim in prompt, got %q", got)
	}
	if strings.Contains(got, "من مریم هستم") {
		t.Errorf("expected folded message to appear only via the summary, got %q", got)
	}
}
