package history

import (
	"strings"
	"testing"

	"github.com/antariksh/spacebot/internal/chat"
	"github.com/antariksh/spacebot/internal/session"
)

func newTestBrowser(t *testing.T) (*Browser, *session.Store, session.Identity, *int) {
	t.Helper()

	store, err := session.Open(":memory:", nil)
	if err != nil {
		t.Fatalf("session.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	sess, err := session.NewManager(t.TempDir(), nil, nil)
	if err != nil {
		t.Fatalf("session.NewManager: %v", err)
	}
	id, err := sess.Login("Asha", "asha@example.in", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	navigations := 0
	b := New(sess, store, func() { navigations++ }, nil)
	return b, store, id, &navigations
}

func seed(t *testing.T, store *session.Store, id session.Identity, convID, question string) chat.Conversation {
	t.Helper()
	conv := chat.Conversation{ID: convID}
	conv.AppendGreeting()
	conv.Append(chat.SenderUser, question, false)
	conv.Append(chat.SenderBot, "answer", false)
	if err := store.SaveCurrent(id, conv); err != nil {
		t.Fatalf("SaveCurrent: %v", err)
	}
	return conv
}

func TestListWithPreviews(t *testing.T) {
	b, store, id, _ := newTestBrowser(t)
	seed(t, store, id, "c1", "first question")
	seed(t, store, id, "c2", "second question")

	entries := b.List()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Conversation.ID != "c2" {
		t.Errorf("front entry = %s, want c2", entries[0].Conversation.ID)
	}
	if len(entries[0].Preview) != 2 {
		t.Fatalf("preview has %d lines, want 2", len(entries[0].Preview))
	}
	if !strings.HasPrefix(entries[0].Preview[0], "Namaste!") || !strings.HasSuffix(entries[0].Preview[0], "...") {
		t.Errorf("preview[0] = %q, want truncated greeting", entries[0].Preview[0])
	}
}

func TestListEmpty(t *testing.T) {
	b, _, _, _ := newTestBrowser(t)
	if entries := b.List(); len(entries) != 0 {
		t.Errorf("got %d entries, want 0", len(entries))
	}
}

func TestViewTranscript(t *testing.T) {
	b, store, id, _ := newTestBrowser(t)
	want := seed(t, store, id, "c1", "what is MOSDAC?")

	got, err := b.View("c1")
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if len(got.Messages) != len(want.Messages) {
		t.Errorf("transcript has %d messages, want %d", len(got.Messages), len(want.Messages))
	}

	if _, err := b.View("missing"); err != ErrNotFound {
		t.Errorf("View missing: err = %v, want ErrNotFound", err)
	}
}

func TestContinueAdoptsAndNavigates(t *testing.T) {
	b, store, id, navigations := newTestBrowser(t)
	want := seed(t, store, id, "c1", "resume me")
	store.ClearCurrent()

	if err := b.Continue("c1"); err != nil {
		t.Fatalf("Continue: %v", err)
	}

	conv, filled, err := store.LoadCurrent(id)
	if err != nil || !filled {
		t.Fatalf("LoadCurrent: filled=%v err=%v", filled, err)
	}
	if conv.ID != "c1" || len(conv.Messages) != len(want.Messages) {
		t.Errorf("adopted conversation = %+v", conv)
	}
	if *navigations != 1 {
		t.Errorf("navigations = %d, want 1", *navigations)
	}

	// The history entry stays put.
	if len(b.List()) != 1 {
		t.Error("Continue must not remove the stored entry")
	}
}

func TestDeleteSingle(t *testing.T) {
	b, store, id, _ := newTestBrowser(t)
	seed(t, store, id, "c1", "one")
	seed(t, store, id, "c2", "two")

	if err := b.Delete("c1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	entries := b.List()
	if len(entries) != 1 || entries[0].Conversation.ID != "c2" {
		t.Errorf("entries after delete = %+v", entries)
	}
}

func TestDeleteAllRequiresConfirmation(t *testing.T) {
	b, store, id, _ := newTestBrowser(t)
	seed(t, store, id, "c1", "one")

	if err := b.DeleteAll(func() bool { return false }); err != ErrDeclined {
		t.Errorf("declined DeleteAll: err = %v, want ErrDeclined", err)
	}
	if len(b.List()) != 1 {
		t.Error("declined DeleteAll must not delete anything")
	}

	if err := b.DeleteAll(func() bool { return true }); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if len(b.List()) != 0 {
		t.Error("history should be empty after confirmed DeleteAll")
	}
	if _, filled, _ := store.LoadCurrent(id); filled {
		t.Error("current slot should be cleared by DeleteAll")
	}
}

func TestNewChatClearsSlotOnly(t *testing.T) {
	b, store, id, navigations := newTestBrowser(t)
	seed(t, store, id, "c1", "kept")

	if err := b.NewChat(); err != nil {
		t.Fatalf("NewChat: %v", err)
	}
	if _, filled, _ := store.LoadCurrent(id); filled {
		t.Error("NewChat must clear the current slot")
	}
	if len(b.List()) != 1 {
		t.Error("NewChat must not touch stored history")
	}
	if *navigations != 1 {
		t.Errorf("navigations = %d, want 1", *navigations)
	}
}
