// Package history is the review surface over stored conversations: listing,
// inspection, resumption, and deletion. It is only reachable through an
// identity-gated path, so a missing identity simply reads as empty history.
package history

import (
	"errors"
	"log/slog"

	"github.com/antariksh/spacebot/internal/chat"
	"github.com/antariksh/spacebot/internal/session"
)

// ErrDeclined is returned when the user does not confirm a destructive
// operation.
var ErrDeclined = errors.New("not confirmed")

// ErrNotFound mirrors the store's sentinel for a missing conversation.
var ErrNotFound = session.ErrNotFound

// Entry pairs a stored conversation with its listing preview.
type Entry struct {
	Conversation chat.Conversation
	Preview      []string
}

// Browser reads and mutates the session store for the active identity.
// navigate, when non-nil, is invoked after actions that hand control back to
// the widget's host surface (Continue, NewChat).
type Browser struct {
	sess     *session.Manager
	store    *session.Store
	navigate func()
	log      *slog.Logger
}

// New builds a Browser. navigate may be nil.
func New(sess *session.Manager, store *session.Store, navigate func(), log *slog.Logger) *Browser {
	if log == nil {
		log = slog.Default()
	}
	return &Browser{sess: sess, store: store, navigate: navigate, log: log}
}

func (b *Browser) identity() session.Identity {
	id, _ := b.sess.Current()
	return id
}

// List returns the stored conversations, newest first, with previews. A
// persistence read failure degrades to an empty listing and is logged, never
// surfaced.
func (b *Browser) List() []Entry {
	conversations, err := b.store.ListConversations(b.identity())
	if err != nil {
		b.log.Warn("could not read chat history, showing empty list", "error", err)
		return nil
	}

	entries := make([]Entry, 0, len(conversations))
	for _, conv := range conversations {
		entries = append(entries, Entry{Conversation: conv, Preview: conv.Preview()})
	}
	return entries
}

// View returns the full transcript of one stored conversation.
func (b *Browser) View(convID string) (chat.Conversation, error) {
	return b.store.GetConversation(b.identity(), convID)
}

// Continue adopts a stored conversation as the current one so the widget
// resumes it, then signals navigation back to the widget host. The history
// entry itself is left in place.
func (b *Browser) Continue(convID string) error {
	id := b.identity()
	conv, err := b.store.GetConversation(id, convID)
	if err != nil {
		return err
	}
	if err := b.store.AdoptAsCurrent(id, conv); err != nil {
		return err
	}
	if b.navigate != nil {
		b.navigate()
	}
	return nil
}

// Delete removes a single conversation. No confirmation is required.
func (b *Browser) Delete(convID string) error {
	return b.store.DeleteConversation(b.identity(), convID)
}

// DeleteAll irreversibly clears the identity's history and the current slot.
// confirm must return true for the deletion to proceed.
func (b *Browser) DeleteAll(confirm func() bool) error {
	if confirm == nil || !confirm() {
		return ErrDeclined
	}
	return b.store.DeleteAll(b.identity())
}

// NewChat clears the current-conversation slot without touching stored
// history, then signals navigation back to the widget host.
func (b *Browser) NewChat() error {
	if err := b.store.ClearCurrent(); err != nil {
		return err
	}
	if b.navigate != nil {
		b.navigate()
	}
	return nil
}
