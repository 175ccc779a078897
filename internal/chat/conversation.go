package chat

import (
	"time"
	"unicode/utf8"
)

// previewRunes caps how much of a message is shown in history listings.
const previewRunes = 50

// previewMessages is how many leading messages make up a listing preview.
const previewMessages = 2

// Conversation is the unit of persistence: an ordered, append-only sequence
// of messages. ID stays empty until the conversation is first saved.
type Conversation struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Messages  []Message `json:"messages"`
}

// Append adds a new message at the end of the conversation and returns it.
// The id continues the conversation's monotonic sequence.
func (c *Conversation) Append(sender, text string, isError bool) Message {
	m := Message{
		ID:      c.nextID(),
		Sender:  sender,
		Text:    text,
		Time:    formatClock(time.Now()),
		IsError: isError,
	}
	c.Messages = append(c.Messages, m)
	return m
}

// AppendGreeting adds the synthesized bot greeting. It carries the relative
// "Just now" timestamp instead of a clock reading.
func (c *Conversation) AppendGreeting() Message {
	m := Message{
		ID:     c.nextID(),
		Sender: SenderBot,
		Text:   Greeting,
		Time:   "Just now",
	}
	c.Messages = append(c.Messages, m)
	return m
}

func (c *Conversation) nextID() int64 {
	if len(c.Messages) == 0 {
		return 1
	}
	return c.Messages[len(c.Messages)-1].ID + 1
}

// HasUserContent reports whether the conversation contains at least one
// user-authored message. A conversation holding only the synthesized greeting
// is never persisted.
func (c *Conversation) HasUserContent() bool {
	for _, m := range c.Messages {
		if m.Sender == SenderUser {
			return true
		}
	}
	return false
}

// Empty reports whether no messages have been appended yet.
func (c *Conversation) Empty() bool {
	return len(c.Messages) == 0
}

// Preview returns up to two truncated message texts for history listings.
func (c *Conversation) Preview() []string {
	n := len(c.Messages)
	if n > previewMessages {
		n = previewMessages
	}
	lines := make([]string, 0, n)
	for _, m := range c.Messages[:n] {
		lines = append(lines, truncate(m.Text, previewRunes))
	}
	return lines
}

// truncate shortens s to at most max runes, appending an ellipsis when the
// text was cut.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}
