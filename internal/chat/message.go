package chat

import "time"

// Sender values for Message.
const (
	SenderUser = "user"
	SenderBot  = "bot"
)

// Greeting is the single bot message synthesized when the widget opens on an
// empty conversation. It never counts as user content for the save rule.
const Greeting = "Namaste! I'm your ISRO virtual assistant. Ask me anything about India's space program, missions, or achievements."

// ErrorBanner is the fixed first line of every locally synthesized
// connectivity-failure notice.
const ErrorBanner = "🚨 Connection Failed"

// Message is a single turn in a conversation. Messages are immutable once
// appended; ids are assigned in display order.
type Message struct {
	ID      int64  `json:"id"`
	Sender  string `json:"sender"`
	Text    string `json:"text"`
	Time    string `json:"time"`
	IsError bool   `json:"isError"`
}

// clockFormat renders a message timestamp the way the widget displays it.
const clockFormat = "3:04 PM"

func formatClock(t time.Time) string {
	return t.Format(clockFormat)
}
