// Package bus is the in-process channel for session events. Identity changes
// are published here and consumed by the widget controller, which makes the
// contract explicit: the session manager (and the identity-file watcher)
// publish, the controller subscribes, and delivery is best-effort.
package bus

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// TopicSession carries identity lifecycle events.
const TopicSession = "session"

// Event types published on TopicSession.
const (
	EventLogin  = "login"
	EventLogout = "logout"
)

// Event is the payload of a session notification.
type Event struct {
	Type  string `json:"type"`
	Email string `json:"email,omitempty"`
}

// Bus wraps an in-process pub/sub channel.
type Bus struct {
	pubSub *gochannel.GoChannel
	log    *slog.Logger
}

// New creates an in-process bus.
func New(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{
		pubSub: gochannel.NewGoChannel(gochannel.Config{}, watermill.NewSlogLogger(log)),
		log:    log,
	}
}

// PublishSession emits a session event to all current subscribers.
func (b *Bus) PublishSession(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.pubSub.Publish(TopicSession, message.NewMessage(watermill.NewUUID(), payload))
}

// SubscribeSession returns a channel of decoded session events. The channel
// closes when ctx is cancelled. Undecodable payloads are logged and skipped.
func (b *Bus) SubscribeSession(ctx context.Context) (<-chan Event, error) {
	msgs, err := b.pubSub.Subscribe(ctx, TopicSession)
	if err != nil {
		return nil, err
	}

	out := make(chan Event)
	go func() {
		defer close(out)
		for msg := range msgs {
			var ev Event
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				b.log.Warn("dropping undecodable session event", "error", err)
				msg.Ack()
				continue
			}
			msg.Ack()
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() error {
	return b.pubSub.Close()
}
