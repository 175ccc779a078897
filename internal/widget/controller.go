// Package widget drives the chat surface lifecycle: hidden, docked, or
// expanded, and every rule about when the open conversation is created,
// saved, restored, or discarded. Rendering is someone else's problem — the
// controller only emits display signals through a Presenter.
package widget

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/antariksh/spacebot/internal/bus"
	"github.com/antariksh/spacebot/internal/chat"
	"github.com/antariksh/spacebot/internal/session"
)

// State of the chat surface. Docked and Expanded are both "open".
type State int

const (
	StateHidden State = iota
	StateDocked
	StateExpanded
)

func (s State) String() string {
	switch s {
	case StateHidden:
		return "hidden"
	case StateDocked:
		return "docked"
	case StateExpanded:
		return "expanded"
	default:
		return "unknown"
	}
}

// Open reports whether the widget is visible in either open sub-state.
func (s State) Open() bool { return s == StateDocked || s == StateExpanded }

var (
	// ErrInputEmpty rejects empty or whitespace-only sends.
	ErrInputEmpty = errors.New("input is empty")
	// ErrSendInFlight rejects a send while another is outstanding.
	ErrSendInFlight = errors.New("a send is already in flight")
	// ErrLoginRequired rejects chat actions while unidentified.
	ErrLoginRequired = errors.New("login required")
	// ErrNotOpen rejects sends while the widget is hidden.
	ErrNotOpen = errors.New("widget is not open")
)

// Presenter receives display signals. MessageAppended doubles as the
// scroll-to-newest signal: the delivered message must become visible.
// Implementations must not call back into the Controller from a signal.
type Presenter interface {
	MessageAppended(chat.Message)
	LoginRequired()
	StateChanged(State)
	InFlightChanged(bool)
}

// Gateway is the boundary to the remote answering service.
type Gateway interface {
	Ask(ctx context.Context, query string) ([]string, error)
}

// Controller is the widget state machine. All methods are safe for
// concurrent use; the network call inside Send is the only operation that
// runs outside the lock.
type Controller struct {
	mu       sync.Mutex
	state    State
	conv     chat.Conversation
	inFlight bool
	// episode increments whenever the open conversation is torn down
	// (close or logout). A response that lands with a stale episode is
	// dropped rather than appended to a model that was already
	// persisted-and-cleared.
	episode uint64

	sess      *session.Manager
	store     *session.Store
	gateway   Gateway
	presenter Presenter
	log       *slog.Logger
}

// New builds a hidden controller. If an identity is present and the
// current-conversation slot is filled, the conversation is restored from it —
// this survives a process restart without auto-opening the widget.
func New(sess *session.Manager, store *session.Store, gw Gateway, p Presenter, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	c := &Controller{
		state:     StateHidden,
		sess:      sess,
		store:     store,
		gateway:   gw,
		presenter: p,
		log:       log,
	}

	if id, ok := sess.Current(); ok {
		if conv, filled, err := store.LoadCurrent(id); err != nil {
			log.Warn("could not restore current conversation", "error", err)
		} else if filled {
			c.conv = conv
			log.Debug("restored current conversation", "id", conv.ID, "messages", len(conv.Messages))
		}
	}
	return c
}

// State returns the current surface state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// InFlight reports whether a send is outstanding.
func (c *Controller) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Messages returns a snapshot of the open conversation.
func (c *Controller) Messages() []chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]chat.Message, len(c.conv.Messages))
	copy(out, c.conv.Messages)
	return out
}

// Open shows the widget in the docked position. Without an identity the
// widget stays hidden and the login-required signal fires instead. Opening
// an empty conversation synthesizes the greeting.
func (c *Controller) Open() {
	c.mu.Lock()

	if _, ok := c.sess.Current(); !ok {
		c.mu.Unlock()
		c.presenter.LoginRequired()
		return
	}
	if c.state.Open() {
		c.mu.Unlock()
		return
	}

	c.state = StateDocked
	var greeting *chat.Message
	if c.conv.Empty() {
		m := c.conv.AppendGreeting()
		greeting = &m
	}
	c.mu.Unlock()

	c.presenter.StateChanged(StateDocked)
	if greeting != nil {
		c.presenter.MessageAppended(*greeting)
	}
}

// ToggleExpand switches between the docked and expanded sub-states. It never
// touches the conversation.
func (c *Controller) ToggleExpand() {
	c.mu.Lock()
	var next State
	switch c.state {
	case StateDocked:
		next = StateExpanded
	case StateExpanded:
		next = StateDocked
	default:
		c.mu.Unlock()
		return
	}
	c.state = next
	c.mu.Unlock()

	c.presenter.StateChanged(next)
}

// Close hides the widget. A conversation with user content is saved into the
// identity's history and the current slot; a greeting-only conversation just
// clears the slot. Either way the model is reset, so reopening starts from a
// fresh greeting.
func (c *Controller) Close() {
	c.mu.Lock()
	if !c.state.Open() {
		c.mu.Unlock()
		return
	}

	id, ok := c.sess.Current()
	if ok && c.conv.HasUserContent() {
		if c.conv.ID == "" {
			c.conv.ID = uuid.NewString()
		}
		c.conv.Timestamp = time.Now().UTC()
		if err := c.store.SaveCurrent(id, c.conv); err != nil {
			c.log.Warn("saving conversation on close", "error", err)
		}
	} else {
		if err := c.store.ClearCurrent(); err != nil {
			c.log.Warn("clearing current-conversation slot", "error", err)
		}
	}

	c.resetLocked()
	c.mu.Unlock()

	c.presenter.StateChanged(StateHidden)
}

// Send runs one user turn: optimistic append, single-flight gateway call,
// then either one bot message per returned line or a single error-flagged
// failure notice. A gateway failure is never fatal to the widget.
func (c *Controller) Send(ctx context.Context, input string) error {
	text := strings.TrimSpace(input)
	if text == "" {
		return ErrInputEmpty
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return ErrSendInFlight
	}
	if _, ok := c.sess.Current(); !ok {
		c.mu.Unlock()
		c.presenter.LoginRequired()
		return ErrLoginRequired
	}
	if !c.state.Open() {
		c.mu.Unlock()
		return ErrNotOpen
	}

	userMsg := c.conv.Append(chat.SenderUser, text, false)
	c.inFlight = true
	episode := c.episode
	c.mu.Unlock()

	c.presenter.MessageAppended(userMsg)
	c.presenter.InFlightChanged(true)

	lines, err := c.gateway.Ask(ctx, text)

	c.mu.Lock()
	c.inFlight = false
	if c.episode != episode {
		// The widget was closed (or the user logged out) while the request
		// was outstanding; the conversation it belonged to is gone.
		c.mu.Unlock()
		c.presenter.InFlightChanged(false)
		c.log.Debug("discarding response for a closed conversation")
		return nil
	}

	var appended []chat.Message
	if err != nil {
		c.log.Warn("gateway call failed", "error", err)
		appended = append(appended, c.conv.Append(chat.SenderBot, failureNotice(err), true))
	} else {
		for _, line := range lines {
			appended = append(appended, c.conv.Append(chat.SenderBot, line, false))
		}
	}
	c.mu.Unlock()

	c.presenter.InFlightChanged(false)
	for _, m := range appended {
		c.presenter.MessageAppended(m)
	}
	return nil
}

// HandleLogout discards the open conversation without saving, clears the
// current slot, and hides the widget.
func (c *Controller) HandleLogout() {
	c.mu.Lock()
	wasOpen := c.state.Open()
	if err := c.store.ClearCurrent(); err != nil {
		c.log.Warn("clearing current-conversation slot on logout", "error", err)
	}
	c.resetLocked()
	c.mu.Unlock()

	if wasOpen {
		c.presenter.StateChanged(StateHidden)
	}
}

// Watch consumes session events until ctx is cancelled. A logout — local or
// published by the identity-file watcher — forces the widget hidden.
func (c *Controller) Watch(ctx context.Context, b *bus.Bus) error {
	events, err := b.SubscribeSession(ctx)
	if err != nil {
		return err
	}
	for ev := range events {
		if ev.Type == bus.EventLogout {
			c.HandleLogout()
		}
	}
	return ctx.Err()
}

// resetLocked clears the conversation model and invalidates any outstanding
// response. Callers hold c.mu.
func (c *Controller) resetLocked() {
	c.conv = chat.Conversation{}
	c.state = StateHidden
	c.episode++
}

// failureNotice builds the fixed troubleshooting message shown when the
// gateway fails.
func failureNotice(err error) string {
	return chat.ErrorBanner + "\n" +
		"Error: " + err.Error() + "\n" +
		"Troubleshooting:\n" +
		"1. Ensure the SpaceBot backend is running and reachable\n" +
		"2. Check the gateway URL with 'spacebot config list'\n" +
		"3. Try again in a few moments"
}
