package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/antariksh/spacebot/internal/bus"
)

// ErrEmailRequired is returned by Login when no email was provided; without
// one there is no history scope.
var ErrEmailRequired = errors.New("email is required")

const identityFileName = "identity.json"

// Manager is the process-wide session context: the single writer for the
// current identity. Every component reads identity through it, and identity
// changes go out on the bus so independent views stay in sync.
type Manager struct {
	mu      sync.RWMutex
	path    string
	current *Identity
	bus     *bus.Bus
	log     *slog.Logger
}

// NewManager loads any persisted identity from dataDir. A missing or
// unparsable identity file is treated as "not logged in" and logged, never
// surfaced as an error.
func NewManager(dataDir string, b *bus.Bus, log *slog.Logger) (*Manager, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	m := &Manager{
		path: filepath.Join(dataDir, identityFileName),
		bus:  b,
		log:  log,
	}
	m.current = m.readFile()
	return m, nil
}

// IdentityPath returns the location of the persisted identity record.
func (m *Manager) IdentityPath() string { return m.path }

// Current returns the active identity, if any.
func (m *Manager) Current() (Identity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return Identity{}, false
	}
	return *m.current, true
}

// Login records a new identity, persists it, and announces it on the bus.
func (m *Manager) Login(name, email, phone string) (Identity, error) {
	id := Identity{
		Name:        strings.TrimSpace(name),
		Email:       strings.TrimSpace(email),
		PhoneNumber: strings.TrimSpace(phone),
		LoggedInAt:  time.Now().UTC(),
	}
	if id.Zero() {
		return Identity{}, ErrEmailRequired
	}

	data, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return Identity{}, err
	}

	m.mu.Lock()
	if err := os.WriteFile(m.path, data, 0o600); err != nil {
		m.mu.Unlock()
		return Identity{}, fmt.Errorf("writing identity file: %w", err)
	}
	m.current = &id
	m.mu.Unlock()

	m.publish(bus.Event{Type: bus.EventLogin, Email: id.Key()})
	return id, nil
}

// Logout clears the identity and announces the change. Removing an identity
// that was never stored is not an error.
func (m *Manager) Logout() error {
	m.mu.Lock()
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		m.mu.Unlock()
		return fmt.Errorf("removing identity file: %w", err)
	}
	had := m.current != nil
	var email string
	if had {
		email = m.current.Key()
	}
	m.current = nil
	m.mu.Unlock()

	if had {
		m.publish(bus.Event{Type: bus.EventLogout, Email: email})
	}
	return nil
}

// Reload re-reads the identity file after an external change. If another
// process cleared the identity, the logout is announced locally; this is the
// best-effort cross-process analog of a storage-change notification.
func (m *Manager) Reload() {
	fresh := m.readFile()

	m.mu.Lock()
	prev := m.current
	m.current = fresh
	m.mu.Unlock()

	if prev != nil && fresh == nil {
		m.publish(bus.Event{Type: bus.EventLogout, Email: prev.Key()})
	}
}

// readFile loads the identity record, tolerating absence and corruption.
func (m *Manager) readFile() *Identity {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if !os.IsNotExist(err) {
			m.log.Warn("could not read identity file", "path", m.path, "error", err)
		}
		return nil
	}

	var id Identity
	if err := json.Unmarshal(data, &id); err != nil {
		m.log.Warn("could not parse identity file, treating as logged out", "path", m.path, "error", err)
		return nil
	}
	if id.Zero() {
		return nil
	}
	return &id
}

func (m *Manager) publish(ev bus.Event) {
	if m.bus == nil {
		return
	}
	if err := m.bus.PublishSession(ev); err != nil {
		m.log.Warn("publishing session event", "type", ev.Type, "error", err)
	}
}
