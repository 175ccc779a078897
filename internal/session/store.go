package session

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/antariksh/spacebot/internal/chat"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a requested conversation does not exist.
var ErrNotFound = errors.New("not found")

// HistoryLimit caps how many conversations are retained per identity. Saving
// past the cap evicts the least-recently-saved entries.
const HistoryLimit = 20

// Store persists per-identity conversation history plus the single
// current-conversation slot in a SQLite database.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens (or creates) the store in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}

	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "spacebot.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so another spacebot process waits briefly instead of
	// failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db, log: log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// SaveCurrent upserts the conversation into the identity's bounded history
// (moving it to the front) and overwrites the current-conversation slot.
// A save with an absent identity is a no-op; the caller still clears its own
// transient state.
func (s *Store) SaveCurrent(id Identity, conv chat.Conversation) error {
	if id.Zero() {
		return nil
	}
	if conv.ID == "" {
		return errors.New("conversation id must be assigned before saving")
	}

	payload, err := json.Marshal(conv.Messages)
	if err != nil {
		return fmt.Errorf("encoding messages: %w", err)
	}

	savedAt := conv.Timestamp
	if savedAt.IsZero() {
		savedAt = time.Now().UTC()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// The per-identity seq counter gives a total save order; newest-first
	// listing and cap eviction both key off it.
	var seq int64
	if err := tx.QueryRow(
		"SELECT COALESCE(MAX(seq), 0) + 1 FROM conversations WHERE identity_key = ?", id.Key(),
	).Scan(&seq); err != nil {
		return fmt.Errorf("allocating sequence: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO conversations (identity_key, id, saved_at, seq, messages)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(identity_key, id) DO UPDATE SET saved_at = excluded.saved_at, seq = excluded.seq, messages = excluded.messages`,
		id.Key(), conv.ID, savedAt.UTC().Format(time.RFC3339), seq, string(payload),
	); err != nil {
		return fmt.Errorf("upserting conversation: %w", err)
	}

	if _, err := tx.Exec(`
		DELETE FROM conversations WHERE identity_key = ? AND id NOT IN (
			SELECT id FROM conversations WHERE identity_key = ? ORDER BY seq DESC LIMIT ?
		)`,
		id.Key(), id.Key(), HistoryLimit,
	); err != nil {
		return fmt.Errorf("evicting old conversations: %w", err)
	}

	if err := upsertCurrentSlot(tx, conv.ID, string(payload)); err != nil {
		return err
	}

	return tx.Commit()
}

// ListConversations returns the identity's stored history, most recently
// saved first. Corrupt rows are skipped and logged rather than failing the
// whole listing; an absent identity yields an empty sequence.
func (s *Store) ListConversations(id Identity) ([]chat.Conversation, error) {
	if id.Zero() {
		return nil, nil
	}

	rows, err := s.db.Query(`
		SELECT id, saved_at, messages FROM conversations
		WHERE identity_key = ? ORDER BY seq DESC`, id.Key())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []chat.Conversation
	for rows.Next() {
		var convID, savedAt, payload string
		if err := rows.Scan(&convID, &savedAt, &payload); err != nil {
			return nil, err
		}

		conv := chat.Conversation{ID: convID}
		if t, err := time.Parse(time.RFC3339, savedAt); err == nil {
			conv.Timestamp = t
		} else {
			s.log.Warn("unparsable conversation timestamp", "id", convID, "value", savedAt)
		}
		if err := json.Unmarshal([]byte(payload), &conv.Messages); err != nil {
			s.log.Warn("skipping conversation with corrupt messages", "id", convID, "error", err)
			continue
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

// GetConversation returns a single stored conversation by id.
func (s *Store) GetConversation(id Identity, convID string) (chat.Conversation, error) {
	if id.Zero() {
		return chat.Conversation{}, ErrNotFound
	}

	var savedAt, payload string
	err := s.db.QueryRow(`
		SELECT saved_at, messages FROM conversations
		WHERE identity_key = ? AND id = ?`, id.Key(), convID,
	).Scan(&savedAt, &payload)
	if err == sql.ErrNoRows {
		return chat.Conversation{}, ErrNotFound
	}
	if err != nil {
		return chat.Conversation{}, err
	}

	conv := chat.Conversation{ID: convID}
	if t, err := time.Parse(time.RFC3339, savedAt); err == nil {
		conv.Timestamp = t
	}
	if err := json.Unmarshal([]byte(payload), &conv.Messages); err != nil {
		return chat.Conversation{}, fmt.Errorf("decoding messages for %s: %w", convID, err)
	}
	return conv, nil
}

// DeleteConversation removes a single entry. If the removed entry is also the
// current conversation, the slot is cleared alongside it.
func (s *Store) DeleteConversation(id Identity, convID string) error {
	if id.Zero() {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM conversations WHERE identity_key = ? AND id = ?", id.Key(), convID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec("DELETE FROM current_chat WHERE slot = 0 AND conversation_id = ?", convID); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteAll clears the identity's full history and the current-conversation
// slot. Confirmation is the caller's responsibility.
func (s *Store) DeleteAll(id Identity) error {
	if id.Zero() {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM conversations WHERE identity_key = ?", id.Key()); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM current_chat WHERE slot = 0"); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadCurrent returns the current-conversation slot contents. It reports
// false when the slot is empty, the identity is absent, or the stored payload
// cannot be decoded (logged, treated as empty).
func (s *Store) LoadCurrent(id Identity) (chat.Conversation, bool, error) {
	if id.Zero() {
		return chat.Conversation{}, false, nil
	}

	var convID, payload string
	err := s.db.QueryRow("SELECT conversation_id, messages FROM current_chat WHERE slot = 0").Scan(&convID, &payload)
	if err == sql.ErrNoRows {
		return chat.Conversation{}, false, nil
	}
	if err != nil {
		return chat.Conversation{}, false, err
	}

	conv := chat.Conversation{ID: convID}
	if err := json.Unmarshal([]byte(payload), &conv.Messages); err != nil {
		s.log.Warn("corrupt current-conversation slot, treating as empty", "error", err)
		return chat.Conversation{}, false, nil
	}
	return conv, true, nil
}

// AdoptAsCurrent overwrites the current-conversation slot with a stored
// conversation so the widget resumes it on next open. The stored history
// entry is left untouched.
func (s *Store) AdoptAsCurrent(id Identity, conv chat.Conversation) error {
	if id.Zero() {
		return nil
	}

	payload, err := json.Marshal(conv.Messages)
	if err != nil {
		return fmt.Errorf("encoding messages: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := upsertCurrentSlot(tx, conv.ID, string(payload)); err != nil {
		return err
	}
	return tx.Commit()
}

// ClearCurrent empties the current-conversation slot.
func (s *Store) ClearCurrent() error {
	_, err := s.db.Exec("DELETE FROM current_chat WHERE slot = 0")
	return err
}

func upsertCurrentSlot(tx *sql.Tx, convID, payload string) error {
	if _, err := tx.Exec(`
		INSERT INTO current_chat (slot, conversation_id, messages) VALUES (0, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET conversation_id = excluded.conversation_id, messages = excluded.messages`,
		convID, payload,
	); err != nil {
		return fmt.Errorf("updating current-conversation slot: %w", err)
	}
	return nil
}
