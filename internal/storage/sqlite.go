package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database with methods for threads, messages, and
// pending confirmation actions.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "gridchat.db")
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

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
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

	// Sort by filename to guarantee ascending order.
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

// --- Threads ---

// CreateThread inserts a new thread with CreatedAt and UpdatedAt set to now.
func (s *Store) CreateThread(id, title string) (Thread, error) {
	now := time.Now().UTC()
	_, err := s.db.Exec(`INSERT INTO threads (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, title, now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return Thread{}, err
	}
	return Thread{ID: id, Title: title, CreatedAt: now, UpdatedAt: now}, nil
}

// GetThread returns the thread with the given id, or ErrNotFound.
func (s *Store) GetThread(id string) (Thread, error) {
	var t Thread
	var createdAt, updatedAt string
	err := s.db.QueryRow(`SELECT id, title, created_at, updated_at FROM threads WHERE id = ?`, id).
		Scan(&t.ID, &t.Title, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return Thread{}, ErrNotFound
	}
	if err != nil {
		return Thread{}, err
	}
	if t.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return Thread{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if t.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return Thread{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return t, nil
}

// ListThreads returns all threads ordered by most recently updated first.
func (s *Store) ListThreads() ([]Thread, error) {
	rows, err := s.db.Query(`SELECT id, title, created_at, updated_at FROM threads ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var threads []Thread
	for rows.Next() {
		var t Thread
		var createdAt, updatedAt string
		if err := rows.Scan(&t.ID, &t.Title, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if t.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if t.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		threads = append(threads, t)
	}
	return threads, rows.Err()
}

// RenameThread updates a thread's title and bumps updated_at.
func (s *Store) RenameThread(id, title string) error {
	res, err := s.db.Exec(`UPDATE threads SET title = ?, updated_at = ? WHERE id = ?`,
		title, time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// TouchThread bumps a thread's updated_at to now.
func (s *Store) TouchThread(id string) error {
	res, err := s.db.Exec(`UPDATE threads SET updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteThread removes a thread and all of its messages. The two deletes are
// sequenced messages-first so a crash in between never orphans messages.
func (s *Store) DeleteThread(id string) error {
	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM threads WHERE id = ?`, id).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}

	if err := s.DeleteMessagesByThread(id); err != nil {
		return fmt.Errorf("deleting thread messages: %w", err)
	}
	_, err := s.db.Exec(`DELETE FROM threads WHERE id = ?`, id)
	return err
}

// --- Messages ---

// CreateMessage appends a message to a thread and bumps the thread's
// updated_at. These are two sequential statements; a crash in between leaves
// updated_at stale, never corrupt.
func (s *Store) CreateMessage(id, threadID, role, content, toolCalls string) (Message, error) {
	now := time.Now().UTC()
	var tc sql.NullString
	if toolCalls != "" {
		tc = sql.NullString{String: toolCalls, Valid: true}
	}
	_, err := s.db.Exec(`INSERT INTO messages (id, thread_id, role, content, tool_calls, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, threadID, role, content, tc, now.Format(time.RFC3339Nano))
	if err != nil {
		return Message{}, err
	}

	if err := s.TouchThread(threadID); err != nil && err != ErrNotFound {
		return Message{}, fmt.Errorf("touching thread: %w", err)
	}

	return Message{ID: id, ThreadID: threadID, Role: role, Content: content, ToolCalls: toolCalls, CreatedAt: now}, nil
}

// MessagesByThread returns a thread's messages ordered by created_at ascending.
func (s *Store) MessagesByThread(threadID string) ([]Message, error) {
	rows, err := s.db.Query(`SELECT id, thread_id, role, content, tool_calls, created_at
		FROM messages WHERE thread_id = ? ORDER BY created_at ASC, id ASC`, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		var toolCalls sql.NullString
		var createdAt string
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Role, &m.Content, &toolCalls, &createdAt); err != nil {
			return nil, err
		}
		m.ToolCalls = toolCalls.String
		if m.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// DeleteMessagesByThread removes all messages belonging to a thread.
func (s *Store) DeleteMessagesByThread(threadID string) error {
	_, err := s.db.Exec(`DELETE FROM messages WHERE thread_id = ?`, threadID)
	return err
}

// --- Pending actions ---

// SavePendingAction records a deflected gated tool call as an open
// confirmation token.
func (s *Store) SavePendingAction(p PendingAction) error {
	status := p.Status
	if status == "" {
		status = PendingStatusOpen
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`INSERT INTO pending_actions
		(id, tool_name, params_json, action, description, target_type, target_id, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.ToolName, p.ParamsJSON, p.Action, p.Description, p.TargetType, p.TargetID,
		status, createdAt.Format(time.RFC3339Nano))
	return err
}

// GetPendingAction returns the pending action with the given id, or ErrNotFound.
func (s *Store) GetPendingAction(id string) (PendingAction, error) {
	var p PendingAction
	var createdAt string
	err := s.db.QueryRow(`SELECT id, tool_name, params_json, action, description, target_type, target_id, status, created_at
		FROM pending_actions WHERE id = ?`, id).
		Scan(&p.ID, &p.ToolName, &p.ParamsJSON, &p.Action, &p.Description, &p.TargetType, &p.TargetID, &p.Status, &createdAt)
	if err == sql.ErrNoRows {
		return PendingAction{}, ErrNotFound
	}
	if err != nil {
		return PendingAction{}, err
	}
	if p.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return PendingAction{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return p, nil
}

// ResolvePendingAction transitions an open pending action to the given status.
// Resolving an already-resolved or unknown action returns ErrNotFound.
func (s *Store) ResolvePendingAction(id, status string) error {
	res, err := s.db.Exec(`UPDATE pending_actions SET status = ? WHERE id = ? AND status = ?`,
		status, id, PendingStatusOpen)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ExpirePendingActionsBefore marks open pending actions created before cutoff
// as expired and returns how many were affected.
func (s *Store) ExpirePendingActionsBefore(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`UPDATE pending_actions SET status = ? WHERE status = ? AND created_at < ?`,
		PendingStatusExpired, PendingStatusOpen, cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
