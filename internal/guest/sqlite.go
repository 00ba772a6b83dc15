// ABOUTME: SQLite-backed guest chat store using modernc.org/sqlite
// ABOUTME: Persists guest threads, messages, and quota counters in one local database

package guest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/devassist/assist/internal/chat"
)

// DefaultTitle is the title given to a freshly created guest thread,
// matching what the backend assigns to authenticated ones.
const DefaultTitle = "New chat"

// AnonymousSender relays a single guest exchange to the backend. Only the
// content and mode id cross the wire; guest threads are never
// server-persisted.
type AnonymousSender interface {
	SendAnonymous(ctx context.Context, content string, modeID int) (*chat.Message, error)
}

// Store implements chat.Store against a local SQLite database. It is the
// guest-side counterpart of the remote store: threads and messages live
// entirely on this machine, subject to hard quotas, and survive restarts
// and identity changes until explicitly deleted.
type Store struct {
	db         *sql.DB
	sender     AnonymousSender
	maxThreads int
	logger     *slog.Logger
}

// NewStore opens (or creates) the guest database at the given path.
// The schema is created automatically; parent directories are created if
// needed.
func NewStore(path string, sender AnonymousSender, maxThreads int, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:         db,
		sender:     sender,
		maxThreads: maxThreads,
		logger:     logger.With("component", "guest"),
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	s.logger.Debug("guest store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *Store) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS guest_threads (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS guest_messages (
			id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL REFERENCES guest_threads(id),
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			mode_id INTEGER NOT NULL DEFAULT 0,
			delivery TEXT NOT NULL DEFAULT 'delivered',
			created_at TEXT NOT NULL,

			CHECK (role IN ('user', 'assistant')),
			CHECK (delivery IN ('delivered', 'pending', 'failed'))
		);

		CREATE INDEX IF NOT EXISTS idx_guest_messages_thread
			ON guest_messages(thread_id, created_at);

		CREATE TABLE IF NOT EXISTS guest_counters (
			thread_id TEXT PRIMARY KEY,
			message_count INTEGER NOT NULL DEFAULT 0
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create starts a new guest thread, unless one already exists. "Exists" is
// determined by scanning persisted records, never by a server call; hitting
// the limit yields chat.ErrThreadLimit, an ordinary quota outcome.
func (s *Store) Create(ctx context.Context) (*chat.Thread, error) {
	count, err := s.ThreadCount(ctx)
	if err != nil {
		return nil, err
	}
	if count >= s.maxThreads {
		return nil, chat.ErrThreadLimit
	}

	now := time.Now().UTC()
	thread := &chat.Thread{
		ID:        uuid.New().String(),
		Title:     DefaultTitle,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []chat.Message{},
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO guest_threads (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		thread.ID, thread.Title, formatTime(now), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting guest thread: %w", err)
	}

	s.logger.Debug("guest thread created", "thread_id", thread.ID)
	return thread, nil
}

// List returns all guest threads, most recently updated first, each with its
// full message history.
func (s *Store) List(ctx context.Context) ([]*chat.Thread, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, created_at, updated_at FROM guest_threads ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying guest threads: %w", err)
	}
	defer rows.Close()

	var threads []*chat.Thread
	for rows.Next() {
		thread, err := scanThread(rows)
		if err != nil {
			return nil, err
		}
		threads = append(threads, thread)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating guest threads: %w", err)
	}

	for _, thread := range threads {
		if thread.Messages, err = s.loadMessages(ctx, thread.ID); err != nil {
			return nil, err
		}
	}
	return threads, nil
}

// Get returns one guest thread with its messages.
func (s *Store) Get(ctx context.Context, id string) (*chat.Thread, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, created_at, updated_at FROM guest_threads WHERE id = ?`, id,
	)

	thread, err := scanThread(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, chat.ErrNotFound
		}
		return nil, err
	}

	if thread.Messages, err = s.loadMessages(ctx, id); err != nil {
		return nil, err
	}
	return thread, nil
}

// Rename updates the title and bumps updated_at. The commit is immediate and
// local; there is no backend confirmation to wait for.
func (s *Store) Rename(ctx context.Context, id, title string) (*chat.Thread, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE guest_threads SET title = ?, updated_at = ? WHERE id = ?`,
		title, formatTime(time.Now().UTC()), id,
	)
	if err != nil {
		return nil, fmt.Errorf("renaming guest thread: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("getting rows affected: %w", err)
	}
	if affected == 0 {
		return nil, chat.ErrNotFound
	}

	return s.Get(ctx, id)
}

// Delete removes the thread record and purges its messages and quota
// counters. A delete that left orphaned counter state would let a guest
// smuggle quota across threads, so everything keyed to the id goes in one
// transaction. Deleting an absent thread is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM guest_messages WHERE thread_id = ?`,
		`DELETE FROM guest_counters WHERE thread_id = ?`,
		`DELETE FROM guest_threads WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("deleting guest thread %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}

	s.logger.Debug("guest thread deleted", "thread_id", id)
	return nil
}

// SendMessage persists the user turn, relays content and mode id to the
// anonymous backend endpoint, and persists the assistant reply. The user
// message is recorded first so a backend failure still leaves the turn
// visible, marked failed.
func (s *Store) SendMessage(ctx context.Context, threadID, content string, modeID int) (*chat.Message, error) {
	if _, err := s.Get(ctx, threadID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	userMsg := chat.Message{
		ID:        uuid.New().String(),
		Role:      chat.RoleUser,
		Content:   content,
		ModeID:    modeID,
		Delivery:  chat.DeliveryPending,
		CreatedAt: now,
	}
	if err := s.insertMessage(ctx, threadID, &userMsg); err != nil {
		return nil, err
	}

	reply, err := s.sender.SendAnonymous(ctx, content, modeID)
	if err != nil {
		if updErr := s.setDelivery(ctx, userMsg.ID, chat.DeliveryFailed); updErr != nil {
			s.logger.Error("failed to mark guest message failed",
				"error", updErr, "message_id", userMsg.ID)
		}
		return nil, fmt.Errorf("anonymous send failed: %w", err)
	}

	if err := s.setDelivery(ctx, userMsg.ID, chat.DeliveryDelivered); err != nil {
		return nil, err
	}

	assistantMsg := chat.Message{
		ID:        uuid.New().String(),
		Role:      chat.RoleAssistant,
		Content:   reply.Content,
		ModeID:    modeID,
		Delivery:  chat.DeliveryDelivered,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.insertMessage(ctx, threadID, &assistantMsg); err != nil {
		return nil, err
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE guest_threads SET updated_at = ? WHERE id = ?`,
		formatTime(assistantMsg.CreatedAt), threadID,
	); err != nil {
		return nil, fmt.Errorf("bumping guest thread: %w", err)
	}

	return &assistantMsg, nil
}

// ThreadCount returns the number of persisted guest threads.
func (s *Store) ThreadCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM guest_threads`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting guest threads: %w", err)
	}
	return count, nil
}

// MessageCount returns the persisted user-message counter for a thread.
// Threads with no counter row count as zero.
func (s *Store) MessageCount(ctx context.Context, threadID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT message_count FROM guest_counters WHERE thread_id = ?`, threadID,
	).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading guest counter: %w", err)
	}
	return count, nil
}

// IncrementMessageCount bumps and persists the per-thread counter, returning
// the new count.
func (s *Store) IncrementMessageCount(ctx context.Context, threadID string) (int, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guest_counters (thread_id, message_count) VALUES (?, 1)
		ON CONFLICT(thread_id) DO UPDATE SET message_count = message_count + 1`,
		threadID,
	)
	if err != nil {
		return 0, fmt.Errorf("incrementing guest counter: %w", err)
	}
	return s.MessageCount(ctx, threadID)
}

// insertMessage persists one message row.
func (s *Store) insertMessage(ctx context.Context, threadID string, msg *chat.Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guest_messages (id, thread_id, role, content, mode_id, delivery, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, threadID, msg.Role, msg.Content, msg.ModeID, string(msg.Delivery), formatTime(msg.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting guest message: %w", err)
	}
	return nil
}

// setDelivery updates a persisted message's delivery state.
func (s *Store) setDelivery(ctx context.Context, messageID string, state chat.DeliveryState) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE guest_messages SET delivery = ? WHERE id = ?`,
		string(state), messageID,
	)
	if err != nil {
		return fmt.Errorf("updating delivery state: %w", err)
	}
	return nil
}

// loadMessages returns a thread's messages in append order.
func (s *Store) loadMessages(ctx context.Context, threadID string) ([]chat.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, mode_id, delivery, created_at
		FROM guest_messages WHERE thread_id = ? ORDER BY created_at, id`,
		threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying guest messages: %w", err)
	}
	defer rows.Close()

	messages := []chat.Message{}
	for rows.Next() {
		var msg chat.Message
		var delivery, createdAt string
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &msg.ModeID, &delivery, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning guest message: %w", err)
		}
		msg.Delivery = chat.DeliveryState(delivery)
		msg.CreatedAt = parseTime(createdAt)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating guest messages: %w", err)
	}
	return messages, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanThread(row rowScanner) (*chat.Thread, error) {
	var thread chat.Thread
	var createdAt, updatedAt string
	if err := row.Scan(&thread.ID, &thread.Title, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning guest thread: %w", err)
	}
	thread.CreatedAt = parseTime(createdAt)
	thread.UpdatedAt = parseTime(updatedAt)
	return &thread, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
