// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides notification persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/2389/notify-gateway/internal/notification"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
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

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS notifications (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			title TEXT NOT NULL,
			body TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL DEFAULT '',
			click_action TEXT NOT NULL DEFAULT '',
			metadata TEXT NOT NULL DEFAULT '{}',
			read INTEGER NOT NULL DEFAULT 0,
			archived INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_notifications_user_role
			ON notifications(user_id, role);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Save validates and persists a notification, returning a copy with the
// server-assigned ID and creation timestamp. The AUTOINCREMENT row ID is
// strictly increasing, which is what makes it usable as a replay cursor.
func (s *SQLiteStore) Save(ctx context.Context, n *notification.Notification) (*notification.Notification, error) {
	if err := n.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidNotification, err)
	}

	metadata, err := json.Marshal(n.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encoding metadata: %w", err)
	}

	saved := *n
	saved.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO notifications (user_id, role, title, body, type, click_action, metadata, read, archived, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query,
		saved.UserID,
		string(saved.Role),
		saved.Title,
		saved.Body,
		saved.Type,
		saved.ClickAction,
		string(metadata),
		saved.Read,
		saved.Archived,
		saved.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting notification: %w", err)
	}

	saved.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading assigned id: %w", err)
	}

	s.logger.Debug("saved notification",
		"id", saved.ID,
		"user_id", saved.UserID,
		"role", saved.Role,
	)
	return &saved, nil
}

// Get retrieves a single notification by ID
func (s *SQLiteStore) Get(ctx context.Context, id int64) (*notification.Notification, error) {
	query := `
		SELECT id, user_id, role, title, body, type, click_action, metadata, read, archived, created_at
		FROM notifications
		WHERE id = ?
	`

	n := &notification.Notification{}
	var role, metadataJSON, createdAt string

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&n.ID,
		&n.UserID,
		&role,
		&n.Title,
		&n.Body,
		&n.Type,
		&n.ClickAction,
		&metadataJSON,
		&n.Read,
		&n.Archived,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying notification: %w", err)
	}

	n.Role = notification.Role(role)
	if err := json.Unmarshal([]byte(metadataJSON), &n.Metadata); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	n.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return n, nil
}

// Close closes the underlying database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
