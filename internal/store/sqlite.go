package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/schoolone/portal/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// notificationRow mirrors the notifications table.
type notificationRow struct {
	Owner         string    `db:"owner"`
	ID            int       `db:"id"`
	Title         string    `db:"title"`
	Message       string    `db:"message"`
	IsRead        int       `db:"is_read"`
	AttachmentURL *string   `db:"attachment_url"`
	StudentID     *int      `db:"student_id"`
	BatchID       *int      `db:"batch_id"`
	CreatedAt     time.Time `db:"created_at"`
}

func (r notificationRow) toModel() model.Notification {
	return model.Notification{
		ID:            r.ID,
		Title:         r.Title,
		Message:       r.Message,
		IsRead:        r.IsRead != 0,
		AttachmentURL: r.AttachmentURL,
		StudentID:     r.StudentID,
		BatchID:       r.BatchID,
		CreatedAt:     r.CreatedAt,
	}
}

// SaveNotifications replaces the cached list for owner in one transaction.
func (s *SQLiteStore) SaveNotifications(
	ctx context.Context,
	owner string,
	ns []model.Notification,
) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM notifications WHERE owner = ?", owner); err != nil {
		return fmt.Errorf("clearing cached notifications: %w", err)
	}

	const query = `
		INSERT OR REPLACE INTO notifications (
			owner, id, title, message, is_read,
			attachment_url, student_id, batch_id, created_at
		) VALUES (
			:owner, :id, :title, :message, :is_read,
			:attachment_url, :student_id, :batch_id, :created_at
		)`

	stmt, err := tx.PrepareNamedContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, n := range ns {
		row := notificationRow{
			Owner:         owner,
			ID:            n.ID,
			Title:         n.Title,
			Message:       n.Message,
			IsRead:        boolToInt(n.IsRead),
			AttachmentURL: n.AttachmentURL,
			StudentID:     n.StudentID,
			BatchID:       n.BatchID,
			CreatedAt:     n.CreatedAt.UTC(),
		}
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return fmt.Errorf("caching notification %d: %w", n.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO sync_state (owner, synced_at) VALUES (?, ?)`,
		owner, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording sync time: %w", err)
	}

	return tx.Commit()
}

// LoadNotifications returns the cached list for owner.
func (s *SQLiteStore) LoadNotifications(
	ctx context.Context,
	owner string,
) ([]model.Notification, error) {
	var rows []notificationRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT owner, id, title, message, is_read,
		       attachment_url, student_id, batch_id, created_at
		FROM notifications
		WHERE owner = ?
		ORDER BY is_read ASC, created_at DESC, id DESC`,
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("querying cached notifications: %w", err)
	}

	ns := make([]model.Notification, 0, len(rows))
	for _, r := range rows {
		ns = append(ns, r.toModel())
	}
	return ns, nil
}

// LastSynced returns the time of the last SaveNotifications for owner.
func (s *SQLiteStore) LastSynced(ctx context.Context, owner string) (time.Time, error) {
	var at time.Time
	err := s.db.GetContext(ctx, &at, "SELECT synced_at FROM sync_state WHERE owner = ?", owner)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("reading sync time: %w", err)
	}
	return at, nil
}

// ClearOwner removes the cached list and sync time for owner.
func (s *SQLiteStore) ClearOwner(ctx context.Context, owner string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"notifications", "sync_state"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE owner = ?", owner); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	return tx.Commit()
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
