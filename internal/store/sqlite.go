package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ashureev/proposal-chat/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS feedback (
		id TEXT PRIMARY KEY,
		question TEXT NOT NULL,
		response TEXT NOT NULL,
		flag TEXT NOT NULL,
		comment TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_created ON feedback(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveFeedback persists one flagged exchange. Writes retry with exponential
// backoff on SQLITE_BUSY, which can occur while the retention worker holds
// the database.
func (s *SQLiteStore) SaveFeedback(ctx context.Context, fb *domain.Feedback) error {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		err := s.saveFeedbackOnce(ctx, fb)
		if err == nil {
			return nil
		}

		if isBusy(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i) // exponential backoff: 100ms, 200ms, 400ms
			slog.Debug("SaveFeedback failed with SQLITE_BUSY, retrying",
				"feedback_id", fb.ID,
				"attempt", i+1,
				"delay", delay)
			time.Sleep(delay)
			continue
		}

		return fmt.Errorf("save feedback %s after %d attempts: %w", fb.ID, i+1, err)
	}

	return nil
}

func (s *SQLiteStore) saveFeedbackOnce(ctx context.Context, fb *domain.Feedback) error {
	query := `
	INSERT INTO feedback (id, question, response, flag, comment, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	var comment interface{}
	if fb.Comment != "" {
		comment = fb.Comment
	}

	_, err := s.db.ExecContext(ctx, query,
		fb.ID, fb.Question, fb.Response, string(fb.Flag), comment, fb.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

// ListFeedback returns the most recent flags, newest first.
func (s *SQLiteStore) ListFeedback(ctx context.Context, limit int) ([]*domain.Feedback, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, question, response, flag, comment, created_at
		FROM feedback ORDER BY created_at DESC, id LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query feedback: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close feedback rows", "error", closeErr)
		}
	}()

	var items []*domain.Feedback
	for rows.Next() {
		var fb domain.Feedback
		var flag string
		var comment sql.NullString
		var createdAt int64

		if err := rows.Scan(&fb.ID, &fb.Question, &fb.Response, &flag, &comment, &createdAt); err != nil {
			return nil, fmt.Errorf("scan feedback row: %w", err)
		}

		fb.Flag = domain.FeedbackFlag(flag)
		fb.Comment = comment.String
		fb.CreatedAt = time.Unix(createdAt, 0)
		items = append(items, &fb)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback: %w", err)
	}

	return items, nil
}

// CountFeedback returns the total number of stored flags.
func (s *SQLiteStore) CountFeedback(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feedback`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count feedback: %w", err)
	}
	return n, nil
}

// DeleteFeedbackBefore removes flags created before cutoff.
func (s *SQLiteStore) DeleteFeedbackBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM feedback WHERE created_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("delete old feedback: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// isBusy reports whether err looks like SQLITE_BUSY contention.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
