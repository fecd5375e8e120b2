// Package store keeps the audit trail: one SQLite row per comment the
// filter newly hid, so users can review what disappeared and why. The
// trail is advisory; filtering works identically without it.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"tubesieve/internal/filter"
	"tubesieve/internal/logging"
)

// AuditStore implements filter.Recorder backed by SQLite.
type AuditStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

var _ filter.Recorder = (*AuditStore)(nil)

// HiddenComment is one audit row.
type HiddenComment struct {
	ID        int64
	SessionID string
	PageURL   string
	Author    string
	Rule      string
	Excerpt   string
	HiddenAt  time.Time
}

// excerptLimit caps stored excerpts. The filter already condenses them
// for display; this bounds what a hostile page can push into the db.
const excerptLimit = 200

// Open initializes the audit database at the given path.
func Open(path string) (*AuditStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	logging.Store("opening audit store at %s", path)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logging.Get(logging.CategoryStore).Error("failed to create directory %s: %v", dir, err)
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("failed to set sqlite journal_mode=WAL: %v", err)
	}
	// synchronous=NORMAL is safe under WAL and much faster than FULL.
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("failed to set sqlite synchronous=NORMAL: %v", err)
	}

	s := &AuditStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		logging.Get(logging.CategoryStore).Error("failed to initialize schema: %v", err)
		db.Close()
		return nil, err
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := setSchemaVersion(db, CurrentSchemaVersion); err != nil {
		logging.Get(logging.CategoryStore).Warn("failed to stamp schema version: %v", err)
	}

	logging.StoreDebug("audit store ready (schema v%d)", CurrentSchemaVersion)
	return s, nil
}

// initialize creates the current schema. Older databases are brought up
// to date by RunMigrations afterwards.
func (s *AuditStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS hidden_comments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL DEFAULT '',
		page_url TEXT NOT NULL DEFAULT '',
		author TEXT NOT NULL DEFAULT '',
		rule TEXT NOT NULL,
		excerpt TEXT NOT NULL DEFAULT '',
		hidden_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_hidden_comments_session ON hidden_comments(session_id);
	CREATE INDEX IF NOT EXISTS idx_hidden_comments_at ON hidden_comments(hidden_at);
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER NOT NULL
	);`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// RecordHide persists one newly hidden comment.
func (s *AuditStore) RecordHide(ctx context.Context, rec filter.HideRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("recording hide: session=%s rule=%s author=%s", rec.SessionID, rec.Rule, rec.Author)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO hidden_comments (session_id, page_url, author, rule, excerpt)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.SessionID, rec.PageURL, rec.Author, rec.Rule, capExcerpt(rec.Excerpt),
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("failed to record hide: %v", err)
		return fmt.Errorf("failed to record hide: %w", err)
	}
	return nil
}

// RecentHides returns the newest audit rows, most recent first.
func (s *AuditStore) RecentHides(ctx context.Context, limit int) ([]HiddenComment, error) {
	timer := logging.StartTimer(logging.CategoryStore, "RecentHides")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, page_url, author, rule, excerpt, hidden_at
		 FROM hidden_comments
		 ORDER BY hidden_at DESC, id DESC
		 LIMIT ?`, limit)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("failed to query recent hides: %v", err)
		return nil, err
	}
	defer rows.Close()

	return scanHiddenComments(rows)
}

// HidesForSession returns the newest audit rows for one browser
// session, most recent first.
func (s *AuditStore) HidesForSession(ctx context.Context, sessionID string, limit int) ([]HiddenComment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, page_url, author, rule, excerpt, hidden_at
		 FROM hidden_comments
		 WHERE session_id = ?
		 ORDER BY hidden_at DESC, id DESC
		 LIMIT ?`, sessionID, limit)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("failed to query session hides: %v", err)
		return nil, err
	}
	defer rows.Close()

	return scanHiddenComments(rows)
}

// CountHides returns the total number of audit rows.
func (s *AuditStore) CountHides(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM hidden_comments").Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// PurgeOlderThan deletes audit rows older than the given number of
// days and returns how many went. days <= 0 is a no-op.
func (s *AuditStore) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM hidden_comments WHERE hidden_at < datetime('now', ?)",
		fmt.Sprintf("-%d days", days))
	if err != nil {
		logging.Get(logging.CategoryStore).Error("failed to purge old hides: %v", err)
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logging.Store("purged %d audit rows older than %d days", n, days)
	}
	return n, nil
}

// Close closes the database connection.
func (s *AuditStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("closing audit store at %s", s.dbPath)
	return s.db.Close()
}

func scanHiddenComments(rows *sql.Rows) ([]HiddenComment, error) {
	var out []HiddenComment
	for rows.Next() {
		var hc HiddenComment
		if err := rows.Scan(&hc.ID, &hc.SessionID, &hc.PageURL, &hc.Author, &hc.Rule, &hc.Excerpt, &hc.HiddenAt); err != nil {
			logging.StoreDebug("skipping unscannable audit row: %v", err)
			continue
		}
		out = append(out, hc)
	}
	return out, rows.Err()
}

func capExcerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= excerptLimit {
		return text
	}
	return string(runes[:excerptLimit])
}
