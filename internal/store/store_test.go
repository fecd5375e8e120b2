package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"tubesieve/internal/filter"
)

func newTestStore(t *testing.T) *AuditStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open audit store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesSchema(t *testing.T) {
	s := newTestStore(t)

	for _, table := range []string{"hidden_comments", "schema_version"} {
		if !tableExists(s.db, table) {
			t.Errorf("missing table: %s", table)
		}
	}
	if got := GetSchemaVersion(s.db); got != CurrentSchemaVersion {
		t.Errorf("schema version = %d, want %d", got, CurrentSchemaVersion)
	}
}

func TestRecordAndQueryHides(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	records := []filter.HideRecord{
		{SessionID: "a", PageURL: "https://tube.example/watch?v=1", Author: "@Bob", Rule: "word:crypto", Excerpt: "buy my crypto now"},
		{SessionID: "a", PageURL: "https://tube.example/watch?v=1", Author: "@SpamLord", Rule: "links", Excerpt: "visit https://spam.example"},
		{SessionID: "b", PageURL: "https://tube.example/watch?v=2", Author: "@Troll", Rule: "author:Troll", Excerpt: "whatever"},
	}
	for _, rec := range records {
		if err := s.RecordHide(ctx, rec); err != nil {
			t.Fatalf("RecordHide failed: %v", err)
		}
	}

	recent, err := s.RecentHides(ctx, 10)
	if err != nil {
		t.Fatalf("RecentHides failed: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("RecentHides returned %d rows, want 3", len(recent))
	}
	// Newest first; ties on timestamp break by insertion order.
	if recent[0].Rule != "author:Troll" {
		t.Errorf("newest row rule = %q, want %q", recent[0].Rule, "author:Troll")
	}
	if recent[0].HiddenAt.IsZero() {
		t.Error("hidden_at not populated")
	}
	if recent[2].Author != "@Bob" || recent[2].PageURL != "https://tube.example/watch?v=1" {
		t.Errorf("oldest row = %+v, want Bob's", recent[2])
	}

	forA, err := s.HidesForSession(ctx, "a", 10)
	if err != nil {
		t.Fatalf("HidesForSession failed: %v", err)
	}
	if len(forA) != 2 {
		t.Errorf("session a has %d rows, want 2", len(forA))
	}

	count, err := s.CountHides(ctx)
	if err != nil {
		t.Fatalf("CountHides failed: %v", err)
	}
	if count != 3 {
		t.Errorf("CountHides = %d, want 3", count)
	}
}

func TestRecentHidesDefaultLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.RecordHide(ctx, filter.HideRecord{Rule: "links"}); err != nil {
		t.Fatalf("RecordHide failed: %v", err)
	}
	recent, err := s.RecentHides(ctx, 0)
	if err != nil {
		t.Fatalf("RecentHides failed: %v", err)
	}
	if len(recent) != 1 {
		t.Errorf("RecentHides with zero limit returned %d rows, want 1", len(recent))
	}
}

func TestRecordHideCapsExcerpt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	long := strings.Repeat("спам", 100) // 400 runes
	if err := s.RecordHide(ctx, filter.HideRecord{Rule: "word:спам", Excerpt: long}); err != nil {
		t.Fatalf("RecordHide failed: %v", err)
	}

	recent, err := s.RecentHides(ctx, 1)
	if err != nil {
		t.Fatalf("RecentHides failed: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("RecentHides returned %d rows, want 1", len(recent))
	}
	if got := utf8.RuneCountInString(recent[0].Excerpt); got != excerptLimit {
		t.Errorf("stored excerpt is %d runes, want %d", got, excerptLimit)
	}
}

func TestPurgeOlderThan(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.RecordHide(ctx, filter.HideRecord{SessionID: "now", Rule: "links"}); err != nil {
		t.Fatalf("RecordHide failed: %v", err)
	}
	_, err := s.db.Exec(
		`INSERT INTO hidden_comments (session_id, rule, hidden_at)
		 VALUES ('stale', 'word:x', datetime('now', '-10 days'))`)
	if err != nil {
		t.Fatalf("failed to seed stale row: %v", err)
	}

	n, err := s.PurgeOlderThan(ctx, 5)
	if err != nil {
		t.Fatalf("PurgeOlderThan failed: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d rows, want 1", n)
	}

	count, err := s.CountHides(ctx)
	if err != nil {
		t.Fatalf("CountHides failed: %v", err)
	}
	if count != 1 {
		t.Errorf("CountHides after purge = %d, want 1", count)
	}

	// Non-positive windows do nothing.
	n, err = s.PurgeOlderThan(ctx, 0)
	if err != nil {
		t.Fatalf("PurgeOlderThan(0) failed: %v", err)
	}
	if n != 0 {
		t.Errorf("PurgeOlderThan(0) purged %d rows, want 0", n)
	}
}

func TestOpenUpgradesV1Database(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")

	// Lay down a v1 database: no page_url, no version table.
	raw, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to open raw db: %v", err)
	}
	_, err = raw.Exec(`
		CREATE TABLE hidden_comments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL DEFAULT '',
			author TEXT NOT NULL DEFAULT '',
			rule TEXT NOT NULL,
			excerpt TEXT NOT NULL DEFAULT '',
			hidden_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		INSERT INTO hidden_comments (session_id, author, rule, excerpt)
		VALUES ('legacy', '@Old', 'links', 'ancient spam');`)
	if err != nil {
		t.Fatalf("failed to seed v1 db: %v", err)
	}
	if got := GetSchemaVersion(raw); got != 1 {
		t.Fatalf("seeded db reports version %d, want 1", got)
	}
	if err := raw.Close(); err != nil {
		t.Fatalf("failed to close raw db: %v", err)
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed on v1 db: %v", err)
	}
	defer s.Close()

	if !columnExists(s.db, "hidden_comments", "page_url") {
		t.Error("migration did not add page_url")
	}
	if got := GetSchemaVersion(s.db); got != CurrentSchemaVersion {
		t.Errorf("schema version after upgrade = %d, want %d", got, CurrentSchemaVersion)
	}

	recent, err := s.RecentHides(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentHides failed after upgrade: %v", err)
	}
	if len(recent) != 1 || recent[0].SessionID != "legacy" || recent[0].PageURL != "" {
		t.Errorf("legacy row not preserved: %+v", recent)
	}
}
