package browser

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFallbacks(t *testing.T) {
	var cfg Config
	assert.False(t, cfg.IsHeadless())
	assert.Equal(t, 1280, cfg.GetViewportWidth())
	assert.Equal(t, 900, cfg.GetViewportHeight())
	assert.Equal(t, 30*time.Second, cfg.NavigationTimeout())
	assert.Equal(t, 250*time.Millisecond, cfg.EventThrottle())

	cfg = Config{
		Headless:            true,
		ViewportWidth:       800,
		ViewportHeight:      600,
		NavigationTimeoutMs: 5000,
		EventThrottleMs:     50,
	}
	assert.True(t, cfg.IsHeadless())
	assert.Equal(t, 800, cfg.GetViewportWidth())
	assert.Equal(t, 600, cfg.GetViewportHeight())
	assert.Equal(t, 5*time.Second, cfg.NavigationTimeout())
	assert.Equal(t, 50*time.Millisecond, cfg.EventThrottle())
}

func TestSessionPersistenceRoundTrip(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "sessions.json")

	m := NewSessionManager(Config{SessionStore: storePath})
	created := time.Now().Add(-time.Hour).Truncate(time.Second)
	m.sessions["s-1"] = &sessionRecord{meta: Session{
		ID:         "s-1",
		TargetID:   "T1",
		URL:        "https://example.com/watch?v=abc",
		Title:      "a video",
		Status:     "active",
		CreatedAt:  created,
		LastActive: created,
	}}
	require.NoError(t, m.persistSessions())

	m2 := NewSessionManager(Config{SessionStore: storePath})
	m2.mu.Lock()
	err := m2.loadSessionsLocked()
	m2.mu.Unlock()
	require.NoError(t, err)

	got, ok := m2.GetSession("s-1")
	require.True(t, ok)
	assert.Equal(t, "detached", got.Status, "restored sessions have no live page")
	assert.Equal(t, "https://example.com/watch?v=abc", got.URL)
	assert.Equal(t, "T1", got.TargetID)
	assert.True(t, got.CreatedAt.Equal(created))
}

func TestLoadMissingSessionStoreIsFine(t *testing.T) {
	m := NewSessionManager(Config{SessionStore: filepath.Join(t.TempDir(), "absent.json")})
	m.mu.Lock()
	err := m.loadSessionsLocked()
	m.mu.Unlock()
	require.NoError(t, err)
	assert.Empty(t, m.List())
}

func TestPersistWithoutStoreIsANoOp(t *testing.T) {
	m := NewSessionManager(Config{})
	m.sessions["s-1"] = &sessionRecord{meta: Session{ID: "s-1"}}
	require.NoError(t, m.persistSessions())
}

func TestDocumentErrorsForDetachedSession(t *testing.T) {
	m := NewSessionManager(Config{})
	m.sessions["s-2"] = &sessionRecord{meta: Session{ID: "s-2", Status: "detached"}}

	_, err := m.Document("s-2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "detached")

	_, err = m.Document("nope")
	require.Error(t, err)
}

func TestUpdateMetadata(t *testing.T) {
	m := NewSessionManager(Config{})
	m.sessions["s-3"] = &sessionRecord{meta: Session{ID: "s-3", URL: "about:blank"}}

	m.UpdateMetadata("s-3", func(s Session) Session {
		s.Title = "renamed"
		return s
	})
	m.UpdateMetadata("missing", func(s Session) Session {
		t.Fatal("updater must not run for unknown sessions")
		return s
	})

	got, ok := m.GetSession("s-3")
	require.True(t, ok)
	assert.Equal(t, "renamed", got.Title)
	assert.Equal(t, "about:blank", got.URL)
}
