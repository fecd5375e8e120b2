// Package browser drives a live watch page over the DevTools protocol.
// It owns the Chrome connection and session bookkeeping and exposes
// each page as a dom.Document, so everything above it stays
// backend-neutral.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"

	"tubesieve/internal/logging"
)

// Session describes the public metadata for a tracked browser context.
type Session struct {
	ID         string    `json:"id"`
	TargetID   string    `json:"target_id,omitempty"`
	URL        string    `json:"url,omitempty"`
	Title      string    `json:"title,omitempty"`
	Status     string    `json:"status,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

type sessionRecord struct {
	meta Session
	page *rod.Page
	doc  *PageDocument
}

// SessionManager owns the Chrome instance and tracks active sessions.
type SessionManager struct {
	cfg        Config
	mu         sync.RWMutex
	browser    *rod.Browser
	sessions   map[string]*sessionRecord
	controlURL string
}

// NewSessionManager creates a new session manager.
func NewSessionManager(cfg Config) *SessionManager {
	return &SessionManager{
		cfg:      cfg,
		sessions: make(map[string]*sessionRecord),
	}
}

// Start connects to an existing Chrome or launches a new one.
func (m *SessionManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// If we already have a browser, verify it's still alive.
	if m.browser != nil {
		_, err := m.browser.Version()
		if err == nil {
			return nil
		}
		logging.Browser("stale browser connection detected, reconnecting")
		_ = m.browser.Close()
		m.browser = nil
		m.controlURL = ""
		m.sessions = make(map[string]*sessionRecord)
	}

	if err := m.loadSessionsLocked(); err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}

	controlURL := m.cfg.ControlURL
	if controlURL == "" && m.cfg.Bin != "" {
		launch := launcher.New().Bin(m.cfg.Bin).Headless(m.cfg.IsHeadless())
		for _, rawFlag := range m.cfg.LaunchFlags {
			flagStr := strings.TrimLeft(rawFlag, "-")
			name, val, hasVal := strings.Cut(flagStr, "=")
			if hasVal {
				launch = launch.Set(flags.Flag(name), val)
			} else {
				launch = launch.Set(flags.Flag(name))
			}
		}
		url, err := launch.Launch()
		if err != nil {
			// Retry without the custom flags before giving up.
			fallback := launcher.New().Bin(m.cfg.Bin).Headless(m.cfg.IsHeadless())
			if alt, altErr := fallback.Launch(); altErr == nil {
				controlURL = alt
			} else {
				return fmt.Errorf("launch chrome: %w (fallback: %v)", err, altErr)
			}
		} else {
			controlURL = url
		}
	}

	if controlURL == "" {
		url, err := launcher.New().Headless(m.cfg.IsHeadless()).Launch()
		if err != nil {
			return fmt.Errorf("no control_url and failed to launch: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	m.browser = browser
	m.controlURL = controlURL
	logging.Browser("connected to chrome (headless=%v)", m.cfg.IsHeadless())
	return nil
}

func (m *SessionManager) ensureStarted(ctx context.Context) error {
	m.mu.RLock()
	if m.browser != nil {
		m.mu.RUnlock()
		return nil
	}
	m.mu.RUnlock()
	return m.Start(ctx)
}

// ControlURL returns the WebSocket debugger URL.
func (m *SessionManager) ControlURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.controlURL
}

// IsConnected returns whether the browser is connected.
func (m *SessionManager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser != nil
}

// Shutdown stops event pumps, closes tracked pages, and disconnects.
func (m *SessionManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, record := range m.sessions {
		if record.doc != nil {
			record.doc.StopEvents()
		}
		if record.page != nil {
			_ = record.page.Close()
		}
		delete(m.sessions, id)
	}

	var err error
	if m.browser != nil {
		err = m.browser.Close()
		m.browser = nil
	}
	m.controlURL = ""
	logging.Browser("browser shutdown complete")
	return err
}

// List returns metadata for all known sessions.
func (m *SessionManager) List() []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]Session, 0, len(m.sessions))
	for _, record := range m.sessions {
		results = append(results, record.meta)
	}
	return results
}

// CreateSession opens a new page on url and tracks it.
func (m *SessionManager) CreateSession(ctx context.Context, url string) (*Session, error) {
	if err := m.ensureStarted(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	browser := m.browser
	m.mu.RUnlock()
	if browser == nil {
		return nil, errors.New("browser not connected")
	}

	incognito, err := browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             m.cfg.GetViewportWidth(),
		Height:            m.cfg.GetViewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		logging.Get(logging.CategoryBrowser).Warn("failed to set viewport: %v", err)
	}

	// Initial load failures are not fatal; the page stays usable and
	// callers can Navigate again.
	_ = page.Timeout(m.cfg.NavigationTimeout()).Navigate(url)

	meta := Session{
		ID:         uuid.NewString(),
		TargetID:   string(page.TargetID),
		URL:        url,
		Status:     "active",
		CreatedAt:  time.Now(),
		LastActive: time.Now(),
	}
	doc := newPageDocument(page, m.cfg.EventThrottle())

	m.mu.Lock()
	m.sessions[meta.ID] = &sessionRecord{meta: meta, page: page, doc: doc}
	m.mu.Unlock()

	if err := doc.StartEvents(ctx); err != nil {
		logging.Get(logging.CategoryBrowser).Warn("event pump failed to start: %v", err)
	}
	m.trackNavigation(ctx, meta.ID, page)
	_ = m.persistSessions()

	logging.Session("created session %s for %s", meta.ID, url)
	return &meta, nil
}

// Attach binds to an existing target by TargetID.
func (m *SessionManager) Attach(ctx context.Context, targetID string) (*Session, error) {
	if err := m.ensureStarted(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	browser := m.browser
	m.mu.RUnlock()
	if browser == nil {
		return nil, errors.New("browser not connected")
	}

	page, err := browser.PageFromTarget(proto.TargetTargetID(targetID))
	if err != nil {
		// The tab is gone; drop any stale records pointing at it.
		m.pruneByTarget(targetID)
		return nil, fmt.Errorf("attach to target %s: %w", targetID, err)
	}

	meta := Session{
		ID:         uuid.NewString(),
		TargetID:   targetID,
		Status:     "attached",
		CreatedAt:  time.Now(),
		LastActive: time.Now(),
	}
	if info, err := page.Info(); err == nil {
		meta.URL = info.URL
		meta.Title = info.Title
	}
	doc := newPageDocument(page, m.cfg.EventThrottle())

	m.mu.Lock()
	m.sessions[meta.ID] = &sessionRecord{meta: meta, page: page, doc: doc}
	m.mu.Unlock()

	if err := doc.StartEvents(ctx); err != nil {
		logging.Get(logging.CategoryBrowser).Warn("event pump failed to start: %v", err)
	}
	m.trackNavigation(ctx, meta.ID, page)
	_ = m.persistSessions()

	logging.Session("attached session %s to target %s", meta.ID, targetID)
	return &meta, nil
}

// trackNavigation follows frame navigations so the stored URL tracks
// where the tab actually is. The stream ends when ctx does.
func (m *SessionManager) trackNavigation(ctx context.Context, sessionID string, page *rod.Page) {
	waitNav := page.Context(ctx).EachEvent(func(ev *proto.PageFrameNavigated) {
		// Subframe navigations (ads, embeds) do not move the page.
		if ev.Frame.ParentID != "" {
			return
		}
		m.UpdateMetadata(sessionID, func(s Session) Session {
			s.URL = ev.Frame.URL
			s.LastActive = time.Now()
			return s
		})
		logging.SessionDebug("session %s navigated to %s", sessionID, ev.Frame.URL)
	})
	go waitNav()
}

// Page returns the underlying rod page for a session.
func (m *SessionManager) Page(sessionID string) (*rod.Page, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return rec.page, true
}

// Document returns the session's page as a dom.Document. Sessions
// restored from disk have no live page and must be recreated first.
func (m *SessionManager) Document(sessionID string) (*PageDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("unknown session: %s", sessionID)
	}
	if rec.doc == nil {
		return nil, fmt.Errorf("session %s is detached; create or attach a new one", sessionID)
	}
	return rec.doc, nil
}

// GetSession returns session metadata.
func (m *SessionManager) GetSession(sessionID string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	return rec.meta, true
}

// UpdateMetadata updates session metadata.
func (m *SessionManager) UpdateMetadata(sessionID string, updater func(Session) Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	rec.meta = updater(rec.meta)
}

// Navigate navigates a session to a URL.
func (m *SessionManager) Navigate(ctx context.Context, sessionID, url string) error {
	if err := m.ensureStarted(ctx); err != nil {
		return err
	}
	page, ok := m.Page(sessionID)
	if !ok {
		return fmt.Errorf("unknown session: %s", sessionID)
	}
	if page == nil {
		return fmt.Errorf("session %s is detached", sessionID)
	}
	if err := page.Context(ctx).Timeout(m.cfg.NavigationTimeout()).Navigate(url); err != nil {
		return err
	}
	m.UpdateMetadata(sessionID, func(s Session) Session {
		s.URL = url
		s.LastActive = time.Now()
		return s
	})
	_ = m.persistSessions()
	return nil
}

// Click clicks the first element matching selector.
func (m *SessionManager) Click(ctx context.Context, sessionID, selector string) error {
	if err := m.ensureStarted(ctx); err != nil {
		return err
	}
	page, ok := m.Page(sessionID)
	if !ok || page == nil {
		return fmt.Errorf("unknown session: %s", sessionID)
	}
	el, err := page.Context(ctx).Element(selector)
	if err != nil {
		return fmt.Errorf("element not found: %w", err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// Type types text into the first element matching selector.
func (m *SessionManager) Type(ctx context.Context, sessionID, selector, text string) error {
	if err := m.ensureStarted(ctx); err != nil {
		return err
	}
	page, ok := m.Page(sessionID)
	if !ok || page == nil {
		return fmt.Errorf("unknown session: %s", sessionID)
	}
	el, err := page.Context(ctx).Element(selector)
	if err != nil {
		return fmt.Errorf("element not found: %w", err)
	}
	return el.Input(text)
}

func (m *SessionManager) pruneByTarget(targetID string) {
	m.mu.Lock()
	pruned := 0
	for id, rec := range m.sessions {
		if rec.meta.TargetID == targetID && rec.page == nil {
			delete(m.sessions, id)
			pruned++
		}
	}
	m.mu.Unlock()
	if pruned > 0 {
		logging.SessionDebug("pruned %d stale sessions for target %s", pruned, targetID)
		_ = m.persistSessions()
	}
}

// persistSessions writes session metadata to disk.
func (m *SessionManager) persistSessions() error {
	if m.cfg.SessionStore == "" {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]Session, 0, len(m.sessions))
	for _, rec := range m.sessions {
		sessions = append(sessions, rec.meta)
	}

	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(m.cfg.SessionStore), 0o755); err != nil {
		return err
	}
	return os.WriteFile(m.cfg.SessionStore, data, 0o644)
}

// loadSessionsLocked loads persisted metadata. Caller must hold lock.
// Restored sessions have no live page; they exist so the sessions
// command can show history across runs.
func (m *SessionManager) loadSessionsLocked() error {
	if m.cfg.SessionStore == "" {
		return nil
	}

	sessions, err := LoadPersisted(m.cfg.SessionStore)
	if err != nil {
		return err
	}

	for _, s := range sessions {
		s.Status = "detached"
		m.sessions[s.ID] = &sessionRecord{meta: s, page: nil, doc: nil}
	}
	logging.SessionDebug("restored %d detached sessions from %s", len(sessions), m.cfg.SessionStore)
	return nil
}

// LoadPersisted reads the session store without connecting to a
// browser, newest first. A missing store is an empty list.
func LoadPersisted(path string) ([]Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var sessions []Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, err
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastActive.After(sessions[j].LastActive)
	})
	return sessions, nil
}
