package filter

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tubesieve/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// RulesWatcher watches a rules file for changes and pushes reloaded rules
// into an Engine. It watches the parent directory so editors that replace
// the file on save (write to temp, rename over) are still observed.
type RulesWatcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	engine      *Engine
	path        string
	dir         string
	base        string
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	onReload    func(Rules)

	stats RulesWatcherStats
}

// RulesWatcherStats tracks watcher activity for debugging.
type RulesWatcherStats struct {
	Reloads       int
	Errors        int
	LastEventTime time.Time
}

// NewRulesWatcher creates a watcher for the rules file at path, feeding
// reloads into engine.
func NewRulesWatcher(path string, engine *Engine) (*RulesWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	return &RulesWatcher{
		watcher:     watcher,
		engine:      engine,
		path:        abs,
		dir:         filepath.Dir(abs),
		base:        filepath.Base(abs),
		debounceMap: make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond, // Debounce rapid saves
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// SetOnReload registers a callback invoked after each successful reload,
// with the freshly loaded rules. Must be called before Start.
func (rw *RulesWatcher) SetOnReload(fn func(Rules)) {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	rw.onReload = fn
}

// SetDebounce overrides the debounce window. Must be called before Start.
func (rw *RulesWatcher) SetDebounce(d time.Duration) {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if d > 0 {
		rw.debounceDur = d
	}
}

// Start begins watching the rules file's directory for changes.
// This method is non-blocking; it starts the watcher in a goroutine.
func (rw *RulesWatcher) Start(ctx context.Context) error {
	rw.mu.Lock()
	if rw.running {
		rw.mu.Unlock()
		return nil // Already running
	}
	rw.running = true
	rw.mu.Unlock()

	if err := os.MkdirAll(rw.dir, 0755); err != nil {
		logging.Get(logging.CategoryFilter).Warn("RulesWatcher: failed to create rules dir %s: %v (continuing anyway)", rw.dir, err)
	}

	if err := rw.watcher.Add(rw.dir); err != nil {
		// Directory may not exist yet. Reloads just won't trigger until it does.
		logging.Get(logging.CategoryFilter).Warn("RulesWatcher: initial watch failed: %v", err)
	} else {
		logging.Filter("RulesWatcher: watching %s for %s", rw.dir, rw.base)
	}

	go rw.run(ctx)

	return nil
}

// Stop stops the watcher and waits for cleanup.
func (rw *RulesWatcher) Stop() {
	rw.mu.Lock()
	if !rw.running {
		rw.mu.Unlock()
		return
	}
	rw.running = false
	rw.mu.Unlock()

	close(rw.stopCh)
	<-rw.doneCh

	if err := rw.watcher.Close(); err != nil {
		logging.Get(logging.CategoryFilter).Error("RulesWatcher: error closing watcher: %v", err)
	}
	logging.Filter("RulesWatcher: stopped")
}

// IsWatching returns true if the watcher is currently running.
func (rw *RulesWatcher) IsWatching() bool {
	rw.mu.RLock()
	defer rw.mu.RUnlock()
	return rw.running
}

// Stats returns the current watcher statistics.
func (rw *RulesWatcher) Stats() RulesWatcherStats {
	rw.mu.RLock()
	defer rw.mu.RUnlock()
	return rw.stats
}

// run is the main event loop for the watcher.
func (rw *RulesWatcher) run(ctx context.Context) {
	defer close(rw.doneCh)

	debounceTicker := time.NewTicker(50 * time.Millisecond)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.FilterDebug("RulesWatcher: context cancelled")
			return

		case <-rw.stopCh:
			logging.FilterDebug("RulesWatcher: stop signal received")
			return

		case event, ok := <-rw.watcher.Events:
			if !ok {
				logging.FilterDebug("RulesWatcher: event channel closed")
				return
			}
			rw.handleEvent(event)

		case err, ok := <-rw.watcher.Errors:
			if !ok {
				logging.FilterDebug("RulesWatcher: error channel closed")
				return
			}
			logging.Get(logging.CategoryFilter).Error("RulesWatcher error: %v", err)
			rw.mu.Lock()
			rw.stats.Errors++
			rw.mu.Unlock()

		case <-debounceTicker.C:
			rw.processDebouncedEvents()
		}
	}
}

// handleEvent records a filesystem event for debounced processing.
func (rw *RulesWatcher) handleEvent(event fsnotify.Event) {
	// Only care about the rules file itself.
	if filepath.Base(event.Name) != rw.base {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return // Ignore chmod, remove, etc.
	}

	logging.FilterDebug("RulesWatcher: %s event for %s", event.Op, event.Name)

	rw.mu.Lock()
	rw.stats.LastEventTime = time.Now()
	rw.debounceMap[event.Name] = time.Now()
	rw.mu.Unlock()
}

// processDebouncedEvents reloads once events have settled past the debounce window.
func (rw *RulesWatcher) processDebouncedEvents() {
	rw.mu.Lock()
	now := time.Now()
	settled := false
	for path, eventTime := range rw.debounceMap {
		if now.Sub(eventTime) >= rw.debounceDur {
			delete(rw.debounceMap, path)
			settled = true
		}
	}
	rw.mu.Unlock()

	if settled {
		rw.reload()
	}
}

// reload re-reads the rules file and applies it to the engine.
func (rw *RulesWatcher) reload() {
	if _, err := os.Stat(rw.path); os.IsNotExist(err) {
		logging.FilterDebug("RulesWatcher: rules file removed, keeping current rules")
		return
	}

	rules, err := LoadRules(rw.path)
	if err != nil {
		logging.Get(logging.CategoryFilter).Warn("RulesWatcher: reload failed, keeping current rules: %v", err)
		rw.mu.Lock()
		rw.stats.Errors++
		rw.mu.Unlock()
		return
	}

	rw.engine.SetRules(rules)

	rw.mu.Lock()
	rw.stats.Reloads++
	fn := rw.onReload
	rw.mu.Unlock()

	logging.Filter("RulesWatcher: reloaded rules (%d words, %d muted authors, enabled=%v)",
		len(rules.Words), len(rules.MutedAuthors), rules.Enabled)

	if fn != nil {
		fn(rules)
	}
}
