package browser

import "time"

// Config holds browser configuration. It is deliberately standalone;
// cmd maps the application config onto it at startup.
type Config struct {
	ControlURL          string   `json:"control_url"`
	Bin                 string   `json:"bin"`
	LaunchFlags         []string `json:"launch_flags"`
	Headless            bool     `json:"headless"`
	ViewportWidth       int      `json:"viewport_width"`
	ViewportHeight      int      `json:"viewport_height"`
	NavigationTimeoutMs int      `json:"navigation_timeout_ms"`
	EventThrottleMs     int      `json:"event_throttle_ms"`
	SessionStore        string   `json:"session_store"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:            false,
		ViewportWidth:       1280,
		ViewportHeight:      900,
		NavigationTimeoutMs: 30000,
		EventThrottleMs:     250,
	}
}

// IsHeadless returns the headless setting.
func (c Config) IsHeadless() bool {
	return c.Headless
}

// GetViewportWidth returns viewport width.
func (c Config) GetViewportWidth() int {
	if c.ViewportWidth == 0 {
		return 1280
	}
	return c.ViewportWidth
}

// GetViewportHeight returns viewport height.
func (c Config) GetViewportHeight() int {
	if c.ViewportHeight == 0 {
		return 900
	}
	return c.ViewportHeight
}

// NavigationTimeout returns the navigation timeout.
func (c Config) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs == 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// EventThrottle returns how often the event pump drains the page.
func (c Config) EventThrottle() time.Duration {
	if c.EventThrottleMs <= 0 {
		return 250 * time.Millisecond
	}
	return time.Duration(c.EventThrottleMs) * time.Millisecond
}
