// Package config defines the tubesieve configuration: the selectors,
// element ids, and icon markup that tie the tool to the host page, plus
// browser, discovery, and filter settings. Configuration is loaded once
// at startup and treated as immutable afterwards; only the separate
// rules file (see internal/filter) reloads at runtime.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"tubesieve/internal/logging"
)

// Config is the root configuration.
type Config struct {
	Locale    string         `yaml:"locale" validate:"required"`
	Selectors SelectorConfig `yaml:"selectors"`
	IDs       IDConfig       `yaml:"ids"`
	Icons     IconConfig     `yaml:"icons"`
	Discover  DiscoverConfig `yaml:"discover"`
	Browser   BrowserConfig  `yaml:"browser"`
	Filter    FilterConfig   `yaml:"filter"`
	Store     StoreConfig    `yaml:"store"`
	Logging   LoggingConfig  `yaml:"logging"`
}

// SelectorConfig holds the CSS selectors for the host page. These are
// the only place the page's markup structure is spelled out; when the
// site ships a redesign, this is what changes.
type SelectorConfig struct {
	CommentSection string `yaml:"comment_section" validate:"required"`
	CommentThread  string `yaml:"comment_thread" validate:"required"`
	CommentReply   string `yaml:"comment_reply" validate:"required"`
	CommentText    string `yaml:"comment_text" validate:"required"`
	CommentAuthor  string `yaml:"comment_author" validate:"required"`
	PanelMount     string `yaml:"panel_mount" validate:"required"`
}

// IDConfig holds the ids of overlay elements. Builders stamp these onto
// the fragments they create and later lookups search by the same
// values, so both sides must read from here.
type IDConfig struct {
	Panel        string `yaml:"panel" validate:"required"`
	Toggle       string `yaml:"toggle" validate:"required"`
	FilterStatus string `yaml:"filter_status" validate:"required"`
	WordForm     string `yaml:"word_form" validate:"required"`
	WordInput    string `yaml:"word_input" validate:"required"`
}

// IconConfig carries inline SVG markup for the overlay.
type IconConfig struct {
	FunnelSVG string `yaml:"funnel_svg" validate:"required"`
}

// DiscoverConfig bounds the comment-section polling.
type DiscoverConfig struct {
	TimeoutMs  int `yaml:"timeout_ms" validate:"gte=0"`
	IntervalMs int `yaml:"interval_ms" validate:"gt=0"`
}

// Timeout returns the discovery budget as a duration.
func (d DiscoverConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutMs) * time.Millisecond
}

// Interval returns the polling interval as a duration.
func (d DiscoverConfig) Interval() time.Duration {
	return time.Duration(d.IntervalMs) * time.Millisecond
}

// BrowserConfig mirrors internal/browser.Config so that package stays
// import-light; cmd maps one onto the other at startup.
type BrowserConfig struct {
	ControlURL          string `yaml:"control_url"`
	Bin                 string `yaml:"bin"`
	Headless            bool   `yaml:"headless"`
	ViewportWidth       int    `yaml:"viewport_width" validate:"gte=0"`
	ViewportHeight      int    `yaml:"viewport_height" validate:"gte=0"`
	NavigationTimeoutMs int    `yaml:"navigation_timeout_ms" validate:"gte=0"`
	EventThrottleMs     int    `yaml:"event_throttle_ms" validate:"gte=0"`
}

// FilterConfig wires the rules engine.
type FilterConfig struct {
	RulesPath       string `yaml:"rules_path" validate:"required"`
	ApplyThrottleMs int    `yaml:"apply_throttle_ms" validate:"gt=0"`
	Parallelism     int    `yaml:"parallelism" validate:"gte=1,lte=64"`
}

// ApplyThrottle returns the minimum spacing between filter passes.
func (f FilterConfig) ApplyThrottle() time.Duration {
	return time.Duration(f.ApplyThrottleMs) * time.Millisecond
}

// StoreConfig wires the audit trail database.
type StoreConfig struct {
	Path     string `yaml:"path" validate:"required"`
	Enabled  bool   `yaml:"enabled"`
	KeepDays int    `yaml:"keep_days" validate:"gte=0"`
}

// LoggingConfig mirrors what internal/logging reads from the same file.
type LoggingConfig struct {
	Debug      bool            `yaml:"debug"`
	Level      string          `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Categories map[string]bool `yaml:"categories"`
}

var validate = validator.New()

// DefaultConfig returns the configuration for the stock watch-page
// markup.
func DefaultConfig() *Config {
	return &Config{
		Locale: "en",
		Selectors: SelectorConfig{
			CommentSection: "ytd-comments#comments",
			CommentThread:  "ytd-comment-thread-renderer",
			CommentReply:   "ytd-comment-replies-renderer ytd-comment-renderer",
			CommentText:    "#content-text",
			CommentAuthor:  "#author-text",
			PanelMount:     "ytd-comments#comments #header",
		},
		IDs: IDConfig{
			Panel:        "tubesieve-panel",
			Toggle:       "tubesieve-toggle",
			FilterStatus: "tubesieve-status",
			WordForm:     "tubesieve-word-form",
			WordInput:    "tubesieve-word-input",
		},
		Icons: IconConfig{
			FunnelSVG: `<svg viewBox="0 0 24 24" width="16" height="16" aria-hidden="true"><path d="M3 5h18l-7 8v5l-4 2v-7L3 5z" fill="currentColor"></path></svg>`,
		},
		Discover: DiscoverConfig{
			TimeoutMs:  30000,
			IntervalMs: 200,
		},
		Browser: BrowserConfig{
			ControlURL:          "",
			Headless:            false,
			ViewportWidth:       1280,
			ViewportHeight:      900,
			NavigationTimeoutMs: 30000,
			EventThrottleMs:     250,
		},
		Filter: FilterConfig{
			RulesPath:       filepath.Join(".tubesieve", "rules.yaml"),
			ApplyThrottleMs: 1500,
			Parallelism:     4,
		},
		Store: StoreConfig{
			Path:     filepath.Join(".tubesieve", "audit.db"),
			Enabled:  true,
			KeepDays: 90,
		},
		Logging: LoggingConfig{
			Debug: false,
			Level: "info",
		},
	}
}

// DefaultPath returns the config location under a workspace. It is the
// same file internal/logging reads its section from.
func DefaultPath(workspace string) string {
	return filepath.Join(workspace, ".tubesieve", "config.yaml")
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults; a present file is overlaid onto them, then environment
// overrides apply, then the result is validated.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.ConfigDebug("no config at %s, using defaults", path)
			cfg.applyEnvOverrides()
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logging.Config("loaded config from %s (locale=%s)", path, cfg.Locale)
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("TUBESIEVE_CONTROL_URL"); url != "" {
		c.Browser.ControlURL = url
	}
	if bin := os.Getenv("TUBESIEVE_BROWSER_BIN"); bin != "" {
		c.Browser.Bin = bin
	}
	if locale := os.Getenv("TUBESIEVE_LOCALE"); locale != "" {
		c.Locale = locale
	}
	if rules := os.Getenv("TUBESIEVE_RULES"); rules != "" {
		c.Filter.RulesPath = rules
	}
	if store := os.Getenv("TUBESIEVE_STORE"); store != "" {
		c.Store.Path = store
	}
	if headless := os.Getenv("TUBESIEVE_HEADLESS"); headless == "1" || headless == "true" {
		c.Browser.Headless = true
	}
}

// Validate checks the configuration. Struct tags cover the mechanical
// rules; the icon check keeps a pasted-in fragment from silently
// breaking the toggle.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(c.Icons.FunnelSVG), "<svg") {
		return fmt.Errorf("config validation failed: icons.funnel_svg must be inline <svg> markup")
	}
	return nil
}
