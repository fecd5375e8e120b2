// Package filter decides which comment threads get hidden and keeps
// the page in that state: a pure matcher over user rules, an engine
// that walks the comment section through the dom facade, and a watcher
// that reloads the rules file while the tool runs.
package filter

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"tubesieve/internal/logging"
)

// Rules are the user's filtering choices. They live in their own yaml
// file rather than the main config because they change at runtime: the
// overlay edits them and RulesWatcher reloads them. The main config
// stays immutable.
type Rules struct {
	Enabled        bool     `yaml:"enabled"`
	Words          []string `yaml:"words"`
	MutedAuthors   []string `yaml:"muted_authors"`
	HideLinks      bool     `yaml:"hide_links"`
	MatchCase      bool     `yaml:"match_case"`
	IncludeReplies bool     `yaml:"include_replies"`
}

// DefaultRules starts enabled with an empty word list, so a fresh
// install changes nothing until the user adds a rule.
func DefaultRules() Rules {
	return Rules{
		Enabled:        true,
		Words:          nil,
		MutedAuthors:   nil,
		HideLinks:      false,
		MatchCase:      false,
		IncludeReplies: true,
	}
}

// LoadRules reads the rules file. A missing file yields the defaults.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.FilterDebug("no rules at %s, using defaults", path)
			return rules, nil
		}
		return rules, fmt.Errorf("failed to read rules: %w", err)
	}

	if err := yaml.Unmarshal(data, &rules); err != nil {
		return DefaultRules(), fmt.Errorf("failed to parse rules: %w", err)
	}

	logging.FilterDebug("loaded rules from %s (%d words, %d muted authors)",
		path, len(rules.Words), len(rules.MutedAuthors))
	return rules, nil
}

// SaveRules writes the rules file, creating the directory if needed.
func SaveRules(path string, rules Rules) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create rules directory: %w", err)
	}

	data, err := yaml.Marshal(rules)
	if err != nil {
		return fmt.Errorf("failed to marshal rules: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write rules: %w", err)
	}

	return nil
}
