// Package i18n resolves overlay strings from embedded locale catalogs.
// Catalogs use the WebExtension messages layout, {"key": {"message":
// "..."}}, so entries can be lifted straight from a browser extension's
// _locales tree.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"tubesieve/internal/logging"
)

//go:embed locales/*.json
var localeFS embed.FS

const fallbackLocale = "en"

type entry struct {
	Message     string `json:"message"`
	Description string `json:"description,omitempty"`
}

// Bundle is an immutable message catalog for one locale. Load it once
// at startup and hand it to the overlay builders; nothing re-resolves
// messages at event time.
type Bundle struct {
	locale   string
	messages map[string]entry
}

// Load parses the catalog for locale, falling back to English when the
// locale is not bundled.
func Load(locale string) (*Bundle, error) {
	if locale == "" {
		locale = fallbackLocale
	}
	data, err := localeFS.ReadFile("locales/" + locale + ".json")
	if err != nil {
		if locale == fallbackLocale {
			return nil, fmt.Errorf("load locale %s: %w", locale, err)
		}
		logging.Config("locale %q not bundled, falling back to %s", locale, fallbackLocale)
		return Load(fallbackLocale)
	}
	var messages map[string]entry
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("parse locale %s: %w", locale, err)
	}
	return &Bundle{locale: locale, messages: messages}, nil
}

// Locale returns the locale code the bundle actually loaded.
func (b *Bundle) Locale() string {
	return b.locale
}

// Get returns the message for key. A missing key returns the key
// itself, so the overlay shows something greppable instead of a blank.
func (b *Bundle) Get(key string) string {
	if e, ok := b.messages[key]; ok && e.Message != "" {
		return e.Message
	}
	logging.ConfigDebug("i18n: no message for %q in locale %s", key, b.locale)
	return key
}

// Has reports whether the catalog carries key.
func (b *Bundle) Has(key string) bool {
	e, ok := b.messages[key]
	return ok && e.Message != ""
}

// Locales lists the bundled locale codes, sorted.
func Locales() []string {
	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil
	}
	var codes []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".json"); ok {
			codes = append(codes, name)
		}
	}
	sort.Strings(codes)
	return codes
}
