package filter

import (
	"regexp"
	"strings"
)

// linkPattern catches the usual comment-spam link shapes. Scheme-less
// "www." links count; bare domains do not, they false-positive on
// ordinary prose.
var linkPattern = regexp.MustCompile(`(?i)https?://|www\.`)

// Match reports whether a comment should be hidden under r, and which
// rule fired: "author:<name>", "links", or "word:<word>". An empty
// reason means keep. Author rules win over text rules so the audit
// trail names the muted channel rather than whatever word its comment
// happened to contain.
func Match(r Rules, text, author string) (bool, string) {
	if !r.Enabled {
		return false, ""
	}

	normAuthor := normalizeAuthor(author)
	for _, muted := range r.MutedAuthors {
		if muted == "" {
			continue
		}
		if strings.EqualFold(normAuthor, normalizeAuthor(muted)) {
			return true, "author:" + muted
		}
	}

	if r.HideLinks && linkPattern.MatchString(text) {
		return true, "links"
	}

	haystack := text
	if !r.MatchCase {
		haystack = strings.ToLower(text)
	}
	for _, word := range r.Words {
		if word == "" {
			continue
		}
		needle := word
		if !r.MatchCase {
			needle = strings.ToLower(word)
		}
		if strings.Contains(haystack, needle) {
			return true, "word:" + word
		}
	}

	return false, ""
}

// normalizeAuthor strips the handle sigil and surrounding space so
// "@Name " and "name" compare equal.
func normalizeAuthor(author string) string {
	return strings.TrimPrefix(strings.TrimSpace(author), "@")
}

// excerpt condenses comment text for audit rows and check output.
func excerpt(text string) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	runes := []rune(collapsed)
	if len(runes) <= 120 {
		return collapsed
	}
	return string(runes[:120]) + "..."
}
