package filter

import (
	"context"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"tubesieve/internal/config"
	"tubesieve/internal/dom"
	"tubesieve/internal/logging"
)

// Hidden elements carry a marker attribute naming the rule that hid
// them, so a later pass can tell its own work apart from page styling
// and restore cleanly.
const (
	markerAttr  = "data-sieve-hidden"
	hiddenStyle = "display: none;"
)

// Recorder persists hide decisions for the audit trail. The sqlite
// store implements it; dry runs and tests pass nil.
type Recorder interface {
	RecordHide(ctx context.Context, rec HideRecord) error
}

// HideRecord describes one newly hidden element.
type HideRecord struct {
	SessionID string
	PageURL   string
	Author    string
	Rule      string
	Excerpt   string
}

// ApplyStats summarizes one filtering pass.
type ApplyStats struct {
	Scanned  int // elements evaluated: thread roots plus replies
	Hidden   int // elements hidden after the pass
	Newly    int // elements this pass transitioned to hidden
	Restored int // elements this pass un-hid
}

// Verdict is one element's evaluation in a dry run.
type Verdict struct {
	Author  string `json:"author"`
	Excerpt string `json:"excerpt"`
	Hidden  bool   `json:"hidden"`
	Rule    string `json:"rule,omitempty"`
	Reply   bool   `json:"reply"`
}

// Engine applies the rules to a document's comment threads. Rules are
// swappable at runtime (overlay edits, file reloads); everything else
// is fixed at construction.
type Engine struct {
	mu       sync.RWMutex
	rules    Rules
	rec      Recorder
	session  string
	parallel int
}

// NewEngine builds an engine. rec may be nil when no audit trail is
// wanted.
func NewEngine(rules Rules, rec Recorder) *Engine {
	return &Engine{
		rules:    rules,
		rec:      rec,
		parallel: 4,
	}
}

// SetSession tags future audit records with the browser session id.
func (e *Engine) SetSession(id string) {
	e.mu.Lock()
	e.session = id
	e.mu.Unlock()
}

// SetParallelism bounds how many threads one pass works concurrently.
func (e *Engine) SetParallelism(n int) {
	if n < 1 {
		n = 1
	}
	e.mu.Lock()
	e.parallel = n
	e.mu.Unlock()
}

// Rules returns a copy of the current rules.
func (e *Engine) Rules() Rules {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return cloneRules(e.rules)
}

// SetRules swaps the rules wholesale, as the file watcher does.
func (e *Engine) SetRules(r Rules) {
	e.mu.Lock()
	e.rules = cloneRules(r)
	e.mu.Unlock()
	logging.Filter("rules replaced (%d words, %d muted authors, enabled=%v)",
		len(r.Words), len(r.MutedAuthors), r.Enabled)
}

// Update mutates the rules under the engine's lock and returns the
// result, for overlay callbacks that tweak one field.
func (e *Engine) Update(mut func(*Rules)) Rules {
	e.mu.Lock()
	mut(&e.rules)
	updated := cloneRules(e.rules)
	e.mu.Unlock()
	return updated
}

// AddWord appends a word rule unless it is already present. Reports
// whether the list changed.
func (e *Engine) AddWord(word string) bool {
	word = strings.TrimSpace(word)
	if word == "" {
		return false
	}
	added := false
	e.Update(func(r *Rules) {
		for _, w := range r.Words {
			if strings.EqualFold(w, word) {
				return
			}
		}
		r.Words = append(r.Words, word)
		added = true
	})
	if added {
		logging.Filter("word rule added: %q", word)
	}
	return added
}

// Toggle flips the enabled flag and returns the new state.
func (e *Engine) Toggle() bool {
	var on bool
	e.Update(func(r *Rules) {
		r.Enabled = !r.Enabled
		on = r.Enabled
	})
	return on
}

func cloneRules(r Rules) Rules {
	r.Words = slices.Clone(r.Words)
	r.MutedAuthors = slices.Clone(r.MutedAuthors)
	return r
}

// Apply runs one filtering pass over doc: evaluate every comment
// thread (and, when the rules say so, every reply), hide matches, and
// restore previous hides that no longer match. Individual thread
// failures are logged and skipped; a pass only errors when the comment
// list itself cannot be read.
func (e *Engine) Apply(ctx context.Context, doc dom.Document, sel config.SelectorConfig, pageURL string) (ApplyStats, error) {
	timer := logging.StartTimer(logging.CategoryFilter, "Apply")
	defer timer.Stop()

	threads, err := dom.FindAll(doc, sel.CommentThread)
	if err != nil {
		return ApplyStats{}, err
	}

	rules := e.Rules()
	e.mu.RLock()
	parallel := e.parallel
	e.mu.RUnlock()

	var (
		mu    sync.Mutex
		stats ApplyStats
	)

	var g errgroup.Group
	g.SetLimit(parallel)
	for _, th := range threads {
		th := th
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			delta := e.applyThread(ctx, rules, th, sel, pageURL)
			mu.Lock()
			stats.Scanned += delta.Scanned
			stats.Hidden += delta.Hidden
			stats.Newly += delta.Newly
			stats.Restored += delta.Restored
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	logging.Filter("pass over %d threads: %d hidden (%d new), %d restored",
		len(threads), stats.Hidden, stats.Newly, stats.Restored)
	return stats, ctx.Err()
}

// Evaluate is the read-only twin of Apply for dry runs: no mutations,
// sequential walk, verdicts in document order.
func (e *Engine) Evaluate(ctx context.Context, doc dom.Document, sel config.SelectorConfig) ([]Verdict, error) {
	threads, err := dom.FindAll(doc, sel.CommentThread)
	if err != nil {
		return nil, err
	}

	rules := e.Rules()
	var verdicts []Verdict
	for _, th := range threads {
		if ctx.Err() != nil {
			return verdicts, ctx.Err()
		}
		author, text, err := readComment(th, sel)
		if err != nil {
			logging.Get(logging.CategoryFilter).Warn("skipping unreadable thread: %v", err)
			continue
		}
		hide, rule := Match(rules, text, author)
		verdicts = append(verdicts, Verdict{
			Author:  author,
			Excerpt: excerpt(text),
			Hidden:  hide,
			Rule:    rule,
		})
		if hide || !rules.IncludeReplies {
			continue
		}
		replies, err := dom.FindAll(th, sel.CommentReply)
		if err != nil {
			continue
		}
		for _, reply := range replies {
			author, text, err := readComment(reply, sel)
			if err != nil {
				continue
			}
			hide, rule := Match(rules, text, author)
			verdicts = append(verdicts, Verdict{
				Author:  author,
				Excerpt: excerpt(text),
				Hidden:  hide,
				Rule:    rule,
				Reply:   true,
			})
		}
	}
	return verdicts, nil
}

// applyThread evaluates one thread root and, if it stays visible, its
// replies.
func (e *Engine) applyThread(ctx context.Context, rules Rules, th dom.Element, sel config.SelectorConfig, pageURL string) ApplyStats {
	var stats ApplyStats

	author, text, err := readComment(th, sel)
	if err != nil {
		logging.Get(logging.CategoryFilter).Warn("skipping unreadable thread: %v", err)
		return stats
	}
	stats.Scanned++

	hide, rule := Match(rules, text, author)
	e.settle(ctx, th, hide, rule, author, text, pageURL, &stats)
	if hide {
		// Replies vanish with their thread; nothing further to do.
		return stats
	}

	if !rules.IncludeReplies {
		return stats
	}
	replies, err := dom.FindAll(th, sel.CommentReply)
	if err != nil {
		logging.FilterDebug("reply lookup failed: %v", err)
		return stats
	}
	for _, reply := range replies {
		author, text, err := readComment(reply, sel)
		if err != nil {
			continue
		}
		stats.Scanned++
		hide, rule := Match(rules, text, author)
		e.settle(ctx, reply, hide, rule, author, text, pageURL, &stats)
	}
	return stats
}

// settle moves one element to its target state and updates stats.
func (e *Engine) settle(ctx context.Context, el dom.Element, hide bool, rule, author, text, pageURL string, stats *ApplyStats) {
	was := isHidden(el)
	switch {
	case hide && !was:
		if err := el.SetAttribute("style", hiddenStyle); err != nil {
			logging.Get(logging.CategoryFilter).Warn("hide failed: %v", err)
			return
		}
		if err := el.SetAttribute(markerAttr, rule); err != nil {
			logging.Get(logging.CategoryFilter).Warn("marker failed: %v", err)
		}
		stats.Hidden++
		stats.Newly++
		e.record(ctx, author, rule, text, pageURL)
	case hide && was:
		stats.Hidden++
	case !hide && was:
		if err := el.SetAttribute("style", ""); err != nil {
			logging.Get(logging.CategoryFilter).Warn("restore failed: %v", err)
			return
		}
		if err := el.SetAttribute(markerAttr, ""); err != nil {
			logging.Get(logging.CategoryFilter).Warn("unmark failed: %v", err)
		}
		stats.Restored++
	}
}

// record writes the audit row. Auditing must never break filtering, so
// failures only warn.
func (e *Engine) record(ctx context.Context, author, rule, text, pageURL string) {
	e.mu.RLock()
	rec := e.rec
	session := e.session
	e.mu.RUnlock()
	if rec == nil {
		return
	}
	err := rec.RecordHide(ctx, HideRecord{
		SessionID: session,
		PageURL:   pageURL,
		Author:    author,
		Rule:      rule,
		Excerpt:   excerpt(text),
	})
	if err != nil {
		logging.Get(logging.CategoryFilter).Warn("audit record failed: %v", err)
	}
}

func isHidden(el dom.Element) bool {
	v, err := el.Attribute(markerAttr)
	return err == nil && v != nil && *v != ""
}

// readComment extracts an element's author and comment text.
//
// Known limitation, kept on purpose: on a thread root whose content
// node encloses the reply subtree, the extracted text includes nested
// reply text, so a word rule can hide a whole thread because of one of
// its replies. Narrowing the extraction would silently change which
// threads disappear, so it stays as it is.
func readComment(el dom.Element, sel config.SelectorConfig) (author, text string, err error) {
	authorEl, err := dom.Find(el, sel.CommentAuthor)
	if err != nil {
		return "", "", err
	}
	if authorEl != nil {
		raw, err := authorEl.Text()
		if err != nil {
			return "", "", err
		}
		author = strings.TrimSpace(raw)
	}

	content, err := dom.Find(el, sel.CommentText)
	if err != nil {
		return "", "", err
	}
	if content != nil {
		raw, err := content.Text()
		if err != nil {
			return "", "", err
		}
		text = raw
	} else {
		// No content node: fall back to the element's whole text,
		// reply subtree and all.
		raw, err := el.Text()
		if err != nil {
			return "", "", err
		}
		text = raw
	}
	return author, text, nil
}
