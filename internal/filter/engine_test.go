package filter

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"tubesieve/internal/config"
	"tubesieve/internal/htmldom"
)

// commentsHTML mirrors the shape of a watch-page comment section: three
// top-level threads, the first with one reply.
const commentsHTML = `<!DOCTYPE html>
<html><body>
<ytd-comments id="comments">
  <ytd-comment-thread-renderer id="t1">
    <a id="author-text">@Alice</a>
    <div id="content-text">nice video!</div>
    <ytd-comment-replies-renderer>
      <ytd-comment-renderer id="r1">
        <a id="author-text">@Bob</a>
        <div id="content-text">buy my crypto now</div>
      </ytd-comment-renderer>
    </ytd-comment-replies-renderer>
  </ytd-comment-thread-renderer>
  <ytd-comment-thread-renderer id="t2">
    <a id="author-text">@SpamLord</a>
    <div id="content-text">visit https://spam.example today</div>
  </ytd-comment-thread-renderer>
  <ytd-comment-thread-renderer id="t3">
    <a id="author-text">@Carol</a>
    <div id="content-text">love it</div>
  </ytd-comment-thread-renderer>
</ytd-comments>
</body></html>`

func parseComments(t *testing.T) (*htmldom.Document, config.SelectorConfig) {
	t.Helper()
	doc, err := htmldom.ParseString(commentsHTML)
	require.NoError(t, err)
	return doc, config.DefaultConfig().Selectors
}

func attrValue(t *testing.T, doc *htmldom.Document, id, name string) string {
	t.Helper()
	el, err := doc.ElementByID(id)
	require.NoError(t, err)
	require.NotNil(t, el, "element #%s", id)
	v, err := el.Attribute(name)
	require.NoError(t, err)
	if v == nil {
		return ""
	}
	return *v
}

type captureRecorder struct {
	mu   sync.Mutex
	err  error
	recs []HideRecord
}

func (c *captureRecorder) RecordHide(_ context.Context, rec HideRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.recs = append(c.recs, rec)
	return nil
}

func (c *captureRecorder) records() []HideRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]HideRecord(nil), c.recs...)
}

func TestApplyHidesMatchingThreadsAndReplies(t *testing.T) {
	doc, sel := parseComments(t)
	eng := NewEngine(Rules{Enabled: true, Words: []string{"crypto"}, HideLinks: true, IncludeReplies: true}, nil)

	stats, err := eng.Apply(context.Background(), doc, sel, "https://tube.example/watch?v=1")
	require.NoError(t, err)
	require.Equal(t, ApplyStats{Scanned: 4, Hidden: 2, Newly: 2}, stats)

	require.Equal(t, "", attrValue(t, doc, "t1", "style"))
	require.Equal(t, hiddenStyle, attrValue(t, doc, "r1", "style"))
	require.Equal(t, "word:crypto", attrValue(t, doc, "r1", markerAttr))
	require.Equal(t, hiddenStyle, attrValue(t, doc, "t2", "style"))
	require.Equal(t, "links", attrValue(t, doc, "t2", markerAttr))
	require.Equal(t, "", attrValue(t, doc, "t3", "style"))
}

func TestApplySecondPassIsSteady(t *testing.T) {
	doc, sel := parseComments(t)
	eng := NewEngine(Rules{Enabled: true, Words: []string{"crypto"}, HideLinks: true, IncludeReplies: true}, nil)

	_, err := eng.Apply(context.Background(), doc, sel, "")
	require.NoError(t, err)

	stats, err := eng.Apply(context.Background(), doc, sel, "")
	require.NoError(t, err)
	require.Equal(t, ApplyStats{Scanned: 4, Hidden: 2, Newly: 0, Restored: 0}, stats)
}

func TestApplyRestoresWhenRulesRelax(t *testing.T) {
	doc, sel := parseComments(t)
	eng := NewEngine(Rules{Enabled: true, Words: []string{"crypto"}, HideLinks: true, IncludeReplies: true}, nil)

	_, err := eng.Apply(context.Background(), doc, sel, "")
	require.NoError(t, err)

	eng.SetRules(DefaultRules())
	stats, err := eng.Apply(context.Background(), doc, sel, "")
	require.NoError(t, err)
	require.Equal(t, ApplyStats{Scanned: 4, Hidden: 0, Newly: 0, Restored: 2}, stats)

	require.Equal(t, "", attrValue(t, doc, "t2", "style"))
	require.Equal(t, "", attrValue(t, doc, "t2", markerAttr))
	require.Equal(t, "", attrValue(t, doc, "r1", "style"))
	require.Equal(t, "", attrValue(t, doc, "r1", markerAttr))
}

func TestApplyRecordsNewHides(t *testing.T) {
	doc, sel := parseComments(t)
	rec := &captureRecorder{}
	eng := NewEngine(Rules{Enabled: true, Words: []string{"crypto"}, HideLinks: true, IncludeReplies: true}, rec)
	eng.SetSession("sess-1")

	_, err := eng.Apply(context.Background(), doc, sel, "https://tube.example/watch?v=1")
	require.NoError(t, err)

	recs := rec.records()
	require.Len(t, recs, 2)
	byRule := make(map[string]HideRecord, len(recs))
	for _, r := range recs {
		byRule[r.Rule] = r
		require.Equal(t, "sess-1", r.SessionID)
		require.Equal(t, "https://tube.example/watch?v=1", r.PageURL)
	}
	require.Equal(t, "@Bob", byRule["word:crypto"].Author)
	require.Equal(t, "buy my crypto now", byRule["word:crypto"].Excerpt)
	require.Equal(t, "@SpamLord", byRule["links"].Author)

	// Steady-state passes do not re-record.
	_, err = eng.Apply(context.Background(), doc, sel, "https://tube.example/watch?v=1")
	require.NoError(t, err)
	require.Len(t, rec.records(), 2)
}

func TestApplyToleratesRecorderFailure(t *testing.T) {
	doc, sel := parseComments(t)
	rec := &captureRecorder{err: errors.New("disk full")}
	eng := NewEngine(Rules{Enabled: true, Words: []string{"crypto"}, HideLinks: true, IncludeReplies: true}, rec)

	stats, err := eng.Apply(context.Background(), doc, sel, "")
	require.NoError(t, err)
	require.Equal(t, ApplyStats{Scanned: 4, Hidden: 2, Newly: 2}, stats)
	require.Equal(t, hiddenStyle, attrValue(t, doc, "t2", "style"))
}

func TestApplySkipsRepliesWhenExcluded(t *testing.T) {
	doc, sel := parseComments(t)
	eng := NewEngine(Rules{Enabled: true, Words: []string{"crypto"}, IncludeReplies: false}, nil)

	stats, err := eng.Apply(context.Background(), doc, sel, "")
	require.NoError(t, err)
	require.Equal(t, ApplyStats{Scanned: 3}, stats)
	require.Equal(t, "", attrValue(t, doc, "r1", "style"))
}

func TestHiddenThreadSwallowsItsReplies(t *testing.T) {
	doc, sel := parseComments(t)
	eng := NewEngine(Rules{Enabled: true, Words: []string{"nice"}, IncludeReplies: true}, nil)

	stats, err := eng.Apply(context.Background(), doc, sel, "")
	require.NoError(t, err)
	require.Equal(t, ApplyStats{Scanned: 3, Hidden: 1, Newly: 1}, stats)

	require.Equal(t, "word:nice", attrValue(t, doc, "t1", markerAttr))
	require.Equal(t, "", attrValue(t, doc, "r1", "style"), "replies vanish with the thread, not on their own")
	require.Equal(t, "", attrValue(t, doc, "r1", markerAttr))
}

func TestEvaluateIsReadOnly(t *testing.T) {
	doc, sel := parseComments(t)
	eng := NewEngine(Rules{Enabled: true, Words: []string{"crypto"}, IncludeReplies: true}, nil)

	verdicts, err := eng.Evaluate(context.Background(), doc, sel)
	require.NoError(t, err)
	require.Len(t, verdicts, 4)

	var hidden []Verdict
	for _, v := range verdicts {
		if v.Hidden {
			hidden = append(hidden, v)
		}
	}
	require.Len(t, hidden, 1)
	require.Equal(t, "@Bob", hidden[0].Author)
	require.True(t, hidden[0].Reply)
	require.Equal(t, "word:crypto", hidden[0].Rule)

	// Dry runs leave the document untouched.
	require.Equal(t, "", attrValue(t, doc, "r1", "style"))
	require.Equal(t, "", attrValue(t, doc, "t2", "style"))
}

// fallbackHTML has one thread with no markup at all and one whose only
// content node belongs to a reply.
const fallbackHTML = `<!DOCTYPE html><html><body>
<ytd-comment-thread-renderer id="w1">visit www.spam.example friends</ytd-comment-thread-renderer>
<ytd-comment-thread-renderer id="w2">
  <ytd-comment-replies-renderer>
    <ytd-comment-renderer>
      <div id="content-text">buy my crypto now</div>
    </ytd-comment-renderer>
  </ytd-comment-replies-renderer>
</ytd-comment-thread-renderer>
</body></html>`

// Thread roots without a content node of their own fall back to their
// whole text, so reply text can hide the entire thread.
func TestThreadTextFallsBackToSubtree(t *testing.T) {
	doc, err := htmldom.ParseString(fallbackHTML)
	require.NoError(t, err)
	sel := config.DefaultConfig().Selectors

	eng := NewEngine(Rules{Enabled: true, Words: []string{"crypto"}, HideLinks: true, IncludeReplies: true}, nil)
	stats, err := eng.Apply(context.Background(), doc, sel, "")
	require.NoError(t, err)
	require.Equal(t, ApplyStats{Scanned: 2, Hidden: 2, Newly: 2}, stats)

	require.Equal(t, "links", attrValue(t, doc, "w1", markerAttr))
	require.Equal(t, "word:crypto", attrValue(t, doc, "w2", markerAttr))
}

func TestApplyBadThreadSelectorErrors(t *testing.T) {
	doc, sel := parseComments(t)
	sel.CommentThread = "p:hover"
	eng := NewEngine(DefaultRules(), nil)

	_, err := eng.Apply(context.Background(), doc, sel, "")
	require.Error(t, err)
}

func TestAddWordDeduplicates(t *testing.T) {
	eng := NewEngine(DefaultRules(), nil)
	require.True(t, eng.AddWord("Crypto"))
	require.False(t, eng.AddWord("crypto"))
	require.False(t, eng.AddWord("   "))
	require.Equal(t, []string{"Crypto"}, eng.Rules().Words)
}

func TestToggleFlips(t *testing.T) {
	eng := NewEngine(DefaultRules(), nil)
	require.False(t, eng.Toggle())
	require.True(t, eng.Toggle())
}

func TestRulesReturnsACopy(t *testing.T) {
	eng := NewEngine(Rules{Enabled: true, Words: []string{"one"}}, nil)
	got := eng.Rules()
	got.Words[0] = "mutated"
	require.Equal(t, []string{"one"}, eng.Rules().Words)
}
