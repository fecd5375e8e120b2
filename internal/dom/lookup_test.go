package dom_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tubesieve/internal/dom"
	"tubesieve/internal/htmldom"
)

const commentsPage = `<!DOCTYPE html>
<html><body>
  <div id="page">
    <section id="comments" class="comments">
      <div class="comment-thread" data-author="ada">
        <span class="author">ada</span>
        <p class="content">first comment</p>
      </div>
      <div class="comment-thread" data-author="brin">
        <span class="author">brin</span>
        <p class="content">second comment</p>
      </div>
    </section>
    <aside id="sidebar"></aside>
  </div>
</body></html>`

func parsePage(t *testing.T) *htmldom.Document {
	t.Helper()
	doc, err := htmldom.ParseString(commentsPage)
	require.NoError(t, err)
	return doc
}

func TestFindReturnsNilOnAbsence(t *testing.T) {
	doc := parsePage(t)

	el, err := dom.Find(doc, ".does-not-exist")
	require.NoError(t, err, "absence must not be an error")
	require.Nil(t, el)
}

func TestFindAndGetAgreeOnPresence(t *testing.T) {
	doc := parsePage(t)

	found, err := dom.Find(doc, "section#comments")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, "section", found.Tag())

	got, err := dom.Get(doc, "section#comments")
	require.NoError(t, err)
	require.Equal(t, found.Tag(), got.Tag())
}

func TestFindAllReturnsDocumentOrder(t *testing.T) {
	doc := parsePage(t)

	threads, err := dom.FindAll(doc, ".comment-thread")
	require.NoError(t, err)
	require.Len(t, threads, 2)

	first, err := threads[0].QuerySelector(".content")
	require.NoError(t, err)
	text, err := first.Text()
	require.NoError(t, err)
	require.Equal(t, "first comment", text)
}

func TestFindAllEmptyOnNoMatch(t *testing.T) {
	doc := parsePage(t)

	none, err := dom.FindAll(doc, "video.missing")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestGetCarriesQueryInNotFoundError(t *testing.T) {
	doc := parsePage(t)

	_, err := dom.Get(doc, "div.absent[data-x=1]")
	require.Error(t, err)
	require.True(t, dom.IsNotFound(err))

	var nf *dom.NotFoundError
	require.ErrorAs(t, err, &nf)
	require.Equal(t, "div.absent[data-x=1]", nf.Query)
	require.Contains(t, err.Error(), "div.absent[data-x=1]")
}

func TestFindByIDAndGetByID(t *testing.T) {
	doc := parsePage(t)

	el, err := dom.FindByID(doc, "sidebar")
	require.NoError(t, err)
	require.NotNil(t, el)
	require.Equal(t, "aside", el.Tag())

	missing, err := dom.FindByID(doc, "ghost")
	require.NoError(t, err)
	require.Nil(t, missing)

	_, err = dom.GetByID(doc, "ghost")
	var nf *dom.NotFoundError
	require.ErrorAs(t, err, &nf)
	require.Equal(t, "#ghost", nf.Query)
}

func TestScopedLookupStaysInsideAncestor(t *testing.T) {
	doc := parsePage(t)

	threads, err := dom.FindAll(doc, ".comment-thread")
	require.NoError(t, err)
	require.Len(t, threads, 2)

	// A scoped lookup must only see the ancestor's subtree even though
	// the selector matches in both threads.
	author, err := dom.Get(threads[1], ".author")
	require.NoError(t, err)
	text, err := author.Text()
	require.NoError(t, err)
	require.Equal(t, "brin", text)

	// Scope without the target finds nothing, document-wide lookup does.
	sidebar, err := dom.Get(doc, "#sidebar")
	require.NoError(t, err)
	inSidebar, err := dom.Find(sidebar, ".author")
	require.NoError(t, err)
	require.Nil(t, inSidebar)

	anywhere, err := dom.Find(doc, ".author")
	require.NoError(t, err)
	require.NotNil(t, anywhere)
}
