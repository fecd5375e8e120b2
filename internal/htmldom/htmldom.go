// Package htmldom implements the dom interfaces over parsed HTML trees
// from golang.org/x/net/html. It backs the offline page check and the
// facade's unit tests; nothing here talks to a browser.
//
// Selector support is the subset the shipped configs use (see
// compileSelector). Trees are not safe for concurrent mutation; the
// offline paths that use this package are single-threaded.
package htmldom

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"tubesieve/internal/dom"
)

// Document is an offline dom.Document over a parsed tree.
type Document struct {
	root *html.Node

	mu        sync.RWMutex
	bindings  map[string]dom.Handler
	listeners map[*html.Node][]listener
}

type listener struct {
	event   string
	binding string
	detail  string
}

// Element is an offline dom.Element. It stays valid for the lifetime of
// its Document; there is no remote handle to go stale.
type Element struct {
	doc *Document
	n   *html.Node
}

// Parse reads a full HTML document. Fragments are tolerated; the parser
// wraps them in html/head/body the way a browser would.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{
		root:      root,
		bindings:  make(map[string]dom.Handler),
		listeners: make(map[*html.Node][]listener),
	}, nil
}

// ParseFile reads an HTML document from disk, typically a saved watch
// page.
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// ParseString is a convenience for tests.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

func (d *Document) wrap(n *html.Node) *Element {
	if n == nil {
		return nil
	}
	return &Element{doc: d, n: n}
}

// QuerySelector returns the first match in document order, or nil.
func (d *Document) QuerySelector(selector string) (dom.Element, error) {
	expr, err := compileSelector(selector, false)
	if err != nil {
		return nil, err
	}
	n, err := htmlquery.Query(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	if n == nil {
		return nil, nil
	}
	return d.wrap(n), nil
}

// QuerySelectorAll returns every match in document order.
func (d *Document) QuerySelectorAll(selector string) ([]dom.Element, error) {
	expr, err := compileSelector(selector, false)
	if err != nil {
		return nil, err
	}
	nodes, err := htmlquery.QueryAll(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	els := make([]dom.Element, 0, len(nodes))
	for _, n := range nodes {
		els = append(els, d.wrap(n))
	}
	return els, nil
}

// ElementByID returns the element carrying id, or nil.
func (d *Document) ElementByID(id string) (dom.Element, error) {
	v, err := xpathString(id)
	if err != nil {
		return nil, fmt.Errorf("element by id: %w", err)
	}
	n, err := htmlquery.Query(d.root, "//*[@id="+v+"]")
	if err != nil {
		return nil, fmt.Errorf("element by id %q: %w", id, err)
	}
	if n == nil {
		return nil, nil
	}
	return d.wrap(n), nil
}

// CreateElement builds a detached element owned by this document.
func (d *Document) CreateElement(tag string) (dom.Element, error) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return nil, fmt.Errorf("create element: empty tag")
	}
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	return d.wrap(n), nil
}

// Render serializes the whole document.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

func (e *Element) Tag() string {
	return e.n.Data
}

// Text returns the concatenated descendant text, the same answer a live
// page gives for textContent. On a thread root that includes its reply
// subtree this picks up reply text too; internal/filter documents that
// limitation where it bites.
func (e *Element) Text() (string, error) {
	return htmlquery.InnerText(e.n), nil
}

func (e *Element) Attribute(name string) (*string, error) {
	for _, a := range e.n.Attr {
		if a.Key == name {
			v := a.Val
			return &v, nil
		}
	}
	return nil, nil
}

func (e *Element) SetAttribute(name, value string) error {
	for i, a := range e.n.Attr {
		if a.Key == name {
			e.n.Attr[i].Val = value
			return nil
		}
	}
	e.n.Attr = append(e.n.Attr, html.Attribute{Key: name, Val: value})
	return nil
}

// AppendChild attaches child as the last child, detaching it from any
// previous parent first, the way appendChild moves nodes in a browser.
func (e *Element) AppendChild(child dom.Element) error {
	ce, ok := child.(*Element)
	if !ok {
		return fmt.Errorf("append child: foreign element %T", child)
	}
	if ce.doc != e.doc {
		return fmt.Errorf("append child: element belongs to another document")
	}
	if ce.n.Parent != nil {
		ce.n.Parent.RemoveChild(ce.n)
	}
	e.n.AppendChild(ce.n)
	return nil
}

// SetInnerHTML replaces the subtree with parsed markup.
func (e *Element) SetInnerHTML(markup string) error {
	nodes, err := html.ParseFragment(strings.NewReader(markup), e.n)
	if err != nil {
		return fmt.Errorf("set inner html: %w", err)
	}
	for e.n.FirstChild != nil {
		e.n.RemoveChild(e.n.FirstChild)
	}
	for _, n := range nodes {
		e.n.AppendChild(n)
	}
	return nil
}

// ChildNodeCount counts all child nodes: elements, text, and comments.
func (e *Element) ChildNodeCount() (int, error) {
	count := 0
	for c := e.n.FirstChild; c != nil; c = c.NextSibling {
		count++
	}
	return count, nil
}

func (e *Element) AppendTextNode(text string) error {
	e.n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return nil
}

// SetFirstNodeValue overwrites the first child node's value. An
// element-node first child keeps its subtree untouched, matching the
// nodeValue no-op a browser performs.
func (e *Element) SetFirstNodeValue(text string) error {
	first := e.n.FirstChild
	if first == nil {
		return fmt.Errorf("set first node value: element has no child nodes")
	}
	switch first.Type {
	case html.TextNode, html.CommentNode:
		first.Data = text
	}
	return nil
}

func (e *Element) RemoveLastChild() error {
	if e.n.LastChild == nil {
		return nil
	}
	e.n.RemoveChild(e.n.LastChild)
	return nil
}

// QuerySelector confines the search to e's subtree.
func (e *Element) QuerySelector(selector string) (dom.Element, error) {
	expr, err := compileSelector(selector, true)
	if err != nil {
		return nil, err
	}
	n, err := htmlquery.Query(e.n, expr)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	if n == nil {
		return nil, nil
	}
	return e.doc.wrap(n), nil
}

func (e *Element) QuerySelectorAll(selector string) ([]dom.Element, error) {
	expr, err := compileSelector(selector, true)
	if err != nil {
		return nil, err
	}
	nodes, err := htmlquery.QueryAll(e.n, expr)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	els := make([]dom.Element, 0, len(nodes))
	for _, n := range nodes {
		els = append(els, e.doc.wrap(n))
	}
	return els, nil
}

// OuterHTML serializes the element and its subtree, mostly for test
// assertions and check-mode reporting.
func (e *Element) OuterHTML() (string, error) {
	var b strings.Builder
	if err := html.Render(&b, e.n); err != nil {
		return "", fmt.Errorf("render element: %w", err)
	}
	return b.String(), nil
}
