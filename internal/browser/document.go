package browser

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"tubesieve/internal/dom"
	"tubesieve/internal/logging"
)

// PageDocument adapts a live rod page to dom.Document. Lookups and
// mutations go straight to the page over DevTools; overlay events flow
// back through an in-page queue drained by the event pump (pump.go).
type PageDocument struct {
	page     *rod.Page
	throttle time.Duration

	mu       sync.RWMutex
	bindings map[string]dom.Handler
	pumping  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

var (
	_ dom.Document = (*PageDocument)(nil)
	_ dom.Element  = (*pageElement)(nil)
)

func newPageDocument(page *rod.Page, throttle time.Duration) *PageDocument {
	return &PageDocument{
		page:     page,
		throttle: throttle,
		bindings: make(map[string]dom.Handler),
	}
}

// QuerySelector returns the first match or nil. Has does not wait for
// the element to appear; polling is the discovery layer's job.
func (d *PageDocument) QuerySelector(selector string) (dom.Element, error) {
	has, el, err := d.page.Has(selector)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	if !has {
		return nil, nil
	}
	return &pageElement{doc: d, el: el}, nil
}

// QuerySelectorAll returns every match in document order.
func (d *PageDocument) QuerySelectorAll(selector string) ([]dom.Element, error) {
	els, err := d.page.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("query all %q: %w", selector, err)
	}
	out := make([]dom.Element, 0, len(els))
	for _, el := range els {
		out = append(out, &pageElement{doc: d, el: el})
	}
	return out, nil
}

// ElementByID returns the element carrying id, or nil. Going through
// getElementById sidesteps selector quoting for ids with odd characters.
func (d *PageDocument) ElementByID(id string) (dom.Element, error) {
	res, err := d.page.Evaluate(&rod.EvalOptions{
		JS:     `(id) => document.getElementById(id)`,
		JSArgs: []interface{}{id},
	})
	if err != nil {
		return nil, fmt.Errorf("element by id %q: %w", id, err)
	}
	if res == nil || res.Subtype == proto.RuntimeRemoteObjectSubtypeNull {
		return nil, nil
	}
	el, err := d.page.ElementFromObject(res)
	if err != nil {
		return nil, fmt.Errorf("element by id %q: %w", id, err)
	}
	return &pageElement{doc: d, el: el}, nil
}

// CreateElement builds a detached element on the page. The node lives
// in the page's JS heap until appended somewhere.
func (d *PageDocument) CreateElement(tag string) (dom.Element, error) {
	res, err := d.page.Evaluate(&rod.EvalOptions{
		JS:     `(tag) => document.createElement(tag)`,
		JSArgs: []interface{}{tag},
	})
	if err != nil {
		return nil, fmt.Errorf("create element <%s>: %w", tag, err)
	}
	el, err := d.page.ElementFromObject(res)
	if err != nil {
		return nil, fmt.Errorf("wrap created element: %w", err)
	}
	return &pageElement{doc: d, el: el}, nil
}

// Bind registers fn under name for the event pump to dispatch to.
func (d *PageDocument) Bind(name string, fn dom.Handler) error {
	if name == "" {
		return fmt.Errorf("bind: empty binding name")
	}
	d.mu.Lock()
	d.bindings[name] = fn
	d.mu.Unlock()
	logging.EventsDebug("bound handler %s", name)
	return nil
}

// pageElement wraps one rod element handle.
type pageElement struct {
	doc *PageDocument
	el  *rod.Element
}

func (e *pageElement) QuerySelector(selector string) (dom.Element, error) {
	has, el, err := e.el.Has(selector)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	if !has {
		return nil, nil
	}
	return &pageElement{doc: e.doc, el: el}, nil
}

func (e *pageElement) QuerySelectorAll(selector string) ([]dom.Element, error) {
	els, err := e.el.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("query all %q: %w", selector, err)
	}
	out := make([]dom.Element, 0, len(els))
	for _, el := range els {
		out = append(out, &pageElement{doc: e.doc, el: el})
	}
	return out, nil
}

func (e *pageElement) Tag() string {
	res, err := e.el.Eval(`() => this.tagName.toLowerCase()`)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

func (e *pageElement) Text() (string, error) {
	return e.el.Text()
}

// Attribute returns nil when the attribute is absent, matching the rod
// contract the facade inherits.
func (e *pageElement) Attribute(name string) (*string, error) {
	return e.el.Attribute(name)
}

func (e *pageElement) SetAttribute(name, value string) error {
	_, err := e.el.Eval(`(n, v) => { this.setAttribute(n, v); }`, name, value)
	return err
}

func (e *pageElement) AppendChild(child dom.Element) error {
	other, ok := child.(*pageElement)
	if !ok {
		return fmt.Errorf("append: child is not a live page element")
	}
	if other.doc != e.doc {
		return fmt.Errorf("append: child belongs to a different page")
	}
	_, err := e.el.Eval(`(child) => { this.appendChild(child); }`, other.el.Object)
	return err
}

func (e *pageElement) SetInnerHTML(markup string) error {
	_, err := e.el.Eval(`(markup) => { this.innerHTML = markup; }`, markup)
	return err
}

func (e *pageElement) ChildNodeCount() (int, error) {
	res, err := e.el.Eval(`() => this.childNodes.length`)
	if err != nil {
		return 0, err
	}
	return res.Value.Int(), nil
}

func (e *pageElement) AppendTextNode(text string) error {
	_, err := e.el.Eval(`(text) => { this.appendChild(document.createTextNode(text)); }`, text)
	return err
}

// SetFirstNodeValue writes the first child node's nodeValue. When that
// child is an element node the browser ignores the write, which is the
// behavior ReplaceText relies on.
func (e *pageElement) SetFirstNodeValue(text string) error {
	_, err := e.el.Eval(`(text) => {
		const n = this.childNodes[0];
		if (n) {
			n.nodeValue = text;
		}
	}`, text)
	return err
}

func (e *pageElement) RemoveLastChild() error {
	_, err := e.el.Eval(`() => {
		const n = this.lastChild;
		if (n) {
			this.removeChild(n);
		}
	}`)
	return err
}

// installListenerJS wires a native listener that records events into
// the in-page queue the pump drains. For change events the value is the
// target's checked state; otherwise, when detail names an element, the
// value is read from that element at event time. Submit events are
// prevented so the page never navigates away under us.
const installListenerJS = `(event, binding, detail) => {
	const w = window;
	if (!Array.isArray(w.__sieveEvents)) {
		w.__sieveEvents = [];
	}
	this.addEventListener(event, (ev) => {
		try {
			if (event === 'submit') {
				ev.preventDefault();
			}
			let value = '';
			const t = ev.target || {};
			if (event === 'change' && typeof t.checked === 'boolean') {
				value = t.checked ? 'true' : 'false';
			} else if (detail) {
				const src = document.getElementById(detail);
				if (src && typeof src.checked === 'boolean') {
					value = src.checked ? 'true' : 'false';
				} else if (src && 'value' in src) {
					value = src.value || '';
				}
			}
			w.__sieveEvents.push({ binding: binding, detail: detail, value: value, ts: Date.now() });
		} catch (err) {}
	});
}`

func (e *pageElement) On(event, binding, detail string) error {
	if event == "" || binding == "" {
		return fmt.Errorf("on: event and binding are required")
	}
	_, err := e.el.Eval(installListenerJS, event, binding, detail)
	if err != nil {
		return fmt.Errorf("install %s listener: %w", event, err)
	}
	logging.EventsDebug("listener %s -> %s (detail=%q)", event, binding, detail)
	return nil
}
