package htmldom

import (
	"fmt"

	"tubesieve/internal/dom"
	"tubesieve/internal/logging"
)

// Bind registers a Go handler under name. Listeners wired with
// Element.On deliver into these handlers when Fire is called.
func (d *Document) Bind(name string, fn dom.Handler) error {
	if name == "" {
		return fmt.Errorf("bind: empty binding name")
	}
	d.mu.Lock()
	d.bindings[name] = fn
	d.mu.Unlock()
	return nil
}

// On records a listener on the element. Offline there is no event loop;
// Fire plays the browser's part.
func (e *Element) On(event, binding, detail string) error {
	if event == "" || binding == "" {
		return fmt.Errorf("on: event and binding are required")
	}
	e.doc.mu.Lock()
	e.doc.listeners[e.n] = append(e.doc.listeners[e.n], listener{
		event:   event,
		binding: binding,
		detail:  detail,
	})
	e.doc.mu.Unlock()
	return nil
}

// Fire synchronously dispatches an event on el, invoking every matching
// listener's binding with the listener's detail and the given value. It
// returns how many handlers ran. Tests use it to stand in for real user
// input; nothing in the production paths calls it.
func (d *Document) Fire(el dom.Element, event, value string) int {
	e, ok := el.(*Element)
	if !ok || e.doc != d {
		return 0
	}

	type dispatch struct {
		fn     dom.Handler
		detail string
	}
	var pending []dispatch

	d.mu.RLock()
	for _, l := range d.listeners[e.n] {
		if l.event != event {
			continue
		}
		fn, bound := d.bindings[l.binding]
		if !bound {
			logging.EventsDebug("fire %s: binding %s has no handler", event, l.binding)
			continue
		}
		pending = append(pending, dispatch{fn: fn, detail: l.detail})
	}
	d.mu.RUnlock()

	for _, p := range pending {
		p.fn(p.detail, value)
	}
	return len(pending)
}
