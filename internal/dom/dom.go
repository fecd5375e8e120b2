// Package dom is the single facade for DOM access on a watch page.
// It defines backend-neutral element handles, the lookup taxonomy
// (nullable Find* vs fail-fast Get*), bounded-retry element discovery,
// and the child-node mutation helpers the overlay depends on.
//
// Two backends implement these interfaces: internal/browser drives a
// live page over the DevTools protocol, internal/htmldom operates on
// parsed HTML trees for offline checks and tests. Facade semantics are
// identical on both; only failure modes differ (a live page can go
// away, a parsed tree cannot).
//
// Selector strings, element ids, and icon markup are configuration, not
// code. Nothing in this package hard-codes a selector.
package dom

// Scope is anything that can be queried with a CSS selector: the whole
// document, or a single element when a lookup should be confined to an
// ancestor's subtree.
type Scope interface {
	// QuerySelector returns the first match or nil when there is none.
	// A nil element with a nil error is the normal "not here" answer;
	// errors are reserved for backend failures.
	QuerySelector(selector string) (Element, error)

	// QuerySelectorAll returns every match in document order. No match
	// is an empty slice, not an error.
	QuerySelectorAll(selector string) ([]Element, error)
}

// Element is a borrowed handle to a single node. The facade never takes
// ownership: it does not detach, retain, or release nodes it was handed,
// and mutation helpers touch only the children of the element they are
// given.
type Element interface {
	Scope

	// Tag returns the lower-case tag name.
	Tag() string

	// Text returns the element's visible text, descendants included.
	Text() (string, error)

	// Attribute returns the attribute value, or nil when the attribute
	// is absent.
	Attribute(name string) (*string, error)

	SetAttribute(name, value string) error

	// AppendChild attaches child as the last child. The child must come
	// from the same backend.
	AppendChild(child Element) error

	// SetInnerHTML replaces the element's subtree with parsed markup.
	// Used for inline SVG icons; not a general-purpose templating hook.
	SetInnerHTML(markup string) error

	// ChildNodeCount counts all child nodes, text nodes included.
	ChildNodeCount() (int, error)

	// AppendTextNode appends one new text node holding text.
	AppendTextNode(text string) error

	// SetFirstNodeValue overwrites the node value of the first child
	// node in place. On an element-node first child this is a DOM-level
	// no-op, which ReplaceText inherits knowingly.
	SetFirstNodeValue(text string) error

	// RemoveLastChild detaches the last child node, whatever its kind.
	RemoveLastChild() error

	// On wires an event listener that fires the named binding with a
	// static detail string plus an event-time value (checkbox state,
	// input contents). The binding must have been registered on the
	// owning Document before the event can be delivered.
	On(event, binding, detail string) error
}

// Document is the page-level root: whole-document queries, id lookup,
// element creation for the overlay builders, and the Go side of event
// bindings.
type Document interface {
	Scope

	// ElementByID returns the element carrying the id, or nil.
	ElementByID(id string) (Element, error)

	// CreateElement builds a detached element. It belongs to this
	// document's backend but is not part of the tree until appended.
	CreateElement(tag string) (Element, error)

	// Bind registers fn under name so listeners wired with Element.On
	// can reach Go. Binding names are expected to be unique per
	// document; rebinding an existing name replaces the handler.
	Bind(name string, fn Handler) error
}

// Handler receives overlay events. detail is the static string given to
// On at wiring time; value carries event-time state and may be empty.
type Handler func(detail, value string)
