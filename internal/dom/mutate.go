package dom

import "fmt"

// ReplaceText updates el's text without disturbing sibling element
// nodes. An empty element gains a single text node; otherwise the first
// child node's value is overwritten in place, so decorative children
// (icons, badges) keep their positions and the child count stays flat no
// matter how often the text changes.
//
// When the first child happens to be an element node, overwriting its
// node value is a DOM-level no-op. That quirk is inherited deliberately:
// overlay fragments are built text-node-first so the status line always
// lands in the right place.
func ReplaceText(el Element, text string) error {
	n, err := el.ChildNodeCount()
	if err != nil {
		return fmt.Errorf("replace text: %w", err)
	}
	if n == 0 {
		if err := el.AppendTextNode(text); err != nil {
			return fmt.Errorf("replace text: %w", err)
		}
		return nil
	}
	if err := el.SetFirstNodeValue(text); err != nil {
		return fmt.Errorf("replace text: %w", err)
	}
	return nil
}

// ClearChildren detaches el's child nodes, last to first, until none
// remain. An already-empty element is left alone, so the call is
// idempotent.
func ClearChildren(el Element) error {
	for {
		n, err := el.ChildNodeCount()
		if err != nil {
			return fmt.Errorf("clear children: %w", err)
		}
		if n == 0 {
			return nil
		}
		if err := el.RemoveLastChild(); err != nil {
			return fmt.Errorf("clear children: %w", err)
		}
	}
}
