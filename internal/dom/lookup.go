package dom

import (
	"fmt"
	"strings"

	"tubesieve/internal/logging"
)

// Find returns the first element under s matching selector, or nil when
// nothing matches. Absence is the normal answer for optional page
// furniture and is never an error.
func Find(s Scope, selector string) (Element, error) {
	el, err := s.QuerySelector(selector)
	if err != nil {
		return nil, fmt.Errorf("find %q: %w", selector, err)
	}
	return el, nil
}

// FindAll returns every element under s matching selector, possibly an
// empty slice.
func FindAll(s Scope, selector string) ([]Element, error) {
	els, err := s.QuerySelectorAll(selector)
	if err != nil {
		return nil, fmt.Errorf("find all %q: %w", selector, err)
	}
	return els, nil
}

// FindByID returns the element carrying id, or nil. Ids are document
// scoped, so there is no ancestor-scoped variant.
func FindByID(d Document, id string) (Element, error) {
	el, err := d.ElementByID(id)
	if err != nil {
		return nil, fmt.Errorf("find by id %q: %w", id, err)
	}
	return el, nil
}

// Get returns the element matching selector, or a *NotFoundError naming
// the query. Use it for elements the page is structurally expected to
// have, so a miss surfaces immediately instead of as a nil dereference
// three calls later.
func Get(s Scope, selector string) (Element, error) {
	el, err := Find(s, selector)
	if err != nil {
		return nil, err
	}
	if el == nil {
		logging.DomDebug("get miss: %s", selector)
		return nil, &NotFoundError{Query: selector}
	}
	return el, nil
}

// GetByID is the fail-fast twin of FindByID. The returned NotFoundError
// carries the id in selector form ("#id") for pasteability.
func GetByID(d Document, id string) (Element, error) {
	el, err := FindByID(d, id)
	if err != nil {
		return nil, err
	}
	if el == nil {
		query := "#" + strings.TrimPrefix(id, "#")
		logging.DomDebug("get miss: %s", query)
		return nil, &NotFoundError{Query: query}
	}
	return el, nil
}
