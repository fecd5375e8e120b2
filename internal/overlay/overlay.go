// Package overlay builds the control fragments injected into the watch
// page: the filter toggle, the rule checkboxes, the word form, and the
// panel that groups them. Builders are pure constructors over the dom
// facade: they return unattached elements with listeners already wired,
// and the caller decides where to append them.
//
// Event plumbing follows one contract: each listener fires a generated
// binding ("sieve-" prefix, uuid suffix) that is registered on the
// document before On is wired, so no event can outrun its handler. The
// static detail string names the element the event concerns; the
// event-time value carries state ("true"/"false" for checkboxes, the
// input text for submits, empty for plain clicks).
package overlay

import (
	"fmt"

	"github.com/google/uuid"

	"tubesieve/internal/config"
	"tubesieve/internal/dom"
	"tubesieve/internal/filter"
	"tubesieve/internal/i18n"
	"tubesieve/internal/logging"
)

func bindingName(kind string) string {
	return "sieve-" + kind + "-" + uuid.NewString()
}

// Toggle builds the filter on/off button: funnel icon plus a status
// span that the run loop rewrites with hide counts. The status span
// carries cfg.IDs.FilterStatus so it can be found again later.
func Toggle(doc dom.Document, cfg *config.Config, msgs *i18n.Bundle, onToggle func()) (dom.Element, error) {
	btn, err := doc.CreateElement("button")
	if err != nil {
		return nil, fmt.Errorf("toggle: %w", err)
	}
	if err := btn.SetAttribute("id", cfg.IDs.Toggle); err != nil {
		return nil, fmt.Errorf("toggle: %w", err)
	}
	if err := btn.SetAttribute("type", "button"); err != nil {
		return nil, fmt.Errorf("toggle: %w", err)
	}
	if err := btn.SetAttribute("title", msgs.Get("panel_title")); err != nil {
		return nil, fmt.Errorf("toggle: %w", err)
	}

	icon, err := doc.CreateElement("span")
	if err != nil {
		return nil, fmt.Errorf("toggle icon: %w", err)
	}
	if err := icon.SetInnerHTML(cfg.Icons.FunnelSVG); err != nil {
		return nil, fmt.Errorf("toggle icon: %w", err)
	}
	if err := btn.AppendChild(icon); err != nil {
		return nil, fmt.Errorf("toggle icon: %w", err)
	}

	status, err := doc.CreateElement("span")
	if err != nil {
		return nil, fmt.Errorf("toggle status: %w", err)
	}
	if err := status.SetAttribute("id", cfg.IDs.FilterStatus); err != nil {
		return nil, fmt.Errorf("toggle status: %w", err)
	}
	if err := status.AppendTextNode(msgs.Get("status_idle")); err != nil {
		return nil, fmt.Errorf("toggle status: %w", err)
	}
	if err := btn.AppendChild(status); err != nil {
		return nil, fmt.Errorf("toggle status: %w", err)
	}

	name := bindingName("toggle")
	if err := doc.Bind(name, func(detail, value string) {
		if onToggle != nil {
			onToggle()
		}
	}); err != nil {
		return nil, fmt.Errorf("toggle binding: %w", err)
	}
	if err := btn.On("click", name, cfg.IDs.Toggle); err != nil {
		return nil, fmt.Errorf("toggle listener: %w", err)
	}

	return btn, nil
}

// Checkbox builds a labeled checkbox. The change listener reports the
// new checked state.
func Checkbox(doc dom.Document, id, label string, checked bool, onChange func(checked bool)) (dom.Element, error) {
	wrapper, err := doc.CreateElement("label")
	if err != nil {
		return nil, fmt.Errorf("checkbox: %w", err)
	}

	box, err := doc.CreateElement("input")
	if err != nil {
		return nil, fmt.Errorf("checkbox: %w", err)
	}
	if err := box.SetAttribute("type", "checkbox"); err != nil {
		return nil, fmt.Errorf("checkbox: %w", err)
	}
	if err := box.SetAttribute("id", id); err != nil {
		return nil, fmt.Errorf("checkbox: %w", err)
	}
	if checked {
		if err := box.SetAttribute("checked", ""); err != nil {
			return nil, fmt.Errorf("checkbox: %w", err)
		}
	}

	name := bindingName("checkbox")
	if err := doc.Bind(name, func(detail, value string) {
		if onChange != nil {
			onChange(value == "true")
		}
	}); err != nil {
		return nil, fmt.Errorf("checkbox binding: %w", err)
	}
	if err := box.On("change", name, id); err != nil {
		return nil, fmt.Errorf("checkbox listener: %w", err)
	}

	if err := wrapper.AppendChild(box); err != nil {
		return nil, fmt.Errorf("checkbox: %w", err)
	}
	if err := wrapper.AppendTextNode(label); err != nil {
		return nil, fmt.Errorf("checkbox: %w", err)
	}

	return wrapper, nil
}

// Button builds a plain click button.
func Button(doc dom.Document, id, label string, onClick func()) (dom.Element, error) {
	btn, err := doc.CreateElement("button")
	if err != nil {
		return nil, fmt.Errorf("button: %w", err)
	}
	if err := btn.SetAttribute("id", id); err != nil {
		return nil, fmt.Errorf("button: %w", err)
	}
	if err := btn.SetAttribute("type", "button"); err != nil {
		return nil, fmt.Errorf("button: %w", err)
	}
	if err := btn.AppendTextNode(label); err != nil {
		return nil, fmt.Errorf("button: %w", err)
	}

	name := bindingName("button")
	if err := doc.Bind(name, func(detail, value string) {
		if onClick != nil {
			onClick()
		}
	}); err != nil {
		return nil, fmt.Errorf("button binding: %w", err)
	}
	if err := btn.On("click", name, id); err != nil {
		return nil, fmt.Errorf("button listener: %w", err)
	}

	return btn, nil
}

// WordForm builds the add-a-word form: text input plus submit. The
// submit listener delivers the input's text as the event value; the
// live backend also suppresses the browser's default form submission.
func WordForm(doc dom.Document, cfg *config.Config, msgs *i18n.Bundle, onSubmit func(word string)) (dom.Element, error) {
	form, err := doc.CreateElement("form")
	if err != nil {
		return nil, fmt.Errorf("word form: %w", err)
	}
	if err := form.SetAttribute("id", cfg.IDs.WordForm); err != nil {
		return nil, fmt.Errorf("word form: %w", err)
	}

	input, err := doc.CreateElement("input")
	if err != nil {
		return nil, fmt.Errorf("word input: %w", err)
	}
	if err := input.SetAttribute("type", "text"); err != nil {
		return nil, fmt.Errorf("word input: %w", err)
	}
	if err := input.SetAttribute("id", cfg.IDs.WordInput); err != nil {
		return nil, fmt.Errorf("word input: %w", err)
	}
	if err := input.SetAttribute("placeholder", msgs.Get("word_placeholder")); err != nil {
		return nil, fmt.Errorf("word input: %w", err)
	}

	submit, err := doc.CreateElement("button")
	if err != nil {
		return nil, fmt.Errorf("word submit: %w", err)
	}
	if err := submit.SetAttribute("type", "submit"); err != nil {
		return nil, fmt.Errorf("word submit: %w", err)
	}
	if err := submit.AppendTextNode(msgs.Get("word_submit")); err != nil {
		return nil, fmt.Errorf("word submit: %w", err)
	}

	name := bindingName("wordform")
	if err := doc.Bind(name, func(detail, value string) {
		if onSubmit != nil {
			onSubmit(value)
		}
	}); err != nil {
		return nil, fmt.Errorf("word form binding: %w", err)
	}
	// detail names the input whose value the live backend reads out.
	if err := form.On("submit", name, cfg.IDs.WordInput); err != nil {
		return nil, fmt.Errorf("word form listener: %w", err)
	}

	if err := form.AppendChild(input); err != nil {
		return nil, fmt.Errorf("word form: %w", err)
	}
	if err := form.AppendChild(submit); err != nil {
		return nil, fmt.Errorf("word form: %w", err)
	}

	return form, nil
}

// AuthorAnchor builds a channel link that opens in a new tab. No
// listener; it is plain navigation.
func AuthorAnchor(doc dom.Document, name, href string) (dom.Element, error) {
	a, err := doc.CreateElement("a")
	if err != nil {
		return nil, fmt.Errorf("author anchor: %w", err)
	}
	if err := a.SetAttribute("href", href); err != nil {
		return nil, fmt.Errorf("author anchor: %w", err)
	}
	if err := a.SetAttribute("target", "_blank"); err != nil {
		return nil, fmt.Errorf("author anchor: %w", err)
	}
	if err := a.SetAttribute("rel", "noopener"); err != nil {
		return nil, fmt.Errorf("author anchor: %w", err)
	}
	if err := a.AppendTextNode(name); err != nil {
		return nil, fmt.Errorf("author anchor: %w", err)
	}
	return a, nil
}

// PanelCallbacks routes panel events back to the caller. Nil fields
// are ignored.
type PanelCallbacks struct {
	OnToggle         func()
	OnHideLinks      func(bool)
	OnMatchCase      func(bool)
	OnIncludeReplies func(bool)
	OnAddWord        func(string)
	OnApply          func()
	OnClear          func()
}

// Panel assembles the full control panel: title, toggle, the three
// rule checkboxes seeded from rules, the word form, and apply/clear
// buttons. The returned container is unattached; the run loop appends
// it to the configured mount point.
func Panel(doc dom.Document, cfg *config.Config, msgs *i18n.Bundle, rules filter.Rules, cb PanelCallbacks) (dom.Element, error) {
	panel, err := doc.CreateElement("div")
	if err != nil {
		return nil, fmt.Errorf("panel: %w", err)
	}
	if err := panel.SetAttribute("id", cfg.IDs.Panel); err != nil {
		return nil, fmt.Errorf("panel: %w", err)
	}

	title, err := doc.CreateElement("div")
	if err != nil {
		return nil, fmt.Errorf("panel title: %w", err)
	}
	if err := title.SetAttribute("class", "tubesieve-panel-title"); err != nil {
		return nil, fmt.Errorf("panel title: %w", err)
	}
	if err := title.AppendTextNode(msgs.Get("panel_title")); err != nil {
		return nil, fmt.Errorf("panel title: %w", err)
	}
	if err := panel.AppendChild(title); err != nil {
		return nil, fmt.Errorf("panel title: %w", err)
	}

	toggle, err := Toggle(doc, cfg, msgs, cb.OnToggle)
	if err != nil {
		return nil, err
	}
	if err := panel.AppendChild(toggle); err != nil {
		return nil, fmt.Errorf("panel toggle: %w", err)
	}

	checkboxes := []struct {
		idSuffix string
		label    string
		checked  bool
		onChange func(bool)
	}{
		{"hide-links", msgs.Get("checkbox_hide_links"), rules.HideLinks, cb.OnHideLinks},
		{"match-case", msgs.Get("checkbox_match_case"), rules.MatchCase, cb.OnMatchCase},
		{"include-replies", msgs.Get("checkbox_include_replies"), rules.IncludeReplies, cb.OnIncludeReplies},
	}
	for _, c := range checkboxes {
		box, err := Checkbox(doc, cfg.IDs.Panel+"-"+c.idSuffix, c.label, c.checked, c.onChange)
		if err != nil {
			return nil, err
		}
		if err := panel.AppendChild(box); err != nil {
			return nil, fmt.Errorf("panel checkbox: %w", err)
		}
	}

	form, err := WordForm(doc, cfg, msgs, cb.OnAddWord)
	if err != nil {
		return nil, err
	}
	if err := panel.AppendChild(form); err != nil {
		return nil, fmt.Errorf("panel form: %w", err)
	}

	apply, err := Button(doc, cfg.IDs.Panel+"-apply", msgs.Get("button_apply"), cb.OnApply)
	if err != nil {
		return nil, err
	}
	if err := panel.AppendChild(apply); err != nil {
		return nil, fmt.Errorf("panel apply: %w", err)
	}

	clear, err := Button(doc, cfg.IDs.Panel+"-clear", msgs.Get("button_clear"), cb.OnClear)
	if err != nil {
		return nil, err
	}
	if err := panel.AppendChild(clear); err != nil {
		return nil, fmt.Errorf("panel clear: %w", err)
	}

	logging.OverlayDebug("panel built (id=%s)", cfg.IDs.Panel)
	return panel, nil
}
