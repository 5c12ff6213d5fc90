package dashboard

import (
	"fmt"
	"sort"

	"github.com/cognicore/confstat/pkg/confstat/internalerr"
)

// Session replays viewer interactions against a Document. It mirrors the
// script embedded by Render: every transition is a direct index into the
// document's binding table and never touches slot contents.
type Session struct {
	doc    *Document
	states []ControlState
}

// NewSession starts a session in each panel's initial control state.
func NewSession(doc *Document) *Session {
	states := make([]ControlState, len(doc.Panels))
	for i, p := range doc.Panels {
		states[i] = ControlState{
			Active:  append([]int(nil), p.Initial.Active...),
			Variant: p.Initial.Variant,
		}
	}
	return &Session{doc: doc, states: states}
}

// State returns a copy of panel p's control state.
func (s *Session) State(p int) ControlState {
	st := s.states[p]
	return ControlState{Active: append([]int(nil), st.Active...), Variant: st.Variant}
}

// SetActive replaces the visible set of panel p, as a checkbox group does.
// The active variant is left alone.
func (s *Session) SetActive(p int, labels []string) error {
	panel, err := s.panel(p)
	if err != nil {
		return err
	}
	if !panel.Toggle {
		return fmt.Errorf("%w: panel %q has no visibility toggle", internalerr.ErrInvalidInput, panel.Title)
	}
	active := make([]int, 0, len(labels))
	seen := make(map[int]bool, len(labels))
	for _, l := range labels {
		e, ok := panel.elementIndex(l)
		if !ok {
			return fmt.Errorf("%w: panel %q has no label %q", internalerr.ErrNotFound, panel.Title, l)
		}
		if !seen[e] {
			seen[e] = true
			active = append(active, e)
		}
	}
	sort.Ints(active)
	s.states[p].Active = active
	return nil
}

// Toggle shows or hides the element labeled label in panel p.
func (s *Session) Toggle(p int, label string, on bool) error {
	panel, err := s.panel(p)
	if err != nil {
		return err
	}
	var labels []string
	for _, e := range s.states[p].Active {
		if panel.Elements[e].Label != label {
			labels = append(labels, panel.Elements[e].Label)
		}
	}
	if on {
		labels = append(labels, label)
	}
	return s.SetActive(p, labels)
}

// SelectVariant rebinds every element of panel p to the slot of variant
// key carrying the same label. Visibility is left alone.
func (s *Session) SelectVariant(p int, key string) error {
	panel, err := s.panel(p)
	if err != nil {
		return err
	}
	v, ok := panel.variantIndex(key)
	if !ok {
		return fmt.Errorf("%w: panel %q has no variant %q", internalerr.ErrNotFound, panel.Title, key)
	}
	s.states[p].Variant = v
	return nil
}

// Visible reports whether the element labeled label is shown.
func (s *Session) Visible(p int, label string) bool {
	e, ok := s.doc.Panels[p].elementIndex(label)
	if !ok {
		return false
	}
	for _, a := range s.states[p].Active {
		if a == e {
			return true
		}
	}
	return false
}

// Bound returns the slot the element labeled label currently shows.
func (s *Session) Bound(p int, label string) (Slot, bool) {
	e, ok := s.doc.Panels[p].elementIndex(label)
	if !ok {
		return Slot{}, false
	}
	return s.doc.Slot(p, s.states[p].Variant, e), true
}

// Variant returns the active variant key of panel p.
func (s *Session) Variant(p int) string {
	return s.doc.Panels[p].Variants[s.states[p].Variant]
}

func (s *Session) panel(p int) (Panel, error) {
	if p < 0 || p >= len(s.doc.Panels) {
		return Panel{}, fmt.Errorf("%w: panel %d", internalerr.ErrNotFound, p)
	}
	return s.doc.Panels[p], nil
}
