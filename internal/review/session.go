// Package review holds the working copy of the events extracted from one
// uploaded syllabus while the user accepts, declines and edits them.
//
// A Session is not safe for concurrent use.
package review

import (
	"github.com/lomoval/plannr/internal/model"
)

// ClassInfo is the class the syllabus was uploaded for.
type ClassInfo struct {
	Name     string `json:"name"`
	Schedule string `json:"schedule"`
	ColorHex string `json:"colorHex"`
}

// Edit carries the user editable fields of an event.
type Edit struct {
	Title       string
	Date        string
	Type        string
	Description string
	ColorHex    string
}

type Counts struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Accepted int `json:"accepted"`
	Declined int `json:"declined"`
}

type Session struct {
	id           string
	class        ClassInfo
	defaultColor string
	events       []model.Event
	recolored    map[string]bool
}

// New copies events into a fresh session. Every event starts pending.
func New(class ClassInfo, events []model.Event) *Session {
	if class.ColorHex == "" {
		class.ColorHex = model.DefaultColorHex
	}
	class.ColorHex = model.CanonicalHex(class.ColorHex)

	working := model.CopyEvents(events)
	for i := range working {
		working[i].Status = model.StatusPending
	}
	model.EnsureUniqueIDs(working)

	return &Session{
		id:           model.NewID(),
		class:        class,
		defaultColor: class.ColorHex,
		events:       working,
		recolored:    make(map[string]bool),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Class() ClassInfo {
	return s.class
}

// Accept toggles between accepted and pending.
func (s *Session) Accept(id string) {
	s.toggle(id, model.StatusAccepted)
}

// Decline toggles between declined and pending.
func (s *Session) Decline(id string) {
	s.toggle(id, model.StatusDeclined)
}

func (s *Session) toggle(id string, status model.Status) {
	e := s.find(id)
	if e == nil {
		return
	}
	if e.Status == status {
		e.Status = model.StatusPending
		return
	}
	e.Status = status
}

func (s *Session) AcceptAll() {
	s.setAll(model.StatusAccepted)
}

func (s *Session) DeclineAll() {
	s.setAll(model.StatusDeclined)
}

func (s *Session) setAll(status model.Status) {
	for i := range s.events {
		s.events[i].Status = status
	}
}

// Edit replaces the editable fields of an event. The id and review status
// are kept. Any color sent with the edit counts as a recolor, even the
// event's current one.
func (s *Session) Edit(id string, edit Edit) {
	e := s.find(id)
	if e == nil {
		return
	}
	e.Title = edit.Title
	e.Date = edit.Date
	e.Type = edit.Type
	e.Description = edit.Description
	if edit.ColorHex != "" {
		e.ColorHex = model.CanonicalHex(edit.ColorHex)
		s.recolored[id] = true
	}
}

// Recolor sets the event's own color; from now on it is displayed instead
// of the session default.
func (s *Session) Recolor(id, hex string) {
	e := s.find(id)
	if e == nil {
		return
	}
	e.ColorHex = model.CanonicalHex(hex)
	s.recolored[id] = true
}

// SetDefaultColor changes the color shown for every event that was not
// recolored individually. Stored event colors are left alone.
func (s *Session) SetDefaultColor(hex string) {
	s.defaultColor = model.CanonicalHex(hex)
}

func (s *Session) DefaultColor() string {
	return s.defaultColor
}

// DisplayColor returns the color an event is shown with, or "" for unknown ids.
func (s *Session) DisplayColor(id string) string {
	e := s.find(id)
	if e == nil {
		return ""
	}
	if s.recolored[id] {
		return model.CanonicalHex(e.ColorHex)
	}
	return s.defaultColor
}

func (s *Session) Recolored(id string) bool {
	return s.recolored[id]
}

// Events returns a copy of all events in extraction order.
func (s *Session) Events() []model.Event {
	return model.CopyEvents(s.events)
}

func (s *Session) Event(id string) (model.Event, bool) {
	e := s.find(id)
	if e == nil {
		return model.Event{}, false
	}
	return *e, true
}

// AcceptedSubset returns copies of the accepted events in extraction order.
func (s *Session) AcceptedSubset() []model.Event {
	return model.Accepted(s.events)
}

func (s *Session) Counts() Counts {
	c := Counts{Total: len(s.events)}
	for _, e := range s.events {
		switch e.Status {
		case model.StatusAccepted:
			c.Accepted++
		case model.StatusDeclined:
			c.Declined++
		default:
			c.Pending++
		}
	}
	return c
}

func (s *Session) find(id string) *model.Event {
	for i := range s.events {
		if s.events[i].ID == id {
			return &s.events[i]
		}
	}
	return nil
}
