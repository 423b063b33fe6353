package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/lomoval/plannr/internal/calsync"
	"github.com/lomoval/plannr/internal/errs"
	"github.com/lomoval/plannr/internal/export"
	"github.com/lomoval/plannr/internal/ingest"
	"github.com/lomoval/plannr/internal/model"
	"github.com/lomoval/plannr/internal/registry"
	"github.com/lomoval/plannr/internal/review"
	log "github.com/sirupsen/logrus"
)

var (
	ErrBusy            = errors.New("another sync or export is in progress for this session")
	ErrSessionNotFound = fmt.Errorf("session not found: %w", errs.ErrNotFound)
)

type Ingester interface {
	Submit(ctx context.Context, document []byte, filename string) (ingest.Result, error)
}

type Syncer interface {
	Sync(ctx context.Context, src calsync.Source) (calsync.Report, error)
}

type Exporter interface {
	Export(ctx context.Context, events []model.Event, format export.Format, sink export.Sink) (export.Artifact, error)
}

type EventView struct {
	model.Event
	DisplayColor string `json:"displayColor"`
	Recolored    bool   `json:"recolored"`
}

type SessionView struct {
	ID           string           `json:"id"`
	Class        review.ClassInfo `json:"class"`
	DefaultColor string           `json:"defaultColor"`
	Message      string           `json:"message,omitempty"`
	Events       []EventView      `json:"events"`
	Counts       review.Counts    `json:"counts"`
}

// entry guards one review session. busy is set for the whole duration of a
// sync or export so a second one is refused instead of queued.
type entry struct {
	mu      sync.Mutex
	busy    int32
	session *review.Session
	message string
}

type App struct {
	ingest   Ingester
	syncer   Syncer
	exporter Exporter
	sink     export.Sink
	Registry *registry.Registry

	mu       sync.Mutex
	sessions map[string]*entry
}

func New(ing Ingester, syncer Syncer, exporter Exporter, sink export.Sink, reg *registry.Registry) *App {
	return &App{
		ingest:   ing,
		syncer:   syncer,
		exporter: exporter,
		sink:     sink,
		Registry: reg,
		sessions: make(map[string]*entry),
	}
}

// Upload sends the document for extraction and opens a review session over
// the returned events.
func (a *App) Upload(ctx context.Context, document []byte, filename string, class review.ClassInfo) (SessionView, error) {
	if class.Name == "" {
		return SessionView{}, fmt.Errorf("class name is required: %w", errs.ErrValidation)
	}
	res, err := a.ingest.Submit(ctx, document, filename)
	if err != nil {
		return SessionView{}, err
	}

	e := &entry{session: review.New(class, res.Events), message: res.Message}
	a.mu.Lock()
	a.sessions[e.session.ID()] = e
	a.mu.Unlock()

	log.WithField("session", e.session.ID()).WithField("events", len(res.Events)).Info("review session opened")
	return e.view(), nil
}

func (a *App) Session(id string) (SessionView, error) {
	e, err := a.entry(id)
	if err != nil {
		return SessionView{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view(), nil
}

func (a *App) Discard(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.sessions[id]; !ok {
		return fmt.Errorf("failed to discard %q: %w", id, ErrSessionNotFound)
	}
	delete(a.sessions, id)
	return nil
}

func (a *App) Accept(id, eventID string) (SessionView, error) {
	return a.withEvent(id, eventID, func(s *review.Session) { s.Accept(eventID) })
}

func (a *App) Decline(id, eventID string) (SessionView, error) {
	return a.withEvent(id, eventID, func(s *review.Session) { s.Decline(eventID) })
}

func (a *App) Edit(id, eventID string, edit review.Edit) (SessionView, error) {
	return a.withEvent(id, eventID, func(s *review.Session) { s.Edit(eventID, edit) })
}

func (a *App) AcceptAll(id string) (SessionView, error) {
	return a.withSession(id, (*review.Session).AcceptAll)
}

func (a *App) DeclineAll(id string) (SessionView, error) {
	return a.withSession(id, (*review.Session).DeclineAll)
}

func (a *App) SetDefaultColor(id, hex string) (SessionView, error) {
	return a.withSession(id, func(s *review.Session) { s.SetDefaultColor(hex) })
}

// Sync commits the accepted events of a session. The session stays open so
// the user can keep editing or export afterwards.
func (a *App) Sync(ctx context.Context, id string) (calsync.Report, error) {
	var report calsync.Report
	err := a.exclusive(id, func(s *review.Session) error {
		var err error
		report, err = a.syncer.Sync(ctx, s)
		return err
	})
	return report, err
}

// ExportSession exports all events of a session, or only the accepted ones.
func (a *App) ExportSession(ctx context.Context, id string, format export.Format, acceptedOnly bool) (export.Artifact, error) {
	var artifact export.Artifact
	err := a.exclusive(id, func(s *review.Session) error {
		events := s.Events()
		if acceptedOnly {
			events = s.AcceptedSubset()
		}
		var err error
		artifact, err = a.exporter.Export(ctx, events, format, a.sink)
		return err
	})
	return artifact, err
}

func (a *App) Classes() []model.Class {
	return a.Registry.All()
}

// UpdateClass changes the name, schedule and colour of a committed class.
// Events sent along replace the stored ones and are committed as accepted.
func (a *App) UpdateClass(ctx context.Context, c model.Class) (model.Class, error) {
	stored, err := a.Registry.Get(c.ID)
	if err != nil {
		return model.Class{}, err
	}
	if c.Name == "" {
		return model.Class{}, fmt.Errorf("class name is required: %w", errs.ErrValidation)
	}
	stored.Name = c.Name
	stored.Schedule = c.Schedule
	if c.ColorHex != "" {
		stored.ColorHex = model.CanonicalHex(c.ColorHex)
	}
	if c.Events != nil {
		stored.Events = committedEvents(stored.Events, c.Events)
	}
	if err := a.Registry.UpdateClass(ctx, stored); err != nil {
		return model.Class{}, err
	}
	return stored, nil
}

// committedEvents keeps the stored syllabus flag and colour of events sent
// without them. Every event stays accepted.
func committedEvents(stored, sent []model.Event) []model.Event {
	previous := make(map[string]model.Event, len(stored))
	for _, e := range stored {
		previous[e.ID] = e
	}
	out := model.CopyEvents(sent)
	for i := range out {
		e := &out[i]
		old, known := previous[e.ID]
		switch {
		case e.ColorHex != "":
			e.ColorHex = model.CanonicalHex(e.ColorHex)
		case known:
			e.ColorHex = old.ColorHex
		default:
			e.ColorHex = model.DefaultColorHex
		}
		if known {
			e.IsSyllabus = old.IsSyllabus
		} else {
			e.IsSyllabus = true
		}
		e.Status = model.StatusAccepted
	}
	model.EnsureUniqueIDs(out)
	return out
}

func (a *App) RemoveClass(ctx context.Context, id string) error {
	return a.Registry.RemoveClass(ctx, id)
}

// UpdateClassEvent overwrites the editable fields of a committed event. Its
// review status and syllabus flag are kept, as is its colour when none is sent.
func (a *App) UpdateClassEvent(ctx context.Context, classID, eventID string, edit review.Edit) (model.Event, error) {
	return a.Registry.ModifyEvent(ctx, classID, eventID, func(e *model.Event) {
		e.Title = edit.Title
		e.Date = edit.Date
		e.Type = edit.Type
		e.Description = edit.Description
		if edit.ColorHex != "" {
			e.ColorHex = model.CanonicalHex(edit.ColorHex)
		}
	})
}

func (a *App) RemoveClassEvent(ctx context.Context, classID, eventID string) error {
	return a.Registry.RemoveEvent(ctx, classID, eventID)
}

func (a *App) ExportClass(ctx context.Context, id string, format export.Format) (export.Artifact, error) {
	c, err := a.Registry.Get(id)
	if err != nil {
		return export.Artifact{}, err
	}
	return a.exporter.Export(ctx, c.Events, format, a.sink)
}

func (a *App) entry(id string) (*entry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %q: %w", id, ErrSessionNotFound)
	}
	return e, nil
}

func (a *App) withSession(id string, fn func(s *review.Session)) (SessionView, error) {
	e, err := a.entry(id)
	if err != nil {
		return SessionView{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.session)
	return e.view(), nil
}

func (a *App) withEvent(id, eventID string, fn func(s *review.Session)) (SessionView, error) {
	e, err := a.entry(id)
	if err != nil {
		return SessionView{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.session.Event(eventID); !ok {
		return SessionView{}, fmt.Errorf("event %q: %w", eventID, errs.ErrEventNotFound)
	}
	fn(e.session)
	return e.view(), nil
}

func (a *App) exclusive(id string, fn func(s *review.Session) error) error {
	e, err := a.entry(id)
	if err != nil {
		return err
	}
	if !atomic.CompareAndSwapInt32(&e.busy, 0, 1) {
		return ErrBusy
	}
	defer atomic.StoreInt32(&e.busy, 0)

	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.session)
}

func (e *entry) view() SessionView {
	s := e.session
	events := s.Events()
	views := make([]EventView, len(events))
	for i, ev := range events {
		views[i] = EventView{Event: ev, DisplayColor: s.DisplayColor(ev.ID), Recolored: s.Recolored(ev.ID)}
	}
	return SessionView{
		ID:           s.ID(),
		Class:        s.Class(),
		DefaultColor: s.DefaultColor(),
		Message:      e.message,
		Events:       views,
		Counts:       s.Counts(),
	}
}
