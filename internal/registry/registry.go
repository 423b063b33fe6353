// Package registry keeps the committed classes. Every mutation is written
// through to the blob store before it returns.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/lomoval/plannr/internal/errs"
	"github.com/lomoval/plannr/internal/model"
	"github.com/lomoval/plannr/internal/storage"
	log "github.com/sirupsen/logrus"
)

const (
	StorageKey    = "savedClasses"
	SchemaVersion = 1
)

type document struct {
	Version int           `json:"version"`
	Classes []model.Class `json:"classes"`
}

type Registry struct {
	mu      sync.Mutex
	store   storage.Storage
	classes []model.Class
}

// New loads the stored classes once. Missing or unreadable data gives an
// empty registry.
func New(ctx context.Context, store storage.Storage) *Registry {
	r := &Registry{store: store, classes: []model.Class{}}

	classes, err := Load(ctx, store)
	if err != nil {
		log.WithError(err).Warn("failed to load classes, starting empty")
		return r
	}
	r.classes = classes
	log.WithField("classes", len(classes)).Debug("classes loaded")
	return r
}

// Load reads the stored classes without keeping them. Processes that only
// watch the collection, like the reminder scheduler, call it on every pass.
func Load(ctx context.Context, store storage.Storage) ([]model.Class, error) {
	data, err := store.Get(ctx, StorageKey)
	switch {
	case errors.Is(err, storage.ErrNotFoundKey):
		return []model.Class{}, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read classes: %v: %w", err, errs.ErrPersistence)
	}

	classes, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("stored classes are corrupt: %v: %w", err, errs.ErrDecode)
	}
	return classes, nil
}

func decode(data []byte) ([]model.Class, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err == nil {
		if doc.Version > SchemaVersion {
			return nil, fmt.Errorf("unsupported schema version %d", doc.Version)
		}
		if doc.Classes == nil {
			doc.Classes = []model.Class{}
		}
		return doc.Classes, nil
	}

	// Layout written before the version envelope: a bare array.
	var classes []model.Class
	if err := json.Unmarshal(data, &classes); err != nil {
		return nil, err
	}
	if classes == nil {
		classes = []model.Class{}
	}
	return classes, nil
}

func (r *Registry) All() []model.Class {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Class, len(r.classes))
	for i, c := range r.classes {
		out[i] = c.Clone()
	}
	return out
}

func (r *Registry) Get(id string) (model.Class, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(id)
	if i < 0 {
		return model.Class{}, fmt.Errorf("failed to get class %q: %w", id, errs.ErrClassNotFound)
	}
	return r.classes[i].Clone(), nil
}

func (r *Registry) AddClass(ctx context.Context, c model.Class) error {
	if c.ID == "" {
		c.ID = model.NewID()
	}
	c = c.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index(c.ID) >= 0 {
		c.ID = model.NewID()
	}
	return r.commit(ctx, append(r.snapshot(), c))
}

func (r *Registry) UpdateClass(ctx context.Context, c model.Class) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(c.ID)
	if i < 0 {
		return fmt.Errorf("failed to update class %q: %w", c.ID, errs.ErrClassNotFound)
	}
	next := r.snapshot()
	next[i] = c.Clone()
	return r.commit(ctx, next)
}

func (r *Registry) RemoveClass(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(id)
	if i < 0 {
		return fmt.Errorf("failed to remove class %q: %w", id, errs.ErrClassNotFound)
	}
	next := r.snapshot()
	next = append(next[:i], next[i+1:]...)
	return r.commit(ctx, next)
}

// UpdateEvent replaces a stored event of a class, matched by id.
func (r *Registry) UpdateEvent(ctx context.Context, classID string, e model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(classID)
	if i < 0 {
		return fmt.Errorf("failed to update event of class %q: %w", classID, errs.ErrClassNotFound)
	}
	next := r.snapshot()
	for j := range next[i].Events {
		if next[i].Events[j].Same(e) {
			next[i].Events[j] = e
			return r.commit(ctx, next)
		}
	}
	return fmt.Errorf("failed to update event %q: %w", e.ID, errs.ErrEventNotFound)
}

// ModifyEvent applies fn to a copy of the stored event and persists the
// result. The id cannot be changed by fn.
func (r *Registry) ModifyEvent(ctx context.Context, classID, eventID string, fn func(e *model.Event)) (model.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(classID)
	if i < 0 {
		return model.Event{}, fmt.Errorf("failed to update event of class %q: %w", classID, errs.ErrClassNotFound)
	}
	next := r.snapshot()
	for j := range next[i].Events {
		if next[i].Events[j].ID != eventID {
			continue
		}
		e := next[i].Events[j]
		fn(&e)
		e.ID = eventID
		next[i].Events[j] = e
		if err := r.commit(ctx, next); err != nil {
			return model.Event{}, err
		}
		return e, nil
	}
	return model.Event{}, fmt.Errorf("failed to update event %q: %w", eventID, errs.ErrEventNotFound)
}

func (r *Registry) RemoveEvent(ctx context.Context, classID, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(classID)
	if i < 0 {
		return fmt.Errorf("failed to remove event of class %q: %w", classID, errs.ErrClassNotFound)
	}
	next := r.snapshot()
	events := next[i].Events
	for j := range events {
		if events[j].ID == eventID {
			next[i].Events = append(events[:j], events[j+1:]...)
			return r.commit(ctx, next)
		}
	}
	return fmt.Errorf("failed to remove event %q: %w", eventID, errs.ErrEventNotFound)
}

// commit persists next and only then makes it the current state.
// Must be called with r.mu held.
func (r *Registry) commit(ctx context.Context, next []model.Class) error {
	data, err := json.Marshal(document{Version: SchemaVersion, Classes: next})
	if err != nil {
		return fmt.Errorf("failed to encode classes: %v: %w", err, errs.ErrPersistence)
	}
	if err := r.store.Put(ctx, StorageKey, data); err != nil {
		log.WithError(err).Error("failed to save classes")
		return fmt.Errorf("failed to save classes: %v: %w", err, errs.ErrPersistence)
	}
	r.classes = next
	return nil
}

func (r *Registry) snapshot() []model.Class {
	out := make([]model.Class, len(r.classes), len(r.classes)+1)
	for i, c := range r.classes {
		out[i] = c.Clone()
	}
	return out
}

func (r *Registry) index(id string) int {
	for i := range r.classes {
		if r.classes[i].ID == id {
			return i
		}
	}
	return -1
}
