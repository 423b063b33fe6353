package model

import "github.com/google/uuid"

const DefaultColorHex = "007AFF"

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
)

// Event is one syllabus-derived calendar item together with its review state.
type Event struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Date        string `json:"date"`
	Type        string `json:"type"`
	Description string `json:"description"`
	ColorHex    string `json:"colorHex"`
	Status      Status `json:"status"`
	IsSyllabus  bool   `json:"isSyllabus"`
}

// NewEvent returns a pending event with a fresh id and the default color.
func NewEvent(title, date, eventType, description string) Event {
	return Event{
		ID:          NewID(),
		Title:       title,
		Date:        date,
		Type:        eventType,
		Description: description,
		ColorHex:    DefaultColorHex,
		Status:      StatusPending,
		IsSyllabus:  true,
	}
}

func NewID() string {
	return uuid.NewString()
}

// Same reports whether both values describe the same record.
func (e Event) Same(other Event) bool {
	return e.ID == other.ID
}

func (e Event) Color() RGBA {
	return ColorFromHex(e.ColorHex)
}

func (e *Event) SetColor(c RGBA) {
	e.ColorHex = HexFromColor(c)
}

// EnsureUniqueIDs gives a fresh id to every event whose id is empty or was
// already used by an earlier event of the slice. The slice is modified in place.
func EnsureUniqueIDs(events []Event) {
	seen := make(map[string]struct{}, len(events))
	for i := range events {
		if _, dup := seen[events[i].ID]; dup || events[i].ID == "" {
			events[i].ID = NewID()
		}
		seen[events[i].ID] = struct{}{}
	}
}

// Accepted returns copies of the accepted events in their original order.
func Accepted(events []Event) []Event {
	accepted := make([]Event, 0, len(events))
	for _, e := range events {
		if e.Status == StatusAccepted {
			accepted = append(accepted, e)
		}
	}
	return accepted
}
