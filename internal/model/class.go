package model

// Class is a committed course with the events accepted for it.
type Class struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Schedule string  `json:"schedule"`
	ColorHex string  `json:"colorHex"`
	Events   []Event `json:"events"`
}

func NewClass(name, schedule, colorHex string, events []Event) Class {
	if colorHex == "" {
		colorHex = DefaultColorHex
	}
	return Class{
		ID:       NewID(),
		Name:     name,
		Schedule: schedule,
		ColorHex: colorHex,
		Events:   CopyEvents(events),
	}
}

func (c Class) Color() RGBA {
	return ColorFromHex(c.ColorHex)
}

func (c *Class) SetColor(rgba RGBA) {
	c.ColorHex = HexFromColor(rgba)
}

// Clone returns a copy that shares no slice memory with c.
func (c Class) Clone() Class {
	c.Events = CopyEvents(c.Events)
	return c
}

func CopyEvents(events []Event) []Event {
	if events == nil {
		return []Event{}
	}
	out := make([]Event, len(events))
	copy(out, events)
	return out
}
