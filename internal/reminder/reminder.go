// Package reminder finds committed events that are about to happen and
// publishes one message per event.
package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/lomoval/plannr/internal/model"
	"github.com/lomoval/plannr/internal/rabbit"
	log "github.com/sirupsen/logrus"
)

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04", "2006-01-02"}

type Publisher interface {
	Publish(ctx context.Context, m rabbit.Message) error
}

// Source returns the current committed classes.
type Source func(ctx context.Context) ([]model.Class, error)

// parseDate reads event dates as sent by the extraction backend. Date-only
// values span the whole local day.
func parseDate(s string, loc *time.Location) (start, end time.Time, err error) {
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			continue
		}
		if layout == "2006-01-02" {
			return t, t.AddDate(0, 0, 1), nil
		}
		return t, t, nil
	}
	return time.Time{}, time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// Upcoming lists events that start within notifyBefore of now and have not
// ended yet. Events with dates it cannot read are skipped.
func Upcoming(classes []model.Class, now time.Time, notifyBefore time.Duration, email string) []rabbit.Message {
	var out []rabbit.Message
	horizon := now.Add(notifyBefore)
	for _, c := range classes {
		for _, e := range c.Events {
			start, end, err := parseDate(e.Date, now.Location())
			if err != nil {
				log.WithField("event", e.ID).Debug(err)
				continue
			}
			if start.After(horizon) || end.Before(now) {
				continue
			}
			out = append(out, rabbit.Message{
				ClassID:   c.ID,
				ClassName: c.Name,
				EventID:   e.ID,
				Title:     e.Title,
				Date:      e.Date,
				Type:      e.Type,
				Email:     email,
			})
		}
	}
	return out
}

type Config struct {
	Interval     time.Duration `validate:"required"`
	NotifyBefore time.Duration `validate:"required"`
}

type Scheduler struct {
	source       Source
	publisher    Publisher
	email        string
	notifyBefore time.Duration
	now          func() time.Time
	sent         map[string]struct{}
}

func NewScheduler(source Source, publisher Publisher, email string, notifyBefore time.Duration) *Scheduler {
	return &Scheduler{
		source:       source,
		publisher:    publisher,
		email:        email,
		notifyBefore: notifyBefore,
		now:          time.Now,
		sent:         make(map[string]struct{}),
	}
}

func key(m rabbit.Message) string {
	return m.ClassID + "/" + m.EventID + "/" + m.Date
}

// Tick publishes the reminders not published before and returns how many
// were sent. A moved event is reminded again for its new date.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	classes, err := s.source(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get classes: %w", err)
	}

	due := Upcoming(classes, s.now(), s.notifyBefore, s.email)
	current := make(map[string]struct{}, len(due))
	sent := 0
	for _, m := range due {
		k := key(m)
		current[k] = struct{}{}
		if _, ok := s.sent[k]; ok {
			continue
		}
		if err := s.publisher.Publish(ctx, m); err != nil {
			return sent, fmt.Errorf("failed to publish reminder for %q: %w", m.EventID, err)
		}
		log.WithField("class", m.ClassName).WithField("event", m.Title).Debug("reminder published")
		s.sent[k] = struct{}{}
		sent++
	}
	for k := range s.sent {
		if _, ok := current[k]; !ok {
			delete(s.sent, k)
		}
	}
	return sent, nil
}

func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := s.Tick(ctx); err != nil {
			log.Errorf("reminder pass failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
