// Package calsync pushes the accepted events of a review session to the
// external calendar and commits them as a class on success.
package calsync

import (
	"context"
	"fmt"

	"github.com/lomoval/plannr/internal/account"
	"github.com/lomoval/plannr/internal/backend"
	"github.com/lomoval/plannr/internal/errs"
	"github.com/lomoval/plannr/internal/model"
	"github.com/lomoval/plannr/internal/review"
	log "github.com/sirupsen/logrus"
)

const genericFailure = "failed to sync events to calendar"

// Source is the part of a review session Sync reads.
type Source interface {
	Class() review.ClassInfo
	DefaultColor() string
	AcceptedSubset() []model.Event
}

type Committer interface {
	AddClass(ctx context.Context, c model.Class) error
}

type Report struct {
	Count   int    `json:"count"`
	ClassID string `json:"classId"`
}

type Coordinator struct {
	backend  *backend.Client
	accounts account.Resolver
	registry Committer
}

func New(b *backend.Client, accounts account.Resolver, registry Committer) *Coordinator {
	return &Coordinator{backend: b, accounts: accounts, registry: registry}
}

// Sync sends the accepted subset in exactly one request. Nothing is retried.
// The registry is only touched after the calendar confirmed the events, so a
// failed call leaves it unchanged. Calling Sync again after a success creates
// another class.
func (c *Coordinator) Sync(ctx context.Context, src Source) (Report, error) {
	accepted := src.AcceptedSubset()
	if len(accepted) == 0 {
		return Report{}, errs.ErrNothingToSync
	}
	email, err := c.accounts.Email(ctx)
	if err != nil {
		return Report{}, err
	}

	class := src.Class()
	logEntry := log.WithField("class", class.Name).WithField("events", len(accepted))

	resp, err := c.backend.PostEvents(ctx, backend.PathCalendar, backend.EmailQuery(email), accepted)
	if err != nil {
		return Report{}, err
	}
	if !resp.OK() {
		msg := backend.ErrorMessage(resp.Body, "error", "detail")
		if msg == "" {
			msg = genericFailure
		}
		logEntry.WithField("status", resp.StatusCode).Warn("calendar sync rejected")
		return Report{}, &errs.ProviderError{StatusCode: resp.StatusCode, Message: msg}
	}

	committed := model.NewClass(class.Name, class.Schedule, src.DefaultColor(), accepted)
	report := Report{Count: len(accepted), ClassID: committed.ID}
	if err := c.registry.AddClass(ctx, committed); err != nil {
		logEntry.WithError(err).Error("calendar updated but class was not saved")
		return report, fmt.Errorf("calendar updated but class was not saved: %w", err)
	}

	logEntry.WithField("class_id", committed.ID).Info("events synced to calendar")
	return report, nil
}

// StatusMessage is the user facing text for a successful sync.
func (r Report) StatusMessage() string {
	return fmt.Sprintf("Successfully added %d events to your calendar!", r.Count)
}
