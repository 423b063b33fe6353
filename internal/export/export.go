// Package export asks the backend to render events as an ICS or CSV file and
// hands the bytes to a Sink.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	ical "github.com/arran4/golang-ical"
	"github.com/lomoval/plannr/internal/account"
	"github.com/lomoval/plannr/internal/backend"
	"github.com/lomoval/plannr/internal/errs"
	"github.com/lomoval/plannr/internal/model"
	log "github.com/sirupsen/logrus"
)

type Format string

const (
	FormatICS Format = "ics"
	FormatCSV Format = "csv"
)

const genericFailure = "export failed"

var csvHeader = []string{"Title", "Date", "Type", "Description"}

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatICS, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("%q: %w", s, errs.ErrUnsupportedFormat)
	}
}

func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "text/calendar"
}

// Artifact describes a stored export file.
type Artifact struct {
	Format   Format `json:"format"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Size     int    `json:"size"`
	Entries  int    `json:"entries"`
}

type Coordinator struct {
	backend  *backend.Client
	accounts account.Resolver
}

func New(b *backend.Client, accounts account.Resolver) *Coordinator {
	return &Coordinator{backend: b, accounts: accounts}
}

func (c *Coordinator) Export(ctx context.Context, events []model.Event, format Format, sink Sink) (Artifact, error) {
	format, err := ParseFormat(string(format))
	if err != nil {
		return Artifact{}, err
	}
	if len(events) == 0 {
		return Artifact{}, errs.ErrNothingToExport
	}
	email, err := c.accounts.Email(ctx)
	if err != nil {
		return Artifact{}, err
	}

	query := backend.EmailQuery(email)
	query.Set("format", string(format))
	resp, err := c.backend.PostEvents(ctx, backend.PathExport, query, events)
	if err != nil {
		return Artifact{}, err
	}
	if !resp.OK() {
		msg := backend.ErrorMessage(resp.Body, "error")
		if msg == "" {
			msg = genericFailure
		}
		log.WithField("status", resp.StatusCode).WithField("format", format).Warn("export rejected")
		return Artifact{}, &errs.ProviderError{StatusCode: resp.StatusCode, Message: msg}
	}

	name := artifactName(format)
	location, err := sink.Save(ctx, name, resp.Body)
	if err != nil {
		return Artifact{}, fmt.Errorf("save %s: %w", name, err)
	}

	artifact := Artifact{Format: format, Name: name, Location: location, Size: len(resp.Body)}
	artifact.Entries, err = countEntries(format, resp.Body)
	if err != nil {
		log.WithError(err).WithField("format", format).Warn("cannot inspect exported file")
	}
	log.WithField("location", location).WithField("size", artifact.Size).Info("events exported")
	return artifact, nil
}

// artifactName is unique per export so earlier artifacts stay retrievable.
func artifactName(format Format) string {
	return "events-" + model.NewID() + "." + string(format)
}

func countEntries(format Format, data []byte) (int, error) {
	if format == FormatCSV {
		return countRows(data)
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	return len(cal.Events()), nil
}

func countRows(data []byte) (int, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	n := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if n == 0 && isHeader(record) {
			continue
		}
		n++
	}
}

func isHeader(record []string) bool {
	if len(record) != len(csvHeader) {
		return false
	}
	for i, h := range csvHeader {
		if !strings.EqualFold(strings.TrimSpace(record[i]), h) {
			return false
		}
	}
	return true
}
