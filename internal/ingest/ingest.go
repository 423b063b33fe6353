package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/lomoval/plannr/internal/backend"
	"github.com/lomoval/plannr/internal/errs"
	"github.com/lomoval/plannr/internal/model"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultFilename = "syllabus.pdf"
	contentTypePDF  = "application/pdf"
	formField       = "file"
)

// Result is an accepted extraction. Events are all pending.
type Result struct {
	Message  string
	Filename string
	Size     int
	Events   []model.Event
}

type Client struct {
	backend *backend.Client
}

func New(b *backend.Client) *Client {
	return &Client{backend: b}
}

type wireResponse struct {
	Message  *string     `json:"message"`
	Filename *string     `json:"filename"`
	Size     *int        `json:"size"`
	Events   []wireEvent `json:"events"`
}

type wireEvent struct {
	ID          *string `json:"id"`
	Title       *string `json:"title"`
	Date        *string `json:"date"`
	Type        *string `json:"type"`
	Description *string `json:"description"`
	ColorHex    *string `json:"colorHex"`
	IsSyllabus  *bool   `json:"isSyllabus"`
}

// Submit uploads a document and returns the events extracted from it.
// The whole batch is rejected when it is empty or when any event says the
// document is not a syllabus.
func (c *Client) Submit(ctx context.Context, document []byte, filename string) (Result, error) {
	if len(document) == 0 {
		return Result{}, errs.ErrEmptyDocument
	}
	filename = pdfName(filename)
	logEntry := log.WithField("filename", filename).WithField("size", len(document))

	resp, err := c.backend.PostFile(ctx, backend.PathSyllabus, formField, filename, contentTypePDF, document)
	if err != nil {
		return Result{}, err
	}
	if !resp.OK() {
		msg := backend.ErrorMessage(resp.Body, "error", "detail")
		if msg == "" {
			msg = strings.TrimSpace(string(resp.Body))
		}
		logEntry.WithField("status", resp.StatusCode).Warn("syllabus upload rejected")
		return Result{}, &errs.ProviderError{StatusCode: resp.StatusCode, Message: msg}
	}

	result, err := decode(resp.Body)
	if err != nil {
		logEntry.WithError(err).Warn("syllabus response could not be decoded")
		return Result{}, err
	}
	if len(result.Events) == 0 {
		return Result{}, errs.ErrNoEvents
	}
	for _, e := range result.Events {
		if !e.IsSyllabus {
			logEntry.WithField("event", e.Title).Info("document rejected as not a syllabus")
			return Result{}, errs.ErrNotSyllabus
		}
	}

	logEntry.WithField("events", len(result.Events)).Info("syllabus parsed")
	return result, nil
}

func decode(body []byte) (Result, error) {
	var wire wireResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return Result{}, fmt.Errorf("failed to decode syllabus response: %v: %w", err, errs.ErrDecode)
	}

	var result Result
	if wire.Message != nil {
		result.Message = *wire.Message
	}
	if wire.Filename != nil {
		result.Filename = *wire.Filename
	}
	if wire.Size != nil {
		result.Size = *wire.Size
	}

	result.Events = make([]model.Event, 0, len(wire.Events))
	for i, w := range wire.Events {
		e, err := w.event()
		if err != nil {
			return Result{}, fmt.Errorf("event %d: %v: %w", i, err, errs.ErrDecode)
		}
		result.Events = append(result.Events, e)
	}
	model.EnsureUniqueIDs(result.Events)
	return result, nil
}

func (w wireEvent) event() (model.Event, error) {
	required := []struct {
		name  string
		value *string
	}{{"title", w.Title}, {"date", w.Date}, {"type", w.Type}, {"description", w.Description}}
	for _, f := range required {
		if f.value == nil {
			return model.Event{}, fmt.Errorf("missing field %q", f.name)
		}
	}

	e := model.NewEvent(*w.Title, *w.Date, *w.Type, *w.Description)
	if w.ID != nil && *w.ID != "" {
		e.ID = *w.ID
	}
	if w.ColorHex != nil && model.ValidHex(*w.ColorHex) {
		e.ColorHex = model.CanonicalHex(*w.ColorHex)
	}
	if w.IsSyllabus != nil {
		e.IsSyllabus = *w.IsSyllabus
	}
	return e, nil
}

func pdfName(filename string) string {
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return DefaultFilename
	}
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		filename += ".pdf"
	}
	return filename
}
