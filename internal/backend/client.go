// Package backend talks to the syllabus extraction, calendar and export
// endpoints of the Plannr backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/lomoval/plannr/internal/errs"
	"github.com/lomoval/plannr/internal/model"
	log "github.com/sirupsen/logrus"
)

const (
	PathSyllabus = "/syllabus"
	PathCalendar = "/calendar"
	PathExport   = "/export"
)

const DefaultTimeout = 60 * time.Second

type Config struct {
	BaseURL string `validate:"required,url"`
	Timeout time.Duration
}

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	baseURL string
	http    Doer
}

func New(baseURL string, doer Doer) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: doer}
}

// NewFromConfig builds a client on its own http.Client with the configured
// timeout, DefaultTimeout when unset.
func NewFromConfig(config Config) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return New(config.BaseURL, &http.Client{Timeout: timeout})
}

// Response is a completed exchange with the backend.
type Response struct {
	StatusCode int
	Body       []byte
}

func (r Response) OK() bool {
	return r.StatusCode == http.StatusOK
}

type eventsBody struct {
	Events []model.Event `json:"events"`
}

// PostEvents sends {"events": [...]} as JSON to path with the given query.
func (c *Client) PostEvents(ctx context.Context, path string, query url.Values, events []model.Event) (Response, error) {
	if events == nil {
		events = []model.Event{}
	}
	body, err := json.Marshal(eventsBody{Events: events})
	if err != nil {
		return Response{}, fmt.Errorf("failed to encode events: %v: %w", err, errs.ErrDecode)
	}
	return c.do(ctx, path, query, "application/json", bytes.NewReader(body))
}

// PostFile sends one multipart part named field.
func (c *Client) PostFile(
	ctx context.Context,
	path, field, filename, contentType string,
	content []byte,
) (Response, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return Response{}, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return Response{}, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if err := w.Close(); err != nil {
		return Response{}, fmt.Errorf("failed to build multipart body: %w", err)
	}
	return c.do(ctx, path, nil, w.FormDataContentType(), &buf)
}

func (c *Client) do(ctx context.Context, path string, query url.Values, contentType string, body io.Reader) (Response, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %v: %w", err, errs.ErrNetwork)
	}
	req.Header.Set("Content-Type", contentType)

	logEntry := log.WithField("path", path)
	resp, err := c.http.Do(req)
	if err != nil {
		logEntry.WithError(err).Warn("backend request failed")
		return Response{}, fmt.Errorf("request to %s failed: %v: %w", path, err, errs.ErrNetwork)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		logEntry.WithError(err).Warn("backend response read failed")
		return Response{}, fmt.Errorf("failed to read response of %s: %v: %w", path, err, errs.ErrNetwork)
	}
	logEntry.WithField("status", resp.StatusCode).WithField("bytes", len(data)).Debug("backend responded")
	return Response{StatusCode: resp.StatusCode, Body: data}, nil
}

// ErrorMessage extracts the first non-empty of the given JSON string fields
// from body. It returns "" when the body is not such an object.
func ErrorMessage(body []byte, fields ...string) string {
	var obj map[string]interface{}
	if err := json.Unmarshal(body, &obj); err != nil {
		return ""
	}
	for _, f := range fields {
		if s, ok := obj[f].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// EmailQuery builds the account query shared by the calendar and export calls.
func EmailQuery(email string) url.Values {
	q := url.Values{}
	q.Set("email", email)
	return q
}
