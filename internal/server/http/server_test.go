package internalhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/lomoval/plannr/internal/account"
	"github.com/lomoval/plannr/internal/app"
	"github.com/lomoval/plannr/internal/backend"
	"github.com/lomoval/plannr/internal/calsync"
	"github.com/lomoval/plannr/internal/errs"
	"github.com/lomoval/plannr/internal/export"
	"github.com/lomoval/plannr/internal/ingest"
	"github.com/lomoval/plannr/internal/model"
	"github.com/lomoval/plannr/internal/registry"
	memorystorage "github.com/lomoval/plannr/internal/storage/memory"
	"github.com/stretchr/testify/require"
)

const calendarFile = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//plannr//test//EN\r\n" +
	"BEGIN:VEVENT\r\nUID:1\r\nDTSTAMP:20260101T000000Z\r\nSUMMARY:Midterm Exam\r\nEND:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

type testEnv struct {
	api           *httptest.Server
	calendarHits  int32
	calendarEmail atomic.Value
	registry      *registry.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{}

	upstream := http.NewServeMux()
	upstream.HandleFunc(backend.PathSyllabus, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"Syllabus processed","events":[
			{"title":"Midterm Exam","date":"2026-03-15","type":"exam","description":"Chapters 1-5"},
			{"title":"Homework 3","date":"2026-03-20","type":"homework","description":"Problems 1-10"}]}`))
	})
	upstream.HandleFunc(backend.PathCalendar, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&env.calendarHits, 1)
		env.calendarEmail.Store(r.URL.Query().Get("email"))
		w.Write([]byte(`{"message":"ok"}`))
	})
	upstream.HandleFunc(backend.PathExport, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("format") == "csv" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"CSV export disabled"}`))
			return
		}
		w.Write([]byte(calendarFile))
	})
	backendSrv := httptest.NewServer(upstream)
	t.Cleanup(backendSrv.Close)

	ctx := context.Background()
	client := backend.New(backendSrv.URL, backendSrv.Client())
	accounts := account.Context{Fallback: account.Static("")}
	env.registry = registry.New(ctx, memorystorage.New())
	dir := t.TempDir()
	application := app.New(
		ingest.New(client),
		calsync.New(client, accounts, env.registry),
		export.New(client, accounts),
		export.DirSink{Dir: dir},
		env.registry,
	)

	handler, err := NewServer(Config{Host: "127.0.0.1", Port: 0}, application, dir).Handler()
	require.NoError(t, err)
	env.api = httptest.NewServer(handler)
	t.Cleanup(env.api.Close)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string, out interface{}) int {
	t.Helper()
	req, err := http.NewRequest(method, e.api.URL+path, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set(accountHeader, "student@test.edu")
	resp, err := e.api.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (e *testEnv) upload(t *testing.T) app.SessionView {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "calculus.pdf")
	require.NoError(t, err)
	fw.Write([]byte("%PDF-1.4"))
	require.NoError(t, mw.WriteField("className", "Advanced Calculus"))
	require.NoError(t, mw.WriteField("classSchedule", "MWF 10:00 AM"))
	require.NoError(t, mw.WriteField("classColor", "FF9500"))
	require.NoError(t, mw.Close())

	var view app.SessionView
	status := e.do(t, http.MethodPost, "/sessions", &buf, mw.FormDataContentType(), &view)
	require.Equal(t, http.StatusCreated, status)
	return view
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	var body map[string]string
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health", nil, "", &body))
	require.Equal(t, "ok", body["status"])
}

func TestReviewAndSync(t *testing.T) {
	env := newTestEnv(t)
	view := env.upload(t)
	require.Len(t, view.Events, 2)
	require.Equal(t, "Advanced Calculus", view.Class.Name)
	first := view.Events[0].ID

	var resp errorResponse
	status := env.do(t, http.MethodPost, "/sessions/"+view.ID+"/sync", nil, "", &resp)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, errs.ErrNothingToSync.Error(), resp.Error)
	require.Zero(t, atomic.LoadInt32(&env.calendarHits))

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/sessions/"+view.ID+"/events/"+first+"/accept", nil, "", &view))
	require.Equal(t, model.StatusAccepted, view.Events[0].Status)

	edit := `{"title":"Midterm Exam (Room 5)","date":"2026-03-16","type":"exam","description":"Chapters 1-5"}`
	require.Equal(t, http.StatusOK,
		env.do(t, http.MethodPut, "/sessions/"+view.ID+"/events/"+first, strings.NewReader(edit), "application/json", &view))
	require.Equal(t, "2026-03-16", view.Events[0].Date)

	require.Equal(t, http.StatusOK,
		env.do(t, http.MethodPut, "/sessions/"+view.ID+"/color", strings.NewReader(`{"colorHex":"#5856d6"}`), "application/json", &view))
	require.Equal(t, "5856D6", view.DefaultColor)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/sessions/"+view.ID+"/accept-all", nil, "", &view))
	require.Equal(t, 2, view.Counts.Accepted)

	var report syncResponse
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/sessions/"+view.ID+"/sync", nil, "", &report))
	require.Equal(t, 2, report.Count)
	require.Equal(t, "Successfully added 2 events to your calendar!", report.Message)
	require.Equal(t, int32(1), atomic.LoadInt32(&env.calendarHits))
	require.Equal(t, "student@test.edu", env.calendarEmail.Load())

	var classes []model.Class
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/classes", nil, "", &classes))
	require.Len(t, classes, 1)
	require.Equal(t, "5856D6", classes[0].ColorHex)
	require.Equal(t, "Midterm Exam (Room 5)", classes[0].Events[0].Title)

	require.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/sessions/"+view.ID, nil, "", nil))
	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/sessions/"+view.ID, nil, "", &resp))
}

func TestClassesAndExport(t *testing.T) {
	env := newTestEnv(t)
	view := env.upload(t)
	env.do(t, http.MethodPost, "/sessions/"+view.ID+"/accept-all", nil, "", &view)
	var report syncResponse
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/sessions/"+view.ID+"/sync", nil, "", &report))
	classPath := "/classes/" + report.ClassID

	var class model.Class
	require.Equal(t, http.StatusOK,
		env.do(t, http.MethodPut, classPath, strings.NewReader(`{"name":"Calculus II","schedule":"TTh"}`), "application/json", &class))
	require.Equal(t, "Calculus II", class.Name)
	require.Len(t, class.Events, 2)

	var edited model.Event
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPut, classPath+"/events/"+class.Events[0].ID,
		strings.NewReader(`{"title":"Midterm (moved)","date":"2026-03-18","type":"exam"}`), "application/json", &edited))
	require.Equal(t, "Midterm (moved)", edited.Title)
	require.Equal(t, model.StatusAccepted, edited.Status)
	require.NotEmpty(t, edited.ColorHex)

	eventPath := classPath + "/events/" + class.Events[1].ID
	require.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, eventPath, nil, "", nil))
	var resp errorResponse
	require.Equal(t, http.StatusNotFound,
		env.do(t, http.MethodPut, eventPath, strings.NewReader(`{"title":"x"}`), "application/json", &resp))

	var artifact export.Artifact
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, classPath+"/export?format=ics", nil, "", &artifact))
	require.Equal(t, ".ics", filepath.Ext(artifact.Name))
	require.Equal(t, 1, artifact.Entries)

	var second export.Artifact
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, classPath+"/export?format=ics", nil, "", &second))
	require.NotEqual(t, artifact.Name, second.Name)

	res, err := env.api.Client().Get(env.api.URL + "/artifacts/" + artifact.Name)
	require.NoError(t, err)
	data, err := io.ReadAll(res.Body)
	res.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "text/calendar", res.Header.Get("Content-Type"))
	require.Equal(t, calendarFile, string(data))

	require.Equal(t, http.StatusBadGateway, env.do(t, http.MethodPost, classPath+"/export?format=csv", nil, "", &resp))
	require.Equal(t, "CSV export disabled", resp.Error)
	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/artifacts/events-missing.csv", nil, "", &resp))

	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/sessions/"+view.ID+"/export?format=pdf", nil, "", &resp))

	require.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, classPath, nil, "", nil))
	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, classPath, nil, "", &resp))
}

func TestUploadRequiresFile(t *testing.T) {
	env := newTestEnv(t)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("className", "Physics"))
	require.NoError(t, mw.Close())

	var resp errorResponse
	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/sessions", &buf, mw.FormDataContentType(), &resp))
}

func TestStatusOf(t *testing.T) {
	cases := map[error]int{
		app.ErrBusy:                       http.StatusConflict,
		errs.ErrNoAccount:                 http.StatusBadRequest,
		errs.ErrClassNotFound:             http.StatusNotFound,
		&errs.ProviderError{Message: "x"}: http.StatusBadGateway,
		errs.ErrDecode:                    http.StatusBadGateway,
		errs.ErrNetwork:                   http.StatusGatewayTimeout,
		errs.ErrPersistence:               http.StatusInternalServerError,
		io.ErrUnexpectedEOF:               http.StatusInternalServerError,
	}
	for err, status := range cases {
		require.Equal(t, status, statusOf(err), err.Error())
	}
}
