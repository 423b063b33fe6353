package internalhttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lomoval/plannr/internal/app"
	"github.com/lomoval/plannr/internal/errs"
	"github.com/lomoval/plannr/internal/export"
	"github.com/lomoval/plannr/internal/model"
	"github.com/lomoval/plannr/internal/review"
	log "github.com/sirupsen/logrus"
)

type errorResponse struct {
	Error string `json:"error"`
}

type syncResponse struct {
	Count   int    `json:"count"`
	ClassID string `json:"classId"`
	Message string `json:"message"`
}

type colorRequest struct {
	ColorHex string `json:"colorHex"`
}

type editRequest struct {
	Title       string `json:"title"`
	Date        string `json:"date"`
	Type        string `json:"type"`
	Description string `json:"description"`
	ColorHex    string `json:"colorHex"`
}

func statusOf(err error) int {
	if errors.Is(err, app.ErrBusy) {
		return http.StatusConflict
	}
	switch errs.Kind(err) {
	case errs.ErrValidation:
		return http.StatusBadRequest
	case errs.ErrNotFound:
		return http.StatusNotFound
	case errs.ErrProvider, errs.ErrDecode:
		return http.StatusBadGateway
	case errs.ErrNetwork:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).WithField("status", status).Error("request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func readJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode request body: %v: %w", err, errs.ErrValidation)
	}
	return nil
}

func respond(w http.ResponseWriter, v interface{}, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, fmt.Errorf("failed to parse upload: %v: %w", err, errs.ErrValidation))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, fmt.Errorf("file is required: %w", errs.ErrValidation))
		return
	}
	defer file.Close()
	document, err := io.ReadAll(file)
	if err != nil {
		writeError(w, fmt.Errorf("failed to read upload: %v: %w", err, errs.ErrValidation))
		return
	}

	class := review.ClassInfo{
		Name:     r.FormValue("className"),
		Schedule: r.FormValue("classSchedule"),
		ColorHex: r.FormValue("classColor"),
	}
	view, err := s.app.Upload(r.Context(), document, header.Filename, class)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) session(w http.ResponseWriter, _ *http.Request, params map[string]string) {
	view, err := s.app.Session(params["id"])
	respond(w, view, err)
}

func (s *Server) discard(w http.ResponseWriter, _ *http.Request, params map[string]string) {
	if err := s.app.Discard(params["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) accept(w http.ResponseWriter, _ *http.Request, params map[string]string) {
	view, err := s.app.Accept(params["id"], params["eventId"])
	respond(w, view, err)
}

func (s *Server) decline(w http.ResponseWriter, _ *http.Request, params map[string]string) {
	view, err := s.app.Decline(params["id"], params["eventId"])
	respond(w, view, err)
}

func (s *Server) edit(w http.ResponseWriter, r *http.Request, params map[string]string) {
	var req editRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	view, err := s.app.Edit(params["id"], params["eventId"], review.Edit(req))
	respond(w, view, err)
}

func (s *Server) acceptAll(w http.ResponseWriter, _ *http.Request, params map[string]string) {
	view, err := s.app.AcceptAll(params["id"])
	respond(w, view, err)
}

func (s *Server) declineAll(w http.ResponseWriter, _ *http.Request, params map[string]string) {
	view, err := s.app.DeclineAll(params["id"])
	respond(w, view, err)
}

func (s *Server) setColor(w http.ResponseWriter, r *http.Request, params map[string]string) {
	var req colorRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.ColorHex == "" {
		writeError(w, fmt.Errorf("colorHex is required: %w", errs.ErrValidation))
		return
	}
	view, err := s.app.SetDefaultColor(params["id"], req.ColorHex)
	respond(w, view, err)
}

func (s *Server) sync(w http.ResponseWriter, r *http.Request, params map[string]string) {
	report, err := s.app.Sync(r.Context(), params["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{Count: report.Count, ClassID: report.ClassID, Message: report.StatusMessage()})
}

func (s *Server) exportSession(w http.ResponseWriter, r *http.Request, params map[string]string) {
	acceptedOnly, _ := strconv.ParseBool(r.URL.Query().Get("accepted"))
	artifact, err := s.app.ExportSession(r.Context(), params["id"], export.Format(r.URL.Query().Get("format")), acceptedOnly)
	respond(w, artifact, err)
}

func (s *Server) classes(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	writeJSON(w, http.StatusOK, s.app.Classes())
}

func (s *Server) updateClass(w http.ResponseWriter, r *http.Request, params map[string]string) {
	var c model.Class
	if err := readJSON(r, &c); err != nil {
		writeError(w, err)
		return
	}
	c.ID = params["id"]
	updated, err := s.app.UpdateClass(r.Context(), c)
	respond(w, updated, err)
}

func (s *Server) removeClass(w http.ResponseWriter, r *http.Request, params map[string]string) {
	if err := s.app.RemoveClass(r.Context(), params["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) updateClassEvent(w http.ResponseWriter, r *http.Request, params map[string]string) {
	var req editRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	e, err := s.app.UpdateClassEvent(r.Context(), params["id"], params["eventId"], review.Edit(req))
	respond(w, e, err)
}

func (s *Server) removeClassEvent(w http.ResponseWriter, r *http.Request, params map[string]string) {
	if err := s.app.RemoveClassEvent(r.Context(), params["id"], params["eventId"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) exportClass(w http.ResponseWriter, r *http.Request, params map[string]string) {
	artifact, err := s.app.ExportClass(r.Context(), params["id"], export.Format(r.URL.Query().Get("format")))
	respond(w, artifact, err)
}

func (s *Server) artifact(w http.ResponseWriter, r *http.Request, params map[string]string) {
	name := filepath.Base(params["name"])
	if s.artifactsDir == "" || name == "." || name == string(filepath.Separator) {
		writeError(w, fmt.Errorf("artifact %q: %w", params["name"], errs.ErrNotFound))
		return
	}
	path := filepath.Join(s.artifactsDir, name)
	if _, err := os.Stat(path); err != nil {
		writeError(w, fmt.Errorf("artifact %q: %w", name, errs.ErrNotFound))
		return
	}
	if format, err := export.ParseFormat(strings.TrimPrefix(filepath.Ext(name), ".")); err == nil {
		w.Header().Set("Content-Type", format.ContentType())
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeFile(w, r, path)
}
