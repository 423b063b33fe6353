package internalhttp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/lomoval/plannr/internal/app"
	log "github.com/sirupsen/logrus"
)

const maxUploadSize = 32 << 20

type Config struct {
	Host string `validate:"required"`
	Port int    `validate:"min=1,max=65535"`
}

type Server struct {
	srv          *http.Server
	addr         string
	app          *app.App
	artifactsDir string
}

// NewServer serves the planner API. Exported artifacts are downloaded from
// artifactsDir; an empty dir disables downloads.
func NewServer(config Config, application *app.App, artifactsDir string) *Server {
	addr := net.JoinHostPort(config.Host, strconv.Itoa(config.Port))
	return &Server{
		addr:         addr,
		srv:          &http.Server{Addr: addr},
		app:          application,
		artifactsDir: artifactsDir,
	}
}

// Handler returns the routed API with its middleware.
func (s *Server) Handler() (http.Handler, error) {
	mux := runtime.NewServeMux()
	routes := []struct {
		method  string
		pattern string
		handler runtime.HandlerFunc
	}{
		{http.MethodGet, "/health", s.health},
		{http.MethodPost, "/sessions", s.upload},
		{http.MethodGet, "/sessions/{id}", s.session},
		{http.MethodDelete, "/sessions/{id}", s.discard},
		{http.MethodPost, "/sessions/{id}/events/{eventId}/accept", s.accept},
		{http.MethodPost, "/sessions/{id}/events/{eventId}/decline", s.decline},
		{http.MethodPut, "/sessions/{id}/events/{eventId}", s.edit},
		{http.MethodPost, "/sessions/{id}/accept-all", s.acceptAll},
		{http.MethodPost, "/sessions/{id}/decline-all", s.declineAll},
		{http.MethodPut, "/sessions/{id}/color", s.setColor},
		{http.MethodPost, "/sessions/{id}/sync", s.sync},
		{http.MethodPost, "/sessions/{id}/export", s.exportSession},
		{http.MethodGet, "/classes", s.classes},
		{http.MethodPut, "/classes/{id}", s.updateClass},
		{http.MethodDelete, "/classes/{id}", s.removeClass},
		{http.MethodPut, "/classes/{id}/events/{eventId}", s.updateClassEvent},
		{http.MethodDelete, "/classes/{id}/events/{eventId}", s.removeClassEvent},
		{http.MethodPost, "/classes/{id}/export", s.exportClass},
		{http.MethodGet, "/artifacts/{name}", s.artifact},
	}
	for _, r := range routes {
		if err := mux.HandlePath(r.method, r.pattern, r.handler); err != nil {
			return nil, fmt.Errorf("failed to register %s %s: %w", r.method, r.pattern, err)
		}
	}
	return loggingMiddleware(accountMiddleware(mux)), nil
}

func (s *Server) Start(_ context.Context) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}
	s.srv.Handler = handler

	log.Printf("starting http server on %s", s.addr)
	err = s.srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func getIP(req *http.Request) (string, error) {
	ip, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return "", fmt.Errorf("userip: %q is not IP:port", req.RemoteAddr)
	}

	if parsed := net.ParseIP(ip); parsed == nil {
		return "", fmt.Errorf("userip: %q is not IP:port", req.RemoteAddr)
	}
	return ip, nil
}
