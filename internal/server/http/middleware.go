package internalhttp

import (
	"net/http"
	"time"

	"github.com/lomoval/plannr/internal/account"
	log "github.com/sirupsen/logrus"
)

const accountHeader = "X-Account-Email"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		ip, err := getIP(r)
		if err != nil {
			log.Errorf("failed to get client IP: %v", err)
		}
		log.WithField("ip", ip).WithField("method", r.Method).WithField("path", r.URL).
			WithField("HTTP version", r.Proto).WithField("user-agent", r.Header.Get("user-agent")).
			WithField("status", rec.status).WithField("latency", time.Since(start)).
			Info("http request processed")
	})
}

// accountMiddleware carries the signed in user's e-mail from the request
// header into the context.
func accountMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if email := r.Header.Get(accountHeader); email != "" {
			r = r.WithContext(account.WithEmail(r.Context(), email))
		}
		next.ServeHTTP(w, r)
	})
}
