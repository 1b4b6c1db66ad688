package server

import (
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// middleware wraps every routed HTTP request. The WebSocket upgrade passes
// through it once; frames on the open socket do not.
type middleware struct {
	logger      *logrus.Logger
	corsOrigins []string
}

type MiddlewareDispatcher interface {
	populate() []mux.MiddlewareFunc
}

// preflight answers OPTIONS requests without reaching a route handler.
func (m *middleware) preflight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// logRequest logs method, path and latency. For an upgrade the latency is
// the handshake only.
func (m *middleware) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.logger.IsLevelEnabled(logrus.InfoLevel) {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		next.ServeHTTP(w, r)
		m.logger.WithFields(logrus.Fields{
			"method":  r.Method,
			"path":    r.URL.Path,
			"remote":  r.RemoteAddr,
			"upgrade": r.Header.Get("Upgrade") != "",
			"took":    time.Since(start),
		}).Info("HTTP request")
	})
}

// populate lists the chain in the order it runs. An empty origin list allows
// any origin.
func (m *middleware) populate() []mux.MiddlewareFunc {
	origins := m.corsOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return []mux.MiddlewareFunc{
		m.logRequest,
		m.preflight,
		handlers.CORS(handlers.AllowedOrigins(origins)),
	}
}
