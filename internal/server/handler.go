package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/idusortus/predictwithfriends/internal/hub"
	"github.com/sirupsen/logrus"
)

type handler struct {
	router     *mux.Router
	hub        *hub.Hub
	dispatcher hub.Dispatcher
	logger     *logrus.Logger
	staticDir  string
}

func (h *handler) initRouter(m MiddlewareDispatcher) {
	// Provide all middlewares from one method
	h.router.Use(m.populate()...)

	h.router.HandleFunc("/healthz", h.health).Methods("GET")
	h.router.HandleFunc("/ws", h.hub.Handler(h.dispatcher)).Methods("GET")
	// The client bundle connects to the page origin itself.
	h.router.HandleFunc("/", h.hub.Handler(h.dispatcher)).
		Methods("GET").
		HeadersRegexp("Upgrade", "(?i)^websocket$")
	if h.staticDir != "" {
		h.router.PathPrefix("/").Handler(http.FileServer(http.Dir(h.staticDir))).Methods("GET")
	}
	h.router.PathPrefix("/").HandlerFunc(h.defaultHandler)
}

func (h *handler) defaultHandler(w http.ResponseWriter, r *http.Request) {
	sendErrorResponse(w, "Not found", http.StatusNotFound)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      "ok",
		"connections": h.hub.Count(),
	})
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func sendErrorResponse(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: message})
}
