package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/idusortus/predictwithfriends/internal/hub"
	"github.com/idusortus/predictwithfriends/internal/store"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Addr        string
	StaticDir   string
	CORSOrigins []string
}

// NewHandler builds the HTTP handler serving the websocket endpoint, the
// health check and, when configured, the client bundle.
func NewHandler(cfg Config, st *store.Store, h *hub.Hub, logger *logrus.Logger) http.Handler {
	handler := &handler{
		router:     mux.NewRouter(),
		hub:        h,
		dispatcher: &dispatcher{store: st, logger: logger},
		logger:     logger,
		staticDir:  cfg.StaticDir,
	}
	m := &middleware{
		logger:      logger,
		corsOrigins: cfg.CORSOrigins,
	}
	handler.initRouter(m)
	return handler
}

// Start serves until ctx is done and then shuts the server down gracefully.
func Start(ctx context.Context, cfg Config, st *store.Store, h *hub.Hub, logger *logrus.Logger) error {
	s := &http.Server{
		Addr:         cfg.Addr,
		Handler:      NewHandler(cfg, st, h, logger),
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
	}

	errs := make(chan error, 1)
	go func() {
		err := s.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errs <- err
		}
		close(errs)
	}()

	logger.Infof("Server started on %s", cfg.Addr)

	select {
	case err := <-errs:
		if err != nil {
			logger.Error("Error starting server: ", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}
	return waitForShutdown(s, logger)
}

func waitForShutdown(s *http.Server, logger *logrus.Logger) error {
	logger.Info("Trying graceful shutdown server")

	ctxShutDown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.Shutdown(ctxShutDown); err != nil {
		logger.Errorf("Server shutdown failed: %s", err)
		return err
	}
	logger.Info("Server stopped")
	return nil
}
