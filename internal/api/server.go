package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/bryanchriswhite/toplevelctl/internal/config"
	"github.com/bryanchriswhite/toplevelctl/internal/logger"
	"github.com/bryanchriswhite/toplevelctl/internal/toplevel"
	"github.com/bryanchriswhite/toplevelctl/internal/window"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Server represents the HTTP API server
type Server struct {
	router    *mux.Router
	ctrl      window.Controller
	configMgr *config.Manager
	upgrader  websocket.Upgrader
}

// NewServer creates a new API server
func NewServer(ctrl window.Controller, configMgr *config.Manager) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		ctrl:      ctrl,
		configMgr: configMgr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.Use(requestID)

	api := s.router.PathPrefix("/api").Subrouter()

	// Toplevels
	api.HandleFunc("/toplevels", s.handleListToplevels).Methods("GET")

	// Target state and commands
	api.HandleFunc("/target", s.handleGetTarget).Methods("GET")
	api.HandleFunc("/target/stream", s.handleTargetStream)
	api.HandleFunc("/target/trigger", s.command(window.Controller.Trigger)).Methods("POST")
	api.HandleFunc("/target/toggle", s.command(window.Controller.Toggle)).Methods("POST")
	api.HandleFunc("/target/minimize", s.command(window.Controller.Minimize)).Methods("POST")
	api.HandleFunc("/target/activate", s.command(window.Controller.Activate)).Methods("POST")
	api.HandleFunc("/target/close", s.command(window.Controller.Close)).Methods("POST")
	api.HandleFunc("/target/rectangle", s.command(window.Controller.SetVisualRectangle)).Methods("POST")

	// Configuration
	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")
	api.HandleFunc("/config", s.handleUpdateConfig).Methods("PUT")

	// Health check
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the root handler with CORS applied.
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Start serves on port until ctx is cancelled.
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithComponent("api").Info().Int("port", port).Msg("Starting HTTP server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	writeJSON(w, status, map[string]string{
		"error":      err.Error(),
		"request_id": RequestIDFrom(r.Context()),
	})
}

// HTTP Handlers

func (s *Server) handleListToplevels(w http.ResponseWriter, r *http.Request) {
	list, err := s.ctrl.List(r.Context())
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}
	if list == nil {
		list = []window.ToplevelInfo{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetTarget(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) command(fn func(window.Controller, context.Context) (toplevel.Action, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		action, err := fn(s.ctrl, r.Context())
		if err != nil {
			writeError(w, r, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"action":     action.String(),
			"request_id": RequestIDFrom(r.Context()),
		})
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, toplevel.ErrNoSeat):
		return http.StatusConflict
	case errors.Is(err, window.ErrNotRunning):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) handleTargetStream(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("api")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}
	defer conn.Close()

	// Subscribe to target changes
	updates := s.ctrl.Subscribe()
	defer s.ctrl.Unsubscribe(updates)

	// Reader detects client disconnect.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Send initial status
	if err := conn.WriteJSON(s.ctrl.Status()); err != nil {
		log.Debug().Err(err).Msg("WebSocket write error")
		return
	}

	for {
		select {
		case status, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(status); err != nil {
				log.Debug().Err(err).Msg("WebSocket write error")
				return
			}
		case <-gone:
			return
		}
	}
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.configMgr.Get())
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.configMgr.Get()
	if err := json.NewDecoder(r.Body).Decode(cfg); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	if err := s.configMgr.Update(cfg); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.ctrl.Status()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"version": Version,
		"backend": st.Backend,
	})
}
