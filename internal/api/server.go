package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bryanchriswhite/xwin/internal/logger"
	"github.com/bryanchriswhite/xwin/internal/subscription"
	"github.com/bryanchriswhite/xwin/internal/window"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const writeTimeout = 5 * time.Second

// Windows answers one-shot window queries.
type Windows interface {
	GetActiveWindow() window.WindowInfo
	GetOpenWindows() []window.WindowInfo
}

// Server represents the HTTP API server
type Server struct {
	router   *mux.Router
	windows  Windows
	engine   *subscription.Engine
	upgrader websocket.Upgrader
	version  string
	http     *http.Server
}

// NewServer creates a new API server
func NewServer(windows Windows, engine *subscription.Engine, version string) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		windows: windows,
		engine:  engine,
		version: version,
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
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/window/active", s.handleActiveWindow).Methods("GET")
	api.HandleFunc("/window/stream", s.handleWindowStream)
	api.HandleFunc("/windows", s.handleOpenWindows).Methods("GET")
	api.HandleFunc("/subscriptions", s.handleSubscriptions).Methods("GET")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the router wrapped with CORS headers.
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Start serves on port until Shutdown is called.
func (s *Server) Start(port int) error {
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.WithComponent("api").Info().Str("addr", s.http.Addr).Msg("Starting server")

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server. Open streams end when their sockets close.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
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
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithComponent("api").Warn().Err(err).Msg("Failed to encode response")
	}
}

// handleActiveWindow always answers 200; a desktop without focus yields the
// record with id 0.
func (s *Server) handleActiveWindow(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.windows.GetActiveWindow())
}

func (s *Server) handleOpenWindows(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.windows.GetOpenWindows())
}

func (s *Server) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	handles := s.engine.Handles()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(handles),
		"handles":  handles,
		"interval": s.engine.Interval().String(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": s.version,
	})
}

// handleWindowStream pushes every focus change to the socket. Each socket
// gets its own subscription, removed when the client disconnects.
func (s *Server) handleWindowStream(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("api")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}
	defer conn.Close()

	// Writes happen only on the poller goroutine, so the socket has a
	// single writer. A blocked write throttles this subscription only.
	id, err := s.engine.Subscribe(func(info window.WindowInfo) {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(info); err != nil {
			log.Debug().Err(err).Msg("WebSocket write error")
		}
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to subscribe stream")
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()))
		return
	}
	defer func() {
		if err := s.engine.Unsubscribe(id); err != nil && !errors.Is(err, subscription.ErrNotFound) {
			log.Warn().Err(err).Uint32("id", id).Msg("Failed to unsubscribe stream")
		}
	}()

	log.Debug().Uint32("id", id).Str("remote", r.RemoteAddr).Msg("Stream opened")

	// Drain client frames until the peer goes away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			log.Debug().Uint32("id", id).Err(err).Msg("Stream closed")
			return
		}
	}
}
