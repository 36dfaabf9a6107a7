package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/examroom/examroom/backend/metrics"
	"github.com/examroom/examroom/backend/models"
	"github.com/examroom/examroom/backend/repository"
	ws "github.com/examroom/examroom/backend/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

// Server holds all server dependencies
type Server struct {
	config           *Config
	store            repository.Store
	sessions         *SupabaseSessionProvider
	authEvents       *AuthEvents
	authEndpoints    *AuthEndpoints
	problemEndpoints *ProblemEndpoints
	inviteEndpoints  *InviteEndpoints
	historyEndpoints *HistoryEndpoints
	guard            *Guard
	rateLimiter      *RateLimiter
	wsHub            *ws.Hub
	upgrader         websocket.Upgrader
	unsubscribe      func()
	stop             chan struct{}
}

// NewServer creates a new server instance over store
func NewServer(config *Config, store repository.Store) *Server {
	return &Server{
		config: config,
		store:  store,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return CheckOrigin(r, config.WebSocket.AllowedOrigins)
			},
		},
		stop: make(chan struct{}),
	}
}

// InitializeServices initializes all server services
func (s *Server) InitializeServices() error {
	if s.store == nil {
		return fmt.Errorf("no data store configured: set DATABASE_URL or SUPABASE_URL")
	}

	sessions, err := NewSupabaseSessionProvider(SupabaseAuthConfig{
		URL:       s.config.Supabase.URL,
		AnonKey:   s.config.Supabase.AnonKey,
		JWTSecret: s.config.Supabase.JWTSecret,
		Secure:    s.config.IsProduction(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize session provider: %w", err)
	}
	s.sessions = sessions
	s.guard = NewGuard(sessions)
	slog.Info("Session provider initialized", "local_verification", s.config.Supabase.JWTSecret != "")

	// Initialize WebSocket hub
	s.wsHub = ws.NewHub()
	go s.wsHub.Run()

	s.authEvents = NewAuthEvents()
	s.unsubscribe = s.authEvents.OnAuthStateChange(s.notifyAuthState)
	s.authEndpoints = NewAuthEndpoints(sessions, s.authEvents)

	s.problemEndpoints = NewProblemEndpoints(NewProblemService(s.store, s.store))
	s.inviteEndpoints = NewInviteEndpoints(NewInviteService(s.store, s.wsHub))
	s.historyEndpoints = NewHistoryEndpoints(NewHistoryService(s.store))

	s.rateLimiter = NewRateLimiter(s.config.RateLimit.RequestsPerSecond, s.config.RateLimit.Burst)
	s.rateLimiter.StartCleanup(time.Minute, s.stop)

	slog.Info("Services initialized")
	return nil
}

// notifyAuthState forwards sign in and sign out to the user's open tabs
func (s *Server) notifyAuthState(event string, session *models.Session) {
	if session == nil || session.User == nil {
		return
	}
	err := s.wsHub.SendToUser(session.User.ID, ws.Event{Type: ws.EventTypeAuth, Event: event})
	if err != nil {
		slog.Warn("Failed to push auth event", "error", err, "event", event, "user_id", session.User.ID)
	}
}

// SetupRoutes configures all HTTP routes
func (s *Server) SetupRoutes() *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.InstrumentHandler)

	r.Get("/health", s.healthHandler)
	r.Handle("/metrics", metrics.Handler())

	// API v1 route group
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.apiV1Handler)

		s.authEndpoints.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(RequireSession(s.sessions))
			r.Get("/ws", s.websocketHandlerFunc)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireSession(s.sessions))
			r.Use(s.rateLimiter.Middleware)
			s.problemEndpoints.RegisterRoutes(r)
			s.inviteEndpoints.RegisterRoutes(r)
			s.historyEndpoints.RegisterRoutes(r)
		})
	})

	if s.config.Server.WebDir != "" {
		pages := NewSPAHandler(s.config.Server.WebDir)
		s.guard.RegisterPages(r, PageRoutes, pages)
		r.NotFound(pages.ServeHTTP)
		slog.Info("Serving web app", "dir", s.config.Server.WebDir)
	}

	return r
}

// Shutdown notifies connected websocket clients and stops background work started by InitializeServices
func (s *Server) Shutdown() {
	select {
	case <-s.stop:
		return
	default:
		close(s.stop)
	}
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if s.wsHub != nil {
		if err := s.wsHub.Broadcast(ws.Event{Type: ws.EventTypeServer, Event: ws.EventShutdown}); err != nil {
			slog.Warn("Failed to notify websocket clients of shutdown", "error", err)
		}
		s.wsHub.Stop()
	}
}

// Start starts the HTTP server
func (s *Server) Start() {
	port := s.config.Server.Port
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           s.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		slog.Info("Starting server", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	s.Shutdown()

	slog.Info("Server exited")
}

// CheckOrigin validates the origin of WebSocket connections against a comma separated allow list
func CheckOrigin(r *http.Request, allowedOriginsStr string) bool {
	origin := r.Header.Get("Origin")

	// No configured origins denies everything
	if allowedOriginsStr == "" {
		slog.Warn("WebSocket connection rejected: no allowed origins configured", "origin", origin)
		return false
	}

	for _, allowed := range strings.Split(allowedOriginsStr, ",") {
		if strings.TrimSpace(allowed) == origin {
			return true
		}
	}

	slog.Warn("WebSocket connection rejected: origin not allowed", "origin", origin, "allowed_origins", allowedOriginsStr)
	return false
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "up"

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		slog.Warn("Health check failed", "error", err)
		dbStatus = "down"
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   status,
		"database": dbStatus,
	})
}

func (s *Server) apiV1Handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "API v1",
		"version": "1.0.0",
	})
}

func (s *Server) websocketHandlerFunc(w http.ResponseWriter, r *http.Request) {
	user := GetCurrentUser(r.Context())
	if user == nil {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	slog.Info("WebSocket connection established", "user_id", user.ID)

	client := s.wsHub.RegisterClient(conn, user.ID)
	go client.WritePump()
	client.ReadPump()
}
