// Package api is the HTTP control surface for game sessions.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/luckyloop/internal/game"
	"github.com/MJE43/luckyloop/internal/scriptstore"
	"github.com/MJE43/luckyloop/internal/store"
)

const defaultMaxSessions = 1000

// Options configures a Server.
type Options struct {
	// NewConfig returns the base configuration for each new session.
	NewConfig func() (game.Config, error)
	// DB backs the history endpoints. Optional.
	DB store.DB
	// Recorder receives every resolved round of every session. Optional.
	Recorder game.Recorder
	// Runs stores autoplay strategy runs. Optional.
	Runs *scriptstore.Store
	// MaxSessions caps live sessions; 0 means 1000.
	MaxSessions int
	Logger      *log.Logger
}

// Server handles HTTP requests
type Server struct {
	db           store.DB
	runs         *scriptstore.Store
	newConfig    func() (game.Config, error)
	recorder     game.Recorder
	sessions     *registry
	errorHandler *ErrorHandler
	logger       *log.Logger
	startTime    time.Time
	httpServer   *http.Server
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[API] ", log.LstdFlags|log.Lshortfile)
	}
	newConfig := opts.NewConfig
	if newConfig == nil {
		newConfig = func() (game.Config, error) { return game.Config{}, nil }
	}
	maxSessions := opts.MaxSessions
	if maxSessions <= 0 {
		maxSessions = defaultMaxSessions
	}

	server := &Server{
		db:           opts.DB,
		runs:         opts.Runs,
		newConfig:    newConfig,
		recorder:     opts.Recorder,
		sessions:     newRegistry(maxSessions),
		errorHandler: NewErrorHandler(logger),
		logger:       logger,
		startTime:    time.Now(),
	}

	logger.Printf("system_startup engine_version=%s database_enabled=%t runs_enabled=%t max_sessions=%d",
		EngineVersion, server.db != nil, server.runs != nil, maxSessions)

	return server
}

// Routes sets up the HTTP routes with proper middleware
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(s.errorHandler.RecoveryHandler)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealthCheck)
	r.Get("/health/ready", s.handleReadiness)
	r.Get("/health/live", s.handleLiveness)
	r.Get("/version", s.handleVersion)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sessions", s.handleCreateSession)
		r.Get("/sessions", s.handleListSessions)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/deal", s.handleAction((*handle).Deal))
			r.Post("/hit", s.handleAction((*handle).Hit))
			r.Post("/stand", s.handleAction((*handle).Stand))
			r.Post("/double", s.handleAction((*handle).Double))
			r.Post("/bet", s.handleBet)
			r.Post("/skill", s.handleSkill)
			r.Post("/restart", s.handleRestart)
			r.Post("/autoplay", s.handleAutoplay)
			r.Get("/rounds", s.handleRounds)
			r.Get("/rounds.csv", s.handleRoundsCSV)
		})
	})

	return r
}

// Start begins serving on addr in a goroutine. It returns once the socket
// is bound, with the bound address.
func (s *Server) Start(addr string) (net.Addr, error) {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 70 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("serve: %v", err)
		}
	}()
	return ln.Addr(), nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// requestLogger logs one line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Printf("request method=%s path=%s status=%d duration=%s request_id=%s",
			r.Method, r.URL.Path, ww.Status(), time.Since(start), middleware.GetReqID(r.Context()))
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, GetVersionInfo())
}

// writeJSON writes a JSON response with proper headers
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Printf("encode response: %v", err)
	}
}
