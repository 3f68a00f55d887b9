package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/vansh-rautela/sage-health-assistant/internal/analyzer"
	"github.com/vansh-rautela/sage-health-assistant/internal/config"
	"github.com/vansh-rautela/sage-health-assistant/internal/supabase"
)

const shutdownTimeout = 30 * time.Second

type Analyzer interface {
	Analyze(ctx context.Context, data map[string]any, systemPrompt string, history []analyzer.ChatTurn) analyzer.Result
	RateStatus() analyzer.RateStatus
}

type Store interface {
	CreateSession(ctx context.Context, userID, title string) (*supabase.Session, error)
	GetSession(ctx context.Context, sessionID string) (*supabase.Session, error)
	ListSessions(ctx context.Context, userID string) ([]supabase.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
	SaveMessage(ctx context.Context, sessionID, role, content string) (*supabase.Message, error)
	ListMessages(ctx context.Context, sessionID string) ([]supabase.Message, error)
}

type Authenticator interface {
	SignUp(ctx context.Context, email, password, name string) (*supabase.User, error)
	SignIn(ctx context.Context, email, password string) (*supabase.User, string, error)
}

type TokenVerifier interface {
	Verify(token string) (string, error)
}

type Extractor interface {
	Extract(r io.ReaderAt, size int64) (string, error)
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Analyzer  Analyzer
	Store     Store
	Auth      Authenticator
	Extractor Extractor
}

type Option func(*Server)

// WithTokenVerifier requires a valid bearer token on session and analysis routes.
func WithTokenVerifier(v TokenVerifier) Option {
	return func(s *Server) {
		s.tokens = v
	}
}

type Server struct {
	cfg    config.ServerConfig
	router chi.Router
	server *http.Server

	analyzer  Analyzer
	store     Store
	auth      Authenticator
	extractor Extractor
	tokens    TokenVerifier
	now       func() time.Time
}

func New(cfg config.ServerConfig, deps Deps, opts ...Option) *Server {
	s := &Server{
		cfg:       cfg,
		analyzer:  deps.Analyzer,
		store:     deps.Store,
		auth:      deps.Auth,
		extractor: deps.Extractor,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router = s.setupRouter()
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/signup", s.handleSignUp)
	r.Post("/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		if s.tokens != nil {
			r.Use(s.authMiddleware)
		}
		if s.cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.cfg.RequestTimeout))
		}

		// {id} is a user ID on GET /sessions/{id} and a session ID elsewhere.
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleCreateSession)
			r.Get("/{id}", s.handleListSessions)
			r.Delete("/{id}", s.handleDeleteSession)
			r.Get("/{id}/messages", s.handleListMessages)
		})

		r.Route("/analyze", func(r chi.Router) {
			r.Post("/initial", s.handleAnalyzeInitial)
			r.Post("/followup", s.handleFollowUp)
			r.Post("/risk-score", s.handleRiskScore)
		})
	})

	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Starting server", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Starting shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	})

	return g.Wait()
}
