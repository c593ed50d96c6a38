package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/markdave123-py/supplement-advisor/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/supplement-advisor/internal/api/middlewares"
	"github.com/markdave123-py/supplement-advisor/internal/config"
	"github.com/markdave123-py/supplement-advisor/internal/logger"
)

// Routes groups the handlers the server mounts. Telegram may be nil.
type Routes struct {
	Survey   *handlers.SurveyHandler
	Admin    *handlers.AdminHandler
	Telegram *handlers.TelegramHandler
}

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, log *logger.Logger, h Routes) *Server {
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           NewRouter(cfg, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return &Server{httpServer: httpSrv, log: log}
}

// NewRouter builds the chi router; split out so tests can drive it with httptest.
func NewRouter(cfg *config.Config, h Routes) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	if h.Telegram != nil {
		r.Post("/webhook/{token}", h.Telegram.Webhook)
	}

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Get("/topics", h.Survey.ListTopics)
		api.Get("/topics/{topic}/questions", h.Survey.ListQuestions)
		api.Post("/recommendations", h.Survey.Recommend)

		api.Route("/sessions/{userID}", func(s chi.Router) {
			s.Get("/", h.Survey.GetSession)
			s.Post("/start", h.Survey.StartSession)
			s.Post("/reset", h.Survey.ResetSession)
			s.Post("/answers", h.Survey.SubmitAnswer)
		})

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware(cfg.JWTSecret))
			protected.Get("/admin/catalog", h.Admin.CatalogSummary)
			protected.Post("/admin/catalog/refresh", h.Admin.RefreshCatalog)
			protected.Post("/admin/catalog/publish", h.Admin.PublishCatalog)
			protected.Post("/admin/sessions/sweep", h.Admin.SweepSessions)
		})
	})

	return r
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
