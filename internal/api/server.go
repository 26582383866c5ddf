package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dgallion1/docground/internal/config"
	"github.com/dgallion1/docground/internal/extract"
	"github.com/dgallion1/docground/internal/pipeline"
	"github.com/dgallion1/docground/internal/report"
)

// Deps are the collaborators the HTTP API serves from.
type Deps struct {
	Config       config.ServerConfig
	Processor    *pipeline.Processor
	Orchestrator *pipeline.Orchestrator
	Reports      *report.Store
	Stats        *extract.LLMStats
	Backend      string
	Gatherer     prometheus.Gatherer
	Log          *zap.Logger
}

// Server is the HTTP API server for docground.
type Server struct {
	router       chi.Router
	processor    *pipeline.Processor
	orchestrator *pipeline.Orchestrator
	reports      *report.Store
	stats        *extract.LLMStats
	backend      string
	gatherer     prometheus.Gatherer
	log          *zap.Logger
	cfg          config.ServerConfig
}

// NewServer creates and configures the HTTP server.
func NewServer(d Deps) *Server {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	if d.Config.MaxUploadBytes <= 0 {
		d.Config.MaxUploadBytes = 50 << 20
	}
	s := &Server{
		processor:    d.Processor,
		orchestrator: d.Orchestrator,
		reports:      d.Reports,
		stats:        d.Stats,
		backend:      d.Backend,
		gatherer:     d.Gatherer,
		log:          log,
		cfg:          d.Config,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	}))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/extract", s.handleExtract)

		r.Post("/api/jobs", s.handleSubmitJob)
		r.Get("/api/jobs/{jobID}", s.handleJobStatus)
		r.Get("/api/jobs/{jobID}/events", s.handleJobEvents)

		r.Get("/api/reports/{requestID}", s.handleReport)
		r.Get("/api/reports/{requestID}/bundle.zip", s.handleReportBundle)

		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
