// Package server exposes the assistant over HTTP: a JSON API for sessions
// and turns plus the embedded single-page front end.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sqlsage/sqlsage/internal/session"
	"github.com/sqlsage/sqlsage/internal/types"
)

// TurnRunner runs one agent turn for a question.
type TurnRunner interface {
	Run(ctx context.Context, question string) (*types.TurnResult, error)
}

// QueryExecutor executes the generated SQL.
type QueryExecutor interface {
	Execute(ctx context.Context, sql string) (*types.ResultTable, error)
}

// defaultTurnTimeout bounds a turn when no llm.timeout_seconds is configured.
const defaultTurnTimeout = 120 * time.Second

// Server wires the agent, executor, and session store behind the HTTP API.
type Server struct {
	agent       TurnRunner
	executor    QueryExecutor // nil when database credentials are not configured
	store       *session.Store
	turnTimeout time.Duration
	metrics     *Metrics
	logger      *zap.Logger
}

// New creates the server. A nil executor is allowed; execution then surfaces
// a configuration error inline on each turn.
func New(agent TurnRunner, executor QueryExecutor, store *session.Store, turnTimeout time.Duration, logger *zap.Logger) *Server {
	return NewWithRegisterer(agent, executor, store, turnTimeout, prometheus.DefaultRegisterer, logger)
}

// NewWithRegisterer creates the server with an explicit metrics registerer.
func NewWithRegisterer(agent TurnRunner, executor QueryExecutor, store *session.Store, turnTimeout time.Duration, reg prometheus.Registerer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if turnTimeout <= 0 {
		turnTimeout = defaultTurnTimeout
	}
	return &Server{
		agent:       agent,
		executor:    executor,
		store:       store,
		turnTimeout: turnTimeout,
		metrics:     NewMetrics(reg),
		logger:      logger,
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(s.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/turns", s.handleTurn)
			r.Post("/clear", s.handleClearSession)
			r.Put("/turns/{turnIndex}/chart", s.handleSetChart)
		})
	})

	r.Get("/", s.handleIndex)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
