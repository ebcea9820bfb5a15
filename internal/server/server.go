// Package server exposes the ledger over HTTP/JSON: the two conversion
// operations, the deposit onramp, user and market CRUD, and the read
// queries.
package server

import (
	"net/http"
	"time"

	"OutcomeLedger/internal/event"
	"OutcomeLedger/internal/ledger"
	"OutcomeLedger/internal/observability"
	"OutcomeLedger/internal/query"
	"OutcomeLedger/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// EventSink receives events for committed operations. Nil-safe at the
// server level: a nil sink disables publishing.
type EventSink interface {
	Enqueue(evt event.Event)
}

// Server wires the ledger engine, the query service, and the store CRUD
// into a chi router.
type Server struct {
	engine  *ledger.Engine
	queries *query.Service
	store   store.Store
	events  EventSink
	health  *observability.HealthChecker
	metrics *observability.Metrics
	log     zerolog.Logger
}

func NewServer(
	engine *ledger.Engine,
	queries *query.Service,
	st store.Store,
	events EventSink,
	health *observability.HealthChecker,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Server {
	return &Server{
		engine:  engine,
		queries: queries,
		store:   st,
		events:  events,
		health:  health,
		metrics: metrics,
		log:     log,
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	if s.metrics != nil {
		r.Use(s.metrics.HTTPMiddleware)
	}

	if s.health != nil {
		r.Get("/healthz", s.health.LivenessHandler)
		r.Get("/readyz", s.health.ReadinessHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/users", s.handleCreateUser)
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Post("/deposit", s.handleDeposit)
			r.Post("/split", s.handleSplit)
			r.Post("/merge", s.handleMerge)
			r.Get("/balance", s.handleBalance)
			r.Get("/positions", s.handlePositions)
			r.Get("/ledger", s.handleEntries)
		})

		r.Post("/markets", s.handleCreateMarket)
		r.Get("/markets", s.handleListMarkets)
		r.Get("/markets/{marketID}", s.handleGetMarket)
		r.Post("/markets/{marketID}/outcome", s.handleResolveMarket)
	})

	return r
}

// publish hands an event to the sink when one is configured.
func (s *Server) publish(evt event.Event) {
	if s.events != nil {
		s.events.Enqueue(evt)
	}
}
