// Package api serves the simulation engine and the lead ledger over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/solarhub/marketplace/internal/config"
	"github.com/solarhub/marketplace/internal/export"
	"github.com/solarhub/marketplace/internal/ledger"
	"github.com/solarhub/marketplace/internal/simulation"
	"github.com/solarhub/marketplace/internal/store"
)

// Server holds the dependencies shared by the HTTP handlers.
type Server struct {
	store     store.Store
	simulator *simulation.Simulator
	ledger    *ledger.Ledger
	money     *export.MoneyFormatter
	cfg       config.ServerConfig
	limiter   *clientLimiter
}

// New creates a Server. money may be nil, in which case exported workbooks
// carry no verdict line.
func New(st store.Store, sim *simulation.Simulator, l *ledger.Ledger, money *export.MoneyFormatter, cfg config.ServerConfig) *Server {
	return &Server{
		store:     st,
		simulator: sim,
		ledger:    l,
		money:     money,
		cfg:       cfg,
		limiter:   newClientLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if s.cfg.RequestTimeoutSecs > 0 {
		r.Use(middleware.Timeout(time.Duration(s.cfg.RequestTimeoutSecs) * time.Second))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/simulations", s.simulateAll)
		r.Post("/simulations/export", s.exportSimulation)
		r.Post("/simulations/{scenario}", s.simulateScenario)

		r.Get("/lead-packages", s.listPackages)

		r.Route("/companies/{companyID}", func(r chi.Router) {
			r.Use(s.requireCompany)

			r.Get("/cost-profile", s.getProfile)
			r.Put("/cost-profile", s.putProfile)

			r.Get("/leads", s.listLeads)
			r.Get("/leads/balance", s.getBalance)
			r.Get("/leads/purchases", s.listPurchases)
			r.With(s.limiter.middleware).Post("/leads/purchases", s.purchase)
			r.Get("/leads/{opportunityID}/access", s.leadAccess)
			r.With(s.limiter.middleware).Post("/leads/{opportunityID}/unlock", s.unlockLead)
		})
	})

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
