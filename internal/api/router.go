// Package api assembles the HTTP server: middleware, JSON endpoints, event streams
// and the embedded UI.
package api

import (
	"io/fs"
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Fantasim/tokenidx/internal/api/handlers"
	"github.com/Fantasim/tokenidx/internal/api/middleware"
	"github.com/Fantasim/tokenidx/internal/config"
	"github.com/Fantasim/tokenidx/internal/events"
	"github.com/Fantasim/tokenidx/internal/indexer"
	"github.com/Fantasim/tokenidx/internal/metrics"
	"github.com/Fantasim/tokenidx/internal/session"
)

// Deps are the services the router exposes.
type Deps struct {
	Config   *config.Config
	Version  string
	Session  *session.Session
	Hub      *events.Hub
	Wallet   handlers.WalletConnector
	Metrics  *metrics.Metrics
	Breaker  func() indexer.BreakerSnapshot
	StaticFS fs.FS
}

// NewRouter creates the chi router with all middleware and routes.
func NewRouter(d Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogging)
	r.Use(middleware.HostCheck)
	r.Use(middleware.CORS)
	r.Use(middleware.CSRF)

	slog.Info("router initialized",
		"middleware", []string{"recoverer", "requestLogging", "hostCheck", "cors", "csrf"},
	)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.HealthHandler(d.Config, d.Version, d.Breaker, d.Wallet))

		r.Post("/balances", handlers.Balances(d.Session))
		r.Get("/session", handlers.GetSession(d.Session))
		r.Get("/events", handlers.SessionEvents(d.Hub, d.Session))

		r.Route("/wallet", func(r chi.Router) {
			r.Post("/connect", handlers.WalletConnect(d.Session, d.Wallet, d.Hub))
			r.Get("/accounts", handlers.WalletAccounts(d.Wallet))
			r.Get("/ws", handlers.WalletSocket(d.Hub, d.Wallet))
		})
	})

	r.Handle("/metrics", d.Metrics.Handler())

	if d.StaticFS != nil {
		r.Get("/*", handlers.SPAHandler(d.StaticFS))
	}

	return r
}
