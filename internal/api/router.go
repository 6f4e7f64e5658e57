package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Fantasim/nanas/internal/api/handlers"
	"github.com/Fantasim/nanas/internal/api/middleware"
	"github.com/Fantasim/nanas/internal/config"
	"github.com/Fantasim/nanas/internal/metrics"
	"github.com/Fantasim/nanas/internal/rewards"
	"github.com/Fantasim/nanas/internal/upstream"
	"github.com/Fantasim/nanas/internal/wallet"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Dependencies holds all service references needed by the API layer.
type Dependencies struct {
	Rewards  *rewards.Service
	Wallets  *wallet.Manager
	Sessions *middleware.SessionStore
	Metrics  *metrics.Metrics
	Config   *config.Config
	// Breakers are reported by the health endpoint, keyed by collaborator name.
	Breakers map[string]*upstream.CircuitBreaker
}

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(deps *Dependencies) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogging)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(deps.Config.CORSOrigins))

	slog.Info("router initialized",
		"middleware", []string{"requestID", "realIP", "recoverer", "requestLogging", "securityHeaders", "cors"},
		"corsOrigins", deps.Config.CORSOrigins,
	)

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	engine := deps.Rewards.Engine()

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.HealthHandler(deps.Config, Version, deps.Breakers))

		r.With(middleware.RateLimitByIP(deps.Config.RateLimitRPM)).
			Post("/analyze", handlers.AnalyzeHandler(deps.Rewards))

		r.Route("/accounts/{account}", func(r chi.Router) {
			r.Get("/balance", handlers.GetBalanceHandler(deps.Wallets))
			r.Get("/transactions", handlers.ListTransactionsHandler(deps.Wallets))
			r.Get("/balance-history", handlers.BalanceHistoryHandler(deps.Wallets))
			r.Get("/analytics", handlers.AnalyticsHandler(deps.Wallets))
			r.Get("/ledger", handlers.ListLedgerEntriesHandler(deps.Rewards))
			r.Get("/ledger/{id}", handlers.GetLedgerEntryHandler(deps.Rewards))
			r.Get("/cashouts", handlers.ListCashOutsHandler(deps.Wallets))
			r.Post("/cashouts", handlers.CreateCashOutHandler(deps.Wallets, deps.Metrics))
			r.Get("/cashouts/eligibility", handlers.CashOutEligibilityHandler(deps.Wallets))
			r.Get("/kyc", handlers.GetKYCHandler(deps.Wallets))
			r.Post("/kyc", handlers.SubmitKYCHandler(deps.Wallets))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", handlers.LoginHandler(deps.Sessions))

			// Session required; mutating calls carry the CSRF token.
			r.Group(func(r chi.Router) {
				r.Use(deps.Sessions.Middleware)
				r.Use(middleware.CSRF)

				r.Post("/logout", handlers.LogoutHandler(deps.Sessions))
				r.Post("/cashouts/{account}/{id}/{action}", handlers.SettleCashOutHandler(deps.Wallets))
				r.Get("/policy", handlers.GetPolicyHandler(engine))
				r.Put("/policy", handlers.UpdatePolicyHandler(engine, deps.Config.PolicyFile))
				r.Delete("/accounts/{account}", handlers.DeleteAccountHandler(deps.Rewards))
			})
		})
	})

	return r
}
