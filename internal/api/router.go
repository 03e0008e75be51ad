// internal/api/router.go
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"goalflow/internal/api/handler"
)

// Handlers groups the HTTP handlers the router dispatches to.
type Handlers struct {
	Account  *handler.AccountHandler
	Movement *handler.MovementHandler
	Forecast *handler.ForecastHandler
}

// NewRouter sets up and returns a new HTTP router. A zero timeout uses handler.DefaultTimeout.
func NewRouter(h Handlers, timeout time.Duration, logger *slog.Logger) http.Handler {
	if timeout <= 0 {
		timeout = handler.DefaultTimeout
	}
	r := chi.NewRouter()

	// Global middlewares
	r.Use(middleware.RequestID)        // Add a request ID to the context
	r.Use(middleware.RealIP)           // Use the real IP address
	r.Use(middleware.Logger)           // Log HTTP requests
	r.Use(middleware.Recoverer)        // Recover from panics and return 500
	r.Use(middleware.Timeout(timeout)) // Bound every request
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300, // Maximum value not ignored by any major browsers
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", h.Account.CreateAccount)
		r.Get("/", h.Account.ListAccounts)
		r.Get("/{accountID}", h.Account.GetAccount)
		r.Patch("/{accountID}", h.Account.UpdateAccount)
		r.Delete("/{accountID}", h.Account.DeleteAccount)
		r.Get("/{accountID}/movements", h.Account.GetMovementHistory)
		r.Get("/{accountID}/reconcile", h.Account.Reconcile)
		r.Get("/{accountID}/weekly-flow", h.Forecast.WeeklyFlow)
	})

	r.Route("/movements", func(r chi.Router) {
		r.Post("/", h.Movement.RecordMovement)
		r.Get("/", h.Movement.ListMovements)
		r.Get("/{movementID}", h.Movement.GetMovement)
		r.Patch("/{movementID}", h.Movement.AmendMovement)
		r.Delete("/{movementID}", h.Movement.DeleteMovement)
	})

	r.Get("/forecast/{accountID}", h.Forecast.Forecast)

	if logger != nil {
		logger.Debug("HTTP routes registered", "timeout", timeout.String())
	}
	return r
}
