package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RouterOptions configures the gateway router.
type RouterOptions struct {
	Logger      *slog.Logger
	CORSOrigins []string

	// SubmitLimit throttles the submission routes when set.
	SubmitLimit func(http.Handler) http.Handler
}

// NewRouter builds the gateway's HTTP surface.
func NewRouter(h *RegistrationHandler, opts RouterOptions) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	limit := opts.SubmitLimit
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}

	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger(opts.Logger))     // structured access log
	r.Use(CORS(opts.CORSOrigins))

	// Health
	r.Get("/health", HealthCheck)
	r.Get("/", h.Home)

	// Registration form
	r.Get("/register/{eventID}", h.FormPage)
	r.Get("/{eventName}/register/{eventID}", h.FormPage)
	r.With(limit).Post("/register/{eventID}", h.SubmitForm)

	// Payment return and confirmation
	r.Get("/payment-success", h.PaymentSuccess)
	r.Get("/free-success/{eventID}/{email}", h.Confirmation)
	r.Get("/success/{eventID}/{email}", h.Confirmation)
	r.Get("/success/{eventID}/{email}/invoice.pdf", h.InvoicePDF)

	// JSON API
	r.Route("/api/events/{eventID}", func(r chi.Router) {
		r.Get("/form", h.FormJSON)
		r.With(limit).Post("/submissions", h.SubmitJSON)
	})

	return r
}
