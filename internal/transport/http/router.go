package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/phone-verification-api/internal/application/verification"
	"github.com/phone-verification-api/internal/config"
	"github.com/phone-verification-api/internal/transport/http/handler"
	appmiddleware "github.com/phone-verification-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// 5 requests/second, burst of 10. Issuing a session triggers an SMS,
	// so creation is the endpoint worth throttling.
	issueRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	var simulator *verification.DeliverySimulator
	if cfg.SimulatedDelay > 0 {
		simulator = verification.NewDeliverySimulator(deps.Store, cfg.SimulatedDelay)
	}
	svc := verification.NewService(verification.ServiceDeps{
		Store:            deps.Store,
		SMSSender:        deps.SMSSender,
		Simulator:        simulator,
		DefaultTTL:       cfg.SessionTTL,
		WhatsAppLinkBase: cfg.WhatsAppLinkBase,
		QRLinkBase:       cfg.QRLinkBase,
	})

	healthH := handler.NewHealthHandler()
	verifH := handler.NewVerificationHandler(svc)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)

		r.With(issueRL.Limit).Post("/verifications", verifH.Issue)
		r.Get("/verifications/{id}", verifH.Status)
		r.Post("/verifications/{id}/verify", verifH.Submit)
		r.Put("/verifications/{id}", verifH.Attach)
	})

	return r
}
