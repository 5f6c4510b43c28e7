package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"server/internal/http/handlers"
	"server/internal/middleware"
)

// NewRouter assembles the public API surface.
func NewRouter(app *handlers.App, logger zerolog.Logger, allowedOrigins []string) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimw.RealIP, chimw.Recoverer)
	r.Use(middleware.Logger(logger))
	if len(allowedOrigins) > 0 {
		r.Use(middleware.CORS(allowedOrigins))
	}

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/donations", func(r chi.Router) {
		// Checkout creation is donor-initiated and cheap to abuse.
		r.With(middleware.RateLimit(10, time.Minute)).Post("/", app.DonationsCreate)
		r.Get("/stats", app.DonationStats)

		r.Post("/paypal/capture", app.PayPalCapture)
		r.Get("/pesapal/callback", app.PesapalCallback)
		r.Get("/pesapal/ipn", app.PesapalIPN)
		r.Post("/pesapal/ipn", app.PesapalIPN)
		r.Get("/paygate/callback", app.PayGateCallback)
	})

	r.Route("/v1/settings", func(r chi.Router) {
		r.Get("/", app.SettingsList)
		r.Get("/{key}", app.SettingGet)
		r.Post("/", app.SettingUpsert)
	})

	r.Get("/v1/projects", app.ProjectsList)
	r.Get("/v1/team", app.TeamList)
	r.Get("/v1/partners", app.PartnersList)
	r.Get("/v1/milestones", app.MilestonesList)
	r.Get("/v1/resources", app.ResourcesList)

	return r
}
