package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/providers/payment"
	"server/internal/reconcile"
)

// App is the handler container. Everything a request handler needs is
// injected here once at startup.
type App struct {
	Logger     zerolog.Logger
	Donations  domain.DonationRepository
	Settings   domain.SettingRepository
	Content    domain.ContentRepository
	Providers  *payment.Registry
	Reconciler *reconcile.Reconciler

	// ThankYouURL is where redirect-based checkouts land after the callback;
	// status query parameters are appended.
	ThankYouURL     string
	DefaultCurrency string
	RecentLimit     int
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, slug, message string) {
	a.json(w, code, map[string]string{"error": slug, "message": message})
}
