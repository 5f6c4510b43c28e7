package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"server/internal/domain"
	"server/internal/providers/payment"
)

type donationRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	DonorName  string          `json:"donorName"`
	DonorEmail *string         `json:"donorEmail"`
	Message    *string         `json:"message"`
	Anonymous  bool            `json:"anonymous"`
	Tier       string          `json:"tier"`
	Provider   string          `json:"provider"`
}

// DonationsCreate opens a provider checkout session and stages the pending
// donation row keyed by the provider reference. The pending row is what the
// callback will later reconcile, so no client-side state has to survive the
// redirect round trip.
func (a *App) DonationsCreate(w http.ResponseWriter, r *http.Request) {
	var req donationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Amount.Sign() <= 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "amount must be positive")
		return
	}
	if strings.TrimSpace(req.DonorName) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "donor name is required")
		return
	}
	if req.DonorEmail != nil {
		if _, err := mail.ParseAddress(*req.DonorEmail); err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "invalid email")
			return
		}
	}
	tier := domain.DonationTier(req.Tier)
	if req.Tier == "" {
		tier = domain.TierOneTime
	}
	if !tier.Valid() {
		a.error(w, http.StatusBadRequest, "bad_request", "unknown donation tier")
		return
	}
	provider := domain.PaymentProvider(req.Provider)
	if !provider.Valid() {
		a.error(w, http.StatusBadRequest, "bad_request", "unknown payment provider")
		return
	}
	adapter, ok := a.Providers.Get(provider)
	if !ok {
		a.error(w, http.StatusBadRequest, "provider_unavailable", "payment provider is not configured")
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = a.DefaultCurrency
	}
	donationID := uuid.NewString()

	email := ""
	if req.DonorEmail != nil {
		email = *req.DonorEmail
	}
	order, err := adapter.CreateOrder(r.Context(), payment.CreateOrderRequest{
		Reference:   donationID,
		Amount:      req.Amount,
		Currency:    currency,
		Description: "Donation to the robotics program",
		DonorName:   req.DonorName,
		DonorEmail:  email,
		ReturnURL:   a.ThankYouURL,
	})
	if err != nil {
		a.Logger.Error().Err(err).Str("provider", string(provider)).Msg("order creation failed")
		if errors.Is(err, domain.ErrValidation) {
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		a.error(w, http.StatusBadGateway, "payment_creation_failed", err.Error())
		return
	}

	donation := &domain.Donation{
		ID:          donationID,
		Amount:      req.Amount,
		Currency:    currency,
		DonorName:   strings.TrimSpace(req.DonorName),
		DonorEmail:  req.DonorEmail,
		Message:     req.Message,
		Anonymous:   req.Anonymous,
		Tier:        tier,
		Status:      domain.DonationPending,
		Provider:    provider,
		ProviderRef: order.ProviderRef,
	}
	if err := a.Donations.Create(r.Context(), donation); err != nil {
		a.Logger.Error().Err(err).Str("donation_id", donationID).Msg("failed to persist pending donation")
		if errors.Is(err, domain.ErrDuplicateOperation) {
			a.error(w, http.StatusConflict, "duplicate", "this provider reference is already recorded")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to record donation")
		return
	}

	a.json(w, http.StatusCreated, map[string]any{
		"id":          donationID,
		"provider":    provider,
		"providerRef": order.ProviderRef,
		"redirectUrl": order.RedirectURL,
	})
}

type captureRequest struct {
	OrderID string `json:"orderId"`
}

// PayPalCapture settles an approved PayPal order. The PayPal client SDK
// drives the approval itself, so this is the synchronous confirmation path.
func (a *App) PayPalCapture(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.OrderID) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "orderId is required")
		return
	}

	result, err := a.Reconciler.ConfirmCapture(r.Context(), domain.ProviderPayPal, req.OrderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "no donation matches this order")
			return
		}
		// The capture may have gone through on PayPal's side even when our
		// call errored; tell the client recording is pending rather than
		// claiming the payment failed.
		a.json(w, http.StatusBadGateway, map[string]string{
			"status":  "recording_pending",
			"message": "payment could not be verified yet; it will be reconciled",
		})
		return
	}
	a.json(w, http.StatusOK, donationOutcome(result.Donation, result.Duplicate))
}

// PesapalCallback handles the donor's redirect back from Pesapal checkout.
// Responds with a redirect to the thank-you page carrying status parameters.
func (a *App) PesapalCallback(w http.ResponseWriter, r *http.Request) {
	trackingID := r.URL.Query().Get("OrderTrackingId")
	if trackingID == "" {
		a.redirectThankYou(w, r, "error", "")
		return
	}

	result, err := a.Reconciler.Reconcile(r.Context(), domain.ProviderPesapal, trackingID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			a.redirectThankYou(w, r, "not_found", trackingID)
		default:
			// Verification hiccup: the payment may well have succeeded, and
			// Pesapal's IPN will retry. Show pending, not failure.
			a.redirectThankYou(w, r, "pending", trackingID)
		}
		return
	}
	a.redirectThankYou(w, r, callbackStatus(result.Donation), trackingID)
}

// PesapalIPN handles Pesapal's server-to-server notification. The response
// mirrors the notification so Pesapal stops retrying once we report success.
func (a *App) PesapalIPN(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	trackingID := query.Get("OrderTrackingId")
	notificationType := query.Get("OrderNotificationType")
	if trackingID == "" && r.Body != nil {
		var body struct {
			OrderTrackingID       string `json:"OrderTrackingId"`
			OrderNotificationType string `json:"OrderNotificationType"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			trackingID = body.OrderTrackingID
			notificationType = body.OrderNotificationType
		}
	}
	if trackingID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "OrderTrackingId is required")
		return
	}

	ack := map[string]any{
		"orderNotificationType": notificationType,
		"orderTrackingId":       trackingID,
	}
	_, err := a.Reconciler.Reconcile(r.Context(), domain.ProviderPesapal, trackingID)
	switch {
	case err == nil:
		ack["status"] = http.StatusOK
		a.json(w, http.StatusOK, ack)
	case errors.Is(err, domain.ErrNotFound):
		ack["status"] = http.StatusNotFound
		a.json(w, http.StatusNotFound, ack)
	default:
		// Non-200 ack keeps Pesapal's retry mechanism going.
		ack["status"] = http.StatusInternalServerError
		a.json(w, http.StatusInternalServerError, ack)
	}
}

// PayGateCallback handles PayGate's payment confirmation. PayGate has no
// status-query API; the callback payload itself is the confirmation and is
// validated against the pending row.
func (a *App) PayGateCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	addressIn := query.Get("address_in")
	if addressIn == "" {
		a.redirectThankYou(w, r, "error", "")
		return
	}

	adapter, ok := a.Providers.Get(domain.ProviderPayGate)
	if !ok {
		a.redirectThankYou(w, r, "error", addressIn)
		return
	}
	paygate, ok := adapter.(*payment.PayGateProvider)
	if !ok {
		a.redirectThankYou(w, r, "error", addressIn)
		return
	}

	status, err := paygate.ParseCallback(query)
	if err != nil {
		a.Logger.Warn().Err(err).Str("address_in", addressIn).Msg("rejecting malformed paygate callback")
		a.redirectThankYou(w, r, "pending", addressIn)
		return
	}

	donation, err := a.Donations.GetByProviderRef(r.Context(), domain.ProviderPayGate, addressIn)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.redirectThankYou(w, r, "not_found", addressIn)
			return
		}
		a.redirectThankYou(w, r, "pending", addressIn)
		return
	}

	result, err := a.Reconciler.Apply(r.Context(), donation, status)
	if err != nil {
		a.redirectThankYou(w, r, "pending", addressIn)
		return
	}
	a.redirectThankYou(w, r, callbackStatus(result.Donation), addressIn)
}

// DonationStats serves the public fundraising widget: total raised, the
// configured goal and the recent non-anonymous donors.
func (a *App) DonationStats(w http.ResponseWriter, r *http.Request) {
	total, err := a.Donations.TotalRaised(r.Context())
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load stats")
		return
	}
	recent, err := a.Donations.ListRecentCompleted(r.Context(), a.RecentLimit)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load stats")
		return
	}

	goal := ""
	if setting, err := a.Settings.Get(r.Context(), "fundraising_goal"); err == nil {
		goal = setting.Value
	}

	titler := cases.Title(language.English)
	items := make([]map[string]any, 0, len(recent))
	for _, d := range recent {
		item := map[string]any{
			"donorName": titler.String(strings.ToLower(d.DonorName)),
			"amount":    d.Amount.StringFixed(2),
			"currency":  d.Currency,
			"tier":      d.Tier,
		}
		if d.Message != nil && *d.Message != "" {
			item["message"] = *d.Message
		}
		if d.PaidAt != nil {
			item["paidAt"] = d.PaidAt.UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}

	a.json(w, http.StatusOK, map[string]any{
		"totalRaised":     total.StringFixed(2),
		"goal":            goal,
		"recentDonations": items,
	})
}

func donationOutcome(d *domain.Donation, duplicate bool) map[string]any {
	out := map[string]any{
		"id":        d.ID,
		"status":    d.Status,
		"duplicate": duplicate,
	}
	if d.PaidAt != nil {
		out["paidAt"] = d.PaidAt.UTC().Format(time.RFC3339)
	}
	if d.ConfirmationCode != nil {
		out["confirmationCode"] = *d.ConfirmationCode
	}
	return out
}

func callbackStatus(d *domain.Donation) string {
	switch d.Status {
	case domain.DonationCompleted:
		return "completed"
	case domain.DonationFailed:
		return "failed"
	default:
		return "pending"
	}
}

// redirectThankYou sends the donor to the thank-you page with the outcome in
// the query string.
func (a *App) redirectThankYou(w http.ResponseWriter, r *http.Request, status, ref string) {
	target, err := url.Parse(a.ThankYouURL)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "bad thank-you url")
		return
	}
	q := target.Query()
	q.Set("status", status)
	if ref != "" {
		q.Set("ref", ref)
	}
	target.RawQuery = q.Encode()
	http.Redirect(w, r, target.String(), http.StatusSeeOther)
}
