package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"server/internal/domain"
	"server/internal/providers/payment"
	"server/internal/reconcile"
)

func newTestApp(repo *fakeDonationRepo, settings *fakeSettingRepo, providers ...payment.Provider) *App {
	registry := payment.NewRegistry(providers...)
	return &App{
		Logger:          zerolog.Nop(),
		Donations:       repo,
		Settings:        settings,
		Providers:       registry,
		Reconciler:      reconcile.New(repo, registry, zerolog.Nop()),
		ThankYouURL:     "https://example.test/thank-you",
		DefaultCurrency: "USD",
		RecentLimit:     5,
	}
}

func postJSON(t *testing.T, handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestDonationsCreateStagesPendingRow(t *testing.T) {
	repo := newFakeDonationRepo()
	provider := &fakeProvider{name: domain.ProviderPesapal}
	app := newTestApp(repo, newFakeSettingRepo(), provider)

	rec := postJSON(t, app.DonationsCreate, "/v1/donations", `{
		"amount": 25.50,
		"donorName": "Ada Lovelace",
		"donorEmail": "ada@example.test",
		"provider": "pesapal",
		"tier": "supporter"
	}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var res struct {
		ID          string `json:"id"`
		Provider    string `json:"provider"`
		ProviderRef string `json:"providerRef"`
		RedirectURL string `json:"redirectUrl"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.RedirectURL == "" {
		t.Fatal("response missing redirectUrl")
	}

	donation, err := repo.GetByProviderRef(context.Background(), domain.ProviderPesapal, res.ProviderRef)
	if err != nil {
		t.Fatalf("pending row not persisted: %v", err)
	}
	if donation.Status != domain.DonationPending {
		t.Fatalf("Status = %q, want pending", donation.Status)
	}
	if !donation.Amount.Equal(decimal.RequireFromString("25.50")) {
		t.Fatalf("Amount = %s, want 25.50", donation.Amount)
	}
	if donation.Currency != "USD" {
		t.Fatalf("Currency = %q, want default USD", donation.Currency)
	}
	if donation.Tier != domain.TierSupporter {
		t.Fatalf("Tier = %q, want supporter", donation.Tier)
	}
	if provider.lastOrder.Reference != res.ID {
		t.Fatalf("order reference = %q, want donation id %q", provider.lastOrder.Reference, res.ID)
	}
}

func TestDonationsCreateValidation(t *testing.T) {
	app := newTestApp(newFakeDonationRepo(), newFakeSettingRepo(), &fakeProvider{name: domain.ProviderPesapal})

	tests := []struct {
		name string
		body string
	}{
		{"zero amount", `{"amount": 0, "donorName": "Ada", "provider": "pesapal"}`},
		{"negative amount", `{"amount": -5, "donorName": "Ada", "provider": "pesapal"}`},
		{"missing donor name", `{"amount": 10, "provider": "pesapal"}`},
		{"bad email", `{"amount": 10, "donorName": "Ada", "donorEmail": "nope", "provider": "pesapal"}`},
		{"bad email with at sign", `{"amount": 10, "donorName": "Ada", "donorEmail": "@example.test", "provider": "pesapal"}`},
		{"unknown tier", `{"amount": 10, "donorName": "Ada", "provider": "pesapal", "tier": "platinum"}`},
		{"unknown provider", `{"amount": 10, "donorName": "Ada", "provider": "stripe"}`},
		{"not json", `amount=10`},
	}
	for _, tt := range tests {
		rec := postJSON(t, app.DonationsCreate, "/v1/donations", tt.body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tt.name, rec.Code)
		}
	}
}

func TestDonationsCreateUnconfiguredProvider(t *testing.T) {
	// Registry empty: a valid provider name still cannot be served.
	app := newTestApp(newFakeDonationRepo(), newFakeSettingRepo())

	rec := postJSON(t, app.DonationsCreate, "/v1/donations", `{"amount": 10, "donorName": "Ada", "provider": "paypal"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "provider_unavailable") {
		t.Fatalf("body = %s, want provider_unavailable", rec.Body.String())
	}
}

func TestDonationsCreateProviderFailure(t *testing.T) {
	repo := newFakeDonationRepo()
	provider := &fakeProvider{name: domain.ProviderPesapal, orderErr: domain.ErrPaymentCreation}
	app := newTestApp(repo, newFakeSettingRepo(), provider)

	rec := postJSON(t, app.DonationsCreate, "/v1/donations", `{"amount": 10, "donorName": "Ada", "provider": "pesapal"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if len(repo.donations) != 0 {
		t.Fatal("no donation row may exist when order creation failed")
	}
}

func TestDonationsCreateDuplicateProviderRef(t *testing.T) {
	repo := newFakeDonationRepo()
	repo.createErr = domain.ErrDuplicateOperation
	app := newTestApp(repo, newFakeSettingRepo(), &fakeProvider{name: domain.ProviderPesapal})

	rec := postJSON(t, app.DonationsCreate, "/v1/donations", `{"amount": 10, "donorName": "Ada", "provider": "pesapal"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "duplicate") {
		t.Fatalf("body = %s, want duplicate slug", rec.Body.String())
	}
}

func TestPesapalCallbackRedirectsWithOutcome(t *testing.T) {
	donation := &domain.Donation{
		ID:          "don-1",
		Amount:      decimal.NewFromInt(25),
		Currency:    "USD",
		DonorName:   "Ada",
		Status:      domain.DonationPending,
		Provider:    domain.ProviderPesapal,
		ProviderRef: "track-1",
	}
	repo := newFakeDonationRepo(donation)
	provider := &fakeProvider{
		name:   domain.ProviderPesapal,
		status: &payment.TransactionStatus{Outcome: payment.OutcomeCompleted, ConfirmationCode: "CONF-1"},
	}
	app := newTestApp(repo, newFakeSettingRepo(), provider)

	req := httptest.NewRequest(http.MethodGet, "/v1/donations/pesapal/callback?OrderTrackingId=track-1", nil)
	rec := httptest.NewRecorder()
	app.PesapalCallback(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	location, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("Location not a URL: %v", err)
	}
	if location.Query().Get("status") != "completed" {
		t.Fatalf("redirect status = %q, want completed", location.Query().Get("status"))
	}
	if location.Query().Get("ref") != "track-1" {
		t.Fatalf("redirect ref = %q, want track-1", location.Query().Get("ref"))
	}

	fresh, _ := repo.GetByID(context.Background(), "don-1")
	if fresh.Status != domain.DonationCompleted {
		t.Fatalf("Status = %q, want completed", fresh.Status)
	}
}

func TestPesapalCallbackUnknownTracking(t *testing.T) {
	app := newTestApp(newFakeDonationRepo(), newFakeSettingRepo(), &fakeProvider{name: domain.ProviderPesapal})

	req := httptest.NewRequest(http.MethodGet, "/v1/donations/pesapal/callback?OrderTrackingId=missing", nil)
	rec := httptest.NewRecorder()
	app.PesapalCallback(rec, req)

	location, _ := url.Parse(rec.Header().Get("Location"))
	if location.Query().Get("status") != "not_found" {
		t.Fatalf("redirect status = %q, want not_found", location.Query().Get("status"))
	}
}

func TestPesapalIPNAckStatus(t *testing.T) {
	donation := &domain.Donation{
		ID:          "don-1",
		Amount:      decimal.NewFromInt(25),
		Status:      domain.DonationPending,
		Provider:    domain.ProviderPesapal,
		ProviderRef: "track-1",
	}
	repo := newFakeDonationRepo(donation)
	provider := &fakeProvider{
		name:   domain.ProviderPesapal,
		status: &payment.TransactionStatus{Outcome: payment.OutcomeCompleted},
	}
	app := newTestApp(repo, newFakeSettingRepo(), provider)

	req := httptest.NewRequest(http.MethodGet, "/v1/donations/pesapal/ipn?OrderTrackingId=track-1&OrderNotificationType=IPNCHANGE", nil)
	rec := httptest.NewRecorder()
	app.PesapalIPN(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	// Same notification again: still a 200 ack, still one completion.
	rec = httptest.NewRecorder()
	app.PesapalIPN(rec, httptest.NewRequest(http.MethodGet, "/v1/donations/pesapal/ipn?OrderTrackingId=track-1&OrderNotificationType=IPNCHANGE", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("duplicate ack status = %d, want 200", rec.Code)
	}

	// Unknown tracking id gets a 404 ack.
	rec = httptest.NewRecorder()
	app.PesapalIPN(rec, httptest.NewRequest(http.MethodGet, "/v1/donations/pesapal/ipn?OrderTrackingId=missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown ack status = %d, want 404", rec.Code)
	}
}

func TestPayGateCallbackCompletesDonation(t *testing.T) {
	donation := &domain.Donation{
		ID:          "don-1",
		Amount:      decimal.RequireFromString("10.50"),
		Currency:    "USD",
		DonorName:   "Ada",
		Status:      domain.DonationPending,
		Provider:    domain.ProviderPayGate,
		ProviderRef: "0xADDR",
	}
	repo := newFakeDonationRepo(donation)
	paygate, err := payment.NewPayGateProvider(payment.PayGateOptions{
		WalletAddress: "0xWALLET",
		CallbackURL:   "https://example.test/v1/donations/paygate/callback",
	})
	if err != nil {
		t.Fatalf("NewPayGateProvider: %v", err)
	}
	app := newTestApp(repo, newFakeSettingRepo(), paygate)

	req := httptest.NewRequest(http.MethodGet, "/v1/donations/paygate/callback?address_in=0xADDR&value_coin=10.50&txid_in=0xTX", nil)
	rec := httptest.NewRecorder()
	app.PayGateCallback(rec, req)

	location, _ := url.Parse(rec.Header().Get("Location"))
	if location.Query().Get("status") != "completed" {
		t.Fatalf("redirect status = %q, want completed", location.Query().Get("status"))
	}
	fresh, _ := repo.GetByID(context.Background(), "don-1")
	if fresh.Status != domain.DonationCompleted {
		t.Fatalf("Status = %q, want completed", fresh.Status)
	}
	if fresh.ConfirmationCode == nil || *fresh.ConfirmationCode != "0xTX" {
		t.Fatalf("ConfirmationCode = %v, want 0xTX", fresh.ConfirmationCode)
	}
}

func TestPayGateCallbackRejectsMalformedPayload(t *testing.T) {
	donation := &domain.Donation{
		ID:          "don-1",
		Amount:      decimal.NewFromInt(10),
		Status:      domain.DonationPending,
		Provider:    domain.ProviderPayGate,
		ProviderRef: "0xADDR",
	}
	repo := newFakeDonationRepo(donation)
	paygate, err := payment.NewPayGateProvider(payment.PayGateOptions{
		WalletAddress: "0xWALLET",
		CallbackURL:   "https://example.test/cb",
	})
	if err != nil {
		t.Fatalf("NewPayGateProvider: %v", err)
	}
	app := newTestApp(repo, newFakeSettingRepo(), paygate)

	req := httptest.NewRequest(http.MethodGet, "/v1/donations/paygate/callback?address_in=0xADDR&value_coin=0", nil)
	rec := httptest.NewRecorder()
	app.PayGateCallback(rec, req)

	location, _ := url.Parse(rec.Header().Get("Location"))
	if location.Query().Get("status") != "pending" {
		t.Fatalf("redirect status = %q, want pending", location.Query().Get("status"))
	}
	fresh, _ := repo.GetByID(context.Background(), "don-1")
	if fresh.Status != domain.DonationPending {
		t.Fatalf("Status = %q, want pending", fresh.Status)
	}
}

func TestDonationStats(t *testing.T) {
	paidAt := time.Now()
	msg := "Go teams go"
	repo := newFakeDonationRepo(
		&domain.Donation{
			ID: "d1", Amount: decimal.NewFromInt(100), Currency: "USD",
			DonorName: "ada lovelace", Status: domain.DonationCompleted,
			Provider: domain.ProviderPayPal, ProviderRef: "r1",
			Tier: domain.TierInnovator, Message: &msg, PaidAt: &paidAt,
		},
		&domain.Donation{
			ID: "d2", Amount: decimal.RequireFromString("50.25"), Currency: "USD",
			DonorName: "grace hopper", Status: domain.DonationCompleted, Anonymous: true,
			Provider: domain.ProviderPesapal, ProviderRef: "r2",
		},
		&domain.Donation{
			ID: "d3", Amount: decimal.NewFromInt(999), Currency: "USD",
			DonorName: "pending person", Status: domain.DonationPending,
			Provider: domain.ProviderPesapal, ProviderRef: "r3",
		},
	)
	settings := newFakeSettingRepo(domain.Setting{
		Key: "fundraising_goal", Value: "10000", Type: domain.SettingNumber, Public: true,
	})
	app := newTestApp(repo, settings)

	req := httptest.NewRequest(http.MethodGet, "/v1/donations/stats", nil)
	rec := httptest.NewRecorder()
	app.DonationStats(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var res struct {
		TotalRaised     string `json:"totalRaised"`
		Goal            string `json:"goal"`
		RecentDonations []struct {
			DonorName string `json:"donorName"`
			Amount    string `json:"amount"`
		} `json:"recentDonations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	// Anonymous and pending donations count toward nothing visible except the
	// completed total.
	if res.TotalRaised != "150.25" {
		t.Fatalf("totalRaised = %q, want 150.25", res.TotalRaised)
	}
	if res.Goal != "10000" {
		t.Fatalf("goal = %q, want 10000", res.Goal)
	}
	if len(res.RecentDonations) != 1 {
		t.Fatalf("recentDonations = %d entries, want 1", len(res.RecentDonations))
	}
	if res.RecentDonations[0].DonorName != "Ada Lovelace" {
		t.Fatalf("donorName = %q, want title-cased Ada Lovelace", res.RecentDonations[0].DonorName)
	}
	if res.RecentDonations[0].Amount != "100.00" {
		t.Fatalf("amount = %q, want 100.00", res.RecentDonations[0].Amount)
	}
}

func TestPayPalCaptureNotFound(t *testing.T) {
	app := newTestApp(newFakeDonationRepo(), newFakeSettingRepo(), &fakeProvider{name: domain.ProviderPayPal})

	rec := postJSON(t, app.PayPalCapture, "/v1/donations/paypal/capture", `{"orderId": "missing"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
