package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"server/internal/domain"
)

func newPesapalTestServer(t *testing.T, ipnCalls *int, statusCode int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/Auth/RequestToken", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ConsumerKey string `json:"consumer_key"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ConsumerKey == "" {
			t.Errorf("token request missing consumer_key")
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "pesapal-token"})
	})
	mux.HandleFunc("/api/URLSetup/RegisterIPN", func(w http.ResponseWriter, r *http.Request) {
		*ipnCalls++
		_ = json.NewEncoder(w).Encode(map[string]string{"ipn_id": "ipn-1"})
	})
	mux.HandleFunc("/api/Transactions/SubmitOrderRequest", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer pesapal-token" {
			t.Errorf("unexpected authorization header: %q", got)
		}
		var body struct {
			NotificationID string `json:"notification_id"`
			BillingAddress struct {
				EmailAddress string `json:"email_address"`
			} `json:"billing_address"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode order request: %v", err)
		}
		if body.NotificationID != "ipn-1" {
			t.Errorf("notification_id = %q, want ipn-1", body.NotificationID)
		}
		if body.BillingAddress.EmailAddress == "" {
			t.Errorf("order request missing billing email")
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"order_tracking_id": "track-1",
			"redirect_url":      "https://pesapal.test/checkout/track-1",
		})
	})
	mux.HandleFunc("/api/Transactions/GetTransactionStatus", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("orderTrackingId") != "track-1" {
			t.Errorf("unexpected tracking id %q", r.URL.Query().Get("orderTrackingId"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"payment_status_description": "described",
			"confirmation_code":          "CONF-1",
			"amount":                     25.0,
			"status_code":                statusCode,
		})
	})
	return httptest.NewServer(mux)
}

func TestPesapalRequiresCredentials(t *testing.T) {
	if _, err := NewPesapalProvider(PesapalOptions{IPNURL: "https://example.test/ipn"}); err == nil {
		t.Fatal("expected error for missing credentials")
	}
	if _, err := NewPesapalProvider(PesapalOptions{ConsumerKey: "k", ConsumerSecret: "s"}); err == nil {
		t.Fatal("expected error for missing ipn url")
	}
}

func TestPesapalCreateOrderRegistersIPNOnce(t *testing.T) {
	var ipnCalls int
	srv := newPesapalTestServer(t, &ipnCalls, pesapalStatusCompleted)
	defer srv.Close()

	provider, err := NewPesapalProvider(PesapalOptions{
		ConsumerKey:    "k",
		ConsumerSecret: "s",
		BaseURL:        srv.URL,
		IPNURL:         "https://example.test/ipn",
	})
	if err != nil {
		t.Fatalf("NewPesapalProvider: %v", err)
	}

	req := CreateOrderRequest{
		Reference:  "donation-1",
		Amount:     decimal.NewFromInt(25),
		Currency:   "KES",
		DonorEmail: "donor@example.test",
	}
	res, err := provider.CreateOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if res.ProviderRef != "track-1" {
		t.Fatalf("ProviderRef = %q, want track-1", res.ProviderRef)
	}
	if res.RedirectURL != "https://pesapal.test/checkout/track-1" {
		t.Fatalf("RedirectURL = %q", res.RedirectURL)
	}

	if _, err := provider.CreateOrder(context.Background(), req); err != nil {
		t.Fatalf("second CreateOrder: %v", err)
	}
	if ipnCalls != 1 {
		t.Fatalf("IPN registered %d times, want 1", ipnCalls)
	}
}

func TestPesapalCreateOrderRequiresEmail(t *testing.T) {
	provider, err := NewPesapalProvider(PesapalOptions{
		ConsumerKey:    "k",
		ConsumerSecret: "s",
		IPNURL:         "https://example.test/ipn",
	})
	if err != nil {
		t.Fatalf("NewPesapalProvider: %v", err)
	}
	_, err = provider.CreateOrder(context.Background(), CreateOrderRequest{
		Reference: "donation-1",
		Amount:    decimal.NewFromInt(25),
		Currency:  "KES",
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestPesapalStatusMapping(t *testing.T) {
	tests := []struct {
		statusCode int
		want       Outcome
	}{
		{pesapalStatusCompleted, OutcomeCompleted},
		{pesapalStatusFailed, OutcomeFailed},
		{pesapalStatusReversed, OutcomeFailed},
		{pesapalStatusInvalid, OutcomePending},
	}
	for _, tt := range tests {
		var ipnCalls int
		srv := newPesapalTestServer(t, &ipnCalls, tt.statusCode)

		provider, err := NewPesapalProvider(PesapalOptions{
			ConsumerKey:    "k",
			ConsumerSecret: "s",
			BaseURL:        srv.URL,
			IPNURL:         "https://example.test/ipn",
		})
		if err != nil {
			t.Fatalf("NewPesapalProvider: %v", err)
		}
		status, err := provider.GetTransactionStatus(context.Background(), "track-1")
		if err != nil {
			t.Fatalf("GetTransactionStatus(code=%d): %v", tt.statusCode, err)
		}
		if status.Outcome != tt.want {
			t.Errorf("status code %d mapped to %q, want %q", tt.statusCode, status.Outcome, tt.want)
		}
		if status.Outcome == OutcomeCompleted && status.ConfirmationCode != "CONF-1" {
			t.Errorf("ConfirmationCode = %q, want CONF-1", status.ConfirmationCode)
		}
		srv.Close()
	}
}
