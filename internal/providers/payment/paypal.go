package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"server/internal/domain"
)

const paypalDefaultTimeout = 20 * time.Second

// PayPalOptions configures the PayPal REST client.
type PayPalOptions struct {
	ClientID     string
	ClientSecret string
	// BaseURL defaults to the sandbox host; point it at
	// https://api-m.paypal.com for live payments.
	BaseURL    string
	HTTPClient *http.Client
}

// PayPalProvider drives the PayPal Orders v2 API. Capture is synchronous:
// once the donor approves in the PayPal SDK, CaptureOrder settles the payment
// in the same call, so there is no out-of-band verification step.
type PayPalProvider struct {
	clientID     string
	clientSecret string
	baseURL      string
	client       *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewPayPalProvider validates credentials and returns a configured client.
func NewPayPalProvider(opts PayPalOptions) (*PayPalProvider, error) {
	if strings.TrimSpace(opts.ClientID) == "" || strings.TrimSpace(opts.ClientSecret) == "" {
		return nil, errors.New("paypal client id and secret are required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api-m.sandbox.paypal.com"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: paypalDefaultTimeout}
	}
	return &PayPalProvider{
		clientID:     strings.TrimSpace(opts.ClientID),
		clientSecret: strings.TrimSpace(opts.ClientSecret),
		baseURL:      baseURL,
		client:       client,
	}, nil
}

func (p *PayPalProvider) Name() domain.PaymentProvider { return domain.ProviderPayPal }

type paypalTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type paypalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalPurchaseUnit struct {
	ReferenceID string       `json:"reference_id,omitempty"`
	Description string       `json:"description,omitempty"`
	Amount      paypalAmount `json:"amount"`
}

type paypalOrderRequest struct {
	Intent             string               `json:"intent"`
	PurchaseUnits      []paypalPurchaseUnit `json:"purchase_units"`
	ApplicationContext *paypalAppContext    `json:"application_context,omitempty"`
}

type paypalAppContext struct {
	ReturnURL string `json:"return_url,omitempty"`
}

type paypalLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type paypalOrderResponse struct {
	ID            string       `json:"id"`
	Status        string       `json:"status"`
	Links         []paypalLink `json:"links"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string       `json:"id"`
				Status string       `json:"status"`
				Amount paypalAmount `json:"amount"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

// token returns a cached client-credentials token, refreshing when expired.
func (p *PayPalProvider) token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.accessToken != "" && time.Now().Before(p.tokenExpiry) {
		return p.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(p.clientID, p.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("paypal token request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("paypal token status %d: %s", resp.StatusCode, readBodySnippet(resp.Body))
	}
	var out paypalTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if out.AccessToken == "" {
		return "", errors.New("paypal token response missing access_token")
	}
	p.accessToken = out.AccessToken
	// Refresh a minute early so in-flight calls never carry a stale token.
	p.tokenExpiry = time.Now().Add(time.Duration(out.ExpiresIn)*time.Second - time.Minute)
	return p.accessToken, nil
}

// CreateOrder opens a CAPTURE-intent order and returns the approve link.
func (p *PayPalProvider) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResponse, error) {
	token, err := p.token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPaymentCreation, err)
	}

	payload := paypalOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []paypalPurchaseUnit{{
			ReferenceID: req.Reference,
			Description: req.Description,
			Amount: paypalAmount{
				CurrencyCode: req.Currency,
				Value:        req.Amount.StringFixed(2),
			},
		}},
	}
	if req.ReturnURL != "" {
		payload.ApplicationContext = &paypalAppContext{ReturnURL: req.ReturnURL}
	}

	var out paypalOrderResponse
	if err := p.doJSON(ctx, http.MethodPost, "/v2/checkout/orders", token, payload, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPaymentCreation, err)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("%w: paypal order response missing id", domain.ErrPaymentCreation)
	}

	res := &CreateOrderResponse{ProviderRef: out.ID}
	for _, link := range out.Links {
		if link.Rel == "approve" {
			res.RedirectURL = link.Href
			break
		}
	}
	return res, nil
}

// CaptureOrder settles an approved order. Called after the PayPal client SDK
// reports donor approval.
func (p *PayPalProvider) CaptureOrder(ctx context.Context, orderID string) (*TransactionStatus, error) {
	token, err := p.token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrVerification, err)
	}
	var out paypalOrderResponse
	path := fmt.Sprintf("/v2/checkout/orders/%s/capture", url.PathEscape(orderID))
	if err := p.doJSON(ctx, http.MethodPost, path, token, struct{}{}, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrVerification, err)
	}
	return p.statusFromOrder(&out), nil
}

// GetTransactionStatus reads the order back from PayPal.
func (p *PayPalProvider) GetTransactionStatus(ctx context.Context, providerRef string) (*TransactionStatus, error) {
	token, err := p.token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrVerification, err)
	}
	var out paypalOrderResponse
	path := "/v2/checkout/orders/" + url.PathEscape(providerRef)
	if err := p.doJSON(ctx, http.MethodGet, path, token, nil, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrVerification, err)
	}
	return p.statusFromOrder(&out), nil
}

func (p *PayPalProvider) statusFromOrder(order *paypalOrderResponse) *TransactionStatus {
	status := &TransactionStatus{RawStatus: order.Status}
	switch order.Status {
	case "COMPLETED":
		status.Outcome = OutcomeCompleted
	case "VOIDED":
		status.Outcome = OutcomeFailed
	default:
		// CREATED, SAVED, APPROVED, PAYER_ACTION_REQUIRED: not settled yet.
		status.Outcome = OutcomePending
	}
	for _, unit := range order.PurchaseUnits {
		for _, capture := range unit.Payments.Captures {
			status.ConfirmationCode = capture.ID
			if amount, err := decimal.NewFromString(capture.Amount.Value); err == nil {
				status.Amount = amount
			}
		}
	}
	return status
}

func (p *PayPalProvider) doJSON(ctx context.Context, method, path, token string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(payload); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = &buf
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("paypal request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("paypal status %d: %s", resp.StatusCode, readBodySnippet(resp.Body))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// readBodySnippet returns a bounded slice of an error response body so
// provider error payloads reach the logs without flooding them.
func readBodySnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(b))
}

var _ Provider = (*PayPalProvider)(nil)
