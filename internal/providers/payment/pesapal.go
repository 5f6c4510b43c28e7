package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"server/internal/domain"
)

const pesapalDefaultTimeout = 20 * time.Second

// Pesapal GetTransactionStatus status codes.
const (
	pesapalStatusInvalid   = 0
	pesapalStatusCompleted = 1
	pesapalStatusFailed    = 2
	pesapalStatusReversed  = 3
)

// PesapalOptions configures the Pesapal v3 API client.
type PesapalOptions struct {
	ConsumerKey    string
	ConsumerSecret string
	// BaseURL defaults to the sandbox host; point it at
	// https://pay.pesapal.com/v3 for live payments.
	BaseURL string
	// CallbackURL is where Pesapal redirects the donor after checkout.
	CallbackURL string
	// IPNURL receives Pesapal's server-to-server notification. Registered
	// once on first order creation.
	IPNURL     string
	HTTPClient *http.Client
}

// PesapalProvider drives the Pesapal v3 order API. Completion is confirmed
// out-of-band: the donor is redirected to Pesapal, and the callback/IPN
// carries an order tracking id that must be verified with
// GetTransactionStatus before the donation is finalized.
//
// Missing credentials fail closed everywhere: no order is created and no
// verification passes without a token.
type PesapalProvider struct {
	consumerKey    string
	consumerSecret string
	baseURL        string
	callbackURL    string
	ipnURL         string
	client         *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
	ipnID       string
}

// NewPesapalProvider validates credentials and returns a configured client.
func NewPesapalProvider(opts PesapalOptions) (*PesapalProvider, error) {
	if strings.TrimSpace(opts.ConsumerKey) == "" || strings.TrimSpace(opts.ConsumerSecret) == "" {
		return nil, errors.New("pesapal consumer key and secret are required")
	}
	if strings.TrimSpace(opts.IPNURL) == "" {
		return nil, errors.New("pesapal ipn url is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://cybqa.pesapal.com/pesapalv3"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: pesapalDefaultTimeout}
	}
	return &PesapalProvider{
		consumerKey:    strings.TrimSpace(opts.ConsumerKey),
		consumerSecret: strings.TrimSpace(opts.ConsumerSecret),
		baseURL:        baseURL,
		callbackURL:    opts.CallbackURL,
		ipnURL:         opts.IPNURL,
		client:         client,
	}, nil
}

func (p *PesapalProvider) Name() domain.PaymentProvider { return domain.ProviderPesapal }

type pesapalTokenRequest struct {
	ConsumerKey    string `json:"consumer_key"`
	ConsumerSecret string `json:"consumer_secret"`
}

type pesapalTokenResponse struct {
	Token      string `json:"token"`
	ExpiryDate string `json:"expiryDate"`
	Error      *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type pesapalIPNRequest struct {
	URL              string `json:"url"`
	NotificationType string `json:"ipn_notification_type"`
}

type pesapalIPNResponse struct {
	IPNID string `json:"ipn_id"`
}

type pesapalOrderRequest struct {
	ID             string                `json:"id"`
	Currency       string                `json:"currency"`
	Amount         float64               `json:"amount"`
	Description    string                `json:"description"`
	CallbackURL    string                `json:"callback_url"`
	NotificationID string                `json:"notification_id"`
	BillingAddress pesapalBillingAddress `json:"billing_address"`
}

type pesapalBillingAddress struct {
	EmailAddress string `json:"email_address"`
	FirstName    string `json:"first_name,omitempty"`
}

type pesapalOrderResponse struct {
	OrderTrackingID string `json:"order_tracking_id"`
	RedirectURL     string `json:"redirect_url"`
	Error           *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type pesapalStatusResponse struct {
	PaymentStatusDescription string  `json:"payment_status_description"`
	ConfirmationCode         string  `json:"confirmation_code"`
	Amount                   float64 `json:"amount"`
	StatusCode               int     `json:"status_code"`
}

// token returns a cached bearer token, refreshing when expired. Pesapal
// tokens live five minutes.
func (p *PesapalProvider) token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.accessToken != "" && time.Now().Before(p.tokenExpiry) {
		return p.accessToken, nil
	}

	var out pesapalTokenResponse
	err := p.doJSON(ctx, "/api/Auth/RequestToken", "", pesapalTokenRequest{
		ConsumerKey:    p.consumerKey,
		ConsumerSecret: p.consumerSecret,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.Error != nil {
		return "", fmt.Errorf("pesapal auth: %s %s", out.Error.Code, out.Error.Message)
	}
	if out.Token == "" {
		return "", errors.New("pesapal token response missing token")
	}
	p.accessToken = out.Token
	p.tokenExpiry = time.Now().Add(4 * time.Minute)
	return p.accessToken, nil
}

// ensureIPN registers the notification URL once and caches the resulting id.
func (p *PesapalProvider) ensureIPN(ctx context.Context, token string) (string, error) {
	p.mu.Lock()
	cached := p.ipnID
	p.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	var out pesapalIPNResponse
	err := p.doJSON(ctx, "/api/URLSetup/RegisterIPN", token, pesapalIPNRequest{
		URL:              p.ipnURL,
		NotificationType: "GET",
	}, &out)
	if err != nil {
		return "", err
	}
	if out.IPNID == "" {
		return "", errors.New("pesapal ipn registration returned no id")
	}
	p.mu.Lock()
	p.ipnID = out.IPNID
	p.mu.Unlock()
	return out.IPNID, nil
}

// CreateOrder submits an order request and returns the tracking id plus the
// hosted checkout URL.
func (p *PesapalProvider) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResponse, error) {
	if strings.TrimSpace(req.DonorEmail) == "" {
		return nil, fmt.Errorf("%w: pesapal requires a donor email", domain.ErrValidation)
	}
	token, err := p.token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPaymentCreation, err)
	}
	ipnID, err := p.ensureIPN(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPaymentCreation, err)
	}

	callbackURL := p.callbackURL
	if callbackURL == "" {
		callbackURL = req.ReturnURL
	}
	amount, _ := req.Amount.Round(2).Float64()
	var out pesapalOrderResponse
	err = p.doJSON(ctx, "/api/Transactions/SubmitOrderRequest", token, pesapalOrderRequest{
		ID:             req.Reference,
		Currency:       req.Currency,
		Amount:         amount,
		Description:    req.Description,
		CallbackURL:    callbackURL,
		NotificationID: ipnID,
		BillingAddress: pesapalBillingAddress{
			EmailAddress: req.DonorEmail,
			FirstName:    req.DonorName,
		},
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPaymentCreation, err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("%w: pesapal: %s %s", domain.ErrPaymentCreation, out.Error.Code, out.Error.Message)
	}
	if out.OrderTrackingID == "" || out.RedirectURL == "" {
		return nil, fmt.Errorf("%w: pesapal order response incomplete", domain.ErrPaymentCreation)
	}
	return &CreateOrderResponse{
		ProviderRef: out.OrderTrackingID,
		RedirectURL: out.RedirectURL,
	}, nil
}

// GetTransactionStatus verifies a tracking id with Pesapal.
func (p *PesapalProvider) GetTransactionStatus(ctx context.Context, providerRef string) (*TransactionStatus, error) {
	token, err := p.token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrVerification, err)
	}

	endpoint := fmt.Sprintf("%s/api/Transactions/GetTransactionStatus?orderTrackingId=%s", p.baseURL, url.QueryEscape(providerRef))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrVerification, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: pesapal status request: %v", domain.ErrVerification, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: pesapal status %d: %s", domain.ErrVerification, resp.StatusCode, readBodySnippet(resp.Body))
	}
	var out pesapalStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode status response: %v", domain.ErrVerification, err)
	}

	status := &TransactionStatus{
		ConfirmationCode: out.ConfirmationCode,
		Amount:           decimal.NewFromFloat(out.Amount),
		RawStatus:        out.PaymentStatusDescription,
	}
	switch out.StatusCode {
	case pesapalStatusCompleted:
		status.Outcome = OutcomeCompleted
	case pesapalStatusFailed, pesapalStatusReversed:
		status.Outcome = OutcomeFailed
	default:
		// Invalid or unknown codes stay non-terminal so the provider can
		// retry its notification.
		status.Outcome = OutcomePending
	}
	return status, nil
}

func (p *PesapalProvider) doJSON(ctx context.Context, path, token string, payload, out any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("pesapal request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("pesapal status %d: %s", resp.StatusCode, readBodySnippet(resp.Body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

var _ Provider = (*PesapalProvider)(nil)
