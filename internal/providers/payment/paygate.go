package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"server/internal/domain"
)

const paygateDefaultTimeout = 20 * time.Second

// PayGateOptions configures the PayGate.to wallet client.
type PayGateOptions struct {
	// WalletAddress is the merchant's receiving wallet.
	WalletAddress string
	// BaseURL defaults to https://api.paygate.to.
	BaseURL string
	// CheckoutBaseURL defaults to https://checkout.paygate.to.
	CheckoutBaseURL string
	// CallbackURL receives the payment confirmation for each generated
	// address.
	CallbackURL string
	// CheckoutProvider selects the on-ramp shown at checkout
	// (e.g. "moonpay"). Optional.
	CheckoutProvider string
	HTTPClient       *http.Client
}

// PayGateProvider drives the PayGate.to wallet flow. There is no
// authentication: each order derives a fresh payment address bound to our
// callback URL, and that address is the provider reference. PayGate exposes
// no status-query API, so completion is only ever reported through the
// callback; ParseCallback interprets its payload.
type PayGateProvider struct {
	walletAddress    string
	baseURL          string
	checkoutBaseURL  string
	callbackURL      string
	checkoutProvider string
	client           *http.Client
}

// NewPayGateProvider validates the wallet configuration and returns a client.
func NewPayGateProvider(opts PayGateOptions) (*PayGateProvider, error) {
	if strings.TrimSpace(opts.WalletAddress) == "" {
		return nil, errors.New("paygate wallet address is required")
	}
	if strings.TrimSpace(opts.CallbackURL) == "" {
		return nil, errors.New("paygate callback url is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.paygate.to"
	}
	checkoutBaseURL := strings.TrimRight(opts.CheckoutBaseURL, "/")
	if checkoutBaseURL == "" {
		checkoutBaseURL = "https://checkout.paygate.to"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: paygateDefaultTimeout}
	}
	return &PayGateProvider{
		walletAddress:    strings.TrimSpace(opts.WalletAddress),
		baseURL:          baseURL,
		checkoutBaseURL:  checkoutBaseURL,
		callbackURL:      opts.CallbackURL,
		checkoutProvider: opts.CheckoutProvider,
		client:           client,
	}, nil
}

func (p *PayGateProvider) Name() domain.PaymentProvider { return domain.ProviderPayGate }

type paygateWalletResponse struct {
	AddressIn      string `json:"address_in"`
	PolygonAddress string `json:"polygon_address_in"`
	CallbackURL    string `json:"callback_url"`
}

// CreateOrder provisions a payment address bound to the callback URL and
// builds the hosted checkout link.
func (p *PayGateProvider) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResponse, error) {
	// The donation id rides along on the callback so the confirmation can be
	// matched even if the address were ever re-reported.
	callback, err := appendQuery(p.callbackURL, url.Values{"reference": {req.Reference}})
	if err != nil {
		return nil, fmt.Errorf("%w: callback url: %v", domain.ErrPaymentCreation, err)
	}

	endpoint := fmt.Sprintf("%s/control/wallet.php?address=%s&callback=%s",
		p.baseURL, url.QueryEscape(p.walletAddress), url.QueryEscape(callback))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrPaymentCreation, err)
	}
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: paygate wallet request: %v", domain.ErrPaymentCreation, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: paygate status %d: %s", domain.ErrPaymentCreation, resp.StatusCode, readBodySnippet(resp.Body))
	}
	var out paygateWalletResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode wallet response: %v", domain.ErrPaymentCreation, err)
	}
	if out.AddressIn == "" {
		return nil, fmt.Errorf("%w: paygate wallet response missing address_in", domain.ErrPaymentCreation)
	}

	checkout := url.Values{
		"address":  {out.AddressIn},
		"amount":   {req.Amount.StringFixed(2)},
		"currency": {req.Currency},
	}
	if req.DonorEmail != "" {
		checkout.Set("email", req.DonorEmail)
	}
	if p.checkoutProvider != "" {
		checkout.Set("provider", p.checkoutProvider)
	}
	return &CreateOrderResponse{
		ProviderRef: out.AddressIn,
		RedirectURL: fmt.Sprintf("%s/process-payment.php?%s", p.checkoutBaseURL, checkout.Encode()),
	}, nil
}

// GetTransactionStatus always fails: PayGate has no status-query endpoint.
// The callback payload is the only confirmation channel; see ParseCallback.
func (p *PayGateProvider) GetTransactionStatus(_ context.Context, _ string) (*TransactionStatus, error) {
	return nil, fmt.Errorf("%w: paygate exposes no status query; confirmation arrives via callback", domain.ErrVerification)
}

// ParseCallback interprets a PayGate confirmation callback. PayGate only
// calls back once the payment settled, so a payload carrying a positive
// value_coin is a completion.
func (p *PayGateProvider) ParseCallback(query url.Values) (*TransactionStatus, error) {
	rawValue := query.Get("value_coin")
	if rawValue == "" {
		return nil, fmt.Errorf("%w: paygate callback missing value_coin", domain.ErrVerification)
	}
	amount, err := decimal.NewFromString(rawValue)
	if err != nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: paygate callback value_coin %q invalid", domain.ErrVerification, rawValue)
	}
	return &TransactionStatus{
		Outcome:          OutcomeCompleted,
		ConfirmationCode: query.Get("txid_in"),
		Amount:           amount,
		RawStatus:        "paid",
	}, nil
}

func appendQuery(rawURL string, extra url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for key, values := range extra {
		for _, v := range values {
			q.Set(key, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

var _ Provider = (*PayGateProvider)(nil)
