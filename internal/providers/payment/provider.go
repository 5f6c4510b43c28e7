package payment

import (
	"context"

	"github.com/shopspring/decimal"

	"server/internal/domain"
)

// Outcome is the provider-reported terminal interpretation of a transaction.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	// OutcomePending covers every non-terminal or ambiguous provider status.
	// Callers must not write a terminal donation state for it.
	OutcomePending Outcome = "pending"
)

// CreateOrderRequest carries everything a provider needs to open a checkout
// session.
type CreateOrderRequest struct {
	// Reference is the merchant-side reference (the donation id).
	Reference   string
	Amount      decimal.Decimal
	Currency    string
	Description string
	DonorName   string
	DonorEmail  string
	// ReturnURL is where the provider sends the donor after checkout.
	ReturnURL string
}

// CreateOrderResponse identifies the provider-side order.
type CreateOrderResponse struct {
	// ProviderRef is the provider-assigned order/tracking reference. It is
	// the key the callback will carry back.
	ProviderRef string
	// RedirectURL is where the donor must be sent to pay. Empty for
	// providers whose client SDK drives approval itself (PayPal).
	RedirectURL string
}

// TransactionStatus is the result of a status-verification call.
type TransactionStatus struct {
	Outcome          Outcome
	ConfirmationCode string
	// Amount is the provider-reported amount, zero when not reported.
	Amount decimal.Decimal
	// RawStatus is the provider's own status string, kept for logs.
	RawStatus string
}

// Provider hides provider-specific authentication and API shape behind order
// creation and status verification.
type Provider interface {
	Name() domain.PaymentProvider
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResponse, error)
	GetTransactionStatus(ctx context.Context, providerRef string) (*TransactionStatus, error)
}

// Registry resolves providers by name.
type Registry struct {
	providers map[domain.PaymentProvider]Provider
}

// NewRegistry builds a registry from the configured providers.
func NewRegistry(providers ...Provider) *Registry {
	m := make(map[domain.PaymentProvider]Provider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return &Registry{providers: m}
}

// Get returns the provider registered under name.
func (r *Registry) Get(name domain.PaymentProvider) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}
