package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentProvider enumerates supported payment providers.
type PaymentProvider string

const (
	ProviderPayPal  PaymentProvider = "paypal"
	ProviderPesapal PaymentProvider = "pesapal"
	ProviderPayGate PaymentProvider = "paygate"
)

// Valid reports whether p is a known provider.
func (p PaymentProvider) Valid() bool {
	switch p {
	case ProviderPayPal, ProviderPesapal, ProviderPayGate:
		return true
	}
	return false
}

// DonationStatus enumerates donation lifecycle states.
type DonationStatus string

const (
	DonationPending   DonationStatus = "pending"
	DonationCompleted DonationStatus = "completed"
	DonationFailed    DonationStatus = "failed"
)

// Terminal reports whether the status is final. Terminal donations are never
// mutated again.
func (s DonationStatus) Terminal() bool {
	return s == DonationCompleted || s == DonationFailed
}

// DonationTier enumerates supporter tiers.
type DonationTier string

const (
	TierOneTime   DonationTier = "one_time"
	TierSupporter DonationTier = "supporter"
	TierInnovator DonationTier = "innovator"
	TierPioneer   DonationTier = "pioneer"
	TierVisionary DonationTier = "visionary"
)

// Valid reports whether t is a known tier.
func (t DonationTier) Valid() bool {
	switch t {
	case TierOneTime, TierSupporter, TierInnovator, TierPioneer, TierVisionary:
		return true
	}
	return false
}

// Donation represents one contribution attempt and its outcome. Rows are a
// financial record: amount is immutable after creation and donations are
// never deleted.
type Donation struct {
	ID               string
	Amount           decimal.Decimal
	Currency         string
	DonorName        string
	DonorEmail       *string
	Message          *string
	Anonymous        bool
	Tier             DonationTier
	Status           DonationStatus
	Provider         PaymentProvider
	ProviderRef      string
	ConfirmationCode *string
	CreatedAt        time.Time
	PaidAt           *time.Time
}
