// Package reconcile finalizes donation outcomes reported by payment
// providers. A donation reaches a terminal state exactly once no matter how
// many times a provider delivers the same callback.
package reconcile

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/providers/payment"
)

// Capturer is implemented by providers whose settlement is synchronous at
// approval time (PayPal).
type Capturer interface {
	CaptureOrder(ctx context.Context, orderID string) (*payment.TransactionStatus, error)
}

// Result reports what reconciliation did.
type Result struct {
	Donation *domain.Donation
	// Duplicate is set when the donation was already terminal: the delivery
	// was redundant and nothing was mutated.
	Duplicate bool
	// Settled is set when the donation is terminal after this call.
	Settled bool
}

// Reconciler matches provider-reported outcomes to pending donations.
type Reconciler struct {
	donations domain.DonationRepository
	providers *payment.Registry
	logger    zerolog.Logger
}

// New builds a Reconciler.
func New(donations domain.DonationRepository, providers *payment.Registry, logger zerolog.Logger) *Reconciler {
	return &Reconciler{donations: donations, providers: providers, logger: logger}
}

// Reconcile verifies the transaction behind a provider callback and applies
// the outcome. Verification-call failures leave the donation pending so the
// provider's own retry mechanism can try again.
func (r *Reconciler) Reconcile(ctx context.Context, provider domain.PaymentProvider, providerRef string) (*Result, error) {
	donation, err := r.donations.GetByProviderRef(ctx, provider, providerRef)
	if err != nil {
		return nil, err
	}
	if donation.Status.Terminal() {
		return &Result{Donation: donation, Duplicate: true, Settled: true}, nil
	}

	adapter, ok := r.providers.Get(provider)
	if !ok {
		return nil, fmt.Errorf("%w: provider %s not configured", domain.ErrVerification, provider)
	}
	status, err := adapter.GetTransactionStatus(ctx, providerRef)
	if err != nil {
		r.logger.Error().Err(err).
			Str("provider", string(provider)).
			Str("provider_ref", providerRef).
			Msg("status verification failed; donation left pending for manual reconciliation")
		return nil, err
	}
	return r.Apply(ctx, donation, status)
}

// ConfirmCapture settles a synchronous-capture order (PayPal): the capture
// call is the verification.
func (r *Reconciler) ConfirmCapture(ctx context.Context, provider domain.PaymentProvider, orderID string) (*Result, error) {
	donation, err := r.donations.GetByProviderRef(ctx, provider, orderID)
	if err != nil {
		return nil, err
	}
	if donation.Status.Terminal() {
		return &Result{Donation: donation, Duplicate: true, Settled: true}, nil
	}

	adapter, ok := r.providers.Get(provider)
	if !ok {
		return nil, fmt.Errorf("%w: provider %s not configured", domain.ErrVerification, provider)
	}
	capturer, ok := adapter.(Capturer)
	if !ok {
		return nil, fmt.Errorf("%w: provider %s does not support capture", domain.ErrVerification, provider)
	}
	status, err := capturer.CaptureOrder(ctx, orderID)
	if err != nil {
		r.logger.Error().Err(err).
			Str("provider", string(provider)).
			Str("provider_ref", orderID).
			Msg("capture failed; donation left pending")
		return nil, err
	}
	return r.Apply(ctx, donation, status)
}

// Apply transitions a donation based on an already-verified provider status.
// The terminal write is a conditional update: when a concurrent delivery won
// the race, the fresh row is returned and the call reports a duplicate.
func (r *Reconciler) Apply(ctx context.Context, donation *domain.Donation, status *payment.TransactionStatus) (*Result, error) {
	if donation.Status.Terminal() {
		return &Result{Donation: donation, Duplicate: true, Settled: true}, nil
	}

	logger := r.logger.With().
		Str("donation_id", donation.ID).
		Str("provider", string(donation.Provider)).
		Str("provider_ref", donation.ProviderRef).
		Logger()

	if !status.Amount.IsZero() && !status.Amount.Equal(donation.Amount) {
		logger.Warn().
			Str("expected", donation.Amount.String()).
			Str("reported", status.Amount.String()).
			Msg("provider-reported amount differs from donation amount")
	}

	switch status.Outcome {
	case payment.OutcomeCompleted:
		var confirmation *string
		if status.ConfirmationCode != "" {
			code := status.ConfirmationCode
			confirmation = &code
		}
		applied, err := r.donations.MarkCompleted(ctx, donation.ID, confirmation)
		if err != nil {
			return nil, fmt.Errorf("mark completed: %w", err)
		}
		fresh, err := r.donations.GetByID(ctx, donation.ID)
		if err != nil {
			return nil, err
		}
		if !applied {
			return &Result{Donation: fresh, Duplicate: true, Settled: true}, nil
		}
		logger.Info().Str("confirmation", status.ConfirmationCode).Msg("donation completed")
		return &Result{Donation: fresh, Settled: true}, nil

	case payment.OutcomeFailed:
		applied, err := r.donations.MarkFailed(ctx, donation.ID)
		if err != nil {
			return nil, fmt.Errorf("mark failed: %w", err)
		}
		fresh, err := r.donations.GetByID(ctx, donation.ID)
		if err != nil {
			return nil, err
		}
		if !applied {
			return &Result{Donation: fresh, Duplicate: true, Settled: true}, nil
		}
		logger.Info().Str("raw_status", status.RawStatus).Msg("donation failed")
		return &Result{Donation: fresh, Settled: true}, nil

	default:
		// Ambiguous or still in flight: no terminal write. The provider is
		// expected to deliver again.
		logger.Warn().Str("raw_status", status.RawStatus).Msg("non-terminal provider status; donation stays pending")
		return &Result{Donation: donation}, nil
	}
}
