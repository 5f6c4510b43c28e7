package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// DonationRepository handles donation persistence. Status transitions are
// conditional writes: Mark* methods succeed only when the row is still
// pending, so concurrent callback deliveries cannot double-apply a terminal
// state.
type DonationRepository interface {
	Create(ctx context.Context, donation *Donation) error
	GetByID(ctx context.Context, id string) (*Donation, error)
	GetByProviderRef(ctx context.Context, provider PaymentProvider, ref string) (*Donation, error)
	// MarkCompleted transitions pending -> completed and sets paid_at.
	// Returns false when the donation was no longer pending.
	MarkCompleted(ctx context.Context, id string, confirmationCode *string) (bool, error)
	// MarkFailed transitions pending -> failed. Returns false when the
	// donation was no longer pending.
	MarkFailed(ctx context.Context, id string) (bool, error)
	TotalRaised(ctx context.Context) (decimal.Decimal, error)
	ListRecentCompleted(ctx context.Context, limit int) ([]Donation, error)
}

// SettingRepository handles runtime configuration values.
type SettingRepository interface {
	Get(ctx context.Context, key string) (*Setting, error)
	List(ctx context.Context, publicOnly bool) ([]Setting, error)
	Upsert(ctx context.Context, setting *Setting) error
}

// ContentRepository serves the public marketing listings.
type ContentRepository interface {
	ListProjects(ctx context.Context) ([]Project, error)
	ListTeamMembers(ctx context.Context) ([]TeamMember, error)
	ListPartners(ctx context.Context) ([]Partner, error)
	ListMilestones(ctx context.Context) ([]Milestone, error)
	ListResources(ctx context.Context) ([]Resource, error)
}
