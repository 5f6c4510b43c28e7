package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"server/internal/domain"
)

const pgUniqueViolation = "23505"

// DonationRepositoryPG implements DonationRepository using PostgreSQL.
//
// The donations table carries a unique index on (provider, provider_ref);
// together with the conditional status updates below it forms the idempotency
// guard against repeated webhook delivery.
type DonationRepositoryPG struct {
	db SQLExecutor
}

// NewDonationRepository creates a new donation repo.
func NewDonationRepository(db SQLExecutor) *DonationRepositoryPG {
	return &DonationRepositoryPG{db: db}
}

// Create inserts a new pending donation record.
func (r *DonationRepositoryPG) Create(ctx context.Context, d *domain.Donation) error {
	_, err := r.db.Exec(ctx, `
INSERT INTO donations (id, amount, currency, donor_name, donor_email, message, anonymous, tier, status, provider, provider_ref, created_at)
VALUES ($1, $2::numeric, $3, $4, $5, $6, $7, $8, $9, $10, $11, now());
`, d.ID, d.Amount.String(), d.Currency, d.DonorName, d.DonorEmail, d.Message, d.Anonymous, d.Tier, d.Status, d.Provider, d.ProviderRef)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("%w: provider reference already recorded", domain.ErrDuplicateOperation)
		}
		return err
	}
	return nil
}

const donationColumns = `id, amount::text, currency, donor_name, donor_email, message, anonymous, tier, status, provider, provider_ref, confirmation_code, created_at, paid_at`

// GetByID returns one donation by identifier.
func (r *DonationRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Donation, error) {
	row := r.db.QueryRow(ctx, `
SELECT `+donationColumns+`
FROM donations
WHERE id = $1;
`, id)
	return scanDonation(row)
}

// GetByProviderRef returns the donation carrying a provider-assigned
// reference.
func (r *DonationRepositoryPG) GetByProviderRef(ctx context.Context, provider domain.PaymentProvider, ref string) (*domain.Donation, error) {
	row := r.db.QueryRow(ctx, `
SELECT `+donationColumns+`
FROM donations
WHERE provider = $1 AND provider_ref = $2;
`, provider, ref)
	return scanDonation(row)
}

// MarkCompleted transitions pending -> completed atomically. The WHERE clause
// makes concurrent deliveries race on the database, not in application code.
func (r *DonationRepositoryPG) MarkCompleted(ctx context.Context, id string, confirmationCode *string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
UPDATE donations
SET status = 'completed', confirmation_code = COALESCE($2, confirmation_code), paid_at = now()
WHERE id = $1 AND status = 'pending';
`, id, confirmationCode)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkFailed transitions pending -> failed atomically.
func (r *DonationRepositoryPG) MarkFailed(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
UPDATE donations
SET status = 'failed'
WHERE id = $1 AND status = 'pending';
`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// TotalRaised sums completed donations. Pending and failed rows never count.
func (r *DonationRepositoryPG) TotalRaised(ctx context.Context) (decimal.Decimal, error) {
	var total string
	err := r.db.QueryRow(ctx, `
SELECT COALESCE(SUM(amount), 0)::text
FROM donations
WHERE status = 'completed';
`).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(total)
}

// ListRecentCompleted returns the latest completed, non-anonymous donations.
func (r *DonationRepositoryPG) ListRecentCompleted(ctx context.Context, limit int) ([]domain.Donation, error) {
	rows, err := r.db.Query(ctx, `
SELECT `+donationColumns+`
FROM donations
WHERE status = 'completed' AND NOT anonymous
ORDER BY created_at DESC
LIMIT $1;
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Donation
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanDonation(row pgx.Row) (*domain.Donation, error) {
	var (
		d      domain.Donation
		amount string
	)
	err := row.Scan(&d.ID, &amount, &d.Currency, &d.DonorName, &d.DonorEmail, &d.Message,
		&d.Anonymous, &d.Tier, &d.Status, &d.Provider, &d.ProviderRef, &d.ConfirmationCode,
		&d.CreatedAt, &d.PaidAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	d.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	return &d, nil
}

var _ domain.DonationRepository = (*DonationRepositoryPG)(nil)
