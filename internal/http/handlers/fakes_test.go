package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"server/internal/domain"
	"server/internal/providers/payment"
)

// In-memory fakes shared by the handler tests.

type fakeDonationRepo struct {
	mu        sync.Mutex
	donations map[string]*domain.Donation
	order     []string

	createErr error
}

func newFakeDonationRepo(donations ...*domain.Donation) *fakeDonationRepo {
	r := &fakeDonationRepo{donations: make(map[string]*domain.Donation)}
	for _, d := range donations {
		r.donations[d.ID] = d
		r.order = append(r.order, d.ID)
	}
	return r
}

func (r *fakeDonationRepo) Create(_ context.Context, donation *domain.Donation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	copied := *donation
	copied.CreatedAt = time.Now()
	r.donations[donation.ID] = &copied
	r.order = append(r.order, donation.ID)
	return nil
}

func (r *fakeDonationRepo) GetByID(_ context.Context, id string) (*domain.Donation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.donations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *d
	return &copied, nil
}

func (r *fakeDonationRepo) GetByProviderRef(_ context.Context, provider domain.PaymentProvider, ref string) (*domain.Donation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.donations {
		if d.Provider == provider && d.ProviderRef == ref {
			copied := *d
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeDonationRepo) MarkCompleted(_ context.Context, id string, confirmationCode *string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.donations[id]
	if !ok || d.Status != domain.DonationPending {
		return false, nil
	}
	d.Status = domain.DonationCompleted
	if confirmationCode != nil {
		d.ConfirmationCode = confirmationCode
	}
	now := time.Now()
	d.PaidAt = &now
	return true, nil
}

func (r *fakeDonationRepo) MarkFailed(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.donations[id]
	if !ok || d.Status != domain.DonationPending {
		return false, nil
	}
	d.Status = domain.DonationFailed
	return true, nil
}

func (r *fakeDonationRepo) TotalRaised(_ context.Context) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	for _, d := range r.donations {
		if d.Status == domain.DonationCompleted {
			total = total.Add(d.Amount)
		}
	}
	return total, nil
}

func (r *fakeDonationRepo) ListRecentCompleted(_ context.Context, limit int) ([]domain.Donation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Donation
	for i := len(r.order) - 1; i >= 0 && len(out) < limit; i-- {
		d := r.donations[r.order[i]]
		if d.Status == domain.DonationCompleted && !d.Anonymous {
			out = append(out, *d)
		}
	}
	return out, nil
}

type fakeSettingRepo struct {
	mu       sync.Mutex
	settings map[string]domain.Setting
}

func newFakeSettingRepo(settings ...domain.Setting) *fakeSettingRepo {
	r := &fakeSettingRepo{settings: make(map[string]domain.Setting)}
	for _, s := range settings {
		r.settings[s.Key] = s
	}
	return r
}

func (r *fakeSettingRepo) Get(_ context.Context, key string) (*domain.Setting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.settings[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (r *fakeSettingRepo) List(_ context.Context, publicOnly bool) ([]domain.Setting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Setting
	for _, s := range r.settings {
		if publicOnly && !s.Public {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *fakeSettingRepo) Upsert(_ context.Context, setting *domain.Setting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[setting.Key] = *setting
	return nil
}

type fakeProvider struct {
	name      domain.PaymentProvider
	order     *payment.CreateOrderResponse
	orderErr  error
	status    *payment.TransactionStatus
	statusErr error

	lastOrder payment.CreateOrderRequest
}

func (p *fakeProvider) Name() domain.PaymentProvider { return p.name }

func (p *fakeProvider) CreateOrder(_ context.Context, req payment.CreateOrderRequest) (*payment.CreateOrderResponse, error) {
	p.lastOrder = req
	if p.orderErr != nil {
		return nil, p.orderErr
	}
	if p.order != nil {
		return p.order, nil
	}
	return &payment.CreateOrderResponse{ProviderRef: "ref-" + req.Reference, RedirectURL: "https://checkout.test/" + req.Reference}, nil
}

func (p *fakeProvider) GetTransactionStatus(_ context.Context, _ string) (*payment.TransactionStatus, error) {
	if p.statusErr != nil {
		return nil, p.statusErr
	}
	if p.status == nil {
		return nil, errors.New("no status configured")
	}
	return p.status, nil
}
