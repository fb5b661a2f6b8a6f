package service

import (
	"context"
	"sync"
	"time"

	"github.com/paysync/backend/internal/domain"
	"github.com/paysync/backend/pkg/payment"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// memSubs is an in-memory SubscriptionStore enforcing the same invariant as
// the partial unique index: at most one non-cancelled row per user.
type memSubs struct {
	mu   sync.Mutex
	rows map[string]*domain.Subscription
}

func newMemSubs() *memSubs {
	return &memSubs{rows: make(map[string]*domain.Subscription)}
}

func (m *memSubs) Create(_ context.Context, sub *domain.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.UserID == sub.UserID && !r.Status.Terminal() {
			return domain.ErrAlreadyExists
		}
	}
	cp := *sub
	m.rows[sub.ID] = &cp
	return nil
}

func (m *memSubs) FindCurrentByUserID(_ context.Context, userID string) (*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.UserID == userID && !r.Status.Terminal() {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memSubs) FindByProviderSubID(_ context.Context, providerSubID string) (*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *domain.Subscription
	for _, r := range m.rows {
		if r.ProviderSubID != nil && *r.ProviderSubID == providerSubID {
			if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
				latest = r
			}
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (m *memSubs) UpdateProcessorState(_ context.Context, sub *domain.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[sub.ID]
	if !ok || r.Status.Terminal() {
		return nil
	}
	cp := *sub
	cp.UpdatedAt = time.Now()
	m.rows[sub.ID] = &cp
	return nil
}

func (m *memSubs) CancelAllByProviderSubID(_ context.Context, providerSubID string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.rows {
		if r.ProviderSubID != nil && *r.ProviderSubID == providerSubID && !r.Status.Terminal() {
			r.Status = domain.SubscriptionCancelled
			cancelled := at
			r.CancelledAt = &cancelled
			n++
		}
	}
	return n, nil
}

func (m *memSubs) DeleteIncompleteByUserID(_ context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.rows {
		if r.UserID == userID && r.Status == domain.SubscriptionIncomplete {
			delete(m.rows, id)
			return true, nil
		}
	}
	return false, nil
}

func (m *memSubs) SetCancelAtPeriodEnd(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[id]; ok && !r.Status.Terminal() {
		r.CancelAtPeriodEnd = true
	}
	return nil
}

func (m *memSubs) CancelStaleIncomplete(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.rows {
		if r.Status == domain.SubscriptionIncomplete && r.CreatedAt.Before(cutoff) {
			r.Status = domain.SubscriptionCancelled
			now := time.Now()
			r.CancelledAt = &now
			n++
		}
	}
	return n, nil
}

// seed inserts a row bypassing the uniqueness check, for anomaly scenarios.
func (m *memSubs) seed(sub *domain.Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sub
	m.rows[sub.ID] = &cp
}

func (m *memSubs) all() []*domain.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Subscription
	for _, r := range m.rows {
		cp := *r
		out = append(out, &cp)
	}
	return out
}

// memPayments is an in-memory PaymentStore with unique external references.
type memPayments struct {
	mu   sync.Mutex
	rows map[string]*domain.Payment
}

func newMemPayments() *memPayments {
	return &memPayments{rows: make(map[string]*domain.Payment)}
}

func (m *memPayments) Create(_ context.Context, p *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ProviderPaymentID == p.ProviderPaymentID {
			return domain.ErrAlreadyExists
		}
		if r.ProviderInvoiceID != nil && p.ProviderInvoiceID != nil && *r.ProviderInvoiceID == *p.ProviderInvoiceID {
			return domain.ErrAlreadyExists
		}
	}
	cp := *p
	m.rows[p.ID] = &cp
	return nil
}

func (m *memPayments) FindByProviderPaymentID(_ context.Context, providerPaymentID string) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ProviderPaymentID == providerPaymentID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memPayments) FindByProviderInvoiceID(_ context.Context, providerInvoiceID string) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ProviderInvoiceID != nil && *r.ProviderInvoiceID == providerInvoiceID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memPayments) MarkSucceeded(_ context.Context, providerPaymentID string, paidAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ProviderPaymentID == providerPaymentID {
			r.Status = domain.PaymentSucceeded
			at := paidAt
			r.PaidAt = &at
			r.Failure = nil
			return true, nil
		}
	}
	return false, nil
}

func (m *memPayments) MarkFailed(_ context.Context, providerPaymentID string, reason *domain.FailureReason) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ProviderPaymentID == providerPaymentID {
			r.Status = domain.PaymentFailed
			r.Failure = reason
			return true, nil
		}
	}
	return false, nil
}

func (m *memPayments) ListRecentByUserID(_ context.Context, userID string, limit int) ([]*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Payment
	for _, r := range m.rows {
		if r.UserID == userID && len(out) < limit {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPayments) all() []*domain.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Payment
	for _, r := range m.rows {
		cp := *r
		out = append(out, &cp)
	}
	return out
}

// memUsers is an in-memory UserStore.
type memUsers struct {
	mu   sync.Mutex
	rows map[string]*domain.User
}

func newMemUsers() *memUsers {
	return &memUsers{rows: make(map[string]*domain.User)}
}

func (m *memUsers) FindByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (m *memUsers) SetStripeCustomerID(_ context.Context, userID, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[userID]; ok {
		r.StripeCustomerID = &customerID
	}
	return nil
}

func (m *memUsers) seed(u *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.rows[u.ID] = &cp
}

// fakeProcessor is a recording payment.Client.
type fakeProcessor struct {
	mu          sync.Mutex
	customers   int
	created     []payment.CreateSubscriptionParams
	cancelled   []string
	cancelAtEnd []string
	createErr   error
}

func (f *fakeProcessor) CreateCustomer(_ context.Context, email string, _ map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.customers++
	return "cus_test_1", nil
}

func (f *fakeProcessor) CreateSubscription(_ context.Context, p payment.CreateSubscriptionParams) (*payment.ProvisionalSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, p)
	now := time.Now()
	return &payment.ProvisionalSubscription{
		ID:                 "sub_prov_1",
		Status:             "incomplete",
		ClientSecret:       "pi_secret_123",
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 1, 0),
	}, nil
}

func (f *fakeProcessor) CancelSubscription(_ context.Context, providerSubID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, providerSubID)
	return nil
}

func (f *fakeProcessor) SetCancelAtPeriodEnd(_ context.Context, providerSubID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelAtEnd = append(f.cancelAtEnd, providerSubID)
	return nil
}

func (f *fakeProcessor) PortalURL(_ context.Context, _, _ string) (string, error) {
	return "https://billing.example.com/session/abc", nil
}

// recordingNotifier captures welcome notifications.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []string
	done chan struct{}
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{done: make(chan struct{}, 8)}
}

func (n *recordingNotifier) SendWelcome(_ context.Context, userID string, _ *domain.Subscription) error {
	n.mu.Lock()
	n.sent = append(n.sent, userID)
	n.mu.Unlock()
	n.done <- struct{}{}
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}
