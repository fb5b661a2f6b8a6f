package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/paysync/backend/internal/domain"
	"github.com/paysync/backend/pkg/payment"
	"github.com/sirupsen/logrus"
)

const recentPaymentsLimit = 10

// SubscriptionService is the synchronous, user-facing side of billing. It
// shares the repository layer with the webhook path; the uniqueness
// constraints arbitrate between the two, so no locks are taken here.
type SubscriptionService struct {
	subs      SubscriptionStore
	payments  PaymentStore
	users     UserStore
	processor payment.Client
	validate  *validator.Validate
	log       *logrus.Logger
}

// NewSubscriptionService creates a SubscriptionService.
func NewSubscriptionService(subs SubscriptionStore, payments PaymentStore, users UserStore, processor payment.Client, log *logrus.Logger) *SubscriptionService {
	return &SubscriptionService{
		subs:      subs,
		payments:  payments,
		users:     users,
		processor: processor,
		validate:  validator.New(),
		log:       log,
	}
}

// GetCurrentSubscription returns the user's subscription with recent
// payments, or the plan catalog when no subscription exists.
func (s *SubscriptionService) GetCurrentSubscription(ctx context.Context, userID string) (*domain.SubscriptionView, error) {
	sub, err := s.subs.FindCurrentByUserID(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load subscription", err)
	}
	if sub == nil {
		return &domain.SubscriptionView{Plans: domain.AvailablePlans()}, nil
	}

	payments, err := s.payments.ListRecentByUserID(ctx, userID, recentPaymentsLimit)
	if err != nil {
		return nil, domain.ErrInternal("failed to load payments", err)
	}
	return &domain.SubscriptionView{Subscription: sub, Payments: payments}, nil
}

// CreateSubscription starts the checkout handshake: a provisional incomplete
// row locally plus an incomplete subscription at the processor. Promotion to
// active happens exclusively through the webhook path.
func (s *SubscriptionService) CreateSubscription(ctx context.Context, userID string, req *domain.CreateSubscriptionRequest) (*domain.CheckoutResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrBadRequest("invalid plan")
	}
	plan, ok := domain.LookupPlan(req.Plan)
	if !ok {
		return nil, domain.ErrBadRequest("invalid plan")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load user", err)
	}
	if user == nil {
		return nil, domain.ErrForbidden("account is not eligible for subscriptions")
	}

	current, err := s.subs.FindCurrentByUserID(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load subscription", err)
	}
	if current != nil {
		if current.Status != domain.SubscriptionIncomplete {
			return nil, domain.ErrBadRequest("you already have an active subscription")
		}
		// Abandoned handshake: drop it and start fresh.
		if _, err := s.subs.DeleteIncompleteByUserID(ctx, userID); err != nil {
			return nil, domain.ErrInternal("failed to reset pending subscription", err)
		}
		if current.ProviderSubID != nil {
			s.cancelProvisional(ctx, *current.ProviderSubID)
		}
	}

	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return nil, domain.ErrInternal("failed to register billing account", err)
	}

	prov, err := s.processor.CreateSubscription(ctx, payment.CreateSubscriptionParams{
		CustomerID: customerID,
		PriceID:    plan.ProviderPriceID,
		TrialDays:  plan.TrialDays,
		Metadata: map[string]string{
			payment.MetaPurpose: payment.PurposeFirstSubPay,
			payment.MetaUserID:  userID,
			payment.MetaPlanID:  plan.ID,
		},
	})
	if err != nil {
		return nil, domain.ErrInternal("failed to start checkout", err)
	}

	now := time.Now()
	sub := &domain.Subscription{
		ID:                 uuid.New().String(),
		UserID:             userID,
		Plan:               plan.ID,
		Status:             domain.SubscriptionIncomplete,
		ProviderSubID:      &prov.ID,
		CurrentPeriodStart: prov.CurrentPeriodStart,
		CurrentPeriodEnd:   prov.CurrentPeriodEnd,
		TrialStart:         prov.TrialStart,
		TrialEnd:           prov.TrialEnd,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.subs.Create(ctx, sub); err != nil {
		if !errors.Is(err, domain.ErrAlreadyExists) {
			return nil, domain.ErrInternal("failed to save subscription", err)
		}
		// The webhook path promoted this user between our pre-check and the
		// insert: the other writer won, which is a success, not a conflict.
		winner, ferr := s.subs.FindCurrentByUserID(ctx, userID)
		if ferr != nil || winner == nil {
			return nil, domain.ErrInternal("failed to resolve concurrent subscription", ferr)
		}
		s.cancelProvisional(ctx, prov.ID)
		s.log.WithField("user_id", userID).Info("checkout superseded by confirmed payment")
		return &domain.CheckoutResponse{Subscription: winner}, nil
	}

	return &domain.CheckoutResponse{Subscription: sub, ClientSecret: prov.ClientSecret}, nil
}

// DeleteIncompleteSubscription abandons a checkout. Permitted only while the
// row is still incomplete; once the first payment confirmed, deletion is a
// state error.
func (s *SubscriptionService) DeleteIncompleteSubscription(ctx context.Context, userID string) error {
	current, err := s.subs.FindCurrentByUserID(ctx, userID)
	if err != nil {
		return domain.ErrInternal("failed to load subscription", err)
	}
	if current == nil || current.Status != domain.SubscriptionIncomplete {
		return domain.ErrBadRequest("subscription can only be deleted while incomplete")
	}

	deleted, err := s.subs.DeleteIncompleteByUserID(ctx, userID)
	if err != nil {
		return domain.ErrInternal("failed to delete subscription", err)
	}
	if !deleted {
		// The confirming payment landed between the read and the delete.
		return domain.ErrBadRequest("subscription can only be deleted while incomplete")
	}

	if current.ProviderSubID != nil {
		s.cancelProvisional(ctx, *current.ProviderSubID)
	}
	return nil
}

// OpenBillingPortal returns a redirect URL into the processor's self-service
// portal. Requires a registered billing account.
func (s *SubscriptionService) OpenBillingPortal(ctx context.Context, userID, returnURL string) (*domain.PortalResponse, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load user", err)
	}
	if user == nil || user.StripeCustomerID == nil || *user.StripeCustomerID == "" {
		return nil, domain.ErrNotFound("no billing account")
	}

	url, err := s.processor.PortalURL(ctx, *user.StripeCustomerID, returnURL)
	if err != nil {
		return nil, domain.ErrInternal("failed to open billing portal", err)
	}
	return &domain.PortalResponse{URL: url}, nil
}

// CancelAtPeriodEnd schedules cancellation at the processor. The local flag
// is mirrored optimistically; the authoritative state change arrives via the
// subscription-updated webhook.
func (s *SubscriptionService) CancelAtPeriodEnd(ctx context.Context, userID string) (*domain.Subscription, error) {
	current, err := s.subs.FindCurrentByUserID(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load subscription", err)
	}
	if current == nil {
		return nil, domain.ErrNotFound("no subscription")
	}
	if current.Status == domain.SubscriptionIncomplete {
		return nil, domain.ErrBadRequest("subscription is not active yet")
	}
	if current.ProviderSubID == nil {
		return nil, domain.ErrBadRequest("subscription has no billing reference")
	}

	if err := s.processor.SetCancelAtPeriodEnd(ctx, *current.ProviderSubID); err != nil {
		return nil, domain.ErrInternal("failed to schedule cancellation", err)
	}
	if err := s.subs.SetCancelAtPeriodEnd(ctx, current.ID); err != nil {
		return nil, domain.ErrInternal("failed to record cancellation", err)
	}
	current.CancelAtPeriodEnd = true
	return current, nil
}

func (s *SubscriptionService) ensureCustomer(ctx context.Context, user *domain.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}
	customerID, err := s.processor.CreateCustomer(ctx, user.Email, map[string]string{
		payment.MetaUserID: user.ID,
	})
	if err != nil {
		return "", err
	}
	if err := s.users.SetStripeCustomerID(ctx, user.ID, customerID); err != nil {
		return "", err
	}
	return customerID, nil
}

// cancelProvisional voids an abandoned processor-side subscription. Best
// effort: the sweeper and the processor's own expiry cover failures here.
func (s *SubscriptionService) cancelProvisional(ctx context.Context, providerSubID string) {
	if err := s.processor.CancelSubscription(ctx, providerSubID); err != nil {
		s.log.WithError(err).WithField("provider_subscription_id", providerSubID).
			Warn("failed to cancel provisional subscription")
	}
}
