package billing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pearcircuitmike/replicate-codex/internal/models"
	"github.com/pearcircuitmike/replicate-codex/internal/service/profile"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

// ErrUnhandledEvent is returned for event types the webhook does not
// process. The endpoint reports these as client errors so the provider
// operator notices a misconfigured event subscription.
var ErrUnhandledEvent = errors.New("unhandled event type")

// Service verifies and applies billing webhook events.
type Service struct {
	profiles      *profile.Service
	webhookSecret string
	log           *zap.SugaredLogger
}

func NewService(profiles *profile.Service, webhookSecret string, log *zap.SugaredLogger) *Service {
	return &Service{profiles: profiles, webhookSecret: webhookSecret, log: log}
}

// VerifyEvent checks the webhook signature over the raw payload and parses
// the event.
func (s *Service) VerifyEvent(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("verify webhook signature: %w", err)
	}
	return event, nil
}

// ProcessEvent applies a verified event to the profile it concerns.
func (s *Service) ProcessEvent(ctx context.Context, event stripe.Event) error {
	switch string(event.Type) {
	case "checkout.session.completed":
		return s.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.updated":
		return s.handleSubscriptionUpdated(ctx, event)
	case "customer.subscription.deleted":
		return s.handleSubscriptionDeleted(ctx, event)
	default:
		return fmt.Errorf("%w: %s", ErrUnhandledEvent, event.Type)
	}
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("parse checkout session: %w", err)
	}
	userID := session.ClientReferenceID
	if userID == "" {
		return errors.New("checkout session has no client reference id")
	}
	var customerID string
	if session.Customer != nil {
		customerID = session.Customer.ID
	}
	if err := s.profiles.SetSubscription(ctx, userID, models.SubscriptionActive, customerID); err != nil {
		return fmt.Errorf("activate subscription for %s: %w", userID, err)
	}
	s.log.Infow("subscription activated", "user_id", userID)
	return nil
}

func (s *Service) handleSubscriptionUpdated(ctx context.Context, event stripe.Event) error {
	sub, p, err := s.resolveSubscription(ctx, event)
	if err != nil {
		return err
	}
	status := subscriptionStatus(sub.Status)
	if err := s.profiles.SetSubscription(ctx, p.ID, status, ""); err != nil {
		return fmt.Errorf("update subscription for %s: %w", p.ID, err)
	}
	s.log.Infow("subscription updated", "user_id", p.ID, "status", status)
	return nil
}

func (s *Service) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	_, p, err := s.resolveSubscription(ctx, event)
	if err != nil {
		return err
	}
	if err := s.profiles.SetSubscription(ctx, p.ID, models.SubscriptionCanceled, ""); err != nil {
		return fmt.Errorf("cancel subscription for %s: %w", p.ID, err)
	}
	s.log.Infow("subscription canceled", "user_id", p.ID)
	return nil
}

func (s *Service) resolveSubscription(ctx context.Context, event stripe.Event) (*stripe.Subscription, *models.Profile, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, nil, fmt.Errorf("parse subscription: %w", err)
	}
	if sub.Customer == nil || sub.Customer.ID == "" {
		return nil, nil, errors.New("subscription event has no customer")
	}
	p, err := s.profiles.ByStripeCustomer(ctx, sub.Customer.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, fmt.Errorf("no profile for customer %s: %w", sub.Customer.ID, err)
		}
		return nil, nil, err
	}
	return &sub, p, nil
}

func subscriptionStatus(status stripe.SubscriptionStatus) string {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return models.SubscriptionActive
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return models.SubscriptionPastDue
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return models.SubscriptionCanceled
	default:
		return models.SubscriptionNone
	}
}
