package api

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pearcircuitmike/replicate-codex/internal/models"

	"github.com/stripe/stripe-go/v76/webhook"
)

func signedWebhookRequest(t *testing.T, payload string) *http.Request {
	t.Helper()
	now := time.Now()
	sig := webhook.ComputeSignature(now, []byte(payload), testWebhookSecret)
	header := fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(sig))

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/billing", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", header)
	return req
}

func TestWebhookRejectsInvalidSignature(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/billing",
		strings.NewReader(`{"type":"checkout.session.completed"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := doJSON(t, env.router, http.MethodPost, "/api/webhooks/billing", "",
		`{"type":"checkout.session.completed"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestWebhookCheckoutCompletedActivatesSubscription(t *testing.T) {
	env := newTestEnv(t, nil)
	userID, _ := env.registerUser(t, "payer")

	payload := fmt.Sprintf(`{
		"id": "evt_1",
		"object": "event",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_1",
			"object": "checkout.session",
			"client_reference_id": %q,
			"customer": "cus_test_1"
		}}
	}`, userID)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, signedWebhookRequest(t, payload))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"received":true`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}

	p, err := env.profiles.Get(context.Background(), userID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if p.SubscriptionStatus != models.SubscriptionActive {
		t.Errorf("subscription = %q, want active", p.SubscriptionStatus)
	}
	if p.StripeCustomerID != "cus_test_1" {
		t.Errorf("customer id = %q", p.StripeCustomerID)
	}
}

func TestWebhookSubscriptionDeletedCancels(t *testing.T) {
	env := newTestEnv(t, nil)
	userID, _ := env.registerUser(t, "churner")
	if err := env.profiles.SetSubscription(context.Background(), userID, models.SubscriptionActive, "cus_test_2"); err != nil {
		t.Fatalf("seed subscription: %v", err)
	}

	payload := `{
		"id": "evt_2",
		"object": "event",
		"type": "customer.subscription.deleted",
		"data": {"object": {
			"id": "sub_1",
			"object": "subscription",
			"status": "canceled",
			"customer": "cus_test_2"
		}}
	}`

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, signedWebhookRequest(t, payload))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	p, err := env.profiles.Get(context.Background(), userID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if p.SubscriptionStatus != models.SubscriptionCanceled {
		t.Errorf("subscription = %q, want canceled", p.SubscriptionStatus)
	}
}

func TestWebhookUnhandledEventType(t *testing.T) {
	env := newTestEnv(t, nil)

	payload := `{
		"id": "evt_3",
		"object": "event",
		"type": "invoice.created",
		"data": {"object": {"id": "in_1", "object": "invoice"}}
	}`

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, signedWebhookRequest(t, payload))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for unhandled event", rec.Code)
	}
}
