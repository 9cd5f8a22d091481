package models

import "time"

// Subscription states mirrored from the billing provider.
const (
	SubscriptionActive   = "active"
	SubscriptionPastDue  = "past_due"
	SubscriptionCanceled = "canceled"
	SubscriptionNone     = "none"
)

// Profile is the per-user account row.
type Profile struct {
	ID                 string    `json:"id"`
	Username           string    `json:"username"`
	PasswordHash       string    `json:"-"`
	FullName           string    `json:"full_name,omitempty"`
	AvatarURL          string    `json:"avatar_url,omitempty"`
	SubscriptionStatus string    `json:"subscription_status"`
	StripeCustomerID   string    `json:"-"`
	PaperDigest        string    `json:"paper_digest"`
	ModelDigest        string    `json:"model_digest"`
	CreatedAt          time.Time `json:"created_at"`
}
