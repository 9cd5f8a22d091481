package models

import "time"

// Community is a topic-tagged discussion group.
type Community struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Topics      []string  `json:"topics,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Membership joins a user to a community.
type Membership struct {
	UserID      string    `json:"user_id"`
	CommunityID string    `json:"community_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Invite is a time-limited token tied to an email and a community,
// consumed exactly once.
type Invite struct {
	Token       string     `json:"token"`
	CommunityID string     `json:"community_id"`
	Email       string     `json:"email"`
	ExpiresAt   time.Time  `json:"expires_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
