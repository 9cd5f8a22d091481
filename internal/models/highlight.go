package models

import "time"

// Highlight is a user-selected quote on a paper. Hard-deleted by its owner.
type Highlight struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	PaperID   string    `json:"paper_id"`
	Quote     string    `json:"quote"`
	Prefix    string    `json:"prefix,omitempty"`
	Suffix    string    `json:"suffix,omitempty"`
	Offset    int       `json:"text_offset"`
	Context   string    `json:"context,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
