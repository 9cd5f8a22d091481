package models

import "time"

// Note is a comment on a paper. Replies reference a parent note on the same
// paper. Deletion flips IsHidden so reply threads keep their structure.
type Note struct {
	ID        string    `json:"id"`
	PaperID   string    `json:"paper_id"`
	UserID    string    `json:"user_id"`
	ParentID  *string   `json:"parent_id,omitempty"`
	Text      string    `json:"text"`
	IsHidden  bool      `json:"is_hidden"`
	CreatedAt time.Time `json:"created_at"`
}
