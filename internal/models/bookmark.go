package models

import "time"

// Resource type tags for bookmarks.
const (
	ResourcePaper = "paper"
	ResourceModel = "model"
)

// UncategorizedFolderName is the reserved per-user default folder. It always
// exists and cannot be deleted; bookmarks of deleted folders land here.
const UncategorizedFolderName = "Uncategorized"

// Folder orders a user's bookmarks.
type Folder struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	Position  int       `json:"position"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
}

// Bookmark references a catalog resource from a folder.
type Bookmark struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	FolderID     string    `json:"folder_id"`
	ResourceID   string    `json:"resource_id"`
	ResourceType string    `json:"resource_type"`
	CreatedAt    time.Time `json:"created_at"`
}
