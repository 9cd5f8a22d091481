package models

import "time"

// Paper is a research paper in the catalog.
type Paper struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Abstract    string    `json:"abstract"`
	Authors     string    `json:"authors,omitempty"`
	URL         string    `json:"url"`
	Slug        string    `json:"slug"`
	Similarity  float64   `json:"similarity,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// Model is an AI model in the catalog.
type Model struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Creator     string    `json:"creator,omitempty"`
	URL         string    `json:"url"`
	Slug        string    `json:"slug"`
	Similarity  float64   `json:"similarity,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
