package models

import "time"

// Book is a catalog record plus the shared inventory counters both
// circulation workflows coordinate on. IsAvailable is derived from
// AvailableCopies by the storage layer and is never accepted as input.
type Book struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	ISBN            string    `json:"isbn"`
	Category        string    `json:"category"`
	PublishedYear   int       `json:"published_year,omitempty"`
	Publisher       string    `json:"publisher,omitempty"`
	Pages           int       `json:"pages,omitempty"`
	Synopsis        string    `json:"synopsis,omitempty"`
	CoverURL        string    `json:"cover_url,omitempty"`
	Location        string    `json:"location,omitempty"`
	TotalCopies     int       `json:"total_copies"`
	AvailableCopies int       `json:"available_copies"`
	IsAvailable     bool      `json:"is_available"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
