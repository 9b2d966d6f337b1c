package models

import "time"

// CreatorMapping maps a raw creator name to its canonical spelling
type CreatorMapping struct {
	ID               string    `json:"id"`
	Source           string    `json:"source"`
	SourceNormalized string    `json:"source_normalized"`
	Canonical        string    `json:"canonical"`
	Notes            string    `json:"notes,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	CreatedBy        string    `json:"created_by,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}
