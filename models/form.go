package models

import "time"

// Form is a public lead-capture definition. Submissions create leads
// tagged with AutoTag; Views and Submissions are simple counters.
type Form struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	AutoTag     string    `json:"autoTag"`
	Views       int       `json:"views"`
	Submissions int       `json:"submissions"`
	CreatedAt   time.Time `json:"createdAt"`
}
