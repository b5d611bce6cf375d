package models

import "time"

// Lead subscription states.
const (
	LeadStatusActive       = "active"
	LeadStatusUnsubscribed = "unsubscribed"
)

// Lead is a single recipient. Email is the logical unique key: saving a
// lead without an id upserts by email instead of inserting a duplicate.
type Lead struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	Email      string    `json:"email" gorm:"index"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	Company    string    `json:"company"`
	Tags       []string  `json:"tags" gorm:"type:jsonb;serializer:json"`
	Status     string    `json:"status"`
	ImportedAt time.Time `json:"importedAt"`
}

// HasAnyTag reports whether the lead carries at least one of the given tags.
// An empty filter matches every lead.
func (l *Lead) HasAnyTag(tags []string) bool {
	if len(tags) == 0 {
		return true
	}
	for _, want := range tags {
		for _, have := range l.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}
