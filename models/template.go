package models

import "time"

// Template holds the HTML body a campaign renders per lead. Campaigns
// reference templates by id and resolve the content at run start, so an
// edit while a campaign is mid-flight changes the body for recipients that
// have not been sent yet.
type Template struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name"`
	Subject     string    `json:"subject"`
	HTMLContent string    `json:"htmlContent" gorm:"type:text"`
	CreatedAt   time.Time `json:"createdAt"`
}
