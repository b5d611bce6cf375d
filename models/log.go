package models

import "time"

// Delivery log states. A failed attempt keeps the lead eligible for retry
// on the next run; only a sent log excludes it from the resume worklist.
const (
	LogStatusSent    = "sent"
	LogStatusFailed  = "failed"
	LogStatusBounced = "bounced"
)

// Click is one entry in a log's ordered click history.
type Click struct {
	At  time.Time `json:"at"`
	URL string    `json:"url"`
}

// DeliveryLog is one send attempt for one recipient in one campaign. The
// id is generated locally before transmission so it can be embedded in the
// tracking links of the message body; ProviderID is correlated after the
// fact for the batch transport.
type DeliveryLog struct {
	ID         string `json:"id" gorm:"primaryKey"`
	CampaignID string `json:"campaignId" gorm:"index"`
	LeadID     string `json:"leadId"`
	Email      string `json:"email"`
	Status     string `json:"status"`
	ErrorMsg   string `json:"errorMsg,omitempty"`
	ProviderID string `json:"providerId,omitempty" gorm:"index"`

	SentAt         time.Time  `json:"sentAt"`
	DeliveredAt    *time.Time `json:"deliveredAt"`
	OpenedAt       *time.Time `json:"openedAt"`
	BouncedAt      *time.Time `json:"bouncedAt"`
	ComplainedAt   *time.Time `json:"complainedAt"`
	UnsubscribedAt *time.Time `json:"unsubscribedAt"`
	LastClickedAt  *time.Time `json:"lastClickedAt"`

	Clicks []Click `json:"clicks" gorm:"type:jsonb;serializer:json"`
}
