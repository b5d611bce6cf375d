package models

import "time"

// Campaign state machine:
//
//	draft → scheduled → running → {completed | paused | error}
//	paused → running (resume), completed/paused → running (restart)
const (
	CampaignStatusDraft     = "draft"
	CampaignStatusScheduled = "scheduled"
	CampaignStatusRunning   = "running"
	CampaignStatusCompleted = "completed"
	CampaignStatusPaused    = "paused"
	CampaignStatusError     = "error"
)

// Campaign is a bulk-send job against a tag-filtered lead audience using
// one template. The counters are monotonic aggregates maintained by the
// store's log operations; they are only reset by an explicit restart.
type Campaign struct {
	ID         string     `json:"id" gorm:"primaryKey"`
	TemplateID string     `json:"templateId" gorm:"index"`
	Subject    string     `json:"subject"`
	SenderName string     `json:"senderName"`
	ButtonLink string     `json:"buttonLink"`
	TargetTags []string   `json:"targetTags" gorm:"type:jsonb;serializer:json"`
	Interval   int        `json:"interval"` // seconds between sends/batches

	Status      string     `json:"status"`
	ErrorMsg    string     `json:"errorMsg,omitempty"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`

	TotalLeads       int `json:"totalLeads"`
	SentCount        int `json:"sentCount"`
	DeliveredCount   int `json:"deliveredCount"`
	OpenCount        int `json:"openCount"`
	ClickCount       int `json:"clickCount"`
	BounceCount      int `json:"bounceCount"`
	ComplaintCount   int `json:"complaintCount"`
	UnsubscribeCount int `json:"unsubscribeCount"`
	FailedCount      int `json:"failedCount"`
}

// SendInterval returns the delay between sends (SMTP) or batches
// (provider), falling back to the per-method default.
func (c *Campaign) SendInterval(method string) time.Duration {
	if c.Interval > 0 {
		return time.Duration(c.Interval) * time.Second
	}
	if method == MethodProvider {
		return time.Second
	}
	return 60 * time.Second
}
