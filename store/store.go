package store

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"conecte/models"
)

// ErrNotFound is returned when a lookup by id, email or provider id
// matches nothing. Handlers map it to a 404 instead of crashing.
var ErrNotFound = errors.New("store: not found")

// Provider webhook event types, already stripped of the provider's
// "email." prefix.
const (
	EventDelivered    = "delivered"
	EventOpened       = "opened"
	EventClicked      = "clicked"
	EventBounced      = "bounced"
	EventComplained   = "complained"
	EventUnsubscribed = "unsubscribed"
)

// ImportResult reports the outcome of a bulk lead import.
type ImportResult struct {
	Imported   int `json:"imported"`
	Duplicates int `json:"duplicates"`
}

// LogUpdate is a partial update to a delivery log, applied by the tracking
/// endpoints. The store guards the campaign counters: only the first open
// and the first click of a log increment the campaign aggregates.
type LogUpdate struct {
	OpenedAt      *time.Time
	LastClickedAt *time.Time
	Click         *models.Click
}

// ProviderEventResult is returned by ApplyProviderEvent so the webhook
// handler can echo the affected campaign.
type ProviderEventResult struct {
	Log      models.DeliveryLog
	Campaign models.Campaign
}

// DayStat is one day of send outcomes for the performance chart.
type DayStat struct {
	Date    string `json:"date"`
	Success int    `json:"success"`
	Failed  int    `json:"failed"`
}

// Store is the durable keyed-collection document store every component
// talks to. Implementations must serialize writes, and every mutation of a
// campaign aggregate counter happens inside the same atomic operation as
// the log mutation that justifies it.
type Store interface {
	GetConfig() (models.Config, error)
	SetConfig(cfg models.Config) (models.Config, error)

	GetLeads() ([]models.Lead, error)
	SaveLead(lead models.Lead) (models.Lead, error)
	BulkUpsertLeads(leads []models.Lead) (ImportResult, error)
	DeleteLead(id string) error
	GetAllTags() ([]string, error)
	GetPerformanceStats() ([]DayStat, error)

	GetTemplates() ([]models.Template, error)
	GetTemplate(id string) (*models.Template, error)
	SaveTemplate(tpl models.Template) (models.Template, error)
	DeleteTemplate(id string) error

	GetCampaigns() ([]models.Campaign, error)
	GetCampaign(id string) (*models.Campaign, error)
	SaveCampaign(c models.Campaign) (models.Campaign, error)
	UpdateCampaignStatus(id, status, errorMsg string) error
	SetCampaignTotals(id string, totalLeads int) error
	ResetCampaignCounters(id string) error
	DeleteCampaign(id string) error

	AddLog(entry models.DeliveryLog) (models.DeliveryLog, error)
	AddLogs(entries []models.DeliveryLog) ([]models.DeliveryLog, error)
	UpdateLog(id string, upd LogUpdate) error
	GetLogs(campaignID string) ([]models.DeliveryLog, error)
	GetLogByProviderID(providerID string) (*models.DeliveryLog, error)
	ApplyProviderEvent(providerID, event, url string) (*ProviderEventResult, error)
	UnsubscribeByLog(logID string) (*models.DeliveryLog, error)
	ClearCampaignLogs(campaignID string) error

	GetForms() ([]models.Form, error)
	GetForm(id string) (*models.Form, error)
	SaveForm(f models.Form) (models.Form, error)
	DeleteForm(id string) error
	IncrementFormMetric(id, metric string) error

	GetUserByEmail(email string) (*models.User, error)
	UpdateUser(u models.User) (*models.User, error)
}

// NewID returns a collision-resistant identifier for documents and
// delivery logs. Log ids must exist before transmission so they can be
// embedded in the tracking links of the rendered body.
func NewID() string {
	return uuid.New().String()
}
