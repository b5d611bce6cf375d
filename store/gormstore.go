package store

import (
	"errors"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"conecte/models"
)

// GormStore is the Postgres-backed implementation. Counter updates happen
// in the same transaction as the log mutation they belong to, which gives
// the same atomicity the file store gets from its single writer lock.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore migrates the schema and seeds the config row and default
// operator accounts on first run.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(
		&models.Config{},
		&models.Lead{},
		&models.Template{},
		&models.Campaign{},
		&models.DeliveryLog{},
		&models.Form{},
		&models.User{},
	); err != nil {
		return nil, err
	}

	gs := &GormStore{db: db}
	if err := gs.seed(); err != nil {
		return nil, err
	}
	return gs, nil
}

func (gs *GormStore) seed() error {
	var count int64
	if err := gs.db.Model(&models.Config{}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		cfg := models.DefaultConfig()
		if err := gs.db.Create(&cfg).Error; err != nil {
			return err
		}
	}
	if err := gs.db.Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		for _, u := range defaultDocument().Users {
			if err := gs.db.Create(&u).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// --- config ---

func (gs *GormStore) GetConfig() (models.Config, error) {
	var cfg models.Config
	err := gs.db.First(&cfg, "id = ?", 1).Error
	return cfg, err
}

func (gs *GormStore) SetConfig(cfg models.Config) (models.Config, error) {
	cfg.ID = 1
	return cfg, gs.db.Save(&cfg).Error
}

// --- leads ---

func (gs *GormStore) GetLeads() ([]models.Lead, error) {
	var leads []models.Lead
	return leads, gs.db.Find(&leads).Error
}

func (gs *GormStore) SaveLead(lead models.Lead) (models.Lead, error) {
	err := gs.db.Transaction(func(tx *gorm.DB) error {
		saved, err := upsertLeadTx(tx, lead)
		if err != nil {
			return err
		}
		lead = saved
		return nil
	})
	return lead, err
}

func upsertLeadTx(tx *gorm.DB, lead models.Lead) (models.Lead, error) {
	var existing models.Lead
	var err error
	if lead.ID != "" {
		err = tx.First(&existing, "id = ?", lead.ID).Error
	} else {
		err = tx.First(&existing, "email = ?", lead.Email).Error
	}

	switch {
	case err == nil:
		lead.ID = existing.ID
		lead.ImportedAt = existing.ImportedAt
		if lead.Status == "" {
			lead.Status = existing.Status
		}
		return lead, tx.Save(&lead).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		if lead.ID == "" {
			lead.ID = NewID()
		}
		if lead.Status == "" {
			lead.Status = models.LeadStatusActive
		}
		if lead.ImportedAt.IsZero() {
			lead.ImportedAt = time.Now()
		}
		return lead, tx.Create(&lead).Error
	default:
		return lead, err
	}
}

func (gs *GormStore) BulkUpsertLeads(leads []models.Lead) (ImportResult, error) {
	var result ImportResult
	err := gs.db.Transaction(func(tx *gorm.DB) error {
		for _, lead := range leads {
			var count int64
			if err := tx.Model(&models.Lead{}).Where("email = ?", lead.Email).Count(&count).Error; err != nil {
				return err
			}
			lead.ID = ""
			if _, err := upsertLeadTx(tx, lead); err != nil {
				return err
			}
			if count > 0 {
				result.Duplicates++
			} else {
				result.Imported++
			}
		}
		return nil
	})
	return result, err
}

func (gs *GormStore) DeleteLead(id string) error {
	return gs.db.Delete(&models.Lead{}, "id = ?", id).Error
}

func (gs *GormStore) GetAllTags() ([]string, error) {
	// Tags live in a serialized json column, so the union is computed here
	// rather than in SQL.
	var leads []models.Lead
	if err := gs.db.Select("tags").Find(&leads).Error; err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, l := range leads {
		for _, t := range l.Tags {
			seen[t] = struct{}{}
		}
	}
	tags := make([]string, 0, len(seen))
	for t := range seen {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags, nil
}

func (gs *GormStore) GetPerformanceStats() ([]DayStat, error) {
	since := time.Now().AddDate(0, 0, -7)
	var logs []models.DeliveryLog
	if err := gs.db.Where("sent_at >= ?", since).Find(&logs).Error; err != nil {
		return nil, err
	}

	stats := make([]DayStat, 0, 7)
	for i := 6; i >= 0; i-- {
		day := time.Now().AddDate(0, 0, -i)
		key := day.Format("2006-01-02")
		stat := DayStat{Date: day.Format("02/01")}
		for _, entry := range logs {
			if entry.SentAt.Format("2006-01-02") != key {
				continue
			}
			switch entry.Status {
			case models.LogStatusSent:
				stat.Success++
			case models.LogStatusFailed:
				stat.Failed++
			}
		}
		stats = append(stats, stat)
	}
	return stats, nil
}

// --- templates ---

func (gs *GormStore) GetTemplates() ([]models.Template, error) {
	var tpls []models.Template
	return tpls, gs.db.Find(&tpls).Error
}

func (gs *GormStore) GetTemplate(id string) (*models.Template, error) {
	var tpl models.Template
	if err := gs.db.First(&tpl, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &tpl, nil
}

func (gs *GormStore) SaveTemplate(tpl models.Template) (models.Template, error) {
	if tpl.ID == "" {
		tpl.ID = NewID()
		tpl.CreatedAt = time.Now()
		return tpl, gs.db.Create(&tpl).Error
	}
	var existing models.Template
	if err := gs.db.First(&existing, "id = ?", tpl.ID).Error; err == nil {
		tpl.CreatedAt = existing.CreatedAt
	} else if tpl.CreatedAt.IsZero() {
		tpl.CreatedAt = time.Now()
	}
	return tpl, gs.db.Save(&tpl).Error
}

func (gs *GormStore) DeleteTemplate(id string) error {
	return gs.db.Delete(&models.Template{}, "id = ?", id).Error
}

// --- campaigns ---

func (gs *GormStore) GetCampaigns() ([]models.Campaign, error) {
	var campaigns []models.Campaign
	return campaigns, gs.db.Find(&campaigns).Error
}

func (gs *GormStore) GetCampaign(id string) (*models.Campaign, error) {
	var c models.Campaign
	if err := gs.db.First(&c, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (gs *GormStore) SaveCampaign(c models.Campaign) (models.Campaign, error) {
	err := gs.db.Transaction(func(tx *gorm.DB) error {
		if c.ID != "" {
			var existing models.Campaign
			if err := tx.First(&existing, "id = ?", c.ID).Error; err == nil {
				c.CreatedAt = existing.CreatedAt
				c.SentCount = existing.SentCount
				c.DeliveredCount = existing.DeliveredCount
				c.OpenCount = existing.OpenCount
				c.ClickCount = existing.ClickCount
				c.BounceCount = existing.BounceCount
				c.ComplaintCount = existing.ComplaintCount
				c.UnsubscribeCount = existing.UnsubscribeCount
				c.FailedCount = existing.FailedCount
				return tx.Save(&c).Error
			}
		}
		if c.ID == "" {
			c.ID = NewID()
		}
		if c.Status == "" {
			c.Status = models.CampaignStatusDraft
		}
		c.CreatedAt = time.Now()
		return tx.Create(&c).Error
	})
	return c, err
}

func (gs *GormStore) UpdateCampaignStatus(id, status, errorMsg string) error {
	res := gs.db.Model(&models.Campaign{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "error_msg": errorMsg})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (gs *GormStore) SetCampaignTotals(id string, totalLeads int) error {
	res := gs.db.Model(&models.Campaign{}).Where("id = ?", id).
		Update("total_leads", totalLeads)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (gs *GormStore) ResetCampaignCounters(id string) error {
	res := gs.db.Model(&models.Campaign{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_leads":       0,
			"sent_count":        0,
			"delivered_count":   0,
			"open_count":        0,
			"click_count":       0,
			"bounce_count":      0,
			"complaint_count":   0,
			"unsubscribe_count": 0,
			"failed_count":      0,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (gs *GormStore) DeleteCampaign(id string) error {
	return gs.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.DeliveryLog{}, "campaign_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Campaign{}, "id = ?", id).Error
	})
}

// --- delivery logs ---

func (gs *GormStore) AddLog(entry models.DeliveryLog) (models.DeliveryLog, error) {
	err := gs.db.Transaction(func(tx *gorm.DB) error {
		saved, err := appendLogTx(tx, entry)
		if err != nil {
			return err
		}
		entry = saved
		return nil
	})
	return entry, err
}

func (gs *GormStore) AddLogs(entries []models.DeliveryLog) ([]models.DeliveryLog, error) {
	out := make([]models.DeliveryLog, 0, len(entries))
	err := gs.db.Transaction(func(tx *gorm.DB) error {
		for _, entry := range entries {
			saved, err := appendLogTx(tx, entry)
			if err != nil {
				return err
			}
			out = append(out, saved)
		}
		return nil
	})
	return out, err
}

func appendLogTx(tx *gorm.DB, entry models.DeliveryLog) (models.DeliveryLog, error) {
	if entry.ID == "" {
		entry.ID = NewID()
	}
	if entry.SentAt.IsZero() {
		entry.SentAt = time.Now()
	}
	if entry.Clicks == nil {
		entry.Clicks = []models.Click{}
	}
	if err := tx.Create(&entry).Error; err != nil {
		return entry, err
	}

	var column string
	switch entry.Status {
	case models.LogStatusSent:
		column = "sent_count"
	case models.LogStatusFailed:
		column = "failed_count"
	default:
		return entry, nil
	}
	err := tx.Model(&models.Campaign{}).Where("id = ?", entry.CampaignID).
		Update(column, gorm.Expr(column+" + ?", 1)).Error
	return entry, err
}

func (gs *GormStore) UpdateLog(id string, upd LogUpdate) error {
	return gs.db.Transaction(func(tx *gorm.DB) error {
		var entry models.DeliveryLog
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&entry, "id = ?", id).Error; err != nil {
			return notFound(err)
		}

		firstOpen := upd.OpenedAt != nil && entry.OpenedAt == nil
		firstClick := upd.LastClickedAt != nil && entry.LastClickedAt == nil

		if firstOpen {
			entry.OpenedAt = upd.OpenedAt
		}
		if upd.LastClickedAt != nil {
			entry.LastClickedAt = upd.LastClickedAt
		}
		if upd.Click != nil {
			entry.Clicks = append(entry.Clicks, *upd.Click)
		}
		if err := tx.Save(&entry).Error; err != nil {
			return err
		}

		if firstOpen {
			if err := incrementCounter(tx, entry.CampaignID, "open_count"); err != nil {
				return err
			}
		}
		if firstClick {
			if err := incrementCounter(tx, entry.CampaignID, "click_count"); err != nil {
				return err
			}
		}
		return nil
	})
}

func incrementCounter(tx *gorm.DB, campaignID, column string) error {
	return tx.Model(&models.Campaign{}).Where("id = ?", campaignID).
		Update(column, gorm.Expr(column+" + ?", 1)).Error
}

func (gs *GormStore) GetLogs(campaignID string) ([]models.DeliveryLog, error) {
	var logs []models.DeliveryLog
	return logs, gs.db.Where("campaign_id = ?", campaignID).Find(&logs).Error
}

func (gs *GormStore) GetLogByProviderID(providerID string) (*models.DeliveryLog, error) {
	if providerID == "" {
		return nil, ErrNotFound
	}
	var entry models.DeliveryLog
	if err := gs.db.First(&entry, "provider_id = ?", providerID).Error; err != nil {
		return nil, notFound(err)
	}
	return &entry, nil
}

func (gs *GormStore) ApplyProviderEvent(providerID, event, url string) (*ProviderEventResult, error) {
	if providerID == "" {
		return nil, ErrNotFound
	}
	var result ProviderEventResult
	err := gs.db.Transaction(func(tx *gorm.DB) error {
		var entry models.DeliveryLog
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&entry, "provider_id = ?", providerID).Error; err != nil {
			return notFound(err)
		}
		var campaign models.Campaign
		if err := tx.First(&campaign, "id = ?", entry.CampaignID).Error; err != nil {
			return notFound(err)
		}

		now := time.Now()
		var counter string
		switch event {
		case EventDelivered:
			if entry.DeliveredAt == nil {
				entry.DeliveredAt = &now
				counter = "delivered_count"
			}
		case EventOpened:
			if entry.OpenedAt == nil {
				entry.OpenedAt = &now
				counter = "open_count"
			}
		case EventClicked:
			if entry.LastClickedAt == nil {
				counter = "click_count"
			}
			entry.LastClickedAt = &now
			entry.Clicks = append(entry.Clicks, models.Click{At: now, URL: url})
		case EventBounced:
			if entry.BouncedAt == nil {
				entry.BouncedAt = &now
				entry.Status = models.LogStatusBounced
				counter = "bounce_count"
			}
		case EventComplained:
			if entry.ComplainedAt == nil {
				entry.ComplainedAt = &now
				counter = "complaint_count"
			}
		case EventUnsubscribed:
			if entry.UnsubscribedAt == nil {
				entry.UnsubscribedAt = &now
				counter = "unsubscribe_count"
			}
		}

		if err := tx.Save(&entry).Error; err != nil {
			return err
		}
		if counter != "" {
			if err := incrementCounter(tx, entry.CampaignID, counter); err != nil {
				return err
			}
		}
		if err := tx.First(&campaign, "id = ?", entry.CampaignID).Error; err != nil {
			return err
		}
		result = ProviderEventResult{Log: entry, Campaign: campaign}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (gs *GormStore) UnsubscribeByLog(logID string) (*models.DeliveryLog, error) {
	var entry models.DeliveryLog
	err := gs.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&entry, "id = ?", logID).Error; err != nil {
			return notFound(err)
		}
		res := tx.Model(&models.Lead{}).Where("id = ?", entry.LeadID).
			Update("status", models.LeadStatusUnsubscribed)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := tx.Model(&models.Lead{}).Where("email = ?", entry.Email).
				Update("status", models.LeadStatusUnsubscribed).Error; err != nil {
				return err
			}
		}
		return incrementCounter(tx, entry.CampaignID, "unsubscribe_count")
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (gs *GormStore) ClearCampaignLogs(campaignID string) error {
	return gs.db.Delete(&models.DeliveryLog{}, "campaign_id = ?", campaignID).Error
}

// --- forms ---

func (gs *GormStore) GetForms() ([]models.Form, error) {
	var forms []models.Form
	return forms, gs.db.Find(&forms).Error
}

func (gs *GormStore) GetForm(id string) (*models.Form, error) {
	var f models.Form
	if err := gs.db.First(&f, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &f, nil
}

func (gs *GormStore) SaveForm(f models.Form) (models.Form, error) {
	if f.ID == "" {
		f.ID = NewID()
		f.CreatedAt = time.Now()
		f.Submissions = 0
		return f, gs.db.Create(&f).Error
	}
	var existing models.Form
	if err := gs.db.First(&existing, "id = ?", f.ID).Error; err == nil {
		f.CreatedAt = existing.CreatedAt
	}
	return f, gs.db.Save(&f).Error
}

func (gs *GormStore) DeleteForm(id string) error {
	return gs.db.Delete(&models.Form{}, "id = ?", id).Error
}

func (gs *GormStore) IncrementFormMetric(id, metric string) error {
	var column string
	switch metric {
	case "views":
		column = "views"
	case "submissions":
		column = "submissions"
	default:
		return nil
	}
	res := gs.db.Model(&models.Form{}).Where("id = ?", id).
		Update(column, gorm.Expr(column+" + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- users ---

func (gs *GormStore) GetUserByEmail(email string) (*models.User, error) {
	var u models.User
	if err := gs.db.First(&u, "email = ?", email).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (gs *GormStore) UpdateUser(u models.User) (*models.User, error) {
	res := gs.db.Model(&models.User{}).Where("id = ?", u.ID).Updates(map[string]interface{}{
		"email": u.Email,
		"name":  u.Name,
		"role":  u.Role,
	})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	if u.PasswordHash != "" {
		if err := gs.db.Model(&models.User{}).Where("id = ?", u.ID).
			Update("password_hash", u.PasswordHash).Error; err != nil {
			return nil, err
		}
	}
	return &u, nil
}
