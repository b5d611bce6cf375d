package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"conecte/models"
)

// minBackupSize keeps a truncated or near-empty document from replacing a
// good backup.
const minBackupSize = 100

// document is the single serialized JSON document the FileStore persists.
type document struct {
	Config    models.Config        `json:"config"`
	Leads     []models.Lead        `json:"leads"`
	Templates []models.Template    `json:"templates"`
	Campaigns []models.Campaign    `json:"campaigns"`
	Logs      []models.DeliveryLog `json:"logs"`
	Forms     []models.Form        `json:"forms"`
	Users     []models.User        `json:"users"`
}

// FileStore keeps the whole database as one JSON document on disk. A
// single mutex serializes every read-modify-write cycle; persistence goes
// through a temp file and an atomic rename, with the previous
// known-good document copied to a .bak first.
type FileStore struct {
	path    string
	bakPath string
	logger  *log.Logger

	mu  sync.Mutex
	doc *document
}

// NewFileStore loads (or seeds) the document at path. If a document exists
// but cannot be parsed, it refuses to start rather than proceeding with an
// empty database and overwriting the real one.
func NewFileStore(path string, logger *log.Logger) (*FileStore, error) {
	fs := &FileStore{path: path, bakPath: path + ".bak", logger: logger}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FileStore) load() error {
	raw, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		fs.doc = defaultDocument()
		return fs.persist()
	}
	if err != nil {
		return fmt.Errorf("database file exists but cannot be read, refusing to continue: %w", err)
	}
	if strings.TrimSpace(string(raw)) == "" {
		fs.logger.Println("database file is empty, seeding defaults")
		fs.doc = defaultDocument()
		return fs.persist()
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("database file exists but is corrupted, refusing to continue: %w", err)
	}
	fs.doc = &doc

	// Initial backup so a first bad overwrite is still recoverable.
	if _, err := os.Stat(fs.bakPath); os.IsNotExist(err) {
		if err := os.WriteFile(fs.bakPath, raw, 0o600); err != nil {
			fs.logger.Printf("could not write initial backup: %v", err)
		}
	}
	return nil
}

func defaultDocument() *document {
	return &document{
		Config: models.DefaultConfig(),
		Users: []models.User{
			{ID: "1", Email: "admin@conecte.local", Name: "Administrator", Role: "admin", PasswordHash: mustHash("admin")},
			{ID: "2", Email: "user@conecte.local", Name: "User", Role: "user", PasswordHash: mustHash("user")},
		},
	}
}

func mustHash(password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return string(hash)
}

// persist writes the document atomically. Callers must hold fs.mu.
func (fs *FileStore) persist() error {
	data, err := json.MarshalIndent(fs.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal database: %w", err)
	}

	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp database: %w", err)
	}

	// Back up the current document before replacing it, but never back up
	// something suspiciously small.
	if stat, err := os.Stat(fs.path); err == nil && stat.Size() > minBackupSize {
		if prev, err := os.ReadFile(fs.path); err == nil {
			if err := os.WriteFile(fs.bakPath, prev, 0o600); err != nil {
				fs.logger.Printf("could not update backup: %v", err)
			}
		}
	}

	if err := os.Rename(tmp, fs.path); err != nil {
		return fmt.Errorf("replace database: %w", err)
	}
	return nil
}

// --- config ---

func (fs *FileStore) GetConfig() (models.Config, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.doc.Config, nil
}

func (fs *FileStore) SetConfig(cfg models.Config) (models.Config, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	cfg.ID = 1
	fs.doc.Config = cfg
	return cfg, fs.persist()
}

// --- leads ---

func (fs *FileStore) GetLeads() ([]models.Lead, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]models.Lead(nil), fs.doc.Leads...), nil
}

func (fs *FileStore) SaveLead(lead models.Lead) (models.Lead, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	lead = fs.upsertLead(lead)
	return lead, fs.persist()
}

// upsertLead inserts or updates by id, falling back to email as the
// logical key. Callers must hold fs.mu.
func (fs *FileStore) upsertLead(lead models.Lead) models.Lead {
	idx := -1
	for i := range fs.doc.Leads {
		if lead.ID != "" && fs.doc.Leads[i].ID == lead.ID {
			idx = i
			break
		}
		if lead.ID == "" && fs.doc.Leads[i].Email == lead.Email {
			idx = i
			break
		}
	}

	if idx >= 0 {
		existing := fs.doc.Leads[idx]
		lead.ID = existing.ID
		lead.ImportedAt = existing.ImportedAt
		if lead.Status == "" {
			lead.Status = existing.Status
		}
		fs.doc.Leads[idx] = lead
		return lead
	}

	if lead.ID == "" {
		lead.ID = NewID()
	}
	if lead.Status == "" {
		lead.Status = models.LeadStatusActive
	}
	if lead.ImportedAt.IsZero() {
		lead.ImportedAt = time.Now()
	}
	fs.doc.Leads = append(fs.doc.Leads, lead)
	return lead
}

func (fs *FileStore) BulkUpsertLeads(leads []models.Lead) (ImportResult, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	var result ImportResult
	for _, lead := range leads {
		existed := false
		for i := range fs.doc.Leads {
			if fs.doc.Leads[i].Email == lead.Email {
				existed = true
				break
			}
		}
		lead.ID = ""
		fs.upsertLead(lead)
		if existed {
			result.Duplicates++
		} else {
			result.Imported++
		}
	}
	return result, fs.persist()
}

func (fs *FileStore) DeleteLead(id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	kept := fs.doc.Leads[:0]
	for _, l := range fs.doc.Leads {
		if l.ID != id {
			kept = append(kept, l)
		}
	}
	fs.doc.Leads = kept
	return fs.persist()
}

func (fs *FileStore) GetAllTags() ([]string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	seen := make(map[string]struct{})
	for _, l := range fs.doc.Leads {
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

func (fs *FileStore) GetPerformanceStats() ([]DayStat, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	stats := make([]DayStat, 0, 7)
	for i := 6; i >= 0; i-- {
		day := time.Now().AddDate(0, 0, -i)
		key := day.Format("2006-01-02")
		stat := DayStat{Date: day.Format("02/01")}
		for _, entry := range fs.doc.Logs {
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

func (fs *FileStore) GetTemplates() ([]models.Template, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]models.Template(nil), fs.doc.Templates...), nil
}

func (fs *FileStore) GetTemplate(id string) (*models.Template, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, t := range fs.doc.Templates {
		if t.ID == id {
			tpl := t
			return &tpl, nil
		}
	}
	return nil, ErrNotFound
}

func (fs *FileStore) SaveTemplate(tpl models.Template) (models.Template, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if tpl.ID != "" {
		for i := range fs.doc.Templates {
			if fs.doc.Templates[i].ID == tpl.ID {
				tpl.CreatedAt = fs.doc.Templates[i].CreatedAt
				fs.doc.Templates[i] = tpl
				return tpl, fs.persist()
			}
		}
	}
	if tpl.ID == "" {
		tpl.ID = NewID()
	}
	if tpl.CreatedAt.IsZero() {
		tpl.CreatedAt = time.Now()
	}
	fs.doc.Templates = append(fs.doc.Templates, tpl)
	return tpl, fs.persist()
}

func (fs *FileStore) DeleteTemplate(id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	kept := fs.doc.Templates[:0]
	for _, t := range fs.doc.Templates {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	fs.doc.Templates = kept
	return fs.persist()
}

// --- campaigns ---

func (fs *FileStore) GetCampaigns() ([]models.Campaign, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]models.Campaign(nil), fs.doc.Campaigns...), nil
}

func (fs *FileStore) GetCampaign(id string) (*models.Campaign, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if c := fs.findCampaign(id); c != nil {
		out := *c
		return &out, nil
	}
	return nil, ErrNotFound
}

func (fs *FileStore) findCampaign(id string) *models.Campaign {
	for i := range fs.doc.Campaigns {
		if fs.doc.Campaigns[i].ID == id {
			return &fs.doc.Campaigns[i]
		}
	}
	return nil
}

func (fs *FileStore) SaveCampaign(c models.Campaign) (models.Campaign, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if c.ID != "" {
		if existing := fs.findCampaign(c.ID); existing != nil {
			// Aggregate counters belong to the log operations; a document
			// update never rewrites them.
			c.CreatedAt = existing.CreatedAt
			c.SentCount = existing.SentCount
			c.DeliveredCount = existing.DeliveredCount
			c.OpenCount = existing.OpenCount
			c.ClickCount = existing.ClickCount
			c.BounceCount = existing.BounceCount
			c.ComplaintCount = existing.ComplaintCount
			c.UnsubscribeCount = existing.UnsubscribeCount
			c.FailedCount = existing.FailedCount
			*existing = c
			return c, fs.persist()
		}
	}
	if c.ID == "" {
		c.ID = NewID()
	}
	if c.Status == "" {
		c.Status = models.CampaignStatusDraft
	}
	c.CreatedAt = time.Now()
	fs.doc.Campaigns = append(fs.doc.Campaigns, c)
	return c, fs.persist()
}

func (fs *FileStore) UpdateCampaignStatus(id, status, errorMsg string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	c := fs.findCampaign(id)
	if c == nil {
		return ErrNotFound
	}
	c.Status = status
	c.ErrorMsg = errorMsg
	return fs.persist()
}

func (fs *FileStore) SetCampaignTotals(id string, totalLeads int) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	c := fs.findCampaign(id)
	if c == nil {
		return ErrNotFound
	}
	c.TotalLeads = totalLeads
	return fs.persist()
}

func (fs *FileStore) ResetCampaignCounters(id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	c := fs.findCampaign(id)
	if c == nil {
		return ErrNotFound
	}
	c.TotalLeads = 0
	c.SentCount = 0
	c.DeliveredCount = 0
	c.OpenCount = 0
	c.ClickCount = 0
	c.BounceCount = 0
	c.ComplaintCount = 0
	c.UnsubscribeCount = 0
	c.FailedCount = 0
	return fs.persist()
}

func (fs *FileStore) DeleteCampaign(id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	kept := fs.doc.Campaigns[:0]
	for _, c := range fs.doc.Campaigns {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	fs.doc.Campaigns = kept
	fs.removeLogs(id)
	return fs.persist()
}

// --- delivery logs ---

func (fs *FileStore) AddLog(entry models.DeliveryLog) (models.DeliveryLog, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	entry = fs.appendLog(entry)
	return entry, fs.persist()
}

func (fs *FileStore) AddLogs(entries []models.DeliveryLog) ([]models.DeliveryLog, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	out := make([]models.DeliveryLog, 0, len(entries))
	for _, entry := range entries {
		out = append(out, fs.appendLog(entry))
	}
	return out, fs.persist()
}

// appendLog stores one attempt and applies the sent/failed campaign
// counters in the same mutation. Callers must hold fs.mu.
func (fs *FileStore) appendLog(entry models.DeliveryLog) models.DeliveryLog {
	if entry.ID == "" {
		entry.ID = NewID()
	}
	if entry.SentAt.IsZero() {
		entry.SentAt = time.Now()
	}
	if entry.Clicks == nil {
		entry.Clicks = []models.Click{}
	}
	fs.doc.Logs = append(fs.doc.Logs, entry)

	if c := fs.findCampaign(entry.CampaignID); c != nil {
		switch entry.Status {
		case models.LogStatusSent:
			c.SentCount++
		case models.LogStatusFailed:
			c.FailedCount++
		}
	}
	return entry
}

func (fs *FileStore) UpdateLog(id string, upd LogUpdate) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	var entry *models.DeliveryLog
	for i := range fs.doc.Logs {
		if fs.doc.Logs[i].ID == id {
			entry = &fs.doc.Logs[i]
			break
		}
	}
	if entry == nil {
		return ErrNotFound
	}

	firstOpen := upd.OpenedAt != nil && entry.OpenedAt == nil
	firstClick := upd.LastClickedAt != nil && entry.LastClickedAt == nil

	if upd.OpenedAt != nil && entry.OpenedAt == nil {
		entry.OpenedAt = upd.OpenedAt
	}
	if upd.LastClickedAt != nil {
		entry.LastClickedAt = upd.LastClickedAt
	}
	if upd.Click != nil {
		entry.Clicks = append(entry.Clicks, *upd.Click)
	}

	if c := fs.findCampaign(entry.CampaignID); c != nil {
		if firstOpen {
			c.OpenCount++
		}
		if firstClick {
			c.ClickCount++
		}
	}
	return fs.persist()
}

func (fs *FileStore) GetLogs(campaignID string) ([]models.DeliveryLog, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var out []models.DeliveryLog
	for _, entry := range fs.doc.Logs {
		if entry.CampaignID == campaignID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (fs *FileStore) GetLogByProviderID(providerID string) (*models.DeliveryLog, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, entry := range fs.doc.Logs {
		if entry.ProviderID != "" && entry.ProviderID == providerID {
			out := entry
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (fs *FileStore) ApplyProviderEvent(providerID, event, url string) (*ProviderEventResult, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	var entry *models.DeliveryLog
	for i := range fs.doc.Logs {
		if fs.doc.Logs[i].ProviderID != "" && fs.doc.Logs[i].ProviderID == providerID {
			entry = &fs.doc.Logs[i]
			break
		}
	}
	if entry == nil {
		return nil, ErrNotFound
	}
	campaign := fs.findCampaign(entry.CampaignID)
	if campaign == nil {
		return nil, ErrNotFound
	}

	now := time.Now()
	switch event {
	case EventDelivered:
		if entry.DeliveredAt == nil {
			entry.DeliveredAt = &now
			campaign.DeliveredCount++
		}
	case EventOpened:
		if entry.OpenedAt == nil {
			entry.OpenedAt = &now
			campaign.OpenCount++
		}
	case EventClicked:
		// Every click lands in the history, but only the first one moves
		// the campaign counter.
		firstClick := entry.LastClickedAt == nil
		entry.LastClickedAt = &now
		entry.Clicks = append(entry.Clicks, models.Click{At: now, URL: url})
		if firstClick {
			campaign.ClickCount++
		}
	case EventBounced:
		if entry.BouncedAt == nil {
			entry.BouncedAt = &now
			entry.Status = models.LogStatusBounced
			campaign.BounceCount++
		}
	case EventComplained:
		if entry.ComplainedAt == nil {
			entry.ComplainedAt = &now
			campaign.ComplaintCount++
		}
	case EventUnsubscribed:
		if entry.UnsubscribedAt == nil {
			entry.UnsubscribedAt = &now
			campaign.UnsubscribeCount++
		}
	}

	if err := fs.persist(); err != nil {
		return nil, err
	}
	return &ProviderEventResult{Log: *entry, Campaign: *campaign}, nil
}

func (fs *FileStore) UnsubscribeByLog(logID string) (*models.DeliveryLog, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	var entry *models.DeliveryLog
	for i := range fs.doc.Logs {
		if fs.doc.Logs[i].ID == logID {
			entry = &fs.doc.Logs[i]
			break
		}
	}
	if entry == nil {
		return nil, ErrNotFound
	}

	for i := range fs.doc.Leads {
		if fs.doc.Leads[i].ID == entry.LeadID || fs.doc.Leads[i].Email == entry.Email {
			fs.doc.Leads[i].Status = models.LeadStatusUnsubscribed
			break
		}
	}
	if c := fs.findCampaign(entry.CampaignID); c != nil {
		c.UnsubscribeCount++
	}

	if err := fs.persist(); err != nil {
		return nil, err
	}
	out := *entry
	return &out, nil
}

func (fs *FileStore) ClearCampaignLogs(campaignID string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.removeLogs(campaignID)
	return fs.persist()
}

func (fs *FileStore) removeLogs(campaignID string) {
	kept := fs.doc.Logs[:0]
	for _, entry := range fs.doc.Logs {
		if entry.CampaignID != campaignID {
			kept = append(kept, entry)
		}
	}
	fs.doc.Logs = kept
}

// --- forms ---

func (fs *FileStore) GetForms() ([]models.Form, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]models.Form(nil), fs.doc.Forms...), nil
}

func (fs *FileStore) GetForm(id string) (*models.Form, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, f := range fs.doc.Forms {
		if f.ID == id {
			out := f
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (fs *FileStore) SaveForm(f models.Form) (models.Form, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if f.ID != "" {
		for i := range fs.doc.Forms {
			if fs.doc.Forms[i].ID == f.ID {
				f.CreatedAt = fs.doc.Forms[i].CreatedAt
				fs.doc.Forms[i] = f
				return f, fs.persist()
			}
		}
	}
	if f.ID == "" {
		f.ID = NewID()
	}
	f.CreatedAt = time.Now()
	f.Submissions = 0
	fs.doc.Forms = append(fs.doc.Forms, f)
	return f, fs.persist()
}

func (fs *FileStore) DeleteForm(id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	kept := fs.doc.Forms[:0]
	for _, f := range fs.doc.Forms {
		if f.ID != id {
			kept = append(kept, f)
		}
	}
	fs.doc.Forms = kept
	return fs.persist()
}

func (fs *FileStore) IncrementFormMetric(id, metric string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for i := range fs.doc.Forms {
		if fs.doc.Forms[i].ID != id {
			continue
		}
		switch metric {
		case "views":
			fs.doc.Forms[i].Views++
		case "submissions":
			fs.doc.Forms[i].Submissions++
		}
		return fs.persist()
	}
	return ErrNotFound
}

// --- users ---

func (fs *FileStore) GetUserByEmail(email string) (*models.User, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, u := range fs.doc.Users {
		if u.Email == email {
			out := u
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (fs *FileStore) UpdateUser(u models.User) (*models.User, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for i := range fs.doc.Users {
		if fs.doc.Users[i].ID == u.ID {
			fs.doc.Users[i] = u
			out := u
			return &out, fs.persist()
		}
	}
	return nil, ErrNotFound
}
