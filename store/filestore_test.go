package store

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conecte/models"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "db.json"), log.New(io.Discard, "", 0))
	require.NoError(t, err)
	return fs
}

func seedCampaign(t *testing.T, fs *FileStore) models.Campaign {
	t.Helper()
	c, err := fs.SaveCampaign(models.Campaign{Subject: "Hello", TemplateID: "tpl-1"})
	require.NoError(t, err)
	return c
}

func TestNewFileStoreSeedsDefaults(t *testing.T) {
	fs := newTestStore(t)

	cfg, err := fs.GetConfig()
	require.NoError(t, err)
	assert.Equal(t, models.MethodSMTP, cfg.Method)

	admin, err := fs.GetUserByEmail("admin@conecte.local")
	require.NoError(t, err)
	assert.Equal(t, "admin", admin.Role)
}

func TestNewFileStoreRefusesCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileStore(path, log.New(io.Discard, "", 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupted")
}

func TestPersistWritesBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	fs, err := NewFileStore(path, log.New(io.Discard, "", 0))
	require.NoError(t, err)

	// Seeded document exceeds the backup threshold, so the next write
	// must snapshot it first.
	_, err = fs.SaveLead(models.Lead{Email: "a@example.com"})
	require.NoError(t, err)

	bak, err := os.ReadFile(path + ".bak")
	require.NoError(t, err)
	assert.NotEmpty(t, bak)
}

func TestSaveLeadUpsertsByEmail(t *testing.T) {
	fs := newTestStore(t)

	first, err := fs.SaveLead(models.Lead{Email: "a@example.com", Name: "A"})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	assert.Equal(t, models.LeadStatusActive, first.Status)

	second, err := fs.SaveLead(models.Lead{Email: "a@example.com", Name: "A updated", Tags: []string{"vip"}})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "A updated", second.Name)

	leads, err := fs.GetLeads()
	require.NoError(t, err)
	assert.Len(t, leads, 1)
}

func TestBulkUpsertLeadsCountsDuplicates(t *testing.T) {
	fs := newTestStore(t)

	_, err := fs.SaveLead(models.Lead{Email: "dup@example.com"})
	require.NoError(t, err)

	result, err := fs.BulkUpsertLeads([]models.Lead{
		{Email: "dup@example.com", Name: "Dup"},
		{Email: "new1@example.com"},
		{Email: "new2@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 1, result.Duplicates)

	leads, err := fs.GetLeads()
	require.NoError(t, err)
	assert.Len(t, leads, 3)
}

func TestSaveCampaignPreservesCounters(t *testing.T) {
	fs := newTestStore(t)
	c := seedCampaign(t, fs)

	_, err := fs.AddLog(models.DeliveryLog{CampaignID: c.ID, Email: "a@example.com", Status: models.LogStatusSent})
	require.NoError(t, err)

	c.Subject = "Edited"
	c.SentCount = 99
	saved, err := fs.SaveCampaign(c)
	require.NoError(t, err)
	assert.Equal(t, "Edited", saved.Subject)
	assert.Equal(t, 1, saved.SentCount)
}

func TestAddLogIncrementsSentAndFailed(t *testing.T) {
	fs := newTestStore(t)
	c := seedCampaign(t, fs)

	_, err := fs.AddLogs([]models.DeliveryLog{
		{CampaignID: c.ID, Email: "ok@example.com", Status: models.LogStatusSent},
		{CampaignID: c.ID, Email: "bad@example.com", Status: models.LogStatusFailed, ErrorMsg: "mailbox full"},
	})
	require.NoError(t, err)

	got, err := fs.GetCampaign(c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.SentCount)
	assert.Equal(t, 1, got.FailedCount)
}

func TestUpdateLogCountsFirstOpenOnly(t *testing.T) {
	fs := newTestStore(t)
	c := seedCampaign(t, fs)
	entry, err := fs.AddLog(models.DeliveryLog{CampaignID: c.ID, Email: "a@example.com", Status: models.LogStatusSent})
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, fs.UpdateLog(entry.ID, LogUpdate{OpenedAt: &now}))
	later := now.Add(time.Minute)
	require.NoError(t, fs.UpdateLog(entry.ID, LogUpdate{OpenedAt: &later}))

	got, err := fs.GetCampaign(c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.OpenCount)

	logs, err := fs.GetLogs(c.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	// The first open timestamp wins.
	assert.WithinDuration(t, now, *logs[0].OpenedAt, time.Second)
}

func TestUpdateLogClickHistoryGrowsCounterOnce(t *testing.T) {
	fs := newTestStore(t)
	c := seedCampaign(t, fs)
	entry, err := fs.AddLog(models.DeliveryLog{CampaignID: c.ID, Email: "a@example.com", Status: models.LogStatusSent})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		now := time.Now()
		require.NoError(t, fs.UpdateLog(entry.ID, LogUpdate{
			LastClickedAt: &now,
			Click:         &models.Click{At: now, URL: "https://example.com"},
		}))
	}

	got, err := fs.GetCampaign(c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ClickCount)

	logs, err := fs.GetLogs(c.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Len(t, logs[0].Clicks, 3)
}

func TestApplyProviderEventIsIdempotentPerType(t *testing.T) {
	fs := newTestStore(t)
	c := seedCampaign(t, fs)
	_, err := fs.AddLog(models.DeliveryLog{
		CampaignID: c.ID, Email: "a@example.com",
		Status: models.LogStatusSent, ProviderID: "prov-1",
	})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := fs.ApplyProviderEvent("prov-1", EventDelivered, "")
		require.NoError(t, err)
	}
	result, err := fs.ApplyProviderEvent("prov-1", EventBounced, "")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Campaign.DeliveredCount)
	assert.Equal(t, 1, result.Campaign.BounceCount)
	assert.Equal(t, models.LogStatusBounced, result.Log.Status)

	_, err = fs.ApplyProviderEvent("unknown", EventDelivered, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplyProviderEventClickedKeepsFullHistory(t *testing.T) {
	fs := newTestStore(t)
	c := seedCampaign(t, fs)
	_, err := fs.AddLog(models.DeliveryLog{
		CampaignID: c.ID, Email: "a@example.com",
		Status: models.LogStatusSent, ProviderID: "prov-2",
	})
	require.NoError(t, err)

	_, err = fs.ApplyProviderEvent("prov-2", EventClicked, "https://one.example.com")
	require.NoError(t, err)
	result, err := fs.ApplyProviderEvent("prov-2", EventClicked, "https://two.example.com")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Campaign.ClickCount)
	require.Len(t, result.Log.Clicks, 2)
	assert.Equal(t, "https://two.example.com", result.Log.Clicks[1].URL)
}

func TestUnsubscribeByLogMarksLead(t *testing.T) {
	fs := newTestStore(t)
	c := seedCampaign(t, fs)
	lead, err := fs.SaveLead(models.Lead{Email: "bye@example.com"})
	require.NoError(t, err)
	entry, err := fs.AddLog(models.DeliveryLog{
		CampaignID: c.ID, LeadID: lead.ID, Email: lead.Email, Status: models.LogStatusSent,
	})
	require.NoError(t, err)

	_, err = fs.UnsubscribeByLog(entry.ID)
	require.NoError(t, err)
	_, err = fs.UnsubscribeByLog(entry.ID)
	require.NoError(t, err)

	leads, err := fs.GetLeads()
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, models.LeadStatusUnsubscribed, leads[0].Status)

	got, err := fs.GetCampaign(c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.UnsubscribeCount)
}

func TestClearLogsAndResetCounters(t *testing.T) {
	fs := newTestStore(t)
	c := seedCampaign(t, fs)
	_, err := fs.AddLog(models.DeliveryLog{CampaignID: c.ID, Email: "a@example.com", Status: models.LogStatusSent})
	require.NoError(t, err)

	require.NoError(t, fs.ClearCampaignLogs(c.ID))
	require.NoError(t, fs.ResetCampaignCounters(c.ID))

	logs, err := fs.GetLogs(c.ID)
	require.NoError(t, err)
	assert.Empty(t, logs)

	got, err := fs.GetCampaign(c.ID)
	require.NoError(t, err)
	assert.Zero(t, got.SentCount)
	assert.Zero(t, got.TotalLeads)
}

func TestDeleteCampaignCascadesLogs(t *testing.T) {
	fs := newTestStore(t)
	c := seedCampaign(t, fs)
	other := seedCampaign(t, fs)
	_, err := fs.AddLog(models.DeliveryLog{CampaignID: c.ID, Email: "a@example.com", Status: models.LogStatusSent})
	require.NoError(t, err)
	kept, err := fs.AddLog(models.DeliveryLog{CampaignID: other.ID, Email: "b@example.com", Status: models.LogStatusSent})
	require.NoError(t, err)

	require.NoError(t, fs.DeleteCampaign(c.ID))

	_, err = fs.GetCampaign(c.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	logs, err := fs.GetLogs(other.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, kept.ID, logs[0].ID)
}

func TestReloadKeepsDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	fs, err := NewFileStore(path, log.New(io.Discard, "", 0))
	require.NoError(t, err)
	_, err = fs.SaveLead(models.Lead{Email: "persist@example.com"})
	require.NoError(t, err)

	reopened, err := NewFileStore(path, log.New(io.Discard, "", 0))
	require.NoError(t, err)
	leads, err := reopened.GetLeads()
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "persist@example.com", leads[0].Email)
}
