package controller

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conecte/models"
	"conecte/store"
)

type trackingFixture struct {
	app      *fiber.App
	store    *store.FileStore
	campaign models.Campaign
	lead     models.Lead
	entry    models.DeliveryLog
}

func newTrackingFixture(t *testing.T) *trackingFixture {
	t.Helper()
	st, err := store.NewFileStore(filepath.Join(t.TempDir(), "db.json"), log.New(io.Discard, "", 0))
	require.NoError(t, err)

	slog := logrus.New()
	slog.SetLevel(logrus.PanicLevel)

	app := fiber.New()
	trackingController := NewTrackingController(st, log.New(io.Discard, "", 0))
	webhookController := NewWebhookController(st, log.New(io.Discard, "", 0), slog)
	app.Get("/api/t/o/:logId", trackingController.TrackOpen)
	app.Get("/api/t/c/:logId", trackingController.TrackClick)
	app.Get("/api/t/u/:logId", trackingController.Unsubscribe)
	app.Post("/api/marketing/webhook/provider", webhookController.HandleProviderWebhook)

	campaign, err := st.SaveCampaign(models.Campaign{TemplateID: "tpl", Subject: "Hi"})
	require.NoError(t, err)
	lead, err := st.SaveLead(models.Lead{Email: "lead@example.com"})
	require.NoError(t, err)
	entry, err := st.AddLog(models.DeliveryLog{
		CampaignID: campaign.ID, LeadID: lead.ID, Email: lead.Email,
		Status: models.LogStatusSent, ProviderID: "prov-1",
	})
	require.NoError(t, err)

	return &trackingFixture{app: app, store: st, campaign: campaign, lead: lead, entry: entry}
}

func (fx *trackingFixture) reloadCampaign(t *testing.T) *models.Campaign {
	t.Helper()
	c, err := fx.store.GetCampaign(fx.campaign.ID)
	require.NoError(t, err)
	return c
}

func TestTrackOpenServesPixelAndCountsOnce(t *testing.T) {
	fx := newTrackingFixture(t)

	for i := 0; i < 2; i++ {
		resp, err := fx.app.Test(httptest.NewRequest(http.MethodGet, "/api/t/o/"+fx.entry.ID, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, trackingPixel, body)
	}

	assert.Equal(t, 1, fx.reloadCampaign(t).OpenCount)
}

func TestTrackOpenUnknownLogStillServesPixel(t *testing.T) {
	fx := newTrackingFixture(t)

	resp, err := fx.app.Test(httptest.NewRequest(http.MethodGet, "/api/t/o/ghost", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
}

func TestTrackClickRedirectsToDestination(t *testing.T) {
	fx := newTrackingFixture(t)

	target := "/api/t/c/" + fx.entry.ID + "?u=https%3A%2F%2Fexample.com%2Fpage&cid=" + fx.campaign.ID
	resp, err := fx.app.Test(httptest.NewRequest(http.MethodGet, target, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://example.com/page", resp.Header.Get("Location"))

	logs, err := fx.store.GetLogs(fx.campaign.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Len(t, logs[0].Clicks, 1)
	assert.Equal(t, "https://example.com/page", logs[0].Clicks[0].URL)
	assert.Equal(t, 1, fx.reloadCampaign(t).ClickCount)
}

func TestTrackClickWithoutDestinationFallsBackToRoot(t *testing.T) {
	fx := newTrackingFixture(t)

	resp, err := fx.app.Test(httptest.NewRequest(http.MethodGet, "/api/t/c/"+fx.entry.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
}

func TestUnsubscribeMarksLeadAndConfirms(t *testing.T) {
	fx := newTrackingFixture(t)

	resp, err := fx.app.Test(httptest.NewRequest(http.MethodGet, "/api/t/u/"+fx.entry.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Unsubscribed")

	leads, err := fx.store.GetLeads()
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, models.LeadStatusUnsubscribed, leads[0].Status)
}

func TestUnsubscribeUnknownLogReturnsNotFound(t *testing.T) {
	fx := newTrackingFixture(t)

	resp, err := fx.app.Test(httptest.NewRequest(http.MethodGet, "/api/t/u/ghost", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func postWebhook(t *testing.T, fx *trackingFixture, payload map[string]interface{}) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/marketing/webhook/provider", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := fx.app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestWebhookAppliesDeliveredEvent(t *testing.T) {
	fx := newTrackingFixture(t)

	resp := postWebhook(t, fx, map[string]interface{}{
		"type": "email.delivered",
		"data": map[string]interface{}{"email_id": "prov-1"},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Success    bool   `json:"success"`
		CampaignID string `json:"campaignId"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Success)
	assert.Equal(t, fx.campaign.ID, out.CampaignID)

	assert.Equal(t, 1, fx.reloadCampaign(t).DeliveredCount)
}

func TestWebhookReplayDoesNotDoubleCount(t *testing.T) {
	fx := newTrackingFixture(t)

	payload := map[string]interface{}{
		"type": "email.opened",
		"data": map[string]interface{}{"email_id": "prov-1"},
	}
	postWebhook(t, fx, payload)
	postWebhook(t, fx, payload)

	assert.Equal(t, 1, fx.reloadCampaign(t).OpenCount)
}

func TestWebhookUnknownMessageIDReturnsNotFound(t *testing.T) {
	fx := newTrackingFixture(t)

	resp := postWebhook(t, fx, map[string]interface{}{
		"type": "email.delivered",
		"data": map[string]interface{}{"email_id": "nope"},
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebhookRejectsPayloadWithoutID(t *testing.T) {
	fx := newTrackingFixture(t)

	resp := postWebhook(t, fx, map[string]interface{}{"type": "email.delivered"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
