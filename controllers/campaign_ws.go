package controller

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/websocket/v2"

	"conecte/models"
	"conecte/store"
)

type campaignProgress struct {
	CampaignID string `json:"campaignId"`
	Status     string `json:"status"`
	TotalLeads int    `json:"totalLeads"`
	Sent       int    `json:"sent"`
	Delivered  int    `json:"delivered"`
	Opens      int    `json:"opens"`
	Clicks     int    `json:"clicks"`
	Failed     int    `json:"failed"`
	Percent    int    `json:"percent"`
}

// HandleCampaignProgressWS streams a campaign's live counters to the
// dashboard every second until the campaign leaves the running state or
// the client goes away.
func HandleCampaignProgressWS(st store.Store, logger *log.Logger) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		var input struct {
			CampaignID string `json:"campaignId"`
		}
		if err := c.ReadJSON(&input); err != nil {
			logger.Printf("WS: error reading subscribe message: %v", err)
			return
		}
		if input.CampaignID == "" {
			_ = c.WriteJSON(map[string]string{"error": "campaignId is required"})
			return
		}

		for {
			campaign, err := st.GetCampaign(input.CampaignID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					_ = c.WriteJSON(map[string]string{"error": "campaign not found"})
				}
				return
			}

			progress := campaignProgress{
				CampaignID: campaign.ID,
				Status:     campaign.Status,
				TotalLeads: campaign.TotalLeads,
				Sent:       campaign.SentCount,
				Delivered:  campaign.DeliveredCount,
				Opens:      campaign.OpenCount,
				Clicks:     campaign.ClickCount,
				Failed:     campaign.FailedCount,
			}
			if campaign.TotalLeads > 0 {
				progress.Percent = campaign.SentCount * 100 / campaign.TotalLeads
			}

			if err := c.WriteJSON(progress); err != nil {
				return
			}
			if campaign.Status != models.CampaignStatusRunning {
				return
			}
			time.Sleep(time.Second)
		}
	}
}
