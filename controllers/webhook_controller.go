package controller

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"conecte/store"
	"conecte/utils"
)

type WebhookController struct {
	Store  store.Store
	Logger *log.Logger
	Slog   *logrus.Logger
}

func NewWebhookController(st store.Store, logger *log.Logger, slog *logrus.Logger) *WebhookController {
	return &WebhookController{
		Store:  st,
		Logger: logger,
		Slog:   slog,
	}
}

// HandleProviderWebhook ingests delivery events from the sending
// provider. Events are keyed by the provider message id handed back at
// batch submission; replays are harmless because the store only counts
// the first occurrence of each event type per log.
func (wc *WebhookController) HandleProviderWebhook(c *fiber.Ctx) error {
	var input struct {
		Type string `json:"type"`
		Data struct {
			EmailID string `json:"email_id"`
			ID      string `json:"id"`
			Link    struct {
				URL string `json:"url"`
			} `json:"link"`
			URL string `json:"url"`
		} `json:"data"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid webhook payload", err)
	}

	providerID := input.Data.EmailID
	if providerID == "" {
		providerID = input.Data.ID
	}
	if input.Type == "" || providerID == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Webhook payload missing type or message id", nil)
	}

	event := strings.TrimPrefix(input.Type, "email.")
	url := input.Data.Link.URL
	if url == "" {
		url = input.Data.URL
	}

	result, err := wc.Store.ApplyProviderEvent(providerID, event, url)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			wc.Slog.WithFields(logrus.Fields{
				"provider_id": providerID,
				"event":       event,
			}).Warn("webhook for unknown message id")
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Unknown message id", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to process webhook", err)
	}

	wc.Slog.WithFields(logrus.Fields{
		"provider_id": providerID,
		"event":       event,
		"campaign_id": result.Campaign.ID,
	}).Info("webhook event applied")

	return c.JSON(fiber.Map{
		"success":    true,
		"campaignId": result.Campaign.ID,
	})
}
