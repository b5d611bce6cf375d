package controller

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"conecte/models"
	"conecte/store"
	"conecte/utils"
)

type CampaignController struct {
	Store  store.Store
	Logger *log.Logger
}

func NewCampaignController(st store.Store, logger *log.Logger) *CampaignController {
	return &CampaignController{
		Store:  st,
		Logger: logger,
	}
}

// GetCampaigns returns all campaigns with their live counters.
func (cc *CampaignController) GetCampaigns(c *fiber.Ctx) error {
	campaigns, err := cc.Store.GetCampaigns()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch campaigns", err)
	}
	return c.JSON(utils.SuccessResponse(campaigns))
}

// GetCampaign returns one campaign.
func (cc *CampaignController) GetCampaign(c *fiber.Ctx) error {
	campaign, err := cc.Store.GetCampaign(c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch campaign", err)
	}
	return c.JSON(utils.SuccessResponse(campaign))
}

// CreateCampaign creates a campaign in draft, or scheduled when a
// schedule time is supplied.
func (cc *CampaignController) CreateCampaign(c *fiber.Ctx) error {
	var input struct {
		TemplateID  string     `json:"templateId" validate:"required"`
		Subject     string     `json:"subject" validate:"required"`
		SenderName  string     `json:"senderName"`
		ButtonLink  string     `json:"buttonLink"`
		TargetTags  []string   `json:"targetTags"`
		Interval    int        `json:"interval" validate:"omitempty,min=0"`
		ScheduledAt *time.Time `json:"scheduledAt"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	if _, err := cc.Store.GetTemplate(input.TemplateID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Template not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch template", err)
	}

	campaign := models.Campaign{
		TemplateID:  input.TemplateID,
		Subject:     input.Subject,
		SenderName:  input.SenderName,
		ButtonLink:  input.ButtonLink,
		TargetTags:  input.TargetTags,
		Interval:    input.Interval,
		ScheduledAt: input.ScheduledAt,
		Status:      models.CampaignStatusDraft,
	}
	if input.ScheduledAt != nil {
		campaign.Status = models.CampaignStatusScheduled
	}

	saved, err := cc.Store.SaveCampaign(campaign)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create campaign", err)
	}

	cc.Logger.Printf("CAMPAIGN: created %s (%s)", saved.ID, saved.Status)
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(saved))
}

// UpdateCampaign merge-updates a campaign. Running campaigns cannot be
// edited; stop them first.
func (cc *CampaignController) UpdateCampaign(c *fiber.Ctx) error {
	campaign, err := cc.Store.GetCampaign(c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch campaign", err)
	}

	if campaign.Status == models.CampaignStatusRunning {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Campaign is running, stop it before editing", nil)
	}

	id := campaign.ID
	if err := json.Unmarshal(c.Body(), campaign); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	campaign.ID = id

	saved, err := cc.Store.SaveCampaign(*campaign)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to save campaign", err)
	}

	return c.JSON(utils.SuccessResponse(saved))
}

// DeleteCampaign removes a campaign and all of its delivery logs.
func (cc *CampaignController) DeleteCampaign(c *fiber.Ctx) error {
	campaignID := c.Params("id")

	campaign, err := cc.Store.GetCampaign(campaignID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch campaign", err)
	}
	if campaign.Status == models.CampaignStatusRunning {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Campaign is running, stop it before deleting", nil)
	}

	if err := cc.Store.DeleteCampaign(campaignID); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete campaign", err)
	}

	cc.Logger.Printf("CAMPAIGN: deleted %s", campaignID)
	return c.JSON(utils.SuccessResponse(fiber.Map{"deleted": true}))
}

// GetCampaignLogs returns the delivery logs for a campaign.
func (cc *CampaignController) GetCampaignLogs(c *fiber.Ctx) error {
	campaignID := c.Params("id")

	if _, err := cc.Store.GetCampaign(campaignID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch campaign", err)
	}

	logs, err := cc.Store.GetLogs(campaignID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch logs", err)
	}
	return c.JSON(utils.SuccessResponse(logs))
}
