package controller

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"conecte/models"
	"conecte/store"
	"conecte/utils"
	"conecte/worker"
)

type CampaignExecutionController struct {
	Store    store.Store
	Registry *worker.Registry
	Runner   *worker.Runner
	Logger   *log.Logger
}

func NewCampaignExecutionController(st store.Store, registry *worker.Registry, runner *worker.Runner, logger *log.Logger) *CampaignExecutionController {
	return &CampaignExecutionController{
		Store:    st,
		Registry: registry,
		Runner:   runner,
		Logger:   logger,
	}
}

// StartCampaign moves a campaign to running and launches its runner
// immediately instead of waiting for the next poll tick.
func (ec *CampaignExecutionController) StartCampaign(c *fiber.Ctx) error {
	campaignID := c.Params("id")

	campaign, err := ec.Store.GetCampaign(campaignID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch campaign", err)
	}

	if campaign.Status == models.CampaignStatusRunning {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Campaign is already running", nil)
	}

	if err := ec.Store.UpdateCampaignStatus(campaignID, models.CampaignStatusRunning, ""); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to start campaign", err)
	}
	ec.launch(campaignID)

	ec.Logger.Printf("CAMPAIGN: started %s", campaignID)
	return c.JSON(utils.SuccessResponse(fiber.Map{"status": models.CampaignStatusRunning}))
}

// StopCampaign pauses a running campaign. The runner notices its
// registry entry is gone before the next send unit and exits; the
// delivery logs stay in place so a later start resumes where it
// stopped.
func (ec *CampaignExecutionController) StopCampaign(c *fiber.Ctx) error {
	campaignID := c.Params("id")

	campaign, err := ec.Store.GetCampaign(campaignID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch campaign", err)
	}
	if campaign.Status != models.CampaignStatusRunning {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Campaign is not running", nil)
	}

	if err := ec.Store.UpdateCampaignStatus(campaignID, models.CampaignStatusPaused, ""); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to stop campaign", err)
	}
	ec.Registry.Release(campaignID)

	ec.Logger.Printf("CAMPAIGN: stopped %s", campaignID)
	return c.JSON(utils.SuccessResponse(fiber.Map{"status": models.CampaignStatusPaused}))
}

// RestartCampaign wipes a campaign's logs and counters and runs it again
// from the beginning.
func (ec *CampaignExecutionController) RestartCampaign(c *fiber.Ctx) error {
	campaignID := c.Params("id")

	if _, err := ec.Store.GetCampaign(campaignID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch campaign", err)
	}

	// Pause first so a live runner exits before its logs are cleared.
	ec.Registry.Release(campaignID)
	if err := ec.Store.UpdateCampaignStatus(campaignID, models.CampaignStatusPaused, ""); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to pause campaign", err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := ec.Store.ClearCampaignLogs(campaignID); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to clear campaign logs", err)
	}
	if err := ec.Store.ResetCampaignCounters(campaignID); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to reset campaign counters", err)
	}

	if err := ec.Store.UpdateCampaignStatus(campaignID, models.CampaignStatusRunning, ""); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to restart campaign", err)
	}
	ec.launch(campaignID)

	ec.Logger.Printf("CAMPAIGN: restarted %s", campaignID)
	return c.JSON(utils.SuccessResponse(fiber.Map{"status": models.CampaignStatusRunning}))
}

func (ec *CampaignExecutionController) launch(campaignID string) {
	if !ec.Registry.Acquire(campaignID) {
		return
	}
	go ec.Runner.Run(context.Background(), campaignID)
}
