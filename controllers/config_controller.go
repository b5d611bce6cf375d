package controller

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"conecte/mailer"
	"conecte/store"
	"conecte/utils"
)

type ConfigController struct {
	Store  store.Store
	Logger *log.Logger
	Slog   *logrus.Logger
}

func NewConfigController(st store.Store, logger *log.Logger, slog *logrus.Logger) *ConfigController {
	return &ConfigController{
		Store:  st,
		Logger: logger,
		Slog:   slog,
	}
}

// GetConfig returns the marketing configuration.
func (cc *ConfigController) GetConfig(c *fiber.Ctx) error {
	cfg, err := cc.Store.GetConfig()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load config", err)
	}
	return c.JSON(utils.SuccessResponse(cfg))
}

// UpdateConfig merge-updates the marketing configuration: fields absent
// from the request body keep their stored values.
func (cc *ConfigController) UpdateConfig(c *fiber.Ctx) error {
	cfg, err := cc.Store.GetConfig()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load config", err)
	}

	if err := json.Unmarshal(c.Body(), &cfg); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	saved, err := cc.Store.SetConfig(cfg)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to save config", err)
	}

	cc.Logger.Printf("CONFIG: updated, method=%s", saved.Method)
	return c.JSON(utils.SuccessResponse(saved))
}

// TestConfig sends a test email through the currently configured
// transport so operators can verify credentials before launching a
// campaign.
func (cc *ConfigController) TestConfig(c *fiber.Ctx) error {
	var input struct {
		To string `json:"to" validate:"required,email"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	cfg, err := cc.Store.GetConfig()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load config", err)
	}

	transport, err := mailer.ForConfig(cfg, cc.Slog)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid sending method", err)
	}
	defer transport.Close()

	results := transport.Send([]mailer.Message{{
		To:      input.To,
		Subject: "Conecte delivery test",
		HTML: fmt.Sprintf("<p>Delivery test sent at %s via %s.</p>",
			time.Now().Format(time.RFC1123), transport.Name()),
	}})
	if len(results) > 0 && results[0].Err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadGateway, "Test send failed", results[0].Err)
	}

	cc.Logger.Printf("CONFIG: test email sent to %s via %s", input.To, transport.Name())
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"to":     input.To,
		"method": transport.Name(),
	}))
}
