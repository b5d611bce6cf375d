package controller

import (
	"encoding/base64"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"conecte/models"
	"conecte/store"
	"conecte/utils"
)

// 1x1 transparent PNG served by the open pixel endpoint.
var trackingPixel, _ = base64.StdEncoding.DecodeString(
	"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNk+P+/HgAFhAJ/wlseKgAAAABJRU5ErkJggg==")

type TrackingController struct {
	Store  store.Store
	Logger *log.Logger
}

func NewTrackingController(st store.Store, logger *log.Logger) *TrackingController {
	return &TrackingController{
		Store:  st,
		Logger: logger,
	}
}

// TrackOpen records an email open and always answers with the pixel,
// even for unknown or replayed log ids.
func (tc *TrackingController) TrackOpen(c *fiber.Ctx) error {
	logID := c.Params("logId")

	now := time.Now()
	if err := tc.Store.UpdateLog(logID, store.LogUpdate{OpenedAt: &now}); err != nil && !errors.Is(err, store.ErrNotFound) {
		tc.Logger.Printf("TRACKING: open update failed for %s: %v", logID, err)
	}

	c.Set("Content-Type", "image/png")
	c.Set("Cache-Control", "no-store, no-cache, must-revalidate")
	return c.Send(trackingPixel)
}

// TrackClick records a click and redirects to the original destination.
// A missing destination falls back to the site root so the redirect
// never dead-ends.
func (tc *TrackingController) TrackClick(c *fiber.Ctx) error {
	logID := c.Params("logId")
	destination := c.Query("u")

	now := time.Now()
	upd := store.LogUpdate{
		LastClickedAt: &now,
		Click:         &models.Click{At: now, URL: destination},
	}
	if err := tc.Store.UpdateLog(logID, upd); err != nil && !errors.Is(err, store.ErrNotFound) {
		tc.Logger.Printf("TRACKING: click update failed for %s: %v", logID, err)
	}

	if destination == "" {
		destination = "/"
	}
	return c.Redirect(destination, fiber.StatusFound)
}

// Unsubscribe marks the recipient's lead as unsubscribed and shows a
// confirmation page.
func (tc *TrackingController) Unsubscribe(c *fiber.Ctx) error {
	logID := c.Params("logId")

	entry, err := tc.Store.UnsubscribeByLog(logID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.Set("Content-Type", "text/html; charset=utf-8")
			return c.Status(fiber.StatusNotFound).
				SendString("<html><body><h2>Link not found</h2><p>This unsubscribe link is no longer valid.</p></body></html>")
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to unsubscribe", err)
	}

	tc.Logger.Printf("TRACKING: %s unsubscribed via log %s", entry.Email, logID)
	c.Set("Content-Type", "text/html; charset=utf-8")
	return c.SendString("<html><body><h2>Unsubscribed</h2><p>You will no longer receive emails from this list.</p></body></html>")
}
