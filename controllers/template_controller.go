package controller

import (
	"errors"
	"io"
	"log"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"conecte/models"
	"conecte/store"
	"conecte/utils"
)

type TemplateController struct {
	Store  store.Store
	Logger *log.Logger
}

func NewTemplateController(st store.Store, logger *log.Logger) *TemplateController {
	return &TemplateController{
		Store:  st,
		Logger: logger,
	}
}

// GetTemplates returns all templates.
func (tc *TemplateController) GetTemplates(c *fiber.Ctx) error {
	templates, err := tc.Store.GetTemplates()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch templates", err)
	}
	return c.JSON(utils.SuccessResponse(templates))
}

// GetTemplate returns one template.
func (tc *TemplateController) GetTemplate(c *fiber.Ctx) error {
	template, err := tc.Store.GetTemplate(c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Template not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch template", err)
	}
	return c.JSON(utils.SuccessResponse(template))
}

// SaveTemplate creates or updates a template.
func (tc *TemplateController) SaveTemplate(c *fiber.Ctx) error {
	var input struct {
		ID          string `json:"id"`
		Name        string `json:"name" validate:"required"`
		Subject     string `json:"subject"`
		HTMLContent string `json:"htmlContent" validate:"required"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	template, err := tc.Store.SaveTemplate(models.Template{
		ID:          input.ID,
		Name:        input.Name,
		Subject:     input.Subject,
		HTMLContent: input.HTMLContent,
	})
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to save template", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(template))
}

// DeleteTemplate removes a template. Campaigns referencing it will error
// at their next run.
func (tc *TemplateController) DeleteTemplate(c *fiber.Ctx) error {
	if err := tc.Store.DeleteTemplate(c.Params("id")); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete template", err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"deleted": true}))
}

// UploadTemplate creates a template from an uploaded HTML file.
func (tc *TemplateController) UploadTemplate(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "File upload error", err)
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".html" && ext != ".htm" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Only HTML files are accepted", nil)
	}
	if file.Size > 2<<20 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "File too large (max 2MB)", nil)
	}

	src, err := file.Open()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to open file", err)
	}
	defer src.Close()

	content, err := io.ReadAll(src)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to read file", err)
	}

	name := c.FormValue("name")
	if name == "" {
		name = strings.TrimSuffix(file.Filename, ext)
	}

	template, err := tc.Store.SaveTemplate(models.Template{
		Name:        name,
		Subject:     c.FormValue("subject"),
		HTMLContent: string(content),
	})
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to save template", err)
	}

	tc.Logger.Printf("TEMPLATE: uploaded %s (%d bytes)", name, len(content))
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(template))
}
