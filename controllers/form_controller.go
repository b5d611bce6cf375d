package controller

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"conecte/models"
	"conecte/store"
	"conecte/utils"
)

type FormController struct {
	Store  store.Store
	Logger *log.Logger
}

func NewFormController(st store.Store, logger *log.Logger) *FormController {
	return &FormController{
		Store:  st,
		Logger: logger,
	}
}

// GetForms returns all capture forms.
func (fc *FormController) GetForms(c *fiber.Ctx) error {
	forms, err := fc.Store.GetForms()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch forms", err)
	}
	return c.JSON(utils.SuccessResponse(forms))
}

// SaveForm creates or updates a capture form.
func (fc *FormController) SaveForm(c *fiber.Ctx) error {
	var input struct {
		ID          string `json:"id"`
		Name        string `json:"name" validate:"required"`
		Title       string `json:"title"`
		Description string `json:"description"`
		AutoTag     string `json:"autoTag"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	form, err := fc.Store.SaveForm(models.Form{
		ID:          input.ID,
		Name:        input.Name,
		Title:       input.Title,
		Description: input.Description,
		AutoTag:     input.AutoTag,
	})
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to save form", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(form))
}

// DeleteForm removes a capture form.
func (fc *FormController) DeleteForm(c *fiber.Ctx) error {
	if err := fc.Store.DeleteForm(c.Params("id")); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete form", err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"deleted": true}))
}

// ViewForm is the public form endpoint. Each hit counts one view.
func (fc *FormController) ViewForm(c *fiber.Ctx) error {
	form, err := fc.Store.GetForm(c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Form not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch form", err)
	}

	if err := fc.Store.IncrementFormMetric(form.ID, "views"); err != nil {
		fc.Logger.Printf("FORM: failed to count view for %s: %v", form.ID, err)
	}

	return c.JSON(utils.SuccessResponse(form))
}

// SubmitForm is the public submission endpoint. The submitted contact is
// upserted as a lead, tagged with the form's auto tag.
func (fc *FormController) SubmitForm(c *fiber.Ctx) error {
	form, err := fc.Store.GetForm(c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Form not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch form", err)
	}

	var input struct {
		Email   string `json:"email" validate:"required,email"`
		Name    string `json:"name"`
		Phone   string `json:"phone"`
		Company string `json:"company"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	lead := models.Lead{
		Email:   strings.ToLower(strings.TrimSpace(input.Email)),
		Name:    input.Name,
		Phone:   input.Phone,
		Company: input.Company,
	}
	if form.AutoTag != "" {
		lead.Tags = []string{form.AutoTag}
	}

	saved, err := fc.Store.SaveLead(lead)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to save submission", err)
	}

	if err := fc.Store.IncrementFormMetric(form.ID, "submissions"); err != nil {
		fc.Logger.Printf("FORM: failed to count submission for %s: %v", form.ID, err)
	}

	fc.Logger.Printf("FORM: %s captured lead %s", form.Name, saved.Email)
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(saved))
}
