package controller

import (
	"encoding/csv"
	"encoding/json"
	"log"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/badoux/checkmail"
	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"

	"conecte/models"
	"conecte/store"
	"conecte/utils"
)

// Column aliases accepted in import files, lowercased.
var importColumns = map[string]string{
	"email":          "email",
	"e-mail":         "email",
	"mail":           "email",
	"name":           "name",
	"nome":           "name",
	"full name":      "name",
	"phone":          "phone",
	"telefone":       "phone",
	"celular":        "phone",
	"company":        "company",
	"empresa":        "company",
	"organization":   "company",
	"tags":           "tags",
	"tag":            "tags",
	"segment":        "tags",
}

type LeadController struct {
	Store  store.Store
	Logger *log.Logger
}

func NewLeadController(st store.Store, logger *log.Logger) *LeadController {
	return &LeadController{
		Store:  st,
		Logger: logger,
	}
}

// GetLeads returns all leads.
func (lc *LeadController) GetLeads(c *fiber.Ctx) error {
	leads, err := lc.Store.GetLeads()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch leads", err)
	}
	return c.JSON(utils.SuccessResponse(leads))
}

// CreateLead creates or updates a lead keyed by email.
func (lc *LeadController) CreateLead(c *fiber.Ctx) error {
	var input struct {
		Email   string   `json:"email" validate:"required,email"`
		Name    string   `json:"name"`
		Phone   string   `json:"phone"`
		Company string   `json:"company"`
		Tags    []string `json:"tags"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	lead, err := lc.Store.SaveLead(models.Lead{
		Email:   strings.ToLower(strings.TrimSpace(input.Email)),
		Name:    input.Name,
		Phone:   input.Phone,
		Company: input.Company,
		Tags:    input.Tags,
	})
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to save lead", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(lead))
}

// UpdateLead merge-updates a lead.
func (lc *LeadController) UpdateLead(c *fiber.Ctx) error {
	leadID := c.Params("id")

	leads, err := lc.Store.GetLeads()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch leads", err)
	}

	var existing *models.Lead
	for i := range leads {
		if leads[i].ID == leadID {
			existing = &leads[i]
			break
		}
	}
	if existing == nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}

	if err := json.Unmarshal(c.Body(), existing); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	existing.ID = leadID

	lead, err := lc.Store.SaveLead(*existing)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to save lead", err)
	}

	return c.JSON(utils.SuccessResponse(lead))
}

// DeleteLead removes a lead.
func (lc *LeadController) DeleteLead(c *fiber.Ctx) error {
	if err := lc.Store.DeleteLead(c.Params("id")); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete lead", err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"deleted": true}))
}

// GetTags returns the union of all lead tags.
func (lc *LeadController) GetTags(c *fiber.Ctx) error {
	tags, err := lc.Store.GetAllTags()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch tags", err)
	}
	return c.JSON(utils.SuccessResponse(tags))
}

// GetPerformanceStats returns the last seven days of send outcomes.
func (lc *LeadController) GetPerformanceStats(c *fiber.Ctx) error {
	stats, err := lc.Store.GetPerformanceStats()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch stats", err)
	}
	return c.JSON(utils.SuccessResponse(stats))
}

// ImportLeads ingests a CSV or XLSX file. Rows without a usable email
// address are skipped, existing emails are merge-updated and counted as
// duplicates.
func (lc *LeadController) ImportLeads(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "File upload error", err)
	}

	// Check file size (max 10MB)
	if file.Size > 10<<20 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "File too large (max 10MB)", nil)
	}

	extraTags := parseTagList(c.FormValue("tags"))

	var rows [][]string
	switch strings.ToLower(filepath.Ext(file.Filename)) {
	case ".csv":
		rows, err = readCSVRows(file)
	case ".xlsx":
		rows, err = readXLSXRows(file)
	default:
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Unsupported file type, use .csv or .xlsx", nil)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Failed to parse file", err)
	}

	if len(rows) < 2 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "File must have a header and at least one row", nil)
	}

	header := make([]string, len(rows[0]))
	for i, col := range rows[0] {
		header[i] = importColumns[strings.ToLower(strings.TrimSpace(col))]
	}

	var leads []models.Lead
	skipped := 0
	for _, row := range rows[1:] {
		lead := models.Lead{ImportedAt: time.Now()}
		for i, cell := range row {
			if i >= len(header) {
				break
			}
			value := strings.TrimSpace(cell)
			switch header[i] {
			case "email":
				lead.Email = strings.ToLower(value)
			case "name":
				lead.Name = value
			case "phone":
				lead.Phone = value
			case "company":
				lead.Company = value
			case "tags":
				lead.Tags = append(lead.Tags, parseTagList(value)...)
			}
		}

		if lead.Email == "" || checkmail.ValidateFormat(lead.Email) != nil {
			skipped++
			continue
		}
		lead.Tags = append(lead.Tags, extraTags...)
		leads = append(leads, lead)
	}

	result, err := lc.Store.BulkUpsertLeads(leads)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to import leads", err)
	}

	lc.Logger.Printf("LEAD: imported %d leads (%d duplicates, %d skipped) from %s",
		result.Imported, result.Duplicates, skipped, file.Filename)
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"imported":   result.Imported,
		"duplicates": result.Duplicates,
		"skipped":    skipped,
	}))
}

func parseTagList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func readCSVRows(file *multipart.FileHeader) ([][]string, error) {
	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	return reader.ReadAll()
}

func readXLSXRows(file *multipart.FileHeader) ([][]string, error) {
	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	book, err := excelize.OpenReader(src)
	if err != nil {
		return nil, err
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	return book.GetRows(sheets[0])
}
