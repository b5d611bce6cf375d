package controller

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"conecte/utils"
)

var allowedImageExts = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".webp": {},
	".svg":  {},
}

// UploadController manages the image gallery referenced by templates.
type UploadController struct {
	Dir    string
	Logger *log.Logger
}

func NewUploadController(dir string, logger *log.Logger) *UploadController {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Printf("UPLOAD: failed to create upload dir %s: %v", dir, err)
	}
	return &UploadController{
		Dir:    dir,
		Logger: logger,
	}
}

// UploadImage stores one gallery image under a generated name.
func (uc *UploadController) UploadImage(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "File upload error", err)
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if _, ok := allowedImageExts[ext]; !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Unsupported image type", nil)
	}
	if file.Size > 5<<20 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "File too large (max 5MB)", nil)
	}

	name := uuid.New().String() + ext
	if err := c.SaveFile(file, filepath.Join(uc.Dir, name)); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to save file", err)
	}

	uc.Logger.Printf("UPLOAD: saved %s (%d bytes)", name, file.Size)
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(fiber.Map{
		"filename": name,
		"url":      "/uploads/" + name,
	}))
}

// ListImages returns every image in the gallery.
func (uc *UploadController) ListImages(c *fiber.Ctx) error {
	entries, err := os.ReadDir(uc.Dir)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to read gallery", err)
	}

	images := make([]fiber.Map, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := allowedImageExts[strings.ToLower(filepath.Ext(entry.Name()))]; !ok {
			continue
		}
		images = append(images, fiber.Map{
			"filename": entry.Name(),
			"url":      "/uploads/" + entry.Name(),
		})
	}

	return c.JSON(utils.SuccessResponse(images))
}

// DeleteImage removes an image from the gallery. The filename is
// sanitized so the endpoint cannot reach outside the gallery dir.
func (uc *UploadController) DeleteImage(c *fiber.Ctx) error {
	name := filepath.Base(c.Params("filename"))
	if name == "." || name == ".." || name == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid filename", nil)
	}

	path := filepath.Join(uc.Dir, name)
	if _, err := os.Stat(path); err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Image not found", nil)
	}
	if err := os.Remove(path); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError,
			fmt.Sprintf("Failed to delete %s", name), err)
	}

	uc.Logger.Printf("UPLOAD: deleted %s", name)
	return c.JSON(utils.SuccessResponse(fiber.Map{"deleted": true}))
}
