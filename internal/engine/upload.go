package engine

import (
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"catering-backend/internal/metadata"
)

// imageExtensions are the upload types accepted by image fields.
var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".bmp": true,
}

func (h *Handler) saveImage(c *fiber.Ctx, entity *metadata.Entity, f *metadata.Field, fh *multipart.FileHeader) (string, error) {
	if h.files == nil {
		return "", NewAppError("UPLOADS_DISABLED", fiber.StatusServiceUnavailable, "File uploads are not configured")
	}
	if h.maxFileSize > 0 && fh.Size > h.maxFileSize {
		msg := fmt.Sprintf("File too large: %d bytes (max %d)", fh.Size, h.maxFileSize)
		return "", NewAppError("FILE_TOO_LARGE", fiber.StatusRequestEntityTooLarge, msg)
	}
	if !imageExtensions[strings.ToLower(filepath.Ext(fh.Filename))] {
		return "", ValidationError([]ErrorDetail{{
			Field:   f.Name,
			Rule:    "image",
			Message: "Upload a valid image. The file you uploaded was either not an image or a corrupted image.",
		}})
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open uploaded file: %w", err)
	}
	defer src.Close()

	key, err := h.files.Save(c.Context(), entity.Name, fh.Filename, src)
	if err != nil {
		return "", fmt.Errorf("save file: %w", err)
	}
	if f.MaxLength > 0 && len([]rune(key)) > f.MaxLength {
		_ = h.files.Delete(c.Context(), key)
		return "", ValidationError([]ErrorDetail{{
			Field:   f.Name,
			Rule:    "max_length",
			Message: fmt.Sprintf("Ensure this filename has at most %d characters.", f.MaxLength),
		}})
	}
	return key, nil
}

// discard removes stored files no record references: uploads of a write
// that did not commit, or images an update replaced.
func (h *Handler) discard(c *fiber.Ctx, keys []string) {
	if h.files == nil {
		return
	}
	for _, key := range keys {
		if err := h.files.Delete(c.Context(), key); err != nil {
			h.logger.Warn("remove orphaned upload", zap.String("key", key), zap.Error(err))
		}
	}
}
