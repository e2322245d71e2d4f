package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/gofiber/fiber/v2"

	"catering-backend/internal/storage"
)

const MediaPrefix = "/media"

// FileHandler serves stored uploads by key under MediaPrefix.
type FileHandler struct {
	storage storage.FileStorage
}

func NewFileHandler(fs storage.FileStorage) *FileHandler {
	return &FileHandler{storage: fs}
}

func RegisterMediaRoutes(app fiber.Router, h *FileHandler) {
	app.Get(MediaPrefix+"/*", h.Serve)
}

// MediaURL is the public URL of a stored key.
func MediaURL(key string) string {
	return MediaPrefix + "/" + key
}

func (h *FileHandler) Serve(c *fiber.Ctx) error {
	key, err := url.PathUnescape(c.Params("*"))
	if err != nil || strings.TrimSpace(key) == "" {
		return NewAppError("NOT_FOUND", fiber.StatusNotFound, "File not found")
	}

	reader, err := h.storage.Open(c.Context(), key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewAppError("NOT_FOUND", fiber.StatusNotFound, fmt.Sprintf("File %s not found", key))
		}
		return fmt.Errorf("open stored file: %w", err)
	}

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`inline; filename="%s"`, path.Base(key)))

	// fasthttp closes the reader once the body is written.
	return c.SendStream(reader)
}
