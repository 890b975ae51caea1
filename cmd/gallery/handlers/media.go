package handlers

import (
	"os"

	"github.com/labstack/echo/v4"

	"github.com/ki1r0y/gallery/common/blob"
	"github.com/ki1r0y/gallery/common/logger"
)

type MediaHandler struct {
	blobs *blob.Store
	log   *logger.Logger
}

func NewMediaHandler(blobs *blob.Store, log *logger.Logger) *MediaHandler {
	return &MediaHandler{blobs: blobs, log: log}
}

// Get serves one media blob. Blob ids are content hashes, so the
// response carries far-future cache headers.
func (h *MediaHandler) Get(c echo.Context) error {
	path := h.blobs.Path(c.Param("id"))
	if _, err := os.Stat(path); err != nil {
		return echo.ErrNotFound
	}
	c.Response().Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	return c.File(path)
}
