package handlers

import (
	"bytes"
	"net/http"

	"github.com/saxon-wu/living/internal/apperr"
	"github.com/saxon-wu/living/internal/media"
	"github.com/saxon-wu/living/internal/middleware"
	"github.com/saxon-wu/living/internal/response"
	"github.com/saxon-wu/living/internal/services"

	"github.com/labstack/echo/v4"
)

const immutableCache = "public, max-age=31536000, immutable"

type FileHandler struct {
	files *services.FileService
}

func NewFileHandler(files *services.FileService) *FileHandler {
	return &FileHandler{files: files}
}

// Upload expects a multipart form with the payload in the "file" field.
func (h *FileHandler) Upload(c echo.Context) error {
	header, err := c.FormFile("file")
	if err != nil {
		return apperr.BadRequest("file is required", "multipart field \"file\" is missing")
	}

	file, err := h.files.Upload(c.Request().Context(), middleware.CurrentUser(c), header)
	if err != nil {
		return err
	}
	return response.Created(c, file)
}

// Get serves the original, or a cached variant when format, both or
// gaussblur is present.
func (h *FileHandler) Get(c echo.Context) error {
	q, err := media.ParseQuery(c.QueryParams())
	if err != nil {
		return apperr.BadRequest("invalid image query", err.Error())
	}

	path, err := h.files.Open(c.Request().Context(), c.Param("filename"), q)
	if err != nil {
		return err
	}

	c.Response().Header().Set("Cache-Control", immutableCache)
	return c.File(path)
}

func (h *FileHandler) Placeholder(c echo.Context) error {
	q, err := media.ParseQuery(c.QueryParams())
	if err != nil {
		return apperr.BadRequest("invalid image query", err.Error())
	}

	var buf bytes.Buffer
	if err := h.files.Placeholder(c.Request().Context(), &buf, q); err != nil {
		return err
	}

	format := q.Format
	if format == "" {
		format = "png"
	}
	return c.Blob(http.StatusOK, media.ContentType("placeholder."+format), buf.Bytes())
}

func (h *FileHandler) Delete(c echo.Context) error {
	if err := h.files.Remove(c.Request().Context(), middleware.CurrentUser(c), c.Param("filename")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
