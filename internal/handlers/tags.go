package handlers

import (
	"net/http"

	"github.com/saxon-wu/living/internal/middleware"
	"github.com/saxon-wu/living/internal/response"
	"github.com/saxon-wu/living/internal/services"

	"github.com/labstack/echo/v4"
)

type TagHandler struct {
	tags *services.TagService
}

func NewTagHandler(tags *services.TagService) *TagHandler {
	return &TagHandler{tags: tags}
}

func (h *TagHandler) List(c echo.Context) error {
	page, err := h.tags.FindAll(c.Request().Context(), pageParams(c))
	if err != nil {
		return err
	}
	return response.OK(c, page)
}

func (h *TagHandler) Tree(c echo.Context) error {
	nodes, err := h.tags.Tree(c.Request().Context())
	if err != nil {
		return err
	}
	return response.OK(c, nodes)
}

func (h *TagHandler) Get(c echo.Context) error {
	tag, err := h.tags.FindOne(c.Request().Context(), c.Param("uuid"))
	if err != nil {
		return err
	}
	return response.OK(c, tag)
}

func (h *TagHandler) Create(c echo.Context) error {
	var input services.CreateTagInput
	if err := bind(c, &input); err != nil {
		return err
	}

	tag, err := h.tags.Create(c.Request().Context(), middleware.CurrentUser(c), input)
	if err != nil {
		return err
	}
	return response.Created(c, tag)
}

func (h *TagHandler) Update(c echo.Context) error {
	var input services.UpdateTagInput
	if err := bind(c, &input); err != nil {
		return err
	}

	tag, err := h.tags.Update(c.Request().Context(), middleware.CurrentUser(c), c.Param("uuid"), input)
	if err != nil {
		return err
	}
	return response.OK(c, tag)
}

func (h *TagHandler) Delete(c echo.Context) error {
	if err := h.tags.Remove(c.Request().Context(), middleware.CurrentUser(c), c.Param("uuid")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
