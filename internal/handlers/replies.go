package handlers

import (
	"net/http"

	"github.com/saxon-wu/living/internal/middleware"
	"github.com/saxon-wu/living/internal/response"
	"github.com/saxon-wu/living/internal/services"

	"github.com/labstack/echo/v4"
)

type ReplyHandler struct {
	replies *services.ReplyService
}

func NewReplyHandler(replies *services.ReplyService) *ReplyHandler {
	return &ReplyHandler{replies: replies}
}

func (h *ReplyHandler) Get(c echo.Context) error {
	reply, err := h.replies.FindOne(c.Request().Context(), middleware.CurrentUser(c), c.Param("uuid"))
	if err != nil {
		return err
	}
	return response.OK(c, reply)
}

func (h *ReplyHandler) Delete(c echo.Context) error {
	if err := h.replies.Remove(c.Request().Context(), middleware.CurrentUser(c), c.Param("uuid")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ReplyHandler) Restore(c echo.Context) error {
	reply, err := h.replies.Restore(c.Request().Context(), middleware.CurrentUser(c), c.Param("uuid"))
	if err != nil {
		return err
	}
	return response.OK(c, reply)
}

func (h *ReplyHandler) Like(c echo.Context) error {
	reply, err := h.replies.Like(c.Request().Context(), middleware.CurrentUser(c), c.Param("uuid"))
	if err != nil {
		return err
	}
	return response.OK(c, reply)
}
