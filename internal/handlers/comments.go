package handlers

import (
	"net/http"

	"github.com/saxon-wu/living/internal/middleware"
	"github.com/saxon-wu/living/internal/response"
	"github.com/saxon-wu/living/internal/services"

	"github.com/labstack/echo/v4"
)

type CommentHandler struct {
	comments *services.CommentService
	replies  *services.ReplyService
}

func NewCommentHandler(comments *services.CommentService, replies *services.ReplyService) *CommentHandler {
	return &CommentHandler{comments: comments, replies: replies}
}

// List pages the comments of the article in :uuid.
func (h *CommentHandler) List(c echo.Context) error {
	page, err := h.comments.FindAll(c.Request().Context(), middleware.CurrentUser(c), c.Param("uuid"), pageParams(c))
	if err != nil {
		return err
	}
	return response.OK(c, page)
}

func (h *CommentHandler) Create(c echo.Context) error {
	var input services.CreateCommentInput
	if err := bind(c, &input); err != nil {
		return err
	}

	comment, err := h.comments.Create(c.Request().Context(), middleware.CurrentUser(c), c.Param("uuid"), input)
	if err != nil {
		return err
	}
	return response.Created(c, comment)
}

func (h *CommentHandler) Get(c echo.Context) error {
	comment, err := h.comments.FindOne(c.Request().Context(), middleware.CurrentUser(c), c.Param("uuid"))
	if err != nil {
		return err
	}
	return response.OK(c, comment)
}

func (h *CommentHandler) Delete(c echo.Context) error {
	if err := h.comments.Remove(c.Request().Context(), middleware.CurrentUser(c), c.Param("uuid")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CommentHandler) Like(c echo.Context) error {
	comment, err := h.comments.Like(c.Request().Context(), middleware.CurrentUser(c), c.Param("uuid"))
	if err != nil {
		return err
	}
	return response.OK(c, comment)
}

// Replies pages the quoted replies under the comment in :uuid.
func (h *CommentHandler) Replies(c echo.Context) error {
	page, err := h.replies.FindAll(c.Request().Context(), middleware.CurrentUser(c), c.Param("uuid"), pageParams(c))
	if err != nil {
		return err
	}
	return response.OK(c, page)
}

func (h *CommentHandler) Reply(c echo.Context) error {
	var input services.CreateReplyInput
	if err := bind(c, &input); err != nil {
		return err
	}

	reply, err := h.replies.Create(c.Request().Context(), middleware.CurrentUser(c), c.Param("uuid"), input)
	if err != nil {
		return err
	}
	return response.Created(c, reply)
}
