package handlers

import (
	"net/http"

	"github.com/saxon-wu/living/internal/middleware"
	"github.com/saxon-wu/living/internal/response"
	"github.com/saxon-wu/living/internal/services"

	"github.com/labstack/echo/v4"
)

type ArticleHandler struct {
	articles *services.ArticleService
}

func NewArticleHandler(articles *services.ArticleService) *ArticleHandler {
	return &ArticleHandler{articles: articles}
}

// List serves the public feed. Optional filters: tag (uuid) and sort
// (created, views, likes).
func (h *ArticleHandler) List(c echo.Context) error {
	input := services.ListArticlesInput{
		Page: pageParams(c),
		Tag:  c.QueryParam("tag"),
		Sort: c.QueryParam("sort"),
	}

	page, err := h.articles.FindAll(c.Request().Context(), middleware.CurrentUser(c), input)
	if err != nil {
		return err
	}
	return response.OK(c, page)
}

func (h *ArticleHandler) Mine(c echo.Context) error {
	page, err := h.articles.FindMine(c.Request().Context(), middleware.CurrentUser(c), pageParams(c))
	if err != nil {
		return err
	}
	return response.OK(c, page)
}

func (h *ArticleHandler) Get(c echo.Context) error {
	article, err := h.articles.FindOne(c.Request().Context(), middleware.CurrentUser(c), c.Param("uuid"))
	if err != nil {
		return err
	}
	return response.OK(c, article)
}

func (h *ArticleHandler) Create(c echo.Context) error {
	var input services.CreateArticleInput
	if err := bind(c, &input); err != nil {
		return err
	}

	article, err := h.articles.Create(c.Request().Context(), middleware.CurrentUser(c), input)
	if err != nil {
		return err
	}
	return response.Created(c, article)
}

func (h *ArticleHandler) Update(c echo.Context) error {
	var input services.UpdateArticleInput
	if err := bind(c, &input); err != nil {
		return err
	}

	article, err := h.articles.Update(c.Request().Context(), middleware.CurrentUser(c), c.Param("uuid"), input)
	if err != nil {
		return err
	}
	return response.OK(c, article)
}

func (h *ArticleHandler) Delete(c echo.Context) error {
	if err := h.articles.Remove(c.Request().Context(), middleware.CurrentUser(c), c.Param("uuid")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ArticleHandler) Restore(c echo.Context) error {
	article, err := h.articles.Restore(c.Request().Context(), middleware.CurrentUser(c), c.Param("uuid"))
	if err != nil {
		return err
	}
	return response.OK(c, article)
}

func (h *ArticleHandler) Like(c echo.Context) error {
	article, err := h.articles.Like(c.Request().Context(), middleware.CurrentUser(c), c.Param("uuid"))
	if err != nil {
		return err
	}
	return response.OK(c, article)
}

func (h *ArticleHandler) Favorite(c echo.Context) error {
	article, err := h.articles.Favorite(c.Request().Context(), middleware.CurrentUser(c), c.Param("uuid"))
	if err != nil {
		return err
	}
	return response.OK(c, article)
}
