package handlers

import (
	"net/http"

	"github.com/saxon-wu/living/internal/middleware"
	"github.com/saxon-wu/living/internal/response"
	"github.com/saxon-wu/living/internal/services"

	"github.com/labstack/echo/v4"
)

type UserHandler struct {
	users    *services.UserService
	articles *services.ArticleService
}

func NewUserHandler(users *services.UserService, articles *services.ArticleService) *UserHandler {
	return &UserHandler{users: users, articles: articles}
}

func (h *UserHandler) List(c echo.Context) error {
	page, err := h.users.FindAll(c.Request().Context(), pageParams(c))
	if err != nil {
		return err
	}
	return response.OK(c, page)
}

func (h *UserHandler) Get(c echo.Context) error {
	user, err := h.users.FindOne(c.Request().Context(), c.Param("uuid"))
	if err != nil {
		return err
	}
	return response.OK(c, user)
}

// Favorites lists the articles a user bookmarked that the caller may read.
func (h *UserHandler) Favorites(c echo.Context) error {
	page, err := h.articles.Favorites(c.Request().Context(), middleware.CurrentUser(c), c.Param("uuid"), pageParams(c))
	if err != nil {
		return err
	}
	return response.OK(c, page)
}

func (h *UserHandler) UpdateProfile(c echo.Context) error {
	var input services.UpdateProfileInput
	if err := bind(c, &input); err != nil {
		return err
	}

	user, err := h.users.UpdateProfile(c.Request().Context(), middleware.CurrentUser(c), input)
	if err != nil {
		return err
	}
	return response.OK(c, user)
}

func (h *UserHandler) ChangePassword(c echo.Context) error {
	var input services.ChangePasswordInput
	if err := bind(c, &input); err != nil {
		return err
	}

	if err := h.users.ChangePassword(c.Request().Context(), middleware.CurrentUser(c), input); err != nil {
		return err
	}
	return response.OK(c, nil)
}

func (h *UserHandler) Remove(c echo.Context) error {
	if err := h.users.Remove(c.Request().Context(), middleware.CurrentUser(c)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
