package handlers

import (
	"github.com/saxon-wu/living/internal/middleware"
	"github.com/saxon-wu/living/internal/response"
	"github.com/saxon-wu/living/internal/services"

	"github.com/labstack/echo/v4"
)

type AuthHandler struct {
	auth  *services.AuthService
	users   *services.UserService
}

func NewAuthHandler(auth *services.AuthService, users *services.UserService) *AuthHandler {
	return &AuthHandler{auth: auth, users: users}
}

func (h *AuthHandler) Register(c echo.Context) error {
	var input services.RegisterInput
	if err := bind(c, &input); err != nil {
		return err
	}

	user, err := h.auth.Register(c.Request().Context(), input)
	if err != nil {
		return err
	}
	return response.Created(c, user)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var input services.LoginInput
	if err := bind(c, &input); err != nil {
		return err
	}

	result, err := h.auth.Login(c.Request().Context(), input)
	if err != nil {
		return err
	}
	return response.OK(c, result)
}

// Profile re-reads the caller so the avatar is current.
func (h *AuthHandler) Profile(c echo.Context) error {
	user, err := h.users.FindOne(c.Request().Context(), middleware.CurrentUser(c).UUID)
	if err != nil {
		return err
	}
	return response.OK(c, user)
}
