// Package handlers maps the /v1 REST surface onto the services.
package handlers

import (
	"net/http"

	"github.com/saxon-wu/living/internal/pagination"

	"github.com/labstack/echo/v4"
)

// bind decodes the body into input and runs the registered validator on it.
func bind(c echo.Context, input any) error {
	if err := c.Bind(input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return c.Validate(input)
}

func pageParams(c echo.Context) pagination.Params {
	return pagination.Parse(c.QueryParam("current"), c.QueryParam("pageSize"))
}
