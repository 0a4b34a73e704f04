// Package response writes the success envelope every handler replies with.
package response

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const startKey = "response.start"

type Envelope struct {
	StatusCode   int         `json:"statusCode"`
	ResponseTime string      `json:"responseTime"`
	Message      string      `json:"message"`
	Result       interface{} `json:"result"`
}

// StartTimer stamps the request start so the envelope can report responseTime.
func StartTimer() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(startKey, time.Now())
			return next(c)
		}
	}
}

func Success(c echo.Context, code int, message string, result interface{}) error {
	return c.JSON(code, Envelope{
		StatusCode:   code,
		ResponseTime: elapsed(c),
		Message:      message,
		Result:       result,
	})
}

func OK(c echo.Context, result interface{}) error {
	return Success(c, http.StatusOK, "success", result)
}

func Created(c echo.Context, result interface{}) error {
	return Success(c, http.StatusCreated, "created", result)
}

func elapsed(c echo.Context) string {
	start, ok := c.Get(startKey).(time.Time)
	if !ok {
		return "0ms"
	}
	return fmt.Sprintf("%dms", time.Since(start).Milliseconds())
}
