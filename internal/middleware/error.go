package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/saxon-wu/living/internal/apperr"
	"github.com/saxon-wu/living/internal/logging"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type ErrorResult struct {
	Info    string   `json:"info"`
	Errors  []string `json:"errors"`
	TraceID string   `json:"traceId,omitempty"`
}

type ErrorResponse struct {
	StatusCode int         `json:"statusCode"`
	Message    string      `json:"message"`
	Result     ErrorResult `json:"result"`
}

func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	ctx := c.Request().Context()
	span := trace.SpanFromContext(ctx)

	response := toResponse(err)
	code := response.StatusCode

	span.RecordError(err)
	if code >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.Int("http.response.status_code", code))

	if span.SpanContext().HasTraceID() {
		response.Result.TraceID = span.SpanContext().TraceID().String()
	}

	event := logging.Warn(ctx)
	if code >= http.StatusInternalServerError {
		event = logging.Error(ctx)
	}
	event.
		Err(err).
		Int("status", code).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("request error")

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, response)
	}
	if err != nil {
		logging.Error(ctx).Err(err).Msg("failed to write error response")
	}
}

func toResponse(err error) ErrorResponse {
	var (
		he      *echo.HTTPError
		invalid validator.ValidationErrors
	)

	switch {
	case errors.As(err, &invalid):
		messages := make([]string, len(invalid))
		for i, fe := range invalid {
			messages[i] = fieldMessage(fe)
		}
		return failure(http.StatusBadRequest, "validation failed", apperr.KindBadRequest.String(), messages)

	case errors.As(err, &he):
		message := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			message = m
		}
		return failure(he.Code, message, http.StatusText(he.Code), nil)

	default:
		e := apperr.As(err)
		return failure(e.Kind.Status(), e.Message, e.Kind.String(), e.Details)
	}
}

func failure(code int, message, info string, details []string) ErrorResponse {
	if details == nil {
		details = []string{}
	}
	return ErrorResponse{
		StatusCode: code,
		Message:    message,
		Result:     ErrorResult{Info: info, Errors: details},
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s long", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s long", fe.Field(), fe.Param())
	case "uuid":
		return fmt.Sprintf("%s must be a uuid", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag())
	}
}
