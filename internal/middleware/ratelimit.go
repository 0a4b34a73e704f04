package middleware

import (
	"net/http"

	"github.com/saxon-wu/living/internal/cache"
	"github.com/saxon-wu/living/internal/logging"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RateLimit applies a fixed window per client IP. When the store fails the
// request is let through and the failure logged.
func RateLimit(store cache.WindowStore, skipper echomiddleware.Skipper) echo.MiddlewareFunc {
	if skipper == nil {
		skipper = echomiddleware.DefaultSkipper
	}

	return echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Skipper: skipper,
		Store:   failOpen{store: store},
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "unable to identify client")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			if rateLimited != nil {
				rateLimited.Add(c.Request().Context(), 1, metric.WithAttributes(
					attribute.String("http.route", c.Path()),
				))
			}
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests, please try again later")
		},
	})
}

type failOpen struct {
	store cache.WindowStore
}

func (f failOpen) Allow(identifier string) (bool, error) {
	allowed, err := f.store.Allow(identifier)
	if err != nil {
		logging.Logger().Warn().Err(err).Str("identifier", identifier).Msg("rate limit store unavailable")
		return true, nil
	}
	return allowed, nil
}
