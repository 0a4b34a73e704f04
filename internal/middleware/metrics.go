package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter           = otel.Meter("living")
	requestCounter  metric.Int64Counter
	requestDuration metric.Float64Histogram
	activeRequests  metric.Int64UpDownCounter
	rateLimited     metric.Int64Counter
)

func InitMetrics() error {
	var err error

	requestCounter, err = meter.Int64Counter(
		"http.server.request.total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	requestDuration, err = meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	activeRequests, err = meter.Int64UpDownCounter(
		"http.server.active_requests",
		metric.WithDescription("Number of active HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	rateLimited, err = meter.Int64Counter(
		"http.server.rate_limited",
		metric.WithDescription("Requests rejected by the rate limiter"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Metrics records request count, duration and in-flight requests. It is a no-op
// until InitMetrics has run.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if requestCounter == nil {
				return next(c)
			}

			start := time.Now()
			ctx := c.Request().Context()

			route := attribute.String("http.route", c.Path())
			method := attribute.String("http.method", c.Request().Method)

			activeRequests.Add(ctx, 1, metric.WithAttributes(method, route))

			err := next(c)

			duration := float64(time.Since(start).Milliseconds())
			statusCode := c.Response().Status
			if err != nil {
				statusCode = toResponse(err).StatusCode
			}

			attrs := metric.WithAttributes(method, route, attribute.Int("http.status_code", statusCode))
			requestCounter.Add(ctx, 1, attrs)
			requestDuration.Record(ctx, duration, attrs)
			activeRequests.Add(ctx, -1, metric.WithAttributes(method, route))

			return err
		}
	}
}
