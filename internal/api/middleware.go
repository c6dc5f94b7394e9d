package api

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// metricsMiddleware records request counts and latencies for every API call.
func (c *Controller) metricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)
			if err != nil {
				// Let Echo resolve the status before recording it.
				ctx.Error(err)
			}

			method := ctx.Request().Method
			status := strconv.Itoa(ctx.Response().Status)
			c.metrics.HTTP.RequestsTotal.WithLabelValues(method, status).Inc()
			c.metrics.HTTP.RequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
