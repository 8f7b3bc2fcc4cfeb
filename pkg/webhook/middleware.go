package webhook

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
)

// SlogMiddleware logs one line per request with its request ID, status and latency.
func SlogMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			res := c.Response()

			err := next(c)

			attrs := []any{
				"component", "http",
				"request_id", res.Header().Get(echo.HeaderXRequestID),
				"method", req.Method,
				"uri", req.RequestURI,
				"remote_ip", c.RealIP(),
				"status", res.Status,
				"latency", time.Since(start),
				"bytes_in", req.ContentLength,
				"bytes_out", res.Size,
			}
			if err != nil {
				attrs = append(attrs, "error", err)
				slog.ErrorContext(req.Context(), "Request failed", attrs...)
			} else {
				slog.InfoContext(req.Context(), "Request completed", attrs...)
			}
			return err
		}
	}
}
