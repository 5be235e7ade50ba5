package api

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/chatrelay/pkg/metrics"
)

// requestLogger logs each request once the handler returns and feeds the
// HTTP metrics. For /api/chat streams this is when the stream was handed to
// fasthttp, not when it ended.
func requestLogger(log *slog.Logger, m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		route := c.Route().Path
		elapsed := time.Since(start)
		m.ObserveHTTP(c.Method(), route, status, elapsed)

		attrs := []any{
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"elapsed_ms", elapsed.Milliseconds(),
			"ip", c.IP(),
		}
		switch {
		case status >= fiber.StatusInternalServerError:
			log.Error("request", attrs...)
		case status >= fiber.StatusBadRequest:
			log.Warn("request", attrs...)
		default:
			log.Debug("request", attrs...)
		}
		return err
	}
}

// errorHandler renders errors that escape handlers as ErrorResponse.
func errorHandler(log *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		message := "Internal server error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
			message = fe.Message
		} else {
			log.Error("unhandled error", "path", c.Path(), "error", err)
		}

		return c.Status(status).JSON(ErrorResponse{Error: message})
	}
}
