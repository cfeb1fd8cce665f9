package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/chaoscast/chaoscast/internal/logging"
	"github.com/chaoscast/chaoscast/internal/models"
)

// ErrorHandler renders errors returned by handlers as an ErrorResponse.
// Fiber errors keep their status; anything else is a 500 whose message is
// not exposed.
func ErrorHandler(logger *logging.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		message := "Internal Server Error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
			message = fe.Message
		}

		fields := []interface{}{
			"path", c.Path(),
			"method", c.Method(),
			"status", status,
			"error", err.Error(),
		}
		if rid := logging.RequestID(c.UserContext()); rid != "" {
			fields = append(fields, "request_id", rid)
		}
		if status >= fiber.StatusInternalServerError {
			logger.Error("Request failed", fields...)
		} else {
			logger.Warn("Request rejected", fields...)
		}

		return c.Status(status).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    statusCode(status),
				Message: message,
				Path:    c.Path(),
			},
		})
	}
}

// statusCode turns an HTTP status into an error code, e.g. 413 becomes
// REQUEST_ENTITY_TOO_LARGE
func statusCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "ERROR"
	}
	return strings.ToUpper(strings.NewReplacer(" ", "_", "-", "_", "'", "").Replace(text))
}
