package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/chaoscast/chaoscast/internal/logging"
	"github.com/chaoscast/chaoscast/internal/models"
	"github.com/chaoscast/chaoscast/internal/services"
)

// Handler contains all HTTP handlers
type Handler struct {
	logger   *logging.Logger
	projects *services.ProjectService
	pipeline *services.PipelineService
	validate *validator.Validate
}

// New creates a new handler instance
func New(logger *logging.Logger, projects *services.ProjectService, pipeline *services.PipelineService) *Handler {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handler{
		logger:   logger,
		projects: projects,
		pipeline: pipeline,
		validate: validate,
	}
}

// parseBody decodes and validates a JSON body into req. An empty body leaves
// req at its zero value. The returned error is already written to c.
func (h *Handler) parseBody(c *fiber.Ctx, req interface{}) (bool, error) {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(req); err != nil {
			return false, h.badRequest(c, "Invalid request body: "+err.Error(), nil)
		}
	}

	if err := h.validate.StructCtx(c.UserContext(), req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]interface{}, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = validationMessage(fe)
			}
			return false, h.badRequest(c, "Request validation failed", map[string]interface{}{"fields": fields})
		}
		return false, h.badRequest(c, err.Error(), nil)
	}
	return true, nil
}

func validationMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}

func (h *Handler) badRequest(c *fiber.Ctx, message string, details map[string]interface{}) error {
	return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    services.CodeInvalidRequest,
			Message: message,
			Path:    c.Path(),
			Details: details,
		},
	})
}

// serviceError writes err with the status matching its code
func (h *Handler) serviceError(c *fiber.Ctx, err error) error {
	var svcErr *services.ServiceError
	if !errors.As(err, &svcErr) {
		h.logger.WithContext(c.UserContext()).Error("Unexpected handler error",
			"path", c.Path(), "error", err.Error())
		svcErr = services.NewServiceError(services.CodeInternal, "Internal server error")
	}

	status := fiber.StatusInternalServerError
	switch {
	case svcErr.Code == services.CodeProjectNotFound:
		status = fiber.StatusNotFound
	case services.IsClientError(svcErr.Code):
		status = fiber.StatusBadRequest
	default:
		h.logger.WithContext(c.UserContext()).Error("Request failed",
			"path", c.Path(), "code", svcErr.Code, "error", svcErr.Message)
	}

	return c.Status(status).JSON(models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    svcErr.Code,
			Message: svcErr.Message,
			Path:    c.Path(),
			Details: svcErr.Details,
		},
	})
}
