package handlers

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/chaoscast/chaoscast/internal/logging"
	"github.com/chaoscast/chaoscast/internal/models"
	"github.com/chaoscast/chaoscast/internal/services"
	"github.com/chaoscast/chaoscast/internal/storage"
	"github.com/chaoscast/chaoscast/internal/utils"
)

// UploadFormField is the multipart field holding the CSV file
const UploadFormField = "file"

// projectContext tags the request context with the project id and bounds it
func (h *Handler) projectContext(c *fiber.Ctx, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(logging.WithProjectID(c.UserContext(), c.Params("id")), timeout)
}

// Upload stores a CSV file as the project data
func (h *Handler) Upload(c *fiber.Ctx) error {
	fh, err := c.FormFile(UploadFormField)
	if err != nil {
		return h.badRequest(c, "A CSV file is required in the \""+UploadFormField+"\" form field", nil)
	}
	if !strings.EqualFold(filepath.Ext(fh.Filename), ".csv") {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    services.CodeInvalidCSV,
				Message: "Only .csv files are accepted",
				Path:    c.Path(),
				Details: map[string]interface{}{"filename": fh.Filename},
			},
		})
	}

	f, err := fh.Open()
	if err != nil {
		return h.badRequest(c, "Failed to read uploaded file: "+err.Error(), nil)
	}
	defer f.Close()

	ctx, cancel := h.projectContext(c, utils.DefaultRequestTimeout)
	defer cancel()

	res, err := h.pipeline.Upload(ctx, c.Params("id"), f)
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(models.UploadResponse{
		Project: models.NewProjectResponse(res.Project),
		Preview: res.Preview,
	})
}

// SelectColumns records the target and feature columns
func (h *Handler) SelectColumns(c *fiber.Ctx) error {
	var req models.SelectColumnsRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}

	ctx, cancel := h.projectContext(c, utils.DefaultRequestTimeout)
	defer cancel()

	res, err := h.pipeline.Select(ctx, c.Params("id"), services.SelectRequest{
		Target:   req.Target,
		Features: req.Features,
		Limit:    req.Limit,
	})
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(models.StageResponse{ProjectID: res.Project.ID, Status: res.Project.Status, Result: res})
}

// Preprocess runs segment selection and change-duration analysis
func (h *Handler) Preprocess(c *fiber.Ctx) error {
	var req models.PreprocessRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}

	ctx, cancel := h.projectContext(c, utils.DefaultRequestTimeout)
	defer cancel()

	res, err := h.pipeline.Preprocess(ctx, c.Params("id"), services.PreprocessRequest{
		Target:           req.Target,
		Strategy:         req.Strategy,
		BackWindow:       req.BackWindow,
		SegmentLength:    req.SegmentLength,
		Tolerance:        req.Tolerance,
		Drift:            req.Drift,
		Threshold:        req.Threshold,
		ReestimateWindow: req.ReestimateWindow,
		Baseline:         req.Baseline,
		FractalWindow:    req.FractalWindow,
		Time:             req.Time.Encoding(),
	})
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(models.StageResponse{ProjectID: c.Params("id"), Status: storage.StatusPreprocessed, Result: res})
}

// Train fits the project model
func (h *Handler) Train(c *fiber.Ctx) error {
	var req models.TrainRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}

	ctx, cancel := h.projectContext(c, utils.TrainRequestTimeout)
	defer cancel()

	res, err := h.pipeline.Train(ctx, c.Params("id"), services.TrainRequest{
		Target:       req.Target,
		Model:        req.Model,
		Window:       req.Window,
		Horizon:      req.Horizon,
		Epochs:       req.Epochs,
		BatchSize:    req.BatchSize,
		LearningRate: req.LearningRate,
		Seed:         req.Seed,
		Source:       req.Source,
	})
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(models.StageResponse{ProjectID: c.Params("id"), Status: storage.StatusTrained, Result: res})
}

// Forecast extends the target series with the trained model
func (h *Handler) Forecast(c *fiber.Ctx) error {
	var req models.ForecastRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}

	ctx, cancel := h.projectContext(c, utils.DefaultRequestTimeout)
	defer cancel()

	res, err := h.pipeline.Forecast(ctx, c.Params("id"), services.ForecastRequest{
		Steps:   req.Steps,
		Context: req.Context,
		Holdout: req.Holdout,
		Time:    req.Time.Encoding(),
	})
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(models.StageResponse{ProjectID: c.Params("id"), Status: storage.StatusForecasted, Result: res})
}
