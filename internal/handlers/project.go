package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/chaoscast/chaoscast/internal/logging"
	"github.com/chaoscast/chaoscast/internal/models"
	"github.com/chaoscast/chaoscast/internal/services"
)

// CreateProject creates an empty project
func (h *Handler) CreateProject(c *fiber.Ctx) error {
	var req models.CreateProjectRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}

	p, err := h.projects.Create(c.UserContext(), req.Name, req.Description)
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(models.NewProjectResponse(p))
}

// ListProjects lists all projects, newest first
func (h *Handler) ListProjects(c *fiber.Ctx) error {
	projects, err := h.projects.List(c.UserContext())
	if err != nil {
		return h.serviceError(c, err)
	}

	resp := models.ProjectListResponse{
		Projects: make([]models.ProjectResponse, 0, len(projects)),
		Count:    len(projects),
	}
	for _, p := range projects {
		resp.Projects = append(resp.Projects, models.NewProjectResponse(p))
	}
	return c.JSON(resp)
}

// GetProject returns one project
func (h *Handler) GetProject(c *fiber.Ctx) error {
	p, err := h.projects.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(models.NewProjectResponse(p))
}

// UpdateProject renames a project or changes its description
func (h *Handler) UpdateProject(c *fiber.Ctx) error {
	var req models.UpdateProjectRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}

	p, err := h.projects.Update(c.UserContext(), c.Params("id"), services.ProjectUpdate{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(models.NewProjectResponse(p))
}

// DeleteProject removes a project and its files
func (h *Handler) DeleteProject(c *fiber.Ctx) error {
	if err := h.projects.Delete(c.UserContext(), c.Params("id")); err != nil {
		return h.serviceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetSnapshot returns the stored stage results of a project
func (h *Handler) GetSnapshot(c *fiber.Ctx) error {
	ctx := logging.WithProjectID(c.UserContext(), c.Params("id"))

	p, err := h.projects.Get(ctx, c.Params("id"))
	if err != nil {
		return h.serviceError(c, err)
	}
	snap, err := h.projects.Snapshot(ctx, p.ID)
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(models.SnapshotResponse{
		Project:  models.NewProjectResponse(p),
		Snapshot: snap,
	})
}
