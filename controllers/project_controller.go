package controller

import (
	"collabforcause/lifecycle"
	"collabforcause/models"
	"collabforcause/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type ProjectController struct {
	DB     *gorm.DB
	Engine *lifecycle.Engine
	Logger *logrus.Logger
}

func NewProjectController(db *gorm.DB, engine *lifecycle.Engine, logger *logrus.Logger) *ProjectController {
	return &ProjectController{DB: db, Engine: engine, Logger: logger}
}

type CreateProjectRequest struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description" validate:"required"`
	Category    string   `json:"category" validate:"required,max=100"`
	Skills      []string `json:"skills"`
	Deadline    string   `json:"deadline" validate:"required"`
	Image       string   `json:"image" validate:"omitempty,url"`
}

type UpdateProjectRequest struct {
	Title       *string   `json:"title" validate:"omitempty,max=200"`
	Description *string   `json:"description"`
	Category    *string   `json:"category" validate:"omitempty,max=100"`
	Skills      *[]string `json:"skills"`
	Deadline    *string   `json:"deadline"`
	Status      *string   `json:"status" validate:"omitempty,oneof=active completed cancelled"`
	Image       *string   `json:"image" validate:"omitempty,url"`
}

// GetProjects lists projects newest first, filtered by ?search, ?skills and
// ?status.
func (pc *ProjectController) GetProjects(c *fiber.Ctx) error {
	projects := []models.Project{}
	err := pc.DB.WithContext(c.UserContext()).
		Scopes(
			models.Search(c.Query("search"), "title", "description", "category"),
			models.SkillsOverlap(utils.QueryList(c, "skills")),
			models.StatusIn(utils.QueryList(c, "status")),
		).
		Preload("Creator", models.UserSummary).
		Order("created_at DESC").
		Find(&projects).Error
	if err != nil {
		return utils.RespondError(c, "projects.List", err)
	}
	return utils.ListResponse(c, projects, len(projects))
}

func (pc *ProjectController) GetProject(c *fiber.Ctx) error {
	id, err := utils.ParamID(c)
	if err != nil {
		return utils.RespondError(c, "projects.Get", err)
	}
	project, err := pc.Engine.GetProject(c.UserContext(), id)
	if err != nil {
		return utils.RespondError(c, "projects.Get", err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, project)
}

func (pc *ProjectController) CreateProject(c *fiber.Ctx) error {
	const op = "projects.Create"

	var req CreateProjectRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.RespondError(c, op, err)
	}
	deadline, err := utils.ParseDate(req.Deadline)
	if err != nil {
		return utils.RespondError(c, op, err)
	}

	project, err := pc.Engine.CreateProject(c.UserContext(), currentUser(c), lifecycle.ProjectInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Skills:      req.Skills,
		Deadline:    deadline,
		Image:       req.Image,
	})
	if err != nil {
		return utils.RespondError(c, op, err)
	}
	return utils.SuccessResponse(c, fiber.StatusCreated, project)
}

func (pc *ProjectController) UpdateProject(c *fiber.Ctx) error {
	const op = "projects.Update"

	id, err := utils.ParamID(c)
	if err != nil {
		return utils.RespondError(c, op, err)
	}
	var req UpdateProjectRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.RespondError(c, op, err)
	}
	deadline, err := optionalDate(req.Deadline)
	if err != nil {
		return utils.RespondError(c, op, err)
	}

	patch := lifecycle.ProjectPatch{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Skills:      req.Skills,
		Deadline:    deadline,
		Image:       req.Image,
	}
	if req.Status != nil {
		status := models.ProjectStatus(*req.Status)
		patch.Status = &status
	}

	project, err := pc.Engine.UpdateProject(c.UserContext(), currentUser(c), id, patch)
	if err != nil {
		return utils.RespondError(c, op, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, project)
}

// DeleteProject removes the project and its tasks. Contributions stay.
func (pc *ProjectController) DeleteProject(c *fiber.Ctx) error {
	id, err := utils.ParamID(c)
	if err != nil {
		return utils.RespondError(c, "projects.Delete", err)
	}
	if err := pc.Engine.DeleteProject(c.UserContext(), currentUser(c), id); err != nil {
		return utils.RespondError(c, "projects.Delete", err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, fiber.Map{})
}
