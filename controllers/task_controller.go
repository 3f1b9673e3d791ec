package controller

import (
	"collabforcause/lifecycle"
	"collabforcause/models"
	"collabforcause/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type TaskController struct {
	DB     *gorm.DB
	Engine *lifecycle.Engine
	Logger *logrus.Logger
}

func NewTaskController(db *gorm.DB, engine *lifecycle.Engine, logger *logrus.Logger) *TaskController {
	return &TaskController{DB: db, Engine: engine, Logger: logger}
}

type CreateTaskRequest struct {
	Project     uint     `json:"project" validate:"required"`
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description" validate:"required"`
	Skills      []string `json:"skills"`
	Deadline    string   `json:"deadline" validate:"required"`
}

// UpdateTaskRequest is shared by owner edits and volunteer claim/submit.
type UpdateTaskRequest struct {
	Title          *string   `json:"title" validate:"omitempty,max=200"`
	Description    *string   `json:"description"`
	Skills         *[]string `json:"skills"`
	Deadline       *string   `json:"deadline"`
	Status         *string   `json:"status"`
	Feedback       *string   `json:"feedback"`
	SubmissionLink string    `json:"submissionLink"`
}

// GetTasks lists tasks by ascending deadline, filtered by ?project, ?status
// and ?skills.
func (tc *TaskController) GetTasks(c *fiber.Ctx) error {
	const op = "tasks.List"

	projectID, err := queryID(c, "project")
	if err != nil {
		return utils.RespondError(c, op, err)
	}

	tasks := []models.Task{}
	err = tc.DB.WithContext(c.UserContext()).
		Scopes(
			models.FieldEquals("project_id", projectID),
			models.StatusIn(utils.QueryList(c, "status")),
			models.SkillsOverlap(utils.QueryList(c, "skills")),
		).
		Preload("Project").
		Preload("Claimer", models.UserSummary).
		Order("deadline ASC").
		Find(&tasks).Error
	if err != nil {
		return utils.RespondError(c, op, err)
	}
	return utils.ListResponse(c, tasks, len(tasks))
}

func (tc *TaskController) GetTask(c *fiber.Ctx) error {
	id, err := utils.ParamID(c)
	if err != nil {
		return utils.RespondError(c, "tasks.Get", err)
	}
	task, err := tc.Engine.GetTask(c.UserContext(), id)
	if err != nil {
		return utils.RespondError(c, "tasks.Get", err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, task)
}

func (tc *TaskController) CreateTask(c *fiber.Ctx) error {
	const op = "tasks.Create"

	var req CreateTaskRequest
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

	task, err := tc.Engine.CreateTask(c.UserContext(), currentUser(c), lifecycle.TaskInput{
		ProjectID:   req.Project,
		Title:       req.Title,
		Description: req.Description,
		Skills:      req.Skills,
		Deadline:    deadline,
	})
	if err != nil {
		return utils.RespondError(c, op, err)
	}
	return utils.SuccessResponse(c, fiber.StatusCreated, task)
}

// UpdateTask routes to claim, submit or owner edit by the caller's role.
func (tc *TaskController) UpdateTask(c *fiber.Ctx) error {
	const op = "tasks.Update"

	id, err := utils.ParamID(c)
	if err != nil {
		return utils.RespondError(c, op, err)
	}
	var req UpdateTaskRequest
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

	upd := lifecycle.TaskUpdate{
		TaskPatch: lifecycle.TaskPatch{
			Title:       req.Title,
			Description: req.Description,
			Skills:      req.Skills,
			Deadline:    deadline,
			Feedback:    req.Feedback,
		},
		SubmissionLink: req.SubmissionLink,
	}
	if req.Status != nil {
		status := models.TaskStatus(*req.Status)
		upd.Status = &status
	}

	task, err := tc.Engine.UpdateTask(c.UserContext(), currentUser(c), id, upd)
	if err != nil {
		return utils.RespondError(c, op, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, task)
}

func (tc *TaskController) DeleteTask(c *fiber.Ctx) error {
	id, err := utils.ParamID(c)
	if err != nil {
		return utils.RespondError(c, "tasks.Delete", err)
	}
	if err := tc.Engine.DeleteTask(c.UserContext(), currentUser(c), id); err != nil {
		return utils.RespondError(c, "tasks.Delete", err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, fiber.Map{})
}
