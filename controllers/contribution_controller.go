package controller

import (
	"collabforcause/lifecycle"
	"collabforcause/models"
	"collabforcause/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type ContributionController struct {
	Engine *lifecycle.Engine
	Logger *logrus.Logger
}

func NewContributionController(engine *lifecycle.Engine, logger *logrus.Logger) *ContributionController {
	return &ContributionController{Engine: engine, Logger: logger}
}

type SubmitContributionRequest struct {
	Task           uint   `json:"task" validate:"required"`
	SubmissionLink string `json:"submissionLink"`
}

type ReviewContributionRequest struct {
	Status   string `json:"status"`
	Feedback string `json:"feedback" validate:"max=2000"`
}

// GetContributions lists what the caller may see, newest first.
func (cc *ContributionController) GetContributions(c *fiber.Ctx) error {
	const op = "contributions.List"

	projectID, err := queryID(c, "project")
	if err != nil {
		return utils.RespondError(c, op, err)
	}
	volunteerID, err := queryID(c, "volunteer")
	if err != nil {
		return utils.RespondError(c, op, err)
	}

	contributions, err := cc.Engine.ListContributions(c.UserContext(), currentUser(c), lifecycle.ContributionFilter{
		ProjectID:   projectID,
		VolunteerID: volunteerID,
		Statuses:    utils.QueryList(c, "status"),
	})
	if err != nil {
		return utils.RespondError(c, op, err)
	}
	return utils.ListResponse(c, contributions, len(contributions))
}

func (cc *ContributionController) GetContribution(c *fiber.Ctx) error {
	id, err := utils.ParamID(c)
	if err != nil {
		return utils.RespondError(c, "contributions.Get", err)
	}
	contribution, err := cc.Engine.GetContribution(c.UserContext(), currentUser(c), id)
	if err != nil {
		return utils.RespondError(c, "contributions.Get", err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, contribution)
}

// SubmitContribution is the dedicated submit route; PUT /tasks/:id with
// status submitted reaches the same operation.
func (cc *ContributionController) SubmitContribution(c *fiber.Ctx) error {
	const op = "contributions.Submit"

	var req SubmitContributionRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.RespondError(c, op, err)
	}

	contribution, err := cc.Engine.SubmitWork(c.UserContext(), currentUser(c), req.Task, req.SubmissionLink)
	if err != nil {
		return utils.RespondError(c, op, err)
	}
	return utils.SuccessResponse(c, fiber.StatusCreated, contribution)
}

func (cc *ContributionController) ReviewContribution(c *fiber.Ctx) error {
	const op = "contributions.Review"

	id, err := utils.ParamID(c)
	if err != nil {
		return utils.RespondError(c, op, err)
	}
	var req ReviewContributionRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.RespondError(c, op, err)
	}

	contribution, err := cc.Engine.ReviewContribution(c.UserContext(), currentUser(c), id,
		models.ContributionStatus(req.Status), req.Feedback)
	if err != nil {
		return utils.RespondError(c, op, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, contribution)
}
