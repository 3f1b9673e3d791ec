// Package lifecycle owns the task and contribution state machines.
//
// Task transitions:
//
//	open -> claimed -> submitted -> completed
//	submitted -> claimed (rejection)
//
// Contribution transitions:
//
//	submitted -> approved | rejected
//
// Every transition is a conditional update keyed on the expected prior
// state; zero affected rows means another request got there first and is
// reported as a conflict. Transitions that write more than one record run in
// a single transaction.
package lifecycle

import (
	"context"
	"errors"
	"strings"
	"time"

	"collabforcause/models"
	"collabforcause/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type Engine struct {
	DB     *gorm.DB
	Logger *logrus.Logger
	now    func() time.Time
}

func NewEngine(db *gorm.DB, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = utils.Log
	}
	return &Engine{
		DB:     db,
		Logger: logger,
		now:    time.Now,
	}
}

// TaskPatch lists the fields an owner may overwrite. Nil fields are left
// untouched.
type TaskPatch struct {
	Title       *string
	Description *string
	Skills      *[]string
	Deadline    *time.Time
	Status      *models.TaskStatus
	Feedback    *string
}

func (p TaskPatch) empty() bool {
	return p.Title == nil && p.Description == nil && p.Skills == nil &&
		p.Deadline == nil && p.Status == nil && p.Feedback == nil
}

// TaskUpdate is the body of a task update before it is routed to one of
// ClaimTask, SubmitWork or OwnerEditTask by the caller's role.
type TaskUpdate struct {
	TaskPatch
	SubmissionLink string
}

// requireRole fails unless caller holds want. Unknown roles never pass.
func requireRole(caller *models.User, want models.Role, msg string) error {
	if caller == nil {
		return utils.Unauthenticated("Not authorized to access this route")
	}
	switch caller.Role {
	case models.RoleVolunteer, models.RoleNGO:
		if caller.Role == want {
			return nil
		}
		return utils.Forbidden(msg)
	default:
		return utils.Forbidden("Unrecognized account role")
	}
}

func (e *Engine) log(op string) *logrus.Entry {
	return e.Logger.WithField("operation", op)
}

func (e *Engine) loadTask(ctx context.Context, db *gorm.DB, id uint) (*models.Task, error) {
	var task models.Task
	if err := db.WithContext(ctx).Preload("Project").First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("Task not found")
		}
		return nil, utils.Internal("failed to load task", err)
	}
	if task.Project == nil {
		// Orphaned tasks cannot be authorized against an owner.
		return nil, utils.NotFound("Project not found")
	}
	return &task, nil
}

func (e *Engine) loadProject(ctx context.Context, id uint) (*models.Project, error) {
	var project models.Project
	if err := e.DB.WithContext(ctx).First(&project, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("Project not found")
		}
		return nil, utils.Internal("failed to load project", err)
	}
	return &project, nil
}

// GetTask returns a task with its project and claimant summary.
func (e *Engine) GetTask(ctx context.Context, id uint) (*models.Task, error) {
	var task models.Task
	err := e.DB.WithContext(ctx).
		Preload("Project").
		Preload("Claimer", models.UserSummary).
		First(&task, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("Task not found")
		}
		return nil, utils.Internal("failed to load task", err)
	}
	return &task, nil
}

// ClaimTask moves an open task to claimed for a volunteer.
func (e *Engine) ClaimTask(ctx context.Context, caller *models.User, taskID uint) (*models.Task, error) {
	if err := requireRole(caller, models.RoleVolunteer, "Only volunteers can claim tasks"); err != nil {
		return nil, err
	}
	task, err := e.loadTask(ctx, e.DB, taskID)
	if err != nil {
		return nil, err
	}
	return e.claim(ctx, caller, task)
}

// claim applies the transition against a task snapshot that may already be
// stale.
func (e *Engine) claim(ctx context.Context, caller *models.User, task *models.Task) (*models.Task, error) {
	const op = "lifecycle.ClaimTask"

	if task.Status != models.TaskOpen {
		return nil, utils.Forbidden("Task is not open for claiming")
	}

	res := e.DB.WithContext(ctx).Model(&models.Task{}).
		Where("id = ? AND status = ?", task.ID, models.TaskOpen).
		Updates(map[string]interface{}{
			"status":     models.TaskClaimed,
			"claimed_by": caller.ID,
		})
	if res.Error != nil {
		return nil, utils.Internal("failed to claim task", res.Error)
	}
	if res.RowsAffected == 0 {
		e.log(op).WithFields(logrus.Fields{"task_id": task.ID, "user_id": caller.ID}).Warn("claim lost race")
		return nil, utils.Conflict("Task was claimed by someone else")
	}

	e.log(op).WithFields(logrus.Fields{"task_id": task.ID, "user_id": caller.ID}).Info("task claimed")
	return e.GetTask(ctx, task.ID)
}

// SubmitWork records a submission for a task the caller has claimed. The new
// contribution, the task transition and the owner notification are written
// together.
func (e *Engine) SubmitWork(ctx context.Context, caller *models.User, taskID uint, link string) (*models.Contribution, error) {
	const op = "lifecycle.SubmitWork"

	if err := requireRole(caller, models.RoleVolunteer, "Only volunteers can submit work"); err != nil {
		return nil, err
	}
	task, err := e.loadTask(ctx, e.DB, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != models.TaskClaimed || !task.ClaimedByUser(caller) {
		return nil, utils.Forbidden("You must claim this task before submitting work")
	}
	link = strings.TrimSpace(link)
	if link == "" {
		return nil, utils.InvalidArgument("Submission link is required")
	}

	contribution := models.Contribution{
		TaskID:         task.ID,
		ProjectID:      task.ProjectID,
		VolunteerID:    caller.ID,
		SubmissionLink: link,
		Status:         models.ContributionSubmitted,
	}

	err = e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&contribution).Error; err != nil {
			return err
		}
		res := tx.Model(&models.Task{}).
			Where("id = ? AND status = ? AND claimed_by = ?", task.ID, models.TaskClaimed, caller.ID).
			Updates(map[string]interface{}{
				"status":                  models.TaskSubmitted,
				"submission_link":         link,
				"pending_contribution_id": contribution.ID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.Conflict("Task changed before the submission was recorded")
		}
		notice := submissionNotice(task, caller)
		return tx.Create(&notice).Error
	})
	if err != nil {
		return nil, utils.AsAppError(err, "failed to submit work")
	}

	e.log(op).WithFields(logrus.Fields{
		"task_id":         task.ID,
		"contribution_id": contribution.ID,
		"user_id":         caller.ID,
	}).Info("work submitted")
	return &contribution, nil
}

// ReviewContribution approves or rejects a submitted contribution on behalf
// of the project owner and moves the task to completed or back to claimed.
func (e *Engine) ReviewContribution(ctx context.Context, caller *models.User, contributionID uint, decision models.ContributionStatus, feedback string) (*models.Contribution, error) {
	const op = "lifecycle.ReviewContribution"

	if err := requireRole(caller, models.RoleNGO, "Only organizations can review contributions"); err != nil {
		return nil, err
	}
	if decision != models.ContributionApproved && decision != models.ContributionRejected {
		return nil, utils.InvalidArgument("Status must be approved or rejected")
	}

	var contribution models.Contribution
	if err := e.DB.WithContext(ctx).Preload("Project").First(&contribution, contributionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("Contribution not found")
		}
		return nil, utils.Internal("failed to load contribution", err)
	}
	if !contribution.Project.OwnedBy(caller) {
		return nil, utils.Forbidden("Not authorized to update this contribution")
	}
	if contribution.Status != models.ContributionSubmitted {
		return nil, utils.Conflict("Contribution has already been reviewed")
	}

	now := e.now()
	contributionUpdates := map[string]interface{}{
		"status":   decision,
		"feedback": feedback,
	}
	taskUpdates := map[string]interface{}{
		"feedback":                feedback,
		"pending_contribution_id": nil,
	}
	if decision == models.ContributionApproved {
		contributionUpdates["approved_at"] = now
		taskUpdates["status"] = models.TaskCompleted
	} else {
		// claimed_by stays so the same volunteer can resubmit.
		taskUpdates["status"] = models.TaskClaimed
	}

	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Contribution{}).
			Where("id = ? AND status = ?", contribution.ID, models.ContributionSubmitted).
			Updates(contributionUpdates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.Conflict("Contribution has already been reviewed")
		}

		res = tx.Model(&models.Task{}).
			Where("id = ? AND status = ? AND pending_contribution_id = ?", contribution.TaskID, models.TaskSubmitted, contribution.ID).
			Updates(taskUpdates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.Conflict("Task is no longer awaiting review of this contribution")
		}

		notice := reviewNotice(&contribution, decision, feedback)
		return tx.Create(&notice).Error
	})
	if err != nil {
		return nil, utils.AsAppError(err, "failed to review contribution")
	}

	e.log(op).WithFields(logrus.Fields{
		"contribution_id": contribution.ID,
		"task_id":         contribution.TaskID,
		"decision":        decision,
	}).Info("contribution reviewed")
	return e.GetContribution(ctx, caller, contribution.ID)
}

// OwnerEditTask lets the project owner overwrite task fields directly. It
// does not re-check the volunteer transition rules: owners may set any
// status. The claimant/open invariant is still kept.
func (e *Engine) OwnerEditTask(ctx context.Context, caller *models.User, taskID uint, patch TaskPatch) (*models.Task, error) {
	const op = "lifecycle.OwnerEditTask"

	if err := requireRole(caller, models.RoleNGO, "Not authorized to update this task"); err != nil {
		return nil, err
	}
	task, err := e.loadTask(ctx, e.DB, taskID)
	if err != nil {
		return nil, err
	}
	if !task.Project.OwnedBy(caller) {
		return nil, utils.Forbidden("Not authorized to update this task")
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, utils.InvalidArgument("Invalid task status")
	}
	if patch.empty() {
		return e.GetTask(ctx, task.ID)
	}

	updates := map[string]interface{}{}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, utils.InvalidArgument("title is required")
		}
		updates["title"] = title
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.Skills != nil {
		updates["skills"] = models.NormalizeSkills(*patch.Skills)
	}
	if patch.Deadline != nil {
		updates["deadline"] = *patch.Deadline
	}
	if patch.Feedback != nil {
		updates["feedback"] = *patch.Feedback
	}
	if patch.Status != nil {
		updates["status"] = *patch.Status
		if *patch.Status == models.TaskOpen {
			updates["claimed_by"] = nil
		}
		if *patch.Status != models.TaskSubmitted {
			updates["pending_contribution_id"] = nil
		}
	}

	if err := e.DB.WithContext(ctx).Model(&models.Task{}).Where("id = ?", task.ID).Updates(updates).Error; err != nil {
		return nil, utils.Internal("failed to update task", err)
	}

	e.log(op).WithFields(logrus.Fields{"task_id": task.ID, "fields": len(updates)}).Info("task edited by owner")
	return e.GetTask(ctx, task.ID)
}

// UpdateTask routes a task update to the operation the caller's role allows.
func (e *Engine) UpdateTask(ctx context.Context, caller *models.User, taskID uint, upd TaskUpdate) (*models.Task, error) {
	if caller == nil {
		return nil, utils.Unauthenticated("Not authorized to access this route")
	}
	switch caller.Role {
	case models.RoleNGO:
		return e.OwnerEditTask(ctx, caller, taskID, upd.TaskPatch)
	case models.RoleVolunteer:
		if upd.Status == nil {
			return nil, utils.Forbidden("Not authorized to perform this action")
		}
		switch *upd.Status {
		case models.TaskClaimed:
			return e.ClaimTask(ctx, caller, taskID)
		case models.TaskSubmitted:
			if _, err := e.SubmitWork(ctx, caller, taskID, upd.SubmissionLink); err != nil {
				return nil, err
			}
			return e.GetTask(ctx, taskID)
		default:
			return nil, utils.Forbidden("Not authorized to perform this action")
		}
	default:
		return nil, utils.Forbidden("Unrecognized account role")
	}
}
