package lifecycle

import (
	"context"
	"strings"
	"time"

	"collabforcause/models"
	"collabforcause/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type ProjectInput struct {
	Title       string
	Description string
	Category    string
	Skills      []string
	Deadline    time.Time
	Image       string
}

type ProjectPatch struct {
	Title       *string
	Description *string
	Category    *string
	Skills      *[]string
	Deadline    *time.Time
	Status      *models.ProjectStatus
	Image       *string
}

type TaskInput struct {
	ProjectID   uint
	Title       string
	Description string
	Skills      []string
	Deadline    time.Time
}

// GetProject returns a project with its creator summary and tasks ordered by
// deadline.
func (e *Engine) GetProject(ctx context.Context, id uint) (*models.Project, error) {
	var project models.Project
	err := e.DB.WithContext(ctx).
		Preload("Creator", models.UserSummary).
		Preload("Tasks", func(db *gorm.DB) *gorm.DB {
			return db.Order("deadline ASC")
		}).
		First(&project, id).Error
	if err != nil {
		return nil, notFoundOr(err, "Project not found", "failed to load project")
	}
	return &project, nil
}

func (e *Engine) ownedProject(ctx context.Context, caller *models.User, id uint, msg string) (*models.Project, error) {
	if err := requireRole(caller, models.RoleNGO, msg); err != nil {
		return nil, err
	}
	project, err := e.loadProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if !project.OwnedBy(caller) {
		return nil, utils.Forbidden(msg)
	}
	return project, nil
}

func (e *Engine) CreateProject(ctx context.Context, caller *models.User, in ProjectInput) (*models.Project, error) {
	if err := requireRole(caller, models.RoleNGO, "Only organizations can create projects"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Description) == "" || strings.TrimSpace(in.Category) == "" {
		return nil, utils.InvalidArgument("title, description and category are required")
	}
	if in.Deadline.IsZero() {
		return nil, utils.InvalidArgument("deadline is required")
	}

	project := models.Project{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Category:    strings.TrimSpace(in.Category),
		Skills:      models.NormalizeSkills(in.Skills),
		Deadline:    in.Deadline,
		Status:      models.ProjectActive,
		Image:       in.Image,
		CreatedBy:   caller.ID,
	}
	if err := e.DB.WithContext(ctx).Create(&project).Error; err != nil {
		return nil, utils.Internal("failed to create project", err)
	}

	e.log("lifecycle.CreateProject").WithFields(logrus.Fields{"project_id": project.ID, "user_id": caller.ID}).Info("project created")
	return e.GetProject(ctx, project.ID)
}

func (e *Engine) UpdateProject(ctx context.Context, caller *models.User, id uint, patch ProjectPatch) (*models.Project, error) {
	project, err := e.ownedProject(ctx, caller, id, "Not authorized to update this project")
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if patch.Title != nil {
		if strings.TrimSpace(*patch.Title) == "" {
			return nil, utils.InvalidArgument("title is required")
		}
		updates["title"] = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.Category != nil {
		updates["category"] = strings.TrimSpace(*patch.Category)
	}
	if patch.Skills != nil {
		updates["skills"] = models.NormalizeSkills(*patch.Skills)
	}
	if patch.Deadline != nil {
		updates["deadline"] = *patch.Deadline
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, utils.InvalidArgument("Invalid project status")
		}
		updates["status"] = *patch.Status
	}
	if patch.Image != nil {
		updates["image"] = *patch.Image
	}

	if len(updates) > 0 {
		if err := e.DB.WithContext(ctx).Model(&models.Project{}).Where("id = ?", project.ID).Updates(updates).Error; err != nil {
			return nil, utils.Internal("failed to update project", err)
		}
	}
	return e.GetProject(ctx, project.ID)
}

// DeleteProject removes a project and its tasks. Contributions and chat
// messages that reference it are kept.
func (e *Engine) DeleteProject(ctx context.Context, caller *models.User, id uint) error {
	project, err := e.ownedProject(ctx, caller, id, "Not authorized to delete this project")
	if err != nil {
		return err
	}

	var removed int64
	err = e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("project_id = ?", project.ID).Delete(&models.Task{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected
		return tx.Delete(&models.Project{}, project.ID).Error
	})
	if err != nil {
		return utils.Internal("failed to delete project", err)
	}

	e.log("lifecycle.DeleteProject").WithFields(logrus.Fields{
		"project_id":    project.ID,
		"tasks_removed": removed,
	}).Info("project deleted")
	utils.LogEvent("project_deleted", map[string]interface{}{"project_id": project.ID, "tasks": removed})
	return nil
}

func (e *Engine) CreateTask(ctx context.Context, caller *models.User, in TaskInput) (*models.Task, error) {
	project, err := e.ownedProject(ctx, caller, in.ProjectID, "Not authorized to add tasks to this project")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Description) == "" {
		return nil, utils.InvalidArgument("title and description are required")
	}
	if in.Deadline.IsZero() {
		return nil, utils.InvalidArgument("deadline is required")
	}

	task := models.Task{
		ProjectID:   project.ID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Skills:      models.NormalizeSkills(in.Skills),
		Deadline:    in.Deadline,
		Status:      models.TaskOpen,
	}
	if err := e.DB.WithContext(ctx).Create(&task).Error; err != nil {
		return nil, utils.Internal("failed to create task", err)
	}

	e.log("lifecycle.CreateTask").WithFields(logrus.Fields{"task_id": task.ID, "project_id": project.ID}).Info("task created")
	return e.GetTask(ctx, task.ID)
}

func (e *Engine) DeleteTask(ctx context.Context, caller *models.User, id uint) error {
	if err := requireRole(caller, models.RoleNGO, "Not authorized to delete this task"); err != nil {
		return err
	}
	task, err := e.loadTask(ctx, e.DB, id)
	if err != nil {
		return err
	}
	if !task.Project.OwnedBy(caller) {
		return utils.Forbidden("Not authorized to delete this task")
	}
	if err := e.DB.WithContext(ctx).Delete(&models.Task{}, task.ID).Error; err != nil {
		return utils.Internal("failed to delete task", err)
	}
	e.log("lifecycle.DeleteTask").WithField("task_id", task.ID).Info("task deleted")
	return nil
}
