package controller

import (
	"context"
	"strings"

	"collabforcause/models"
	"collabforcause/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type MessageController struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func NewMessageController(db *gorm.DB, logger *logrus.Logger) *MessageController {
	return &MessageController{DB: db, Logger: logger}
}

// GetMessages returns a project's chat history, oldest first.
func (mc *MessageController) GetMessages(c *fiber.Ctx) error {
	const op = "messages.List"

	projectID, err := queryID(c, "project")
	if err != nil {
		return utils.RespondError(c, op, err)
	}
	if projectID == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "project is required")
	}

	var exists int64
	if err := mc.DB.WithContext(c.UserContext()).Model(&models.Project{}).Where("id = ?", projectID).Count(&exists).Error; err != nil {
		return utils.RespondError(c, op, err)
	}
	if exists == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Project not found")
	}

	messages := []models.Message{}
	err = mc.DB.WithContext(c.UserContext()).
		Where("project_id = ?", projectID).
		Preload("Sender", models.UserSummary).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return utils.RespondError(c, op, err)
	}
	return utils.ListResponse(c, messages, len(messages))
}

// SaveMessage implements relay.MessageSink. Messages naming an unknown
// project or sender are dropped.
func (mc *MessageController) SaveMessage(ctx context.Context, projectID, senderID uint, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	var n int64
	if err := mc.DB.WithContext(ctx).Model(&models.Project{}).Where("id = ?", projectID).Count(&n).Error; err != nil || n == 0 {
		return err
	}
	if err := mc.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", senderID).Count(&n).Error; err != nil || n == 0 {
		return err
	}

	return mc.DB.WithContext(ctx).Create(&models.Message{
		ProjectID: projectID,
		SenderID:  senderID,
		Content:   content,
	}).Error
}
