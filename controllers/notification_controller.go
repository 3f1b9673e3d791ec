package controller

import (
	"collabforcause/models"
	"collabforcause/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type NotificationController struct {
	DB *gorm.DB
}

func NewNotificationController(db *gorm.DB) *NotificationController {
	return &NotificationController{DB: db}
}

// GetNotifications lists the caller's notifications, newest first.
func (nc *NotificationController) GetNotifications(c *fiber.Ctx) error {
	user := currentUser(c)

	notifications := []models.Notification{}
	err := nc.DB.WithContext(c.UserContext()).
		Where("user_id = ?", user.ID).
		Scopes(models.StatusIn(utils.QueryList(c, "status"))).
		Order("created_at DESC").
		Find(&notifications).Error
	if err != nil {
		return utils.RespondError(c, "notifications.List", err)
	}
	return utils.ListResponse(c, notifications, len(notifications))
}
